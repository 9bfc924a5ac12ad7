package dto

// PushKeys 浏览器订阅对象里的加密材料
type PushKeys struct {
	P256dh string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth" binding:"required"`
}

type PushSubscribeReq struct {
	Endpoint string   `json:"endpoint" binding:"required"`
	Keys     PushKeys `json:"keys" binding:"required"`
}

type PushSubscribeResp struct {
	Created     bool  `json:"created"`
	ActiveCount int64 `json:"active_count"`
}

// PushUnsubscribeReq endpoint 为空表示注销本人全部端点
type PushUnsubscribeReq struct {
	Endpoint string `json:"endpoint"`
}

type PushUnsubscribeResp struct {
	Removed int64 `json:"removed"`
}
