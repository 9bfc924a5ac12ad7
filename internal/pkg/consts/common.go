package consts

// 消息方向
const (
	DirectionCustomer = 1
	DirectionOperator = 2
)

// 审计动作
const (
	AuditActionSend        = "send"
	AuditActionOpen        = "open"
	AuditActionClose       = "close"
	AuditActionReopen      = "reopen"
	AuditActionSubscribe   = "subscribe"
	AuditActionUnsubscribe = "unsubscribe"
	AuditActionPushSuccess = "push_success"
	AuditActionPushFailure = "push_failure"
)

// 排队轮询的作用域标识（区别于具体会话 ID）
const QueuePollScope = "queue"

// 输入中指示灯的参与方
const (
	TypingRoleCustomer = "customer"
	TypingRoleOperator = "operator"
)

// 角色
const (
	RoleSupport = "SUPPORT"
	RoleAdmin   = "ADMIN"
)

const DefaultSubject = "Support Request"
