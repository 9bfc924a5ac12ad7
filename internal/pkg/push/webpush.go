package push

import (
	"context"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/pkg/errors"
)

// Subscription 一条投递目标：端点加两把浏览器侧密钥
type Subscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Sender 推送传输抽象，返回推送服务的 HTTP 状态码；
// 传输层面失败（网络、构造报文）时返回 error 且状态码为 0
type Sender interface {
	Send(ctx context.Context, sub Subscription, payload []byte) (int, error)
}

// PermanentlyGone 端点永久失效的判据，对 Web Push 即 404/410。
// 换传输实现时只需替换这一判断。
func PermanentlyGone(status int) bool {
	return status == http.StatusNotFound || status == http.StatusGone
}

// Options VAPID 凭据
type Options struct {
	Subscriber      string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
}

type webPushSender struct {
	opts Options
}

// NewWebPushSender 基于 RFC 8291 Web Push 协议的默认实现
func NewWebPushSender(opts Options) Sender {
	return &webPushSender{opts: opts}
}

func (s *webPushSender) Send(ctx context.Context, sub Subscription, payload []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.opts.Subscriber,
		VAPIDPublicKey:  s.opts.VAPIDPublicKey,
		VAPIDPrivateKey: s.opts.VAPIDPrivateKey,
		TTL:             60,
	})
	if err != nil {
		return 0, errors.Wrap(err, "webpush send failed")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
