package consts

const (
	ChatSignatureKey  = "support:chat:sig:"
	QueueSignatureKey = "support:queue:sig"
	TypingKey         = "support:typing:"
	PushLastErrorKey  = "support:push:last_error"
)

const (
	PollLockKey        = "support:poll:lock:"
	PollOpenCountKey   = "support:poll:open"
	PollLastLatencyKey = "support:poll:last_ms"
)
