package consts

const (
	PairChannelKey = "ephemera:pair:"
	PushTokenKey   = "ephemera:push_token:"
)

const (
	MessagePruneLock = "ephemera:lock:message_prune"
)
