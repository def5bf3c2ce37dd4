package consts

const (
	// UserIDKey gin 上下文中的当前用户
	UserIDKey = "user_id"
)

const (
	NotifyTitle = "New message"
)
