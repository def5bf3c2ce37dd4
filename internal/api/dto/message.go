package dto

import "time"

// CreateMessageReq 新建消息
type CreateMessageReq struct {
	ReceiverID uint64 `json:"receiver_id" binding:"required"`
	Kind       string `json:"kind" binding:"required,oneof=text emoji"`
	Content    string `json:"content" binding:"required"`
}

// AmendMessageReq 追加文本，Content 为追加后的完整内容
type AmendMessageReq struct {
	Content   string     `json:"content" binding:"required"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// ListMessagesReq 拉取会话读窗口
type ListMessagesReq struct {
	PeerID uint64    `form:"peer_id" binding:"required"`
	Since  time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
}

// PushTokenReq 注册设备推送 token
type PushTokenReq struct {
	Token string `json:"token" binding:"required,max=255,expo_token"`
}

// WSConnectReq 事件流连接参数
type WSConnectReq struct {
	PeerID uint64 `form:"peer_id" binding:"required"`
	Token  string `form:"token" binding:"required"`
}
