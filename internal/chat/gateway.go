package chat

import (
	"context"
	"errors"
	"time"

	"Ephemera/internal/model"
)

var (
	// ErrTransientWrite 网络或网关错误，回滚后由下一次输入重试
	ErrTransientWrite = errors.New("transient write failure")
	// ErrStaleAmend 服务端拒绝追加（编辑窗口已过或已不是最新消息），改为新建
	ErrStaleAmend = errors.New("stale amend rejected")
	// ErrRejectedWrite 网关确定性地拒绝了请求（参数、权限等），不再原样重试
	ErrRejectedWrite = errors.New("write rejected by gateway")
	// ErrUnknownCategory 未知表情分类
	ErrUnknownCategory = errors.New("unknown emoji category")
)

// Gateway 同步网关契约，发送者身份由网关凭证确定
type Gateway interface {
	CreateMessage(ctx context.Context, receiverID uint64, kind model.MessageKind, content string) (*model.Message, error)
	AmendMessage(ctx context.Context, id, newContent string, newUpdatedAt time.Time) (*model.Message, error)
	ListMessages(ctx context.Context, peerID uint64, since time.Time) ([]model.Message, error)
	Stats(ctx context.Context, peerID uint64) (*model.ConversationStats, error)
	Subscribe(ctx context.Context, peerID uint64) (Subscription, error)
}

// Subscription 单个会话的事件流，Close 后 Events 通道关闭
type Subscription interface {
	Events() <-chan model.ChangeEvent
	Close() error
}

// Notifier 推送通知协作方，失败只记录日志
type Notifier interface {
	Notify(ctx context.Context, token, title, body string) error
}

// Renderer 接收每次状态变化后的会话视图
type Renderer interface {
	Render(view View)
}
