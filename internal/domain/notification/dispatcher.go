package notification

import (
	"context"
)

// Dispatcher 通知分发接口
// 设计说明：
// 1. NotifyAvailable是尽力而为的：实时推送失败只记录日志，
//    收件箱落盘失败返回错误交由消费侧重试（归还事务早已提交，绝不回滚）
// 2. Subscribe返回的通道在ctx取消后关闭，取消即退订（作用域式清理）
type Dispatcher interface {
	// NotifyAvailable 发出"图书可借"通知：写收件箱 + 实时推送
	NotifyAvailable(ctx context.Context, userID, bookID, requestID uint) error

	// Inbox 读取用户收件箱（最新的在前，最多limit条）
	Inbox(ctx context.Context, userID uint, limit int) ([]*Event, error)

	// Subscribe 订阅用户的实时通知通道
	// 先自行回放Inbox再调用本方法，可获得"回放+实时"的完整序列
	Subscribe(ctx context.Context, userID uint) (<-chan *Event, error)

	// MarkRead 标记通知已读（幂等，重复标记也返回成功）
	MarkRead(ctx context.Context, userID uint, notificationID string) (bool, error)
}
