package waitlist

import (
	"context"
)

// Repository 排队仓储接口
// 设计说明：
// 1. Enqueue/PopNext都必须在borrow/return相关事务内调用
// 2. PopNext对被出队的行加行锁，保证一次归还只出队一条
type Repository interface {
	// Create 插入排队记录
	Create(ctx context.Context, e *Entry) error

	// FindByID 根据request_id查找
	FindByID(ctx context.Context, id uint) (*Entry, error)

	// LockByID 悲观锁查找排队记录（事务内使用）
	// 取消与出队竞争同一行，后到者拿到锁时看到的是已提交的状态
	LockByID(ctx context.Context, id uint) (*Entry, error)

	// FindPending 查找某用户对某书的PENDING记录（入队幂等检查）
	// 不存在时返回(nil, nil)
	FindPending(ctx context.Context, userID, bookID uint) (*Entry, error)

	// LockNextPending 锁定某本书最早的PENDING记录
	// SELECT ... WHERE book_id=? AND status='PENDING'
	// ORDER BY request_date, id LIMIT 1 FOR UPDATE
	// 队列为空时返回(nil, nil)
	LockNextPending(ctx context.Context, bookID uint) (*Entry, error)

	// Update 更新排队记录（状态流转、通知标记）
	Update(ctx context.Context, e *Entry) error

	// ListByBook 查询某本书的等待队列（按FIFO顺序）
	ListByBook(ctx context.Context, bookID uint) ([]*Entry, error)

	// ListByUser 查询某用户的全部排队记录
	ListByUser(ctx context.Context, userID uint) ([]*Entry, error)
}
