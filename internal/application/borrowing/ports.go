package borrowing

import (
	"context"

	"github.com/xiebiao/library/internal/domain/borrowing"
)

// TxManager 事务管理端口
// 设计说明：应用层只需要"在一个事务里执行fn"这一个能力，
// 定义成接口后单元测试可以用互斥锁串行化的假实现替代MySQL
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher 归还事件发布端口
// 由eventbus.MemoryBus或eventbus.AMQPBus实现
type EventPublisher interface {
	PublishReturned(ctx context.Context, event borrowing.ReturnedEvent) error
}

// BookCacheInvalidator 图书缓存失效端口
// 借出/归还改变可借副本数，写路径删除缓存保证读侧不拿到过期数据
type BookCacheInvalidator interface {
	Invalidate(ctx context.Context, bookID uint) error
}
