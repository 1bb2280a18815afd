package book

import (
	"context"

	"github.com/xiebiao/library/internal/domain/book"
)

// TxManager 事务管理端口
// 盘点改副本数需要和借还抢同一把行锁，必须在事务内执行
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// LoanCounter 在借统计端口
// 删除图书前检查在借数，窄接口避免图书包依赖整个借阅仓储
type LoanCounter interface {
	CountActiveByBook(ctx context.Context, bookID uint) (int64, error)
}

// Cache 图书详情缓存端口(cache-aside)
// 教学要点：
// 1. 读路径：Get未命中→查库→Set回填
// 2. 写路径：只Invalidate，绝不更新缓存
//    (更新缓存与并发写竞争时会留下旧值，删除最多造成一次回源)
// 3. 缓存故障降级为直查数据库，Get/Set出错不影响业务
type Cache interface {
	Get(ctx context.Context, bookID uint) (*book.Book, error)
	Set(ctx context.Context, b *book.Book) error
	Invalidate(ctx context.Context, bookID uint) error
}
