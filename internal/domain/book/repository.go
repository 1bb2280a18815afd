package book

import (
	"context"
)

// Repository 图书仓储接口（依赖倒置原则）
// 设计说明：
// 1. 由domain层定义接口，infrastructure层实现
// 2. 便于Mock测试，不依赖具体数据库实现
// 3. 副本数的增减必须走带守卫条件的原子UPDATE，不允许读出再写回
type Repository interface {
	// Create 创建图书
	Create(ctx context.Context, book *Book) error

	// FindByID 根据ID查找图书
	FindByID(ctx context.Context, id uint) (*Book, error)

	// FindByISBN 根据ISBN查找图书
	FindByISBN(ctx context.Context, isbn string) (*Book, error)

	// Update 更新图书描述性信息（标题、作者等）
	// 不写副本数：副本数只经UpdateAvailable/SetCopies在事务内变更，
	// 避免用过期快照覆盖并发借还的扣减
	Update(ctx context.Context, book *Book) error

	// Delete 删除图书（下架，调用方需保证没有在借副本）
	Delete(ctx context.Context, id uint) error

	// List 分页查询图书列表
	List(ctx context.Context, params ListParams) ([]*Book, int64, error)

	// LockByID 悲观锁查询图书（借还副本数变更的临界区入口）
	// 使用SELECT FOR UPDATE锁定行，同一本书的借/还/盘点串行化
	LockByID(ctx context.Context, id uint) (*Book, error)

	// UpdateAvailable 变更可借副本数（原子操作）
	// delta为-1表示借出，+1表示归还
	// 内部守卫条件保证 0 <= available_copies <= total_copies 永不被破坏：
	// 借出时available不足返回ErrNoAvailableCopy，归还时达到上限则静默钳位
	UpdateAvailable(ctx context.Context, id uint, delta int) error

	// SetCopies 盘点时同时落库总副本数与重算后的可借数（事务内调用）
	SetCopies(ctx context.Context, id uint, total, available int) error
}

// ListParams 列表查询参数
type ListParams struct {
	Page          int    // 页码（从1开始）
	PageSize      int    // 每页数量
	Keyword       string // 搜索关键词（搜索标题、作者、出版社）
	AvailableOnly bool   // 只看有可借副本的图书
	SortBy        string // 排序字段(title_asc, created_at_desc)
}
