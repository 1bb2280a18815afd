package borrowing

import (
	"context"
	"time"
)

// Repository 借阅仓储接口
// 设计说明：
// 1. 借出/归还路径的方法必须在TxManager事务内调用（context携带事务DB）
// 2. 查询路径（历史、列表）不要求事务
type Repository interface {
	// Create 创建借阅记录（借出事务内调用）
	Create(ctx context.Context, b *Borrowing) error

	// FindByID 根据ID查找借阅记录
	FindByID(ctx context.Context, id uint) (*Borrowing, error)

	// LockByID 悲观锁查询借阅记录（归还事务的入口）
	// 防止并发归还同一条记录导致副本数被重复加回
	LockByID(ctx context.Context, id uint) (*Borrowing, error)

	// FindActiveLoan 查找某用户对某书的在借记录(borrowed|overdue)
	// 不存在时返回(nil, nil)，借出事务内用于唯一在借约束检查
	FindActiveLoan(ctx context.Context, userID, bookID uint) (*Borrowing, error)

	// Update 更新借阅记录（状态、归还时间等）
	Update(ctx context.Context, b *Borrowing) error

	// MarkOverdueBefore 批量把到期未还的记录标记为overdue
	// 单条守卫UPDATE(status='borrowed' AND due_date < now)，天然幂等，
	// 返回本次实际转换的行数
	MarkOverdueBefore(ctx context.Context, now time.Time) (int64, error)

	// ListByUser 查询用户的借阅记录，按在借/历史分组排序
	// activeOnly=true时只返回在借记录（按应还时间升序）,
	// 否则返回已归还记录（按归还时间倒序）
	ListByUser(ctx context.Context, userID uint, activeOnly bool) ([]*Borrowing, error)

	// CountActiveByBook 统计某本书的在借(borrowed|overdue)记录数
	// 删除图书前检查：尚有在借副本的书不能删
	CountActiveByBook(ctx context.Context, bookID uint) (int64, error)

	// ListByBook 查询某本书的全部借阅历史（按借出时间倒序）
	ListByBook(ctx context.Context, bookID uint) ([]*Borrowing, error)

	// ListOverdue 查询全部逾期记录（按应还时间升序）
	ListOverdue(ctx context.Context) ([]*Borrowing, error)

	// List 条件分页查询（馆员视图）
	List(ctx context.Context, params ListParams) ([]*Borrowing, int64, error)
}

// ListParams 借阅列表查询参数
type ListParams struct {
	UserID      uint   // 0表示不过滤
	BookID      uint   // 0表示不过滤
	Status      Status // 空表示不过滤
	OverdueOnly bool   // 只看逾期
	SortBy      string // borrow_date | due_date | return_date
	SortOrder   string // asc | desc
	Page        int
	PageSize    int
}
