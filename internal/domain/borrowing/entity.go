package borrowing

import (
	"time"
)

// Status 借阅状态
// 教学要点：
// 1. 使用string类型存储（与排队状态保持一致，便于排查问题）
// 2. 定义为类型别名，便于添加方法
type Status string

const (
	StatusBorrowed Status = "borrowed" // 借出中
	StatusReturned Status = "returned" // 已归还
	StatusOverdue  Status = "overdue"  // 已逾期（仍未归还）
	StatusLost     Status = "lost"     // 挂失
	StatusDamaged  Status = "damaged"  // 损毁
)

// IsActive 是否为"在借"状态（占用一个副本）
// borrowed和overdue都占着副本，同一用户对同一本书最多只能有一条在借记录
func (s Status) IsActive() bool {
	return s == StatusBorrowed || s == StatusOverdue
}

// String 实现Stringer接口（方便日志输出）
func (s Status) String() string {
	return string(s)
}

// DefaultLoanPeriod 默认借期
const DefaultLoanPeriod = 14 * 24 * time.Hour

// Borrowing 借阅记录实体（聚合根）
// 教学要点：
// 1. 一条记录对应一次借阅，归还后记录保留（审计追踪，永不物理删除）
// 2. ReturnDate为指针：未归还时为nil
// 3. 副本数的增减不在实体上：必须与本记录的状态变更在同一事务内完成
type Borrowing struct {
	ID         uint
	UserID     uint      // 借阅人
	BookID     uint      // 图书
	BorrowDate time.Time // 借出时间
	DueDate    time.Time // 应还时间
	ReturnDate *time.Time // 实际归还时间（未归还为nil）
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewBorrowing 创建新借阅记录（工厂方法）
// 借出时间为now，应还时间为now+14天，初始状态borrowed
func NewBorrowing(userID, bookID uint, now time.Time) *Borrowing {
	return &Borrowing{
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: now,
		DueDate:    now.Add(DefaultLoanPeriod),
		Status:     StatusBorrowed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CanTransitionTo 检查是否可以转换到目标状态
// 教学要点：状态机设计，防止非法状态跳转
// returned是终态；lost/damaged可以被归还流程修正（找回、赔付后归档）
func (b *Borrowing) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusBorrowed: {StatusReturned, StatusOverdue, StatusLost, StatusDamaged},
		StatusOverdue:  {StatusReturned, StatusLost, StatusDamaged},
		StatusLost:     {StatusReturned},
		StatusDamaged:  {StatusReturned},
		StatusReturned: {}, // 终态
	}

	allowed, exists := transitions[b.Status]
	if !exists {
		return false
	}

	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// MarkReturned 归还（领域行为）
// 业务规则：
// 1. 已归还的记录不能再次归还（防止重复加回副本数）
// 2. 归还时间不能早于借出时间
func (b *Borrowing) MarkReturned(now time.Time) error {
	if b.Status == StatusReturned {
		return ErrAlreadyReturned
	}
	if !b.CanTransitionTo(StatusReturned) {
		return ErrInvalidStatusChange
	}
	if now.Before(b.BorrowDate) {
		now = b.BorrowDate
	}
	b.Status = StatusReturned
	b.ReturnDate = &now
	b.UpdatedAt = now
	return nil
}

// MarkOverdue 标记逾期（领域行为，逾期巡检调用）
func (b *Borrowing) MarkOverdue(now time.Time) error {
	if b.Status != StatusBorrowed {
		return ErrInvalidStatusChange
	}
	if !now.After(b.DueDate) {
		return ErrNotYetDue
	}
	b.Status = StatusOverdue
	b.UpdatedAt = now
	return nil
}

// IsOverdue 是否已过应还时间（不论状态是否已被巡检标记）
func (b *Borrowing) IsOverdue(now time.Time) bool {
	return b.Status.IsActive() && now.After(b.DueDate)
}

// IsOwnedBy 检查借阅记录是否属于指定用户
func (b *Borrowing) IsOwnedBy(userID uint) bool {
	return b.UserID == userID
}
