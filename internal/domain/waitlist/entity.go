package waitlist

import (
	"time"
)

// Status 排队请求状态
type Status string

const (
	StatusPending   Status = "PENDING"   // 等待中
	StatusFulfilled Status = "FULFILLED" // 已出队并通知（终态）
	StatusCancelled Status = "CANCELLED" // 用户主动撤销（终态）
)

// String 实现Stringer接口
func (s Status) String() string {
	return string(s)
}

// IsTerminal 是否为终态
func (s Status) IsTerminal() bool {
	return s == StatusFulfilled || s == StatusCancelled
}

// Entry 排队请求实体
// 教学要点：
// 1. 同一用户对同一本书最多只有一条PENDING记录（入队幂等）
// 2. 同一本书内严格FIFO：按(request_date, request_id)排序，
//    request_id自增作为同一时刻的平局裁决，FIFO始终良定义
// 3. NotificationSent与状态流转在出队事务内一起落库，
//    一次归还最多出队一条，不会重复通知同一个空位
type Entry struct {
	ID               uint // request_id
	BookID           uint
	UserID           uint
	RequestDate      time.Time
	Status           Status
	NotificationSent bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewEntry 创建排队请求（工厂方法）
func NewEntry(userID, bookID uint, now time.Time) *Entry {
	return &Entry{
		BookID:      bookID,
		UserID:      userID,
		RequestDate: now,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Fulfill 出队（领域行为）
// PENDING → FULFILLED，同时记录通知已发出
func (e *Entry) Fulfill(now time.Time) error {
	if e.Status != StatusPending {
		return ErrNotPending
	}
	e.Status = StatusFulfilled
	e.NotificationSent = true
	e.UpdatedAt = now
	return nil
}

// Cancel 用户撤销排队（领域行为）
// PENDING → CANCELLED；只有本人可以撤销，归属校验在用例层
func (e *Entry) Cancel(now time.Time) error {
	if e.Status != StatusPending {
		return ErrNotPending
	}
	e.Status = StatusCancelled
	e.UpdatedAt = now
	return nil
}

// IsOwnedBy 检查排队请求是否属于指定用户
func (e *Entry) IsOwnedBy(userID uint) bool {
	return e.UserID == userID
}
