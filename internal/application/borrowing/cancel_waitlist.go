package borrowing

import (
	"context"
	"time"

	"github.com/xiebiao/library/internal/domain/waitlist"
)

// CancelWaitlistUseCase 取消排队用例
// 教学要点：取消与出队竞争同一行
// 事务内锁定排队记录，出队先提交则这里看到FULFILLED，返回ErrNotPending
type CancelWaitlistUseCase struct {
	waitlistRepo waitlist.Repository
	txManager    TxManager
}

// NewCancelWaitlistUseCase 创建取消排队用例
func NewCancelWaitlistUseCase(waitlistRepo waitlist.Repository, txManager TxManager) *CancelWaitlistUseCase {
	return &CancelWaitlistUseCase{
		waitlistRepo: waitlistRepo,
		txManager:    txManager,
	}
}

// Execute 取消自己的排队记录
// 只有本人能取消，只有PENDING能取消
func (uc *CancelWaitlistUseCase) Execute(ctx context.Context, requestID, userID uint) error {
	return uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		entry, err := uc.waitlistRepo.LockByID(txCtx, requestID)
		if err != nil {
			return err
		}

		if !entry.IsOwnedBy(userID) {
			return waitlist.ErrNotOwner
		}

		if err := entry.Cancel(time.Now()); err != nil {
			return err
		}

		return uc.waitlistRepo.Update(txCtx, entry)
	})
}

// WaitlistEntryView 排队记录视图DTO
type WaitlistEntryView struct {
	RequestID        uint   `json:"request_id"`
	BookID           uint   `json:"book_id"`
	UserID           uint   `json:"user_id"`
	Status           string `json:"status"`
	RequestDate      string `json:"request_date"`
	NotificationSent bool   `json:"notification_sent"`
}

// QueryWaitlistUseCase 排队查询用例
type QueryWaitlistUseCase struct {
	waitlistRepo waitlist.Repository
}

// NewQueryWaitlistUseCase 创建排队查询用例
func NewQueryWaitlistUseCase(waitlistRepo waitlist.Repository) *QueryWaitlistUseCase {
	return &QueryWaitlistUseCase{waitlistRepo: waitlistRepo}
}

// ListByUser 查询自己的排队记录
func (uc *QueryWaitlistUseCase) ListByUser(ctx context.Context, userID uint) ([]*WaitlistEntryView, error) {
	entries, err := uc.waitlistRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toWaitlistViews(entries), nil
}

// ListByBook 查询某本书的等待队列（馆员视图，FIFO顺序）
func (uc *QueryWaitlistUseCase) ListByBook(ctx context.Context, bookID uint) ([]*WaitlistEntryView, error) {
	entries, err := uc.waitlistRepo.ListByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return toWaitlistViews(entries), nil
}

func toWaitlistViews(entries []*waitlist.Entry) []*WaitlistEntryView {
	views := make([]*WaitlistEntryView, len(entries))
	for i, e := range entries {
		views[i] = &WaitlistEntryView{
			RequestID:        e.ID,
			BookID:           e.BookID,
			UserID:           e.UserID,
			Status:           string(e.Status),
			RequestDate:      e.RequestDate.Format(time.RFC3339),
			NotificationSent: e.NotificationSent,
		}
	}
	return views
}
