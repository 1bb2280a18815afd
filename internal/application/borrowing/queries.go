package borrowing

import (
	"context"
	"time"

	"github.com/xiebiao/library/internal/domain/borrowing"
	apperrors "github.com/xiebiao/library/pkg/errors"
)

// BorrowingView 借阅记录视图DTO
type BorrowingView struct {
	BorrowingID uint   `json:"borrowing_id"`
	UserID      uint   `json:"user_id"`
	BookID      uint   `json:"book_id"`
	Status      string `json:"status"`
	BorrowDate  string `json:"borrow_date"`
	DueDate     string `json:"due_date"`
	ReturnDate  string `json:"return_date,omitempty"`
	Overdue     bool   `json:"overdue"` // 按当前时间实时计算，不依赖巡检
}

func toBorrowingView(b *borrowing.Borrowing, now time.Time) *BorrowingView {
	view := &BorrowingView{
		BorrowingID: b.ID,
		UserID:      b.UserID,
		BookID:      b.BookID,
		Status:      string(b.Status),
		BorrowDate:  b.BorrowDate.Format(time.RFC3339),
		DueDate:     b.DueDate.Format(time.RFC3339),
		Overdue:     b.IsOverdue(now),
	}
	if b.ReturnDate != nil {
		view.ReturnDate = b.ReturnDate.Format(time.RFC3339)
	}
	return view
}

func toBorrowingViews(items []*borrowing.Borrowing, now time.Time) []*BorrowingView {
	views := make([]*BorrowingView, len(items))
	for i, b := range items {
		views[i] = toBorrowingView(b, now)
	}
	return views
}

// QueryBorrowingsUseCase 借阅查询用例（读侧，不走事务）
type QueryBorrowingsUseCase struct {
	borrowingRepo borrowing.Repository
	sweeper       *SweepOverdueUseCase
}

// NewQueryBorrowingsUseCase 创建借阅查询用例
func NewQueryBorrowingsUseCase(
	borrowingRepo borrowing.Repository,
	sweeper *SweepOverdueUseCase,
) *QueryBorrowingsUseCase {
	return &QueryBorrowingsUseCase{
		borrowingRepo: borrowingRepo,
		sweeper:       sweeper,
	}
}

// GetByID 查询单条借阅记录
// 普通读者只能看自己的，馆员不受限
func (uc *QueryBorrowingsUseCase) GetByID(ctx context.Context, id, viewerID uint, isStaff bool) (*BorrowingView, error) {
	b, err := uc.borrowingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !isStaff && !b.IsOwnedBy(viewerID) {
		return nil, apperrors.ErrForbidden
	}

	return toBorrowingView(b, time.Now()), nil
}

// UserHistoryResponse 用户借阅历史（当前在借与历史分列）
type UserHistoryResponse struct {
	Current []*BorrowingView `json:"current"` // 在借（含逾期），按应还时间升序
	Past    []*BorrowingView `json:"past"`    // 已归还，按归还时间倒序
}

// UserHistory 查询某用户的借阅情况
func (uc *QueryBorrowingsUseCase) UserHistory(ctx context.Context, userID uint) (*UserHistoryResponse, error) {
	current, err := uc.borrowingRepo.ListByUser(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	past, err := uc.borrowingRepo.ListByUser(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &UserHistoryResponse{
		Current: toBorrowingViews(current, now),
		Past:    toBorrowingViews(past, now),
	}, nil
}

// BookHistory 查询某本书的全部借阅历史（馆员视图）
func (uc *QueryBorrowingsUseCase) BookHistory(ctx context.Context, bookID uint) ([]*BorrowingView, error) {
	items, err := uc.borrowingRepo.ListByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return toBorrowingViews(items, time.Now()), nil
}

// ListOverdue 查询逾期记录（馆员视图）
// 列表前先懒巡检一轮：刚过应还时间、还没被定时器扫到的记录也会出现在结果里
func (uc *QueryBorrowingsUseCase) ListOverdue(ctx context.Context) ([]*BorrowingView, error) {
	now := time.Now()
	if uc.sweeper != nil {
		if _, err := uc.sweeper.Execute(ctx, now); err != nil {
			return nil, err
		}
	}

	items, err := uc.borrowingRepo.ListOverdue(ctx)
	if err != nil {
		return nil, err
	}
	return toBorrowingViews(items, now), nil
}

// ListParams 馆员条件查询参数
type ListParams struct {
	UserID      uint
	BookID      uint
	Status      string
	OverdueOnly bool
	SortBy      string
	SortOrder   string
	Page        int
	PageSize    int
}

// List 条件分页查询（馆员视图）
func (uc *QueryBorrowingsUseCase) List(ctx context.Context, params ListParams) ([]*BorrowingView, int64, error) {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.PageSize <= 0 || params.PageSize > 100 {
		params.PageSize = 20
	}

	items, total, err := uc.borrowingRepo.List(ctx, borrowing.ListParams{
		UserID:      params.UserID,
		BookID:      params.BookID,
		Status:      borrowing.Status(params.Status),
		OverdueOnly: params.OverdueOnly,
		SortBy:      params.SortBy,
		SortOrder:   params.SortOrder,
		Page:        params.Page,
		PageSize:    params.PageSize,
	})
	if err != nil {
		return nil, 0, err
	}

	return toBorrowingViews(items, time.Now()), total, nil
}
