package borrowing

import (
	"context"
	"log"
	"time"

	"github.com/xiebiao/library/internal/domain/book"
	"github.com/xiebiao/library/internal/domain/borrowing"
	apperrors "github.com/xiebiao/library/pkg/errors"
	"github.com/xiebiao/library/pkg/metrics"
	"github.com/xiebiao/library/pkg/tracing"
)

// ReturnBookUseCase 归还用例
// 教学要点：归还事务只做数据库的事，出队和通知走事件异步处理
// 好处：还书接口快速返回，推送链路故障不影响归还
type ReturnBookUseCase struct {
	bookRepo      book.Repository
	borrowingRepo borrowing.Repository
	txManager     TxManager
	publisher     EventPublisher
	cache         BookCacheInvalidator
}

// NewReturnBookUseCase 创建归还用例
func NewReturnBookUseCase(
	bookRepo book.Repository,
	borrowingRepo borrowing.Repository,
	txManager TxManager,
	publisher EventPublisher,
	cache BookCacheInvalidator,
) *ReturnBookUseCase {
	return &ReturnBookUseCase{
		bookRepo:      bookRepo,
		borrowingRepo: borrowingRepo,
		txManager:     txManager,
		publisher:     publisher,
		cache:         cache,
	}
}

// ReturnBookRequest 归还请求DTO
type ReturnBookRequest struct {
	BorrowingID uint // 借阅记录ID
	UserID      uint // 操作者ID(从JWT中提取)
	IsStaff     bool // 馆员可代任何读者归还
}

// ReturnBookResponse 归还响应DTO
type ReturnBookResponse struct {
	BorrowingID uint   `json:"borrowing_id"`
	BookID      uint   `json:"book_id"`
	Status      string `json:"status"`
	ReturnDate  string `json:"return_date"`
}

// Execute 执行归还用例
// 教学重点：重复归还的防护
//
// 场景：读者双击还书按钮，两个归还请求并发到达
// 错误实现：读状态→改状态→加回副本数，两个请求都读到"borrowed",
// 副本数被加回两次，凭空多出一个副本
//
// 正确实现：
//  1. SELECT FOR UPDATE 锁定借阅记录行
//  2. 已归还 → 返回ErrAlreadyReturned(后到的请求在这里被挡住)
//  3. 状态机流转到returned + 记录归还时间
//  4. 守卫UPDATE加回可借数（available+1不得超过total，数据库层兜底）
//  5. COMMIT后发布borrowing.returned事件（发布失败只记日志）
func (uc *ReturnBookUseCase) Execute(ctx context.Context, req ReturnBookRequest) (*ReturnBookResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "library", "ReturnBook")
	defer span.End()

	var result *borrowing.Borrowing
	err := uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		// 步骤1：锁定借阅记录
		b, err := uc.borrowingRepo.LockByID(txCtx, req.BorrowingID)
		if err != nil {
			return err
		}

		// 普通读者只能归还自己的借阅
		if !req.IsStaff && !b.IsOwnedBy(req.UserID) {
			return apperrors.ErrForbidden
		}

		// 步骤2+3：状态机流转（已归还时MarkReturned返回ErrAlreadyReturned）
		if err := b.MarkReturned(time.Now()); err != nil {
			return err
		}

		if err := uc.borrowingRepo.Update(txCtx, b); err != nil {
			return err
		}

		// 步骤4：加回可借数（越界时静默截断，盘点缩容后归还不报错）
		if err := uc.bookRepo.UpdateAvailable(txCtx, b.BookID, 1); err != nil {
			return err
		}

		result = b
		return nil
	})

	if err != nil {
		uc.countFailure(err)
		return nil, err
	}

	metrics.IncCounterVec(metrics.ReturnsTotal, map[string]string{"result": "success"})

	uc.invalidateCache(ctx, result.BookID)

	// 步骤5：事务提交后发布归还事件
	// 火后即忘：发布失败只记日志，绝不让已提交的归还"失败"
	if uc.publisher != nil {
		event := borrowing.ReturnedEvent{
			BorrowingID: result.ID,
			BookID:      result.BookID,
			UserID:      result.UserID,
			ReturnedAt:  *result.ReturnDate,
		}
		if err := uc.publisher.PublishReturned(ctx, event); err != nil {
			log.Printf("⚠️ 归还事件发布失败: borrowing_id=%d, err=%v", result.ID, err)
		} else {
			metrics.IncCounterVec(metrics.MessagesPublishedTotal,
				map[string]string{"routing_key": borrowing.RoutingKeyReturned})
		}
	}

	return &ReturnBookResponse{
		BorrowingID: result.ID,
		BookID:      result.BookID,
		Status:      string(result.Status),
		ReturnDate:  result.ReturnDate.Format(time.RFC3339),
	}, nil
}

func (uc *ReturnBookUseCase) countFailure(err error) {
	switch err {
	case borrowing.ErrAlreadyReturned:
		metrics.IncCounterVec(metrics.ReturnsTotal, map[string]string{"result": "already_returned"})
	default:
		metrics.IncCounterVec(metrics.ReturnsTotal, map[string]string{"result": "error"})
	}
}

func (uc *ReturnBookUseCase) invalidateCache(ctx context.Context, bookID uint) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Invalidate(ctx, bookID); err != nil {
		log.Printf("⚠️ 图书缓存失效失败: book_id=%d, err=%v", bookID, err)
	}
}
