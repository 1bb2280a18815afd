package borrowing

import (
	"context"
	"log"
	"time"

	"github.com/xiebiao/library/internal/domain/book"
	"github.com/xiebiao/library/internal/domain/borrowing"
	"github.com/xiebiao/library/internal/domain/waitlist"
	"github.com/xiebiao/library/pkg/metrics"
	"github.com/xiebiao/library/pkg/tracing"
)

// BorrowBookUseCase 借出用例
// 教学要点：这是整个项目最核心的用例
// 涉及：事务处理、并发控制、排队入队的幂等性
type BorrowBookUseCase struct {
	bookRepo      book.Repository
	borrowingRepo borrowing.Repository
	waitlistRepo  waitlist.Repository
	txManager     TxManager
	cache         BookCacheInvalidator
}

// NewBorrowBookUseCase 创建借出用例
func NewBorrowBookUseCase(
	bookRepo book.Repository,
	borrowingRepo borrowing.Repository,
	waitlistRepo waitlist.Repository,
	txManager TxManager,
	cache BookCacheInvalidator,
) *BorrowBookUseCase {
	return &BorrowBookUseCase{
		bookRepo:      bookRepo,
		borrowingRepo: borrowingRepo,
		waitlistRepo:  waitlistRepo,
		txManager:     txManager,
		cache:         cache,
	}
}

// BorrowBookRequest 借出请求DTO
type BorrowBookRequest struct {
	UserID uint // 读者ID(从JWT中提取)
	BookID uint // 图书ID
}

// BorrowBookResponse 借出响应DTO
type BorrowBookResponse struct {
	BorrowingID uint   `json:"borrowing_id"`
	BookID      uint   `json:"book_id"`
	Status      string `json:"status"`
	BorrowDate  string `json:"borrow_date"`
	DueDate     string `json:"due_date"`
}

// Execute 执行借出用例
// 教学重点：防止超借的完整流程
//
// 核心问题：最后一本被借穿
// 场景：某书只剩1个可借副本，两个读者同时点借阅
// 错误实现：
//  1. 查询可借数 → 1
//  2. 判断够不够 → 够
//  3. 扣减可借数 → available = available - 1
//     结果：两个请求都通过了步骤2，可借数变成-1(借出了不存在的副本!)
//
// 正确实现：悲观锁串行化同一本书上的决策
//  1. SELECT FOR UPDATE 锁定图书行
//  2. 无可借副本 → 幂等入队，返回ErrBookUnavailable
//  3. 已有未归还的同书借阅 → 返回ErrDuplicateLoan
//  4. 守卫UPDATE扣减可借数 + 插入借阅记录（应还=now+14天）
//  5. COMMIT释放锁，第二个读者重新走到步骤2，进排队
func (uc *BorrowBookUseCase) Execute(ctx context.Context, req BorrowBookRequest) (*BorrowBookResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "library", "BorrowBook")
	defer span.End()

	start := time.Now()

	var result *borrowing.Borrowing
	var unavailable bool
	err := uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		// ========================================
		// 步骤1：锁定图书行（悲观锁，串行化同书决策）
		// ========================================
		// LockByID执行：SELECT * FROM books WHERE id = ? FOR UPDATE
		// 其他事务必须等当前事务COMMIT或ROLLBACK后才能访问该行
		b, err := uc.bookRepo.LockByID(txCtx, req.BookID)
		if err != nil {
			return err
		}

		// ========================================
		// 步骤2：无可借副本 → 幂等入队
		// ========================================
		// 教学要点：必须在锁定后检查，锁内看到的可借数才是当下的真值
		if !b.IsAvailable() {
			if err := uc.enqueue(txCtx, req.UserID, req.BookID); err != nil {
				return err
			}
			// 注意：这里不能返回错误，返回错误事务回滚，入队也会被一起回滚
			// 先记标记让事务正常提交，提交后再向调用方报"无可借副本"
			unavailable = true
			return nil
		}

		// ========================================
		// 步骤3：重复借阅检查
		// ========================================
		// 同一读者对同一本书最多一条在借记录
		active, err := uc.borrowingRepo.FindActiveLoan(txCtx, req.UserID, req.BookID)
		if err != nil {
			return err
		}
		if active != nil {
			return borrowing.ErrDuplicateLoan
		}

		// ========================================
		// 步骤4：扣减可借数（守卫UPDATE，数据库层兜底不为负）
		// ========================================
		if err := uc.bookRepo.UpdateAvailable(txCtx, req.BookID, -1); err != nil {
			return err
		}

		// ========================================
		// 步骤5：插入借阅记录（应还=now+14天）
		// ========================================
		newBorrowing := borrowing.NewBorrowing(req.UserID, req.BookID, time.Now())
		if err := uc.borrowingRepo.Create(txCtx, newBorrowing); err != nil {
			return err
		}

		result = newBorrowing
		return nil
	})

	metrics.ObserveHistogram(metrics.BorrowDuration, time.Since(start).Seconds())

	if err != nil {
		uc.countFailure(err)
		return nil, err
	}

	if unavailable {
		// 入队已提交，向调用方返回业务错误（已为您加入排队）
		uc.countFailure(book.ErrNoAvailableCopy)
		return nil, book.ErrNoAvailableCopy
	}

	metrics.IncCounterVec(metrics.BorrowsTotal, map[string]string{"result": "success"})

	// 可借数变了，失效缓存（失败只记日志，下次读回源即可）
	uc.invalidateCache(ctx, req.BookID)

	return &BorrowBookResponse{
		BorrowingID: result.ID,
		BookID:      result.BookID,
		Status:      string(result.Status),
		BorrowDate:  result.BorrowDate.Format(time.RFC3339),
		DueDate:     result.DueDate.Format(time.RFC3339),
	}, nil
}

// enqueue 幂等入队：已有PENDING记录则复用，没有才插入
// 教学要点：图书行锁把同一本书上的入队串行化了，
// 先查后插在锁内不会出现重复PENDING
func (uc *BorrowBookUseCase) enqueue(ctx context.Context, userID, bookID uint) error {
	existing, err := uc.waitlistRepo.FindPending(ctx, userID, bookID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil // 已在队中，复用原有位次
	}

	entry := waitlist.NewEntry(userID, bookID, time.Now())
	if err := uc.waitlistRepo.Create(ctx, entry); err != nil {
		return err
	}

	metrics.IncCounter(metrics.WaitlistEnqueuedTotal)
	return nil
}

func (uc *BorrowBookUseCase) countFailure(err error) {
	switch err {
	case book.ErrNoAvailableCopy:
		metrics.IncCounterVec(metrics.BorrowsTotal, map[string]string{"result": "unavailable"})
	case borrowing.ErrDuplicateLoan:
		metrics.IncCounterVec(metrics.BorrowsTotal, map[string]string{"result": "duplicate"})
	default:
		metrics.IncCounterVec(metrics.BorrowsTotal, map[string]string{"result": "error"})
	}
}

func (uc *BorrowBookUseCase) invalidateCache(ctx context.Context, bookID uint) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Invalidate(ctx, bookID); err != nil {
		log.Printf("⚠️ 图书缓存失效失败: book_id=%d, err=%v", bookID, err)
	}
}
