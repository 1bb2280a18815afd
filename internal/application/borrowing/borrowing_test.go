package borrowing

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/library/internal/domain/book"
	"github.com/xiebiao/library/internal/domain/borrowing"
	"github.com/xiebiao/library/internal/domain/waitlist"
	apperrors "github.com/xiebiao/library/pkg/errors"
	"github.com/xiebiao/library/pkg/metrics"
)

func TestMain(m *testing.M) {
	// 用例内部会更新Prometheus指标，先注册再跑测试
	metrics.InitMetrics()
	os.Exit(m.Run())
}

// env 一组装配好的用例和假件，每个测试独立一套
type env struct {
	bookRepo      *fakeBookRepo
	borrowingRepo *fakeBorrowingRepo
	waitlistRepo  *fakeWaitlistRepo
	txManager     *fakeTxManager
	publisher     *fakePublisher
	dispatcher    *fakeDispatcher

	borrow  *BorrowBookUseCase
	ret     *ReturnBookUseCase
	process *ProcessReturnUseCase
	sweep   *SweepOverdueUseCase
	cancel  *CancelWaitlistUseCase
}

func newEnv(books ...*book.Book) *env {
	e := &env{
		bookRepo:      newFakeBookRepo(books...),
		borrowingRepo: newFakeBorrowingRepo(),
		waitlistRepo:  newFakeWaitlistRepo(),
		txManager:     &fakeTxManager{},
		publisher:     &fakePublisher{},
		dispatcher:    &fakeDispatcher{},
	}
	e.borrow = NewBorrowBookUseCase(e.bookRepo, e.borrowingRepo, e.waitlistRepo, e.txManager, nil)
	e.ret = NewReturnBookUseCase(e.bookRepo, e.borrowingRepo, e.txManager, e.publisher, nil)
	e.process = NewProcessReturnUseCase(e.waitlistRepo, e.txManager, e.dispatcher)
	e.sweep = NewSweepOverdueUseCase(e.borrowingRepo)
	e.cancel = NewCancelWaitlistUseCase(e.waitlistRepo, e.txManager)
	return e
}

func testBook(id uint, total, available int) *book.Book {
	return &book.Book{
		ID:              id,
		ISBN:            "9787111111111",
		Title:           "Go语言实战",
		Author:          "张三",
		TotalCopies:     total,
		AvailableCopies: available,
	}
}

// ==================== 借出 ====================

func TestBorrowBook_Success(t *testing.T) {
	e := newEnv(testBook(1, 3, 3))
	ctx := context.Background()

	resp, err := e.borrow.Execute(ctx, BorrowBookRequest{UserID: 10, BookID: 1})
	require.NoError(t, err)
	require.NotNil(t, resp)

	// 可借数扣减
	b, err := e.bookRepo.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, b.AvailableCopies)

	// 借阅记录：borrowed，应还时间=借出+14天
	loan, err := e.borrowingRepo.FindByID(ctx, resp.BorrowingID)
	require.NoError(t, err)
	assert.Equal(t, borrowing.StatusBorrowed, loan.Status)
	assert.Equal(t, loan.BorrowDate.Add(14*24*time.Hour), loan.DueDate)
	assert.Nil(t, loan.ReturnDate)
}

func TestBorrowBook_BookNotFound(t *testing.T) {
	e := newEnv()

	_, err := e.borrow.Execute(context.Background(), BorrowBookRequest{UserID: 10, BookID: 99})
	assert.ErrorIs(t, err, book.ErrBookNotFound)
}

func TestBorrowBook_DuplicateActiveLoan(t *testing.T) {
	e := newEnv(testBook(1, 3, 3))
	ctx := context.Background()

	_, err := e.borrow.Execute(ctx, BorrowBookRequest{UserID: 10, BookID: 1})
	require.NoError(t, err)

	// 同一用户对同一本书已有在借记录，再借被拒
	_, err = e.borrow.Execute(ctx, BorrowBookRequest{UserID: 10, BookID: 1})
	assert.ErrorIs(t, err, borrowing.ErrDuplicateLoan)

	// 被拒的请求不扣副本数
	b, _ := e.bookRepo.FindByID(ctx, 1)
	assert.Equal(t, 2, b.AvailableCopies)
}

func TestBorrowBook_Unavailable_EnqueuesWaitlist(t *testing.T) {
	e := newEnv(testBook(1, 2, 0))
	ctx := context.Background()

	_, err := e.borrow.Execute(ctx, BorrowBookRequest{UserID: 10, BookID: 1})
	assert.ErrorIs(t, err, book.ErrNoAvailableCopy)

	// 借出失败，但排队入队已提交
	entry, err := e.waitlistRepo.FindPending(ctx, 10, 1)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, waitlist.StatusPending, entry.Status)
	assert.False(t, entry.NotificationSent)
}

func TestBorrowBook_EnqueueIdempotent(t *testing.T) {
	e := newEnv(testBook(1, 1, 0))
	ctx := context.Background()

	// 同一用户反复点"借阅"，排队记录只有一条
	for i := 0; i < 3; i++ {
		_, err := e.borrow.Execute(ctx, BorrowBookRequest{UserID: 10, BookID: 1})
		assert.ErrorIs(t, err, book.ErrNoAvailableCopy)
	}

	entries, err := e.waitlistRepo.ListByBook(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// TestBorrowBook_LastCopyConcurrent 并发抢最后一个副本
// 两个读者同时借，必须恰好一人成功、一人入队，可借数不得为负
func TestBorrowBook_LastCopyConcurrent(t *testing.T) {
	e := newEnv(testBook(1, 1, 1))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			userID := uint(100 + idx)
			_, errs[idx] = e.borrow.Execute(ctx, BorrowBookRequest{UserID: userID, BookID: 1})
		}(i)
	}
	wg.Wait()

	var succeeded, unavailable int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case err == book.ErrNoAvailableCopy:
			unavailable++
		default:
			t.Fatalf("意外错误: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded, "恰好一人借到")
	assert.Equal(t, 1, unavailable, "另一人拿到不可借")

	b, _ := e.bookRepo.FindByID(ctx, 1)
	assert.Equal(t, 0, b.AvailableCopies, "可借数不为负")

	// 失败的那位已经在排队
	entries, _ := e.waitlistRepo.ListByBook(ctx, 1)
	assert.Len(t, entries, 1)
}

// ==================== 归还 ====================

func borrowOnce(t *testing.T, e *env, userID, bookID uint) uint {
	t.Helper()
	resp, err := e.borrow.Execute(context.Background(), BorrowBookRequest{UserID: userID, BookID: bookID})
	require.NoError(t, err)
	return resp.BorrowingID
}

func TestReturnBook_Success(t *testing.T) {
	e := newEnv(testBook(1, 2, 2))
	ctx := context.Background()
	loanID := borrowOnce(t, e, 10, 1)

	resp, err := e.ret.Execute(ctx, ReturnBookRequest{BorrowingID: loanID, UserID: 10})
	require.NoError(t, err)
	assert.Equal(t, string(borrowing.StatusReturned), resp.Status)

	// 副本加回
	b, _ := e.bookRepo.FindByID(ctx, 1)
	assert.Equal(t, 2, b.AvailableCopies)

	// 提交后发布归还事件
	events := e.publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, loanID, events[0].BorrowingID)
	assert.Equal(t, uint(1), events[0].BookID)
	assert.Equal(t, uint(10), events[0].UserID)
}

func TestReturnBook_AlreadyReturned(t *testing.T) {
	e := newEnv(testBook(1, 2, 2))
	ctx := context.Background()
	loanID := borrowOnce(t, e, 10, 1)

	_, err := e.ret.Execute(ctx, ReturnBookRequest{BorrowingID: loanID, UserID: 10})
	require.NoError(t, err)

	// 双击还书：第二次被状态机挡住，副本数不会加两次
	_, err = e.ret.Execute(ctx, ReturnBookRequest{BorrowingID: loanID, UserID: 10})
	assert.ErrorIs(t, err, borrowing.ErrAlreadyReturned)

	b, _ := e.bookRepo.FindByID(ctx, 1)
	assert.Equal(t, 2, b.AvailableCopies)

	// 重复归还不重复发事件
	assert.Len(t, e.publisher.published(), 1)
}

func TestReturnBook_ForbiddenForOtherUser(t *testing.T) {
	e := newEnv(testBook(1, 2, 2))
	ctx := context.Background()
	loanID := borrowOnce(t, e, 10, 1)

	// 普通读者不能替别人还书
	_, err := e.ret.Execute(ctx, ReturnBookRequest{BorrowingID: loanID, UserID: 20})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	// 馆员可以
	_, err = e.ret.Execute(ctx, ReturnBookRequest{BorrowingID: loanID, UserID: 20, IsStaff: true})
	assert.NoError(t, err)
}

func TestReturnBook_ClampAfterInventoryShrink(t *testing.T) {
	e := newEnv(testBook(1, 3, 3))
	ctx := context.Background()
	loanID := borrowOnce(t, e, 10, 1)

	// 盘点缩容：借出期间总副本数降为1，可借数已是1
	require.NoError(t, e.bookRepo.SetCopies(ctx, 1, 1, 1))

	// 归还不报错，可借数钳位在total，不会出现 available > total
	_, err := e.ret.Execute(ctx, ReturnBookRequest{BorrowingID: loanID, UserID: 10})
	require.NoError(t, err)

	b, _ := e.bookRepo.FindByID(ctx, 1)
	assert.Equal(t, 1, b.AvailableCopies)
	assert.Equal(t, 1, b.TotalCopies)
}

func TestReturnBook_OverdueCanStillReturn(t *testing.T) {
	e := newEnv(testBook(1, 1, 1))
	ctx := context.Background()
	loanID := borrowOnce(t, e, 10, 1)

	// 人为把借阅推成逾期
	loan, _ := e.borrowingRepo.FindByID(ctx, loanID)
	loan.DueDate = time.Now().Add(-48 * time.Hour)
	loan.Status = borrowing.StatusOverdue
	require.NoError(t, e.borrowingRepo.Update(ctx, loan))

	// 逾期记录照常归还
	resp, err := e.ret.Execute(ctx, ReturnBookRequest{BorrowingID: loanID, UserID: 10})
	require.NoError(t, err)
	assert.Equal(t, string(borrowing.StatusReturned), resp.Status)
}

// ==================== 归还事件处理（出队通知） ====================

func TestProcessReturn_NotifiesInFIFOOrder(t *testing.T) {
	e := newEnv(testBook(1, 1, 0))
	ctx := context.Background()

	// 三位读者先后排队
	base := time.Now().Add(-time.Hour)
	for i, userID := range []uint{31, 32, 33} {
		entry := waitlist.NewEntry(userID, 1, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, e.waitlistRepo.Create(ctx, entry))
	}

	// 三次归还事件，按排队顺序逐个出队
	for i := 0; i < 3; i++ {
		err := e.process.Handle(ctx, borrowing.ReturnedEvent{BookID: 1, ReturnedAt: time.Now()})
		require.NoError(t, err)
	}

	assert.Equal(t, []uint{31, 32, 33}, e.dispatcher.notifiedUsers())

	// 所有排队记录已履约
	pending, _ := e.waitlistRepo.ListByBook(ctx, 1)
	assert.Empty(t, pending)
}

func TestProcessReturn_EmptyQueueIsNoop(t *testing.T) {
	e := newEnv(testBook(1, 1, 1))

	err := e.process.Handle(context.Background(), borrowing.ReturnedEvent{BookID: 1, ReturnedAt: time.Now()})
	assert.NoError(t, err)
	assert.Empty(t, e.dispatcher.notifiedUsers())
}

func TestProcessReturn_SameInstantFIFOByID(t *testing.T) {
	e := newEnv(testBook(1, 1, 0))
	ctx := context.Background()

	// 同一时刻的两条排队，按request_id裁决先后
	now := time.Now()
	first := waitlist.NewEntry(41, 1, now)
	second := waitlist.NewEntry(42, 1, now)
	require.NoError(t, e.waitlistRepo.Create(ctx, first))
	require.NoError(t, e.waitlistRepo.Create(ctx, second))

	require.NoError(t, e.process.Handle(ctx, borrowing.ReturnedEvent{BookID: 1, ReturnedAt: now}))
	assert.Equal(t, []uint{41}, e.dispatcher.notifiedUsers())
}

// ==================== 逾期巡检 ====================

func TestSweepOverdue_MarksExpiredLoans(t *testing.T) {
	e := newEnv(testBook(1, 5, 5))
	ctx := context.Background()

	overdueID := borrowOnce(t, e, 10, 1)
	freshID := borrowOnce(t, e, 11, 1)

	// 把第一条的应还时间拨到过去
	loan, _ := e.borrowingRepo.FindByID(ctx, overdueID)
	loan.DueDate = time.Now().Add(-time.Hour)
	require.NoError(t, e.borrowingRepo.Update(ctx, loan))

	resp, err := e.sweep.Execute(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.MarkedCount)

	marked, _ := e.borrowingRepo.FindByID(ctx, overdueID)
	assert.Equal(t, borrowing.StatusOverdue, marked.Status)
	fresh, _ := e.borrowingRepo.FindByID(ctx, freshID)
	assert.Equal(t, borrowing.StatusBorrowed, fresh.Status)
}

func TestSweepOverdue_Idempotent(t *testing.T) {
	e := newEnv(testBook(1, 5, 5))
	ctx := context.Background()

	loanID := borrowOnce(t, e, 10, 1)
	loan, _ := e.borrowingRepo.FindByID(ctx, loanID)
	loan.DueDate = time.Now().Add(-time.Hour)
	require.NoError(t, e.borrowingRepo.Update(ctx, loan))

	first, err := e.sweep.Execute(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.MarkedCount)

	// 再跑一遍：已是overdue的不重复标记
	second, err := e.sweep.Execute(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.MarkedCount)
}

// ==================== 撤销排队 ====================

func TestCancelWaitlist_OwnerCancels(t *testing.T) {
	e := newEnv(testBook(1, 1, 0))
	ctx := context.Background()

	_, err := e.borrow.Execute(ctx, BorrowBookRequest{UserID: 10, BookID: 1})
	require.ErrorIs(t, err, book.ErrNoAvailableCopy)
	entry, _ := e.waitlistRepo.FindPending(ctx, 10, 1)
	require.NotNil(t, entry)

	require.NoError(t, e.cancel.Execute(ctx, entry.ID, 10))

	cancelled, _ := e.waitlistRepo.FindByID(ctx, entry.ID)
	assert.Equal(t, waitlist.StatusCancelled, cancelled.Status)

	// 撤销后不再占FIFO位置
	require.NoError(t, e.process.Handle(ctx, borrowing.ReturnedEvent{BookID: 1, ReturnedAt: time.Now()}))
	assert.Empty(t, e.dispatcher.notifiedUsers())
}

func TestCancelWaitlist_NotOwner(t *testing.T) {
	e := newEnv(testBook(1, 1, 0))
	ctx := context.Background()

	_, err := e.borrow.Execute(ctx, BorrowBookRequest{UserID: 10, BookID: 1})
	require.ErrorIs(t, err, book.ErrNoAvailableCopy)
	entry, _ := e.waitlistRepo.FindPending(ctx, 10, 1)

	err = e.cancel.Execute(ctx, entry.ID, 20)
	assert.ErrorIs(t, err, waitlist.ErrNotOwner)
}

func TestCancelWaitlist_AlreadyFulfilled(t *testing.T) {
	e := newEnv(testBook(1, 1, 0))
	ctx := context.Background()

	_, err := e.borrow.Execute(ctx, BorrowBookRequest{UserID: 10, BookID: 1})
	require.ErrorIs(t, err, book.ErrNoAvailableCopy)
	entry, _ := e.waitlistRepo.FindPending(ctx, 10, 1)

	// 归还事件先把这条排队履约掉
	require.NoError(t, e.process.Handle(ctx, borrowing.ReturnedEvent{BookID: 1, ReturnedAt: time.Now()}))

	// 已履约的排队不能再撤销
	err = e.cancel.Execute(ctx, entry.ID, 10)
	assert.ErrorIs(t, err, waitlist.ErrNotPending)

	// 终态不被撤销覆盖：读者已收到通知，记录保持FULFILLED
	after, _ := e.waitlistRepo.FindByID(ctx, entry.ID)
	assert.Equal(t, waitlist.StatusFulfilled, after.Status)
	assert.True(t, after.NotificationSent)
}
