package borrowing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xiebiao/library/internal/domain/book"
	"github.com/xiebiao/library/internal/domain/borrowing"
	"github.com/xiebiao/library/internal/domain/notification"
	"github.com/xiebiao/library/internal/domain/waitlist"
)

// =========================================
// 测试假件：内存仓储 + 串行化事务
// 教学要点：用例只依赖接口，单元测试不需要MySQL，
// 假事务管理器用互斥锁把"事务"串行化，
// 语义上等价于所有事务都抢同一把行锁
// =========================================

// fakeTxManager 串行化的假事务管理器
type fakeTxManager struct {
	mu sync.Mutex
}

func (m *fakeTxManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

// fakeBookRepo 内存图书仓储
type fakeBookRepo struct {
	mu    sync.Mutex
	books map[uint]*book.Book
}

func newFakeBookRepo(books ...*book.Book) *fakeBookRepo {
	repo := &fakeBookRepo{books: make(map[uint]*book.Book)}
	for _, b := range books {
		copied := *b
		repo.books[b.ID] = &copied
	}
	return repo
}

func (r *fakeBookRepo) Create(ctx context.Context, b *book.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.ID = uint(len(r.books) + 1)
	copied := *b
	r.books[b.ID] = &copied
	return nil
}

func (r *fakeBookRepo) FindByID(ctx context.Context, id uint) (*book.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return nil, book.ErrBookNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *fakeBookRepo) FindByISBN(ctx context.Context, isbn string) (*book.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.books {
		if b.ISBN == isbn {
			copied := *b
			return &copied, nil
		}
	}
	return nil, book.ErrBookNotFound
}

func (r *fakeBookRepo) Update(ctx context.Context, b *book.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.books[b.ID]
	if !ok {
		return book.ErrBookNotFound
	}
	// 只写描述性列，副本数不从快照回写（与MySQL实现的列白名单一致）
	stored.ISBN = b.ISBN
	stored.Title = b.Title
	stored.Author = b.Author
	stored.Publisher = b.Publisher
	stored.Description = b.Description
	return nil
}

func (r *fakeBookRepo) List(ctx context.Context, params book.ListParams) ([]*book.Book, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*book.Book, 0, len(r.books))
	for _, b := range r.books {
		copied := *b
		result = append(result, &copied)
	}
	return result, int64(len(result)), nil
}

func (r *fakeBookRepo) LockByID(ctx context.Context, id uint) (*book.Book, error) {
	// 事务已被fakeTxManager串行化，这里等价于普通读取
	return r.FindByID(ctx, id)
}

func (r *fakeBookRepo) UpdateAvailable(ctx context.Context, id uint, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return book.ErrBookNotFound
	}
	next := b.AvailableCopies + delta
	if next < 0 {
		return book.ErrNoAvailableCopy
	}
	if next > b.TotalCopies {
		next = b.TotalCopies // 与守卫UPDATE的静默钳位一致
	}
	b.AvailableCopies = next
	return nil
}

func (r *fakeBookRepo) SetCopies(ctx context.Context, id uint, total, available int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return book.ErrBookNotFound
	}
	b.TotalCopies = total
	b.AvailableCopies = available
	return nil
}

func (r *fakeBookRepo) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[id]; !ok {
		return book.ErrBookNotFound
	}
	delete(r.books, id)
	return nil
}

// fakeBorrowingRepo 内存借阅仓储
type fakeBorrowingRepo struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]*borrowing.Borrowing
}

func newFakeBorrowingRepo() *fakeBorrowingRepo {
	return &fakeBorrowingRepo{nextID: 1, items: make(map[uint]*borrowing.Borrowing)}
}

func (r *fakeBorrowingRepo) Create(ctx context.Context, b *borrowing.Borrowing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.ID = r.nextID
	r.nextID++
	copied := *b
	r.items[b.ID] = &copied
	return nil
}

func (r *fakeBorrowingRepo) FindByID(ctx context.Context, id uint) (*borrowing.Borrowing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return nil, borrowing.ErrBorrowingNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *fakeBorrowingRepo) LockByID(ctx context.Context, id uint) (*borrowing.Borrowing, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeBorrowingRepo) FindActiveLoan(ctx context.Context, userID, bookID uint) (*borrowing.Borrowing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.items {
		if b.UserID == userID && b.BookID == bookID && b.Status.IsActive() {
			copied := *b
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeBorrowingRepo) Update(ctx context.Context, b *borrowing.Borrowing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *b
	r.items[b.ID] = &copied
	return nil
}

func (r *fakeBorrowingRepo) MarkOverdueBefore(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, b := range r.items {
		if b.Status == borrowing.StatusBorrowed && b.DueDate.Before(now) {
			b.Status = borrowing.StatusOverdue
			b.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

func (r *fakeBorrowingRepo) ListByUser(ctx context.Context, userID uint, activeOnly bool) ([]*borrowing.Borrowing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*borrowing.Borrowing
	for _, b := range r.items {
		if b.UserID != userID {
			continue
		}
		if activeOnly && !b.Status.IsActive() {
			continue
		}
		if !activeOnly && b.Status != borrowing.StatusReturned {
			continue
		}
		copied := *b
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *fakeBorrowingRepo) ListByBook(ctx context.Context, bookID uint) ([]*borrowing.Borrowing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*borrowing.Borrowing
	for _, b := range r.items {
		if b.BookID == bookID {
			copied := *b
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *fakeBorrowingRepo) ListOverdue(ctx context.Context) ([]*borrowing.Borrowing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*borrowing.Borrowing
	for _, b := range r.items {
		if b.Status == borrowing.StatusOverdue {
			copied := *b
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *fakeBorrowingRepo) List(ctx context.Context, params borrowing.ListParams) ([]*borrowing.Borrowing, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*borrowing.Borrowing
	for _, b := range r.items {
		if params.UserID > 0 && b.UserID != params.UserID {
			continue
		}
		if params.BookID > 0 && b.BookID != params.BookID {
			continue
		}
		if params.Status != "" && b.Status != params.Status {
			continue
		}
		if params.OverdueOnly && b.Status != borrowing.StatusOverdue {
			continue
		}
		copied := *b
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, int64(len(result)), nil
}

func (r *fakeBorrowingRepo) CountActiveByBook(ctx context.Context, bookID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, b := range r.items {
		if b.BookID != bookID {
			continue
		}
		if b.Status == borrowing.StatusBorrowed || b.Status == borrowing.StatusOverdue {
			count++
		}
	}
	return count, nil
}
type fakeWaitlistRepo struct {
	mu      sync.Mutex
	nextID  uint
	entries map[uint]*waitlist.Entry
}

func newFakeWaitlistRepo() *fakeWaitlistRepo {
	return &fakeWaitlistRepo{nextID: 1, entries: make(map[uint]*waitlist.Entry)}
}

func (r *fakeWaitlistRepo) Create(ctx context.Context, e *waitlist.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = r.nextID
	r.nextID++
	copied := *e
	r.entries[e.ID] = &copied
	return nil
}

func (r *fakeWaitlistRepo) FindByID(ctx context.Context, id uint) (*waitlist.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, waitlist.ErrEntryNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *fakeWaitlistRepo) LockByID(ctx context.Context, id uint) (*waitlist.Entry, error) {
	// 事务已被fakeTxManager串行化，这里等价于普通读取
	return r.FindByID(ctx, id)
}

func (r *fakeWaitlistRepo) FindPending(ctx context.Context, userID, bookID uint) (*waitlist.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.UserID == userID && e.BookID == bookID && e.Status == waitlist.StatusPending {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeWaitlistRepo) LockNextPending(ctx context.Context, bookID uint) (*waitlist.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *waitlist.Entry
	for _, e := range r.entries {
		if e.BookID != bookID || e.Status != waitlist.StatusPending {
			continue
		}
		if oldest == nil ||
			e.RequestDate.Before(oldest.RequestDate) ||
			(e.RequestDate.Equal(oldest.RequestDate) && e.ID < oldest.ID) {
			oldest = e
		}
	}
	if oldest == nil {
		return nil, nil
	}
	copied := *oldest
	return &copied, nil
}

func (r *fakeWaitlistRepo) Update(ctx context.Context, e *waitlist.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *e
	r.entries[e.ID] = &copied
	return nil
}

func (r *fakeWaitlistRepo) ListByBook(ctx context.Context, bookID uint) ([]*waitlist.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*waitlist.Entry
	for _, e := range r.entries {
		if e.BookID == bookID && e.Status == waitlist.StatusPending {
			copied := *e
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].RequestDate.Equal(result[j].RequestDate) {
			return result[i].ID < result[j].ID
		}
		return result[i].RequestDate.Before(result[j].RequestDate)
	})
	return result, nil
}

func (r *fakeWaitlistRepo) ListByUser(ctx context.Context, userID uint) ([]*waitlist.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*waitlist.Entry
	for _, e := range r.entries {
		if e.UserID == userID {
			copied := *e
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// fakePublisher 记录发布的归还事件
type fakePublisher struct {
	mu     sync.Mutex
	events []borrowing.ReturnedEvent
}

func (p *fakePublisher) PublishReturned(ctx context.Context, event borrowing.ReturnedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) published() []borrowing.ReturnedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]borrowing.ReturnedEvent(nil), p.events...)
}

// fakeDispatcher 记录发出的通知
type fakeDispatcher struct {
	mu       sync.Mutex
	notified []uint // 按通知顺序记录user_id
}

func (d *fakeDispatcher) NotifyAvailable(ctx context.Context, userID, bookID, requestID uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notified = append(d.notified, userID)
	return nil
}

func (d *fakeDispatcher) Inbox(ctx context.Context, userID uint, limit int) ([]*notification.Event, error) {
	return nil, nil
}

func (d *fakeDispatcher) Subscribe(ctx context.Context, userID uint) (<-chan *notification.Event, error) {
	ch := make(chan *notification.Event)
	close(ch)
	return ch, nil
}

func (d *fakeDispatcher) MarkRead(ctx context.Context, userID uint, notificationID string) (bool, error) {
	return true, nil
}

func (d *fakeDispatcher) notifiedUsers() []uint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint(nil), d.notified...)
}
