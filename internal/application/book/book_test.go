package book

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/library/internal/domain/book"
)

// ==================== 测试假件 ====================

type fakeTxManager struct {
	mu sync.Mutex
}

func (m *fakeTxManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

type fakeBookRepo struct {
	mu     sync.Mutex
	nextID uint
	books  map[uint]*book.Book

	// beforeUpdate 在Update落库前触发，用于构造读写之间的并发交错
	beforeUpdate func()
}

func newFakeBookRepo(books ...*book.Book) *fakeBookRepo {
	repo := &fakeBookRepo{nextID: 1, books: make(map[uint]*book.Book)}
	for _, b := range books {
		copied := *b
		repo.books[b.ID] = &copied
		if b.ID >= repo.nextID {
			repo.nextID = b.ID + 1
		}
	}
	return repo
}

func (r *fakeBookRepo) Create(ctx context.Context, b *book.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.ID = r.nextID
	r.nextID++
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
	if r.beforeUpdate != nil {
		r.beforeUpdate()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.books[b.ID]
	if !ok {
		return book.ErrBookNotFound
	}
	// 与MySQL实现一致：只写描述性列，副本数不从快照回写
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
		if params.AvailableOnly && b.AvailableCopies == 0 {
			continue
		}
		copied := *b
		result = append(result, &copied)
	}
	return result, int64(len(result)), nil
}

func (r *fakeBookRepo) LockByID(ctx context.Context, id uint) (*book.Book, error) {
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
		next = b.TotalCopies
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

// fakeLoanCounter 在借统计Fake
type fakeLoanCounter struct {
	active map[uint]int64
}

func (c *fakeLoanCounter) CountActiveByBook(ctx context.Context, bookID uint) (int64, error) {
	return c.active[bookID], nil
}

// fakeCache 内存缓存，可注入故障
type fakeCache struct {
	mu      sync.Mutex
	items   map[uint]*book.Book
	failing bool // true时所有操作报错，模拟Redis故障
	gets    int
	hits    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[uint]*book.Book)}
}

func (c *fakeCache) Get(ctx context.Context, bookID uint) (*book.Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return nil, errors.New("redis: connection refused")
	}
	c.gets++
	b, ok := c.items[bookID]
	if !ok {
		return nil, nil
	}
	c.hits++
	copied := *b
	return &copied, nil
}

func (c *fakeCache) Set(ctx context.Context, b *book.Book) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("redis: connection refused")
	}
	copied := *b
	c.items[b.ID] = &copied
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, bookID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("redis: connection refused")
	}
	delete(c.items, bookID)
	return nil
}

func (c *fakeCache) cached(bookID uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[bookID]
	return ok
}

type bookEnv struct {
	repo   *fakeBookRepo
	loans  *fakeLoanCounter
	cache  *fakeCache
	manage *ManageBooksUseCase
	query  *QueryBooksUseCase
}

func newBookEnv(books ...*book.Book) *bookEnv {
	repo := newFakeBookRepo(books...)
	loans := &fakeLoanCounter{active: make(map[uint]int64)}
	cache := newFakeCache()
	svc := book.NewService(repo)
	return &bookEnv{
		repo:   repo,
		loans:  loans,
		cache:  cache,
		manage: NewManageBooksUseCase(svc, repo, loans, &fakeTxManager{}, cache),
		query:  NewQueryBooksUseCase(svc, cache),
	}
}

func seedBook(id uint, total, available int) *book.Book {
	return &book.Book{
		ID:              id,
		ISBN:            "9787115999999",
		Title:           "深入理解计算机系统",
		Author:          "Bryant",
		TotalCopies:     total,
		AvailableCopies: available,
	}
}

// ==================== 上架与修改 ====================

func TestAddBook_Success(t *testing.T) {
	e := newBookEnv()

	view, err := e.manage.AddBook(context.Background(), AddBookRequest{
		ISBN:        "9787111558422",
		Title:       "Go程序设计语言",
		Author:      "Donovan",
		Publisher:   "机械工业出版社",
		TotalCopies: 5,
	})
	require.NoError(t, err)
	assert.NotZero(t, view.ID)
	// 新书上架：全部副本可借
	assert.Equal(t, 5, view.TotalCopies)
	assert.Equal(t, 5, view.AvailableCopies)
	assert.True(t, view.Available)
}

func TestAddBook_DuplicateISBN(t *testing.T) {
	e := newBookEnv()
	ctx := context.Background()

	req := AddBookRequest{ISBN: "9787111558422", Title: "Go程序设计语言", Author: "Donovan", TotalCopies: 2}
	_, err := e.manage.AddBook(ctx, req)
	require.NoError(t, err)

	_, err = e.manage.AddBook(ctx, req)
	assert.ErrorIs(t, err, book.ErrISBNDuplicate)
}

func TestAddBook_InvalidISBN(t *testing.T) {
	e := newBookEnv()

	_, err := e.manage.AddBook(context.Background(), AddBookRequest{
		ISBN: "not-an-isbn", Title: "书", Author: "某人", TotalCopies: 1,
	})
	assert.ErrorIs(t, err, book.ErrInvalidISBN)
}

func TestUpdateInfo_InvalidatesCache(t *testing.T) {
	e := newBookEnv(seedBook(1, 3, 3))
	ctx := context.Background()

	// 先读一次，填充缓存
	_, err := e.query.GetByID(ctx, 1)
	require.NoError(t, err)
	require.True(t, e.cache.cached(1))

	view, err := e.manage.UpdateInfo(ctx, 1, UpdateBookInfoRequest{Title: "CSAPP(第3版)"})
	require.NoError(t, err)
	assert.Equal(t, "CSAPP(第3版)", view.Title)
	// 作者未传，保持原值
	assert.Equal(t, "Bryant", view.Author)

	// 写路径删缓存，不更新缓存
	assert.False(t, e.cache.cached(1))
}

func TestUpdateInfo_PreservesConcurrentAvailabilityChange(t *testing.T) {
	e := newBookEnv(seedBook(1, 2, 2))
	ctx := context.Background()

	// 信息编辑读到快照之后、落库之前，一笔借出提交了扣减
	e.repo.beforeUpdate = func() {
		require.NoError(t, e.repo.UpdateAvailable(ctx, 1, -1))
	}

	_, err := e.manage.UpdateInfo(ctx, 1, UpdateBookInfoRequest{Title: "新版标题"})
	require.NoError(t, err)

	b, err := e.repo.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "新版标题", b.Title)
	assert.Equal(t, 1, b.AvailableCopies, "信息编辑的旧快照不能覆盖并发借出的扣减")
}

// ==================== 盘点 ====================

func TestUpdateCopies_RecalculatesAvailable(t *testing.T) {
	// 总数5，已借出2(可借3)
	e := newBookEnv(seedBook(1, 5, 3))
	ctx := context.Background()

	// 盘点发现实际只有4本：可借 = 4 - 2借出 = 2
	view, err := e.manage.UpdateCopies(ctx, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, view.TotalCopies)
	assert.Equal(t, 2, view.AvailableCopies)
}

func TestUpdateCopies_BorrowedExceedsNewTotal(t *testing.T) {
	// 总数5，全部借出（可借0）
	e := newBookEnv(seedBook(1, 5, 0))
	ctx := context.Background()

	// 缩容到2：借出数5 > 新总数2，可借数取0而不是负数
	view, err := e.manage.UpdateCopies(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalCopies)
	assert.Equal(t, 0, view.AvailableCopies)
}

func TestUpdateCopies_NegativeRejected(t *testing.T) {
	e := newBookEnv(seedBook(1, 3, 3))

	_, err := e.manage.UpdateCopies(context.Background(), 1, -1)
	assert.ErrorIs(t, err, book.ErrInvalidCopies)
}

func TestUpdateCopies_InvalidatesCache(t *testing.T) {
	e := newBookEnv(seedBook(1, 3, 3))
	ctx := context.Background()

	_, err := e.query.GetByID(ctx, 1)
	require.NoError(t, err)
	require.True(t, e.cache.cached(1))

	_, err = e.manage.UpdateCopies(ctx, 1, 6)
	require.NoError(t, err)
	assert.False(t, e.cache.cached(1))
}

// ==================== 查询(cache-aside) ====================

func TestGetByID_CacheAside(t *testing.T) {
	e := newBookEnv(seedBook(1, 3, 3))
	ctx := context.Background()

	// 第一次：未命中，查库并回填
	first, err := e.query.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, e.cache.hits)
	assert.True(t, e.cache.cached(1))

	// 第二次：命中缓存
	second, err := e.query.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, e.cache.hits)
	assert.Equal(t, first.Title, second.Title)
}

func TestGetByID_CacheFailureDegradesToDB(t *testing.T) {
	e := newBookEnv(seedBook(1, 3, 3))
	e.cache.failing = true

	// Redis故障：照常返回数据库里的数据
	view, err := e.query.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "深入理解计算机系统", view.Title)
}

func TestGetByID_NotFound(t *testing.T) {
	e := newBookEnv()

	_, err := e.query.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, book.ErrBookNotFound)
}

func TestList_Defaults(t *testing.T) {
	e := newBookEnv(seedBook(1, 3, 3), seedBook(2, 1, 0))
	ctx := context.Background()

	resp, err := e.query.List(ctx, ListRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.PageSize)
	assert.Equal(t, int64(2), resp.Total)

	onlyAvailable, err := e.query.List(ctx, ListRequest{AvailableOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), onlyAvailable.Total)
}

// ==================== 删除 ====================

func TestDeleteBook_Success(t *testing.T) {
	e := newBookEnv(seedBook(1, 2, 2))

	err := e.manage.DeleteBook(context.Background(), 1)
	require.NoError(t, err)

	_, err = e.repo.FindByID(context.Background(), 1)
	assert.ErrorIs(t, err, book.ErrBookNotFound)
}

func TestDeleteBook_WithActiveLoans(t *testing.T) {
	e := newBookEnv(seedBook(1, 2, 1))
	e.loans.active[1] = 1

	err := e.manage.DeleteBook(context.Background(), 1)
	assert.ErrorIs(t, err, book.ErrHasActiveLoans)

	// 删除被拒绝，图书仍在
	b, err := e.repo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint(1), b.ID)
}

func TestDeleteBook_NotFound(t *testing.T) {
	e := newBookEnv()

	err := e.manage.DeleteBook(context.Background(), 42)
	assert.ErrorIs(t, err, book.ErrBookNotFound)
}

func TestDeleteBook_InvalidatesCache(t *testing.T) {
	e := newBookEnv(seedBook(1, 1, 1))

	// 预热缓存
	_, err := e.query.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, e.cache.cached(1))

	require.NoError(t, e.manage.DeleteBook(context.Background(), 1))
	assert.False(t, e.cache.cached(1))
}
