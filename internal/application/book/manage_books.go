package book

import (
	"context"
	"log"

	"github.com/xiebiao/library/internal/domain/book"
)

// ManageBooksUseCase 图书管理用例（馆员操作）
type ManageBooksUseCase struct {
	svc         book.Service
	bookRepo    book.Repository
	loanCounter LoanCounter
	txManager   TxManager
	cache       Cache
}

// NewManageBooksUseCase 创建图书管理用例
func NewManageBooksUseCase(
	svc book.Service,
	bookRepo book.Repository,
	loanCounter LoanCounter,
	txManager TxManager,
	cache Cache,
) *ManageBooksUseCase {
	return &ManageBooksUseCase{
		svc:         svc,
		bookRepo:    bookRepo,
		loanCounter: loanCounter,
		txManager:   txManager,
		cache:       cache,
	}
}

// AddBookRequest 新书上架请求DTO
type AddBookRequest struct {
	ISBN        string `json:"isbn" binding:"required"`
	Title       string `json:"title" binding:"required,max=200"`
	Author      string `json:"author" binding:"required,max=100"`
	Publisher   string `json:"publisher" binding:"max=100"`
	Description string `json:"description" binding:"max=2000"`
	TotalCopies int    `json:"total_copies" binding:"min=0"`
}

// AddBook 新书上架
func (uc *ManageBooksUseCase) AddBook(ctx context.Context, req AddBookRequest) (*BookView, error) {
	b, err := uc.svc.AddBook(ctx, req.ISBN, req.Title, req.Author, req.Publisher, req.Description, req.TotalCopies)
	if err != nil {
		return nil, err
	}
	return toBookView(b), nil
}

// UpdateBookInfoRequest 更新图书信息请求DTO
// 空字段表示不修改
type UpdateBookInfoRequest struct {
	Title       string `json:"title" binding:"max=200"`
	Author      string `json:"author" binding:"max=100"`
	Publisher   string `json:"publisher" binding:"max=100"`
	Description string `json:"description" binding:"max=2000"`
}

// UpdateInfo 更新图书描述性信息（不触碰副本数）
func (uc *ManageBooksUseCase) UpdateInfo(ctx context.Context, bookID uint, req UpdateBookInfoRequest) (*BookView, error) {
	if err := uc.svc.UpdateBookInfo(ctx, bookID, req.Title, req.Author, req.Publisher, req.Description); err != nil {
		return nil, err
	}

	uc.invalidateCache(ctx, bookID)

	b, err := uc.bookRepo.FindByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return toBookView(b), nil
}

// UpdateCopies 盘点副本数（馆员操作）
// 教学要点：盘点和借还抢同一把行锁
//
// 错误实现：直接UPDATE total_copies，并发借出可能让
// available > total的不变量被破坏
//
// 正确实现：
//  1. 事务内SELECT FOR UPDATE锁定图书行（与借/还串行化）
//  2. 实体重算可借数：available = newTotal - 已借出数，下限0
//  3. 总数与可借数在同一事务内落库
//  4. COMMIT后删缓存
func (uc *ManageBooksUseCase) UpdateCopies(ctx context.Context, bookID uint, newTotal int) (*BookView, error) {
	var revised *book.Book
	err := uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		b, err := uc.bookRepo.LockByID(txCtx, bookID)
		if err != nil {
			return err
		}

		if err := b.ReviseTotalCopies(newTotal); err != nil {
			return err
		}

		if err := uc.bookRepo.SetCopies(txCtx, b.ID, b.TotalCopies, b.AvailableCopies); err != nil {
			return err
		}

		revised = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.invalidateCache(ctx, bookID)

	return toBookView(revised), nil
}

// DeleteBook 删除图书（下架）
// 业务规则：尚有在借副本的书不能删，读者手里的书删掉记录就成了孤儿
// 排队记录不阻止删除：事务提交后排队自然落空，读者下次查询看到CANCELLED之外
// 的PENDING也借不到已删除的书，由前端提示处理
func (uc *ManageBooksUseCase) DeleteBook(ctx context.Context, bookID uint) error {
	err := uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		// 锁定图书行，与借出事务串行化：
		// 不锁的话，检查通过后、删除前可能又借出一本
		if _, err := uc.bookRepo.LockByID(txCtx, bookID); err != nil {
			return err
		}

		active, err := uc.loanCounter.CountActiveByBook(txCtx, bookID)
		if err != nil {
			return err
		}
		if active > 0 {
			return book.ErrHasActiveLoans
		}

		return uc.bookRepo.Delete(txCtx, bookID)
	})
	if err != nil {
		return err
	}

	uc.invalidateCache(ctx, bookID)
	return nil
}

func (uc *ManageBooksUseCase) invalidateCache(ctx context.Context, bookID uint) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Invalidate(ctx, bookID); err != nil {
		log.Printf("⚠️ 图书缓存失效失败: book_id=%d, err=%v", bookID, err)
	}
}
