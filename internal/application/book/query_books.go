package book

import (
	"context"
	"log"

	"github.com/xiebiao/library/internal/domain/book"
)

// BookView 图书视图DTO
type BookView struct {
	ID              uint   `json:"id"`
	ISBN            string `json:"isbn"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Publisher       string `json:"publisher"`
	Description     string `json:"description"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
	Available       bool   `json:"available"`
}

func toBookView(b *book.Book) *BookView {
	return &BookView{
		ID:              b.ID,
		ISBN:            b.ISBN,
		Title:           b.Title,
		Author:          b.Author,
		Publisher:       b.Publisher,
		Description:     b.Description,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		Available:       b.IsAvailable(),
	}
}

// QueryBooksUseCase 图书查询用例
type QueryBooksUseCase struct {
	svc   book.Service
	cache Cache
}

// NewQueryBooksUseCase 创建图书查询用例
func NewQueryBooksUseCase(svc book.Service, cache Cache) *QueryBooksUseCase {
	return &QueryBooksUseCase{svc: svc, cache: cache}
}

// GetByID 查询图书详情(cache-aside)
// 缓存命中直接返回；未命中查库并回填，回填失败只记日志
func (uc *QueryBooksUseCase) GetByID(ctx context.Context, bookID uint) (*BookView, error) {
	if uc.cache != nil {
		cached, err := uc.cache.Get(ctx, bookID)
		if err != nil {
			// Redis故障降级为直查数据库
			log.Printf("⚠️ 图书缓存读取失败: book_id=%d, err=%v", bookID, err)
		} else if cached != nil {
			return toBookView(cached), nil
		}
	}

	b, err := uc.svc.GetBookByID(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, b); err != nil {
			log.Printf("⚠️ 图书缓存回填失败: book_id=%d, err=%v", bookID, err)
		}
	}

	return toBookView(b), nil
}

// GetByISBN 根据ISBN查询图书
func (uc *QueryBooksUseCase) GetByISBN(ctx context.Context, isbn string) (*BookView, error) {
	b, err := uc.svc.GetBookByISBN(ctx, isbn)
	if err != nil {
		return nil, err
	}
	return toBookView(b), nil
}

// ListRequest 图书列表查询参数
type ListRequest struct {
	Page          int    `form:"page"`
	PageSize      int    `form:"page_size"`
	Keyword       string `form:"keyword"`
	AvailableOnly bool   `form:"available_only"`
	SortBy        string `form:"sort_by"`
}

// ListResponse 图书列表响应DTO
type ListResponse struct {
	Books    []*BookView `json:"books"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// List 分页查询图书列表
// 列表查询不走详情缓存：关键词组合太多，缓存命中率低
func (uc *QueryBooksUseCase) List(ctx context.Context, req ListRequest) (*ListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	books, total, err := uc.svc.ListBooks(ctx, book.ListParams{
		Page:          req.Page,
		PageSize:      req.PageSize,
		Keyword:       req.Keyword,
		AvailableOnly: req.AvailableOnly,
		SortBy:        req.SortBy,
	})
	if err != nil {
		return nil, err
	}

	views := make([]*BookView, 0, len(books))
	for _, b := range books {
		views = append(views, toBookView(b))
	}

	return &ListResponse{
		Books:    views,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}
