package book

import (
	"context"
	"regexp"
)

// Service 图书领域服务接口
// 设计说明：
// 1. 领域服务封装跨实体的业务逻辑和业务规则校验
// 2. 不依赖具体的Repository实现（依赖倒置）
// 3. 副本数的借还变更不在这里：那是借还协调用例的职责，必须在事务内完成
type Service interface {
	// AddBook 新书上架（馆员操作）
	// 业务规则：
	// - ISBN格式必须合法（10位或13位数字）
	// - 总副本数必须>=0
	// - ISBN不能重复
	AddBook(ctx context.Context, isbn, title, author, publisher, description string, totalCopies int) (*Book, error)

	// GetBookByID 根据ID获取图书详情
	GetBookByID(ctx context.Context, id uint) (*Book, error)

	// GetBookByISBN 根据ISBN获取图书
	GetBookByISBN(ctx context.Context, isbn string) (*Book, error)

	// UpdateBookInfo 更新图书描述性信息（不含副本数）
	UpdateBookInfo(ctx context.Context, id uint, title, author, publisher, description string) error

	// ListBooks 分页查询图书列表
	ListBooks(ctx context.Context, params ListParams) ([]*Book, int64, error)
}

// service 领域服务实现
type service struct {
	repo Repository
}

// NewService 创建图书领域服务
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// AddBook 新书上架
func (s *service) AddBook(ctx context.Context, isbn, title, author, publisher, description string, totalCopies int) (*Book, error) {
	// 1. ISBN格式校验
	if !isValidISBN(isbn) {
		return nil, ErrInvalidISBN
	}

	// 2. 副本数校验
	if totalCopies < 0 {
		return nil, ErrInvalidCopies
	}

	// 3. 检查ISBN是否已存在（数据库唯一索引兜底）
	existingBook, err := s.repo.FindByISBN(ctx, isbn)
	if err == nil && existingBook != nil {
		return nil, ErrISBNDuplicate
	}
	if err != nil && err != ErrBookNotFound {
		return nil, err
	}

	// 4. 创建并持久化
	b := NewBook(isbn, title, author, publisher, description, totalCopies)
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}

	return b, nil
}

// GetBookByID 根据ID获取图书
func (s *service) GetBookByID(ctx context.Context, id uint) (*Book, error) {
	return s.repo.FindByID(ctx, id)
}

// GetBookByISBN 根据ISBN获取图书
func (s *service) GetBookByISBN(ctx context.Context, isbn string) (*Book, error) {
	if !isValidISBN(isbn) {
		return nil, ErrInvalidISBN
	}
	return s.repo.FindByISBN(ctx, isbn)
}

// UpdateBookInfo 更新图书信息
func (s *service) UpdateBookInfo(ctx context.Context, id uint, title, author, publisher, description string) error {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	b.UpdateInfo(title, author, publisher, description)
	return s.repo.Update(ctx, b)
}

// ListBooks 分页查询图书列表
func (s *service) ListBooks(ctx context.Context, params ListParams) ([]*Book, int64, error) {
	return s.repo.List(ctx, params)
}

// isbnPattern ISBN-10或ISBN-13(允许连字符或空格分隔)
var isbnPattern = regexp.MustCompile(`^(?:\d[- ]?){9}[\dXx]$|^(?:\d[- ]?){12}\d$`)

// isValidISBN 校验ISBN格式（10位或13位）
func isValidISBN(isbn string) bool {
	return isbnPattern.MatchString(isbn)
}
