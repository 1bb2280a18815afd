package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/library/internal/domain/book"
	apperrors "github.com/xiebiao/library/pkg/errors"
)

// bookRepository 图书仓储实现(MySQL)
// 设计说明：
// 1. 实现domain/book/repository.go定义的接口
// 2. 负责domain实体与GORM模型之间的转换
// 3. 处理数据库特定的错误（如ISBN重复、锁超时），转换为业务错误
type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository 创建图书仓储
func NewBookRepository(db *gorm.DB) book.Repository {
	return &bookRepository{db: db}
}

// Create 创建图书
func (r *bookRepository) Create(ctx context.Context, b *book.Book) error {
	model := &BookModel{
		ISBN:            b.ISBN,
		Title:           b.Title,
		Author:          b.Author,
		Publisher:       b.Publisher,
		Description:     b.Description,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateError(err) {
			return book.ErrISBNDuplicate
		}
		return apperrors.Wrap(err, "创建图书失败")
	}

	// 回填自增ID
	b.ID = model.ID
	b.CreatedAt = model.CreatedAt
	b.UpdatedAt = model.UpdatedAt

	return nil
}

// FindByID 根据ID查找图书
func (r *bookRepository) FindByID(ctx context.Context, id uint) (*book.Book, error) {
	var model BookModel
	err := r.getDB(ctx).First(&model, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, book.ErrBookNotFound
		}
		return nil, apperrors.Wrap(err, "查询图书失败")
	}

	return toBookEntity(&model), nil
}

// FindByISBN 根据ISBN查找图书
func (r *bookRepository) FindByISBN(ctx context.Context, isbn string) (*book.Book, error) {
	var model BookModel
	err := r.getDB(ctx).Where("isbn = ?", isbn).First(&model).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, book.ErrBookNotFound
		}
		return nil, apperrors.Wrap(err, "查询图书失败")
	}

	return toBookEntity(&model), nil
}

// Update 更新图书描述性信息
// 错误实现：Save整行回写，读取快照和落库之间并发借还提交的
// 副本数扣减会被旧值覆盖（丢失更新）
// 正确实现：只写描述性列，副本数只经UpdateAvailable/SetCopies在事务内变更
func (r *bookRepository) Update(ctx context.Context, b *book.Book) error {
	err := r.getDB(ctx).Model(&BookModel{}).
		Where("id = ?", b.ID).
		Select("isbn", "title", "author", "publisher", "description").
		Updates(&BookModel{
			ISBN:        b.ISBN,
			Title:       b.Title,
			Author:      b.Author,
			Publisher:   b.Publisher,
			Description: b.Description,
		}).Error
	if err != nil {
		return apperrors.Wrap(err, "更新图书失败")
	}

	return nil
}

// List 分页查询图书列表
func (r *bookRepository) List(ctx context.Context, params book.ListParams) ([]*book.Book, int64, error) {
	var models []BookModel
	var total int64

	query := r.db.WithContext(ctx).Model(&BookModel{})

	// 关键词搜索（搜索标题、作者、出版社）
	if params.Keyword != "" {
		keyword := "%" + params.Keyword + "%"
		query = query.Where("title LIKE ? OR author LIKE ? OR publisher LIKE ?", keyword, keyword, keyword)
	}

	// 只看有可借副本的图书
	if params.AvailableOnly {
		query = query.Where("available_copies > 0")
	}

	// 查询总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "查询图书总数失败")
	}

	// 排序
	switch params.SortBy {
	case "title_asc":
		query = query.Order("title ASC")
	case "created_at_desc":
		query = query.Order("created_at DESC")
	default:
		query = query.Order("created_at DESC") // 默认按上架时间降序
	}

	// 分页
	offset := (params.Page - 1) * params.PageSize
	query = query.Limit(params.PageSize).Offset(offset)

	if err := query.Find(&models).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "查询图书列表失败")
	}

	books := make([]*book.Book, len(models))
	for i, model := range models {
		books[i] = toBookEntity(&model)
	}

	return books, total, nil
}

// LockByID 悲观锁查询图书（借/还/盘点的临界区入口）
// SELECT * FROM books WHERE id = ? FOR UPDATE
// 教学要点：
// 1. 必须使用getDB(ctx)从context获取事务DB，锁在事务提交/回滚时释放
// 2. 锁等待超时(1205)翻译为可重试的ErrLockTimeout，不让调用方无限等
func (r *bookRepository) LockByID(ctx context.Context, id uint) (*book.Book, error) {
	var model BookModel
	db := r.getDB(ctx)
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, book.ErrBookNotFound
		}
		if err = translateLockError(err); apperrors.IsRetryable(err) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, "锁定图书失败")
	}

	return toBookEntity(&model), nil
}

// UpdateAvailable 变更可借副本数（守卫条件的原子UPDATE）
// 借出(delta=-1):
//
//	UPDATE books SET available_copies = available_copies - 1
//	WHERE id = ? AND available_copies >= 1
//
// 归还(delta=+1):
//
//	UPDATE books SET available_copies = available_copies + 1
//	WHERE id = ? AND available_copies < total_copies
//
// 教学要点：
// 1. 守卫条件写进WHERE，数据库层面保证 0 <= available <= total 永不被破坏
// 2. 归还越界（重复加回）时RowsAffected=0，静默钳位不报错，
//    盘点缩减总数后归还的副本本来就放不进可借池
func (r *bookRepository) UpdateAvailable(ctx context.Context, id uint, delta int) error {
	db := r.getDB(ctx)

	query := db.Model(&BookModel{}).Where("id = ?", id)
	if delta < 0 {
		query = query.Where("available_copies >= ?", -delta)
	} else {
		query = query.Where("available_copies + ? <= total_copies", delta)
	}

	result := query.Update("available_copies", gorm.Expr("available_copies + ?", delta))
	if result.Error != nil {
		if err := translateLockError(result.Error); apperrors.IsRetryable(err) {
			return err
		}
		return apperrors.Wrap(result.Error, "更新可借副本数失败")
	}

	if result.RowsAffected == 0 {
		// 可能是图书不存在，或者守卫条件不满足，再查一次确定原因
		var model BookModel
		if err := db.First(&model, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return book.ErrBookNotFound
			}
			return apperrors.Wrap(err, "查询图书失败")
		}
		if delta < 0 {
			// 图书存在，说明是无可借副本
			return book.ErrNoAvailableCopy
		}
		// 归还方向越界：钳位语义，不视为错误
	}

	return nil
}

// SetCopies 盘点落库（事务内调用，调用方已持有行锁）
func (r *bookRepository) SetCopies(ctx context.Context, id uint, total, available int) error {
	result := r.getDB(ctx).Model(&BookModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_copies":     total,
			"available_copies": available,
		})

	if result.Error != nil {
		return apperrors.Wrap(result.Error, "盘点更新失败")
	}
	if result.RowsAffected == 0 {
		return book.ErrBookNotFound
	}
	return nil
}

// Delete 删除图书
// 在借检查由应用层事务完成，这里只做删除本身
func (r *bookRepository) Delete(ctx context.Context, id uint) error {
	result := r.getDB(ctx).Delete(&BookModel{}, id)

	if result.Error != nil {
		return apperrors.Wrap(result.Error, "删除图书失败")
	}
	if result.RowsAffected == 0 {
		return book.ErrBookNotFound
	}
	return nil
}

// =========================================
// 辅助函数：模型转换
// =========================================

// toBookEntity GORM模型 → 领域实体
func toBookEntity(model *BookModel) *book.Book {
	return &book.Book{
		ID:              model.ID,
		ISBN:            model.ISBN,
		Title:           model.Title,
		Author:          model.Author,
		Publisher:       model.Publisher,
		Description:     model.Description,
		TotalCopies:     model.TotalCopies,
		AvailableCopies: model.AvailableCopies,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

// getDB 从context获取事务DB，如果没有则使用默认DB
func (r *bookRepository) getDB(ctx context.Context) *gorm.DB {
	return dbFromContext(ctx, r.db.WithContext(ctx))
}
