package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/library/internal/domain/borrowing"
	apperrors "github.com/xiebiao/library/pkg/errors"
)

// borrowingRepository 借阅仓储实现(MySQL)
type borrowingRepository struct {
	db *gorm.DB
}

// NewBorrowingRepository 创建借阅仓储
func NewBorrowingRepository(db *gorm.DB) borrowing.Repository {
	return &borrowingRepository{db: db}
}

// Create 创建借阅记录（借出事务内调用）
func (r *borrowingRepository) Create(ctx context.Context, b *borrowing.Borrowing) error {
	model := toBorrowingModel(b)

	if err := r.getDB(ctx).Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建借阅记录失败")
	}

	b.ID = model.ID
	b.CreatedAt = model.CreatedAt
	b.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID 根据ID查找借阅记录
func (r *borrowingRepository) FindByID(ctx context.Context, id uint) (*borrowing.Borrowing, error) {
	var model BorrowingModel
	err := r.getDB(ctx).First(&model, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, borrowing.ErrBorrowingNotFound
		}
		return nil, apperrors.Wrap(err, "查询借阅记录失败")
	}

	return toBorrowingEntity(&model), nil
}

// LockByID 悲观锁查询借阅记录（归还事务的入口）
// 两个并发归还同一条记录：后到的拿到锁时记录已是returned,
// 状态检查会挡掉第二次归还，副本数不会被重复加回
func (r *borrowingRepository) LockByID(ctx context.Context, id uint) (*borrowing.Borrowing, error) {
	var model BorrowingModel
	db := r.getDB(ctx)
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, borrowing.ErrBorrowingNotFound
		}
		if err = translateLockError(err); apperrors.IsRetryable(err) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, "锁定借阅记录失败")
	}

	return toBorrowingEntity(&model), nil
}

// FindActiveLoan 查找某用户对某书的在借记录
func (r *borrowingRepository) FindActiveLoan(ctx context.Context, userID, bookID uint) (*borrowing.Borrowing, error) {
	var model BorrowingModel
	err := r.getDB(ctx).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Where("status IN ?", []string{string(borrowing.StatusBorrowed), string(borrowing.StatusOverdue)}).
		First(&model).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 没有在借记录，不是错误
		}
		return nil, apperrors.Wrap(err, "查询在借记录失败")
	}

	return toBorrowingEntity(&model), nil
}

// Update 更新借阅记录
func (r *borrowingRepository) Update(ctx context.Context, b *borrowing.Borrowing) error {
	model := toBorrowingModel(b)

	if err := r.getDB(ctx).Save(model).Error; err != nil {
		return apperrors.Wrap(err, "更新借阅记录失败")
	}

	b.UpdatedAt = model.UpdatedAt
	return nil
}

// MarkOverdueBefore 批量标记逾期
// UPDATE borrowings SET status='overdue' WHERE status='borrowed' AND due_date < ?
// 教学要点：
// 1. 单条守卫UPDATE自带行锁，与并发归还同一行时后到者等锁：
//    归还先提交则本UPDATE不再匹配该行（status已不是borrowed），不会丢更新
// 2. 第二次执行时没有新到期的记录，RowsAffected=0，天然幂等
func (r *borrowingRepository) MarkOverdueBefore(ctx context.Context, now time.Time) (int64, error) {
	result := r.getDB(ctx).Model(&BorrowingModel{}).
		Where("status = ? AND due_date < ?", string(borrowing.StatusBorrowed), now).
		Updates(map[string]interface{}{
			"status":     string(borrowing.StatusOverdue),
			"updated_at": now,
		})

	if result.Error != nil {
		if err := translateLockError(result.Error); apperrors.IsRetryable(err) {
			return 0, err
		}
		return 0, apperrors.Wrap(result.Error, "逾期批量标记失败")
	}

	return result.RowsAffected, nil
}

// ListByUser 查询用户的借阅记录
func (r *borrowingRepository) ListByUser(ctx context.Context, userID uint, activeOnly bool) ([]*borrowing.Borrowing, error) {
	var models []BorrowingModel
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)

	if activeOnly {
		// 在借记录按应还时间升序（最紧急的在前）
		query = query.
			Where("status IN ?", []string{string(borrowing.StatusBorrowed), string(borrowing.StatusOverdue)}).
			Order("due_date ASC")
	} else {
		// 历史记录按归还时间倒序
		query = query.
			Where("status = ?", string(borrowing.StatusReturned)).
			Order("return_date DESC")
	}

	if err := query.Find(&models).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询用户借阅记录失败")
	}

	return toBorrowingEntities(models), nil
}

// ListByBook 查询某本书的全部借阅历史
// CountActiveByBook 统计某本书的在借记录数
// 删除图书事务内调用，走getDB保证与行锁在同一事务
func (r *borrowingRepository) CountActiveByBook(ctx context.Context, bookID uint) (int64, error) {
	var count int64
	err := r.getDB(ctx).Model(&BorrowingModel{}).
		Where("book_id = ? AND status IN ?", bookID,
			[]string{string(borrowing.StatusBorrowed), string(borrowing.StatusOverdue)}).
		Count(&count).Error

	if err != nil {
		return 0, apperrors.Wrap(err, "统计在借记录失败")
	}

	return count, nil
}

func (r *borrowingRepository) ListByBook(ctx context.Context, bookID uint) ([]*borrowing.Borrowing, error) {
	var models []BorrowingModel
	err := r.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("borrow_date DESC").
		Find(&models).Error

	if err != nil {
		return nil, apperrors.Wrap(err, "查询图书借阅历史失败")
	}

	return toBorrowingEntities(models), nil
}

// ListOverdue 查询全部逾期记录
func (r *borrowingRepository) ListOverdue(ctx context.Context) ([]*borrowing.Borrowing, error) {
	var models []BorrowingModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(borrowing.StatusOverdue)).
		Order("due_date ASC").
		Find(&models).Error

	if err != nil {
		return nil, apperrors.Wrap(err, "查询逾期记录失败")
	}

	return toBorrowingEntities(models), nil
}

// List 条件分页查询（馆员视图）
func (r *borrowingRepository) List(ctx context.Context, params borrowing.ListParams) ([]*borrowing.Borrowing, int64, error) {
	var models []BorrowingModel
	var total int64

	query := r.db.WithContext(ctx).Model(&BorrowingModel{})

	if params.UserID > 0 {
		query = query.Where("user_id = ?", params.UserID)
	}
	if params.BookID > 0 {
		query = query.Where("book_id = ?", params.BookID)
	}
	if params.Status != "" {
		query = query.Where("status = ?", string(params.Status))
	}
	if params.OverdueOnly {
		query = query.Where("status = ?", string(borrowing.StatusOverdue))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "查询借阅总数失败")
	}

	// 排序（白名单列，防注入）
	column := "borrow_date"
	switch params.SortBy {
	case "due_date":
		column = "due_date"
	case "return_date":
		column = "return_date"
	}
	order := "DESC"
	if params.SortOrder == "asc" {
		order = "ASC"
	}
	query = query.Order(column + " " + order)

	// 分页
	offset := (params.Page - 1) * params.PageSize
	query = query.Limit(params.PageSize).Offset(offset)

	if err := query.Find(&models).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "查询借阅列表失败")
	}

	return toBorrowingEntities(models), total, nil
}

// =========================================
// 辅助函数：模型转换
// =========================================

func toBorrowingModel(b *borrowing.Borrowing) *BorrowingModel {
	return &BorrowingModel{
		ID:         b.ID,
		UserID:     b.UserID,
		BookID:     b.BookID,
		BorrowDate: b.BorrowDate,
		DueDate:    b.DueDate,
		ReturnDate: b.ReturnDate,
		Status:     string(b.Status),
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func toBorrowingEntity(model *BorrowingModel) *borrowing.Borrowing {
	return &borrowing.Borrowing{
		ID:         model.ID,
		UserID:     model.UserID,
		BookID:     model.BookID,
		BorrowDate: model.BorrowDate,
		DueDate:    model.DueDate,
		ReturnDate: model.ReturnDate,
		Status:     borrowing.Status(model.Status),
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

func toBorrowingEntities(models []BorrowingModel) []*borrowing.Borrowing {
	result := make([]*borrowing.Borrowing, len(models))
	for i := range models {
		result[i] = toBorrowingEntity(&models[i])
	}
	return result
}

// getDB 从context获取事务DB，如果没有则使用默认DB
func (r *borrowingRepository) getDB(ctx context.Context) *gorm.DB {
	return dbFromContext(ctx, r.db.WithContext(ctx))
}
