package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/library/internal/domain/waitlist"
	apperrors "github.com/xiebiao/library/pkg/errors"
)

// waitlistRepository 预约排队仓储实现(MySQL)
type waitlistRepository struct {
	db *gorm.DB
}

// NewWaitlistRepository 创建预约排队仓储
func NewWaitlistRepository(db *gorm.DB) waitlist.Repository {
	return &waitlistRepository{db: db}
}

// Create 创建排队记录
func (r *waitlistRepository) Create(ctx context.Context, e *waitlist.Entry) error {
	model := toWaitlistModel(e)

	if err := r.getDB(ctx).Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建排队记录失败")
	}

	e.ID = model.ID
	e.CreatedAt = model.CreatedAt
	e.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID 根据ID查找排队记录
func (r *waitlistRepository) FindByID(ctx context.Context, id uint) (*waitlist.Entry, error) {
	var model WaitlistModel
	err := r.getDB(ctx).First(&model, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, waitlist.ErrEntryNotFound
		}
		return nil, apperrors.Wrap(err, "查询排队记录失败")
	}

	return toWaitlistEntity(&model), nil
}

// LockByID 悲观锁查询排队记录（取消事务的入口）
// 出队事务先拿到锁并提交FULFILLED，取消方等锁后读到的已是终态，
// 实体的状态检查会拒绝撤销
func (r *waitlistRepository) LockByID(ctx context.Context, id uint) (*waitlist.Entry, error) {
	var model WaitlistModel
	err := r.getDB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, waitlist.ErrEntryNotFound
		}
		if err = translateLockError(err); apperrors.IsRetryable(err) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, "锁定排队记录失败")
	}

	return toWaitlistEntity(&model), nil
}

// FindPending 查找某用户对某书的待处理排队记录（入队幂等检查）
// 借出事务持有图书行锁时调用，同一用户的并发重复请求被行锁串行化，
// 后到者会看到先到者已提交的PENDING记录
func (r *waitlistRepository) FindPending(ctx context.Context, userID, bookID uint) (*waitlist.Entry, error) {
	var model WaitlistModel
	err := r.getDB(ctx).
		Where("user_id = ? AND book_id = ? AND status = ?", userID, bookID, string(waitlist.StatusPending)).
		First(&model).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 没有待处理记录，不是错误
		}
		return nil, apperrors.Wrap(err, "查询排队记录失败")
	}

	return toWaitlistEntity(&model), nil
}

// LockNextPending 锁定队首的待处理记录(FIFO)
// 教学要点：
// 1. ORDER BY request_date, id，同一毫秒入队的记录用自增ID决出先后，
//    排序结果全局确定，通知顺序才可复现
// 2. FOR UPDATE锁住队首行，两个归还事件并发出队时后到者等锁，
//    锁释放后重新读到的队首已是FULFILLED，不会重复通知同一人
// 3. 队列为空返回(nil, nil)，调用方静默结束
func (r *waitlistRepository) LockNextPending(ctx context.Context, bookID uint) (*waitlist.Entry, error) {
	var model WaitlistModel
	err := r.getDB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("book_id = ? AND status = ?", bookID, string(waitlist.StatusPending)).
		Order("request_date ASC, id ASC").
		First(&model).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 空队列
		}
		if err = translateLockError(err); apperrors.IsRetryable(err) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, "锁定排队记录失败")
	}

	return toWaitlistEntity(&model), nil
}

// Update 更新排队记录
func (r *waitlistRepository) Update(ctx context.Context, e *waitlist.Entry) error {
	model := toWaitlistModel(e)

	if err := r.getDB(ctx).Save(model).Error; err != nil {
		return apperrors.Wrap(err, "更新排队记录失败")
	}

	e.UpdatedAt = model.UpdatedAt
	return nil
}

// ListByBook 查询某本书的等待队列（按入队顺序）
func (r *waitlistRepository) ListByBook(ctx context.Context, bookID uint) ([]*waitlist.Entry, error) {
	var models []WaitlistModel
	err := r.db.WithContext(ctx).
		Where("book_id = ? AND status = ?", bookID, string(waitlist.StatusPending)).
		Order("request_date ASC, id ASC").
		Find(&models).Error

	if err != nil {
		return nil, apperrors.Wrap(err, "查询图书排队列表失败")
	}

	return toWaitlistEntities(models), nil
}

// ListByUser 查询用户的排队记录
func (r *waitlistRepository) ListByUser(ctx context.Context, userID uint) ([]*waitlist.Entry, error) {
	var models []WaitlistModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("request_date DESC").
		Find(&models).Error

	if err != nil {
		return nil, apperrors.Wrap(err, "查询用户排队记录失败")
	}

	return toWaitlistEntities(models), nil
}

// =========================================
// 辅助函数：模型转换
// =========================================

func toWaitlistModel(e *waitlist.Entry) *WaitlistModel {
	return &WaitlistModel{
		ID:               e.ID,
		BookID:           e.BookID,
		UserID:           e.UserID,
		RequestDate:      e.RequestDate,
		Status:           string(e.Status),
		NotificationSent: e.NotificationSent,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func toWaitlistEntity(model *WaitlistModel) *waitlist.Entry {
	return &waitlist.Entry{
		ID:               model.ID,
		BookID:           model.BookID,
		UserID:           model.UserID,
		RequestDate:      model.RequestDate,
		Status:           waitlist.Status(model.Status),
		NotificationSent: model.NotificationSent,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

func toWaitlistEntities(models []WaitlistModel) []*waitlist.Entry {
	result := make([]*waitlist.Entry, len(models))
	for i := range models {
		result[i] = toWaitlistEntity(&models[i])
	}
	return result
}

// getDB 从context获取事务DB，如果没有则使用默认DB
func (r *waitlistRepository) getDB(ctx context.Context) *gorm.DB {
	return dbFromContext(ctx, r.db.WithContext(ctx))
}
