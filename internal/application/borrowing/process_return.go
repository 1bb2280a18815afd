package borrowing

import (
	"context"
	"log"
	"time"

	"github.com/xiebiao/library/internal/domain/borrowing"
	"github.com/xiebiao/library/internal/domain/notification"
	"github.com/xiebiao/library/internal/domain/waitlist"
	"github.com/xiebiao/library/pkg/metrics"
	"github.com/xiebiao/library/pkg/tracing"
)

// ProcessReturnUseCase 归还事件处理用例（消费侧）
// 教学要点：出队+通知与归还事务解耦
// 归还事务提交 → 事件送达 → 本用例出队最早的排队读者并发通知
type ProcessReturnUseCase struct {
	waitlistRepo waitlist.Repository
	txManager    TxManager
	dispatcher   notification.Dispatcher
}

// NewProcessReturnUseCase 创建归还事件处理用例
func NewProcessReturnUseCase(
	waitlistRepo waitlist.Repository,
	txManager TxManager,
	dispatcher notification.Dispatcher,
) *ProcessReturnUseCase {
	return &ProcessReturnUseCase{
		waitlistRepo: waitlistRepo,
		txManager:    txManager,
		dispatcher:   dispatcher,
	}
}

// Handle 处理一条归还事件
// 教学重点：一次归还最多通知一人
//
// 流程：
//  1. 事务内锁定队首PENDING记录(FOR UPDATE)
//     两个归还事件并发处理同一本书时，后到者等锁，
//     锁释放后看到的队首已是FULFILLED，拿到的是下一位
//  2. 状态流转PENDING→FULFILLED + notification_sent=true，同一事务提交
//  3. 提交后发出通知（收件箱落盘失败返回错误，交由总线重试）
//
// 注意：空队列静默结束，不是错误
func (uc *ProcessReturnUseCase) Handle(ctx context.Context, event borrowing.ReturnedEvent) error {
	ctx, span := tracing.StartSpan(ctx, "library", "ProcessReturn")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.ObserveHistogram(metrics.MessageProcessingDuration, time.Since(start).Seconds())
	}()

	var popped *waitlist.Entry
	err := uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		entry, err := uc.waitlistRepo.LockNextPending(txCtx, event.BookID)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil // 没人排队
		}

		// PENDING→FULFILLED + 通知标记，与出队同一事务
		if err := entry.Fulfill(time.Now()); err != nil {
			return err
		}
		if err := uc.waitlistRepo.Update(txCtx, entry); err != nil {
			return err
		}

		popped = entry
		return nil
	})

	if err != nil {
		metrics.IncCounterVec(metrics.MessagesConsumedTotal, map[string]string{"result": "failure"})
		return err
	}

	if popped == nil {
		metrics.IncCounterVec(metrics.MessagesConsumedTotal, map[string]string{"result": "success"})
		return nil
	}

	metrics.IncCounter(metrics.WaitlistFulfilledTotal)

	// 出队已提交，发通知
	// 收件箱落盘失败返回错误让消息重试；实时推送失败在分发器内部消化
	if err := uc.dispatcher.NotifyAvailable(ctx, popped.UserID, popped.BookID, popped.ID); err != nil {
		log.Printf("❌ 可借通知发送失败: user_id=%d, book_id=%d, err=%v", popped.UserID, popped.BookID, err)
		metrics.IncCounterVec(metrics.NotificationsTotal, map[string]string{"result": "failed"})
		metrics.IncCounterVec(metrics.MessagesConsumedTotal, map[string]string{"result": "failure"})
		return err
	}

	metrics.IncCounterVec(metrics.NotificationsTotal, map[string]string{"result": "delivered"})
	metrics.IncCounterVec(metrics.MessagesConsumedTotal, map[string]string{"result": "success"})
	return nil
}
