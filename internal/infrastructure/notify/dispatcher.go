// Package notify 通知分发的Redis实现
//
// 通道设计：
// 1. 实时推送： Redis Pub/Sub，频道 user:{id}:notifications
//    Pub/Sub是"在线才收得到"的火后即忘语义，天然匹配尽力送达
// 2. 可靠底单： 收件箱List(见persistence/redis.InboxStore),
//    先落盘再推送，推送丢了还能补读
// 3. 推送链路包一层熔断器： Redis抖动时快速失败，
//    不让一次归还的事件处理被推送重试拖死
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xiebiao/library/internal/domain/book"
	"github.com/xiebiao/library/internal/domain/notification"
	redisstore "github.com/xiebiao/library/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/library/pkg/circuitbreaker"
	apperrors "github.com/xiebiao/library/pkg/errors"
)

// Dispatcher 基于Redis的通知分发器
type Dispatcher struct {
	client   *goredis.Client
	inbox    *redisstore.InboxStore
	bookRepo book.Repository
	breaker  *circuitbreaker.CircuitBreaker
}

// NewDispatcher 创建通知分发器
func NewDispatcher(client *goredis.Client, inbox *redisstore.InboxStore, bookRepo book.Repository) *Dispatcher {
	breaker := circuitbreaker.NewCircuitBreaker("notify-push", circuitbreaker.Config{
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	breaker.SetStateChangeCallback(func(name string, from, to circuitbreaker.State) {
		log.Printf("⚡ 熔断器[%s]状态变化: %s -> %s", name, from, to)
	})

	return &Dispatcher{
		client:   client,
		inbox:    inbox,
		bookRepo: bookRepo,
		breaker:  breaker,
	}
}

func channelKey(userID uint) string {
	return fmt.Sprintf("user:%d:notifications", userID)
}

// NotifyAvailable 发出"图书可借"通知
// 顺序约定：先写收件箱（可靠底单），再做实时推送（尽力而为）
// 收件箱失败返回错误交由消费侧重试，推送失败只记日志
func (d *Dispatcher) NotifyAvailable(ctx context.Context, userID, bookID, requestID uint) error {
	// 查书名只为了消息可读，查不到用占位符，不让通知因此失败
	title := ""
	if b, err := d.bookRepo.FindByID(ctx, bookID); err == nil {
		title = b.Title
	}

	event := notification.NewBookAvailable(userID, bookID, requestID, title)

	// 1. 落盘收件箱
	if err := d.inbox.Append(ctx, event); err != nil {
		return err
	}

	// 2. 实时推送（熔断保护，失败不影响结果）
	payload, err := json.Marshal(event)
	if err != nil {
		return apperrors.Wrap(err, "序列化通知失败")
	}

	pushErr := d.breaker.Execute(func() error {
		return d.client.Publish(ctx, channelKey(userID), payload).Err()
	})
	if pushErr != nil {
		log.Printf("⚠️ 实时推送失败(收件箱已落盘): user_id=%d, err=%v", userID, pushErr)
	}

	return nil
}

// Inbox 读取用户收件箱
func (d *Dispatcher) Inbox(ctx context.Context, userID uint, limit int) ([]*notification.Event, error) {
	return d.inbox.List(ctx, userID, limit)
}

// Subscribe 订阅用户的实时通知
// 学习要点：
// 1. go-redis的Subscribe自带goroutine安全的Channel()
// 2. ctx取消时关闭订阅和返回通道，调用方用ctx控制生命周期
// 3. 返回通道带小缓冲，消费方（SSE写出）短暂卡顿不会丢消息
func (d *Dispatcher) Subscribe(ctx context.Context, userID uint) (<-chan *notification.Event, error) {
	pubsub := d.client.Subscribe(ctx, channelKey(userID))

	// 确认订阅建立，失败及早返回
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, apperrors.Wrap(err, "订阅通知频道失败")
	}

	out := make(chan *notification.Event, 16)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event notification.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue // 脏消息跳过
				}

				select {
				case out <- &event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// MarkRead 标记通知已读（幂等）
func (d *Dispatcher) MarkRead(ctx context.Context, userID uint, notificationID string) (bool, error) {
	return d.inbox.MarkRead(ctx, userID, notificationID)
}
