package eventbus

import (
	"context"
	"log"
	"sync"

	"github.com/xiebiao/library/internal/domain/borrowing"
)

// MemoryBus 进程内事件总线
// 设计说明：
// 1. 带缓冲channel解耦发布方和消费方：归还接口不等通知处理完成
// 2. 缓冲打满时丢弃并记日志，实时通知本就是尽力送达，
//    错过推送的读者还能从收件箱补读
// 3. 处理失败只记日志不重试，语义与MQ实现的"最多影响一条"对齐
type MemoryBus struct {
	events chan borrowing.ReturnedEvent

	closeOnce sync.Once
	closed    chan struct{}
}

// NewMemoryBus 创建进程内事件总线
func NewMemoryBus(bufferSize int) *MemoryBus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &MemoryBus{
		events: make(chan borrowing.ReturnedEvent, bufferSize),
		closed: make(chan struct{}),
	}
}

// PublishReturned 发布归还事件（非阻塞）
func (b *MemoryBus) PublishReturned(ctx context.Context, event borrowing.ReturnedEvent) error {
	select {
	case <-b.closed:
		return nil // 已关闭，静默丢弃（关停阶段）
	default:
	}

	select {
	case b.events <- event:
		return nil
	default:
		// 缓冲打满，丢弃而不是阻塞归还接口
		log.Printf("⚠️ 事件缓冲已满,丢弃归还事件: borrowing_id=%d book_id=%d", event.BorrowingID, event.BookID)
		return nil
	}
}

// Start 启动消费循环，阻塞直到ctx取消或总线关闭
func (b *MemoryBus) Start(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.closed:
			return nil
		case event := <-b.events:
			if err := handler(ctx, event); err != nil {
				log.Printf("❌ 归还事件处理失败: borrowing_id=%d, err=%v", event.BorrowingID, err)
			}
		}
	}
}

// Close 关闭总线
func (b *MemoryBus) Close() error {
	b.closeOnce.Do(func() {
		close(b.closed)
	})
	return nil
}
