// Package eventbus 归还事件的发布/订阅端口
//
// 设计说明：
// 1. 应用层只依赖Bus接口，不关心消息如何传递
// 2. 两个实现：
//    - MemoryBus: 进程内channel，单体部署/测试用(mq.enabled=false)
//    - AMQPBus: RabbitMQ，多实例部署时事件跨进程送达
// 3. 消费侧统一是Handler函数，换实现不用改业务代码
package eventbus

import (
	"context"

	"github.com/xiebiao/library/internal/domain/borrowing"
)

// Handler 归还事件处理函数
// 返回错误表示处理失败，由各实现决定重试策略
type Handler func(ctx context.Context, event borrowing.ReturnedEvent) error

// Bus 归还事件总线
type Bus interface {
	// PublishReturned 发布归还事件（在归还事务提交后调用）
	PublishReturned(ctx context.Context, event borrowing.ReturnedEvent) error

	// Start 启动消费循环，阻塞直到ctx取消
	Start(ctx context.Context, handler Handler) error

	// Close 释放资源
	Close() error
}
