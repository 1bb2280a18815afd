package eventbus

import (
	"context"
	"encoding/json"

	"github.com/xiebiao/library/internal/domain/borrowing"
	"github.com/xiebiao/library/internal/infrastructure/config"
	"github.com/xiebiao/library/pkg/mq"
)

// AMQPBus 基于RabbitMQ的事件总线
// 设计说明：
// 1. 复用pkg/mq的Publisher/Consumer,Topic Exchange + 持久化队列
// 2. 多实例部署时，归还事件进同一个队列，多个消费者竞争消费，
//    一次归还只触发一次出队通知
// 3. handler返回错误时消息Nack重新入队，由MQ兜底重试
type AMQPBus struct {
	publisher *mq.Publisher
	consumer  *mq.Consumer
}

// NewAMQPBus 创建RabbitMQ事件总线
func NewAMQPBus(cfg config.MQConfig) (*AMQPBus, error) {
	publisher, err := mq.NewPublisher(cfg.URL, cfg.Exchange, "topic")
	if err != nil {
		return nil, err
	}

	consumer, err := mq.NewConsumer(
		cfg.URL,
		cfg.Exchange,
		"topic",
		cfg.Queue,
		[]string{borrowing.RoutingKeyReturned},
	)
	if err != nil {
		publisher.Close()
		return nil, err
	}

	return &AMQPBus{
		publisher: publisher,
		consumer:  consumer,
	}, nil
}

// PublishReturned 发布归还事件
func (b *AMQPBus) PublishReturned(_ context.Context, event borrowing.ReturnedEvent) error {
	return b.publisher.Publish(borrowing.RoutingKeyReturned, event)
}

// Start 启动消费循环，阻塞直到ctx取消
func (b *AMQPBus) Start(ctx context.Context, handler Handler) error {
	return b.consumer.Consume(ctx, func(body []byte) error {
		var event borrowing.ReturnedEvent
		if err := json.Unmarshal(body, &event); err != nil {
			// 格式错误的消息重新入队也没用，直接吞掉
			return nil
		}
		return handler(ctx, event)
	})
}

// Close 释放连接
func (b *AMQPBus) Close() error {
	if b.publisher != nil {
		b.publisher.Close()
	}
	if b.consumer != nil {
		b.consumer.Close()
	}
	return nil
}
