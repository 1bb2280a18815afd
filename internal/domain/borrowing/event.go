package borrowing

import (
	"time"
)

// RoutingKeyReturned 归还事件的路由键
const RoutingKeyReturned = "borrowing.returned"

// ReturnedEvent 归还完成事件
// 设计说明：
// 1. 在归还事务提交之后发布，事务内发布的话，消费者可能在
//    副本数尚未落库时就去出队通知，读者赶来却借不到
// 2. 事件只带ID，消费者需要什么再查，瘦事件，避免消息里的
//    快照数据与数据库状态漂移
type ReturnedEvent struct {
	BorrowingID uint      `json:"borrowing_id"`
	BookID      uint      `json:"book_id"`
	UserID      uint      `json:"user_id"`
	ReturnedAt  time.Time `json:"returned_at"`
}
