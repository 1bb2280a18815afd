package notification

import (
	"fmt"

	"github.com/google/uuid"
)

// 事件类型
const (
	TypeBookAvailable = "BOOK_AVAILABLE" // 排队的图书有副本可借
)

// Event 通知事件
// 设计说明：
// 1. ID使用uuid，客户端以此做已读标记（幂等）
// 2. 事件既走实时通道（尽力送达）又写入收件箱（落盘保证，断线重连可回放）
// 3. 收件箱按用户封顶100条，最旧的先被淘汰
type Event struct {
	ID        string `json:"notification_id"`
	Type      string `json:"type"`
	UserID    uint   `json:"user_id"`
	BookID    uint   `json:"book_id"`
	RequestID uint   `json:"request_id"`
	BookTitle string `json:"book_title"`
	Message   string `json:"message"`
	Read      bool   `json:"read"` // 回放时按已读集合填充，不落收件箱
}

// NewBookAvailable 构建"图书可借"通知事件
func NewBookAvailable(userID, bookID, requestID uint, bookTitle string) *Event {
	if bookTitle == "" {
		bookTitle = "未知图书"
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      TypeBookAvailable,
		UserID:    userID,
		BookID:    bookID,
		RequestID: requestID,
		BookTitle: bookTitle,
		Message:   fmt.Sprintf("您排队的图书《%s》现在可以借阅了", bookTitle),
	}
}
