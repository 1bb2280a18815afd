package book

import (
	"time"
)

// Book 图书实体（聚合根）
// DDD设计说明：
// 1. Book是图书聚合的根实体，馆藏副本数和可借副本数直接挂在实体上
// 2. 不变式： 0 <= AvailableCopies <= TotalCopies(任何时刻都必须成立)
// 3. AvailableCopies只允许被借还协调逻辑在事务内修改，禁止其他路径直接改写
// 4. ISBN作为业务唯一标识（数据库层保证唯一性）
type Book struct {
	ID              uint
	ISBN            string // ISBN号（国际标准书号）
	Title           string // 书名
	Author          string // 作者
	Publisher       string // 出版社
	Description     string // 图书描述
	TotalCopies     int    // 馆藏总副本数
	AvailableCopies int    // 当前可借副本数
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewBook 创建新图书（工厂方法）
// 新书上架时所有副本都可借： AvailableCopies = TotalCopies
func NewBook(isbn, title, author, publisher, description string, totalCopies int) *Book {
	now := time.Now()
	return &Book{
		ISBN:            isbn,
		Title:           title,
		Author:          author,
		Publisher:       publisher,
		Description:     description,
		TotalCopies:     totalCopies,
		AvailableCopies: totalCopies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// IsAvailable 是否有可借副本
func (b *Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}

// BorrowedCopies 当前借出的副本数
func (b *Book) BorrowedCopies() int {
	return b.TotalCopies - b.AvailableCopies
}

// ReviseTotalCopies 馆藏盘点修正总副本数（领域行为）
// 业务规则：
// 1. 新总数不能为负
// 2. 已借出的副本不受盘点影响，可借数 = 新总数 - 已借出数
// 3. 结果必须落在[0, 新总数]区间内（借出数可能超过新总数，此时可借数取0）
func (b *Book) ReviseTotalCopies(newTotal int) error {
	if newTotal < 0 {
		return ErrInvalidCopies
	}
	borrowed := b.BorrowedCopies()
	available := newTotal - borrowed
	if available < 0 {
		available = 0
	}
	if available > newTotal {
		available = newTotal
	}
	b.TotalCopies = newTotal
	b.AvailableCopies = available
	b.UpdatedAt = time.Now()
	return nil
}

// UpdateInfo 更新图书基本信息
func (b *Book) UpdateInfo(title, author, publisher, description string) {
	if title != "" {
		b.Title = title
	}
	if author != "" {
		b.Author = author
	}
	if publisher != "" {
		b.Publisher = publisher
	}
	if description != "" {
		b.Description = description
	}
	b.UpdatedAt = time.Now()
}
