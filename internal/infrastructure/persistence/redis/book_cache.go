package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiebiao/library/internal/domain/book"
)

// BookCache 图书详情缓存
// 设计说明：
// 1. 旁路缓存(Cache-Aside)：读时先查缓存，未命中回源DB再回填
// 2. 缓存只存图书基础信息，副本数这种强一致字段以DB为准，
//    写路径（借出/归还/盘点）直接删除缓存而不是更新缓存
// 3. 缓存失败降级为直查DB，绝不因为Redis故障拒绝请求
type BookCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBookCache 创建图书缓存
func NewBookCache(client *redis.Client) *BookCache {
	return &BookCache{
		client: client,
		ttl:    10 * time.Minute,
	}
}

func (c *BookCache) key(bookID uint) string {
	return fmt.Sprintf("book:%d", bookID)
}

// Get 读取缓存，未命中返回(nil, nil)
func (c *BookCache) Get(ctx context.Context, bookID uint) (*book.Book, error) {
	data, err := c.client.Get(ctx, c.key(bookID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // 未命中
		}
		return nil, err
	}

	var b book.Book
	if err := json.Unmarshal(data, &b); err != nil {
		// 脏数据当未命中处理，回源后会被覆盖
		return nil, nil
	}

	return &b, nil
}

// Set 回填缓存
func (c *BookCache) Set(ctx context.Context, b *book.Book) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, c.key(b.ID), data, c.ttl).Err()
}

// Invalidate 删除缓存（写路径调用）
func (c *BookCache) Invalidate(ctx context.Context, bookID uint) error {
	return c.client.Del(ctx, c.key(bookID)).Err()
}
