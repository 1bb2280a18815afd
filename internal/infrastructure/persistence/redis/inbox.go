package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiebiao/library/internal/domain/notification"
	apperrors "github.com/xiebiao/library/pkg/errors"
)

// InboxStore 通知收件箱存储
// 设计说明：
// 1. 每个用户一个List：notifications:{user_id}，新通知LPUSH到队头
// 2. LTRIM封顶，只保留最近N条，旧通知自动淘汰，List不会无限增长
// 3. 已读标记用Set：notifications:{user_id}:read，按通知ID记录，带TTL回收
// 4. 收件箱是"可靠底单"：用户不在线时错过的推送，上线后从这里补读
type InboxStore struct {
	client  *redis.Client
	maxSize int // 收件箱封顶条数
}

// NewInboxStore 创建收件箱存储
func NewInboxStore(client *redis.Client, maxSize int) *InboxStore {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &InboxStore{client: client, maxSize: maxSize}
}

func (s *InboxStore) inboxKey(userID uint) string {
	return fmt.Sprintf("notifications:%d", userID)
}

func (s *InboxStore) readKey(userID uint) string {
	return fmt.Sprintf("notifications:%d:read", userID)
}

// Append 写入一条通知
// LPUSH + LTRIM在Pipeline里一起发，保证封顶约束紧跟写入生效
func (s *InboxStore) Append(ctx context.Context, event *notification.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return apperrors.Wrap(err, "序列化通知失败")
	}

	key := s.inboxKey(event.UserID)

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(s.maxSize-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrap(err, "写入收件箱失败")
	}

	return nil
}

// List 读取最近的通知（队头最新）
// limit<=0或超过封顶时按封顶条数取
func (s *InboxStore) List(ctx context.Context, userID uint, limit int) ([]*notification.Event, error) {
	if limit <= 0 || limit > s.maxSize {
		limit = s.maxSize
	}

	items, err := s.client.LRange(ctx, s.inboxKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, apperrors.Wrap(err, "读取收件箱失败")
	}

	// 一次取回已读集合，避免逐条SISMEMBER
	readIDs, err := s.client.SMembers(ctx, s.readKey(userID)).Result()
	if err != nil {
		return nil, apperrors.Wrap(err, "读取已读标记失败")
	}
	readSet := make(map[string]struct{}, len(readIDs))
	for _, id := range readIDs {
		readSet[id] = struct{}{}
	}

	events := make([]*notification.Event, 0, len(items))
	for _, item := range items {
		var event notification.Event
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			// 脏数据跳过，不让一条坏记录毁掉整个收件箱
			continue
		}
		_, event.Read = readSet[event.ID]
		events = append(events, &event)
	}

	return events, nil
}

// readMarkerTTL 已读集合的过期时间
// 收件箱LTRIM封顶淘汰旧通知，但Set里的旧标记不会随之消失，
// 靠TTL兜底回收：最后一次标记已读30天后整个集合过期
const readMarkerTTL = 30 * 24 * time.Hour

// MarkRead 标记通知已读
// SADD返回新增元素个数：1=首次标记，0=重复标记（幂等）
// SADD和EXPIRE在Pipeline里一起发，每次标记刷新TTL
func (s *InboxStore) MarkRead(ctx context.Context, userID uint, notificationID string) (bool, error) {
	pipe := s.client.Pipeline()
	added := pipe.SAdd(ctx, s.readKey(userID), notificationID)
	pipe.Expire(ctx, s.readKey(userID), readMarkerTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, apperrors.Wrap(err, "标记已读失败")
	}

	return added.Val() > 0, nil
}
