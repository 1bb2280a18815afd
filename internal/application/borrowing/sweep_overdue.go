package borrowing

import (
	"context"
	"log"
	"time"

	"github.com/xiebiao/library/internal/domain/borrowing"
	"github.com/xiebiao/library/pkg/metrics"
	"github.com/xiebiao/library/pkg/tracing"
)

// SweepOverdueUseCase 逾期巡检用例
// 教学要点：
// 1. 一条守卫UPDATE完成全部标记，不是逐行读改写，
//    borrowed且已过应还时间的记录一次性变overdue
// 2. 天然幂等：再跑一遍没有新匹配的行，RowsAffected=0
// 3. 双入口：后台定时器周期执行 + 馆员手动触发
type SweepOverdueUseCase struct {
	borrowingRepo borrowing.Repository
}

// NewSweepOverdueUseCase 创建逾期巡检用例
func NewSweepOverdueUseCase(borrowingRepo borrowing.Repository) *SweepOverdueUseCase {
	return &SweepOverdueUseCase{borrowingRepo: borrowingRepo}
}

// SweepOverdueResponse 巡检响应DTO
type SweepOverdueResponse struct {
	MarkedCount int64  `json:"marked_count"` // 本轮标记的记录数
	SweptAt     string `json:"swept_at"`
}

// Execute 执行一轮逾期巡检
func (uc *SweepOverdueUseCase) Execute(ctx context.Context, now time.Time) (*SweepOverdueResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "library", "SweepOverdue")
	defer span.End()

	count, err := uc.borrowingRepo.MarkOverdueBefore(ctx, now)
	if err != nil {
		return nil, err
	}

	if count > 0 {
		log.Printf("🔎 逾期巡检完成: 本轮标记%d条", count)
		metrics.OverdueSweptTotal.Add(float64(count))
	}

	return &SweepOverdueResponse{
		MarkedCount: count,
		SweptAt:     now.Format(time.RFC3339),
	}, nil
}

// RunTicker 周期巡检（后台goroutine入口）
// ctx取消时退出，interval<=0时使用1小时
func (uc *SweepOverdueUseCase) RunTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := uc.Execute(ctx, time.Now()); err != nil {
				log.Printf("❌ 逾期巡检失败: %v", err)
			}
		}
	}
}
