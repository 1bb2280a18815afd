package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/library/internal/domain/notification"
	"github.com/xiebiao/library/internal/interface/http/middleware"
	"github.com/xiebiao/library/pkg/metrics"
	"github.com/xiebiao/library/pkg/response"
)

// NotificationHandler 通知HTTP处理器
type NotificationHandler struct {
	dispatcher notification.Dispatcher
	keepAlive  time.Duration // SSE心跳间隔
}

// NewNotificationHandler 创建通知处理器
func NewNotificationHandler(dispatcher notification.Dispatcher, keepAlive time.Duration) *NotificationHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &NotificationHandler{
		dispatcher: dispatcher,
		keepAlive:  keepAlive,
	}
}

// Inbox 收件箱
// @Summary      通知收件箱
// @Description  最新的在前，带已读标记；封顶100条
// @Tags         通知
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "返回条数（默认50）"
// @Success      200 {object} response.Response{data=[]notification.Event}
// @Router       /api/v1/notifications [get]
func (h *NotificationHandler) Inbox(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	events, err := h.dispatcher.Inbox(c.Request.Context(), middleware.MustGetUserID(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, events)
}

// MarkRead 标记通知已读
// @Summary      标记已读
// @Description  幂等：重复标记返回already_read
// @Tags         通知
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "通知ID(uuid)"
// @Success      200 {object} response.Response
// @Router       /api/v1/notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notificationID := c.Param("id")
	if notificationID == "" {
		response.ErrorWithCode(c, 40000, "非法的通知ID")
		return
	}

	first, err := h.dispatcher.MarkRead(c.Request.Context(), middleware.MustGetUserID(c), notificationID)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := "read"
	if !first {
		status = "already_read"
	}
	response.Success(c, gin.H{"notification_id": notificationID, "status": status})
}

// Stream SSE实时通知流
// @Summary      通知实时流(SSE)
// @Description  连接后先回放收件箱，再实时推送新通知；心跳保活
// @Tags         通知
// @Produce      text/event-stream
// @Security     BearerAuth
// @Success      200 {string} string "SSE流"
// @Router       /api/v1/notifications/stream [get]
//
// 教学要点：SSE先回放后订阅
// 1. 先把收件箱里的存量通知按存储顺序吐给客户端（断线期间的通知不丢）
// 2. 再订阅实时通道，新通知即时送达
// 3. 定期发心跳注释行，防止代理/负载均衡掐掉空闲连接
// 4. 客户端断开(ctx.Done)即退出，订阅随ctx取消而注销
func (h *NotificationHandler) Stream(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.ErrorWithCode(c, 50000, "当前连接不支持流式响应")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no") // 禁用Nginx缓冲
	c.Writer.WriteHeader(http.StatusOK)

	metrics.IncGauge(metrics.SSEConnectionsActive)
	defer metrics.DecGauge(metrics.SSEConnectionsActive)

	ctx := c.Request.Context()

	// 第一步：回放收件箱存量通知
	events, err := h.dispatcher.Inbox(ctx, userID, 100)
	if err == nil {
		// 收件箱最新在前，回放时倒序输出（旧→新），客户端按到达顺序展示
		for i := len(events) - 1; i >= 0; i-- {
			writeSSEEvent(c, events[i])
		}
		flusher.Flush()
	}

	// 第二步：订阅实时通道
	ch, err := h.dispatcher.Subscribe(ctx, userID)
	if err != nil {
		// 订阅失败不中断连接：客户端依然拿到了回放，靠重连补实时
		fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"实时订阅不可用\"}\n\n")
		flusher.Flush()
		return
	}

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			// 客户端断开
			return
		case event, open := <-ch:
			if !open {
				return
			}
			writeSSEEvent(c, event)
			flusher.Flush()
		case <-keepAlive.C:
			// SSE注释行：客户端忽略，中间设备认为连接活跃
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent 按SSE wire格式输出一条通知
func writeSSEEvent(c *gin.Context, event *notification.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "id: %s\nevent: notification\ndata: %s\n\n", event.ID, payload)
}
