// Package tracing 提供基于OpenTelemetry的分布式追踪框架
//
// # 为什么单体也需要追踪？
//
// 一次借出请求内部跨越多个环节：
//
//	HTTP处理 → 借出事务（行锁） → 缓存失效 → 指标上报
//
// 一次归还更是横跨两个链路：
//
//	归还事务 → 事件发布 →（异步）出队事务 → 通知推送
//
// 当借出变慢时，是锁等待慢?还是Redis慢?Span的耗时分布直接给出答案。
//
// # 核心概念
//
// 1. **Trace（追踪）**：一个完整的请求链路，包含多个Span
// 2. **Span（跨度）**：一个操作单元（如"BorrowBook"、"PopWaitlist"）
//    包含：操作名称、开始/结束时间、耗时、状态
// 3. **SpanContext**：跨进程传递的元数据
//    - TraceID：标识整个链路
//    - SpanID / ParentSpanID：构建调用树
//
// # DO/DON'T对比
//
// ❌ DON'T: 手动记录每个操作的耗时（无法关联）
//
//	func BorrowBook() {
//	    start := time.Now()
//	    txManager.Transaction(...)
//	    log.Printf("借出事务耗时： %v", time.Since(start)) // ❌ 看不到内部哪一步慢
//	}
//
// ✅ DO: 使用OpenTelemetry自动追踪
//
//	func BorrowBook(ctx context.Context) {
//	    ctx, span := tracing.StartSpan(ctx, "library", "BorrowBook")
//	    defer span.End()
//
//	    txManager.Transaction(ctx, ...) // ctx携带追踪信息，子环节自动挂为子Span
//	}
//
// # 最佳实践
//
// 1. **Span命名规范**：用操作名不用变量值：`BorrowBook`（✅） vs `BorrowBook-123`（❌）
// 2. **属性选择**：加业务属性（book_id、borrowing_id），不加敏感信息
// 3. **错误处理**：span.RecordError(err) + span.SetStatus(codes.Error, ...)
// 4. **资源清理**：defer span.End()；程序退出时调用shutdown()刷新未发送数据
//
// # 常见问题
//
// **Q: Span太多会影响性能吗？**
// A: 轻微影响（每个Span约1-2微秒），生产环境可降采样：
//   - 开发环境：100%采样（AlwaysSample）
//   - 生产环境：1%采样（TraceIDRatioBased）
//
// **Q: 如何关联日志和追踪？**
// A: 从Context提取TraceID写入日志：
//
//	traceID := tracing.ExtractTraceID(ctx)
//	log.Printf("TraceID=%s, 借出成功", traceID)
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// InitTracer 初始化全局Tracer Provider
//
// 参数：
//   - serviceName: 服务名称（在Jaeger UI中显示）
//   - collectorURL: Collector的OTLP gRPC端点（如：localhost:4317）
//
// 返回：
//   - shutdown: 关闭函数（程序退出时调用，确保数据刷新）
//   - error: 初始化失败时返回错误
//
// 设计要点：
// 1. 使用OTLP协议（厂商中立，未来可无缝切换到Zipkin、Datadog）
// 2. 采样策略：AlwaysSample适合开发环境，生产建议TraceIDRatioBased
// 3. 资源属性：service.name用于在Jaeger UI中分组
func InitTracer(serviceName, collectorURL string) (func(context.Context) error, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 1. 创建OTLP gRPC Exporter
	// OTLP支持gRPC（默认端口4317，高性能）和HTTP（默认端口4318，兼容性好）
	exporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(collectorURL),
		otlptracegrpc.WithInsecure(), // 禁用TLS（生产环境应启用）
	)
	if err != nil {
		return nil, fmt.Errorf("创建OTLP exporter失败: %w", err)
	}

	// 2. 创建Resource（资源属性）
	// 这些属性会附加到所有Span上，便于在Jaeger UI中筛选和分组
	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("创建资源属性失败: %w", err)
	}

	// 3. 创建Tracer Provider
	// TracerProvider负责创建Tracer、管理Span生命周期、
	// 应用采样策略、将Span批量发送到Exporter
	tp := sdktrace.NewTracerProvider(
		// 采样策略：AlwaysSample表示100%采样
		// 生产环境建议：sdktrace.WithSampler(sdktrace.TraceIDRatioBased(0.01))
		sdktrace.WithSampler(sdktrace.AlwaysSample()),

		// BatchSpanProcessor批量发送Span（性能优于SimpleSpanProcessor）
		sdktrace.WithBatcher(exporter),

		sdktrace.WithResource(res),
	)

	// 4. 设置全局TracerProvider
	// 业务代码无需传递Provider，直接用otel.Tracer()获取
	otel.SetTracerProvider(tp)

	// 5. 设置全局上下文传播器
	// W3C Trace Context（traceparent头）+ Baggage（自定义键值对）
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	// 6. 返回关闭函数
	// 必须在程序退出前调用，否则可能丢失最后一批Span
	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}

	return shutdown, nil
}

// StartSpan 创建一个新的Span（便捷函数）
//
// 参数：
//   - ctx: 父Context（包含父Span信息）
//   - tracerName: Tracer名称（通常是服务名或模块名）
//   - spanName: Span名称（操作名称，如"BorrowBook"）
//
// 设计要点：
// 1. ctx包含父Span时，新Span自动成为子Span，否则成为根Span
// 2. 必须使用返回的ctx调用下游函数，否则无法构建调用树
//
// 示例：
//
//	func ReturnBook(ctx context.Context) error {
//	    ctx, span := tracing.StartSpan(ctx, "library", "ReturnBook")
//	    defer span.End()
//
//	    span.SetAttributes(attribute.Int("borrowing_id", 123))
//
//	    if err := doReturn(ctx); err != nil {
//	        span.RecordError(err)
//	        return err
//	    }
//	    return nil
//	}
func StartSpan(ctx context.Context, tracerName, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, spanName)
}

// ExtractTraceID 从Context提取TraceID（用于关联日志）
//
// 在日志中记录TraceID，便于从日志快速定位到Jaeger追踪：
//
//	traceID := tracing.ExtractTraceID(ctx)
//	log.Printf("TraceID=%s, 归还成功， BorrowingID=%d", traceID, borrowingID)
func ExtractTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

// ExtractSpanID 从Context提取SpanID（分布式日志系统里关联Span）
func ExtractSpanID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().SpanID().String()
}
