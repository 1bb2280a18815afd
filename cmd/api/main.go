package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	appbook "github.com/xiebiao/library/internal/application/book"
	appborrowing "github.com/xiebiao/library/internal/application/borrowing"
	appuser "github.com/xiebiao/library/internal/application/user"
	"github.com/xiebiao/library/internal/domain/book"
	"github.com/xiebiao/library/internal/domain/user"
	"github.com/xiebiao/library/internal/infrastructure/config"
	"github.com/xiebiao/library/internal/infrastructure/eventbus"
	"github.com/xiebiao/library/internal/infrastructure/notify"
	"github.com/xiebiao/library/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/library/internal/infrastructure/persistence/redis"
	httpiface "github.com/xiebiao/library/internal/interface/http"
	"github.com/xiebiao/library/internal/interface/http/handler"
	"github.com/xiebiao/library/internal/interface/http/middleware"
	"github.com/xiebiao/library/pkg/jwt"
	"github.com/xiebiao/library/pkg/metrics"
	"github.com/xiebiao/library/pkg/tracing"
)

// @title           图书馆借阅系统 API
// @version         1.0
// @description     图书借阅/排队/通知后端服务
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization

// main 主程序入口
// 说明：手动依赖注入（Wire配置见wire.go，生成代码后可切换）
func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	fmt.Printf("✓ 配置加载成功\n")
	fmt.Printf("  - 服务端口: %d\n", cfg.Server.Port)
	fmt.Printf("  - 运行模式: %s\n", cfg.Server.Mode)
	fmt.Printf("  - 数据库: %s:%d/%s\n", cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
	fmt.Printf("  - Redis: %s\n", cfg.Redis.Addr())
	fmt.Printf("  - MQ: enabled=%v\n", cfg.MQ.Enabled)

	// 2. 初始化指标
	metrics.InitMetrics()

	// 3. 链路追踪（可选）
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorURL)
		if err != nil {
			log.Fatalf("初始化链路追踪失败: %v", err)
		}
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer flushCancel()
			if err := shutdown(flushCtx); err != nil {
				log.Printf("⚠️ 链路追踪关闭异常: %v", err)
			}
		}()
	}

	// 4. 初始化数据库连接
	db, err := mysql.NewDB(cfg)
	if err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}

	// 5. 初始化Redis连接
	redisClient, err := redis.NewClient(cfg)
	if err != nil {
		log.Fatalf("初始化Redis失败: %v", err)
	}

	// 6. 依赖注入（手动组装）
	// 依赖链：Repository ← Service ← UseCase ← Handler

	// 基础设施层
	userRepo := mysql.NewUserRepository(db)
	bookRepo := mysql.NewBookRepository(db)
	borrowingRepo := mysql.NewBorrowingRepository(db)
	waitlistRepo := mysql.NewWaitlistRepository(db)
	txManager := mysql.NewTxManager(db)
	sessionStore := redis.NewSessionStore(redisClient)
	inboxStore := redis.NewInboxStore(redisClient, cfg.Notify.InboxSize)
	bookCache := redis.NewBookCache(redisClient)
	jwtManager := jwt.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpire,
		cfg.JWT.RefreshTokenExpire,
	)

	// 通知分发器
	dispatcher := notify.NewDispatcher(redisClient, inboxStore, bookRepo)

	// 归还事件总线：单机走进程内channel，集群走RabbitMQ
	var bus eventbus.Bus
	if cfg.MQ.Enabled {
		amqpBus, err := eventbus.NewAMQPBus(cfg.MQ)
		if err != nil {
			log.Fatalf("初始化RabbitMQ失败: %v", err)
		}
		bus = amqpBus
	} else {
		bus = eventbus.NewMemoryBus(0)
	}
	defer bus.Close()

	// 领域层
	userService := user.NewService(userRepo)
	bookService := book.NewService(bookRepo)

	// 应用层
	borrowUseCase := appborrowing.NewBorrowBookUseCase(bookRepo, borrowingRepo, waitlistRepo, txManager, bookCache)
	returnUseCase := appborrowing.NewReturnBookUseCase(bookRepo, borrowingRepo, txManager, bus, bookCache)
	processUseCase := appborrowing.NewProcessReturnUseCase(waitlistRepo, txManager, dispatcher)
	sweepUseCase := appborrowing.NewSweepOverdueUseCase(borrowingRepo)
	queryUseCase := appborrowing.NewQueryBorrowingsUseCase(borrowingRepo, sweepUseCase)
	cancelUseCase := appborrowing.NewCancelWaitlistUseCase(waitlistRepo, txManager)
	waitlistQuery := appborrowing.NewQueryWaitlistUseCase(waitlistRepo)
	manageBooks := appbook.NewManageBooksUseCase(bookService, bookRepo, borrowingRepo, txManager, bookCache)
	queryBooks := appbook.NewQueryBooksUseCase(bookService, bookCache)
	authUseCase := appuser.NewAuthUseCase(userService, jwtManager, sessionStore, cfg.JWT.RefreshTokenExpire)
	manageUsers := appuser.NewManageUsersUseCase(userService)

	// 接口层
	handlers := httpiface.Handlers{
		User:         handler.NewUserHandler(authUseCase, manageUsers),
		Book:         handler.NewBookHandler(manageBooks, queryBooks),
		Borrowing:    handler.NewBorrowingHandler(borrowUseCase, returnUseCase, queryUseCase, sweepUseCase, cancelUseCase, waitlistQuery),
		Notification: handler.NewNotificationHandler(dispatcher, cfg.Notify.KeepAlive),
	}
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, sessionStore)

	// 7. 后台协程：归还事件消费 + 逾期巡检
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := bus.Start(ctx, processUseCase.Handle); err != nil {
			log.Printf("⚠️ 归还事件消费退出: %v", err)
		}
	}()

	if cfg.Sweep.Interval > 0 {
		go sweepUseCase.RunTicker(ctx, cfg.Sweep.Interval)
	}

	// 8. 初始化Gin引擎
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Logger(), gin.Recovery(), middleware.Metrics())

	// 9. 注册路由
	httpiface.RegisterRoutes(r, handlers, authMiddleware)

	// 10. 启动服务（带优雅关闭）
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	// 不设ReadTimeout/WriteTimeout:SSE通知流是长连接，
	// 全局deadline到点会掐断所有活跃流（回放+心跳都救不回来）
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	go func() {
		fmt.Printf("\n🚀 服务启动成功！\n")
		fmt.Printf("   访问地址: http://localhost%s\n", addr)
		fmt.Printf("   健康检查: http://localhost%s/ping\n", addr)
		fmt.Printf("   API文档: http://localhost%s/swagger/index.html\n", addr)
		fmt.Printf("   指标: http://localhost%s/metrics\n", addr)
		fmt.Printf("\n按Ctrl+C停止服务\n\n")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("启动服务失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\n⏳ 正在关闭服务...")

	// 先停HTTP(不再接新请求)，再停后台消费
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ HTTP服务关闭异常: %v", err)
	}
	cancel()

	fmt.Println("✓ 服务已退出")
}
