//go:build wireinject
// +build wireinject

// Wire依赖注入配置文件
//
// 教学说明：
// 1. Wire是Google开发的编译期依赖注入工具
// 2. 与运行时反射注入（如Spring的@Autowired）不同，Wire在编译期生成代码
// 3. 优势：零运行时开销、类型安全、编译期检测循环依赖
//
// Wire工作流程：
// Step 1: 编写wire.go（本文件），定义Providers和Injector
// Step 2: 运行 `wire gen ./cmd/api`
// Step 3: Wire生成wire_gen.go，包含完整的依赖创建代码
// Step 4: main.go调用wire_gen.go中的InitializeApp()

package main

import (
	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	goredis "github.com/redis/go-redis/v9"

	appbook "github.com/xiebiao/library/internal/application/book"
	appborrowing "github.com/xiebiao/library/internal/application/borrowing"
	appuser "github.com/xiebiao/library/internal/application/user"
	"github.com/xiebiao/library/internal/domain/book"
	"github.com/xiebiao/library/internal/domain/borrowing"
	"github.com/xiebiao/library/internal/domain/notification"
	"github.com/xiebiao/library/internal/domain/user"
	"github.com/xiebiao/library/internal/infrastructure/config"
	"github.com/xiebiao/library/internal/infrastructure/notify"
	"github.com/xiebiao/library/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/library/internal/infrastructure/persistence/redis"
	httpiface "github.com/xiebiao/library/internal/interface/http"
	"github.com/xiebiao/library/internal/interface/http/handler"
	"github.com/xiebiao/library/internal/interface/http/middleware"
	"github.com/xiebiao/library/pkg/jwt"
)

// infrastructureSet 基础设施层依赖
var infrastructureSet = wire.NewSet(
	config.Load,     // 加载配置文件
	mysql.NewDB,     // 创建MySQL连接
	redis.NewClient, // 创建Redis连接
)

// repositorySet 仓储层依赖
// 教学要点：wire.Bind把具体实现绑定到应用层端口接口，
// 一个*mysql.TxManager同时满足borrowing和book两个包的TxManager端口
var repositorySet = wire.NewSet(
	mysql.NewUserRepository,      // 用户仓储
	mysql.NewBookRepository,      // 图书仓储
	mysql.NewBorrowingRepository, // 借阅仓储
	mysql.NewWaitlistRepository,  // 排队仓储
	mysql.NewTxManager,           // 事务管理器
	wire.Bind(new(appborrowing.TxManager), new(*mysql.TxManager)),
	wire.Bind(new(appbook.TxManager), new(*mysql.TxManager)),
	wire.Bind(new(appbook.LoanCounter), new(borrowing.Repository)),
)

// redisStoreSet Redis存储依赖
var redisStoreSet = wire.NewSet(
	provideSessionStore, // 会话存储
	provideInboxStore,   // 通知收件箱
	redis.NewBookCache,  // 图书详情缓存
	wire.Bind(new(appborrowing.BookCacheInvalidator), new(*redis.BookCache)),
	wire.Bind(new(appbook.Cache), new(*redis.BookCache)),
)

// domainSet 领域层依赖
var domainSet = wire.NewSet(
	user.NewService, // 用户领域服务
	book.NewService, // 图书领域服务
)

// applicationSet 应用层依赖
var applicationSet = wire.NewSet(
	appborrowing.NewBorrowBookUseCase,      // 借书用例
	appborrowing.NewReturnBookUseCase,      // 还书用例
	appborrowing.NewSweepOverdueUseCase,    // 逾期巡检用例
	appborrowing.NewQueryBorrowingsUseCase, // 借阅查询用例
	appborrowing.NewCancelWaitlistUseCase,  // 撤销排队用例
	appborrowing.NewQueryWaitlistUseCase,   // 排队查询用例
	appbook.NewManageBooksUseCase,          // 图书管理用例
	appbook.NewQueryBooksUseCase,           // 图书查询用例
	provideAuthUseCase,                     // 认证用例（从config提取refreshTTL）
	appuser.NewManageUsersUseCase,          // 用户管理用例
)

// middlewareSet 中间件依赖
var middlewareSet = wire.NewSet(
	provideJWTManager,            // JWT管理器（需要从config提取参数）
	middleware.NewAuthMiddleware, // 认证中间件
)

// handlerSet HTTP处理器依赖
var handlerSet = wire.NewSet(
	handler.NewUserHandler,      // 用户处理器
	handler.NewBookHandler,      // 图书处理器
	handler.NewBorrowingHandler, // 借阅处理器
	provideNotificationHandler,  // 通知处理器（从config提取心跳间隔）
	provideNotifyDispatcher,     // 通知分发器
	wire.Struct(new(httpiface.Handlers), "*"),
)

// ========================================
// Custom Providers (自定义Provider)
// ========================================
// 有些依赖的构造函数参数需要从Config中提取，Wire无法自动推导

// provideJWTManager 从配置创建JWT管理器
func provideJWTManager(cfg *config.Config) *jwt.Manager {
	return jwt.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpire,
		cfg.JWT.RefreshTokenExpire,
	)
}

// provideSessionStore 从Redis客户端创建Session存储
func provideSessionStore(client *goredis.Client) *redis.SessionStore {
	return redis.NewSessionStore(client)
}

// provideInboxStore 从配置创建通知收件箱
func provideInboxStore(client *goredis.Client, cfg *config.Config) *redis.InboxStore {
	return redis.NewInboxStore(client, cfg.Notify.InboxSize)
}

// provideNotifyDispatcher 通知分发器
func provideNotifyDispatcher(client *goredis.Client, inbox *redis.InboxStore, bookRepo book.Repository) notification.Dispatcher {
	return notify.NewDispatcher(client, inbox, bookRepo)
}

// provideAuthUseCase 从配置提取Refresh Token有效期
func provideAuthUseCase(svc user.Service, jwtManager *jwt.Manager, sessions *redis.SessionStore, cfg *config.Config) *appuser.AuthUseCase {
	return appuser.NewAuthUseCase(svc, jwtManager, sessions, cfg.JWT.RefreshTokenExpire)
}

// provideNotificationHandler 从配置提取SSE心跳间隔
func provideNotificationHandler(dispatcher notification.Dispatcher, cfg *config.Config) *handler.NotificationHandler {
	return handler.NewNotificationHandler(dispatcher, cfg.Notify.KeepAlive)
}

// provideGinEngine 创建并配置Gin引擎
func provideGinEngine(
	cfg *config.Config,
	handlers httpiface.Handlers,
	authMiddleware *middleware.AuthMiddleware,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Logger(), gin.Recovery(), middleware.Metrics())
	httpiface.RegisterRoutes(r, handlers, authMiddleware)
	return r
}

// ========================================
// Wire Injector (依赖注入器)
// ========================================

// InitializeApp 构建完整的Gin应用
// 事件总线作为参数传入：它的实现（进程内channel或RabbitMQ）
// 和后台消费协程的生命周期由main.go按配置决定，不适合交给编译期DI
func InitializeApp(publisher appborrowing.EventPublisher) (*gin.Engine, error) {
	wire.Build(
		infrastructureSet,
		repositorySet,
		redisStoreSet,
		domainSet,
		applicationSet,
		middlewareSet,
		handlerSet,
		provideGinEngine,
	)
	return nil, nil
}
