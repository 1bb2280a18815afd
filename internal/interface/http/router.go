// Package http 路由与HTTP接口层装配
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/xiebiao/library/internal/domain/user"
	"github.com/xiebiao/library/internal/interface/http/handler"
	"github.com/xiebiao/library/internal/interface/http/middleware"
	"github.com/xiebiao/library/pkg/response"
)

// Handlers 接口层所有处理器的集合（装配用）
type Handlers struct {
	User         *handler.UserHandler
	Book         *handler.BookHandler
	Borrowing    *handler.BorrowingHandler
	Notification *handler.NotificationHandler
}

// RegisterRoutes 注册全部路由
// 路由分组：
// - 公开：注册/登录/刷新、图书浏览、健康检查、/metrics、/swagger
// - 登录：借还、排队、通知、个人资料
// - 馆员：馆藏管理、台账、逾期巡检、读者借阅查询
// - 管理员：角色变更
func RegisterRoutes(r *gin.Engine, h Handlers, auth *middleware.AuthMiddleware) {
	// 健康检查
	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "pong",
			"status":  "healthy",
		})
	})

	// Prometheus指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger文档
	// 访问 http://localhost:8080/swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		// 用户模块
		users := v1.Group("/users")
		{
			// 公开接口
			users.POST("/register", h.User.Register)
			users.POST("/login", h.User.Login)
			users.POST("/refresh", h.User.Refresh)

			// 需要登录
			users.POST("/logout", auth.RequireAuth(), h.User.Logout)
			users.GET("/profile", auth.RequireAuth(), h.User.Profile)
			users.PUT("/profile", auth.RequireAuth(), h.User.UpdateProfile)

			// 馆员：查看指定读者的借阅情况
			users.GET("/:id/borrowings", auth.RequireAuth(),
				auth.RequireRole(user.RoleLibrarian), h.Borrowing.UserBorrowings)

			// 管理员：变更角色
			users.PUT("/:id/role", auth.RequireAuth(),
				auth.RequireRole(user.RoleAdmin), h.User.ChangeRole)
		}

		// 图书模块
		books := v1.Group("/books")
		{
			// 公开接口：浏览不需要登录
			books.GET("", h.Book.ListBooks)
			books.GET("/:id", h.Book.GetBook)

			// 馆员：馆藏管理
			staff := books.Group("", auth.RequireAuth(), auth.RequireRole(user.RoleLibrarian))
			{
				staff.POST("", h.Book.AddBook)
				staff.PUT("/:id", h.Book.UpdateBook)
				staff.PUT("/:id/copies", h.Book.UpdateCopies)
				staff.DELETE("/:id", h.Book.DeleteBook)
				staff.GET("/:id/borrowings", h.Borrowing.BookBorrowings)
			}
		}

		// 借阅模块（全部需要登录）
		borrowings := v1.Group("/borrowings", auth.RequireAuth())
		{
			borrowings.POST("", h.Borrowing.Borrow)
			borrowings.POST("/:id/return", h.Borrowing.Return)
			borrowings.GET("/my", h.Borrowing.MyBorrowings)
			borrowings.GET("/:id", h.Borrowing.GetByID)

			// 馆员：台账与逾期
			borrowings.GET("", auth.RequireRole(user.RoleLibrarian), h.Borrowing.List)
			borrowings.GET("/overdue", auth.RequireRole(user.RoleLibrarian), h.Borrowing.Overdue)
			borrowings.POST("/overdue/sweep", auth.RequireRole(user.RoleLibrarian), h.Borrowing.Sweep)
		}

		// 排队模块
		waitlist := v1.Group("/waitlist", auth.RequireAuth())
		{
			waitlist.GET("/my", h.Borrowing.MyWaitlist)
			waitlist.DELETE("/:id", h.Borrowing.CancelWaitlist)
		}

		// 通知模块
		notifications := v1.Group("/notifications", auth.RequireAuth())
		{
			notifications.GET("", h.Notification.Inbox)
			notifications.GET("/stream", h.Notification.Stream)
			notifications.POST("/:id/read", h.Notification.MarkRead)
		}
	}
}
