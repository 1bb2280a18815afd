package mysql

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xiebiao/library/internal/infrastructure/config"
)

// NewDB 创建数据库连接
// 设计说明：
// 1. 使用GORM v2作为ORM框架
// 2. 配置连接池参数（MaxOpenConns、MaxIdleConns、ConnMaxLifetime）
// 3. 开发环境开启SQL日志，生产环境关闭
// 4. 自动迁移表结构（AutoMigrate）
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	// 1. 构建DSN连接字符串
	dsn := cfg.Database.DSN()

	// 2. 配置GORM日志
	logLevel := logger.Silent
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info // 开发环境打印SQL
	}

	// 3. 连接数据库
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 4. 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取SQL DB失败: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	// 5. 测试连接
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	log.Println("✓ 数据库连接成功")

	// 6. 自动迁移表结构（开发环境）
	// 注意：生产环境应使用专门的迁移工具（如golang-migrate）
	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return db, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&BookModel{},
		&BorrowingModel{},
		&WaitlistModel{},
	)
}

// UserModel GORM用户模型
// 设计说明：
// 1. 这是infrastructure层的数据模型，包含GORM tag
// 2. domain/user/entity.go是领域实体，不依赖GORM
// 3. Repository负责两者之间的转换
type UserModel struct {
	ID        uint           `gorm:"primaryKey"`
	Email     string         `gorm:"uniqueIndex;size:100;not null;comment:邮箱"`
	Password  string         `gorm:"size:255;not null;comment:密码（bcrypt加密）"`
	Nickname  string         `gorm:"size:50;not null;comment:昵称"`
	Role      string         `gorm:"size:20;not null;default:user;comment:角色(user/librarian/admin)"`
	CreatedAt time.Time      `gorm:"comment:创建时间"`
	UpdatedAt time.Time      `gorm:"comment:更新时间"`
	DeletedAt gorm.DeletedAt `gorm:"index;comment:删除时间（软删除）"`
}

// TableName 指定表名
func (UserModel) TableName() string {
	return "users"
}

// BookModel GORM图书模型
// 设计说明：
// 1. ISBN有唯一索引，防止重复
// 2. TotalCopies/AvailableCopies带CHECK约束兜底（应用层守卫UPDATE是第一道防线）
// 3. AvailableCopies加索引支持"只看可借"过滤
type BookModel struct {
	ID              uint           `gorm:"primaryKey"`
	ISBN            string         `gorm:"uniqueIndex;size:20;not null;comment:ISBN号"`
	Title           string         `gorm:"index:idx_search;size:200;not null;comment:书名"`
	Author          string         `gorm:"index:idx_search;size:100;not null;comment:作者"`
	Publisher       string         `gorm:"size:100;comment:出版社"`
	Description     string         `gorm:"type:text;comment:图书描述"`
	TotalCopies     int            `gorm:"not null;default:0;check:total_copies >= 0;comment:馆藏总副本数"`
	AvailableCopies int            `gorm:"index;not null;default:0;check:available_copies >= 0;comment:可借副本数"`
	CreatedAt       time.Time      `gorm:"index;comment:创建时间"`
	UpdatedAt       time.Time      `gorm:"comment:更新时间"`
	DeletedAt       gorm.DeletedAt `gorm:"index;comment:删除时间(软删除)"`
}

// TableName 指定表名
func (BookModel) TableName() string {
	return "books"
}

// BorrowingModel GORM借阅记录模型
// 设计说明：
// 1. 借阅记录只做状态更新，永不物理删除（审计追踪，无DeletedAt）
// 2. (user_id, status)索引服务"我的借阅"查询
// 3. (book_id, status)索引服务图书借阅历史和在借检查
type BorrowingModel struct {
	ID         uint       `gorm:"primaryKey"`
	UserID     uint       `gorm:"index:idx_user_status;not null;comment:借阅人ID"`
	BookID     uint       `gorm:"index:idx_book_status;not null;comment:图书ID"`
	BorrowDate time.Time  `gorm:"index;not null;comment:借出时间"`
	DueDate    time.Time  `gorm:"index;not null;comment:应还时间"`
	ReturnDate *time.Time `gorm:"comment:归还时间(未归还为NULL)"`
	Status     string     `gorm:"index:idx_user_status;index:idx_book_status;size:20;not null;default:borrowed;comment:状态"`
	CreatedAt  time.Time  `gorm:"comment:创建时间"`
	UpdatedAt  time.Time  `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (BorrowingModel) TableName() string {
	return "borrowings"
}

// WaitlistModel GORM排队记录模型
// 设计说明：
// 1. (book_id, status, request_date)复合索引：出队查询走索引即有序
// 2. 主键ID同时充当FIFO的平局裁决（同一时刻入队时按ID先后）
type WaitlistModel struct {
	ID               uint      `gorm:"primaryKey"`
	BookID           uint      `gorm:"index:idx_queue,priority:1;not null;comment:图书ID"`
	UserID           uint      `gorm:"index;not null;comment:用户ID"`
	RequestDate      time.Time `gorm:"index:idx_queue,priority:3;not null;comment:排队时间"`
	Status           string    `gorm:"index:idx_queue,priority:2;size:20;not null;default:PENDING;comment:状态(PENDING/FULFILLED/CANCELLED)"`
	NotificationSent bool      `gorm:"not null;default:false;comment:是否已通知"`
	CreatedAt        time.Time `gorm:"comment:创建时间"`
	UpdatedAt        time.Time `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (WaitlistModel) TableName() string {
	return "book_request_queue"
}
