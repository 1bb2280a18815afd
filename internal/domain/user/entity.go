package user

import (
	"time"
)

// Role 用户角色
// 设计说明：
// 1. 显式的有序枚举代替裸整数比较：读者 < 馆员 < 管理员
// 2. 存储和Token里用字符串（可读），比较时通过level()换算
type Role string

const (
	RoleUser      Role = "user"      // 读者：借书、还书、排队、查看自己的记录
	RoleLibrarian Role = "librarian" // 馆员：管理馆藏、查看全部借阅、逾期处理
	RoleAdmin     Role = "admin"     // 管理员：全部权限
)

// level 角色的权限等级（仅内部比较用，不落库）
func (r Role) level() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleLibrarian:
		return 2
	case RoleUser:
		return 1
	default:
		return 0
	}
}

// AtLeast 能力检查：当前角色是否具备required角色的全部能力
// 用法： claims.Role.AtLeast(RoleLibrarian)
func (r Role) AtLeast(required Role) bool {
	return r.level() >= required.level()
}

// Valid 角色是否合法
func (r Role) Valid() bool {
	return r.level() > 0
}

// ParseRole 解析角色字符串，非法值回落为普通读者
func ParseRole(s string) Role {
	r := Role(s)
	if !r.Valid() {
		return RoleUser
	}
	return r
}

// User 用户实体（聚合根）
// 设计说明：
// 1. Password存储bcrypt散列，绝不出现明文
// 2. Role默认为读者，馆员/管理员由管理端提升
type User struct {
	ID        uint
	Email     string
	Password  string // bcrypt散列
	Nickname  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser 创建新用户（工厂方法）
// 注意：password参数必须是已经加密过的散列，加密在领域服务中完成
func NewUser(email, hashedPassword, nickname string) *User {
	now := time.Now()
	return &User{
		Email:     email,
		Password:  hashedPassword,
		Nickname:  nickname,
		Role:      RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PromoteTo 提升/变更角色（管理端操作）
func (u *User) PromoteTo(role Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	u.Role = role
	u.UpdatedAt = time.Now()
	return nil
}
