package user

import (
	"context"
	"log"
	"time"

	"github.com/xiebiao/library/internal/domain/user"
	"github.com/xiebiao/library/pkg/jwt"
)

// Sessions 会话存储端口
// Redis实现见infrastructure/persistence/redis.SessionStore
type Sessions interface {
	SaveSession(ctx context.Context, userID uint, sessionData map[string]interface{}, ttl time.Duration) error
	DeleteSession(ctx context.Context, userID uint) error
	AddToBlacklist(ctx context.Context, token string, ttl time.Duration) error
}

// AuthUseCase 认证用例（注册/登录/登出/刷新）
type AuthUseCase struct {
	svc        user.Service
	jwtManager *jwt.Manager
	sessions   Sessions
	refreshTTL time.Duration
}

// NewAuthUseCase 创建认证用例
func NewAuthUseCase(svc user.Service, jwtManager *jwt.Manager, sessions Sessions, refreshTTL time.Duration) *AuthUseCase {
	return &AuthUseCase{
		svc:        svc,
		jwtManager: jwtManager,
		sessions:   sessions,
		refreshTTL: refreshTTL,
	}
}

// UserView 用户视图DTO(不含密码散列)
type UserView struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

func toUserView(u *user.User) *UserView {
	return &UserView{
		ID:       u.ID,
		Email:    u.Email,
		Nickname: u.Nickname,
		Role:     string(u.Role),
	}
}

// RegisterRequest 注册请求DTO
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=20"`
	Nickname string `json:"nickname" binding:"required,min=2,max=50"`
}

// Register 用户注册
func (uc *AuthUseCase) Register(ctx context.Context, req RegisterRequest) (*UserView, error) {
	u, err := uc.svc.Register(ctx, req.Email, req.Password, req.Nickname)
	if err != nil {
		return nil, err
	}
	return toUserView(u), nil
}

// LoginRequest 登录请求DTO
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应DTO
type LoginResponse struct {
	User  *UserView      `json:"user"`
	Token *jwt.TokenPair `json:"token"`
}

// Login 用户登录
// 教学要点：会话写入失败不阻断登录
// JWT本身是无状态凭证，Redis会话只是辅助信息（在线统计、强制下线）,
// Redis故障时登录照常可用
func (uc *AuthUseCase) Login(ctx context.Context, req LoginRequest, clientIP string) (*LoginResponse, error) {
	u, err := uc.svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	pair, err := uc.jwtManager.GenerateToken(u.ID, u.Email, string(u.Role))
	if err != nil {
		return nil, err
	}

	if uc.sessions != nil {
		sessionData := map[string]interface{}{
			"login_at": time.Now().Format(time.RFC3339),
			"ip":       clientIP,
			"role":     string(u.Role),
		}
		if err := uc.sessions.SaveSession(ctx, u.ID, sessionData, uc.refreshTTL); err != nil {
			log.Printf("⚠️ 保存会话失败: user_id=%d, err=%v", u.ID, err)
		}
	}

	return &LoginResponse{User: toUserView(u), Token: pair}, nil
}

// Logout 用户登出
// Access Token进黑名单（按剩余有效期设TTL），会话删除
func (uc *AuthUseCase) Logout(ctx context.Context, userID uint, accessToken string) error {
	if uc.sessions == nil {
		return nil
	}

	// 黑名单TTL取Token剩余有效期，过期后自动清理
	ttl := time.Hour * 2
	if claims, err := uc.jwtManager.ParseToken(accessToken); err == nil && claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}

	if err := uc.sessions.AddToBlacklist(ctx, accessToken, ttl); err != nil {
		return err
	}
	return uc.sessions.DeleteSession(ctx, userID)
}

// Refresh 刷新Access Token
func (uc *AuthUseCase) Refresh(ctx context.Context, refreshToken string) (string, error) {
	return uc.jwtManager.RefreshAccessToken(refreshToken)
}

// GetProfile 查询用户资料
func (uc *AuthUseCase) GetProfile(ctx context.Context, userID uint) (*UserView, error) {
	u, err := uc.svc.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toUserView(u), nil
}

// UpdateProfileRequest 修改资料请求DTO
type UpdateProfileRequest struct {
	Nickname string `json:"nickname" binding:"required,min=2,max=50"`
}

// UpdateProfile 修改个人资料
func (uc *AuthUseCase) UpdateProfile(ctx context.Context, userID uint, req UpdateProfileRequest) (*UserView, error) {
	u, err := uc.svc.UpdateProfile(ctx, userID, req.Nickname)
	if err != nil {
		return nil, err
	}
	return toUserView(u), nil
}
