package user

import (
	"context"

	"github.com/xiebiao/library/internal/domain/user"
)

// ManageUsersUseCase 用户管理用例（管理员操作）
type ManageUsersUseCase struct {
	svc user.Service
}

// NewManageUsersUseCase 创建用户管理用例
func NewManageUsersUseCase(svc user.Service) *ManageUsersUseCase {
	return &ManageUsersUseCase{svc: svc}
}

// ChangeRoleRequest 变更角色请求DTO
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=user librarian admin"`
}

// ChangeRole 变更用户角色
// 合法目标角色之外的值被实体层的PromoteTo拒绝，binding校验只是第一道防线
func (uc *ManageUsersUseCase) ChangeRole(ctx context.Context, userID uint, req ChangeRoleRequest) (*UserView, error) {
	u, err := uc.svc.ChangeRole(ctx, userID, user.Role(req.Role))
	if err != nil {
		return nil, err
	}
	return toUserView(u), nil
}
