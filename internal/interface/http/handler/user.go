package handler

import (
	"github.com/gin-gonic/gin"

	appuser "github.com/xiebiao/library/internal/application/user"
	"github.com/xiebiao/library/internal/interface/http/dto"
	"github.com/xiebiao/library/internal/interface/http/middleware"
	"github.com/xiebiao/library/pkg/response"
)

// UserHandler 用户HTTP处理器
type UserHandler struct {
	authUseCase   *appuser.AuthUseCase
	manageUseCase *appuser.ManageUsersUseCase
}

// NewUserHandler 创建用户处理器
func NewUserHandler(authUseCase *appuser.AuthUseCase, manageUseCase *appuser.ManageUsersUseCase) *UserHandler {
	return &UserHandler{
		authUseCase:   authUseCase,
		manageUseCase: manageUseCase,
	}
}

// Register 用户注册
// @Summary      用户注册
// @Tags         用户
// @Accept       json
// @Produce      json
// @Param        request body appuser.RegisterRequest true "注册信息"
// @Success      200 {object} response.Response{data=appuser.UserView}
// @Failure      400 {object} response.Response "参数错误"
// @Failure      409 {object} response.Response "邮箱已注册"
// @Router       /api/v1/users/register [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req appuser.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40000, "参数错误: "+err.Error())
		return
	}

	result, err := h.authUseCase.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Login 用户登录
// @Summary      用户登录
// @Description  返回Access/Refresh双Token
// @Tags         用户
// @Accept       json
// @Produce      json
// @Param        request body appuser.LoginRequest true "登录信息"
// @Success      200 {object} response.Response{data=appuser.LoginResponse}
// @Failure      401 {object} response.Response "邮箱或密码错误"
// @Router       /api/v1/users/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req appuser.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40000, "参数错误: "+err.Error())
		return
	}

	result, err := h.authUseCase.Login(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Logout 用户登出
// @Summary      用户登出
// @Description  当前Token进黑名单，会话删除
// @Tags         用户
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Response
// @Router       /api/v1/users/logout [post]
func (h *UserHandler) Logout(c *gin.Context) {
	userID := middleware.MustGetUserID(c)
	token := middleware.GetAccessToken(c)

	if err := h.authUseCase.Logout(c.Request.Context(), userID, token); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "已登出"})
}

// Refresh 刷新Access Token
// @Summary      刷新Token
// @Tags         用户
// @Accept       json
// @Produce      json
// @Param        request body dto.RefreshRequest true "Refresh Token"
// @Success      200 {object} response.Response
// @Failure      401 {object} response.Response "Refresh Token无效或过期"
// @Router       /api/v1/users/refresh [post]
func (h *UserHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40000, "参数错误: "+err.Error())
		return
	}

	accessToken, err := h.authUseCase.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"access_token": accessToken})
}

// Profile 用户资料
// @Summary      查看个人资料
// @Tags         用户
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Response{data=appuser.UserView}
// @Router       /api/v1/users/profile [get]
func (h *UserHandler) Profile(c *gin.Context) {
	result, err := h.authUseCase.GetProfile(c.Request.Context(), middleware.MustGetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateProfile 修改个人资料
// @Summary      修改个人资料
// @Description  目前只支持修改昵称
// @Tags         用户
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body appuser.UpdateProfileRequest true "新资料"
// @Success      200 {object} response.Response{data=appuser.UserView}
// @Router       /api/v1/users/profile [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req appuser.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40000, "参数错误: "+err.Error())
		return
	}

	result, err := h.authUseCase.UpdateProfile(c.Request.Context(), middleware.MustGetUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ChangeRole 变更用户角色（管理员）
// @Summary      变更用户角色
// @Description  读者/馆员/管理员，只有管理员可操作
// @Tags         用户
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "用户ID"
// @Param        request body appuser.ChangeRoleRequest true "目标角色"
// @Success      200 {object} response.Response{data=appuser.UserView}
// @Failure      403 {object} response.Response "权限不足"
// @Router       /api/v1/users/{id}/role [put]
func (h *UserHandler) ChangeRole(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req appuser.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40000, "参数错误: "+err.Error())
		return
	}

	result, err := h.manageUseCase.ChangeRole(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
