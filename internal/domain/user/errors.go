package user

import (
	apperrors "github.com/xiebiao/library/pkg/errors"
)

// 用户领域错误定义
var (
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = apperrors.ErrUserNotFound

	// ErrEmailDuplicate 邮箱已存在
	ErrEmailDuplicate = apperrors.ErrEmailDuplicate

	// ErrInvalidRole 非法的角色
	ErrInvalidRole = apperrors.New(apperrors.ErrCodeInvalidParams, "非法的用户角色")
)
