package waitlist

import (
	apperrors "github.com/xiebiao/library/pkg/errors"
)

// 排队领域错误定义
var (
	// ErrEntryNotFound 排队记录不存在
	ErrEntryNotFound = apperrors.ErrRequestNotFound

	// ErrNotPending 记录不处于等待状态，不能出队或撤销
	ErrNotPending = apperrors.New(apperrors.ErrCodeInvalidStatusChange, "排队记录已完结")

	// ErrNotOwner 只能操作自己的排队记录
	ErrNotOwner = apperrors.ErrForbidden
)
