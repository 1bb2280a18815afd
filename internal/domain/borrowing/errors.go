package borrowing

import (
	apperrors "github.com/xiebiao/library/pkg/errors"
)

// 借阅领域错误定义
var (
	// ErrBorrowingNotFound 借阅记录不存在
	ErrBorrowingNotFound = apperrors.ErrBorrowingNotFound

	// ErrDuplicateLoan 同一用户对同一本书已有在借记录
	ErrDuplicateLoan = apperrors.ErrDuplicateLoan

	// ErrAlreadyReturned 记录已归还，不能重复归还
	ErrAlreadyReturned = apperrors.ErrAlreadyReturned

	// ErrInvalidStatusChange 非法的状态流转
	ErrInvalidStatusChange = apperrors.New(apperrors.ErrCodeInvalidStatusChange, "借阅状态不允许此操作")

	// ErrNotYetDue 尚未到应还时间，不能标记逾期
	ErrNotYetDue = apperrors.New(apperrors.ErrCodeBusinessError, "借阅尚未到期")
)
