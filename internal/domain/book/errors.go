package book

import (
	apperrors "github.com/xiebiao/library/pkg/errors"
)

// 图书领域错误定义
var (
	// ErrBookNotFound 图书不存在
	ErrBookNotFound = apperrors.ErrBookNotFound

	// ErrISBNDuplicate ISBN已存在
	ErrISBNDuplicate = apperrors.ErrISBNDuplicate

	// ErrInvalidISBN ISBN格式不正确
	ErrInvalidISBN = apperrors.New(apperrors.ErrCodeInvalidParams, "ISBN格式不正确")

	// ErrInvalidCopies 副本数不合法
	ErrInvalidCopies = apperrors.New(apperrors.ErrCodeInvalidParams, "副本数不能为负数")

	// ErrNoAvailableCopy 无可借副本
	ErrNoAvailableCopy = apperrors.ErrBookUnavailable

	// ErrHasActiveLoans 尚有在借副本，不能删除
	ErrHasActiveLoans = apperrors.ErrBookHasActiveLoans
)
