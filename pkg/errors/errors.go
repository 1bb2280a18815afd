package errors

import (
	"errors"
	"fmt"
)

// AppError 自定义应用错误
// 设计说明：
// 1. Code用于客户端判断错误类型（不要直接暴露HTTP状态码）
// 2. Message是用户友好的提示信息
// 3. Err是内部错误，仅记录到日志，不返回给客户端（防止泄露敏感信息）
// 4. Retryable标记可重试错误（如锁等待超时），客户端可稍后重试
type AppError struct {
	Code      int    `json:"code"`    // 业务错误码
	Message   string `json:"message"` // 用户友好的错误提示
	Err       error  `json:"-"`       // 内部错误（不序列化）
	Retryable bool   `json:"-"`       // 是否可重试
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Is和errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建新的AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewRetryable 创建可重试的AppError（锁超时、存储临时故障）
func NewRetryable(code int, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// Wrap 包装系统错误（如数据库错误、网络错误）
// 用途：将底层错误转换为业务错误，隐藏实现细节
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// Wrapf 格式化包装错误
func Wrapf(err error, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// WithErr 在预定义错误的基础上附加内部错误（不修改原错误）
func (e *AppError) WithErr(err error) *AppError {
	return &AppError{
		Code:      e.Code,
		Message:   e.Message,
		Err:       err,
		Retryable: e.Retryable,
	}
}

// =========================================
// 错误码定义
// =========================================
// 规范：
// - 4xxxx: 客户端错误（参数错误、业务规则校验失败）
// - 5xxxx: 服务端错误（数据库异常、外部服务调用失败）

const (
	// 系统级错误码（50000-50099）
	ErrCodeInternal       = 50000 // 内部错误
	ErrCodeDatabaseError  = 50001 // 数据库错误
	ErrCodeRedisError     = 50002 // Redis错误
	ErrCodeLockTimeout    = 50003 // 行锁等待超时（可重试）
	ErrCodeStoreTemporary = 50004 // 存储临时故障（可重试）

	// 认证授权错误（40100-40199）
	ErrCodeUnauthorized    = 40100 // 未登录
	ErrCodeInvalidToken    = 40101 // Token无效
	ErrCodeTokenExpired    = 40102 // Token过期
	ErrCodeInvalidPassword = 40103 // 密码错误
	ErrCodeForbidden       = 40104 // 无权限

	// 资源错误（40400-40499）
	ErrCodeNotFound          = 40400 // 资源不存在（通用）
	ErrCodeUserNotFound      = 40401 // 用户不存在
	ErrCodeBookNotFound      = 40402 // 图书不存在
	ErrCodeBorrowingNotFound = 40403 // 借阅记录不存在
	ErrCodeRequestNotFound   = 40404 // 预约排队记录不存在

	// 业务规则错误（40000-40099）
	ErrCodeBusinessError       = 40000 // 业务错误（通用）
	ErrCodeBookUnavailable     = 40001 // 无可借副本（已加入排队）
	ErrCodeDuplicateLoan       = 40002 // 同一本书已有未归还的借阅
	ErrCodeAlreadyReturned     = 40003 // 借阅已归还
	ErrCodeEmailDuplicate      = 40004 // 邮箱已存在
	ErrCodeISBNDuplicate       = 40005 // ISBN已存在
	ErrCodeWeakPassword        = 40006 // 密码强度不足
	ErrCodeInvalidStatusChange = 40007 // 非法的状态流转
	ErrCodeBookHasActiveLoans  = 40008 // 图书尚有在借副本，不能删除
	ErrCodeDuplicateEntry      = 40009 // 重复记录（通用）

	// 参数错误（40900-40999）
	ErrCodeInvalidParams = 40900 // 参数错误
	ErrCodeBindError     = 40901 // 参数绑定失败
)

// =========================================
// 预定义错误（避免每次都New）
// =========================================

var (
	// 系统错误
	ErrInternal       = New(ErrCodeInternal, "系统内部错误")
	ErrDatabaseError  = New(ErrCodeDatabaseError, "数据库错误")
	ErrRedisError     = New(ErrCodeRedisError, "缓存服务错误")
	ErrLockTimeout    = NewRetryable(ErrCodeLockTimeout, "系统繁忙，请稍后重试")
	ErrStoreTemporary = NewRetryable(ErrCodeStoreTemporary, "存储服务暂时不可用，请稍后重试")

	// 认证授权
	ErrUnauthorized    = New(ErrCodeUnauthorized, "请先登录")
	ErrInvalidToken    = New(ErrCodeInvalidToken, "无效的Token")
	ErrTokenExpired    = New(ErrCodeTokenExpired, "Token已过期")
	ErrInvalidPassword = New(ErrCodeInvalidPassword, "密码错误")
	ErrForbidden       = New(ErrCodeForbidden, "无权限访问")

	// 资源不存在
	ErrUserNotFound      = New(ErrCodeUserNotFound, "用户不存在")
	ErrBookNotFound      = New(ErrCodeBookNotFound, "图书不存在")
	ErrBorrowingNotFound = New(ErrCodeBorrowingNotFound, "借阅记录不存在")
	ErrRequestNotFound   = New(ErrCodeRequestNotFound, "预约排队记录不存在")

	// 业务规则
	ErrBookUnavailable = New(ErrCodeBookUnavailable, "当前无可借副本，已为您加入排队")
	ErrDuplicateLoan   = New(ErrCodeDuplicateLoan, "您已借阅此书且尚未归还")
	ErrAlreadyReturned = New(ErrCodeAlreadyReturned, "此借阅记录已归还")
	ErrEmailDuplicate  = New(ErrCodeEmailDuplicate, "邮箱已被注册")
	ErrISBNDuplicate   = New(ErrCodeISBNDuplicate, "ISBN号已存在")
	ErrBookHasActiveLoans = New(ErrCodeBookHasActiveLoans, "图书尚有在借副本，不能删除")
	ErrWeakPassword    = New(ErrCodeWeakPassword, "密码强度不足（需8-20位，包含字母和数字）")

	// 参数错误
	ErrInvalidParams = New(ErrCodeInvalidParams, "参数错误")
	ErrBindError     = New(ErrCodeBindError, "参数格式错误")
)

// =========================================
// 辅助函数
// =========================================

// IsAppError 判断是否为AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError 提取AppError（如果不是AppError则包装成Internal错误）
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, "系统内部错误")
}

// IsRetryable 判断错误是否可重试（供调用方决定是否退避重试）
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
