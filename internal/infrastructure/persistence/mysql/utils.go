package mysql

import (
	"errors"
	"strings"

	driver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	apperrors "github.com/xiebiao/library/pkg/errors"
)

// MySQL错误码
// - 1062: Duplicate entry（唯一索引冲突）
// - 1205: Lock wait timeout exceeded（行锁等待超时）
// - 1213: Deadlock found（死锁，InnoDB选择本事务回滚）
const (
	mysqlErrDuplicate   = 1062
	mysqlErrLockTimeout = 1205
	mysqlErrDeadlock    = 1213
)

// mysqlErrNumber 提取底层MySQL错误码，非MySQL错误返回0
func mysqlErrNumber(err error) uint16 {
	var myErr *driver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number
	}
	return 0
}

// isDuplicateError 判断是否为MySQL唯一索引冲突错误
func isDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	// GORM v2的错误判断
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if mysqlErrNumber(err) == mysqlErrDuplicate {
		return true
	}
	// 兼容检查：错误信息包含"Duplicate entry"
	return strings.Contains(err.Error(), "Duplicate entry")
}

// translateLockError 把锁相关的数据库错误翻译为可重试的业务错误
// 教学要点：
// 1. 1205/1213对调用方来说语义相同：临界区竞争失败，稍后重试即可
// 2. 其他错误原样返回，由调用方继续处理
func translateLockError(err error) error {
	switch mysqlErrNumber(err) {
	case mysqlErrLockTimeout, mysqlErrDeadlock:
		return apperrors.ErrLockTimeout.WithErr(err)
	}
	return err
}
