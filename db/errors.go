package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// 业务错误，调用方用 errors.Is 判断后映射成响应
var (
	ErrNotFound                 = errors.New("not found")
	ErrConflict                 = errors.New("conflict")
	ErrInsufficientAvailability = errors.New("insufficient availability")
	ErrInvalid                  = errors.New("invalid input")
	// 缺少 role/status/condition 查表数据：部署或 seed 问题，不是用户错误
	ErrConfiguration = errors.New("configuration error")
)

func notFound(kind string, id uint) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, kind, id)
}

// notFoundOr 把 gorm.ErrRecordNotFound 翻译成 ErrNotFound，其它原样返回
func notFoundOr(err error, kind string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(kind, id)
	}
	return err
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConflict}, args...)...)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

// uniqueViolation 唯一索引冲突（并发下预检查漏掉的那种）。postgres 看 SQLSTATE 23505，sqlite 只能看消息
func uniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// duplicateAs 唯一索引冲突翻译成 ErrConflict，其它原样返回
func duplicateAs(err error, format string, args ...any) error {
	if uniqueViolation(err) {
		return conflictf(format, args...)
	}
	return err
}
