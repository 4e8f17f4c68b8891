package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ==================== 创建结果 ====================

// CreateOutcome 创建调用的结果标记
type CreateOutcome int

const (
	// OutcomeCreated 本次调用插入了新行
	OutcomeCreated CreateOutcome = iota + 1
	// OutcomeAlreadyExists 唯一键已存在（缓存过期或其他进程抢先创建），采用已有行的 ID
	OutcomeAlreadyExists
)

func (o CreateOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// CreateResult 创建调用的返回值，唯一键冲突不是错误
type CreateResult struct {
	Outcome CreateOutcome
	ID      int64
}

type identified interface {
	PrimaryID() int64
}

// createIfAbsent 按唯一键插入一行；键已存在时通过 lookup 取回已有 ID
func createIfAbsent(ctx context.Context, db *gorm.DB, row identified, conflict []string,
	lookup func(ctx context.Context) (int64, error)) (CreateResult, error) {

	columns := make([]clause.Column, 0, len(conflict))
	for _, name := range conflict {
		columns = append(columns, clause.Column{Name: name})
	}

	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: columns, DoNothing: true}).
		Create(row)
	if res.Error == nil && res.RowsAffected > 0 {
		return CreateResult{Outcome: OutcomeCreated, ID: row.PrimaryID()}, nil
	}
	if res.Error != nil && !IsUniqueViolation(res.Error) {
		return CreateResult{}, res.Error
	}

	id, err := lookup(ctx)
	if err != nil {
		return CreateResult{}, fmt.Errorf("adopt existing row: %w", err)
	}
	return CreateResult{Outcome: OutcomeAlreadyExists, ID: id}, nil
}

// bulkCreate 多行插入，冲突行静默跳过；整个调用在一个事务内完成
func bulkCreate[T any](ctx context.Context, db *gorm.DB, rows []T, batchSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, batchSize)
	return res.RowsAffected, res.Error
}

// countDuplicateKeys 统计违反业务唯一键的分组数（正常情况下应为 0）
func countDuplicateKeys(ctx context.Context, db *gorm.DB, model interface{}, columns ...string) (int64, error) {
	group := strings.Join(columns, ", ")
	sub := db.Model(model).Select(group).Group(group).Having("COUNT(*) > 1")

	var n int64
	err := db.WithContext(ctx).Table("(?) AS dup", sub).Count(&n).Error
	return n, err
}

// ==================== 错误分类 ====================

// IsUniqueViolation 判断是否唯一约束冲突
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsStoreUnavailable 判断是否数据库不可用（连接断开、超时、服务端关闭）
func IsStoreUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08: connection exception, 53: insufficient resources, 57P: operator intervention
		return strings.HasPrefix(pgErr.Code, "08") ||
			strings.HasPrefix(pgErr.Code, "53") ||
			strings.HasPrefix(pgErr.Code, "57P")
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
