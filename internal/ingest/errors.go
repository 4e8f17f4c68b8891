package ingest

import (
	"errors"
	"fmt"

	"catalog_ingest_v1/internal/feed"
	"catalog_ingest_v1/internal/repository"
)

var (
	// ErrMissingRequiredField 商品名或供应商名为空，记录被跳过
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrUnresolvableRelation 记录引用的层级或供应商无法解析为 ID，记录被跳过
	ErrUnresolvableRelation = errors.New("unresolvable relation")
	// ErrStoreUnavailable 数据库不可达，整个运行中止
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidRecord 单条商品原文字段类型不符，记录计入失败，运行继续
	ErrInvalidRecord = errors.New("invalid record")
	// ErrMalformedFeed 数据文件无法解析，整个运行中止
	ErrMalformedFeed = feed.ErrMalformed
)

// SkipReason 记录被跳过的原因
type SkipReason int

const (
	SkipMissingField SkipReason = iota
	SkipUnresolvable
	// SkipRejected 批量插入时被 skip-duplicates 丢弃
	SkipRejected
)

func (r SkipReason) String() string {
	switch r {
	case SkipMissingField:
		return "missing_field"
	case SkipUnresolvable:
		return "unresolvable"
	case SkipRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// skipReasonOf 将单条记录的错误映射为跳过原因；不可跳过的错误返回 false
func skipReasonOf(err error) (SkipReason, bool) {
	switch {
	case errors.Is(err, ErrMissingRequiredField):
		return SkipMissingField, true
	case errors.Is(err, ErrUnresolvableRelation):
		return SkipUnresolvable, true
	default:
		return 0, false
	}
}

// PhaseError 批量阶段失败，Committed/Pending 为失败时已提交与未提交的商品记录数
type PhaseError struct {
	Phase     string
	Committed int64
	Pending   int64
	Err       error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("phase %s failed (committed=%d pending=%d): %v",
		e.Phase, e.Committed, e.Pending, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// storeError 给数据库错误加上操作名；连接类错误额外标记为 ErrStoreUnavailable
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if repository.IsStoreUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isFatal 判断单条记录处理中的错误是否需要中止整个运行
func isFatal(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
