package feed

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// BatchObserver 批次/文件边界回调，进度上报实现该接口
type BatchObserver interface {
	BatchStarted(b Batch)
	FileDone(f File, records int)
	BatchFinished(b Batch)
}

// RecordFunc 处理一个文件解析出的全部记录；返回错误会中止遍历
type RecordFunc func(ctx context.Context, f File, records []Record) error

// Walker 按批次顺序遍历数据源中的全部文件
type Walker struct {
	source   Source
	format   Format
	observer BatchObserver
	logger   *zap.Logger
}

// NewWalker 创建遍历器，observer 可为 nil
func NewWalker(source Source, format Format, observer BatchObserver, logger *zap.Logger) *Walker {
	return &Walker{
		source:   source,
		format:   format,
		observer: observer,
		logger:   logger,
	}
}

// Walk 逐文件读取、解析并回调 fn
// 批次不存在时记录警告并跳过；文件读取或解析失败直接返回错误
func (w *Walker) Walk(ctx context.Context, fn RecordFunc) error {
	batches, err := w.source.Batches(ctx)
	if err != nil {
		return fmt.Errorf("list batches: %w", err)
	}

	for _, b := range batches {
		if b.Missing {
			w.logger.Warn("batch not found, skipped", zap.String("batch", b.Name))
			continue
		}

		w.logger.Info("batch started",
			zap.String("batch", b.Name),
			zap.Int("files", len(b.Files)))
		if w.observer != nil {
			w.observer.BatchStarted(b)
		}

		for _, f := range b.Files {
			if err := ctx.Err(); err != nil {
				return err
			}

			records, err := w.load(ctx, f)
			if err != nil {
				return err
			}
			if err := fn(ctx, f, records); err != nil {
				return err
			}
			if w.observer != nil {
				w.observer.FileDone(f, len(records))
			}
		}

		if w.observer != nil {
			w.observer.BatchFinished(b)
		}
	}
	return nil
}

func (w *Walker) load(ctx context.Context, f File) ([]Record, error) {
	data, err := w.source.Read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", f.Batch, f.Name, err)
	}
	records, err := Decode(data, w.format, f)
	if err != nil {
		return nil, err
	}
	w.logger.Debug("file decoded",
		zap.String("batch", f.Batch),
		zap.String("file", f.Name),
		zap.Int("records", len(records)))
	return records, nil
}
