package ingest

import "context"

// FlushFunc 写出一批缓冲行
type FlushFunc[T any] func(ctx context.Context, rows []T) error

// Batcher 缓冲待写入的行，达到 size 或输入结束时整批写出
type Batcher[T any] struct {
	size  int
	buf   []T
	flush FlushFunc[T]
}

// NewBatcher 创建缓冲器，size <= 0 时视为 1
func NewBatcher[T any](size int, flush FlushFunc[T]) *Batcher[T] {
	if size <= 0 {
		size = 1
	}
	return &Batcher[T]{
		size:  size,
		buf:   make([]T, 0, size),
		flush: flush,
	}
}

// Add 追加一行，缓冲满时立即写出
func (b *Batcher[T]) Add(ctx context.Context, row T) error {
	b.buf = append(b.buf, row)
	if len(b.buf) >= b.size {
		return b.Flush(ctx)
	}
	return nil
}

// Flush 写出缓冲中的全部行；写出失败时缓冲仍被清空，由调用方按 Pending 之前的值统计
func (b *Batcher[T]) Flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	rows := b.buf
	b.buf = make([]T, 0, b.size)
	return b.flush(ctx, rows)
}

// Pending 缓冲中尚未写出的行数
func (b *Batcher[T]) Pending() int {
	return len(b.buf)
}
