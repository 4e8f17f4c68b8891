package feed

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"catalog_ingest_v1/internal/config"
)

// File 一个待导入文件
type File struct {
	Batch    string
	Name     string
	Location string // 本地路径、S3 key 或 URL，由具体 Source 解释
}

// Batch 一个逻辑批次（Group-N）及其文件
type Batch struct {
	Name  string
	Files []File
	// Missing 为 true 表示数据源中不存在该批次，跳过但不报错
	Missing bool
}

// Source 数据源：列出批次与文件、读取文件内容
type Source interface {
	Batches(ctx context.Context) ([]Batch, error)
	Read(ctx context.Context, f File) ([]byte, error)
}

// NewSource 按配置创建数据源
func NewSource(ctx context.Context, cfg *config.FeedConfig, logger *zap.Logger) (Source, error) {
	switch cfg.Source {
	case "dir":
		return NewDirSource(cfg.Dir, cfg.Batches, cfg.FilePrefix, cfg.FileSuffix), nil
	case "s3":
		return NewS3Source(ctx, &cfg.S3, cfg.Batches, cfg.FilePrefix, cfg.FileSuffix)
	case "http":
		return NewHTTPSource(cfg.ManifestURL, cfg.Batches, cfg.HTTPTimeout, cfg.HTTPRetries, logger), nil
	default:
		return nil, fmt.Errorf("unsupported feed source %q", cfg.Source)
	}
}

// filter 批次内文件过滤条件
type filter struct {
	prefix string
	suffix string
}

func (f filter) match(name string) bool {
	return strings.HasPrefix(name, f.prefix) && strings.HasSuffix(name, f.suffix)
}

// sortFiles 按文件名排序，保证同一批次内的处理顺序稳定
func sortFiles(files []File) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
}

// orderBatches 按配置的批次顺序输出，未找到的批次标记为 Missing
func orderBatches(order []string, found map[string][]File) []Batch {
	batches := make([]Batch, 0, len(order))
	for _, name := range order {
		files, ok := found[name]
		if !ok {
			batches = append(batches, Batch{Name: name, Missing: true})
			continue
		}
		sortFiles(files)
		batches = append(batches, Batch{Name: name, Files: files})
	}
	return batches
}
