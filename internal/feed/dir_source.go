package feed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DirSource 本地目录数据源：<root>/<batch>/<prefix>*<suffix>
type DirSource struct {
	root   string
	order  []string
	filter filter
}

// NewDirSource 创建本地目录数据源
func NewDirSource(root string, batches []string, prefix, suffix string) *DirSource {
	return &DirSource{
		root:   root,
		order:  batches,
		filter: filter{prefix: prefix, suffix: suffix},
	}
}

func (s *DirSource) Batches(ctx context.Context) ([]Batch, error) {
	if _, err := os.Stat(s.root); err != nil {
		return nil, fmt.Errorf("feed directory %s: %w", s.root, err)
	}

	found := make(map[string][]File, len(s.order))
	for _, name := range s.order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := filepath.Join(s.root, name)
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}

		files := make([]File, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() || !s.filter.match(e.Name()) {
				continue
			}
			files = append(files, File{
				Batch:    name,
				Name:     e.Name(),
				Location: filepath.Join(dir, e.Name()),
			})
		}
		found[name] = files
	}
	return orderBatches(s.order, found), nil
}

func (s *DirSource) Read(_ context.Context, f File) ([]byte, error) {
	return os.ReadFile(f.Location)
}
