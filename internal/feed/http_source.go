package feed

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"catalog_ingest_v1/pkg/utils"
)

// Manifest HTTP 数据源的清单文件
//
//	{"batches":[{"name":"Group-1","files":["https://.../aajjo-products-1.json"]}]}
type Manifest struct {
	Batches []ManifestBatch `json:"batches"`
}

// ManifestBatch 清单中的一个批次
type ManifestBatch struct {
	Name  string   `json:"name"`
	Files []string `json:"files"`
}

// HTTPSource 通过清单地址拉取文件的数据源
type HTTPSource struct {
	client      *resty.Client
	manifestURL string
	order       []string
	logger      *zap.Logger
}

// NewHTTPSource 创建 HTTP 数据源
func NewHTTPSource(manifestURL string, batches []string, timeout time.Duration, retries int, logger *zap.Logger) *HTTPSource {
	return &HTTPSource{
		client:      utils.NewFeedClient(timeout, retries),
		manifestURL: manifestURL,
		order:       batches,
		logger:      logger,
	}
}

func (s *HTTPSource) Batches(ctx context.Context) ([]Batch, error) {
	var manifest Manifest
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&manifest).
		Get(s.manifestURL)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest %s: %w", s.manifestURL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch manifest %s: status %d", s.manifestURL, resp.StatusCode())
	}

	found := make(map[string][]File, len(manifest.Batches))
	for _, b := range manifest.Batches {
		files := make([]File, 0, len(b.Files))
		for _, raw := range b.Files {
			files = append(files, File{Batch: b.Name, Name: fileName(raw), Location: raw})
		}
		found[b.Name] = files
	}

	for name := range found {
		if !contains(s.order, name) {
			s.logger.Warn("manifest batch not in configured order, ignored", zap.String("batch", name))
		}
	}
	return orderBatches(s.order, found), nil
}

func (s *HTTPSource) Read(ctx context.Context, f File) ([]byte, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(f.Location)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.Location, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: status %d", f.Location, resp.StatusCode())
	}
	return resp.Body(), nil
}

// fileName 取 URL 路径的最后一段作为文件名，用于排序与日志
func fileName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	return path.Base(u.Path)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
