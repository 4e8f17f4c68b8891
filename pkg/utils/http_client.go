package utils

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

// UserAgent 拉取数据源时使用的 UA
const UserAgent = "Catalog-Ingest/1.0"

// NewFeedClient 创建拉取数据文件用的 Resty 客户端
// 超时与重试由配置决定；只对网络错误和 5xx 重试
func NewFeedClient(timeout time.Duration, retries int) *resty.Client {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("User-Agent", UserAgent).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= 500
	})

	return client
}
