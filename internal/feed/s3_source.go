package feed

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"catalog_ingest_v1/internal/config"
)

// s3API S3 客户端中用到的部分，便于测试替换
type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source S3 数据源：s3://<bucket>/<prefix>/<batch>/<file>
type S3Source struct {
	client s3API
	bucket string
	prefix string
	order  []string
	filter filter
}

// NewS3Source 创建 S3 数据源
// 配置了 AccessKey 时使用静态凭证，否则走默认凭证链；Endpoint 用于 MinIO 等兼容服务
func NewS3Source(ctx context.Context, cfg *config.S3Config, batches []string, prefix, suffix string) (*S3Source, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Source(client, cfg.Bucket, cfg.Prefix, batches, prefix, suffix), nil
}

func newS3Source(client s3API, bucket, keyPrefix string, batches []string, prefix, suffix string) *S3Source {
	return &S3Source{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(keyPrefix, "/"),
		order:  batches,
		filter: filter{prefix: prefix, suffix: suffix},
	}
}

func (s *S3Source) batchPrefix(batch string) string {
	if s.prefix == "" {
		return batch + "/"
	}
	return s.prefix + "/" + batch + "/"
}

func (s *S3Source) Batches(ctx context.Context) ([]Batch, error) {
	found := make(map[string][]File, len(s.order))
	for _, name := range s.order {
		files, err := s.list(ctx, name)
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			found[name] = files
		}
	}
	return orderBatches(s.order, found), nil
}

// list 分页列出一个批次下的对象，只取批次目录的直接子对象
func (s *S3Source) list(ctx context.Context, batch string) ([]File, error) {
	prefix := s.batchPrefix(batch)

	var files []File
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			rest := strings.TrimPrefix(key, prefix)
			if rest == "" || strings.Contains(rest, "/") {
				continue
			}
			name := path.Base(key)
			if !s.filter.match(name) {
				continue
			}
			files = append(files, File{Batch: batch, Name: name, Location: key})
		}

		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		return files, nil
	}
}

func (s *S3Source) Read(ctx context.Context, f File) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(f.Location),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, f.Location, err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}
