package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigFile 未显式指定配置文件时尝试读取的文件
const DefaultConfigFile = "config.yaml"

// Config 导入任务的全部配置
// 来源：YAML 文件 + 环境变量覆盖；密码类字段只从环境变量读取
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Feed     FeedConfig     `yaml:"feed"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Status   StatusConfig   `yaml:"status"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver        string        `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"` // postgres | sqlite
	Host          string        `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port          int           `yaml:"port" env:"PGPORT" env-default:"5432"`
	User          string        `yaml:"user" env:"PGUSER" env-default:"catalog"`
	Password      string        `yaml:"-" env:"PGPASSWORD"`
	Name          string        `yaml:"name" env:"PGDATABASE" env-default:"catalog"`
	SSLMode       string        `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	Path          string        `yaml:"path" env:"SQLITE_PATH" env-default:"catalog.db"` // sqlite 文件路径
	MaxOpenConns  int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"20"`
	MaxIdleConns  int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	SlowThreshold time.Duration `yaml:"slow_threshold" env:"DB_SLOW_THRESHOLD" env-default:"2s"`
	AutoMigrate   bool          `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"true"`
}

// DSN 构造 Postgres 连接串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// FeedConfig 数据源配置
type FeedConfig struct {
	Source     string   `yaml:"source" env:"FEED_SOURCE" env-default:"dir"`     // dir | s3 | http
	Format     string   `yaml:"format" env:"FEED_FORMAT" env-default:"grouped"` // grouped | flat
	Dir        string   `yaml:"dir" env:"FEED_DIR" env-default:"products"`
	Batches    []string `yaml:"batches" env:"FEED_BATCHES" env-separator:"," env-default:"Group-1,Group-2,Group-3,Group-4"`
	FilePrefix string   `yaml:"file_prefix" env:"FEED_FILE_PREFIX" env-default:"aajjo-products-"`
	FileSuffix string   `yaml:"file_suffix" env:"FEED_FILE_SUFFIX" env-default:".json"`

	S3 S3Config `yaml:"s3"`

	ManifestURL string        `yaml:"manifest_url" env:"FEED_MANIFEST_URL"`
	HTTPTimeout time.Duration `yaml:"http_timeout" env:"FEED_HTTP_TIMEOUT" env-default:"60s"`
	HTTPRetries int           `yaml:"http_retries" env:"FEED_HTTP_RETRIES" env-default:"3"`
}

// S3Config S3 数据源
type S3Config struct {
	Bucket    string `yaml:"bucket" env:"FEED_S3_BUCKET"`
	Prefix    string `yaml:"prefix" env:"FEED_S3_PREFIX"`
	Region    string `yaml:"region" env:"AWS_REGION" env-default:"us-east-1"`
	Endpoint  string `yaml:"endpoint" env:"FEED_S3_ENDPOINT"`
	AccessKey string `yaml:"-" env:"AWS_ACCESS_KEY_ID"`
	SecretKey string `yaml:"-" env:"AWS_SECRET_ACCESS_KEY"`
}

// IngestConfig 导入流程配置
type IngestConfig struct {
	Strategy         string `yaml:"strategy" env:"INGEST_STRATEGY" env-default:"bulk"`                // streaming | bulk
	SupplierKey      string `yaml:"supplier_key" env:"INGEST_SUPPLIER_KEY" env-default:"tax_mobile"` // tax_mobile | name_location
	ProductBatchSize int    `yaml:"product_batch_size" env:"INGEST_PRODUCT_BATCH_SIZE" env-default:"2000"`
	EntityBatchSize  int    `yaml:"entity_batch_size" env:"INGEST_ENTITY_BATCH_SIZE" env-default:"1000"`
	LogInterval      int    `yaml:"log_interval" env:"INGEST_LOG_INTERVAL" env-default:"1000"`
	VerifyReload     bool   `yaml:"verify_reload" env:"INGEST_VERIFY_RELOAD" env-default:"false"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"`
}

// RedisConfig 任务锁使用的 Redis，Addr 为空时不加锁
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	LockKey  string        `yaml:"lock_key" env:"INGEST_LOCK_KEY" env-default:"catalog:ingest:lock"`
	LockTTL  time.Duration `yaml:"lock_ttl" env:"INGEST_LOCK_TTL" env-default:"2m"`
}

// StatusConfig 进度查询服务，Addr 为空时不启动
type StatusConfig struct {
	Addr            string        `yaml:"addr" env:"STATUS_ADDR"`
	TriggerCooldown time.Duration `yaml:"trigger_cooldown" env:"STATUS_TRIGGER_COOLDOWN" env-default:"5m"` // 手动触发导入的最小间隔
}

// ScheduleConfig 定时导入
type ScheduleConfig struct {
	Cron    string        `yaml:"cron" env:"INGEST_CRON" env-default:"0 0 3 * * *"` // 秒级 cron 表达式
	Timeout time.Duration `yaml:"timeout" env:"INGEST_TIMEOUT" env-default:"4h"`
}

// Load 读取配置
// path 为空时若当前目录存在 config.yaml 则读取，否则只读环境变量
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验枚举与数值配置
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported %q", c.Database.Driver))
	}

	switch c.Feed.Source {
	case "dir":
		if c.Feed.Dir == "" {
			errs = append(errs, errors.New("feed.dir is required for dir source"))
		}
	case "s3":
		if c.Feed.S3.Bucket == "" {
			errs = append(errs, errors.New("feed.s3.bucket is required for s3 source"))
		}
	case "http":
		if c.Feed.ManifestURL == "" {
			errs = append(errs, errors.New("feed.manifest_url is required for http source"))
		}
	default:
		errs = append(errs, fmt.Errorf("feed.source: unsupported %q", c.Feed.Source))
	}

	switch c.Feed.Format {
	case "grouped", "flat":
	default:
		errs = append(errs, fmt.Errorf("feed.format: unsupported %q", c.Feed.Format))
	}

	switch c.Ingest.Strategy {
	case "streaming", "bulk":
	default:
		errs = append(errs, fmt.Errorf("ingest.strategy: unsupported %q", c.Ingest.Strategy))
	}

	switch c.Ingest.SupplierKey {
	case "tax_mobile", "name_location":
	default:
		errs = append(errs, fmt.Errorf("ingest.supplier_key: unsupported %q", c.Ingest.SupplierKey))
	}

	if c.Ingest.ProductBatchSize <= 0 {
		errs = append(errs, errors.New("ingest.product_batch_size must be positive"))
	}
	if c.Ingest.EntityBatchSize <= 0 {
		errs = append(errs, errors.New("ingest.entity_batch_size must be positive"))
	}

	return errors.Join(errs...)
}
