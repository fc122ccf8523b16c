package conf

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
)

// Bootstrap 启动配置根节点
type Bootstrap struct {
	Server Server `json:"server"`
	Data   Data   `json:"data"`
	Kiosk  Kiosk  `json:"kiosk"`
	Log    Log    `json:"log"`
}

type Server struct {
	Http Transport `json:"http"`
	Grpc Transport `json:"grpc"`
	// 管理接口每秒允许的请求数
	AdminRPS float64 `json:"admin_rps"`
}

type Transport struct {
	Network string   `json:"network"`
	Addr    string   `json:"addr"`
	Timeout Duration `json:"timeout"`
}

type Data struct {
	Database Database `json:"database"`
	Redis    Redis    `json:"redis"`
	Blob     Blob     `json:"blob"`
}

type Database struct {
	// memory | sqlite3 | mysql | postgres
	Driver string `json:"driver"`
	Source string `json:"source"`
	Debug  bool   `json:"debug"`
	// 慢 SQL 阈值
	SlowThreshold Duration `json:"slow_threshold"`
}

type Redis struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Channel  string `json:"channel"`
}

type Blob struct {
	// memory | fs | s3
	Driver    string `json:"driver"`
	FSRoot    string `json:"fs_root"`
	PublicURL string `json:"public_url"`
	S3        S3     `json:"s3"`
}

type S3 struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	PathStyle bool   `json:"path_style"`

	// 为空时使用 AWS 默认凭证链
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

type Kiosk struct {
	// 为空时直接读取本进程的聚合用例
	SnapshotURL     string   `json:"snapshot_url"`
	RefreshInterval Duration `json:"refresh_interval"`
	SnapshotTTL     Duration `json:"snapshot_ttl"`
}

type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Duration 支持 "5m" 形式的字符串，也兼容整数秒
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		d.Duration = parsed
	case float64:
		d.Duration = time.Duration(v * float64(time.Second))
	case nil:
		d.Duration = 0
	default:
		return fmt.Errorf("invalid duration %v", raw)
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Default 返回开发环境默认值：内存存储、内存图片、5 分钟刷新
func Default() *Bootstrap {
	return &Bootstrap{
		Server: Server{
			Http:     Transport{Network: "tcp", Addr: "0.0.0.0:8000", Timeout: Duration{10 * time.Second}},
			Grpc:     Transport{Network: "tcp", Addr: "0.0.0.0:9000", Timeout: Duration{10 * time.Second}},
			AdminRPS: 20,
		},
		Data: Data{
			Database: Database{Driver: DriverMemory, SlowThreshold: Duration{500 * time.Millisecond}},
			Redis:    Redis{Channel: "kiosk:snapshot:invalidate"},
			Blob:     Blob{Driver: "memory", FSRoot: "./blobdata", PublicURL: "/images"},
		},
		Kiosk: Kiosk{
			RefreshInterval: Duration{5 * time.Minute},
			SnapshotTTL:     Duration{time.Minute},
		},
		Log: Log{Level: "info", Format: "json"},
	}
}

// Load 读取配置文件（目录或文件），再叠加环境变量。路径不存在时只使用默认值。
func Load(path string) (*Bootstrap, error) {
	bc := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			c := config.New(config.WithSource(file.NewSource(path)))
			defer c.Close()
			if err := c.Load(); err != nil {
				return nil, fmt.Errorf("load config: %w", err)
			}
			if err := c.Scan(bc); err != nil {
				return nil, fmt.Errorf("scan config: %w", err)
			}
		}
	}
	if err := ApplyEnv(bc); err != nil {
		return nil, err
	}
	return bc, nil
}

// Env 环境变量覆盖项
type Env struct {
	HTTPAddr        string        `env:"KIOSK_HTTP_ADDR"`
	GRPCAddr        string        `env:"KIOSK_GRPC_ADDR"`
	DBDriver        string        `env:"KIOSK_DB_DRIVER"`
	DBSource        string        `env:"KIOSK_DB_SOURCE"`
	PostgresURL     string        `env:"POSTGRES_URL"`
	RedisAddr       string        `env:"KIOSK_REDIS_ADDR"`
	RedisPassword   string        `env:"KIOSK_REDIS_PASSWORD"`
	BlobDriver      string        `env:"KIOSK_BLOB_DRIVER"`
	BlobFSRoot      string        `env:"KIOSK_BLOB_FS_ROOT"`
	BlobPublicURL   string        `env:"KIOSK_BLOB_PUBLIC_URL"`
	S3Bucket        string        `env:"KIOSK_BLOB_S3_BUCKET"`
	S3Region        string        `env:"KIOSK_BLOB_S3_REGION"`
	S3Endpoint      string        `env:"KIOSK_BLOB_S3_ENDPOINT"`
	S3PathStyle     bool          `env:"KIOSK_BLOB_S3_PATH_STYLE"`
	SnapshotURL     string        `env:"KIOSK_SNAPSHOT_URL"`
	RefreshInterval time.Duration `env:"KIOSK_REFRESH_INTERVAL"`
	LogLevel        string        `env:"KIOSK_LOG_LEVEL"`
	LogFormat       string        `env:"KIOSK_LOG_FORMAT"`
}

// ApplyEnv 将环境变量叠加到配置上
func ApplyEnv(bc *Bootstrap) error {
	var e Env
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&bc.Server.Http.Addr, e.HTTPAddr)
	set(&bc.Server.Grpc.Addr, e.GRPCAddr)
	set(&bc.Data.Database.Driver, e.DBDriver)
	set(&bc.Data.Database.Source, e.DBSource)
	set(&bc.Data.Redis.Addr, e.RedisAddr)
	set(&bc.Data.Redis.Password, e.RedisPassword)
	set(&bc.Data.Blob.Driver, e.BlobDriver)
	set(&bc.Data.Blob.FSRoot, e.BlobFSRoot)
	set(&bc.Data.Blob.PublicURL, e.BlobPublicURL)
	set(&bc.Data.Blob.S3.Bucket, e.S3Bucket)
	set(&bc.Data.Blob.S3.Region, e.S3Region)
	set(&bc.Data.Blob.S3.Endpoint, e.S3Endpoint)
	if e.S3PathStyle {
		bc.Data.Blob.S3.PathStyle = true
	}
	set(&bc.Kiosk.SnapshotURL, e.SnapshotURL)
	if e.RefreshInterval > 0 {
		bc.Kiosk.RefreshInterval = Duration{e.RefreshInterval}
	}
	set(&bc.Log.Level, e.LogLevel)
	set(&bc.Log.Format, e.LogFormat)

	// 配置了生产级连接串时自动切换到 postgres
	if IsPostgresURL(e.PostgresURL) && e.DBSource == "" {
		bc.Data.Database.Driver = DriverPostgres
		bc.Data.Database.Source = e.PostgresURL
	}
	return nil
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// IsPostgresURL 判断是否为 postgres 连接串
func IsPostgresURL(s string) bool {
	return strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://")
}

// ResolveDriver 归一化驱动名；未配置连接串时回落到内存存储
func (d *Database) ResolveDriver() string {
	driver := strings.ToLower(strings.TrimSpace(d.Driver))
	switch driver {
	case "postgresql", "pgx":
		driver = DriverPostgres
	case "sqlite":
		driver = DriverSQLite
	}
	if driver == "" && IsPostgresURL(d.Source) {
		return DriverPostgres
	}
	if driver == "" || driver == DriverMemory || d.Source == "" {
		return DriverMemory
	}
	return driver
}
