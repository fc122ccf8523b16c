package data

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"
	"time"

	"kiosk-go/internal/conf"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/store/go_cache/v4"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/google/wire"
	gocache "github.com/patrickmn/go-cache"
	"github.com/qustavo/sqlhooks/v2"

	"modernc.org/sqlite"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewSqlDriver,
	NewFacilityRepo,
	NewSnapshotCache,
	NewBlobStore,
	NewImageStore,
)

// Data .
type Data struct {
	conf   *conf.Data
	sqlDrv *entsql.Driver
	cache  cache.CacheInterface[any]
	rdb    *redis.Client
}

// SQLDB 返回共享的 *sql.DB；内存模式下为 nil
func (d *Data) SQLDB() *sql.DB {
	if d.sqlDrv != nil {
		return d.sqlDrv.DB()
	}
	return nil
}

// Dialect 当前 SQL 方言；内存模式下为空
func (d *Data) Dialect() string {
	if d.sqlDrv != nil {
		return d.sqlDrv.Dialect()
	}
	return ""
}

// Cache 返回缓存客户端
func (d *Data) Cache() cache.CacheInterface[any] {
	return d.cache
}

// Redis 未配置时为 nil
func (d *Data) Redis() *redis.Client {
	return d.rdb
}

// Backend memory | sqlite3 | mysql | postgres
func (d *Data) Backend() string {
	if d.sqlDrv == nil {
		return conf.DriverMemory
	}
	return d.conf.Database.ResolveDriver()
}

// Ping 检查后端连通性
func (d *Data) Ping(ctx context.Context) error {
	if db := d.SQLDB(); db != nil {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if d.rdb != nil {
		if err := d.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// NewData drv 为 nil 时使用内存存储
func NewData(
	c *conf.Data,
	drv *entsql.Driver,
	logger log.Logger) (*Data, func(), error) {
	goCache := gocache.New(5*time.Minute, 10*time.Minute)
	store := go_cache.NewGoCache(goCache)
	cacheManager := cache.New[any](store)
	data := &Data{
		conf:   c,
		sqlDrv: drv,
		cache:  cacheManager,
	}
	if c.Redis.Addr != "" {
		data.rdb = redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
	}
	helper := log.NewHelper(logger)
	cleanup := func() {
		helper.Info("closing the data resources")
		if data.rdb != nil {
			if err := data.rdb.Close(); err != nil {
				helper.Warnf("close redis: %v", err)
			}
		}
		if data.sqlDrv != nil {
			if err := data.sqlDrv.Close(); err != nil {
				helper.Warnf("close database: %v", err)
			}
		}
	}
	if drv == nil {
		helper.Warn("no database configured, using in-memory store (data is lost on restart)")
		return data, cleanup, nil
	}
	// Run the auto migration tool.
	if err := Migrate(context.Background(), drv); err != nil {
		cleanup()
		return nil, nil, err
	}
	helper.Infof("database ready driver=%s", drv.Dialect())
	return data, cleanup, nil
}

// NewSqlDriver 按配置打开数据库；内存模式返回 nil
func NewSqlDriver(c *conf.Data, logger log.Logger) (*entsql.Driver, error) {
	switch c.Database.ResolveDriver() {
	case conf.DriverMemory:
		return nil, nil
	case conf.DriverMySQL:
		return newMySqlDriver(c, logger)
	case conf.DriverSQLite:
		return newSqliteDriver(c, logger)
	case conf.DriverPostgres:
		return newPostgresDriver(c, logger)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", c.Database.Driver)
	}
}

var (
	hookMu sync.Mutex
	hooked = map[string]*Hooks{}
)

// registerHooked 每个驱动名只注册一次，重复打开时更新钩子配置
func registerHooked(base string, drv driver.Driver, c *conf.Data, logger log.Logger) string {
	hookMu.Lock()
	defer hookMu.Unlock()
	name := base + "WithHooks"
	threshold := c.Database.SlowThreshold.Duration
	if h, ok := hooked[name]; ok {
		h.configure(threshold, c.Database.Debug, logger)
		return name
	}
	h := newHooks(threshold, c.Database.Debug, logger)
	sql.Register(name, sqlhooks.Wrap(drv, h))
	hooked[name] = h
	return name
}

func configurePool(db *sql.DB) {
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Minute * 10)
}

// sqliteDSN 打开外键约束，级联删除依赖它
func sqliteDSN(src string) string {
	if strings.Contains(src, "foreign_keys") {
		return src
	}
	sep := "?"
	if strings.Contains(src, "?") {
		sep = "&"
	}
	return src + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func newSqliteDriver(c *conf.Data, logger log.Logger) (*entsql.Driver, error) {
	name := registerHooked("sqlite3", &sqlite.Driver{}, c, logger)
	db, err := sql.Open(name, sqliteDSN(c.Database.Source))
	if err != nil {
		return nil, err
	}
	configurePool(db)
	// sqlite 单写者，串行化连接避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)
	return entsql.OpenDB(dialect.SQLite, db), nil
}

func newMySqlDriver(c *conf.Data, logger log.Logger) (*entsql.Driver, error) {
	name := registerHooked("mysql", &mysql.MySQLDriver{}, c, logger)
	cfg, err := mysql.ParseDSN(c.Database.Source)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	dbName := cfg.DBName
	// 去除数据库名字
	cfg.DBName = ""
	tdb, err := sql.Open(name, cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	defer tdb.Close()
	// 自动创建数据库
	if dbName != "" {
		if _, err := tdb.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4", dbName)); err != nil {
			return nil, fmt.Errorf("create database %s: %w", dbName, err)
		}
	}

	db, err := sql.Open(name, c.Database.Source)
	if err != nil {
		return nil, err
	}
	configurePool(db)
	return entsql.OpenDB(dialect.MySQL, db), nil
}

func newPostgresDriver(c *conf.Data, logger log.Logger) (*entsql.Driver, error) {
	name := registerHooked("pgx", stdlib.GetDefaultDriver(), c, logger)
	db, err := sql.Open(name, c.Database.Source)
	if err != nil {
		return nil, err
	}
	configurePool(db)
	return entsql.OpenDB(dialect.Postgres, db), nil
}
