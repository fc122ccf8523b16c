package cmd

import (
	"context"
	"fmt"
	"os"

	"kiosk-go/internal/biz"
	"kiosk-go/internal/conf"
	"kiosk-go/internal/data"
	"kiosk-go/pkg/zaplog"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "kioskctl",
	Short:        "키오스크 운영 도구",
	Long:         `kioskctl 提供迁移、样例数据、快照导出与就绪探测等运维子命令。`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "conf", "c", "./configs", "config path (directory or file)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "日志级别")
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// runtime 一次性命令使用的存储与用例
type runtime struct {
	conf      *conf.Bootstrap
	data      *data.Data
	facility  *biz.FacilityUsecase
	snapshots *biz.SnapshotUsecase
	logger    log.Logger
}

func newLogger() (log.Logger, error) {
	zl, err := zaplog.New(logLevel, "console", "kioskctl")
	if err != nil {
		return nil, err
	}
	return zaplog.NewKratos(zl), nil
}

// openRuntime 按配置打开存储并执行迁移；不启动终端缓存
func openRuntime(ctx context.Context) (*runtime, func(), error) {
	bc, err := conf.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, nil, err
	}
	drv, err := data.NewSqlDriver(&bc.Data, logger)
	if err != nil {
		return nil, nil, err
	}
	d, cleanup, err := data.NewData(&bc.Data, drv, logger)
	if err != nil {
		return nil, nil, err
	}
	store, err := data.NewBlobStore(&bc.Data, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	repo := data.NewFacilityRepo(d, logger)
	images := biz.NewImageUsecase(data.NewImageStore(store, logger), logger)
	sc, cleanupCache, err := data.NewSnapshotCache(d, bc, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	rt := &runtime{
		conf:      bc,
		data:      d,
		facility:  biz.NewFacilityUsecase(repo, images, sc, logger),
		snapshots: biz.NewSnapshotUsecase(repo, sc, logger),
		logger:    logger,
	}
	if err := d.Ping(ctx); err != nil {
		cleanupCache()
		cleanup()
		return nil, nil, err
	}
	return rt, func() {
		cleanupCache()
		cleanup()
	}, nil
}
