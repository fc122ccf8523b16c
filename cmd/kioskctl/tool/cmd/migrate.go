package cmd

import (
	"context"
	"fmt"
	"time"

	"kiosk-go/internal/conf"
	"kiosk-go/internal/data"

	"github.com/spf13/cobra"
)

// migrateCmd 创建或补齐数据表
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建/更新数据表（内存模式无需迁移）",
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := conf.Load(cfgPath)
		if err != nil {
			return err
		}
		logger, err := newLogger()
		if err != nil {
			return err
		}
		drv, err := data.NewSqlDriver(&bc.Data, logger)
		if err != nil {
			return err
		}
		if drv == nil {
			return fmt.Errorf("未配置数据库（driver=%s），内存模式没有表结构", bc.Data.Database.Driver)
		}
		defer drv.Close()
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		if err := data.Migrate(ctx, drv); err != nil {
			return err
		}
		tables, err := data.Tables()
		if err != nil {
			return err
		}
		for _, t := range tables {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d columns)\n", t.Name, len(t.Columns))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", drv.Dialect())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
