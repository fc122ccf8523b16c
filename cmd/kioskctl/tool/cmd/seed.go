package cmd

import (
	"fmt"

	"kiosk-go/internal/biz"
	"kiosk-go/internal/conf"

	"github.com/spf13/cobra"
)

// seedCmd 写入样例建筑，已存在的同名建筑会跳过
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "写入样例数据",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, cleanup, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		if rt.data.Backend() == conf.DriverMemory {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: in-memory backend, seeded data is discarded on exit")
		}
		created, err := rt.facility.Seed(cmd.Context())
		if err != nil {
			return err
		}
		for _, b := range created {
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s\n", b.ID, b.Name)
		}
		fmt.Fprintln(cmd.OutOrStdout(), biz.SeedMessage)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
