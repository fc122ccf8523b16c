package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"kiosk-go/internal/biz"
	"kiosk-go/internal/kiosk"

	"github.com/spf13/cobra"
)

var (
	sourceURL    string
	fetchTimeout time.Duration
	outPath      string
)

// fetchSnapshot 指定 --url 时从运行中的服务拉取，否则直接读库聚合
func fetchSnapshot(ctx context.Context) (*biz.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	if sourceURL != "" {
		return kiosk.NewHTTPSource(sourceURL, fetchTimeout).Fetch(ctx)
	}
	rt, cleanup, err := openRuntime(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return rt.snapshots.Assemble(ctx)
}

// snapshotCmd 输出与 /api/kiosk-data 相同结构的 JSON
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "导出聚合快照 JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := fetchSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		var w io.Writer = cmd.OutOrStdout()
		if outPath != "" && outPath != "-" {
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "buildings=%d rooms=%d connections=%d\n",
			len(snap.Buildings), snap.RoomCount(), len(snap.Connections))
		return nil
	},
}

func addSourceFlags(c *cobra.Command) {
	c.Flags().StringVar(&sourceURL, "url", "", "聚合接口地址，如 http://127.0.0.1:8000/api/kiosk-data；为空时直接读库")
	c.Flags().DurationVar(&fetchTimeout, "timeout", 30*time.Second, "拉取超时")
}

func init() {
	addSourceFlags(snapshotCmd)
	snapshotCmd.Flags().StringVarP(&outPath, "out", "o", "-", "输出文件，- 表示标准输出")
	rootCmd.AddCommand(snapshotCmd)
}
