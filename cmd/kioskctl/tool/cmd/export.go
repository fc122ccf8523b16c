package cmd

import (
	"fmt"

	"kiosk-go/internal/service"

	"github.com/spf13/cobra"
)

var xlsxPath string

// exportCmd 生成房间目录工作簿
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "导出房间目录（xlsx）",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := fetchSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		f, err := service.BuildDirectory(snap)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := f.SaveAs(xlsxPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d rooms)\n", xlsxPath, snap.RoomCount())
		return nil
	},
}

func init() {
	addSourceFlags(exportCmd)
	exportCmd.Flags().StringVarP(&xlsxPath, "out", "o", "kiosk-directory.xlsx", "输出文件")
	rootCmd.AddCommand(exportCmd)
}
