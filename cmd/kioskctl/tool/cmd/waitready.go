package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

var (
	waitURL      string
	waitGRPCAddr string
	waitTimeout  time.Duration
	waitInterval time.Duration
)

// waitreadyCmd waits until the kiosk server reports healthy status
var waitreadyCmd = &cobra.Command{
	Use:   "waitready",
	Short: "等待 /healthz 或 gRPC health 就绪（部署编排用）",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), waitTimeout)
		defer cancel()
		if waitGRPCAddr != "" {
			return waitGRPC(ctx, waitGRPCAddr)
		}
		return waitHTTP(ctx, waitURL)
	},
}

func init() {
	waitreadyCmd.Flags().StringVar(&waitURL, "url", "http://127.0.0.1:8000/healthz", "就绪探针 URL")
	waitreadyCmd.Flags().StringVar(&waitGRPCAddr, "grpc", "", "gRPC 地址，设置后改用 grpc.health.v1 探测")
	waitreadyCmd.Flags().DurationVar(&waitTimeout, "timeout", 10*time.Minute, "等待超时")
	waitreadyCmd.Flags().DurationVar(&waitInterval, "interval", 2*time.Second, "探测间隔")
	rootCmd.AddCommand(waitreadyCmd)
}

func waitHTTP(ctx context.Context, url string) error {
	client := resty.New().SetTimeout(5 * time.Second)
	for {
		resp, err := client.R().SetContext(ctx).Get(url)
		if err == nil && resp.StatusCode() == 200 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waitready 超时：%s", url)
		case <-time.After(waitInterval):
		}
	}
}

func waitGRPC(ctx context.Context, addr string) error {
	conn, err := gogrpc.NewClient(addr, gogrpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()
	client := grpc_health_v1.NewHealthClient(conn)
	for {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		resp, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{})
		cancel()
		if err == nil && resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waitready 超时：%s", addr)
		case <-time.After(waitInterval):
		}
	}
}
