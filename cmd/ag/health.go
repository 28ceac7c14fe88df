package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/agreements/internal/client"
	"github.com/alfredjeanlab/agreements/internal/server"
	"github.com/alfredjeanlab/agreements/internal/ui"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the agreements service",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		grpcAddr, _ := cmd.Flags().GetString("grpc")
		if grpcAddr == "" {
			grpcAddr = activeRemoteGRPCAddr()
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		status, healthy, err := checkHealth(ctx, grpcAddr)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), map[string]string{"status": status}); err != nil {
				return err
			}
		} else {
			rendered := ui.RenderPass(status)
			if !healthy {
				rendered = ui.RenderFail(status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Health: %s\n", rendered)
		}

		if !healthy {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

// checkHealth uses the gRPC health service when addr is set and the HTTP
// health endpoint otherwise.
func checkHealth(ctx context.Context, grpcAddr string) (string, bool, error) {
	if grpcAddr == "" {
		status, err := agClient.Health(ctx)
		return status, status == "ok", err
	}

	hc, err := client.NewGRPCClient(grpcAddr, authToken)
	if err != nil {
		return "", false, err
	}
	defer hc.Close()
	status, err := hc.Check(ctx, server.ServiceName)
	return status, status == "serving", err
}

func init() {
	healthCmd.Flags().String("grpc", "", "check the gRPC health service at this address instead of HTTP")
	healthCmd.Flags().Duration("timeout", 5*time.Second, "how long to wait for a response")
}
