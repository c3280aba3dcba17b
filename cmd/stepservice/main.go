package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/pkg/stepservice"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stepservice",
		Short:         "Asynchronous step processing service with webhook delivery",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd(), newVersionCmd(), newTokenCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := svc.Logger()
			logger.Info("service starting",
				slog.String("build", version),
				slog.Any("operations", svc.Operations()),
			)
			if err := svc.Run(ctx); err != nil {
				logger.Error("service stopped with error", slog.String("error", err.Error()))
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
	return cmd
}

// newService builds the service from configPath. A release build stamps its
// version over service.version.
func newService(configPath string) (*stepservice.Service, error) {
	opts := []stepservice.Option{stepservice.WithConfigFile(configPath)}
	if version != "dev" {
		opts = append(opts, stepservice.WithVersion(version))
	}
	return stepservice.New(opts...)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newTokenCmd() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate a random bearer token for auth.token or webhook.auth_token",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := generateToken(size)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().IntVarP(&size, "bytes", "n", 32, "random bytes before hex encoding")
	return cmd
}

func generateToken(size int) (string, error) {
	if size < 16 {
		return "", fmt.Errorf("--bytes must be at least 16, got %d", size)
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
