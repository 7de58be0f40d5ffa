package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/jsbridge/internal/server"
)

var (
	cfgFile  string
	port     string
	grpcPort string
	logLevel string

	rootCmd = &cobra.Command{
		Use:          "bridged",
		Short:        "Host script bridges for remote environments",
		SilenceUsage: true,
		RunE:         run,
	}
)

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "YAML config file applied on top of the environment")
	rootCmd.Flags().StringVar(&port, "port", "", "HTTP port (overrides config)")
	rootCmd.Flags().StringVar(&grpcPort, "grpc-port", "", "gRPC pipe port, empty disables it (overrides config)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("grpc-port") {
		cfg.Server.GRPCPort = grpcPort
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Run(ctx)
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFile(cfgFile)
	}
	return config.Load()
}
