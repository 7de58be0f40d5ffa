package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/jsbridge/internal/transport/jsvm"
	"github.com/GriffinCanCode/jsbridge/internal/transport/ws"
)

var connectHook bool

var connectCmd = &cobra.Command{
	Use:   "connect URL PAGE",
	Short: "Host a page as the remote side of a bridge server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return connect(ctx, args[0], args[1], connectHook)
	},
}

func init() {
	connectCmd.Flags().BoolVar(&connectHook, "console-hook", true, "wait for the server's console hook before running the page")
}

func connect(ctx context.Context, url, page string, consoleHook bool) error {
	src, err := os.ReadFile(page)
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}

	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	envCfg := jsvm.DefaultConfig()
	envCfg.Logger = logger.Logger
	env := jsvm.New(envCfg)
	defer env.Close()

	remote, err := ws.Dial(ctx, url, nil, env, ws.Options{Logger: logger.Logger, ConsoleHook: consoleHook})
	if err != nil {
		return err
	}
	defer remote.Close()

	if err := remote.Navigate(string(src)); err != nil {
		return err
	}
	err = remote.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
