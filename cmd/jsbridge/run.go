package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/jsbridge/internal/bridge"
	"github.com/GriffinCanCode/jsbridge/internal/bridge/assets"
	"github.com/GriffinCanCode/jsbridge/internal/bridge/codec"
	"github.com/GriffinCanCode/jsbridge/internal/demo"
	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/jsbridge/internal/transport/jsvm"
)

type runOptions struct {
	page        string
	call        string
	data        string
	scriptDir   string
	consoleHook bool
	timeout     time.Duration
	wait        time.Duration
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run PAGE",
	Short: "Load a page in the embedded engine next to a local bridge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runOpts.page = args[0]
		return runPage(cmd.Context(), runOpts, cmd.OutOrStdout())
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.call, "call", "", "page handler to call once the page has loaded")
	f.StringVar(&runOpts.data, "data", "", "wire-format payload for --call")
	f.StringVar(&runOpts.scriptDir, "scripts", "", "directory overriding the embedded bootstrap scripts")
	f.BoolVar(&runOpts.consoleHook, "console-hook", true, "inject the console hook script")
	f.DurationVar(&runOpts.timeout, "timeout", 10*time.Second, "how long to wait for the --call result")
	f.DurationVar(&runOpts.wait, "wait", 0, "keep the page running this long before exiting")
}

func runPage(ctx context.Context, o runOptions, out io.Writer) error {
	src, err := os.ReadFile(o.page)
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}
	var data any
	if o.data != "" {
		if !codec.Valid(o.data) {
			return fmt.Errorf("--data is not valid wire text: %s", o.data)
		}
		data = codec.Decode(o.data)
	}

	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	w := &lineWriter{out: out}
	bundle := assets.Load(ctx, config.ScriptsConfig{Dir: o.scriptDir}, logger.Logger)

	envCfg := jsvm.DefaultConfig()
	envCfg.Logger = logger.Logger
	env := jsvm.New(envCfg)
	defer env.Close()

	b := bridge.New(env, bridge.Options{
		Logger:                logger,
		Scripts:               bundle.Scripts(o.consoleHook),
		MaxConcurrentDispatch: 4,
		ConsoleSink:           func(line string) { w.printf("console: %s", line) },
	})
	defer b.Close()
	if err := demo.Register(b); err != nil {
		return err
	}

	if err := env.Navigate(string(src)); err != nil {
		return err
	}
	if err := settle(ctx, env); err != nil {
		return err
	}

	if o.call != "" {
		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		result, err := b.CallContext(callCtx, o.call, data)
		cancel()
		if err != nil {
			return fmt.Errorf("call %s: %w", o.call, err)
		}
		w.printf("%s => %s", o.call, codec.Encode(result))
	}

	if o.wait > 0 {
		select {
		case <-time.After(o.wait):
		case <-ctx.Done():
		}
	}

	// Replies to the page's own calls are dispatched off the engine loop.
	b.Wait()
	return settle(ctx, env)
}

// settle waits for the page to run. Navigate queues the page script behind
// its own work, so one flush is not enough.
func settle(ctx context.Context, env *jsvm.Env) error {
	for range 2 {
		if err := env.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}
