package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/logging"
)

var (
	logLevel string

	rootCmd = &cobra.Command{
		Use:          "jsbridge",
		Short:        "Run pages against a script bridge",
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "debug, info, warn or error")
	rootCmd.AddCommand(runCmd, connectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger writes to stderr so stdout only carries results.
func newLogger(level string) (*logging.Logger, error) {
	logger, err := logging.New(logging.Config{
		Level:       level,
		Development: true,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	return logger, nil
}

// lineWriter serializes lines written from several goroutines.
type lineWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *lineWriter) printf(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format+"\n", args...)
}
