package jsvm

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrClosed is returned once the environment has been closed.
	ErrClosed = errors.New("js environment closed")

	// ErrTimeout is returned when a script exceeds Config.Timeout.
	ErrTimeout = errors.New("script execution timeout exceeded")

	// ErrPanic wraps a Go panic raised while a script was running.
	ErrPanic = errors.New("panic during script execution")
)

// Config defines environment configuration
type Config struct {
	Timeout          time.Duration // Per-script execution limit, zero for none
	MaxCallStackSize int           // Zero keeps the engine default
	KeepConsole      int           // Console entries retained, zero for none
	Logger           *zap.Logger
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    // log, info, warn, error
	Message string    // Joined arguments
	Time    time.Time // Timestamp
}

// DefaultConfig returns the configuration used by the CLI and remote side.
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		MaxCallStackSize: 1024,
		KeepConsole:      256,
	}
}
