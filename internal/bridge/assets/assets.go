// Package assets supplies the bootstrap scripts evaluated in the remote
// environment when a bridge becomes ready.
package assets

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/config"
)

// File names, identical in every source.
const (
	BridgeFile      = "bridge.js"
	ConsoleHookFile = "hook_console.js"
)

//go:embed scripts/bridge.js scripts/hook_console.js
var embedded embed.FS

// ErrEmptyScript is returned when a source yields a blank bridge script.
var ErrEmptyScript = errors.New("bridge script is empty")

// Bundle is one set of bootstrap scripts.
type Bundle struct {
	Bridge      string
	ConsoleHook string
	// Source says where the scripts came from: "embedded", a directory or a URL.
	Source string
}

// Scripts returns the scripts to evaluate, in order.
func (b Bundle) Scripts(consoleHook bool) []string {
	scripts := []string{b.Bridge}
	if consoleHook && b.ConsoleHook != "" {
		scripts = append(scripts, b.ConsoleHook)
	}
	return scripts
}

// Embedded returns the scripts compiled into the binary.
func Embedded() Bundle {
	bridge, _ := embedded.ReadFile("scripts/" + BridgeFile)
	hook, _ := embedded.ReadFile("scripts/" + ConsoleHookFile)
	return Bundle{Bridge: string(bridge), ConsoleHook: string(hook), Source: "embedded"}
}

// FromDir reads the scripts from dir. The console hook is optional.
func FromDir(dir string) (Bundle, error) {
	bridge, err := os.ReadFile(filepath.Join(dir, BridgeFile))
	if err != nil {
		return Bundle{}, fmt.Errorf("read bridge script: %w", err)
	}
	if strings.TrimSpace(string(bridge)) == "" {
		return Bundle{}, fmt.Errorf("%s: %w", dir, ErrEmptyScript)
	}

	hook, err := os.ReadFile(filepath.Join(dir, ConsoleHookFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Bundle{}, fmt.Errorf("read console hook: %w", err)
	}
	return Bundle{Bridge: string(bridge), ConsoleHook: string(hook), Source: dir}, nil
}

// Fetcher downloads scripts from a base URL.
type Fetcher struct {
	client *resty.Client
}

// NewFetcher creates a fetcher with retries and a per-request timeout.
func NewFetcher(baseURL string, retries int, timeout time.Duration) *Fetcher {
	client := resty.New()
	client.
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/javascript, text/javascript, */*")
	return &Fetcher{client: client}
}

// Fetch downloads both scripts. A missing console hook (404) is not an error.
func (f *Fetcher) Fetch(ctx context.Context) (Bundle, error) {
	bridge, err := f.get(ctx, BridgeFile)
	if err != nil {
		return Bundle{}, err
	}
	if strings.TrimSpace(bridge) == "" {
		return Bundle{}, fmt.Errorf("%s: %w", f.client.BaseURL, ErrEmptyScript)
	}

	hook, err := f.get(ctx, ConsoleHookFile)
	if err != nil && !errors.Is(err, errNotFound) {
		return Bundle{}, err
	}
	return Bundle{Bridge: bridge, ConsoleHook: hook, Source: f.client.BaseURL}, nil
}

var errNotFound = errors.New("not found")

func (f *Fetcher) get(ctx context.Context, name string) (string, error) {
	resp, err := f.client.R().SetContext(ctx).Get("/" + name)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", name, err)
	}
	if resp.StatusCode() == 404 {
		return "", fmt.Errorf("fetch %s: %w", name, errNotFound)
	}
	if resp.IsError() {
		return "", fmt.Errorf("fetch %s: status %d", name, resp.StatusCode())
	}
	return resp.String(), nil
}

// Load picks the scripts configured in cfg: a directory first, then a URL,
// then the embedded copies. A failing override falls back to the embedded
// scripts with a warning.
func Load(ctx context.Context, cfg config.ScriptsConfig, logger *zap.Logger) Bundle {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Dir != "" {
		b, err := FromDir(cfg.Dir)
		if err == nil {
			logger.Info("Loaded bootstrap scripts", zap.String("source", b.Source))
			return b
		}
		logger.Warn("Failed to load bootstrap scripts from directory", zap.String("dir", cfg.Dir), zap.Error(err))
	}

	if cfg.URL != "" {
		b, err := NewFetcher(cfg.URL, cfg.FetchRetries, cfg.FetchTimeout).Fetch(ctx)
		if err == nil {
			logger.Info("Loaded bootstrap scripts", zap.String("source", b.Source))
			return b
		}
		logger.Warn("Failed to fetch bootstrap scripts", zap.String("url", cfg.URL), zap.Error(err))
	}

	return Embedded()
}
