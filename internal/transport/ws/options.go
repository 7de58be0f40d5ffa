package ws

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/resilience"
)

// Options configures either end of a websocket bridge connection.
type Options struct {
	Logger  *zap.Logger
	Metrics *monitoring.Metrics

	// Breaker guards frame writes. Zero values take the breaker defaults.
	Breaker resilience.Settings

	// MessagesPerSecond limits inbound frames; reads wait for a token.
	// Zero disables the limit.
	MessagesPerSecond float64
	Burst             int

	WriteTimeout time.Duration
	ReadLimit    int64

	// ConsoleHook makes a Remote hold its page until the console hook
	// script has been applied as well as the bridge script.
	ConsoleHook bool
}

// DefaultOptions returns options without rate limiting.
func DefaultOptions() Options {
	return Options{
		WriteTimeout: 10 * time.Second,
		ReadLimit:    4 << 20,
	}
}

// OptionsFromConfig builds options from the application configuration.
func OptionsFromConfig(cfg *config.Config, logger *zap.Logger, metrics *monitoring.Metrics) Options {
	opts := DefaultOptions()
	opts.Logger = logger
	opts.Metrics = metrics
	opts.ConsoleHook = cfg.Bridge.ConsoleHook
	opts.Breaker = resilience.Settings{
		MaxFailures: cfg.Breaker.MaxFailures,
		OpenTimeout: cfg.Breaker.OpenTimeout,
	}
	if cfg.RateLimit.Enabled {
		opts.MessagesPerSecond = float64(cfg.RateLimit.MessagesPerSecond)
		opts.Burst = cfg.RateLimit.Burst
	}
	return opts
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = d.ReadLimit
	}
	return o
}

func (o Options) limiter() *rate.Limiter {
	if o.MessagesPerSecond <= 0 {
		return nil
	}
	burst := o.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(o.MessagesPerSecond), burst)
}

// NewUpgrader returns an upgrader accepting the given origins. An empty list
// or "*" accepts every origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if allowAll || origin == "" {
				return true
			}
			if allowed[origin] {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && allowed[u.Scheme+"://"+u.Host]
		},
	}
}
