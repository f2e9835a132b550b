package resilience

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// HTTPConfig bounds retries and the circuit breaker wrapped around an HTTP
// dependency. Zero values fall back to the defaults.
type HTTPConfig struct {
	Name            string
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BreakerFailures uint
	BreakerWindow   uint
	BreakerDelay    time.Duration
	DisableBreaker  bool
	ShouldRetry     func(resp *http.Response, err error) bool
	Logger          *slog.Logger
}

func DefaultHTTPConfig(name string) HTTPConfig {
	return HTTPConfig{
		Name:            name,
		MaxRetries:      2,
		BaseDelay:       100 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		BreakerFailures: 5,
		BreakerWindow:   10,
		BreakerDelay:    15 * time.Second,
		ShouldRetry:     DefaultShouldRetry,
	}
}

// DefaultShouldRetry retries network errors, 5xx responses and 429.
func DefaultShouldRetry(resp *http.Response, err error) bool {
	if err != nil || resp == nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// RetryUnsent retries only failures that show the server never handled the
// request: dial errors, 429 and 503. Calls that must not run twice use it.
func RetryUnsent(resp *http.Response, err error) bool {
	if err != nil {
		var opErr *net.OpError
		return errors.As(err, &opErr) && opErr.Op == "dial"
	}
	if resp == nil {
		return false
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable
}

func normalize(cfg HTTPConfig) HTTPConfig {
	defaults := DefaultHTTPConfig(cfg.Name)
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaults.BaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.BreakerWindow == 0 {
		cfg.BreakerWindow = defaults.BreakerWindow
	}
	if cfg.BreakerFailures == 0 || cfg.BreakerFailures > cfg.BreakerWindow {
		cfg.BreakerFailures = cfg.BreakerWindow / 2
		if cfg.BreakerFailures == 0 {
			cfg.BreakerFailures = 1
		}
	}
	if cfg.BreakerDelay <= 0 {
		cfg.BreakerDelay = defaults.BreakerDelay
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = DefaultShouldRetry
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// NewHTTPExecutor composes a jittered retry policy with a circuit breaker
// that counts errors and 5xx responses as failures.
//
//nolint:bodyclose // *http.Response is a type parameter here
func NewHTTPExecutor(cfg HTTPConfig) failsafe.Executor[*http.Response] {
	cfg = normalize(cfg)
	retry := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(cfg.ShouldRetry).
		Build()
	if cfg.DisableBreaker {
		return failsafe.With(retry)
	}

	breaker := circuitbreaker.NewBuilder[*http.Response]().
		WithFailureThresholdRatio(cfg.BreakerFailures, cfg.BreakerWindow).
		WithDelay(cfg.BreakerDelay).
		WithSuccessThreshold(1).
		HandleIf(func(resp *http.Response, err error) bool {
			return err != nil || (resp != nil && resp.StatusCode >= http.StatusInternalServerError)
		}).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			cfg.Logger.Warn("circuit breaker state change",
				"event", "circuit_breaker_state_changed",
				"module", "platform/resilience",
				"layer", "platform",
				"breaker", cfg.Name,
				"from_state", stateName(event.OldState),
				"to_state", stateName(event.NewState),
			)
		}).
		Build()
	return failsafe.With(retry, breaker)
}

func stateName(state circuitbreaker.State) string {
	switch state {
	case circuitbreaker.ClosedState:
		return "closed"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	case circuitbreaker.OpenState:
		return "open"
	default:
		return "unknown"
	}
}

// Do runs one request through executor. Responses that will be retried are
// drained and closed before the next attempt.
func Do(
	ctx context.Context,
	executor failsafe.Executor[*http.Response],
	shouldRetry func(resp *http.Response, err error) bool,
	client *http.Client,
	build func(ctx context.Context) (*http.Request, error),
) (*http.Response, error) {
	if shouldRetry == nil {
		shouldRetry = DefaultShouldRetry
	}
	return executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if shouldRetry(resp, err) && resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return resp, err
	})
}
