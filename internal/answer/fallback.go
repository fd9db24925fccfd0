package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/resilience"
)

// Guarded runs a primary composer behind a circuit breaker and a timeout.
// Any failure of the primary is logged and answered by the fallback, with
// the text returned together with an error wrapping ErrDegraded.
type Guarded struct {
	primary  Composer
	fallback Composer
	breaker  *resilience.CircuitBreaker
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewGuarded(primary, fallback Composer, cfg config.AnswerConfig, m *metrics.Metrics) *Guarded {
	g := &Guarded{
		primary:  primary,
		fallback: fallback,
		timeout:  cfg.Timeout,
		metrics:  m,
		logger:   slog.Default().With("component", "answer-composer", "provider", primary.Name()),
	}
	g.breaker = resilience.NewCircuitBreaker("composer-"+primary.Name(), resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     cfg.ResetTimeout,
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return g
}

func (g *Guarded) Name() string { return g.primary.Name() }

func (g *Guarded) Generate(ctx context.Context, query string, sources []Source) (string, error) {
	var text string
	err := g.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, g.timeout, "compose-"+g.primary.Name(), func(ctx context.Context) error {
			var err error
			text, err = g.primary.Generate(ctx, query, sources)
			return err
		})
	})
	if err == nil {
		return text, nil
	}

	reason := "error"
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		reason = "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	case errors.Is(err, context.Canceled):
		return "", err
	}
	if g.metrics != nil {
		g.metrics.ComposerFalls.WithLabelValues(reason).Inc()
	}
	g.logger.Warn("composer failed, using fallback", "reason", reason, "error", err)
	text, ferr := g.fallback.Generate(ctx, query, sources)
	if ferr != nil {
		return "", ferr
	}
	return text, fmt.Errorf("%w: %s %s", ErrDegraded, g.primary.Name(), reason)
}

// BreakerState exposes the breaker state for readiness reporting.
func (g *Guarded) BreakerState() resilience.State {
	return g.breaker.GetState()
}
