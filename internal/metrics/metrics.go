// Package metrics exposes builder generation and override counters to prometheus.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/commonwf/pkg/domain"
)

const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Collectors groups the commonwf metrics.
type Collectors struct {
	Builders        *prometheus.CounterVec
	BuilderDuration *prometheus.HistogramVec
	Overrides       *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		Builders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commonwf_builders_total",
				Help: "Total number of builders generated",
			},
			[]string{"plugin", "result"},
		),
		BuilderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "commonwf_builder_duration_seconds",
				Help: "Duration of builder generation",
			},
			[]string{"plugin"},
		),
		Overrides: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commonwf_overrides_total",
				Help: "Total number of overrides applied",
			},
			[]string{"name", "result"},
		),
	}
	for _, col := range []prometheus.Collector{c.Builders, c.BuilderDuration, c.Overrides} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Hooks returns lifecycle hooks recording into the collectors.
func (c *Collectors) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnBuilderGenerated: func(_ context.Context, e *domain.BuilderEvent) {
			c.Builders.WithLabelValues(e.Process, result(e.Err)).Inc()
			c.BuilderDuration.WithLabelValues(e.Process).Observe(e.Duration.Seconds())
		},
		OnOverrideApplied: func(_ context.Context, e *domain.OverrideEvent) {
			c.Overrides.WithLabelValues(e.Override, result(e.Err)).Inc()
		},
	}
}

// Chain combines hooks so that each callback runs in order.
func Chain(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnBuilderGenerated: func(ctx context.Context, e *domain.BuilderEvent) {
			for _, h := range hooks {
				h.EmitBuilder(ctx, e)
			}
		},
		OnOverrideApplied: func(ctx context.Context, e *domain.OverrideEvent) {
			for _, h := range hooks {
				h.EmitOverride(ctx, e)
			}
		},
	}
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
