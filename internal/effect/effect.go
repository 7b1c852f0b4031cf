// Package effect runs best-effort side effects: calls to collaborators whose
// failure must not stop checkout. Every attempt produces a Result that is
// logged and counted in one place instead of being silently dropped.
package effect

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// Result is the outcome of one best-effort call.
type Result[T any] struct {
	Name     string
	Value    T
	Err      error
	Duration time.Duration
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Recorder logs and counts side-effect outcomes.
type Recorder struct {
	attempts metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewRecorder creates a Recorder reporting to the given meter provider.
// A nil provider disables metrics.
func NewRecorder(mp metric.MeterProvider) (*Recorder, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter("github.com/eubiosis/checkout/internal/effect")

	attempts, err := meter.Int64Counter("checkout.side_effects",
		metric.WithDescription("Best-effort side effects attempted during checkout"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create side effect counter")
	}
	latency, err := meter.Float64Histogram("checkout.side_effect.duration",
		metric.WithDescription("Side effect duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create side effect histogram")
	}

	return &Recorder{attempts: attempts, latency: latency}, nil
}

// Nop returns a Recorder without metrics, for tests and tools.
func Nop() *Recorder {
	r, _ := NewRecorder(nil)
	return r
}

func (r *Recorder) record(ctx context.Context, name string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	attrs := metric.WithAttributes(
		attribute.String("effect", name),
		attribute.String("outcome", outcome),
	)
	r.attempts.Add(ctx, 1, attrs)
	r.latency.Record(ctx, d.Seconds(), attrs)

	lg := zctx.From(ctx)
	if err != nil {
		lg.Warn("Side effect failed, continuing",
			zap.String("effect", name),
			zap.Duration("duration", d),
			zap.Error(err),
		)
		return
	}
	lg.Debug("Side effect done", zap.String("effect", name), zap.Duration("duration", d))
}

// Run calls fn exactly once and records the outcome. It never returns an
// error; callers inspect the Result.
func Run[T any](ctx context.Context, r *Recorder, name string, fn func(ctx context.Context) (T, error)) Result[T] {
	start := time.Now()
	v, err := fn(ctx)
	res := Result[T]{Name: name, Value: v, Err: err, Duration: time.Since(start)}
	r.record(ctx, name, res.Duration, err)
	return res
}

// Do is Run for calls without a value.
func Do(ctx context.Context, r *Recorder, name string, fn func(ctx context.Context) error) Result[struct{}] {
	return Run(ctx, r, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}
