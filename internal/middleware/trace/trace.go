// Package trace wraps command runs with a run id, start and completion
// logs, and simple counters.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"daybook/internal/log"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RunIDKey is the context key for the run id
	RunIDKey ContextKey = "run_id"
)

// Metrics counts traced runs.
type Metrics struct {
	TotalRuns      int64
	FailedRuns     int64
	LastDurationMs int64
}

type Tracer struct {
	metrics Metrics
}

func NewTracer() *Tracer {
	return &Tracer{}
}

// Run calls fn with a context carrying a fresh run id and logs the outcome.
// fn's error is returned unchanged.
func (t *Tracer) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	runID := GenerateRunID()
	ctx = context.WithValue(ctx, RunIDKey, runID)

	slog.DebugContext(ctx, "Command started",
		"run_id", runID,
		log.FieldOperation, name)

	atomic.AddInt64(&t.metrics.TotalRuns, 1)
	err := fn(ctx)

	duration := time.Since(start)
	atomic.StoreInt64(&t.metrics.LastDurationMs, duration.Milliseconds())

	level := slog.LevelDebug
	if err != nil {
		atomic.AddInt64(&t.metrics.FailedRuns, 1)
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "Command completed",
		"run_id", runID,
		log.FieldOperation, name,
		log.FieldDuration, duration.Milliseconds(),
		"success", err == nil,
		log.FieldError, err)
	return err
}

// GenerateRunID creates a unique id for one command run
func GenerateRunID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("run_%d", time.Now().UnixNano())
	}
	return "run_" + hex.EncodeToString(bytes)
}

// GetRunID extracts the run id from context
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns current metrics
func (t *Tracer) GetMetrics() Metrics {
	return Metrics{
		TotalRuns:      atomic.LoadInt64(&t.metrics.TotalRuns),
		FailedRuns:     atomic.LoadInt64(&t.metrics.FailedRuns),
		LastDurationMs: atomic.LoadInt64(&t.metrics.LastDurationMs),
	}
}
