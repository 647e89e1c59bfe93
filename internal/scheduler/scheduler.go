// Package scheduler owns refresh timing. Each pass gets a monotonically increasing epoch; a
// pass that finishes after a newer one has been applied is discarded.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"controlroom/internal/engine"
	"controlroom/internal/metrics"
	"controlroom/internal/pipeline"
	"controlroom/internal/snapshot"
)

type Fetcher interface {
	Fetch(ctx context.Context) *snapshot.Snapshot
}

type Applier interface {
	Apply(ctx context.Context, res pipeline.Result) (engine.ApplyReport, error)
}

// Outcome reports one refresh pass.
type Outcome struct {
	Epoch  uint64             `json:"epoch"`
	Stale  bool               `json:"stale"`
	Report engine.ApplyReport `json:"report"`
}

type Scheduler struct {
	Fetcher  Fetcher
	Pipeline pipeline.Pipeline
	Engine   Applier
	Interval time.Duration
	Logger   *slog.Logger
	Now      func() time.Time

	next    atomic.Uint64
	mu      sync.Mutex
	applied uint64
}

// Seed continues epoch numbering after the last applied epoch of a previous process.
func (s *Scheduler) Seed(lastApplied uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lastApplied > s.applied {
		s.applied = lastApplied
	}
	if s.next.Load() < lastApplied {
		s.next.Store(lastApplied)
	}
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// RefreshNow fetches, runs the pipeline and applies the result unless a newer pass has
// already been applied.
func (s *Scheduler) RefreshNow(ctx context.Context) (Outcome, error) {
	epoch := s.next.Add(1)
	snap := s.Fetcher.Fetch(ctx)
	if snap == nil {
		snap = &snapshot.Snapshot{}
	}
	snap.Epoch = epoch
	res := s.Pipeline.Run(snap, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	out := Outcome{Epoch: epoch}
	if epoch <= s.applied {
		return s.discard(out, s.applied), nil
	}
	rep, err := s.Engine.Apply(ctx, res)
	if errors.Is(err, engine.ErrStale) {
		return s.discard(out, s.applied), nil
	}
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("failed").Inc()
		s.logger().Error("refresh failed", slog.Uint64("epoch", epoch), slog.Any("err", err))
		return out, err
	}
	s.applied = epoch
	out.Report = rep
	metrics.RefreshTotal.WithLabelValues("applied").Inc()
	return out, nil
}

func (s *Scheduler) discard(out Outcome, applied uint64) Outcome {
	out.Stale = true
	metrics.RefreshTotal.WithLabelValues("stale").Inc()
	s.logger().Info("stale refresh discarded", slog.Uint64("epoch", out.Epoch), slog.Uint64("applied", applied))
	return out
}

// Run refreshes immediately and then every Interval until ctx is done. Failed passes are
// logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		_, _ = s.RefreshNow(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
