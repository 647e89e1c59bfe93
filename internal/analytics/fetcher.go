package analytics

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"controlroom/internal/domain"
	"controlroom/internal/metrics"
	"controlroom/internal/snapshot"
)

// Source is the set of analytics calls a snapshot is assembled from. *Client implements it.
type Source interface {
	MarketIntelligence(ctx context.Context, limit int) ([]snapshot.Market, error)
	EquipmentRecommendations(ctx context.Context) ([]snapshot.EquipmentRecommendation, error)
	ExecutiveInsights(ctx context.Context) ([]snapshot.Insight, error)
	NetworkStats(ctx context.Context) (*snapshot.NetworkStats, error)
	NetworkPosition(ctx context.Context) (*snapshot.NetworkPosition, error)
	HubSummary(ctx context.Context) (map[string]snapshot.Hub, error)
	FleetSummary(ctx context.Context) (*snapshot.FleetSummary, error)
	MaintenanceDue(ctx context.Context) ([]snapshot.MaintenanceDue, error)
	FleetAlignment(ctx context.Context) (*snapshot.FleetAlignment, error)
	CrewSummary(ctx context.Context) (*snapshot.CrewSummary, error)
	TrainingDue(ctx context.Context) ([]snapshot.TrainingDue, error)
	CrewAlignment(ctx context.Context) (*snapshot.CrewAlignment, error)
	MROSummary(ctx context.Context) (*snapshot.MROSummary, error)
	ScheduledMaintenance(ctx context.Context) ([]snapshot.ScheduledMaintenance, error)
	MROImpact(ctx context.Context) (*snapshot.MROImpact, error)
	TrackedOutcomes(ctx context.Context) ([]snapshot.ActualOutcome, error)
	OptimizerStatus(ctx context.Context) (*snapshot.OptimizerStatus, error)
}

// Fetcher issues every feed concurrently. A failing feed degrades to its empty default and a
// disconnected health entry; Fetch itself never fails.
type Fetcher struct {
	Source      Source
	MarketLimit int
	Timeout     time.Duration
	Thresholds  snapshot.Thresholds
	Logger      *slog.Logger
	Now         func() time.Time
}

func (f Fetcher) now() time.Time {
	if f.Now != nil {
		return f.Now().UTC()
	}
	return time.Now().UTC()
}

func (f Fetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// Fetch assembles a snapshot. Each feed runs under its own timeout.
func (f Fetcher) Fetch(ctx context.Context) *snapshot.Snapshot {
	snap := &snapshot.Snapshot{FetchedAt: f.now()}
	health := make([]domain.DataHealthStatus, len(snapshot.Feeds))
	src := f.Source

	calls := map[string]func(context.Context) (int, error){
		snapshot.FeedMarkets: func(ctx context.Context) (int, error) {
			v, err := src.MarketIntelligence(ctx, f.MarketLimit)
			if err != nil {
				return 0, err
			}
			var bad int
			snap.Markets, bad = snapshot.NormalizeMarkets(v)
			return bad, nil
		},
		snapshot.FeedEquipment: func(ctx context.Context) (int, error) {
			v, err := src.EquipmentRecommendations(ctx)
			snap.Equipment = v
			return 0, err
		},
		snapshot.FeedInsights: func(ctx context.Context) (int, error) {
			v, err := src.ExecutiveInsights(ctx)
			snap.Insights = v
			return 0, err
		},
		snapshot.FeedNetworkStats: func(ctx context.Context) (int, error) {
			v, err := src.NetworkStats(ctx)
			snap.NetworkStats = v
			return 0, err
		},
		snapshot.FeedNetworkPosition: func(ctx context.Context) (int, error) {
			v, err := src.NetworkPosition(ctx)
			snap.NetworkPosition = v
			return 0, err
		},
		snapshot.FeedHubs: func(ctx context.Context) (int, error) {
			v, err := src.HubSummary(ctx)
			snap.Hubs = v
			return 0, err
		},
		snapshot.FeedFleet: func(ctx context.Context) (int, error) {
			v, err := src.FleetSummary(ctx)
			snap.Fleet = v
			return 0, err
		},
		snapshot.FeedMaintenanceDue: func(ctx context.Context) (int, error) {
			v, err := src.MaintenanceDue(ctx)
			snap.MaintenanceDue = v
			return 0, err
		},
		snapshot.FeedFleetAlignment: func(ctx context.Context) (int, error) {
			v, err := src.FleetAlignment(ctx)
			snap.FleetAlignment = v
			return 0, err
		},
		snapshot.FeedCrew: func(ctx context.Context) (int, error) {
			v, err := src.CrewSummary(ctx)
			snap.Crew = v
			return 0, err
		},
		snapshot.FeedTrainingDue: func(ctx context.Context) (int, error) {
			v, err := src.TrainingDue(ctx)
			snap.TrainingDue = v
			return 0, err
		},
		snapshot.FeedCrewAlignment: func(ctx context.Context) (int, error) {
			v, err := src.CrewAlignment(ctx)
			if err != nil {
				return 0, err
			}
			var bad int
			snap.CrewAlignment, bad = snapshot.NormalizeCrewAlignment(v)
			return bad, nil
		},
		snapshot.FeedMRO: func(ctx context.Context) (int, error) {
			v, err := src.MROSummary(ctx)
			snap.MRO = v
			return 0, err
		},
		snapshot.FeedScheduledMaintenance: func(ctx context.Context) (int, error) {
			v, err := src.ScheduledMaintenance(ctx)
			snap.ScheduledMaintenance = v
			return 0, err
		},
		snapshot.FeedMROImpact: func(ctx context.Context) (int, error) {
			v, err := src.MROImpact(ctx)
			if err != nil {
				return 0, err
			}
			var bad int
			snap.MROImpact, bad = snapshot.NormalizeMROImpact(v)
			return bad, nil
		},
		snapshot.FeedOptimizer: func(ctx context.Context) (int, error) {
			v, err := src.OptimizerStatus(ctx)
			snap.Optimizer = v
			return 0, err
		},
		snapshot.FeedOutcomes: func(ctx context.Context) (int, error) {
			v, err := src.TrackedOutcomes(ctx)
			snap.Outcomes = v
			return 0, err
		},
	}

	// Each closure writes a distinct snapshot field and health slot.
	var g errgroup.Group
	for i, feed := range snapshot.Feeds {
		call := calls[feed]
		g.Go(func() error {
			health[i] = f.fetchOne(ctx, feed, call)
			return nil
		})
	}
	_ = g.Wait()

	snap.Health = health
	clearFailed(snap)
	return snap
}

func (f Fetcher) fetchOne(ctx context.Context, feed string, call func(context.Context) (int, error)) domain.DataHealthStatus {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	bad, err := call(fctx)
	metrics.FeedFetchDuration.WithLabelValues(feed).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FeedFailures.WithLabelValues(feed).Inc()
		f.logger().Warn("analytics feed failed", slog.String("feed", feed), slog.Any("error", err))
		return snapshot.Disconnected(feed, err)
	}
	at := f.now()
	return snapshot.Healthy(feed, at, at, bad, f.thresholds())
}

func (f Fetcher) thresholds() snapshot.Thresholds {
	if f.Thresholds.Live <= 0 || f.Thresholds.Aging <= 0 {
		return snapshot.DefaultThresholds
	}
	return f.Thresholds
}

// clearFailed resets data from feeds that errored after a partial decode.
func clearFailed(s *snapshot.Snapshot) {
	for _, h := range s.Health {
		if h.Status != domain.FeedDisconnected {
			continue
		}
		switch h.FeedName {
		case snapshot.FeedMarkets:
			s.Markets = nil
		case snapshot.FeedEquipment:
			s.Equipment = nil
		case snapshot.FeedInsights:
			s.Insights = nil
		case snapshot.FeedNetworkStats:
			s.NetworkStats = nil
		case snapshot.FeedNetworkPosition:
			s.NetworkPosition = nil
		case snapshot.FeedHubs:
			s.Hubs = nil
		case snapshot.FeedFleet:
			s.Fleet = nil
		case snapshot.FeedMaintenanceDue:
			s.MaintenanceDue = nil
		case snapshot.FeedFleetAlignment:
			s.FleetAlignment = nil
		case snapshot.FeedCrew:
			s.Crew = nil
		case snapshot.FeedTrainingDue:
			s.TrainingDue = nil
		case snapshot.FeedCrewAlignment:
			s.CrewAlignment = nil
		case snapshot.FeedMRO:
			s.MRO = nil
		case snapshot.FeedScheduledMaintenance:
			s.ScheduledMaintenance = nil
		case snapshot.FeedMROImpact:
			s.MROImpact = nil
		case snapshot.FeedOptimizer:
			s.Optimizer = nil
		case snapshot.FeedOutcomes:
			s.Outcomes = nil
		}
	}
}
