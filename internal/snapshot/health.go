package snapshot

import (
	"time"

	"controlroom/internal/domain"
)

// Thresholds bound the live and aging freshness windows.
type Thresholds struct {
	Live  time.Duration
	Aging time.Duration
}

// DefaultThresholds are the 60s/300s windows.
var DefaultThresholds = Thresholds{Live: 60 * time.Second, Aging: 300 * time.Second}

// Classify maps a feed age to a freshness status.
func Classify(age time.Duration, th Thresholds) domain.FeedStatus {
	switch {
	case age < th.Live:
		return domain.FeedLive
	case age < th.Aging:
		return domain.FeedAging
	default:
		return domain.FeedStale
	}
}

// Healthy builds the status of a feed that answered at fetchedAt.
func Healthy(feed string, fetchedAt, now time.Time, outOfBounds int, th Thresholds) domain.DataHealthStatus {
	age := now.Sub(fetchedAt)
	if age < 0 {
		age = 0
	}
	return domain.DataHealthStatus{
		FeedName:         feed,
		LastUpdate:       fetchedAt.UTC().Format(time.RFC3339),
		AgeSeconds:       int64(age / time.Second),
		Status:           Classify(age, th),
		OutOfBoundsCount: outOfBounds,
	}
}

// Disconnected builds the status of a feed that failed.
func Disconnected(feed string, err error) domain.DataHealthStatus {
	h := domain.DataHealthStatus{FeedName: feed, Status: domain.FeedDisconnected}
	if err != nil {
		h.ErrorMessage = err.Error()
	}
	return h
}

// Reclassify recomputes ages at read time. Disconnected entries are left untouched.
func Reclassify(health []domain.DataHealthStatus, now time.Time, th Thresholds) []domain.DataHealthStatus {
	out := make([]domain.DataHealthStatus, len(health))
	for i, h := range health {
		out[i] = h
		if h.Status == domain.FeedDisconnected || h.LastUpdate == "" {
			continue
		}
		at, err := time.Parse(time.RFC3339, h.LastUpdate)
		if err != nil {
			continue
		}
		out[i] = Healthy(h.FeedName, at, now, h.OutOfBoundsCount, th)
	}
	return out
}
