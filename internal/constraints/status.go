package constraints

import (
	"fmt"
	"strings"

	"controlroom/internal/domain"
	"controlroom/internal/snapshot"
)

var domainFeeds = map[domain.ConstraintDomain][]string{
	domain.DomainNetwork:    {snapshot.FeedMarkets, snapshot.FeedNetworkStats, snapshot.FeedNetworkPosition, snapshot.FeedHubs, snapshot.FeedOptimizer},
	domain.DomainFleet:      {snapshot.FeedFleet, snapshot.FeedMaintenanceDue, snapshot.FeedFleetAlignment},
	domain.DomainCrew:       {snapshot.FeedCrew, snapshot.FeedTrainingDue, snapshot.FeedCrewAlignment},
	domain.DomainMRO:        {snapshot.FeedMRO, snapshot.FeedScheduledMaintenance, snapshot.FeedMROImpact},
	domain.DomainCommercial: {snapshot.FeedMarkets, snapshot.FeedEquipment, snapshot.FeedInsights},
}

func feedRank(s domain.FeedStatus) int {
	switch s {
	case domain.FeedDisconnected:
		return 3
	case domain.FeedStale:
		return 2
	case domain.FeedAging:
		return 1
	default:
		return 0
	}
}

// StatusByDomain summarizes the constraint picture per domain: the worst severity carried by any
// decision, blocking and warning counts, and the worst feed status backing the domain.
func StatusByDomain(decisions []domain.Decision, health []domain.DataHealthStatus) []domain.DomainStatus {
	byFeed := map[string]domain.DataHealthStatus{}
	for _, h := range health {
		byFeed[h.FeedName] = h
	}

	out := make([]domain.DomainStatus, 0, len(domain.ConstraintDomains))
	for _, d := range domain.ConstraintDomains {
		st := domain.DomainStatus{Domain: d, Severity: domain.SeverityOK}
		for _, dec := range decisions {
			for _, c := range dec.Constraints {
				if c.Domain != d {
					continue
				}
				switch c.Severity {
				case domain.SeverityBlocking:
					st.BlockingCount++
				case domain.SeverityWarning:
					st.WarningCount++
				}
				st.Severity = st.Severity.Worse(c.Severity)
			}
		}

		var down []string
		for _, feed := range domainFeeds[d] {
			h, ok := byFeed[feed]
			if !ok {
				continue
			}
			if st.FeedStatus == "" || feedRank(h.Status) > feedRank(st.FeedStatus) {
				st.FeedStatus = h.Status
			}
			if h.Status == domain.FeedDisconnected {
				down = append(down, feed)
			}
		}
		if len(down) > 0 {
			st.Severity = st.Severity.Worse(domain.SeverityWarning)
		}

		switch {
		case st.BlockingCount > 0:
			st.Headline = fmt.Sprintf("%d blocking, %d warning", st.BlockingCount, st.WarningCount)
		case len(down) > 0:
			st.Headline = "feed disconnected: " + strings.Join(down, ", ")
		case st.WarningCount > 0:
			st.Headline = fmt.Sprintf("%d warning", st.WarningCount)
		default:
			st.Headline = "clear"
		}
		out = append(out, st)
	}
	return out
}
