package rules

import (
	"math"
	"sort"

	"controlroom/internal/domain"
	"controlroom/internal/snapshot"
)

const (
	// BaseEquipment is the 182-seat type most frequencies fly on.
	BaseEquipment = "A320neo"

	taxiOutHours = 0.25
	taxiInHours  = 0.17
	climbHours   = 0.33
	descentHours = 0.33
	groundMiles  = 100
)

var cruiseMPH = map[string]float64{
	"A321neo": 460,
	"A320neo": 460,
	"A319":    450,
}

// BlockHours estimates one-way block time for a stage length.
func BlockHours(distance float64, aircraft string) float64 {
	cruise, ok := cruiseMPH[aircraft]
	if !ok {
		cruise = 450
	}
	return taxiOutHours + taxiInHours + climbHours + descentHours + math.Max(0, distance-groundMiles)/cruise
}

// RoundTripHours is the aircraft time one added daily round trip consumes.
func RoundTripHours(distance float64, aircraft string) float64 {
	return round2(2 * BlockHours(distance, aircraft))
}

// RouteRASM is the fare-per-mile proxy in cents: (fare/distance)*100.
func RouteRASM(m snapshot.Market, fareFallback, distFallback float64) float64 {
	return m.Fare(fareFallback) / m.Miles(distFallback) * 100
}

// NetworkAvgRASM is the unweighted mean of RouteRASM over all markets.
func NetworkAvgRASM(markets []snapshot.Market, fareFallback, distFallback float64) float64 {
	if len(markets) == 0 {
		return 0
	}
	var sum float64
	for _, m := range markets {
		sum += RouteRASM(m, fareFallback, distFallback)
	}
	return sum / float64(len(markets))
}

// SeatRASM is daily revenue over the daily round-trip ASMs of one frequency, in cents.
func SeatRASM(dailyPax, fare float64, seats int, distance float64) float64 {
	asm := float64(seats) * distance * 2
	if asm == 0 {
		return 0
	}
	return dailyPax * fare / asm * 100
}

func round(v float64) float64 { return math.Round(v) }

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

// routeLoadFactor uses the origin hub's load factor when the hub feed carries one.
func routeLoadFactor(s *snapshot.Snapshot, origin string, fallback float64) float64 {
	if h, ok := s.Hubs[origin]; ok && h.AvgLoadFactor != nil {
		lf := *h.AvgLoadFactor
		if lf > 1 {
			lf = lf / 100
		}
		if lf > 0 && lf <= 1 {
			return lf
		}
	}
	return s.LoadFactor(fallback)
}

// sortMarkets orders markets by key with the route key as tie-break, so selection is stable.
func sortMarkets(ms []snapshot.Market, less func(a, b snapshot.Market) bool) {
	sort.SliceStable(ms, func(i, j int) bool {
		if less(ms[i], ms[j]) {
			return true
		}
		if less(ms[j], ms[i]) {
			return false
		}
		return ms[i].RouteKey() < ms[j].RouteKey()
	})
}

func top[T any](items []T, n int) []T {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func findMarket(ms []snapshot.Market, key string) (snapshot.Market, bool) {
	for _, m := range ms {
		if m.Key == key || m.RouteKey() == key {
			return m, true
		}
	}
	return snapshot.Market{}, false
}

func evidence(lf *float64, spill *float64, fare *float64, explanation string) domain.Evidence {
	return domain.Evidence{LoadFactor: lf, SpillRate: spill, FareStrength: fare, Explanation: explanation}
}
