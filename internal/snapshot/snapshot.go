// Package snapshot holds the per-domain records one refresh pass is computed from.
package snapshot

import (
	"math"
	"time"

	"controlroom/internal/domain"
)

// Feed names, one per consumed analytics call.
const (
	FeedMarkets              = "markets"
	FeedEquipment            = "equipment_recommendations"
	FeedInsights             = "executive_insights"
	FeedNetworkStats         = "network_stats"
	FeedNetworkPosition      = "network_position"
	FeedHubs                 = "hub_summary"
	FeedFleet                = "fleet_summary"
	FeedMaintenanceDue       = "maintenance_due"
	FeedFleetAlignment       = "fleet_alignment"
	FeedCrew                 = "crew_summary"
	FeedTrainingDue          = "training_due"
	FeedCrewAlignment        = "crew_alignment"
	FeedMRO                  = "mro_summary"
	FeedScheduledMaintenance = "scheduled_maintenance"
	FeedMROImpact            = "mro_impact"
	FeedOptimizer            = "optimizer_status"
	FeedOutcomes             = "tracked_outcomes"
)

// Feeds lists every feed in fetch order.
var Feeds = []string{
	FeedMarkets, FeedEquipment, FeedInsights, FeedNetworkStats, FeedNetworkPosition, FeedHubs,
	FeedFleet, FeedMaintenanceDue, FeedFleetAlignment,
	FeedCrew, FeedTrainingDue, FeedCrewAlignment,
	FeedMRO, FeedScheduledMaintenance, FeedMROImpact,
	FeedOptimizer, FeedOutcomes,
}

type Market struct {
	Key                  string   `json:"market_key"`
	Origin               string   `json:"origin"`
	Destination          string   `json:"destination"`
	NKPassengers         int      `json:"nk_passengers"`
	F9Passengers         int      `json:"f9_passengers"`
	Share                float64  `json:"nk_market_share"`
	AvgFare              *float64 `json:"nk_avg_fare"`
	F9AvgFare            *float64 `json:"f9_avg_fare"`
	FareAdvantage        float64  `json:"fare_advantage"`
	CompetitiveIntensity string   `json:"competitive_intensity"`
	Distance             *float64 `json:"distance"`
}

// RouteKey is the directional route identifier used in decision ids.
func (m Market) RouteKey() string {
	if m.Origin == "" || m.Destination == "" {
		return m.Key
	}
	return m.Origin + "-" + m.Destination
}

// DailyPax converts annual passengers to a daily figure.
func (m Market) DailyPax() int {
	return int(math.Round(float64(m.NKPassengers) / 365))
}

// Fare returns the average fare or the fallback.
func (m Market) Fare(fallback float64) float64 {
	if m.AvgFare != nil && *m.AvgFare > 0 {
		return *m.AvgFare
	}
	return fallback
}

// Miles returns the distance or the fallback.
func (m Market) Miles(fallback float64) float64 {
	if m.Distance != nil && *m.Distance > 0 {
		return *m.Distance
	}
	return fallback
}

type EquipmentRecommendation struct {
	Route                string `json:"route"`
	MarketKey            string `json:"market_key"`
	RecommendedEquipment string `json:"recommended_equipment"`
	Reason               string `json:"reason"`
	EstimatedDailyPax    int    `json:"estimated_daily_pax"`
}

type Insight struct {
	Category string `json:"category"`
	Headline string `json:"headline"`
	Detail   string `json:"detail"`
	Metric   string `json:"metric"`
	Action   string `json:"action"`
	Priority string `json:"priority"`
}

type NetworkStats struct {
	TotalRecords   int      `json:"total_records"`
	UniqueAirports int      `json:"unique_airports"`
	UniqueRoutes   int      `json:"unique_routes"`
	TotalPax       float64  `json:"total_pax"`
	AvgLoadFactor  *float64 `json:"avg_load_factor"`
}

type NetworkPosition struct {
	TotalMarkets            int     `json:"total_markets"`
	OverlapMarkets          int     `json:"overlap_markets"`
	NKOnlyMarkets           int     `json:"nk_only_markets"`
	F9OnlyMarkets           int     `json:"f9_only_markets"`
	TotalNKPassengers       int     `json:"total_nk_passengers"`
	TotalF9Passengers       int     `json:"total_f9_passengers"`
	AvgNKMarketShare        float64 `json:"avg_nk_market_share"`
	FareAdvantageMarkets    int     `json:"fare_advantage_markets"`
	FareDisadvantageMarkets int     `json:"fare_disadvantage_markets"`
}

type Hub struct {
	TotalFlights  int      `json:"total_flights"`
	UniqueRoutes  int      `json:"unique_routes"`
	TotalPax      float64  `json:"total_pax"`
	AvgLoadFactor *float64 `json:"avg_load_factor"`
}

type FleetSummary struct {
	TotalAircraft int            `json:"total_aircraft"`
	ByType        map[string]int `json:"by_type"`
	ByBase        map[string]int `json:"by_base"`
	ByStatus      map[string]int `json:"by_status"`
}

type MaintenanceDue struct {
	Registration  string `json:"aircraft_registration"`
	AircraftType  string `json:"aircraft_type"`
	HomeBase      string `json:"home_base"`
	NextCCheckDue string `json:"next_c_check_due"`
}

type FleetRecommendation struct {
	Type    string `json:"type"`
	Base    string `json:"base"`
	Message string `json:"message"`
}

type FleetAlignment struct {
	Recommendations []FleetRecommendation `json:"recommendations"`
}

type CrewSummary struct {
	TotalCrew int            `json:"total_crew"`
	ByType    map[string]int `json:"by_type"`
	ByBase    map[string]int `json:"by_base"`
	ByStatus  map[string]int `json:"by_status"`
}

type TrainingDue struct {
	EmployeeID string `json:"employee_id"`
	CrewType   string `json:"crew_type"`
	HomeBase   string `json:"home_base"`
	DueDate    string `json:"recurrent_training_due"`
}

type BaseCrew struct {
	Pilots           int     `json:"pilots"`
	FlightAttendants int     `json:"flight_attendants"`
	FAPilotRatio     float64 `json:"fa_pilot_ratio"`
}

type CrewAlignment struct {
	BaseAnalysis map[string]BaseCrew `json:"base_analysis"`
}

type MROSummary struct {
	TotalWorkOrders int            `json:"total_work_orders"`
	ByType          map[string]int `json:"by_type"`
	ByStatus        map[string]int `json:"by_status"`
	AvgDowntime     *float64       `json:"avg_downtime"`
}

type ScheduledMaintenance struct {
	WorkOrderID     string  `json:"work_order_id"`
	Aircraft        string  `json:"aircraft_registration"`
	MaintenanceType string  `json:"maintenance_type"`
	Status          string  `json:"status"`
	StartDate       string  `json:"scheduled_start_date"`
	DowntimeDays    float64 `json:"downtime_days"`
}

type MROEvent struct {
	Aircraft        string  `json:"aircraft"`
	Base            string  `json:"base"`
	MaintenanceType string  `json:"maintenance_type"`
	StartDate       string  `json:"start_date"`
	DowntimeDays    float64 `json:"downtime_days"`
}

// ImpactSeverity is the MRO network impact level.
type ImpactSeverity string

const (
	ImpactHigh   ImpactSeverity = "high"
	ImpactMedium ImpactSeverity = "medium"
	ImpactLow    ImpactSeverity = "low"
)

func (s ImpactSeverity) Valid() bool {
	return s == ImpactHigh || s == ImpactMedium || s == ImpactLow
}

type MROImpactItem struct {
	Base     string         `json:"base"`
	Aircraft string         `json:"aircraft"`
	Impact   string         `json:"impact"`
	Severity ImpactSeverity `json:"severity"`
}

type MROImpact struct {
	UpcomingEvents []MROEvent      `json:"upcoming_events"`
	NetworkImpact  []MROImpactItem `json:"network_impact"`
}

type OptimizerStatus struct {
	Status        string   `json:"status"`
	Objective     string   `json:"objective"`
	LastRun       string   `json:"last_run"`
	ProjectedRASM *float64 `json:"projected_rasm"`
	Summary       string   `json:"summary"`
}

// ActualOutcome is a realized impact reported for an executed decision.
type ActualOutcome struct {
	DecisionID    string  `json:"decision_id"`
	RevenueImpact float64 `json:"revenue_impact"`
	RASMImpact    float64 `json:"rasm_impact"`
}

// Snapshot is one aggregated fetch across every domain. Missing feeds hold zero values.
type Snapshot struct {
	Epoch                uint64
	FetchedAt            time.Time
	Markets              []Market
	Equipment            []EquipmentRecommendation
	Insights             []Insight
	NetworkStats         *NetworkStats
	NetworkPosition      *NetworkPosition
	Hubs                 map[string]Hub
	Fleet                *FleetSummary
	MaintenanceDue       []MaintenanceDue
	FleetAlignment       *FleetAlignment
	Crew                 *CrewSummary
	TrainingDue          []TrainingDue
	CrewAlignment        *CrewAlignment
	MRO                  *MROSummary
	ScheduledMaintenance []ScheduledMaintenance
	MROImpact            *MROImpact
	Optimizer            *OptimizerStatus
	Outcomes             []ActualOutcome
	Health               []domain.DataHealthStatus
}

// Available reports whether a feed delivered data. Feeds without a health entry count as available.
func (s *Snapshot) Available(feed string) bool {
	for _, h := range s.Health {
		if h.FeedName == feed {
			return h.Status != domain.FeedDisconnected
		}
	}
	return true
}

// LoadFactor returns the network average load factor or the fallback.
func (s *Snapshot) LoadFactor(fallback float64) float64 {
	if s.NetworkStats != nil && s.NetworkStats.AvgLoadFactor != nil {
		lf := *s.NetworkStats.AvgLoadFactor
		if lf > 1 {
			lf = lf / 100
		}
		if lf > 0 && lf <= 1 {
			return lf
		}
	}
	return fallback
}
