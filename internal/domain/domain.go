package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// BlockedMarker is appended to proposedState when a decision carries a blocking constraint.
const BlockedMarker = "[BLOCKED]"

type Consumption struct {
	AircraftHoursPerDay float64        `json:"aircraftHoursPerDay"`
	TailsRequired       int            `json:"tailsRequired"`
	CrewPairingsPerDay  int            `json:"crewPairingsPerDay"`
	MROFeasibility      MROFeasibility `json:"mroFeasibility" enum:"feasible,requires_swap,infeasible"`
}

type Conflicts struct {
	Displaces     []string `json:"displaces"`
	ConflictsWith []string `json:"conflictsWith"`
	RequiresPrior []string `json:"requiresPrior"`
}

type Constraint struct {
	Domain      ConstraintDomain `json:"domain" enum:"network,fleet,crew,mro,commercial"`
	Severity    Severity         `json:"severity" enum:"ok,warning,blocking"`
	Binding     bool             `json:"binding"`
	Description string           `json:"description"`
	Resolution  string           `json:"resolution,omitempty"`
	Impact      string           `json:"impact,omitempty"`
}

type Evidence struct {
	LoadFactor   *float64 `json:"load_factor,omitempty"`
	SpillRate    *float64 `json:"spill_rate,omitempty"`
	FareStrength *float64 `json:"fare_strength,omitempty"`
	Explanation  string   `json:"explanation"`
}

type Decision struct {
	ID            string       `json:"id"`
	RuleName      string       `json:"ruleName"`
	RouteKey      string       `json:"routeKey"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Category      Category     `json:"category"`
	Priority      Priority     `json:"priority" enum:"critical,high,medium,low"`
	Status        Status       `json:"status" enum:"proposed,simulated,approved,executing,completed,validated,rejected,rolled_back"`
	RevenueImpact float64      `json:"revenueImpact"`
	RASMImpact    float64      `json:"rasmImpact"`
	ASMDelta      *float64     `json:"asmDelta,omitempty"`
	CurrentState  string       `json:"currentState"`
	ProposedState string       `json:"proposedState"`
	Consumption   Consumption  `json:"consumption"`
	Conflicts     Conflicts    `json:"conflicts"`
	Constraints   []Constraint `json:"constraints"`
	Evidence      Evidence     `json:"evidence"`
	Confidence    Confidence   `json:"confidence" enum:"high,medium,low"`
	Risks         []string     `json:"risks"`
	Owner         string       `json:"owner,omitempty"`
	DueDate       *string      `json:"dueDate,omitempty" format:"date-time"`
	Version       int64        `json:"version"`
	GeneratedAt   string       `json:"generatedAt,omitempty" format:"date-time"`
	UpdatedAt     string       `json:"updatedAt,omitempty" format:"date-time"`
}

// HasBlocking reports whether any constraint is blocking.
func (d Decision) HasBlocking() bool {
	for _, c := range d.Constraints {
		if c.Severity == SeverityBlocking {
			return true
		}
	}
	return false
}

// BlockingDomains returns the domains of blocking constraints in constraint order.
func (d Decision) BlockingDomains() []ConstraintDomain {
	var out []ConstraintDomain
	for _, c := range d.Constraints {
		if c.Severity == SeverityBlocking {
			out = append(out, c.Domain)
		}
	}
	return out
}

// Fingerprint hashes the evidence that makes a decision materially different between passes.
// Impacts are rounded to cents so float noise does not count as a change.
func (d Decision) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%.2f|%.4f|%s", d.Category, d.RouteKey, d.RevenueImpact, d.RASMImpact, d.ProposedState)
	for _, c := range d.Constraints {
		fmt.Fprintf(&b, "|%s:%s:%t", c.Domain, c.Severity, c.Binding)
	}
	for _, id := range d.Conflicts.RequiresPrior {
		b.WriteString("|req:" + id)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

type AlertAction struct {
	Label string          `json:"label"`
	Type  AlertActionType `json:"type"`
}

type Alert struct {
	ID                  string        `json:"id"`
	Severity            AlertSeverity `json:"severity" enum:"critical,warning,info"`
	Title               string        `json:"title"`
	Description         string        `json:"description"`
	DollarLeakagePerDay *float64      `json:"dollarLeakagePerDay,omitempty"`
	Deadline            *string       `json:"deadline,omitempty" format:"date-time"`
	LinkedDecisionIDs   []string      `json:"linkedDecisionIds"`
	Acknowledged        bool          `json:"acknowledged"`
	Dismissed           bool          `json:"dismissed"`
	CreatedAt           string        `json:"createdAt" format:"date-time"`
	Action              *AlertAction  `json:"action,omitempty"`
	Fingerprint         string        `json:"-"`
}

// ComputeFingerprint hashes the alert fields that change its meaning.
func (a Alert) ComputeFingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s", a.Severity, a.Title, a.Description)
	for _, id := range a.LinkedDecisionIDs {
		b.WriteString("|" + id)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

type LogEntry struct {
	ID               string            `json:"id"`
	Seq              int64             `json:"seq"`
	DecisionID       string            `json:"decisionId"`
	DecisionTitle    string            `json:"decisionTitle"`
	Type             LogType           `json:"type" enum:"proposed,simulated,approved,rejected,executed,validated,reverted"`
	Timestamp        string            `json:"timestamp" format:"date-time"`
	Actor            string            `json:"actor"`
	RevenueImpact    *float64          `json:"revenueImpact,omitempty"`
	RASMImpact       *float64          `json:"rasmImpact,omitempty"`
	ValidationStatus *ValidationStatus `json:"validationStatus,omitempty"`
	Note             string            `json:"note,omitempty"`
}

type Impact struct {
	RevenueImpact float64 `json:"revenueImpact"`
	RASMImpact    float64 `json:"rasmImpact"`
}

type Variance struct {
	RevenuePct float64 `json:"revenuePct"`
	RASMPct    float64 `json:"rasmPct"`
}

type TrackedOutcome struct {
	DecisionID         string        `json:"decisionId"`
	DecisionTitle      string        `json:"decisionTitle"`
	ExecutedAt         string        `json:"executedAt" format:"date-time"`
	TrackingPeriodDays int           `json:"trackingPeriodDays"`
	Predicted          Impact        `json:"predicted"`
	Actual             *Impact       `json:"actual,omitempty"`
	Variance           *Variance     `json:"variance,omitempty"`
	Status             OutcomeStatus `json:"status" enum:"tracking,validated,underperformed,outperformed"`
}

type DataHealthStatus struct {
	FeedName         string     `json:"feedName"`
	LastUpdate       string     `json:"lastUpdate,omitempty" format:"date-time"`
	AgeSeconds       int64      `json:"ageSeconds"`
	Status           FeedStatus `json:"status" enum:"live,aging,stale,disconnected"`
	OutOfBoundsCount int        `json:"outOfBoundsCount"`
	ErrorMessage     string     `json:"errorMessage,omitempty"`
}

// Summary is the pending-decision aggregate plus the network RASM position.
type Summary struct {
	PendingCount   int     `json:"pendingCount"`
	PendingRevenue float64 `json:"pendingRevenue"`
	AvgPendingRASM float64 `json:"avgPendingRasm"`
	NetworkRASM    float64 `json:"networkRasm"`
	BaselineRASM   float64 `json:"baselineRasm"`
	RASMAdjustment float64 `json:"rasmAdjustment"`
}

type DomainStatus struct {
	Domain        ConstraintDomain `json:"domain"`
	Severity      Severity         `json:"severity" enum:"ok,warning,blocking"`
	BlockingCount int              `json:"blockingCount"`
	WarningCount  int              `json:"warningCount"`
	FeedStatus    FeedStatus       `json:"feedStatus,omitempty"`
	Headline      string           `json:"headline"`
}

// APIKey is a stored key record. Roles narrows the key to a subset of the
// actor's roles; empty means the key acts with all of them.
type APIKey struct {
	ID        string   `json:"id"`
	ActorID   string   `json:"actor_id"`
	Name      string   `json:"name,omitempty"`
	KeyHash   string   `json:"-"`
	Roles     []string `json:"roles,omitempty"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
