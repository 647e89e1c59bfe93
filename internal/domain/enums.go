package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownValue is returned when a string does not belong to a closed enum.
var ErrUnknownValue = errors.New("unknown value")

func unknown(kind, v string) error {
	return fmt.Errorf("%s %q: %w", kind, v, ErrUnknownValue)
}

type Category string

const (
	CategoryCapacityReallocation Category = "capacity_reallocation"
	CategoryFrequencyReduction   Category = "frequency_reduction"
	CategoryDowngauge            Category = "downgauge"
	CategoryUpgauge              Category = "upgauge"
	CategoryRetiming             Category = "retiming"
	CategoryMarketExit           Category = "market_exit"
	CategoryMarketEntry          Category = "market_entry"
	CategoryTailSwap             Category = "tail_swap"
	CategoryRMAction             Category = "rm_action"
	CategoryDoNotDo              Category = "do_not_do"
)

var categories = []Category{
	CategoryCapacityReallocation, CategoryFrequencyReduction, CategoryDowngauge, CategoryUpgauge,
	CategoryRetiming, CategoryMarketExit, CategoryMarketEntry, CategoryTailSwap, CategoryRMAction,
	CategoryDoNotDo,
}

func (c Category) Valid() bool {
	for _, v := range categories {
		if v == c {
			return true
		}
	}
	return false
}

func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", unknown("category", s)
	}
	return c, nil
}

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank orders priorities with critical first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.Valid() {
		return "", unknown("priority", s)
	}
	return p, nil
}

// Status is the decision lifecycle state.
type Status string

const (
	StatusProposed   Status = "proposed"
	StatusSimulated  Status = "simulated"
	StatusApproved   Status = "approved"
	StatusExecuting  Status = "executing"
	StatusCompleted  Status = "completed"
	StatusValidated  Status = "validated"
	StatusRejected   Status = "rejected"
	StatusRolledBack Status = "rolled_back"
)

func (s Status) Valid() bool {
	switch s {
	case StatusProposed, StatusSimulated, StatusApproved, StatusExecuting, StatusCompleted,
		StatusValidated, StatusRejected, StatusRolledBack:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusRolledBack || s == StatusValidated
}

// Pending reports whether the decision still awaits a user verdict.
func (s Status) Pending() bool {
	return s == StatusProposed || s == StatusSimulated
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", unknown("status", s)
	}
	return st, nil
}

type ConstraintDomain string

const (
	DomainNetwork    ConstraintDomain = "network"
	DomainFleet      ConstraintDomain = "fleet"
	DomainCrew       ConstraintDomain = "crew"
	DomainMRO        ConstraintDomain = "mro"
	DomainCommercial ConstraintDomain = "commercial"
)

// ConstraintDomains lists domains in summary order.
var ConstraintDomains = []ConstraintDomain{DomainNetwork, DomainFleet, DomainCrew, DomainMRO, DomainCommercial}

func (d ConstraintDomain) Valid() bool {
	for _, v := range ConstraintDomains {
		if v == d {
			return true
		}
	}
	return false
}

func ParseConstraintDomain(s string) (ConstraintDomain, error) {
	d := ConstraintDomain(s)
	if !d.Valid() {
		return "", unknown("constraint domain", s)
	}
	return d, nil
}

type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityBlocking Severity = "blocking"
)

func (s Severity) Valid() bool {
	return s == SeverityOK || s == SeverityWarning || s == SeverityBlocking
}

// Worse returns the more severe of s and o.
func (s Severity) Worse(o Severity) Severity {
	if severityRank(o) > severityRank(s) {
		return o
	}
	return s
}

func severityRank(s Severity) int {
	switch s {
	case SeverityBlocking:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

func ParseSeverity(s string) (Severity, error) {
	sv := Severity(s)
	if !sv.Valid() {
		return "", unknown("severity", s)
	}
	return sv, nil
}

type MROFeasibility string

const (
	MROFeasible     MROFeasibility = "feasible"
	MRORequiresSwap MROFeasibility = "requires_swap"
	MROInfeasible   MROFeasibility = "infeasible"
)

func (m MROFeasibility) Valid() bool {
	return m == MROFeasible || m == MRORequiresSwap || m == MROInfeasible
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func (c Confidence) Valid() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium || c == ConfidenceLow
}

type AlertSeverity string

const (
	AlertCritical AlertSeverity = "critical"
	AlertWarning  AlertSeverity = "warning"
	AlertInfo     AlertSeverity = "info"
)

func (a AlertSeverity) Valid() bool {
	return a == AlertCritical || a == AlertWarning || a == AlertInfo
}

func ParseAlertSeverity(s string) (AlertSeverity, error) {
	a := AlertSeverity(s)
	if !a.Valid() {
		return "", unknown("alert severity", s)
	}
	return a, nil
}

type AlertActionType string

const (
	ActionAcknowledge     AlertActionType = "acknowledge"
	ActionDismiss         AlertActionType = "dismiss"
	ActionOpenDecision    AlertActionType = "open_decision"
	ActionReviewDecisions AlertActionType = "review_decisions"
	ActionApprove         AlertActionType = "approve"
	ActionReject          AlertActionType = "reject"
	ActionSimulate        AlertActionType = "simulate"
	ActionRefreshFeed     AlertActionType = "refresh_feed"
)

func (a AlertActionType) Valid() bool {
	switch a {
	case ActionAcknowledge, ActionDismiss, ActionOpenDecision, ActionReviewDecisions,
		ActionApprove, ActionReject, ActionSimulate, ActionRefreshFeed:
		return true
	}
	return false
}

func ParseAlertActionType(s string) (AlertActionType, error) {
	a := AlertActionType(s)
	if !a.Valid() {
		return "", unknown("alert action", s)
	}
	return a, nil
}

// LogType is the kind of audit log entry written on a transition.
type LogType string

const (
	LogProposed  LogType = "proposed"
	LogSimulated LogType = "simulated"
	LogApproved  LogType = "approved"
	LogRejected  LogType = "rejected"
	LogExecuted  LogType = "executed"
	LogValidated LogType = "validated"
	LogReverted  LogType = "reverted"
)

func (l LogType) Valid() bool {
	switch l {
	case LogProposed, LogSimulated, LogApproved, LogRejected, LogExecuted, LogValidated, LogReverted:
		return true
	}
	return false
}

// LogTypeFor maps the status a decision enters to the log entry type.
func LogTypeFor(to Status) LogType {
	switch to {
	case StatusSimulated:
		return LogSimulated
	case StatusApproved:
		return LogApproved
	case StatusRejected:
		return LogRejected
	case StatusExecuting, StatusCompleted:
		return LogExecuted
	case StatusValidated:
		return LogValidated
	case StatusRolledBack:
		return LogReverted
	default:
		return LogProposed
	}
}

type ValidationStatus string

const (
	ValidationSuccess        ValidationStatus = "success"
	ValidationUnderperformed ValidationStatus = "underperformed"
	ValidationOverperformed  ValidationStatus = "overperformed"
)

type OutcomeStatus string

const (
	OutcomeTracking       OutcomeStatus = "tracking"
	OutcomeValidated      OutcomeStatus = "validated"
	OutcomeUnderperformed OutcomeStatus = "underperformed"
	OutcomeOutperformed   OutcomeStatus = "outperformed"
)

func (o OutcomeStatus) Valid() bool {
	switch o {
	case OutcomeTracking, OutcomeValidated, OutcomeUnderperformed, OutcomeOutperformed:
		return true
	}
	return false
}

// ValidationStatus maps a settled outcome to the log entry validation status.
func (o OutcomeStatus) ValidationStatus() ValidationStatus {
	switch o {
	case OutcomeUnderperformed:
		return ValidationUnderperformed
	case OutcomeOutperformed:
		return ValidationOverperformed
	default:
		return ValidationSuccess
	}
}

type FeedStatus string

const (
	FeedLive         FeedStatus = "live"
	FeedAging        FeedStatus = "aging"
	FeedStale        FeedStatus = "stale"
	FeedDisconnected FeedStatus = "disconnected"
)
