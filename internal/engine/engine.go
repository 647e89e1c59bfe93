package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"controlroom/internal/config"
	"controlroom/internal/domain"
	"controlroom/internal/events"
	"controlroom/internal/metrics"
	"controlroom/internal/rasm"
	"controlroom/internal/repo"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrBlocked           = errors.New("blocking constraint unresolved")
	ErrConflict          = errors.New("version conflict")
	ErrNotAcknowledged   = errors.New("alert not acknowledged")
	ErrStale             = errors.New("stale refresh epoch")
)

// TransitionError is returned for a status change outside the lifecycle graph.
type TransitionError struct {
	From domain.Status
	To   domain.Status
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("invalid decision transition %s -> %s", e.From, e.To)
}

func (e TransitionError) Unwrap() error { return ErrInvalidTransition }

// BlockedError is returned when approving a decision with a blocking constraint.
type BlockedError struct {
	DecisionID string
	Domains    []domain.ConstraintDomain
}

func (e BlockedError) Error() string {
	names := make([]string, len(e.Domains))
	for i, d := range e.Domains {
		names[i] = string(d)
	}
	return fmt.Sprintf("decision %s has blocking %s constraint", e.DecisionID, strings.Join(names, ", "))
}

func (e BlockedError) Unwrap() error { return ErrBlocked }

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Logger *slog.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Logger: slog.Default(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func ensureTransition(from, to domain.Status) error {
	allowed := false
	switch to {
	case domain.StatusSimulated:
		allowed = from == domain.StatusProposed
	case domain.StatusApproved, domain.StatusRejected:
		allowed = from.Pending()
	case domain.StatusExecuting:
		allowed = from == domain.StatusApproved
	case domain.StatusCompleted:
		allowed = from == domain.StatusApproved || from == domain.StatusExecuting
	case domain.StatusValidated:
		allowed = from == domain.StatusCompleted
	case domain.StatusRolledBack:
		allowed = !from.Terminal()
	}
	if !allowed {
		return TransitionError{From: from, To: to}
	}
	return nil
}

// TransitionOptions describe one lifecycle action.
type TransitionOptions struct {
	DecisionID string
	To         domain.Status
	ActorID    string
	// Version is the version the caller last read; 0 skips the check.
	Version int64
	Note    string

	validation *domain.ValidationStatus
}

// Transition moves a decision along the lifecycle graph and appends one log entry carrying
// the impact at this instant.
func (e Engine) Transition(ctx context.Context, opts TransitionOptions) (domain.Decision, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Decision{}, err
	}
	defer tx.Rollback()

	d, from, err := e.transitionTx(ctx, tx, opts)
	if err != nil {
		return domain.Decision{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Decision{}, err
	}
	e.observe(d, from, opts.ActorID)
	return d, nil
}

func (e Engine) Simulate(ctx context.Context, id, actorID string, version int64) (domain.Decision, error) {
	return e.Transition(ctx, TransitionOptions{DecisionID: id, To: domain.StatusSimulated, ActorID: actorID, Version: version})
}

// Approve refuses decisions with any blocking constraint.
func (e Engine) Approve(ctx context.Context, id, actorID string, version int64) (domain.Decision, error) {
	return e.Transition(ctx, TransitionOptions{DecisionID: id, To: domain.StatusApproved, ActorID: actorID, Version: version})
}

func (e Engine) Reject(ctx context.Context, id, actorID string, version int64, note string) (domain.Decision, error) {
	return e.Transition(ctx, TransitionOptions{DecisionID: id, To: domain.StatusRejected, ActorID: actorID, Version: version, Note: note})
}

func (e Engine) Execute(ctx context.Context, id, actorID string, version int64) (domain.Decision, error) {
	return e.Transition(ctx, TransitionOptions{DecisionID: id, To: domain.StatusExecuting, ActorID: actorID, Version: version})
}

func (e Engine) Complete(ctx context.Context, id, actorID string, version int64) (domain.Decision, error) {
	return e.Transition(ctx, TransitionOptions{DecisionID: id, To: domain.StatusCompleted, ActorID: actorID, Version: version})
}

func (e Engine) RollBack(ctx context.Context, id, actorID string, version int64, note string) (domain.Decision, error) {
	return e.Transition(ctx, TransitionOptions{DecisionID: id, To: domain.StatusRolledBack, ActorID: actorID, Version: version, Note: note})
}

func (e Engine) transitionTx(ctx context.Context, tx *sql.Tx, opts TransitionOptions) (domain.Decision, domain.Status, error) {
	if !opts.To.Valid() {
		return domain.Decision{}, "", fmt.Errorf("status %q: %w", opts.To, domain.ErrUnknownValue)
	}
	d, err := e.Repo.GetDecision(ctx, tx, opts.DecisionID)
	if err != nil {
		return d, "", err
	}
	if opts.Version > 0 && d.Version != opts.Version {
		return d, "", fmt.Errorf("decision %s is at version %d, not %d: %w", d.ID, d.Version, opts.Version, ErrConflict)
	}
	from := d.Status
	if err := ensureTransition(from, opts.To); err != nil {
		return d, "", err
	}
	if opts.To == domain.StatusApproved && d.HasBlocking() {
		return d, "", BlockedError{DecisionID: d.ID, Domains: d.BlockingDomains()}
	}

	now := e.stamp()
	prev := d.Version
	d.Status = opts.To
	d.Version++
	d.UpdatedAt = now
	if err := e.Repo.UpdateDecision(ctx, tx, d, prev); err != nil {
		if errors.Is(err, repo.ErrVersionMismatch) {
			return d, "", fmt.Errorf("decision %s: %w", d.ID, ErrConflict)
		}
		return d, "", err
	}

	entry := events.ForDecision(d, domain.LogTypeFor(opts.To), opts.ActorID, opts.Note)
	entry.Timestamp = now
	entry.ValidationStatus = opts.validation
	if _, err := e.Events.Append(ctx, tx, entry); err != nil {
		return d, "", err
	}

	switch {
	case from == domain.StatusApproved && (opts.To == domain.StatusExecuting || opts.To == domain.StatusCompleted):
		if err := e.realize(ctx, tx, d, now); err != nil {
			return d, "", err
		}
	case opts.To == domain.StatusRolledBack && (from == domain.StatusExecuting || from == domain.StatusCompleted):
		if err := e.unrealize(ctx, tx, d); err != nil {
			return d, "", err
		}
	}
	return d, from, nil
}

// realize nudges the network RASM adjustment by the realized share of the decision's RASM
// impact and opens outcome tracking. It runs once, when a decision leaves approved.
func (e Engine) realize(ctx context.Context, tx *sql.Tx, d domain.Decision, now string) error {
	st, err := e.Repo.GetNetworkState(ctx, tx)
	if err != nil {
		return fmt.Errorf("read network state: %w", err)
	}
	adj := rasm.Nudge(st.RASMAdjustment, d.RASMImpact, e.Config.Lifecycle.RASMRealization)
	if err := e.Repo.SetRASMAdjustment(ctx, tx, adj); err != nil {
		return err
	}
	_, err = e.Repo.InsertOutcome(ctx, tx, domain.TrackedOutcome{
		DecisionID:         d.ID,
		DecisionTitle:      d.Title,
		ExecutedAt:         now,
		TrackingPeriodDays: e.Config.Outcomes.TrackingPeriodDays,
		Predicted:          domain.Impact{RevenueImpact: d.RevenueImpact, RASMImpact: d.RASMImpact},
		Status:             domain.OutcomeTracking,
	}, now)
	return err
}

// unrealize reverses realize for a rolled back decision.
func (e Engine) unrealize(ctx context.Context, tx *sql.Tx, d domain.Decision) error {
	st, err := e.Repo.GetNetworkState(ctx, tx)
	if err != nil {
		return fmt.Errorf("read network state: %w", err)
	}
	adj := rasm.Nudge(st.RASMAdjustment, -d.RASMImpact, e.Config.Lifecycle.RASMRealization)
	if err := e.Repo.SetRASMAdjustment(ctx, tx, adj); err != nil {
		return err
	}
	if err := e.Repo.DeleteOutcome(ctx, tx, d.ID); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	return nil
}

func (e Engine) observe(d domain.Decision, from domain.Status, actorID string) {
	metrics.Transitions.WithLabelValues(string(d.Status)).Inc()
	e.logger().Info("decision transition",
		slog.String("decision", d.ID),
		slog.String("from", string(from)),
		slog.String("to", string(d.Status)),
		slog.String("actor", actorID))
}
