package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"controlroom/internal/config"
	"controlroom/internal/db"
	"controlroom/internal/domain"
	"controlroom/internal/engine"
	"controlroom/internal/migrate"
	"controlroom/internal/pipeline"
	"controlroom/internal/repo"
	"controlroom/internal/snapshot"
)

var t0 = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	now    *time.Time
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	now := t0
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return now }
	return testEnv{Engine: eng, Ctx: context.Background(), now: &now}
}

func (env testEnv) advance(d time.Duration) { *env.now = env.now.Add(d) }

func fixture(id string, revenue, rasm float64, blocking bool) domain.Decision {
	sev, prio := domain.SeverityOK, domain.PriorityHigh
	if blocking {
		sev, prio = domain.SeverityBlocking, domain.PriorityCritical
	}
	return domain.Decision{
		ID:            id,
		RuleName:      "upgauge",
		RouteKey:      "FLL-" + id,
		Title:         "Upgauge " + id,
		Category:      domain.CategoryUpgauge,
		Priority:      prio,
		Status:        domain.StatusProposed,
		RevenueImpact: revenue,
		RASMImpact:    rasm,
		Constraints: []domain.Constraint{
			{Domain: domain.DomainCrew, Severity: sev, Binding: blocking, Description: "crew"},
		},
		Confidence: domain.ConfidenceMedium,
		Risks:      []string{},
	}
}

func apply(t *testing.T, env testEnv, epoch uint64, ds []domain.Decision, alerts []domain.Alert) engine.ApplyReport {
	t.Helper()
	rep, err := env.Engine.Apply(env.Ctx, pipeline.Result{Epoch: epoch, Decisions: ds, Alerts: alerts, BaselineRASM: 10})
	if err != nil {
		t.Fatalf("apply epoch %d: %v", epoch, err)
	}
	return rep
}

func TestLifecycleHappyPath(t *testing.T) {
	env := newTestEnv(t)
	apply(t, env, 1, []domain.Decision{fixture("a", 1000, 0.4, false)}, nil)

	d, err := env.Engine.Simulate(env.Ctx, "a", "planner-1", 1)
	if err != nil || d.Status != domain.StatusSimulated {
		t.Fatalf("simulate: %v", err)
	}
	if d, err = env.Engine.Approve(env.Ctx, "a", "approver-1", d.Version); err != nil || d.Status != domain.StatusApproved {
		t.Fatalf("approve: %v", err)
	}
	if d, err = env.Engine.Execute(env.Ctx, "a", "approver-1", d.Version); err != nil || d.Status != domain.StatusExecuting {
		t.Fatalf("execute: %v", err)
	}
	if d, err = env.Engine.Complete(env.Ctx, "a", "approver-1", d.Version); err != nil || d.Status != domain.StatusCompleted {
		t.Fatalf("complete: %v", err)
	}
	if d.Version != 5 {
		t.Fatalf("expected version 5, got %d", d.Version)
	}

	entries, err := env.Engine.Log(env.Ctx, repo.LogFilters{DecisionID: "a"})
	if err != nil {
		t.Fatal(err)
	}
	want := []domain.LogType{domain.LogExecuted, domain.LogExecuted, domain.LogApproved, domain.LogSimulated, domain.LogProposed}
	if len(entries) != len(want) {
		t.Fatalf("expected %d log entries, got %d", len(want), len(entries))
	}
	for i, e := range entries {
		if e.Type != want[i] {
			t.Fatalf("entry %d: expected %s, got %s", i, want[i], e.Type)
		}
		if e.RevenueImpact == nil || *e.RevenueImpact != 1000 {
			t.Fatalf("entry %d missing revenue snapshot", i)
		}
	}

	// Only the first realization nudges the adjustment.
	sum, err := env.Engine.Summary(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.RASMAdjustment != 0.2 || sum.NetworkRASM != 10.2 || sum.PendingCount != 0 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	outs, err := env.Engine.Outcomes(env.Ctx, domain.OutcomeTracking)
	if err != nil || len(outs) != 1 || outs[0].Predicted.RevenueImpact != 1000 {
		t.Fatalf("expected one tracking outcome, got %+v (%v)", outs, err)
	}
}

func TestApproveRefusesBlocking(t *testing.T) {
	env := newTestEnv(t)
	apply(t, env, 1, []domain.Decision{fixture("blocked", 500, 0.1, true)}, nil)

	_, err := env.Engine.Approve(env.Ctx, "blocked", "approver-1", 0)
	if !errors.Is(err, engine.ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
	var be engine.BlockedError
	if !errors.As(err, &be) || len(be.Domains) != 1 || be.Domains[0] != domain.DomainCrew {
		t.Fatalf("expected crew blocking domain, got %v", err)
	}
	d, err := env.Engine.GetDecision(env.Ctx, "blocked")
	if err != nil || d.Status != domain.StatusProposed || d.Version != 1 {
		t.Fatalf("decision should be untouched: %+v %v", d, err)
	}
	// Reject stays available.
	if _, err := env.Engine.Reject(env.Ctx, "blocked", "approver-1", 0, "crew shortfall"); err != nil {
		t.Fatalf("reject: %v", err)
	}
}

func TestInvalidTransitions(t *testing.T) {
	env := newTestEnv(t)
	apply(t, env, 1, []domain.Decision{fixture("a", 100, 0.1, false), fixture("b", 100, 0.1, false)}, nil)

	_, err := env.Engine.Execute(env.Ctx, "a", "x", 0)
	var te engine.TransitionError
	if !errors.As(err, &te) || te.From != domain.StatusProposed || te.To != domain.StatusExecuting {
		t.Fatalf("expected proposed -> executing transition error, got %v", err)
	}
	if !errors.Is(err, engine.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition")
	}

	if _, err := env.Engine.Reject(env.Ctx, "b", "x", 0, ""); err != nil {
		t.Fatalf("reject: %v", err)
	}
	for name, fn := range map[string]func() error{
		"simulate": func() error { _, err := env.Engine.Simulate(env.Ctx, "b", "x", 0); return err },
		"approve":  func() error { _, err := env.Engine.Approve(env.Ctx, "b", "x", 0); return err },
		"rollback": func() error { _, err := env.Engine.RollBack(env.Ctx, "b", "x", 0, ""); return err },
	} {
		if err := fn(); !errors.Is(err, engine.ErrInvalidTransition) {
			t.Fatalf("%s after reject: expected transition error, got %v", name, err)
		}
	}

	if _, err := env.Engine.Simulate(env.Ctx, "missing", "x", 0); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVersionConflict(t *testing.T) {
	env := newTestEnv(t)
	apply(t, env, 1, []domain.Decision{fixture("a", 100, 0.1, false)}, nil)
	if _, err := env.Engine.Simulate(env.Ctx, "a", "x", 1); err != nil {
		t.Fatal(err)
	}
	// A second client still holding version 1.
	if _, err := env.Engine.Approve(env.Ctx, "a", "y", 1); !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestApplyUpsertsByID(t *testing.T) {
	env := newTestEnv(t)
	rep := apply(t, env, 1, []domain.Decision{fixture("a", 100, 0.1, false), fixture("b", 200, 0.1, false), fixture("c", 300, 0.1, false)}, nil)
	if rep.Inserted != 3 {
		t.Fatalf("expected 3 inserted, got %+v", rep)
	}
	if _, err := env.Engine.Simulate(env.Ctx, "a", "x", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Approve(env.Ctx, "c", "x", 0); err != nil {
		t.Fatal(err)
	}

	// Unchanged evidence keeps progress.
	rep = apply(t, env, 2, []domain.Decision{fixture("a", 100, 0.1, false), fixture("b", 200, 0.1, false), fixture("c", 300, 0.1, false)}, nil)
	if rep.Unchanged != 2 || rep.Retained != 1 || rep.Inserted != 0 {
		t.Fatalf("unexpected report %+v", rep)
	}
	a, _ := env.Engine.GetDecision(env.Ctx, "a")
	if a.Status != domain.StatusSimulated {
		t.Fatalf("expected simulated to survive, got %s", a.Status)
	}

	// Changed evidence resets the simulation; b disappears; c is approved and stays.
	rep = apply(t, env, 3, []domain.Decision{fixture("a", 150, 0.1, false)}, nil)
	if rep.Updated != 1 || rep.Removed != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
	a, _ = env.Engine.GetDecision(env.Ctx, "a")
	if a.Status != domain.StatusProposed || a.RevenueImpact != 150 || a.Version != 3 {
		t.Fatalf("expected reset to proposed with new evidence, got %+v", a)
	}
	if _, err := env.Engine.GetDecision(env.Ctx, "b"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected b removed, got %v", err)
	}
	c, err := env.Engine.GetDecision(env.Ctx, "c")
	if err != nil || c.Status != domain.StatusApproved || c.RevenueImpact != 300 {
		t.Fatalf("approved decision must be retained untouched: %+v %v", c, err)
	}
	entries, _ := env.Engine.Log(env.Ctx, repo.LogFilters{DecisionID: "a", Limit: 1})
	if len(entries) != 1 || entries[0].Type != domain.LogProposed || entries[0].Note == "" {
		t.Fatalf("expected reset log entry, got %+v", entries)
	}
}

func TestApplyRefusesStaleEpoch(t *testing.T) {
	env := newTestEnv(t)
	apply(t, env, 5, []domain.Decision{fixture("a", 100, 0.1, false)}, nil)
	_, err := env.Engine.Apply(env.Ctx, pipeline.Result{Epoch: 4})
	if !errors.Is(err, engine.ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if _, err := env.Engine.GetDecision(env.Ctx, "a"); err != nil {
		t.Fatalf("stale pass must not remove decisions: %v", err)
	}
	if epoch, _ := env.Engine.LastEpoch(env.Ctx); epoch != 5 {
		t.Fatalf("expected epoch 5, got %d", epoch)
	}
}

func critical(id, decisionID, desc string) domain.Alert {
	a := domain.Alert{
		ID:                id,
		Severity:          domain.AlertCritical,
		Title:             "Blocked",
		Description:       desc,
		LinkedDecisionIDs: []string{decisionID},
		CreatedAt:         t0.Format(time.RFC3339),
		Action:            &domain.AlertAction{Label: "Open", Type: domain.ActionOpenDecision},
	}
	a.Fingerprint = a.ComputeFingerprint()
	return a
}

func TestAlertAcknowledgementSurvivesRefresh(t *testing.T) {
	env := newTestEnv(t)
	ds := []domain.Decision{fixture("blocked", 500, 0.1, true)}
	apply(t, env, 1, ds, []domain.Alert{critical("alert-blocked-1", "blocked", "crew short")})

	if _, err := env.Engine.ActOnAlert(env.Ctx, "alert-blocked-1", domain.ActionDismiss, "x"); !errors.Is(err, engine.ErrNotAcknowledged) {
		t.Fatalf("expected ErrNotAcknowledged, got %v", err)
	}
	if _, err := env.Engine.AcknowledgeAlert(env.Ctx, "alert-blocked-1", "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AcknowledgeAlert(env.Ctx, "alert-blocked-1", "x"); err != nil {
		t.Fatalf("second ack should be a no-op: %v", err)
	}

	apply(t, env, 2, ds, []domain.Alert{critical("alert-blocked-1", "blocked", "crew short")})
	a, err := env.Engine.GetAlert(env.Ctx, "alert-blocked-1")
	if err != nil || !a.Acknowledged {
		t.Fatalf("ack must survive an unchanged refresh: %+v %v", a, err)
	}

	res, err := env.Engine.ActOnAlert(env.Ctx, "alert-blocked-1", domain.ActionOpenDecision, "x")
	if err != nil || len(res.Decisions) != 1 || res.Decisions[0].ID != "blocked" {
		t.Fatalf("open_decision: %+v %v", res, err)
	}
	if _, err := env.Engine.ActOnAlert(env.Ctx, "alert-blocked-1", domain.ActionDismiss, "x"); err != nil {
		t.Fatalf("dismiss after ack: %v", err)
	}
	listed, _ := env.Engine.ListAlerts(env.Ctx, repo.AlertFilters{})
	if len(listed) != 0 {
		t.Fatalf("dismissed alert should be hidden, got %d", len(listed))
	}

	apply(t, env, 3, ds, []domain.Alert{critical("alert-blocked-1", "blocked", "crew short at two bases")})
	a, _ = env.Engine.GetAlert(env.Ctx, "alert-blocked-1")
	if a.Acknowledged || a.Dismissed {
		t.Fatalf("changed alert must reset acknowledgement: %+v", a)
	}

	apply(t, env, 4, ds, nil)
	if _, err := env.Engine.GetAlert(env.Ctx, "alert-blocked-1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("alert absent from the pass should be removed, got %v", err)
	}
}

func TestDismissalGateIsPerAlert(t *testing.T) {
	env := newTestEnv(t)
	ds := []domain.Decision{fixture("a", 500, 0.1, true), fixture("b", 500, 0.1, true)}
	apply(t, env, 1, ds, []domain.Alert{critical("alert-blocked-a", "a", "crew short"), critical("alert-blocked-b", "b", "fleet short")})

	if _, err := env.Engine.AcknowledgeAlert(env.Ctx, "alert-blocked-b", "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.ActOnAlert(env.Ctx, "alert-blocked-b", domain.ActionDismiss, "x"); err != nil {
		t.Fatalf("acknowledged alert must dismiss while another is pending: %v", err)
	}
	if _, err := env.Engine.ActOnAlert(env.Ctx, "alert-blocked-a", domain.ActionDismiss, "x"); !errors.Is(err, engine.ErrNotAcknowledged) {
		t.Fatalf("expected ErrNotAcknowledged, got %v", err)
	}
}

func TestActOnAlertMovesLinkedDecisions(t *testing.T) {
	env := newTestEnv(t)
	warn := domain.Alert{
		ID:                "alert-frequency-reduction",
		Severity:          domain.AlertWarning,
		Title:             "Trim",
		LinkedDecisionIDs: []string{"a", "b"},
	}
	apply(t, env, 1, []domain.Decision{fixture("a", -100, 0.2, false), fixture("b", -200, 0.3, false)}, []domain.Alert{warn})

	res, err := env.Engine.ActOnAlert(env.Ctx, "alert-frequency-reduction", domain.ActionApprove, "approver-1")
	if err != nil {
		t.Fatalf("approve via alert: %v", err)
	}
	if len(res.Decisions) != 2 || !res.Alert.Acknowledged {
		t.Fatalf("unexpected result %+v", res)
	}
	for _, id := range []string{"a", "b"} {
		d, _ := env.Engine.GetDecision(env.Ctx, id)
		if d.Status != domain.StatusApproved {
			t.Fatalf("%s: expected approved, got %s", id, d.Status)
		}
	}

	if _, err := env.Engine.ActOnAlert(env.Ctx, "alert-frequency-reduction", "launch", "x"); !errors.Is(err, domain.ErrUnknownValue) {
		t.Fatalf("expected unknown action error, got %v", err)
	}
	res, err = env.Engine.ActOnAlert(env.Ctx, "alert-frequency-reduction", domain.ActionRefreshFeed, "x")
	if err != nil || !res.RefreshRequested {
		t.Fatalf("refresh_feed should request a refresh: %+v %v", res, err)
	}
}

func TestActOnAlertIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	warn := domain.Alert{ID: "alert-mixed", Severity: domain.AlertWarning, Title: "Mixed", LinkedDecisionIDs: []string{"ok", "blocked"}}
	apply(t, env, 1, []domain.Decision{fixture("ok", 100, 0.1, false), fixture("blocked", 100, 0.1, true)}, []domain.Alert{warn})

	if _, err := env.Engine.ActOnAlert(env.Ctx, "alert-mixed", domain.ActionApprove, "x"); !errors.Is(err, engine.ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
	d, _ := env.Engine.GetDecision(env.Ctx, "ok")
	if d.Status != domain.StatusProposed {
		t.Fatalf("no linked decision may move when one fails, got %s", d.Status)
	}
}

func TestOutcomeValidatesCompletedDecision(t *testing.T) {
	env := newTestEnv(t)
	apply(t, env, 1, []domain.Decision{fixture("a", 1000, 0.4, false), fixture("b", 1000, 0.4, false)}, nil)
	for _, id := range []string{"a", "b"} {
		if _, err := env.Engine.Approve(env.Ctx, id, "x", 0); err != nil {
			t.Fatal(err)
		}
		if _, err := env.Engine.Complete(env.Ctx, id, "x", 0); err != nil {
			t.Fatal(err)
		}
	}

	// Inside the tracking period the actual is kept but nothing settles.
	env.advance(10 * 24 * time.Hour)
	o, err := env.Engine.RecordActual(env.Ctx, "a", domain.Impact{RevenueImpact: 1100, RASMImpact: 0.4}, "analyst")
	if err != nil || o.Status != domain.OutcomeTracking || o.Actual == nil {
		t.Fatalf("expected tracking with actual, got %+v %v", o, err)
	}

	env.advance(25 * 24 * time.Hour)
	settled, err := env.Engine.Reconcile(env.Ctx, []snapshot.ActualOutcome{{DecisionID: "b", RevenueImpact: 700, RASMImpact: 0.2}})
	if err != nil || settled != 2 {
		t.Fatalf("expected 2 settled, got %d %v", settled, err)
	}

	a, _ := env.Engine.GetDecision(env.Ctx, "a")
	b, _ := env.Engine.GetDecision(env.Ctx, "b")
	if a.Status != domain.StatusValidated || b.Status != domain.StatusValidated {
		t.Fatalf("expected both validated, got %s %s", a.Status, b.Status)
	}
	entries, _ := env.Engine.Log(env.Ctx, repo.LogFilters{DecisionID: "b", Limit: 1})
	if len(entries) != 1 || entries[0].ValidationStatus == nil || *entries[0].ValidationStatus != domain.ValidationUnderperformed {
		t.Fatalf("expected underperformed validation entry, got %+v", entries)
	}

	score, ok, err := env.Engine.Accuracy(env.Ctx)
	if err != nil || !ok || score != 80 {
		t.Fatalf("expected accuracy 80, got %v %v %v", score, ok, err)
	}
	if _, err := env.Engine.RecordActual(env.Ctx, "a", domain.Impact{}, "x"); !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("settled outcome must not be re-recorded, got %v", err)
	}
}

func TestOutcomeWaitsForCompletion(t *testing.T) {
	env := newTestEnv(t)
	apply(t, env, 1, []domain.Decision{fixture("a", 1000, 0.4, false)}, nil)
	if _, err := env.Engine.Approve(env.Ctx, "a", "x", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Execute(env.Ctx, "a", "x", 0); err != nil {
		t.Fatal(err)
	}

	env.advance(31 * 24 * time.Hour)
	settled, err := env.Engine.Reconcile(env.Ctx, []snapshot.ActualOutcome{{DecisionID: "a", RevenueImpact: 1050, RASMImpact: 0.4}})
	if err != nil || settled != 0 {
		t.Fatalf("executing decision must not settle, got %d %v", settled, err)
	}
	outs, _ := env.Engine.Outcomes(env.Ctx, domain.OutcomeTracking)
	if len(outs) != 1 || outs[0].Actual == nil || outs[0].Actual.RevenueImpact != 1050 {
		t.Fatalf("expected actual kept on tracking outcome, got %+v", outs)
	}

	if _, err := env.Engine.Complete(env.Ctx, "a", "x", 0); err != nil {
		t.Fatalf("complete: %v", err)
	}
	settled, err = env.Engine.Reconcile(env.Ctx, nil)
	if err != nil || settled != 1 {
		t.Fatalf("expected the completed decision to settle, got %d %v", settled, err)
	}
	d, _ := env.Engine.GetDecision(env.Ctx, "a")
	if d.Status != domain.StatusValidated {
		t.Fatalf("expected validated, got %s", d.Status)
	}
	entries, _ := env.Engine.Log(env.Ctx, repo.LogFilters{DecisionID: "a", Limit: 1})
	if len(entries) != 1 || entries[0].ValidationStatus == nil || *entries[0].ValidationStatus != domain.ValidationSuccess {
		t.Fatalf("expected success validation entry, got %+v", entries)
	}
}

func TestRollBackReversesRealization(t *testing.T) {
	env := newTestEnv(t)
	apply(t, env, 1, []domain.Decision{fixture("a", 1000, 0.4, false)}, nil)
	if _, err := env.Engine.Approve(env.Ctx, "a", "x", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Execute(env.Ctx, "a", "x", 0); err != nil {
		t.Fatal(err)
	}
	d, err := env.Engine.RollBack(env.Ctx, "a", "x", 0, "bad weather")
	if err != nil || d.Status != domain.StatusRolledBack {
		t.Fatalf("rollback: %v", err)
	}
	sum, _ := env.Engine.Summary(env.Ctx)
	if sum.RASMAdjustment != 0 {
		t.Fatalf("expected adjustment reversed, got %v", sum.RASMAdjustment)
	}
	outs, _ := env.Engine.Outcomes(env.Ctx, "")
	if len(outs) != 0 {
		t.Fatalf("expected tracking closed, got %d", len(outs))
	}
	entries, _ := env.Engine.Log(env.Ctx, repo.LogFilters{DecisionID: "a", Limit: 1})
	if entries[0].Type != domain.LogReverted || entries[0].Note != "bad weather" {
		t.Fatalf("unexpected rollback entry %+v", entries[0])
	}
}

func TestSummaryAndConstraintStatus(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Apply(env.Ctx, pipeline.Result{
		Epoch:        1,
		Decisions:    []domain.Decision{fixture("a", 1000, 0.2, false), fixture("b", 500, 0.4, true), fixture("c", 250, 0.6, false)},
		BaselineRASM: 11.5,
		Health: []domain.DataHealthStatus{
			snapshot.Healthy(snapshot.FeedCrewAlignment, t0, t0, 0, snapshot.DefaultThresholds),
			snapshot.Disconnected(snapshot.FeedMROImpact, errors.New("timeout")),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Reject(env.Ctx, "c", "x", 0, ""); err != nil {
		t.Fatal(err)
	}
	sum, err := env.Engine.Summary(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.PendingCount != 2 || sum.PendingRevenue != 1500 || sum.AvgPendingRASM != 0.3 || sum.BaselineRASM != 11.5 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	env.advance(2 * time.Minute)
	feeds, err := env.Engine.Feeds(env.Ctx)
	if err != nil || len(feeds) != 2 || feeds[0].Status != domain.FeedAging || feeds[1].Status != domain.FeedDisconnected {
		t.Fatalf("unexpected feeds %+v %v", feeds, err)
	}
	status, err := env.Engine.ConstraintStatus(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range status {
		switch s.Domain {
		case domain.DomainCrew:
			if s.Severity != domain.SeverityBlocking || s.BlockingCount != 1 {
				t.Fatalf("crew: %+v", s)
			}
		case domain.DomainMRO:
			if s.FeedStatus != domain.FeedDisconnected {
				t.Fatalf("mro: %+v", s)
			}
		}
	}
}
