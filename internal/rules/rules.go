// Package rules is the decision generator: a table of independent heuristics evaluated over one
// snapshot and its constraint facts.
package rules

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"controlroom/internal/config"
	"controlroom/internal/constraints"
	"controlroom/internal/domain"
	"controlroom/internal/snapshot"
)

// Input is everything a rule may read. Rules never mutate it.
type Input struct {
	Snapshot *snapshot.Snapshot
	Facts    constraints.Facts
	Policy   *config.Config
	Now      time.Time

	rows map[string]int
}

// Row returns the table index of the named rule, or -1.
func (in *Input) Row(name string) int {
	if i, ok := in.rows[name]; ok {
		return i
	}
	return -1
}

// Rule is one row of the rule table.
type Rule struct {
	Name     string
	Category domain.Category
	Apply    func(in *Input, rp config.RulePolicy) []domain.Decision
}

// Table is the rule table in execution order. The row index is part of every derived id.
var Table = []Rule{
	{Name: "upgauge", Category: domain.CategoryUpgauge, Apply: upgauge},
	{Name: "rm_action", Category: domain.CategoryRMAction, Apply: rmAction},
	{Name: "capacity_reallocation", Category: domain.CategoryCapacityReallocation, Apply: capacityReallocation},
	{Name: "frequency_reduction", Category: domain.CategoryFrequencyReduction, Apply: frequencyReduction},
	{Name: "retiming", Category: domain.CategoryRetiming, Apply: retiming},
	{Name: "downgauge", Category: domain.CategoryDowngauge, Apply: downgauge},
	{Name: "ops_blocked", Category: domain.CategoryCapacityReallocation, Apply: opsBlocked},
	{Name: "mro_impact", Category: domain.CategoryTailSwap, Apply: mroImpact},
	{Name: "training_compliance", Category: domain.CategoryDoNotDo, Apply: trainingCompliance},
}

// DecisionID derives the stable id of a decision from its category, route and rule row.
func DecisionID(category domain.Category, routeKey string, ruleIdx int) string {
	name := strings.Join([]string{"decision", string(category), routeKey, strconv.Itoa(ruleIdx)}, "|")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// Generator runs the rule table.
type Generator struct {
	Policy *config.Config
	Scorer ConfidenceScorer
}

// Generate evaluates every enabled rule and concatenates their output in table order. Rows that
// derive an id already emitted in this pass are merged into the first one.
func (g Generator) Generate(snap *snapshot.Snapshot, facts constraints.Facts, now time.Time) []domain.Decision {
	policy := g.Policy
	if policy == nil {
		policy = config.Default()
	}
	scorer := g.Scorer
	if scorer == nil {
		scorer = LoadFactorConfidence
	}
	if snap == nil {
		snap = &snapshot.Snapshot{}
	}
	in := &Input{Snapshot: snap, Facts: facts, Policy: policy, Now: now.UTC(), rows: map[string]int{}}
	for i, rule := range Table {
		in.rows[rule.Name] = i
	}

	var out []domain.Decision
	at := map[string]int{}
	for idx, rule := range Table {
		rp := policy.Rule(rule.Name)
		if !rp.On() {
			continue
		}
		for _, d := range rule.Apply(in, rp) {
			d.RuleName = rule.Name
			d.ID = DecisionID(d.Category, d.RouteKey, idx)
			d.Status = domain.StatusProposed
			d.Confidence = scorer(d.Evidence)
			d.GeneratedAt = in.Now.Format(time.RFC3339)
			if i, ok := at[d.ID]; ok {
				merge(&out[i], d)
				enforceBlocking(&out[i])
				continue
			}
			enforceBlocking(&d)
			normalizeSlices(&d)
			at[d.ID] = len(out)
			out = append(out, d)
		}
	}
	return out
}

// enforceBlocking makes binding mirror blocking severity and escalates blocked decisions.
func enforceBlocking(d *domain.Decision) {
	for i := range d.Constraints {
		d.Constraints[i].Binding = d.Constraints[i].Severity == domain.SeverityBlocking
	}
	if !d.HasBlocking() {
		if d.Priority == domain.PriorityCritical {
			d.Priority = domain.PriorityHigh
		}
		return
	}
	d.Priority = domain.PriorityCritical
	if !strings.Contains(d.ProposedState, domain.BlockedMarker) {
		d.ProposedState = strings.TrimSpace(d.ProposedState + " " + domain.BlockedMarker)
	}
}

// merge folds a same-id row into dst: impacts stay with dst, distinct constraints, risks and
// prerequisites are appended and the description is extended.
func merge(dst *domain.Decision, src domain.Decision) {
	if src.Description != "" && !strings.Contains(dst.Description, src.Description) {
		dst.Description = strings.TrimSpace(dst.Description + " " + src.Description)
	}
	for _, c := range src.Constraints {
		dup := false
		for _, have := range dst.Constraints {
			if have.Domain == c.Domain && have.Description == c.Description {
				dup = true
				break
			}
		}
		if !dup {
			dst.Constraints = append(dst.Constraints, c)
		}
	}
	dst.Risks = union(dst.Risks, src.Risks)
	dst.Conflicts.RequiresPrior = union(dst.Conflicts.RequiresPrior, src.Conflicts.RequiresPrior)
	dst.Conflicts.ConflictsWith = union(dst.Conflicts.ConflictsWith, src.Conflicts.ConflictsWith)
	dst.Conflicts.Displaces = union(dst.Conflicts.Displaces, src.Conflicts.Displaces)
}

func union(a, b []string) []string {
	for _, v := range b {
		found := false
		for _, have := range a {
			if have == v {
				found = true
				break
			}
		}
		if !found {
			a = append(a, v)
		}
	}
	return a
}

func normalizeSlices(d *domain.Decision) {
	if d.Conflicts.Displaces == nil {
		d.Conflicts.Displaces = []string{}
	}
	if d.Conflicts.ConflictsWith == nil {
		d.Conflicts.ConflictsWith = []string{}
	}
	if d.Conflicts.RequiresPrior == nil {
		d.Conflicts.RequiresPrior = []string{}
	}
	if d.Risks == nil {
		d.Risks = []string{}
	}
	if d.Constraints == nil {
		d.Constraints = []domain.Constraint{}
	}
}
