package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"controlroom/internal/app"
	"controlroom/internal/domain"
	"controlroom/internal/engine"
	"controlroom/internal/repo"
)

func decisionsCmd() *cobra.Command {
	dec := &cobra.Command{
		Use:     "decisions",
		Aliases: []string{"decision"},
		Short:   "Inspect and act on decisions",
		Long:    "Decisions are generated by refresh passes. Each carries its impact, resource consumption and per-domain constraints; a blocking constraint must be resolved before approval.",
	}
	dec.AddCommand(decisionsListCmd())
	dec.AddCommand(decisionsShowCmd())
	for _, a := range []struct {
		use, short string
		to         domain.Status
	}{
		{"simulate", "Mark a proposed decision simulated", domain.StatusSimulated},
		{"approve", "Approve a pending decision", domain.StatusApproved},
		{"reject", "Reject a pending decision", domain.StatusRejected},
		{"execute", "Start executing an approved decision", domain.StatusExecuting},
		{"complete", "Mark a decision completed", domain.StatusCompleted},
		{"rollback", "Roll back a decision", domain.StatusRolledBack},
	} {
		dec.AddCommand(transitionCmd(a.use, a.short, a.to))
	}
	return dec
}

func decisionsListCmd() *cobra.Command {
	var (
		statuses           []string
		category, priority string
		limit              int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List decisions, critical first",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := repo.DecisionFilters{Limit: limit}
			for _, s := range statuses {
				st, err := domain.ParseStatus(s)
				if err != nil {
					return err
				}
				f.Statuses = append(f.Statuses, st)
			}
			if category != "" {
				c, err := domain.ParseCategory(category)
				if err != nil {
					return err
				}
				f.Category = c
			}
			if priority != "" {
				p, err := domain.ParsePriority(priority)
				if err != nil {
					return err
				}
				f.Priority = p
			}
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				items, err := ac.Engine.ListDecisions(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Priority", "Category", "Route", "Status", "Revenue", "RASM", "Blocked", "V"})
				for _, d := range items {
					blocked := ""
					if d.HasBlocking() {
						blocked = joinDomains(d.BlockingDomains())
					}
					tw.AppendRow(table.Row{shortID(d.ID), d.Priority, d.Category, d.RouteKey, d.Status,
						money(d.RevenueImpact), fmt.Sprintf("%+.4f", d.RASMImpact), blocked, d.Version})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "status filter (repeatable)")
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	cmd.Flags().StringVar(&priority, "priority", "", "priority filter")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows")
	return cmd
}

func decisionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				d, err := ac.Engine.GetDecision(ctx, resolveID(ctx, ac, args[0]))
				if err != nil {
					return err
				}
				return printJSON(d)
			})
		},
	}
}

func transitionCmd(use, short string, to domain.Status) *cobra.Command {
	var (
		version int64
		note    string
	)
	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				d, err := ac.Engine.Transition(ctx, engine.TransitionOptions{
					DecisionID: resolveID(ctx, ac, args[0]),
					To:         to,
					ActorID:    viper.GetString("actor-id"),
					Version:    version,
					Note:       note,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(d)
				}
				fmt.Printf("%s %s -> %s (v%d)\n", shortID(d.ID), d.Title, d.Status, d.Version)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "expected version (0 skips the check)")
	cmd.Flags().StringVar(&note, "note", "", "log note")
	return cmd
}

func alertsCmd() *cobra.Command {
	al := &cobra.Command{Use: "alerts", Short: "Inspect and act on alerts"}
	al.AddCommand(alertsListCmd())
	al.AddCommand(&cobra.Command{
		Use:   "ack <id>",
		Short: "Acknowledge an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				a, err := ac.Engine.AcknowledgeAlert(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				fmt.Printf("acknowledged %s\n", a.ID)
				return nil
			})
		},
	})
	al.AddCommand(&cobra.Command{
		Use:   "act <id> <action>",
		Short: "Run an alert action (acknowledge, dismiss, open_decision, review_decisions, approve, reject, simulate, refresh_feed)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := domain.ParseAlertActionType(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				res, err := ac.Engine.ActOnAlert(ctx, args[0], action, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if res.RefreshRequested {
					if _, err := ac.Scheduler.RefreshNow(ctx); err != nil {
						return err
					}
				}
				return printJSON(res)
			})
		},
	})
	return al
}

func alertsListCmd() *cobra.Command {
	var (
		severity string
		all      bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts, critical first",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := repo.AlertFilters{IncludeDismissed: all}
			if severity != "" {
				s, err := domain.ParseAlertSeverity(severity)
				if err != nil {
					return err
				}
				f.Severity = s
			}
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				items, err := ac.Engine.ListAlerts(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Severity", "Title", "Leakage/day", "Deadline", "Linked", "Ack"})
				for _, a := range items {
					leak, deadline := "", ""
					if a.DollarLeakagePerDay != nil {
						leak = money(*a.DollarLeakagePerDay)
					}
					if a.Deadline != nil {
						deadline = *a.Deadline
					}
					tw.AppendRow(table.Row{a.ID, severityText(a.Severity), a.Title, leak, deadline, len(a.LinkedDecisionIDs), a.Acknowledged})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&severity, "severity", "", "critical, warning or info")
	cmd.Flags().BoolVar(&all, "all", false, "include dismissed alerts")
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Decision log"}
	var (
		n          int
		decisionID string
		typ        string
	)
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the newest log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			lt := domain.LogType(typ)
			if lt != "" && !lt.Valid() {
				return fmt.Errorf("log type %q: %w", typ, domain.ErrUnknownValue)
			}
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				items, err := ac.Engine.Log(ctx, repo.LogFilters{DecisionID: decisionID, Type: lt, Limit: n})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Seq", "Time", "Type", "Decision", "Actor", "Revenue", "Note"})
				for _, e := range items {
					rev := ""
					if e.RevenueImpact != nil {
						rev = money(*e.RevenueImpact)
					}
					tw.AppendRow(table.Row{e.Seq, e.Timestamp, e.Type, e.DecisionTitle, e.Actor, rev, e.Note})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of entries")
	tail.Flags().StringVar(&decisionID, "decision", "", "decision id filter")
	tail.Flags().StringVar(&typ, "type", "", "entry type filter")
	lg.AddCommand(tail)
	return lg
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	return tw
}

func severityText(s domain.AlertSeverity) string {
	switch s {
	case domain.AlertCritical:
		return text.FgRed.Sprint(s)
	case domain.AlertWarning:
		return text.FgYellow.Sprint(s)
	default:
		return string(s)
	}
}

func money(v float64) string {
	return fmt.Sprintf("$%.0f", v)
}

func joinDomains(ds []domain.ConstraintDomain) string {
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = string(d)
	}
	return strings.Join(names, ",")
}

// shortID trims a derived uuid to its first block for table output.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// resolveID expands a unique id prefix as printed by list commands.
func resolveID(ctx context.Context, ac *app.Context, prefix string) string {
	if _, err := ac.Engine.GetDecision(ctx, prefix); err == nil {
		return prefix
	}
	items, err := ac.Engine.ListDecisions(ctx, repo.DecisionFilters{})
	if err != nil {
		return prefix
	}
	match := ""
	for _, d := range items {
		if strings.HasPrefix(d.ID, prefix) {
			if match != "" {
				return prefix
			}
			match = d.ID
		}
	}
	if match == "" {
		return prefix
	}
	return match
}
