package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"controlroom/internal/app"
	"controlroom/internal/domain"
)

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run one refresh pass against the analytics source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				out, err := ac.Scheduler.RefreshNow(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				if out.Stale {
					fmt.Printf("epoch %d discarded (a newer pass was applied)\n", out.Epoch)
					return nil
				}
				r := out.Report
				fmt.Printf("epoch %d: %d new, %d updated, %d unchanged, %d retained, %d removed, %d alerts, %d settled\n",
					out.Epoch, r.Inserted, r.Updated, r.Unchanged, r.Retained, r.Removed, r.Alerts, r.Settled)
				return nil
			})
		},
	}
}

func outcomesCmd() *cobra.Command {
	oc := &cobra.Command{Use: "outcomes", Short: "Track executed decisions against realized impact"}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List tracked outcomes and the aggregate accuracy",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := domain.OutcomeStatus(status)
			if st != "" && !st.Valid() {
				return fmt.Errorf("outcome status %q: %w", status, domain.ErrUnknownValue)
			}
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				items, err := ac.Engine.Outcomes(ctx, st)
				if err != nil {
					return err
				}
				score, ok, err := ac.Engine.Accuracy(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					body := map[string]any{"items": nonNil(items)}
					if ok {
						body["accuracy"] = score
					}
					return printJSON(body)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Decision", "Executed", "Predicted", "Actual", "Variance", "Status"})
				for _, o := range items {
					actual, variance := "", ""
					if o.Actual != nil {
						actual = money(o.Actual.RevenueImpact)
					}
					if o.Variance != nil {
						variance = fmt.Sprintf("%+.1f%%", o.Variance.RevenuePct)
					}
					tw.AppendRow(table.Row{o.DecisionTitle, o.ExecutedAt, money(o.Predicted.RevenueImpact), actual, variance, o.Status})
				}
				tw.Render()
				if ok {
					fmt.Printf("accuracy: %.1f%%\n", score)
				} else {
					fmt.Println("accuracy: no settled outcomes yet")
				}
				return nil
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "tracking, validated, underperformed or outperformed")

	var revenue, rasmImpact float64
	record := &cobra.Command{
		Use:   "record <decision-id>",
		Short: "Record the realized impact of an executed decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				o, err := ac.Engine.RecordActual(ctx, resolveID(ctx, ac, args[0]),
					domain.Impact{RevenueImpact: revenue, RASMImpact: rasmImpact}, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(o)
				}
				fmt.Printf("%s: %s\n", o.DecisionTitle, o.Status)
				return nil
			})
		},
	}
	record.Flags().Float64Var(&revenue, "revenue", 0, "realized revenue impact")
	record.Flags().Float64Var(&rasmImpact, "rasm", 0, "realized RASM impact")

	reconcile := &cobra.Command{
		Use:   "reconcile",
		Short: "Pull reported actuals from the analytics source and settle matching outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				actuals, err := ac.Analytics.TrackedOutcomes(ctx)
				if err != nil {
					return err
				}
				n, err := ac.Engine.Reconcile(ctx, actuals)
				if err != nil {
					return err
				}
				fmt.Printf("settled %d outcome(s)\n", n)
				return nil
			})
		},
	}

	oc.AddCommand(list, record, reconcile)
	return oc
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Pending decision totals and the network RASM position",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				s, err := ac.Engine.Summary(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("pending:      %d decisions, %s revenue, %+.4f avg RASM\n", s.PendingCount, money(s.PendingRevenue), s.AvgPendingRASM)
				fmt.Printf("network RASM: %.4f (baseline %.4f, adjustment %+.4f)\n", s.NetworkRASM, s.BaselineRASM, s.RASMAdjustment)
				return nil
			})
		},
	}
}

func constraintsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "constraints",
		Short: "Constraint status per domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				items, err := ac.Engine.ConstraintStatus(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Domain", "Severity", "Blocking", "Warning", "Feed", "Headline"})
				for _, d := range items {
					tw.AppendRow(table.Row{d.Domain, d.Severity, d.BlockingCount, d.WarningCount, d.FeedStatus, d.Headline})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func feedsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feeds",
		Short: "Feed health as of the last refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				items, err := ac.Engine.Feeds(ctx)
				if err != nil {
					return err
				}
				opt, err := ac.Engine.Optimizer(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"feeds": nonNil(items), "optimizer": opt})
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Feed", "Status", "Age", "Out of bounds", "Error"})
				for _, h := range items {
					tw.AppendRow(table.Row{h.FeedName, h.Status, fmt.Sprintf("%ds", h.AgeSeconds), h.OutOfBoundsCount, h.ErrorMessage})
				}
				tw.Render()
				if opt != nil {
					fmt.Printf("optimizer: %s (%s) last run %s\n", opt.Status, opt.Objective, opt.LastRun)
				}
				return nil
			})
		},
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
