package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"controlroom/internal/app"
	"controlroom/internal/config"
	"controlroom/internal/db"
	"controlroom/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "crctl",
	Short: "Control Room CLI",
	Long: `Control Room turns analytics snapshots into ranked, constraint-checked network decisions.
- Refresh: fetch every feed, evaluate constraints, generate decisions and alerts, persist the pass.
- Decisions: move through proposed -> simulated -> approved -> executing -> completed -> validated;
  rejected and rolled_back are exits. Approval is refused while a blocking constraint remains.
- Alerts: acknowledge, dismiss, or act on every linked decision at once.
- Outcomes: executed decisions are tracked against realized revenue and RASM.
- Policy: controlroom.yml in the workspace holds rule thresholds, feed windows and roles.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CONTROLROOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(refreshCmd())
	rootCmd.AddCommand(decisionsCmd())
	rootCmd.AddCommand(alertsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(outcomesCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(constraintsCmd())
	rootCmd.AddCommand(feedsCmd())
	rootCmd.AddCommand(policyCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(roleCmd())
	rootCmd.AddCommand(serveCmd())
}

func policyCmd() *cobra.Command {
	pol := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the policy file",
		Long:  "The policy file (controlroom.yml) is the rule table: thresholds and formula constants per rule, feed freshness windows, constraint limits and roles. Without one the built-in default applies.",
	}
	pol.AddCommand(policyShowCmd())
	pol.AddCommand(policyValidateCmd())
	pol.AddCommand(policyInitCmd())
	return pol
}

func policyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func policyValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the workspace policy file",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": errString(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("policy OK")
			return nil
		},
	}
}

func policyInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default policy file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func apikeyCmd() *cobra.Command {
	keys := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	var (
		actor, name string
		roles       []string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for an actor (the key is printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				return fmt.Errorf("--actor required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				if err := ac.Auth.CheckRoles(roles...); err != nil {
					return err
				}
				key, err := server.CreateAPIKey(ctx, ac.Engine.Repo, actor, name, roles)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(key)
				}
				scope := "all actor roles"
				if len(key.Roles) > 0 {
					scope = strings.Join(key.Roles, ",")
				}
				fmt.Printf("id:    %s\nactor: %s\nscope: %s\nkey:   %s\n", key.ID, key.ActorID, scope, key.Key)
				return nil
			})
		},
	}
	create.Flags().StringVar(&actor, "actor", "", "actor id")
	create.Flags().StringVar(&name, "name", "", "key label")
	create.Flags().StringSliceVar(&roles, "role", nil, "restrict the key to this role (repeatable)")

	var owner string
	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				items, err := ac.Engine.Repo.ListAPIKeys(ctx, nil, owner)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(nonNil(items))
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Scope", "Created"})
				for _, k := range items {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, strings.Join(k.Roles, ","), k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&owner, "actor", "", "only keys of this actor")

	revoke := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				if err := ac.Engine.Repo.RevokeAPIKey(ctx, nil, args[0]); err != nil {
					return err
				}
				fmt.Println("revoked", args[0])
				return nil
			})
		},
	}
	keys.AddCommand(create, list, revoke)
	return keys
}

func roleCmd() *cobra.Command {
	roles := &cobra.Command{Use: "role", Short: "Manage actor roles"}
	var actor, role string
	grant := &cobra.Command{
		Use:   "grant",
		Short: "Grant a policy role to an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" || role == "" {
				return fmt.Errorf("--actor and --role required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				if err := ac.Auth.Grant(ctx, actor, role); err != nil {
					return err
				}
				fmt.Printf("granted %s to %s\n", role, actor)
				return nil
			})
		},
	}
	grant.Flags().StringVar(&actor, "actor", "", "actor id")
	grant.Flags().StringVar(&role, "role", "", "role id")

	var revokeActor, revokeRole string
	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a role from an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if revokeActor == "" || revokeRole == "" {
				return fmt.Errorf("--actor and --role required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				return ac.Auth.Revoke(ctx, revokeActor, revokeRole)
			})
		},
	}
	revoke.Flags().StringVar(&revokeActor, "actor", "", "actor id")
	revoke.Flags().StringVar(&revokeRole, "role", "", "role id")

	list := &cobra.Command{
		Use:   "list",
		Short: "List role assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				items, err := ac.Engine.Repo.ListRoleAssignments(ctx)
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	}
	roles.AddCommand(grant, revoke, list)
	return roles
}

func serveCmd() *cobra.Command {
	var (
		addr, basePath string
		schedule, dev  bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, the refresh scheduler and webhook delivery",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				authCfg := server.AuthConfig{
					JWTSecret:        viper.GetString("jwt-secret"),
					AllowActorHeader: dev,
				}
				if authCfg.JWTSecret == "" && !dev {
					return fmt.Errorf("CONTROLROOM_JWT_SECRET is required for bearer auth (or run with --dev)")
				}
				handler, err := server.New(server.Config{
					Engine:    ac.Engine,
					Refresher: ac.Scheduler,
					Optimizer: ac.Analytics,
					BasePath:  basePath,
					Auth:      authCfg,
					Logger:    ac.Logger,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

				g, gctx := errgroup.WithContext(ctx)
				if schedule {
					g.Go(func() error {
						if err := ac.Scheduler.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
							return err
						}
						return nil
					})
				}
				g.Go(func() error {
					server.WebhookDispatcher{
						Repo:     ac.Engine.Repo,
						Webhooks: ac.Config.Webhooks,
						Logger:   ac.Logger,
					}.Run(gctx)
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(sctx)
				})
				g.Go(func() error {
					fmt.Printf("Serving Control Room API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs, metrics at /metrics)\n", addr, basePath, basePath)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				return g.Wait()
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&schedule, "schedule", true, "run refresh passes on the policy interval")
	cmd.Flags().BoolVar(&dev, "dev", false, "accept X-Actor-Id without credentials and enable dev login")
	cmd.Flags().String("jwt-secret", "", "HS256 secret for bearer tokens")
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	return cmd
}

// --- helpers ---

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func withApp(ctx context.Context, fn func(context.Context, *app.Context) error) error {
	ac, err := app.Open(ctx, viper.GetString("workspace"), newLogger())
	if err != nil {
		return err
	}
	defer ac.Close()
	return fn(ctx, ac)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
