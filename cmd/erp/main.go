package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/app"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/config"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/db"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/engine"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/logging"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/metrics"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/server"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/timesheet"
)

var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "erp",
	Short: "TBO agency ERP",
	Long: `erp runs the agency's project workflow and time tracking from a local workspace.
- Workspace: a .tbo directory holding erp.db; erp.yml next to it tunes timezone, capacity, rates and playbooks.
- Entities: projects, tasks, deliverables, proposals, meetings and decisions, each moved through its own status machine.
- Playbooks: templates that seed a project with phased tasks and deliverables.
- Deliverable versions: v1, v2... submitted for approval; a revision request opens the next draft.
- Time: one running timer per person, manual entries, weekly timesheets, utilization and cost rollups.
- Audit: every status change is recorded; view it with 'erp audit'. Activity: 'erp log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(viper.GetString("log-level"), viper.GetString("log-format"))
		if err != nil {
			return err
		}
		logger = l
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
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
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TBO_ERP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	for _, name := range []string{"workspace", "json", "actor-id", "log-level", "log-format"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(entityCmd())
	rootCmd.AddCommand(machineCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(playbookCmd())
	rootCmd.AddCommand(deliverableCmd())
	rootCmd.AddCommand(decisionCmd())
	rootCmd.AddCommand(timerCmd())
	rootCmd.AddCommand(entryCmd())
	rootCmd.AddCommand(timesheetCmd())
	rootCmd.AddCommand(utilizationCmd())
	rootCmd.AddCommand(alertsCmd())
	rootCmd.AddCommand(costsCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func actorID() string {
	return viper.GetString("actor-id")
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "erp.yml sits in the workspace root. Without it the built-in defaults apply: UTC, Mon-Fri, 40h capacity and the branding/website/campanha playbooks.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if viper.GetBool("json") {
					return printJSON(e.Config)
				}
				out, err := yaml.Marshal(e.Config)
				if err != nil {
					return err
				}
				fmt.Print(string(out))
				return nil
			})
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default erp.yml",
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

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Activity log"}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, ev := range items {
					tw.AppendRow(table.Row{ev.ID, ev.TS, ev.Type, ev.EntityKind + " " + ev.EntityID, ev.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&f.Limit, "n", "n", 20, "number of events")
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind filter")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin, legacyHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := metrics.New()
			ws, err := app.Open(cmd.Context(), app.Options{
				Workspace: viper.GetString("workspace"),
				Logger:    logger,
				Metrics:   m,
			})
			if err != nil {
				return err
			}
			defer ws.Close()
			authCfg := server.AuthConfig{
				JWTSecret:              viper.GetString("jwt-secret"),
				AllowLegacyActorHeader: legacyHeader,
				AllowDevLogin:          devLogin,
				Logger:                 logger,
			}
			if authCfg.JWTSecret == "" && !legacyHeader {
				return fmt.Errorf("TBO_ERP_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: ws.Engine, BasePath: basePath, Auth: authCfg, Logger: logger})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info("serving", zap.String("addr", addr), zap.String("base_path", basePath))
			fmt.Printf("Serving TBO ERP API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs, metrics at /metrics)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "expose POST /auth/dev/login")
	cmd.Flags().BoolVar(&legacyHeader, "legacy-actor-header", false, "accept X-Actor-Id without a token")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	ws, err := app.Open(ctx, app.Options{Workspace: viper.GetString("workspace"), Logger: logger})
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws.Engine)
}

// weekFlag resolves --week (any date in the week) to its Monday.
func weekFlag(e engine.Engine, raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return timesheet.WeekStart(e.Today()), nil
	}
	d, err := timesheet.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--week: %w", err)
	}
	return timesheet.WeekStart(d), nil
}

// parseFieldArgs turns key=value pairs into a field map. Values are read as
// YAML scalars so numbers and booleans keep their type.
func parseFieldArgs(pairs []string) (map[string]any, error) {
	out := map[string]any{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid field %q, expected key=value", p)
		}
		var parsed any
		if err := yaml.Unmarshal([]byte(v), &parsed); err != nil || parsed == nil {
			parsed = v
		}
		out[k] = parsed
	}
	return out, nil
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func sortedStatuses(counts map[domain.Status]int) []domain.Status {
	out := make([]domain.Status, 0, len(counts))
	for s := range counts {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
