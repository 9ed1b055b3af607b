/*
main.go - hrbudget command line

PURPOSE:
  Runs the headcount budget API server and answers the common questions
  from a terminal: how healthy is a month, what does the next half year look
  like, what happens if we hire these people.

COMMANDS:
  serve               HTTP API plus the background health monitor
  health              Health of one month of an org unit
  summary             Last month, current month and the months after it
  preview-offers      Impact of approving existing offers
  preview-positions   Impact of a hypothetical hire
  alerts              First RED month of every active org unit
  scenario list|load  Demo data sets

CONFIGURATION:
  --config file.yaml, HRBUDGET_* environment variables and flags, see
  config/config.go. --db and --port override database.path and server.port.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM the command context is cancelled:
  1. The health monitor stops
  2. The server stops accepting connections and drains (30s timeout)
  3. The database is closed

EXAMPLES:
  hrbudget serve --db ./data/hrbudget.db --port 3000
  hrbudget scenario load tight-quarter
  hrbudget summary --org-unit ou-sales --months 6
  hrbudget preview-offers off-sales-carla
  hrbudget preview-positions --org-unit ou-eng --cost 15000 --start 2026-03-15 --json
*/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/warp/headcount-budget/api"
	"github.com/warp/headcount-budget/budget"
	"github.com/warp/headcount-budget/config"
	"github.com/warp/headcount-budget/store/sqlite"
)

const dateLayout = "2006-01-02"

var rootCmd = &cobra.Command{
	Use:   "hrbudget",
	Short: "Headcount budget health and impact engine",
	Long: `hrbudget tracks approved headcount budgets per org unit and month and
tells whether they can absorb committed hires and the open pipeline.
- GREEN: remaining headroom is at least 20% of the approved budget
- YELLOW: headroom is positive but below 20%
- RED: no headroom left
Previews simulate offers or hypothetical hires and flag the first month
they turn RED (the bottleneck).`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("db", "hrbudget.db", `SQLite database path (":memory:" for a throwaway database)`)
	rootCmd.PersistentFlags().Int("port", 8080, "HTTP server port")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("server.port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(previewOffersCmd())
	rootCmd.AddCommand(previewPositionsCmd())
	rootCmd.AddCommand(alertsCmd())
	rootCmd.AddCommand(scenarioCmd())
}

// =============================================================================
// SERVER
// =============================================================================

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server and health monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(cfg *config.Config, log *logrus.Logger, store *sqlite.Store) error {
				handler := newHandler(cfg, log, store)

				handler.Monitor.Enabled = cfg.Monitor.Enabled
				handler.Monitor.CheckInterval = cfg.Monitor.Interval
				handler.Monitor.MonthsAhead = cfg.Engine.MonthsAhead
				handler.Monitor.Start()
				defer handler.Monitor.Stop()

				server := &http.Server{
					Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
					Handler:      api.NewRouter(handler, cfg.Server.CORSOrigins),
					ReadTimeout:  15 * time.Second,
					WriteTimeout: 15 * time.Second,
					IdleTimeout:  60 * time.Second,
				}

				go func() {
					<-cmd.Context().Done()
					log.Info("shutting down server")
					ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()
					if err := server.Shutdown(ctx); err != nil {
						log.WithError(err).Error("server forced to shutdown")
					}
				}()

				log.WithFields(logrus.Fields{
					"port":     cfg.Server.Port,
					"database": cfg.Database.Path,
				}).Info("server starting")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				log.Info("server stopped")
				return nil
			})
		},
	}
}

// =============================================================================
// HEALTH & SUMMARY
// =============================================================================

func healthCmd() *cobra.Command {
	var orgUnit, month string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show the health of one month (current month by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(cfg *config.Config, log *logrus.Logger, store *sqlite.Store) error {
				engine := budget.NewEngine(store)
				if err := requireOrgUnit(cmd.Context(), store, orgUnit); err != nil {
					return err
				}
				m := engine.CurrentMonth()
				if month != "" {
					parsed, err := budget.ParseMonth(month)
					if err != nil {
						return err
					}
					m = parsed
				}
				health, err := engine.MonthHealth(cmd.Context(), budget.OrgUnitID(orgUnit), m)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(api.ToMonthHealthDTO(health))
				}
				renderHealth([]budget.MonthHealth{health})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&orgUnit, "org-unit", "", "org unit id")
	cmd.Flags().StringVar(&month, "month", "", "month (YYYY-MM)")
	_ = cmd.MarkFlagRequired("org-unit")
	return cmd
}

func summaryCmd() *cobra.Command {
	var orgUnit string
	var months int
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show last month, the current month and the months after it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(cfg *config.Config, log *logrus.Logger, store *sqlite.Store) error {
				if !cmd.Flags().Changed("months") {
					months = cfg.Engine.MonthsAhead
				}
				if err := requireOrgUnit(cmd.Context(), store, orgUnit); err != nil {
					return err
				}
				summary, err := budget.NewEngine(store).Summary(cmd.Context(), budget.OrgUnitID(orgUnit), months)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					dtos := make([]api.MonthHealthDTO, len(summary))
					for i, m := range summary {
						dtos[i] = api.ToMonthHealthDTO(m)
					}
					return printJSON(dtos)
				}
				renderHealth(summary)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&orgUnit, "org-unit", "", "org unit id")
	cmd.Flags().IntVar(&months, "months", 6, "months after the current one")
	_ = cmd.MarkFlagRequired("org-unit")
	return cmd
}

func renderHealth(months []budget.MonthHealth) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Month", "Approved", "Baseline", "Source", "Committed", "Pipeline", "Remaining", "Status"})
	for _, h := range months {
		tw.AppendRow(table.Row{
			h.Month.String(),
			h.Approved.StringFixed(2),
			h.Baseline.StringFixed(2),
			h.BaselineSource,
			h.Committed.StringFixed(2),
			h.PipelinePotential.StringFixed(2),
			h.Remaining.StringFixed(2),
			h.Status,
		})
	}
	tw.Render()
}

// =============================================================================
// WHAT-IF PREVIEWS
// =============================================================================

func previewOffersCmd() *cobra.Command {
	var months int
	cmd := &cobra.Command{
		Use:   "preview-offers OFFER_ID...",
		Short: "Simulate approving existing offers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(cfg *config.Config, log *logrus.Logger, store *sqlite.Store) error {
				if !cmd.Flags().Changed("months") {
					months = cfg.Engine.MonthsAhead
				}
				first, err := store.GetOffer(cmd.Context(), budget.OfferID(args[0]))
				if err != nil {
					return err
				}
				if first == nil {
					return &budget.NotFoundError{Kind: "offer", ID: args[0]}
				}
				ids := make([]budget.OfferID, len(args))
				for i, id := range args {
					ids[i] = budget.OfferID(id)
				}
				report, err := budget.NewEngine(store).PreviewOfferImpact(cmd.Context(), first.OrgUnitID, ids, months)
				if err != nil {
					return err
				}
				return printImpact(report)
			})
		},
	}
	cmd.Flags().IntVar(&months, "months", 6, "months to simulate from the current one")
	return cmd
}

func previewPositionsCmd() *cobra.Command {
	var orgUnit, cost, start, overhead string
	var months int
	cmd := &cobra.Command{
		Use:   "preview-positions",
		Short: "Simulate a hypothetical hire",
		RunE: func(cmd *cobra.Command, args []string) error {
			monthly, err := decimal.NewFromString(cost)
			if err != nil {
				return fmt.Errorf("--cost: %w", err)
			}
			startDate, err := time.Parse(dateLayout, start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			position := budget.Position{MonthlyCost: monthly, StartDate: startDate}
			if overhead != "" {
				o, err := decimal.NewFromString(overhead)
				if err != nil {
					return fmt.Errorf("--overhead: %w", err)
				}
				position.OverheadMultiplier = &o
			}

			return withStore(func(cfg *config.Config, log *logrus.Logger, store *sqlite.Store) error {
				if !cmd.Flags().Changed("months") {
					months = cfg.Engine.MonthsAhead
				}
				if err := requireOrgUnit(cmd.Context(), store, orgUnit); err != nil {
					return err
				}
				report, err := budget.NewEngine(store).PreviewNewPositions(cmd.Context(), budget.OrgUnitID(orgUnit), []budget.Position{position}, months)
				if err != nil {
					return err
				}
				return printImpact(report)
			})
		},
	}
	cmd.Flags().StringVar(&orgUnit, "org-unit", "", "org unit id")
	cmd.Flags().StringVar(&cost, "cost", "", "monthly base cost")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&overhead, "overhead", "", "overhead multiplier (org unit default when empty)")
	cmd.Flags().IntVar(&months, "months", 6, "months to simulate from the current one")
	_ = cmd.MarkFlagRequired("org-unit")
	_ = cmd.MarkFlagRequired("cost")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func printImpact(report budget.ImpactReport) error {
	if viper.GetBool("json") {
		return printJSON(api.ToImpactsDTO(report))
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Month", "Remaining Before", "Delta", "Remaining After", "Before", "After", "Bottleneck"})
	for _, m := range report.Months {
		mark := ""
		if m.IsBottleneck {
			mark = "<<"
		}
		tw.AppendRow(table.Row{
			m.Month.String(),
			m.RemainingBefore.StringFixed(2),
			m.Delta.StringFixed(2),
			m.RemainingAfter.StringFixed(2),
			m.StatusBefore,
			m.StatusAfter,
			mark,
		})
	}
	tw.Render()
	if b, ok := report.Bottleneck(); ok {
		fmt.Printf("First RED month: %s (remaining %s)\n", b.Month, b.RemainingAfter.StringFixed(2))
	}
	return nil
}

// =============================================================================
// MONITOR
// =============================================================================

func alertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "Run one health check over every active org unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(cfg *config.Config, log *logrus.Logger, store *sqlite.Store) error {
				monitor := api.NewHealthMonitor(store, budget.NewEngine(store), log)
				monitor.MonthsAhead = cfg.Engine.MonthsAhead
				alerts, err := monitor.Check(cmd.Context())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(alerts)
				}
				if len(alerts) == 0 {
					fmt.Println("All org units are within budget.")
					return nil
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Org Unit", "Name", "First RED Month", "Approved", "Remaining"})
				for _, a := range alerts {
					tw.AppendRow(table.Row{a.OrgUnitID, a.OrgUnitName, a.Month.String(), a.Approved.StringFixed(2), a.Remaining.StringFixed(2)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

func scenarioCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "scenario", Short: "Demo data sets"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List bundled scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := api.Scenarios()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(list)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Name", "Description"})
			for _, s := range list {
				tw.AppendRow(table.Row{s.ID, s.Name, s.Description})
			}
			tw.Render()
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "load NAME",
		Short: "Reset the database and load a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(cfg *config.Config, log *logrus.Logger, store *sqlite.Store) error {
				if err := api.ApplyScenario(cmd.Context(), store, args[0], time.Now()); err != nil {
					return err
				}
				log.WithFields(logrus.Fields{"scenario": args[0], "database": cfg.Database.Path}).Info("scenario loaded")
				return nil
			})
		},
	})
	return cmd
}

// =============================================================================
// HELPERS
// =============================================================================

// withStore loads the configuration, opens the database and runs fn.
func withStore(fn func(cfg *config.Config, log *logrus.Logger, store *sqlite.Store) error) error {
	cfg, err := config.Load(viper.GetViper(), viper.GetString("config"))
	if err != nil {
		return err
	}
	log, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	defer store.Close()
	return fn(cfg, log, store)
}

func newHandler(cfg *config.Config, log *logrus.Logger, store *sqlite.Store) *api.Handler {
	handler := api.NewHandler(store, log)
	handler.MonthsAhead = cfg.Engine.MonthsAhead
	handler.DefaultOverhead = cfg.Engine.DefaultOverhead
	return handler
}

func requireOrgUnit(ctx context.Context, store *sqlite.Store, id string) error {
	unit, err := store.GetOrgUnit(ctx, budget.OrgUnitID(id))
	if err != nil {
		return err
	}
	if unit == nil {
		return &budget.NotFoundError{Kind: "org_unit", ID: id}
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
