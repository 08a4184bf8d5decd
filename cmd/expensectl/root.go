package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"smartexpense/internal/apiclient"
	"smartexpense/internal/backend"
	"smartexpense/internal/config"
	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
	"smartexpense/internal/tracker"
)

type options struct {
	configPath string
	// connect builds the backend from the loaded configuration.
	connect func(cfg *config.ClientConfig) (backend.Backend, error)
}

func defaultOptions() *options {
	return &options{
		configPath: config.DefaultClientConfigPath(),
		connect: func(cfg *config.ClientConfig) (backend.Backend, error) {
			return apiclient.New(cfg.BackendURL, apiclient.WithTimeout(cfg.Timeout)), nil
		},
	}
}

// session is filled in before any subcommand runs.
type session struct {
	cfg      *config.ClientConfig
	store    backend.Backend
	expenses *tracker.Tracker
}

// load fetches the expense list into the tracker.
func (s *session) load(ctx context.Context) ([]core.Expense, error) {
	if err := s.expenses.Refetch(ctx); err != nil {
		return nil, fmt.Errorf("failed to load expenses: %s", apiclient.Message(err))
	}
	return s.expenses.Snapshot().Expenses, nil
}

func (s *session) budget() (core.Budget, error) {
	cents, err := core.ParseDecimalToCents(s.cfg.MonthlyBudget)
	if err != nil {
		return core.Budget{}, fmt.Errorf("invalid monthly_budget %q: %w", s.cfg.MonthlyBudget, err)
	}
	return core.Budget{MonthlyLimit: core.Money{Cents: cents}, WarningRatio: s.cfg.BudgetWarningRatio}, nil
}

func newRootCmd(opts *options) *cobra.Command {
	s := &session{}

	root := &cobra.Command{
		Use:   "expensectl",
		Short: "Manage expenses on a Smart Expense backend",
		Long: `expensectl lists, records and summarizes expenses stored on a Smart Expense
backend. The backend URL is read from BACKEND_URL or from the config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClientConfig(opts.configPath)
			if err != nil {
				return err
			}
			logger := applog.New(applog.Config{
				Level:     applog.ParseLevel(cfg.LogLevel),
				Format:    applog.FormatText,
				Component: applog.ComponentApp,
				Output:    cmd.ErrOrStderr(),
			})
			store, err := opts.connect(cfg)
			if err != nil {
				return fmt.Errorf("failed to connect to backend: %w", err)
			}
			s.cfg = cfg
			s.store = store
			s.expenses = tracker.New(store, tracker.WithLogger(logger.WithComponent(applog.ComponentTracker)))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", opts.configPath, "path to the TOML config file")

	root.AddCommand(
		newListCmd(s),
		newAddCmd(s),
		newEditCmd(s),
		newDeleteCmd(s),
		newSummaryCmd(s),
		newAlertsCmd(s),
		newMonthsCmd(s),
	)
	return root
}
