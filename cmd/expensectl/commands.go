package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"smartexpense/internal/apiclient"
	"smartexpense/internal/core"
	"smartexpense/internal/ports"
	"smartexpense/internal/services"
)

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid expense id %q", arg)
	}
	return id, nil
}

// userError turns backend and validation failures into the message shown to the user.
func userError(err error) error {
	return errors.New(apiclient.Message(err))
}

func describe(e core.Expense) string {
	return fmt.Sprintf("#%d: %s %s on %s", e.ID, core.FormatCurrency(e.Amount), e.Category, core.FormatDate(e.Date))
}

func newListCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List expenses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := s.load(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No expenses yet. Add your first expense!")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tAMOUNT\tDESCRIPTION")
			for _, e := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
					e.ID, core.FormatDate(e.Date), e.Category, core.FormatCurrency(e.Amount), orDash(e.Description))
			}
			return tw.Flush()
		},
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

type submissionFlags struct {
	amount      string
	category    string
	date        string
	description string
}

func (f *submissionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.amount, "amount", "a", "", "amount in euros, e.g. 12.50")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "category: "+strings.Join(categoryNames(), ", "))
	cmd.Flags().StringVarP(&f.date, "date", "d", "", "date as YYYY-MM-DD")
	cmd.Flags().StringVar(&f.description, "description", "", "optional description")
}

// apply overrides the fields of sub whose flags were set on the command line.
func (f *submissionFlags) apply(cmd *cobra.Command, sub core.Submission) core.Submission {
	if cmd.Flags().Changed("amount") {
		sub.Amount = f.amount
	}
	if cmd.Flags().Changed("category") {
		sub.Category = f.category
	}
	if cmd.Flags().Changed("date") {
		sub.Date = f.date
	}
	if cmd.Flags().Changed("description") {
		sub.Description = f.description
	}
	return sub
}

func categoryNames() []string {
	cats := core.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return names
}

func newAddCmd(s *session) *cobra.Command {
	var flags submissionFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new expense",
		Example: `  expensectl add --amount 12.50 --category Food --description "Lunch"
  expensectl add -a 30 -c Transport -d 2026-10-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sub := flags.apply(cmd, core.Submission{Date: core.Today().String()})
			created, err := s.expenses.Add(cmd.Context(), sub)
			if err != nil {
				return userError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Added expense", describe(created))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newEditCmd(s *session) *cobra.Command {
	var flags submissionFlags
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change fields of an existing expense",
		Long:  "Change fields of an existing expense. Fields without a flag keep their current value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := s.load(cmd.Context()); err != nil {
				return err
			}
			current, ok := s.expenses.Snapshot().Find(id)
			if !ok {
				return fmt.Errorf("expense %d not found", id)
			}
			sub := flags.apply(cmd, core.SubmissionFromExpense(current))
			updated, err := s.expenses.Edit(cmd.Context(), id, sub)
			if err != nil {
				return userError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Updated expense", describe(updated))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newDeleteCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete an expense",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := s.expenses.Delete(cmd.Context(), id); err != nil {
				if errors.Is(err, core.ErrNotFound) {
					return fmt.Errorf("expense %d not found", id)
				}
				return userError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted expense #%d\n", id)
			return nil
		},
	}
}

const barChars = 20

func newSummaryCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show totals and the top categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := s.load(cmd.Context())
			if err != nil {
				return err
			}
			writeSummary(cmd.OutOrStdout(), core.Summarize(list))
			return nil
		},
	}
}

func writeSummary(out io.Writer, sum core.Summary) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total:\t%s\n", core.FormatCurrency(sum.Total))
	fmt.Fprintf(tw, "Transactions:\t%d\n", sum.Count)
	fmt.Fprintf(tw, "Average:\t%s\n", core.FormatCurrency(sum.Average))
	fmt.Fprintf(tw, "Categories:\t%d\n", len(sum.ByCategory))
	_ = tw.Flush()

	fmt.Fprintln(out)
	if len(sum.Top) == 0 {
		fmt.Fprintln(out, "No expenses to display")
		return
	}
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, c := range sum.Top {
		width := core.BarWidth(c.Amount, sum.MaxCategory)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Category, core.FormatCurrency(c.Amount), strings.Repeat("#", width*barChars/100))
	}
	_ = tw.Flush()
}

func newAlertsCmd(s *session) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Check this month's spending against the budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var reader ports.AnalyticsReader = s.store
			if local {
				budget, err := s.budget()
				if err != nil {
					return err
				}
				reader = services.NewLocalAnalytics(s.store, budget)
			}
			report, err := reader.SpendingAlert(cmd.Context())
			if err != nil {
				return userError(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Monthly total: %s of %s\n", core.FormatCurrency(report.MonthlyTotal), core.FormatCurrency(report.MonthlyLimit))
			if len(report.Alerts) == 0 {
				fmt.Fprintln(out, "No spending alerts")
				return nil
			}
			for _, a := range report.Alerts {
				fmt.Fprintf(out, "%s %s\n", a.Type.Title(), a.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "compute alerts with the budget from the config file instead of the backend's")
	return cmd
}

func newMonthsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "months",
		Short: "Show monthly and per-category totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := apiclient.FetchAnalytics(cmd.Context(), s.store)
			if err != nil {
				return userError(err)
			}

			out := cmd.OutOrStdout()
			if len(a.Monthly) == 0 {
				fmt.Fprintln(out, "No expenses to display")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "MONTH\tTOTAL")
			for _, m := range a.Monthly {
				fmt.Fprintf(tw, "%s\t%s\n", m.Month, core.FormatCurrency(m.Total))
			}
			fmt.Fprintln(tw, "\t")
			fmt.Fprintln(tw, "CATEGORY\tTOTAL")
			for _, c := range a.Categories {
				fmt.Fprintf(tw, "%s\t%s\n", c.Category, core.FormatCurrency(c.Amount))
			}
			return tw.Flush()
		},
	}
}
