package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/audit"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/engine"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
)

func userOrActor(user string) string {
	if user != "" {
		return user
	}
	return actorID()
}

func timerCmd() *cobra.Command {
	t := &cobra.Command{
		Use:   "timer",
		Short: "Running timers",
		Long:  "One timer per person. Stopping it records a time entry dated on the day it started.",
	}
	var opts engine.StartTimerOptions
	start := &cobra.Command{
		Use:   "start",
		Short: "Start a timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.UserID = userOrActor(opts.UserID)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				timer, err := e.StartTimer(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(timer)
				}
				fmt.Printf("timer started for %s on %s at %s\n", timer.UserID, timer.ProjectID, timer.StartedAt)
				return nil
			})
		},
	}
	start.Flags().StringVar(&opts.UserID, "user", "", "user id (defaults to --actor-id)")
	start.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	start.Flags().StringVar(&opts.TaskID, "task", "", "task id")
	start.Flags().StringVar(&opts.Description, "description", "", "description")
	_ = start.MarkFlagRequired("project")
	t.AddCommand(start)

	var stopUser string
	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entry, err := e.StopTimer(ctx, userOrActor(stopUser))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entry)
				}
				fmt.Printf("recorded %d min on %s (%s)\n", entry.DurationMinutes, entry.ProjectID, entry.Date)
				return nil
			})
		},
	}
	stop.Flags().StringVar(&stopUser, "user", "", "user id (defaults to --actor-id)")
	t.AddCommand(stop)

	var statusUser string
	status := &cobra.Command{
		Use:   "status",
		Short: "Show the running timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				timer, err := e.ActiveTimer(ctx, userOrActor(statusUser))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(timer)
				}
				if timer == nil {
					fmt.Println("no timer running")
					return nil
				}
				fmt.Printf("%s on %s since %s\n", timer.UserID, timer.ProjectID, timer.StartedAt)
				return nil
			})
		},
	}
	status.Flags().StringVar(&statusUser, "user", "", "user id (defaults to --actor-id)")
	t.AddCommand(status)
	return t
}

func entryCmd() *cobra.Command {
	en := &cobra.Command{Use: "entry", Short: "Time entries"}

	var opts engine.ManualEntryOptions
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a manual time entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.UserID = userOrActor(opts.UserID)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entry, err := e.AddManualEntry(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	add.Flags().StringVar(&opts.UserID, "user", "", "user id (defaults to --actor-id)")
	add.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	add.Flags().StringVar(&opts.TaskID, "task", "", "task id")
	add.Flags().StringVar(&opts.Date, "date", "", "date YYYY-MM-DD")
	add.Flags().IntVar(&opts.DurationMinutes, "minutes", 0, "duration in minutes")
	add.Flags().StringVar(&opts.Description, "description", "", "description")
	_ = add.MarkFlagRequired("project")
	_ = add.MarkFlagRequired("date")
	_ = add.MarkFlagRequired("minutes")
	en.AddCommand(add)

	en.AddCommand(&cobra.Command{
		Use:   "delete <entry-id>",
		Short: "Delete a time entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteEntry(ctx, args[0], actorID()); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	})

	var f repo.TimeEntryFilters
	list := &cobra.Command{
		Use:   "list",
		Short: "List time entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEntries(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Date", "User", "Project", "Task", "Min", "Source"})
				total := 0
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Date, it.UserID, it.ProjectID, deref(it.TaskID), it.DurationMinutes, it.Source})
					if it.DeletedAt == nil {
						total += it.DurationMinutes
					}
				}
				tw.AppendFooter(table.Row{"", "", "", "", "Total", total, ""})
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&f.UserID, "user", "", "user filter")
	list.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	list.Flags().StringVar(&f.TaskID, "task", "", "task filter")
	list.Flags().StringVar(&f.From, "from", "", "from date YYYY-MM-DD")
	list.Flags().StringVar(&f.To, "to", "", "to date YYYY-MM-DD")
	list.Flags().BoolVar(&f.IncludeDeleted, "include-deleted", false, "include deleted entries")
	list.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	en.AddCommand(list)
	return en
}

func timesheetCmd() *cobra.Command {
	var user, week string
	cmd := &cobra.Command{
		Use:   "timesheet",
		Short: "Weekly timesheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				monday, err := weekFlag(e, week)
				if err != nil {
					return err
				}
				w, err := e.GetWeeklyTimesheet(ctx, userOrActor(user), monday)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(w)
				}
				days := make([]string, 0, len(w.DayTotals))
				for d := range w.DayTotals {
					days = append(days, d)
				}
				sort.Strings(days)
				header := table.Row{"Project"}
				for _, d := range days {
					header = append(header, d)
				}
				header = append(header, "Total")
				tw := newTable(header)
				for _, p := range w.Projects {
					row := table.Row{p.ProjectID}
					for _, d := range days {
						row = append(row, p.Days[d])
					}
					tw.AppendRow(append(row, p.Total))
				}
				footer := table.Row{"Total"}
				for _, d := range days {
					footer = append(footer, w.DayTotals[d])
				}
				tw.AppendFooter(append(footer, w.WeekTotal))
				tw.SetTitle(fmt.Sprintf("%s %s..%s", w.UserID, w.WeekStart, w.WeekEnd))
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id (defaults to --actor-id)")
	cmd.Flags().StringVar(&week, "week", "", "any date in the week, YYYY-MM-DD")
	return cmd
}

func utilizationCmd() *cobra.Command {
	var user, week string
	cmd := &cobra.Command{
		Use:   "utilization",
		Short: "Weekly utilization against capacity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				monday, err := weekFlag(e, week)
				if err != nil {
					return err
				}
				u, err := e.GetWeeklyUtilization(ctx, userOrActor(user), monday)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(u)
				}
				fmt.Printf("%s week of %s: %d/%d min (%d%%)\n", u.UserID, u.WeekStart, u.TrackedMinutes, u.CapacityMinutes, u.UtilizationPct)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id (defaults to --actor-id)")
	cmd.Flags().StringVar(&week, "week", "", "any date in the week, YYYY-MM-DD")
	return cmd
}

func alertsCmd() *cobra.Command {
	var user, week string
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Workdays without tracked time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				monday, err := weekFlag(e, week)
				if err != nil {
					return err
				}
				days, err := e.GetMissingDayAlerts(ctx, userOrActor(user), monday)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(days)
				}
				if len(days) == 0 {
					fmt.Println("no missing days")
					return nil
				}
				for _, d := range days {
					fmt.Println(d)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id (defaults to --actor-id)")
	cmd.Flags().StringVar(&week, "week", "", "any date in the week, YYYY-MM-DD")
	return cmd
}

func costsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "costs <project-id>",
		Short: "Project cost rollup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.GetProjectCostMetrics(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(m)
				}
				tw := newTable(table.Row{"Metric", "Value"})
				tw.AppendRows([]table.Row{
					{"tracked minutes", m.TrackedMinutes},
					{"tracked cost", fmt.Sprintf("%.2f", m.TrackedCost)},
					{"planned minutes", m.PlannedMinutes},
					{"planned cost", fmt.Sprintf("%.2f", m.PlannedCost)},
					{"revenue", fmt.Sprintf("%.2f", m.Revenue)},
					{"margin %", fmt.Sprintf("%.2f", m.MarginReal)},
					{"over budget", m.IsOverBudget},
				})
				tw.SetTitle(m.ProjectID)
				tw.Render()
				return nil
			})
		},
	}
}

func auditCmd() *cobra.Command {
	var f audit.Filter
	var typ string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Status change history",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.EntityType = domain.EntityType(typ)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.GetAuditLog(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Timestamp", "Entity", "From", "To", "Actor"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Timestamp, string(it.EntityType) + " " + it.EntityID, it.FromState, it.ToState, it.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "entity type filter")
	cmd.Flags().StringVar(&f.EntityID, "entity", "", "entity id filter")
	cmd.Flags().StringVar(&f.ActorID, "actor", "", "actor filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}
