package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/engine"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
)

func entityCmd() *cobra.Command {
	ent := &cobra.Command{
		Use:   "entity",
		Short: "Manage workflow entities",
		Long:  "Projects, tasks, deliverables, proposals, meetings and decisions. Status only changes through 'entity transition'.",
	}
	ent.AddCommand(entityCreateCmd())
	ent.AddCommand(entityGetCmd())
	ent.AddCommand(entityListCmd())
	ent.AddCommand(entityFieldsCmd())
	ent.AddCommand(entityTransitionCmd())
	return ent
}

func entityCreateCmd() *cobra.Command {
	var opts engine.EntityCreateOptions
	var typ, status string
	var priority int
	var fields []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFieldArgs(fields)
			if err != nil {
				return err
			}
			opts.Type = domain.EntityType(typ)
			opts.Status = domain.Status(status)
			opts.Fields = f
			opts.ActorID = actorID()
			if cmd.Flags().Changed("priority") {
				opts.Priority = &priority
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ent, err := e.CreateEntity(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(ent)
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "entity type (project, task, deliverable, proposal, meeting, decision)")
	cmd.Flags().StringVar(&opts.ID, "id", "", "entity id (generated when empty)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&status, "status", "", "initial status (machine default when empty)")
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "parent project id")
	cmd.Flags().StringVar(&opts.OwnerID, "owner", "", "owner id")
	cmd.Flags().StringVar(&opts.Phase, "phase", "", "phase")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date YYYY-MM-DD")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "extra field key=value (repeatable)")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func entityGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ent, err := e.GetEntity(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(ent)
			})
		},
	}
}

func entityListCmd() *cobra.Command {
	var typ, status string
	var f repo.EntityFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entities",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Type = domain.EntityType(typ)
			f.Status = domain.Status(status)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEntities(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Type", "Title", "Status", "Project", "Owner", "Due"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Type, it.Title, it.Status, deref(it.ProjectID), deref(it.OwnerID), deref(it.DueDate)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "type filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	cmd.Flags().StringVar(&f.OwnerID, "owner", "", "owner filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 100, "max rows")
	return cmd
}

func entityFieldsCmd() *cobra.Command {
	var set, unset []string
	cmd := &cobra.Command{
		Use:   "fields <id>",
		Short: "Merge or remove entity fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseFieldArgs(set)
			if err != nil {
				return err
			}
			for _, k := range unset {
				patch[strings.TrimSpace(k)] = nil
			}
			if len(patch) == 0 {
				return fmt.Errorf("nothing to change; use --set or --unset")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ent, err := e.UpdateFields(ctx, args[0], patch, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(ent)
			})
		},
	}
	cmd.Flags().StringArrayVar(&set, "set", nil, "field key=value (repeatable)")
	cmd.Flags().StringArrayVar(&unset, "unset", nil, "field key to remove (repeatable)")
	return cmd
}

func entityTransitionCmd() *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "transition <id> <status>",
		Short: "Move an entity to another status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entityType := domain.EntityType(typ)
				if entityType == "" {
					current, err := e.GetEntity(ctx, args[0])
					if err != nil {
						return err
					}
					entityType = current.Type
				}
				ent, err := e.Transition(ctx, entityType, args[0], domain.Status(args[1]), actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ent)
				}
				fmt.Printf("%s %s -> %s\n", ent.Type, ent.ID, ent.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "entity type (read from the entity when empty)")
	return cmd
}

func machineCmd() *cobra.Command {
	m := &cobra.Command{Use: "machine", Short: "Status machines"}
	m.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List status machines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				infos := e.MachineInfos()
				if viper.GetBool("json") {
					return printJSON(infos)
				}
				tw := newTable(table.Row{"Type", "From", "To"})
				for _, info := range infos {
					for _, from := range info.States {
						targets := make([]string, 0, len(info.Transitions[from]))
						for _, to := range info.Transitions[from] {
							targets = append(targets, string(to))
						}
						label := string(from)
						if from == info.Initial {
							label += " (initial)"
						}
						tw.AppendRow(table.Row{info.Type, label, strings.Join(targets, ", ")})
					}
					tw.AppendSeparator()
				}
				tw.Render()
				return nil
			})
		},
	})
	return m
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <project-id>",
		Short: "Show project status",
		Long:  "Project status with task and deliverable counts per status.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.GetEntity(ctx, args[0])
				if err != nil {
					return err
				}
				if p.Type != domain.EntityProject {
					return fmt.Errorf("%s is a %s, not a project", p.ID, p.Type)
				}
				tasks, err := e.Repo.CountByStatus(ctx, domain.EntityTask, p.ID)
				if err != nil {
					return err
				}
				deliverables, err := e.Repo.CountByStatus(ctx, domain.EntityDeliverable, p.ID)
				if err != nil {
					return err
				}
				out := map[string]any{
					"project_id":         p.ID,
					"status":             p.Status,
					"playbook":           p.PlaybookKey,
					"task_counts":        tasks,
					"deliverable_counts": deliverables,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Project: %s %q (%s)\n", p.ID, p.Title, p.Status)
				fmt.Println("Tasks:")
				for _, s := range sortedStatuses(tasks) {
					fmt.Printf("  %s: %d\n", s, tasks[s])
				}
				fmt.Println("Deliverables:")
				for _, s := range sortedStatuses(deliverables) {
					fmt.Printf("  %s: %d\n", s, deliverables[s])
				}
				return nil
			})
		},
	}
	return cmd
}

func playbookCmd() *cobra.Command {
	pb := &cobra.Command{Use: "playbook", Short: "Project playbooks"}
	pb.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List playbooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items := e.Playbooks()
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"Key", "Name", "Phases", "Tasks", "Deliverables"})
				for _, p := range items {
					tasks := 0
					for _, ph := range p.Phases {
						tasks += len(ph.Tasks)
					}
					tw.AppendRow(table.Row{p.Key, p.Name, len(p.Phases), tasks, len(p.Deliverables)})
				}
				tw.Render()
				return nil
			})
		},
	})
	pb.AddCommand(&cobra.Command{
		Use:   "apply <project-id> <playbook>",
		Short: "Seed a project from a playbook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ApplyPlaybook(ctx, args[0], args[1], actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("applied %s to %s: %d tasks, %d deliverables\n", res.PlaybookKey, res.ProjectID, res.TaskCount, res.DeliverableCount)
				return nil
			})
		},
	})
	return pb
}

func deliverableCmd() *cobra.Command {
	d := &cobra.Command{
		Use:   "deliverable",
		Short: "Deliverable versions",
		Long:  "Submit a version for approval, then approve it or request a revision. A revision opens the next draft.",
	}
	var description string
	submit := &cobra.Command{
		Use:   "submit <deliverable-id>",
		Short: "Submit the current version for approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.SubmitVersion(ctx, args[0], description, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
	submit.Flags().StringVar(&description, "description", "", "version description")
	d.AddCommand(submit)

	d.AddCommand(&cobra.Command{
		Use:   "approve <deliverable-id> <version>",
		Short: "Approve a pending version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ent, err := e.ApproveVersion(ctx, args[0], args[1], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(ent)
			})
		},
	})

	var reason string
	revise := &cobra.Command{
		Use:   "revise <deliverable-id> <version>",
		Short: "Request a revision of a pending version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ent, err := e.RequestRevision(ctx, args[0], args[1], reason, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(ent)
			})
		},
	}
	revise.Flags().StringVar(&reason, "reason", "", "what needs to change")
	_ = revise.MarkFlagRequired("reason")
	d.AddCommand(revise)
	return d
}

func decisionCmd() *cobra.Command {
	dec := &cobra.Command{Use: "decision", Short: "Decisions"}
	var f engine.TaskFields
	var priority int
	task := &cobra.Command{
		Use:   "task <decision-id>",
		Short: "Create a task from a decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("priority") {
				f.Priority = &priority
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTaskFromDecision(ctx, args[0], f, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	task.Flags().StringVar(&f.Title, "title", "", "task title")
	task.Flags().StringVar(&f.ProjectID, "project", "", "project id (defaults to the decision's)")
	task.Flags().StringVar(&f.OwnerID, "owner", "", "owner id")
	task.Flags().StringVar(&f.DueDate, "due", "", "due date YYYY-MM-DD")
	task.Flags().IntVar(&priority, "priority", 0, "priority")
	task.Flags().StringVar(&f.Description, "description", "", "description")
	_ = task.MarkFlagRequired("title")
	dec.AddCommand(task)
	return dec
}
