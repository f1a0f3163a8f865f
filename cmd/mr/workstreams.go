package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"meridian/internal/engine"
	"meridian/internal/rag"
	"meridian/internal/repo"
)

func workstreamCmd() *cobra.Command {
	ws := &cobra.Command{Use: "workstream", Aliases: []string{"ws"}, Short: "Manage workstreams"}
	ws.AddCommand(workstreamCreateCmd())
	ws.AddCommand(workstreamListCmd())
	ws.AddCommand(workstreamShowCmd())
	ws.AddCommand(workstreamUpdateCmd())
	ws.AddCommand(workstreamArchiveCmd(true))
	ws.AddCommand(workstreamArchiveCmd(false))
	return ws
}

func workstreamCreateCmd() *cobra.Command {
	var opts engine.WorkstreamCreateOptions
	var budget float64
	answers := map[string]*string{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workstream, optionally with its wizard profile",
		Long:  "Create a workstream. Pass every profile flag to configure scoring right away; otherwise it stays unscored until 'mr profile set'.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.PlannedBudget = optionalFloat(cmd, "budget", budget)
			opts.ActorID = actorID()
			p, ok, err := profileFromFlags(cmd, answers)
			if err != nil {
				return err
			}
			if ok {
				opts.Profile = &p
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.CreateWorkstream(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "workstream id (generated when empty)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.StartDate, "start", "", "start date YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.EndDate, "end", "", "end date YYYY-MM-DD")
	cmd.Flags().Float64Var(&budget, "budget", 0, "planned budget")
	addProfileFlags(cmd, answers)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func workstreamListCmd() *cobra.Command {
	var f repo.WorkstreamFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workstreams",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListWorkstreams(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				renderWorkstreams(items)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&f.IncludeArchived, "all", false, "include archived workstreams")
	cmd.Flags().StringVar(&f.Phase, "phase", "", "phase filter")
	return cmd
}

func workstreamShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a workstream with its profile, score and inputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.DescribeWorkstream(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(d)
				}
				renderDetail(d)
				return nil
			})
		},
	}
}

func workstreamUpdateCmd() *cobra.Command {
	var name, desc, start, end string
	var budget float64
	var clearBudget bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a workstream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.WorkstreamUpdateOptions{
				ID:            args[0],
				Name:          optionalString(cmd, "name", name),
				Description:   optionalString(cmd, "description", desc),
				StartDate:     optionalString(cmd, "start", start),
				EndDate:       optionalString(cmd, "end", end),
				PlannedBudget: optionalFloat(cmd, "budget", budget),
				ClearBudget:   clearBudget,
				ActorID:       actorID(),
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.UpdateWorkstream(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&start, "start", "", "start date YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "end date YYYY-MM-DD")
	cmd.Flags().Float64Var(&budget, "budget", 0, "planned budget")
	cmd.Flags().BoolVar(&clearBudget, "clear-budget", false, "remove the planned budget")
	return cmd
}

func workstreamArchiveCmd(archive bool) *cobra.Command {
	use, short := "archive <id>", "Archive a workstream"
	if !archive {
		use, short = "restore <id>", "Restore an archived workstream"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.ArchiveWorkstream(ctx, args[0], archive, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
}

func profileCmd() *cobra.Command {
	p := &cobra.Command{
		Use:   "profile",
		Short: "Configure the scoring wizard",
		Long:  "The wizard profile decides the thresholds, weights and floors a workstream is scored with. Run 'mr profile questions' for the allowed answers.",
	}
	p.AddCommand(profileSetCmd())
	p.AddCommand(profileShowCmd())
	p.AddCommand(profileQuestionsCmd())
	return p
}

func profileSetCmd() *cobra.Command {
	answers := map[string]*string{}
	cmd := &cobra.Command{
		Use:   "set <workstream-id>",
		Short: "Set all wizard answers and rescore",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := profileFromFlags(cmd, answers)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				saved, err := e.SetProfile(ctx, args[0], p, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(saved)
			})
		},
	}
	addProfileFlags(cmd, answers)
	return cmd
}

func profileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <workstream-id>",
		Short: "Show wizard answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProfile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func profileQuestionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "questions",
		Short: "List wizard questions and allowed answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetBool("json") {
				return printJSON(rag.Questions)
			}
			renderQuestions(rag.Questions)
			return nil
		},
	}
}

func flagName(field string) string {
	return strings.ReplaceAll(field, "_", "-")
}

func addProfileFlags(cmd *cobra.Command, answers map[string]*string) {
	for _, q := range rag.Questions {
		v := new(string)
		answers[q.Field] = v
		cmd.Flags().StringVar(v, flagName(q.Field), "", strings.Join(q.Choices, "|"))
	}
}

// profileFromFlags reports ok=false when no profile flag was given at all.
func profileFromFlags(cmd *cobra.Command, answers map[string]*string) (rag.Profile, bool, error) {
	given := map[string]string{}
	for _, q := range rag.Questions {
		if cmd.Flags().Changed(flagName(q.Field)) {
			given[q.Field] = *answers[q.Field]
		}
	}
	if len(given) == 0 && cmd.Name() == "create" {
		return rag.Profile{}, false, nil
	}
	p, err := rag.ProfileFromAnswers(given)
	if err != nil {
		return rag.Profile{}, false, fmt.Errorf("%w (see 'mr profile questions')", err)
	}
	return p, true, nil
}
