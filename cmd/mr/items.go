package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"meridian/internal/engine"
)

func milestoneCmd() *cobra.Command {
	m := &cobra.Command{Use: "milestone", Short: "Manage milestones"}
	m.AddCommand(milestoneAddCmd())
	m.AddCommand(milestoneUpdateCmd())
	m.AddCommand(milestoneDeleteCmd())
	m.AddCommand(milestoneListCmd())
	return m
}

func milestoneAddCmd() *cobra.Command {
	var opts engine.MilestoneCreateOptions
	cmd := &cobra.Command{
		Use:   "add <workstream-id>",
		Short: "Add a milestone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.WorkstreamID = args[0]
			opts.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.AddMilestone(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "name")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.Status, "status", "", "not_started|in_progress|complete")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func milestoneUpdateCmd() *cobra.Command {
	var name, status, due string
	cmd := &cobra.Command{
		Use:   "update <milestone-id>",
		Short: "Update a milestone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.MilestoneUpdateOptions{
				ID:      args[0],
				Name:    optionalString(cmd, "name", name),
				Status:  optionalString(cmd, "status", status),
				DueDate: optionalString(cmd, "due", due),
				ActorID: actorID(),
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.UpdateMilestone(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&status, "status", "", "not_started|in_progress|complete")
	cmd.Flags().StringVar(&due, "due", "", "due date YYYY-MM-DD")
	return cmd
}

func milestoneDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <milestone-id>",
		Short: "Delete a milestone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteMilestone(ctx, args[0], actorID()); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func milestoneListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <workstream-id>",
		Short: "List milestones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.Repo.GetWorkstream(ctx, args[0]); err != nil {
					return err
				}
				items, err := e.Repo.ListMilestones(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				renderMilestones(items)
				return nil
			})
		},
	}
}

func spendCmd() *cobra.Command {
	s := &cobra.Command{Use: "spend", Short: "Record actual spend"}
	s.AddCommand(spendAddCmd())
	s.AddCommand(spendListCmd())
	s.AddCommand(spendDeleteCmd())
	return s
}

func spendAddCmd() *cobra.Command {
	var opts engine.SpendCreateOptions
	cmd := &cobra.Command{
		Use:   "add <workstream-id>",
		Short: "Add a spend entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.WorkstreamID = args[0]
			opts.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.AddSpend(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().Float64Var(&opts.Amount, "amount", 0, "amount spent")
	cmd.Flags().StringVar(&opts.SpentOn, "on", "", "date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "note")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func spendListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <workstream-id>",
		Short: "List spend entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.Repo.GetWorkstream(ctx, args[0]); err != nil {
					return err
				}
				items, err := e.Repo.ListSpend(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				renderSpend(items)
				return nil
			})
		},
	}
}

func spendDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <spend-id>",
		Short: "Delete a spend entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteSpend(ctx, args[0], actorID()); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func blockerCmd() *cobra.Command {
	b := &cobra.Command{Use: "blocker", Short: "Raise and resolve blockers"}
	b.AddCommand(blockerRaiseCmd())
	b.AddCommand(blockerResolveCmd())
	b.AddCommand(blockerListCmd())
	return b
}

func blockerRaiseCmd() *cobra.Command {
	var opts engine.BlockerCreateOptions
	cmd := &cobra.Command{
		Use:   "raise <workstream-id>",
		Short: "Raise a blocker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.WorkstreamID = args[0]
			opts.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.RaiseBlocker(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Description, "description", "", "what is blocking")
	cmd.Flags().StringVar(&opts.DateRaised, "raised", "", "date raised YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func blockerResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <blocker-id>",
		Short: "Resolve a blocker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.ResolveBlocker(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
}

func blockerListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list <workstream-id>",
		Short: "List blockers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.Repo.GetWorkstream(ctx, args[0]); err != nil {
					return err
				}
				items, err := e.Repo.ListBlockers(ctx, args[0], status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				renderBlockers(items)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "open|resolved")
	return cmd
}
