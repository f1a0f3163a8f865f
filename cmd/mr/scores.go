package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"meridian/internal/engine"
)

func scoreCmd() *cobra.Command {
	s := &cobra.Command{Use: "score", Short: "Show or recalculate RAG scores"}
	s.AddCommand(&cobra.Command{
		Use:   "show <workstream-id>",
		Short: "Show the current score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sc, err := e.Repo.GetScore(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sc)
				}
				renderScore(sc)
				return nil
			})
		},
	})
	s.AddCommand(&cobra.Command{
		Use:   "recalc <workstream-id>",
		Short: "Recalculate the score now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sc, err := e.Recalculate(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sc)
				}
				renderScore(sc)
				return nil
			})
		},
	})
	return s
}

func historyCmd() *cobra.Command {
	var since string
	var limit int
	cmd := &cobra.Command{
		Use:   "history <workstream-id>",
		Short: "Score history, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.History(ctx, args[0], since, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				renderHistory(items)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "only snapshots on or after YYYY-MM-DD")
	cmd.Flags().IntVar(&limit, "limit", 0, "max snapshots")
	return cmd
}

func portfolioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Active workstreams, red first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				view, err := e.Portfolio(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(view)
				}
				renderPortfolio(view)
				return nil
			})
		},
	}
}

func overdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "Incomplete milestones past their due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Overdue(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				renderOverdue(items)
				return nil
			})
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Recalculate every active workstream once",
		Long:  "Sweep rescores all active workstreams so staleness is refreshed. 'mr serve' runs it on scoring.sweep_interval.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Sweep(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("evaluated %d, not configured %d, failed %d, stale %d\n", res.Evaluated, res.NotConfigured, res.Failed, res.Stale)
				return nil
			})
		},
	}
}
