package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chrislearn/mofa-studio/client"
	"github.com/chrislearn/mofa-studio/internal/model"
)

func (a *app) newSelectCmd() *cobra.Command {
	var minCount, maxCount int
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Start a practice session and print the selected words",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *client.Client) error {
				sel, err := c.Select(ctx, minCount, maxCount)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "session %s (%d words)\n", sel.SessionID, len(sel.Items))
				for _, it := range sel.Items {
					fmt.Fprintf(out, "  %d\t%s\t%s\tdifficulty=%d\n", it.ItemID, it.Text, it.Category, it.DifficultyLevel)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&minCount, "min", 0, "Minimum number of words (0 = service default)")
	cmd.Flags().IntVar(&maxCount, "max", 0, "Maximum number of words (0 = service default)")
	return cmd
}

func (a *app) newOutcomeCmd() *cobra.Command {
	var (
		itemID    int64
		sessionID string
		outcome   string
	)
	cmd := &cobra.Command{
		Use:   "outcome",
		Short: "Record a practice outcome (success, failure or neutral) for an item",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := model.ParseOutcome(outcome)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, c *client.Client) error {
				it, err := c.RecordOutcome(ctx, itemID, sessionID, o)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: interval=%dd next=%s difficulty=%d\n",
					it.Text, it.ReviewIntervalDays, it.NextReviewTime.Format("2006-01-02 15:04"), it.DifficultyLevel)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&itemID, "item", 0, "Item ID (required)")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID (required)")
	cmd.Flags().StringVar(&outcome, "outcome", "", "success | failure | neutral (required)")
	_ = cmd.MarkFlagRequired("item")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("outcome")
	return cmd
}

func (a *app) newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *client.Client) error {
				h, err := c.Health(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), h)
			})
		},
	}
}
