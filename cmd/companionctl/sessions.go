package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chrislearn/mofa-studio/client"
	"github.com/chrislearn/mofa-studio/internal/model"
)

func (a *app) newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sessions", Short: "Inspect and manage practice sessions"}
	cmd.AddCommand(a.newSessionsGetCmd(), a.newSessionsListCmd(), a.newSessionsCloseCmd(), a.newSessionsTopicCmd(), a.newSessionsStatsCmd())
	return cmd
}

func (a *app) newSessionsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get SESSION_ID",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *client.Client) error {
				s, err := c.GetSession(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			})
		},
	}
}

func (a *app) newSessionsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *client.Client) error {
				sessions, err := c.ListSessions(ctx, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, s := range sessions {
					state := "open"
					if s.EndTime != nil {
						state = "closed"
					}
					topic := "-"
					if s.Topic != nil {
						topic = *s.Topic
					}
					fmt.Fprintf(out, "%s\t%s\t%s\twords=%d\texchanges=%d\t%s\n",
						s.SessionID, s.StartTime.Format("2006-01-02 15:04"), state, len(s.TargetItemIDs), s.ExchangeCount, topic)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of sessions")
	return cmd
}

func (a *app) newSessionsCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close SESSION_ID",
		Short: "End a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *client.Client) error {
				s, err := c.CloseSession(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s closed after %d exchanges\n", s.SessionID, s.ExchangeCount)
				return nil
			})
		},
	}
}

func (a *app) newSessionsTopicCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topic SESSION_ID TOPIC",
		Short: "Set the conversation topic of a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *client.Client) error {
				if err := c.SetTopic(ctx, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Topic set for %s\n", args[0])
				return nil
			})
		},
	}
}

func (a *app) newSessionsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats SESSION_ID",
		Short: "Show turn, annotation and outcome counts for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *client.Client) error {
				st, err := c.SessionStats(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	}
}

func (a *app) newAnalyzeCmd() *cobra.Command {
	var async bool
	cmd := &cobra.Command{
		Use:   "analyze FILE.json",
		Short: "Submit an analysis result read from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var res model.AnalysisResult
			if err := json.Unmarshal(data, &res); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			return a.run(cmd, func(ctx context.Context, c *client.Client) error {
				if async {
					if err := c.EnqueueAnalysis(ctx, &res); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Analysis queued")
					return nil
				}
				out, err := c.SubmitAnalysis(ctx, &res)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "Queue the analysis on the service dispatcher")
	return cmd
}
