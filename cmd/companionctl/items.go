package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chrislearn/mofa-studio/client"
	"github.com/chrislearn/mofa-studio/internal/model"
)

func (a *app) newItemsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "items", Short: "Manage vocabulary items"}
	cmd.AddCommand(a.newItemsAddCmd(), a.newItemsListCmd(), a.newItemsGetCmd(), a.newItemsHistoryCmd(), a.newItemsImportCmd())
	return cmd
}

func parseItemID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", s)
	}
	return id, nil
}

func (a *app) newItemsAddCmd() *cobra.Command {
	var in client.NewItem
	var category string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a vocabulary item, due immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := model.ParseCategory(category)
			if err != nil {
				return err
			}
			in.Category = cat
			return a.run(cmd, func(ctx context.Context, c *client.Client) error {
				it, err := c.CreateItem(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item created: %d - %s\n", it.ItemID, it.Text)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Text, "text", "", "Word or phrase (required)")
	cmd.Flags().StringVar(&category, "category", string(model.CategoryUnfamiliar), "pronunciation | grammar | usage | unfamiliar")
	cmd.Flags().StringVar(&in.Description.Text, "description", "", "Explanation in the target language")
	cmd.Flags().StringVar(&in.Description.Translation, "translation", "", "Explanation in the learner's language")
	cmd.Flags().StringVar(&in.Context, "context", "", "Example sentence")
	cmd.Flags().IntVar(&in.DifficultyLevel, "difficulty", 0, "Difficulty 1-5 (0 = default)")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func (a *app) newItemsListCmd() *cobra.Command {
	var (
		category string
		due      bool
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List vocabulary items",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := client.ListItemsOptions{DueOnly: due, Limit: limit}
			if category != "" {
				cat, err := model.ParseCategory(category)
				if err != nil {
					return err
				}
				opts.Category = cat
			}
			return a.run(cmd, func(ctx context.Context, c *client.Client) error {
				items, err := c.ListItems(ctx, opts)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, it := range items {
					fmt.Fprintf(out, "%d\t%s\t%s\tnext=%s\tinterval=%dd\tdifficulty=%d\n",
						it.ItemID, it.Text, it.Category, it.NextReviewTime.Format("2006-01-02"), it.ReviewIntervalDays, it.DifficultyLevel)
				}
				fmt.Fprintf(out, "%d items\n", len(items))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	cmd.Flags().BoolVar(&due, "due", false, "Only items due now")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of items")
	return cmd
}

func (a *app) newItemsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ITEM_ID",
		Short: "Show one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, c *client.Client) error {
				it, err := c.GetItem(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), it)
			})
		},
	}
}

func (a *app) newItemsHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history ITEM_ID",
		Short: "Show the practice log of one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, c *client.Client) error {
				entries, err := c.ItemHistory(ctx, id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, e := range entries {
					fmt.Fprintf(out, "%s\t%s\t%s\n", e.PracticedAt.Format("2006-01-02 15:04"), e.Outcome, e.SessionID)
				}
				return nil
			})
		},
	}
}

// seedFile is the YAML layout accepted by items import.
type seedFile struct {
	Items []client.NewItem `yaml:"items"`
}

func loadSeedFile(path string) ([]client.NewItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Items) == 0 {
		return nil, fmt.Errorf("%s: no items", path)
	}
	return f.Items, nil
}

func (a *app) newItemsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE.yaml",
		Short: "Bulk-seed items from a YAML file; existing items are skipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := loadSeedFile(args[0])
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, c *client.Client) error {
				res, err := c.ImportItems(ctx, items)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items (%d skipped)\n", res.Created, res.Skipped)
				return nil
			})
		},
	}
}
