package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/chrislearn/mofa-studio/internal/model"
)

func (c *Client) CreateItem(ctx context.Context, in NewItem) (*model.VocabularyItem, error) {
	var out model.VocabularyItem
	if _, err := c.do(ctx, "create item", http.MethodPost, "/api/items", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ImportItems seeds items in bulk; existing (text, category) pairs are skipped.
func (c *Client) ImportItems(ctx context.Context, items []NewItem) (*ImportResult, error) {
	var out ImportResult
	body := map[string]interface{}{"items": items}
	if _, err := c.do(ctx, "import items", http.MethodPost, "/api/items/import", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListItems(ctx context.Context, opts ListItemsOptions) ([]model.VocabularyItem, error) {
	q := url.Values{}
	if opts.Category != "" {
		q.Set("category", string(opts.Category))
	}
	if opts.DueOnly {
		q.Set("due", "true")
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/api/items"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Items []model.VocabularyItem `json:"items"`
	}
	if _, err := c.do(ctx, "list items", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) GetItem(ctx context.Context, itemID int64) (*model.VocabularyItem, error) {
	var out model.VocabularyItem
	if _, err := c.do(ctx, "get item", http.MethodGet, itemPath(itemID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ItemHistory returns the item's practice log, oldest first.
func (c *Client) ItemHistory(ctx context.Context, itemID int64) ([]model.PracticeLogEntry, error) {
	var out struct {
		Entries []model.PracticeLogEntry `json:"entries"`
	}
	if _, err := c.do(ctx, "item history", http.MethodGet, itemPath(itemID)+"/history", nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}
