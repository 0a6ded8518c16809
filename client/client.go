// Package client is the Go SDK for the companion service HTTP API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/chrislearn/mofa-studio/internal/model"
	"github.com/chrislearn/mofa-studio/internal/services"
)

// Request and response shapes shared with the service.
type (
	NewItem      = services.NewItem
	NewTurn      = services.NewTurn
	ImportResult = services.ImportResult
)

// ListItemsOptions filters ListItems.
type ListItemsOptions struct {
	Category model.Category
	DueOnly  bool
	Limit    int
}

// HealthStatus is the body of GET /api/health.
type HealthStatus struct {
	Status     string          `json:"status"`
	Components map[string]bool `json:"components"`
	Timestamp  string          `json:"timestamp"`
}

const defaultTimeout = 30 * time.Second

// Client talks to one companion service.
type Client struct {
	r *resty.Client
}

// New constructs a Client for baseURL, e.g. http://localhost:11545.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL cannot be empty")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}
	c := &Client{r: resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(defaultTimeout).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			code := resp.StatusCode()
			return code == http.StatusTooManyRequests || code >= 500
		}),
	}
	if debugLoggingRequested() {
		opts = append(opts, WithDebugLogging(true))
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// do executes req and decodes a 2xx body into out when out is non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) (*resty.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := c.r.R().SetContext(ctx).SetError(&APIError{})
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() {
		apiErr, ok := resp.Error().(*APIError)
		if !ok || apiErr == nil {
			apiErr = &APIError{}
		}
		apiErr.StatusCode = resp.StatusCode()
		apiErr.Op = op
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		return resp, apiErr
	}
	return resp, nil
}

// Health returns the service health report.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if _, err := c.do(ctx, "health", http.MethodGet, "/api/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Select starts a practice session. Zero bounds use the service defaults.
func (c *Client) Select(ctx context.Context, minCount, maxCount int) (*model.SessionSelection, error) {
	var out model.SessionSelection
	body := map[string]int{"minCount": minCount, "maxCount": maxCount}
	if _, err := c.do(ctx, "select", http.MethodPost, "/api/selections", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordOutcome applies one practice outcome and returns the updated item.
func (c *Client) RecordOutcome(ctx context.Context, itemID int64, sessionID string, outcome model.Outcome) (*model.VocabularyItem, error) {
	var out model.VocabularyItem
	body := map[string]string{"sessionId": sessionID, "outcome": string(outcome)}
	if _, err := c.do(ctx, "record outcome", http.MethodPost, itemPath(itemID)+"/outcomes", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func itemPath(id int64) string { return "/api/items/" + strconv.FormatInt(id, 10) }

func sessionPath(id string) string { return "/api/sessions/" + url.PathEscape(id) }
