package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/chrislearn/mofa-studio/internal/core/turngate"
	"github.com/chrislearn/mofa-studio/internal/model"
)

// Responder receives every merged message the gate emits.
type Responder interface {
	Respond(ctx context.Context, msg *turngate.MergedMessage) error
}

// ResponderFunc adapts a function to a Responder.
type ResponderFunc func(ctx context.Context, msg *turngate.MergedMessage) error

func (f ResponderFunc) Respond(ctx context.Context, msg *turngate.MergedMessage) error {
	return f(ctx, msg)
}

// discard drops messages when no responder is configured.
var discard = ResponderFunc(func(context.Context, *turngate.MergedMessage) error { return nil })

// WebhookResponder posts merged messages as JSON to the dialogue engine.
type WebhookResponder struct {
	url    string
	client *resty.Client
}

// NewWebhookResponder builds a responder posting to url.
func NewWebhookResponder(url string, timeout time.Duration) *WebhookResponder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &WebhookResponder{url: url, client: c}
}

// Respond delivers msg. Server errors and transport failures are reported as
// unavailable so the dispatcher retries them.
func (w *WebhookResponder) Respond(ctx context.Context, msg *turngate.MergedMessage) error {
	resp, err := w.client.R().SetContext(ctx).SetBody(msg).Post(w.url)
	if err != nil {
		return model.Unavailable("responder", err)
	}
	switch {
	case resp.StatusCode() >= 500:
		return model.Unavailable("responder", fmt.Errorf("status %d", resp.StatusCode()))
	case resp.IsError():
		return model.NewValidationError("message", fmt.Sprintf("responder rejected message: status %d", resp.StatusCode()))
	}
	return nil
}

// HealthPing issues a HEAD against the webhook; any HTTP answer counts as reachable.
func (w *WebhookResponder) HealthPing(ctx context.Context) error {
	_, err := w.client.R().SetContext(ctx).Head(w.url)
	return err
}
