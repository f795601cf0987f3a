package notify

import (
	"context"
	"fmt"

	"github.com/paperledger/workflow/internal/action"
	"github.com/paperledger/workflow/internal/transport"
)

// WebhookAction handles "webhook" actions.
type WebhookAction struct {
	caller transport.WebhookCaller
}

func NewWebhook(caller transport.WebhookCaller) *WebhookAction {
	return &WebhookAction{caller: caller}
}

func (a *WebhookAction) Type() string { return "webhook" }

func (a *WebhookAction) Validate(config map[string]any) error {
	if url, _ := config["url"].(string); url == "" {
		return fmt.Errorf("webhook: 'url' is required")
	}
	return nil
}

func (a *WebhookAction) Execute(ctx context.Context, config, data map[string]any) (*action.Outcome, error) {
	if err := a.caller.Call(ctx, config, data); err != nil {
		return nil, err
	}
	url, _ := config["url"].(string)
	return &action.Outcome{
		Success: true,
		Message: fmt.Sprintf("Webhook delivered to %s", url),
	}, nil
}
