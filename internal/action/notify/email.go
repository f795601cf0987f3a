// Package notify holds the action handlers that forward to outbound
// messaging transports: email, SMS, and webhooks.
package notify

import (
	"context"
	"fmt"

	"github.com/paperledger/workflow/internal/action"
	"github.com/paperledger/workflow/internal/transport"
)

// EmailAction handles "send_email" actions. The handler only routes and
// normalizes; rendering and delivery belong to the transport.
type EmailAction struct {
	sender transport.EmailSender
}

func NewEmail(sender transport.EmailSender) *EmailAction {
	return &EmailAction{sender: sender}
}

func (a *EmailAction) Type() string { return "send_email" }

func (a *EmailAction) Validate(config map[string]any) error {
	tmpl, _ := config["template"].(string)
	subject, _ := config["subject"].(string)
	if tmpl == "" && subject == "" {
		return fmt.Errorf("send_email: one of 'template' or 'subject' is required")
	}
	return nil
}

func (a *EmailAction) Execute(ctx context.Context, config, data map[string]any) (*action.Outcome, error) {
	if err := a.sender.SendEmail(ctx, config, data); err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}
	msg := "Email dispatched"
	if tmpl, _ := config["template"].(string); tmpl != "" {
		msg = fmt.Sprintf("Email dispatched using template %q", tmpl)
	}
	return &action.Outcome{Success: true, Message: msg}, nil
}
