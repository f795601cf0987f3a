package notify

import (
	"context"
	"fmt"

	"github.com/paperledger/workflow/internal/action"
	"github.com/paperledger/workflow/internal/transport"
)

// SMSAction handles "send_sms" actions.
type SMSAction struct {
	sender transport.SMSSender
}

func NewSMS(sender transport.SMSSender) *SMSAction {
	return &SMSAction{sender: sender}
}

func (a *SMSAction) Type() string { return "send_sms" }

func (a *SMSAction) Validate(config map[string]any) error {
	msg, _ := config["message"].(string)
	tmpl, _ := config["template"].(string)
	if msg == "" && tmpl == "" {
		return fmt.Errorf("send_sms: one of 'message' or 'template' is required")
	}
	return nil
}

func (a *SMSAction) Execute(ctx context.Context, config, data map[string]any) (*action.Outcome, error) {
	if err := a.sender.SendSMS(ctx, config, data); err != nil {
		return nil, fmt.Errorf("send sms: %w", err)
	}
	return &action.Outcome{Success: true, Message: "SMS dispatched"}, nil
}
