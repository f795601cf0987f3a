package action

import (
	"context"

	"github.com/paperledger/workflow/internal/workflow"
)

// Outcome is the normalized result of dispatching a single action. Every
// outcome echoes back the action's type and config so a run log records what
// was attempted even when the underlying transport is stubbed.
type Outcome struct {
	Success bool           `json:"success"`
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Config  map[string]any `json:"config,omitempty"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// Handler is the interface all action implementations must satisfy.
type Handler interface {
	// Type returns the string key this handler is registered under.
	Type() string
	// Execute runs the action against the entity data and returns a result.
	Execute(ctx context.Context, config map[string]any, data map[string]any) (*Outcome, error)
	// Validate checks an action config at rule create/update time.
	Validate(config map[string]any) error
}

// failure builds a failed outcome for an action descriptor.
func failure(act workflow.Action, msg string) *Outcome {
	return &Outcome{
		Success: false,
		Type:    act.Type,
		Message: msg,
		Config:  act.Config,
	}
}
