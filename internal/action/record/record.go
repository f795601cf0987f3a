// Package record holds the action handlers that mutate entity records
// through the RecordWriter collaborator.
package record

import (
	"context"
	"fmt"

	"github.com/paperledger/workflow/internal/action"
	"github.com/paperledger/workflow/internal/transport"
)

// UpdateAction handles "update_record" actions.
type UpdateAction struct {
	writer transport.RecordWriter
}

func NewUpdate(writer transport.RecordWriter) *UpdateAction {
	return &UpdateAction{writer: writer}
}

func (a *UpdateAction) Type() string { return "update_record" }

func (a *UpdateAction) Validate(config map[string]any) error {
	if entity, _ := config["entity"].(string); entity == "" {
		return fmt.Errorf("update_record: 'entity' is required")
	}
	if _, ok := config["fields"].(map[string]any); !ok {
		return fmt.Errorf("update_record: 'fields' object is required")
	}
	return nil
}

func (a *UpdateAction) Execute(ctx context.Context, config, data map[string]any) (*action.Outcome, error) {
	if err := a.writer.UpdateRecord(ctx, config, data); err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}
	entity, _ := config["entity"].(string)
	return &action.Outcome{
		Success: true,
		Message: fmt.Sprintf("Record update applied to %s", entity),
	}, nil
}

// CreateAction handles "create_record" actions.
type CreateAction struct {
	writer transport.RecordWriter
}

func NewCreate(writer transport.RecordWriter) *CreateAction {
	return &CreateAction{writer: writer}
}

func (a *CreateAction) Type() string { return "create_record" }

func (a *CreateAction) Validate(config map[string]any) error {
	if entity, _ := config["entity"].(string); entity == "" {
		return fmt.Errorf("create_record: 'entity' is required")
	}
	return nil
}

func (a *CreateAction) Execute(ctx context.Context, config, data map[string]any) (*action.Outcome, error) {
	if err := a.writer.CreateRecord(ctx, config, data); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	entity, _ := config["entity"].(string)
	return &action.Outcome{
		Success: true,
		Message: fmt.Sprintf("Record created for %s", entity),
	}, nil
}
