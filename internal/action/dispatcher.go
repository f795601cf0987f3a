package action

import (
	"context"
	"fmt"

	"github.com/paperledger/workflow/internal/workflow"
)

// Dispatcher routes action descriptors to registered handlers and normalizes
// every result into an Outcome.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a Dispatcher over a populated registry.
func NewDispatcher(r *Registry) *Dispatcher {
	return &Dispatcher{registry: r}
}

// Dispatch runs one action. It never returns an error: an unknown type, a
// handler error, or a handler panic all become failed Outcomes, so one bad
// action in a rule's list never aborts the remaining actions.
func (d *Dispatcher) Dispatch(ctx context.Context, act workflow.Action, data map[string]any) (out *Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failure(act, fmt.Sprintf("action handler panic: %v", r))
		}
	}()

	h, err := d.registry.Get(act.Type)
	if err != nil {
		return failure(act, fmt.Sprintf("Unknown action type: %s", act.Type))
	}

	res, err := h.Execute(ctx, act.Config, data)
	if err != nil {
		if res == nil {
			return failure(act, err.Error())
		}
		res.Success = false
		if res.Message == "" {
			res.Message = err.Error()
		}
	}
	if res == nil {
		res = &Outcome{Success: true}
	}
	// Echo routing metadata regardless of what the handler filled in.
	res.Type = act.Type
	if res.Config == nil {
		res.Config = act.Config
	}
	return res
}
