// Package workflow holds the domain model for tenant-scoped automation
// rules and their run logs.
package workflow

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/paperledger/workflow/internal/condition"
)

// LogStatus is the lifecycle state of one execution's run log.
type LogStatus string

const (
	StatusRunning LogStatus = "RUNNING"
	StatusSuccess LogStatus = "SUCCESS"
	StatusFailed  LogStatus = "FAILED"
)

// Trigger describes what external event fires a rule. The engine stores and
// returns it for introspection but never interprets it; triggering is the
// caller's concern.
type Trigger struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// Action is one unit of work executed when a rule matches.
type Action struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// Rule is a stored automation definition. Actions are ordered and execute
// sequentially; order must be preserved end to end.
type Rule struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Trigger     Trigger         `json:"trigger"`
	Conditions  *condition.Node `json:"conditions,omitempty"`
	Actions     []Action        `json:"actions"`
	IsActive    bool            `json:"is_active"`
	RunsCount   int64           `json:"runs_count"`
	LastRunAt   *time.Time      `json:"last_run_at,omitempty"`
	CreatedBy   string          `json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Log is the audit record of one execution attempt. Exactly one row exists
// per engine invocation that loaded its rule; its status is always terminal
// at rest.
type Log struct {
	ID              string          `json:"id"`
	WorkflowID      string          `json:"workflow_id"`
	Status          LogStatus       `json:"status"`
	RunAt           time.Time       `json:"run_at"`
	InputSnapshot   json.RawMessage `json:"input_snapshot,omitempty"`
	OutputSnapshot  json.RawMessage `json:"output_snapshot,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	ExecutionTimeMs int64           `json:"execution_time_ms"`
}

// NewRuleID generates a UUIDv7 rule identifier. Time-ordered IDs cluster in
// B-tree indexes. Panics on clock regression; acceptable for ID generation.
func NewRuleID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewLogID generates a UUIDv7 run-log identifier.
func NewLogID() string {
	return uuid.Must(uuid.NewV7()).String()
}
