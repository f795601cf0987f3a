// Package store persists workflow rules and run logs over SQLite
// (development) or PostgreSQL (production) via sqlx, with named queries
// managed by dotsql.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/paperledger/workflow/internal/workflow"
)

// Sentinel errors.
var (
	// ErrRuleNotFound indicates the referenced rule does not exist.
	ErrRuleNotFound = errors.New("workflow rule not found")
)

// RuleStore is the persistence boundary for workflow rules.
type RuleStore interface {
	Create(ctx context.Context, rule *workflow.Rule) error
	Get(ctx context.Context, id string) (*workflow.Rule, error)
	// List returns a tenant's rules, newest first. isActive filters when
	// non-nil.
	List(ctx context.Context, tenantID string, isActive *bool) ([]*workflow.Rule, error)
	Update(ctx context.Context, rule *workflow.Rule) error
	Delete(ctx context.Context, id string) error
	// RecordRun bumps runs_count and last_run_at in a single UPDATE so
	// concurrent executions of the same rule cannot lose increments.
	RecordRun(ctx context.Context, id string, at time.Time) error
}

// LogStore is the persistence boundary for run logs.
type LogStore interface {
	Save(ctx context.Context, entry *workflow.Log) error
	// ListByWorkflow returns up to limit logs, most recent first.
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*workflow.Log, error)
}
