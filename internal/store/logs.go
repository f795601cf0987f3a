package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paperledger/workflow/internal/workflow"
)

// SQLLogStore implements LogStore over a Queries instance.
type SQLLogStore struct {
	q *Queries
}

// NewSQLLogStore creates a run-log store.
func NewSQLLogStore(q *Queries) *SQLLogStore {
	return &SQLLogStore{q: q}
}

type logRow struct {
	ID              string         `db:"id"`
	WorkflowID      string         `db:"workflow_id"`
	Status          string         `db:"status"`
	RunAt           time.Time      `db:"run_at"`
	InputSnapshot   sql.NullString `db:"input_snapshot"`
	OutputSnapshot  sql.NullString `db:"output_snapshot"`
	ErrorMessage    string         `db:"error_message"`
	ExecutionTimeMs int64          `db:"execution_time_ms"`
}

func (s *SQLLogStore) Save(ctx context.Context, entry *workflow.Log) error {
	input := nullJSON(entry.InputSnapshot)
	output := nullJSON(entry.OutputSnapshot)
	_, err := s.q.Exec(ctx, "insert-log",
		entry.ID, entry.WorkflowID, string(entry.Status), entry.RunAt,
		input, output, entry.ErrorMessage, entry.ExecutionTimeMs)
	if err != nil {
		return fmt.Errorf("save run log: %w", err)
	}
	return nil
}

func (s *SQLLogStore) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*workflow.Log, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []logRow
	if err := s.q.Select(ctx, "list-logs", &rows, workflowID, limit); err != nil {
		return nil, fmt.Errorf("list run logs: %w", err)
	}
	logs := make([]*workflow.Log, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, &workflow.Log{
			ID:              row.ID,
			WorkflowID:      row.WorkflowID,
			Status:          workflow.LogStatus(row.Status),
			RunAt:           row.RunAt,
			InputSnapshot:   rawJSON(row.InputSnapshot),
			OutputSnapshot:  rawJSON(row.OutputSnapshot),
			ErrorMessage:    row.ErrorMessage,
			ExecutionTimeMs: row.ExecutionTimeMs,
		})
	}
	return logs, nil
}

func nullJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func rawJSON(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}
