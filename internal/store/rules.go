package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/paperledger/workflow/internal/condition"
	"github.com/paperledger/workflow/internal/workflow"
)

// SQLRuleStore implements RuleStore over a Queries instance.
type SQLRuleStore struct {
	q *Queries
}

// NewSQLRuleStore creates a rule store.
func NewSQLRuleStore(q *Queries) *SQLRuleStore {
	return &SQLRuleStore{q: q}
}

// ruleRow is the flat database shape; JSON columns hold the structured
// fields (trigger, condition tree, action list).
type ruleRow struct {
	ID          string         `db:"id"`
	TenantID    string         `db:"tenant_id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	TriggerDef  string         `db:"trigger_def"`
	Conditions  sql.NullString `db:"conditions"`
	Actions     string         `db:"actions"`
	IsActive    bool           `db:"is_active"`
	RunsCount   int64          `db:"runs_count"`
	LastRunAt   sql.NullTime   `db:"last_run_at"`
	CreatedBy   string         `db:"created_by"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func toRuleRow(r *workflow.Rule) (*ruleRow, error) {
	trigger, err := json.Marshal(r.Trigger)
	if err != nil {
		return nil, fmt.Errorf("encode trigger: %w", err)
	}
	actions := r.Actions
	if actions == nil {
		actions = []workflow.Action{}
	}
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return nil, fmt.Errorf("encode actions: %w", err)
	}
	row := &ruleRow{
		ID:          r.ID,
		TenantID:    r.TenantID,
		Name:        r.Name,
		Description: r.Description,
		TriggerDef:  string(trigger),
		Actions:     string(actionsJSON),
		IsActive:    r.IsActive,
		RunsCount:   r.RunsCount,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Conditions != nil {
		conds, err := json.Marshal(r.Conditions)
		if err != nil {
			return nil, fmt.Errorf("encode conditions: %w", err)
		}
		row.Conditions = sql.NullString{String: string(conds), Valid: true}
	}
	if r.LastRunAt != nil {
		row.LastRunAt = sql.NullTime{Time: *r.LastRunAt, Valid: true}
	}
	return row, nil
}

func (row *ruleRow) toRule() (*workflow.Rule, error) {
	r := &workflow.Rule{
		ID:          row.ID,
		TenantID:    row.TenantID,
		Name:        row.Name,
		Description: row.Description,
		IsActive:    row.IsActive,
		RunsCount:   row.RunsCount,
		CreatedBy:   row.CreatedBy,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(row.TriggerDef), &r.Trigger); err != nil {
		return nil, fmt.Errorf("decode trigger for rule %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Actions), &r.Actions); err != nil {
		return nil, fmt.Errorf("decode actions for rule %s: %w", row.ID, err)
	}
	if row.Conditions.Valid && row.Conditions.String != "" {
		var node condition.Node
		if err := json.Unmarshal([]byte(row.Conditions.String), &node); err != nil {
			return nil, fmt.Errorf("decode conditions for rule %s: %w", row.ID, err)
		}
		r.Conditions = &node
	}
	if row.LastRunAt.Valid {
		t := row.LastRunAt.Time
		r.LastRunAt = &t
	}
	return r, nil
}

func (s *SQLRuleStore) Create(ctx context.Context, rule *workflow.Rule) error {
	row, err := toRuleRow(rule)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, "create-rule",
		row.ID, row.TenantID, row.Name, row.Description, row.TriggerDef,
		row.Conditions, row.Actions, row.IsActive, row.RunsCount,
		row.LastRunAt, row.CreatedBy, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

func (s *SQLRuleStore) Get(ctx context.Context, id string) (*workflow.Rule, error) {
	var row ruleRow
	if err := s.q.Get(ctx, "get-rule", &row, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return row.toRule()
}

func (s *SQLRuleStore) List(ctx context.Context, tenantID string, isActive *bool) ([]*workflow.Rule, error) {
	var rows []ruleRow
	var err error
	if isActive == nil {
		err = s.q.Select(ctx, "list-rules", &rows, tenantID)
	} else {
		err = s.q.Select(ctx, "list-rules-by-active", &rows, tenantID, *isActive)
	}
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	rules := make([]*workflow.Rule, 0, len(rows))
	for i := range rows {
		r, err := rows[i].toRule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func (s *SQLRuleStore) Update(ctx context.Context, rule *workflow.Rule) error {
	row, err := toRuleRow(rule)
	if err != nil {
		return err
	}
	res, err := s.q.Exec(ctx, "update-rule",
		row.Name, row.Description, row.TriggerDef, row.Conditions,
		row.Actions, row.IsActive, row.UpdatedAt, row.ID)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	return requireRow(res)
}

func (s *SQLRuleStore) Delete(ctx context.Context, id string) error {
	res, err := s.q.Exec(ctx, "delete-rule", id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return requireRow(res)
}

func (s *SQLRuleStore) RecordRun(ctx context.Context, id string, at time.Time) error {
	res, err := s.q.Exec(ctx, "record-run", at, id)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return requireRow(res)
}

// requireRow maps a zero-row UPDATE/DELETE to ErrRuleNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRuleNotFound
	}
	return nil
}
