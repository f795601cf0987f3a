package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperledger/workflow/internal/action"
	"github.com/paperledger/workflow/internal/condition"
	"github.com/paperledger/workflow/internal/store"
	"github.com/paperledger/workflow/internal/workflow"
)

type memRuleStore struct {
	mu    sync.Mutex
	rules map[string]*workflow.Rule
}

func newMemRuleStore() *memRuleStore {
	return &memRuleStore{rules: make(map[string]*workflow.Rule)}
}

func (s *memRuleStore) Create(ctx context.Context, r *workflow.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID] = r
	return nil
}

func (s *memRuleStore) Get(ctx context.Context, id string) (*workflow.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, store.ErrRuleNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memRuleStore) List(ctx context.Context, tenantID string, isActive *bool) ([]*workflow.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*workflow.Rule
	for _, r := range s.rules {
		if r.TenantID != tenantID {
			continue
		}
		if isActive != nil && r.IsActive != *isActive {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memRuleStore) Update(ctx context.Context, r *workflow.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[r.ID]; !ok {
		return store.ErrRuleNotFound
	}
	s.rules[r.ID] = r
	return nil
}

func (s *memRuleStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return store.ErrRuleNotFound
	}
	delete(s.rules, id)
	return nil
}

func (s *memRuleStore) RecordRun(ctx context.Context, id string, at time.Time) error {
	return nil
}

type memLogStore struct {
	logs map[string][]*workflow.Log
}

func (s *memLogStore) Save(ctx context.Context, entry *workflow.Log) error {
	if s.logs == nil {
		s.logs = make(map[string][]*workflow.Log)
	}
	s.logs[entry.WorkflowID] = append(s.logs[entry.WorkflowID], entry)
	return nil
}

func (s *memLogStore) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*workflow.Log, error) {
	out := s.logs[workflowID]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type noopHandler struct {
	typ         string
	validateErr error
}

func (h *noopHandler) Type() string { return h.typ }

func (h *noopHandler) Execute(ctx context.Context, config, data map[string]any) (*action.Outcome, error) {
	return &action.Outcome{Success: true}, nil
}

func (h *noopHandler) Validate(config map[string]any) error { return h.validateErr }

func newService(t *testing.T, handlers ...action.Handler) (*Service, *memRuleStore, *memLogStore) {
	t.Helper()
	reg := action.NewRegistry()
	for _, h := range handlers {
		reg.Register(h)
	}
	rules := newMemRuleStore()
	logs := &memLogStore{}
	return New(rules, logs, reg, nil), rules, logs
}

func validInput() RuleInput {
	return RuleInput{
		Name: "Overdue reminder",
		Conditions: &condition.Node{Leaf: &condition.Leaf{
			Field: "balance", Operator: ">", Value: float64(0),
		}},
		Actions: []workflow.Action{{Type: "send_email", Config: map[string]any{"template": "overdue"}}},
	}
}

func TestCreate(t *testing.T) {
	svc, _, _ := newService(t, &noopHandler{typ: "send_email"})

	rule, err := svc.Create(context.Background(), "t1", validInput(), "user-9")
	require.NoError(t, err)

	assert.NotEmpty(t, rule.ID)
	assert.Equal(t, "t1", rule.TenantID)
	assert.Equal(t, "user-9", rule.CreatedBy)
	assert.True(t, rule.IsActive, "rules default to active")
	assert.Equal(t, int64(0), rule.RunsCount)
	assert.False(t, rule.CreatedAt.IsZero())

	got, err := svc.Get(context.Background(), rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.Name, got.Name)
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newService(t, &noopHandler{typ: "send_email"}, &noopHandler{typ: "webhook", validateErr: errors.New("url is required")})

	cases := []struct {
		name     string
		tenantID string
		mutate   func(*RuleInput)
	}{
		{"missing tenant", "", func(in *RuleInput) {}},
		{"missing name", "t1", func(in *RuleInput) { in.Name = "" }},
		{"bad condition operator", "t1", func(in *RuleInput) {
			in.Conditions = &condition.Node{Leaf: &condition.Leaf{Field: "x", Operator: "~="}}
		}},
		{"unregistered action type", "t1", func(in *RuleInput) {
			in.Actions = []workflow.Action{{Type: "carrier_pigeon"}}
		}},
		{"action config rejected", "t1", func(in *RuleInput) {
			in.Actions = []workflow.Action{{Type: "webhook", Config: map[string]any{}}}
		}},
		{"action without type", "t1", func(in *RuleInput) {
			in.Actions = []workflow.Action{{Config: map[string]any{}}}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Create(context.Background(), tc.tenantID, in, "")
			require.ErrorIs(t, err, ErrInvalidRule)
		})
	}
}

func TestList_TenantScopingAndFilter(t *testing.T) {
	svc, _, _ := newService(t, &noopHandler{typ: "send_email"})
	ctx := context.Background()

	a, err := svc.Create(ctx, "t1", validInput(), "")
	require.NoError(t, err)
	inactive := false
	in := validInput()
	in.Name = "Disabled rule"
	in.IsActive = &inactive
	b, err := svc.Create(ctx, "t1", in, "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "t2", validInput(), "")
	require.NoError(t, err)

	all, err := svc.List(ctx, "t1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active := true
	onlyActive, err := svc.List(ctx, "t1", &active)
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, a.ID, onlyActive[0].ID)

	onlyInactive, err := svc.List(ctx, "t1", &inactive)
	require.NoError(t, err)
	require.Len(t, onlyInactive, 1)
	assert.Equal(t, b.ID, onlyInactive[0].ID)
}

func TestUpdate_PartialMerge(t *testing.T) {
	svc, _, _ := newService(t, &noopHandler{typ: "send_email"})
	ctx := context.Background()

	rule, err := svc.Create(ctx, "t1", validInput(), "")
	require.NoError(t, err)

	newName := "Renamed"
	updated, err := svc.Update(ctx, rule.ID, RuleUpdate{Name: &newName})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Name)
	assert.NotNil(t, updated.Conditions, "unspecified fields keep their values")
	assert.Equal(t, rule.Actions, updated.Actions)
	assert.True(t, updated.IsActive)
}

func TestUpdate_Validation(t *testing.T) {
	svc, _, _ := newService(t, &noopHandler{typ: "send_email"})
	ctx := context.Background()

	rule, err := svc.Create(ctx, "t1", validInput(), "")
	require.NoError(t, err)

	empty := ""
	_, err = svc.Update(ctx, rule.ID, RuleUpdate{Name: &empty})
	require.ErrorIs(t, err, ErrInvalidRule)

	_, err = svc.Update(ctx, rule.ID, RuleUpdate{
		Actions: []workflow.Action{{Type: "unknown"}},
	})
	require.ErrorIs(t, err, ErrInvalidRule)

	_, err = svc.Update(ctx, "missing", RuleUpdate{Name: strptr("x")})
	require.ErrorIs(t, err, store.ErrRuleNotFound)
}

func strptr(s string) *string { return &s }

func TestDelete(t *testing.T) {
	svc, _, _ := newService(t, &noopHandler{typ: "send_email"})
	ctx := context.Background()

	rule, err := svc.Create(ctx, "t1", validInput(), "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, rule.ID))
	_, err = svc.Get(ctx, rule.ID)
	require.ErrorIs(t, err, store.ErrRuleNotFound)
	require.ErrorIs(t, svc.Delete(ctx, rule.ID), store.ErrRuleNotFound)
}

func TestLogs(t *testing.T) {
	svc, _, logs := newService(t, &noopHandler{typ: "send_email"})
	ctx := context.Background()

	rule, err := svc.Create(ctx, "t1", validInput(), "")
	require.NoError(t, err)

	for i := 0; i < 60; i++ {
		require.NoError(t, logs.Save(ctx, &workflow.Log{
			ID: workflow.NewLogID(), WorkflowID: rule.ID, Status: workflow.StatusSuccess,
		}))
	}

	got, err := svc.Logs(ctx, rule.ID, 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultLogLimit)

	got, err = svc.Logs(ctx, rule.ID, 10)
	require.NoError(t, err)
	assert.Len(t, got, 10)

	_, err = svc.Logs(ctx, "missing", 0)
	require.ErrorIs(t, err, store.ErrRuleNotFound)
}
