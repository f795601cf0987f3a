package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperledger/workflow/internal/action"
	"github.com/paperledger/workflow/internal/condition"
	"github.com/paperledger/workflow/internal/config"
	"github.com/paperledger/workflow/internal/engine"
	"github.com/paperledger/workflow/internal/store"
	"github.com/paperledger/workflow/internal/workflow"
)

type fakeRuleStore struct {
	mu           sync.Mutex
	rules        map[string]*workflow.Rule
	recordRunErr error
	runRecorded  int
}

func newFakeRuleStore(rules ...*workflow.Rule) *fakeRuleStore {
	s := &fakeRuleStore{rules: make(map[string]*workflow.Rule)}
	for _, r := range rules {
		s.rules[r.ID] = r
	}
	return s
}

func (s *fakeRuleStore) Create(ctx context.Context, r *workflow.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID] = r
	return nil
}

func (s *fakeRuleStore) Get(ctx context.Context, id string) (*workflow.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, store.ErrRuleNotFound
	}
	return r, nil
}

func (s *fakeRuleStore) List(ctx context.Context, tenantID string, isActive *bool) ([]*workflow.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*workflow.Rule
	for _, r := range s.rules {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeRuleStore) Update(ctx context.Context, r *workflow.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[r.ID]; !ok {
		return store.ErrRuleNotFound
	}
	s.rules[r.ID] = r
	return nil
}

func (s *fakeRuleStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return store.ErrRuleNotFound
	}
	delete(s.rules, id)
	return nil
}

func (s *fakeRuleStore) RecordRun(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordRunErr != nil {
		return s.recordRunErr
	}
	r, ok := s.rules[id]
	if !ok {
		return store.ErrRuleNotFound
	}
	r.RunsCount++
	r.LastRunAt = &at
	s.runRecorded++
	return nil
}

type fakeLogStore struct {
	mu    sync.Mutex
	saved []*workflow.Log
}

func (s *fakeLogStore) Save(ctx context.Context, entry *workflow.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.saved = append(s.saved, &cp)
	return nil
}

func (s *fakeLogStore) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*workflow.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved, nil
}

type scriptedHandler struct {
	typ string
	fn  func(config, data map[string]any) (*action.Outcome, error)
}

func (h *scriptedHandler) Type() string { return h.typ }

func (h *scriptedHandler) Execute(ctx context.Context, config, data map[string]any) (*action.Outcome, error) {
	return h.fn(config, data)
}

func (h *scriptedHandler) Validate(config map[string]any) error { return nil }

func okHandler(typ, message string) *scriptedHandler {
	return &scriptedHandler{typ: typ, fn: func(config, data map[string]any) (*action.Outcome, error) {
		return &action.Outcome{Success: true, Message: message}, nil
	}}
}

func newEngine(t *testing.T, rules store.RuleStore, logs store.LogStore, handlers ...action.Handler) *engine.Engine {
	t.Helper()
	reg := action.NewRegistry()
	for _, h := range handlers {
		reg.Register(h)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	conf := config.EngineConf{ExecWorkers: 1, QueueDepth: 4, ExecTimeoutMs: 1000}
	return engine.New(ctx, rules, logs, action.NewDispatcher(reg), conf, nil)
}

func overdueRule() *workflow.Rule {
	return &workflow.Rule{
		ID:       "rule-overdue",
		TenantID: "t1",
		Name:     "Overdue invoice reminder",
		Conditions: &condition.Node{Group: &condition.Group{
			Operator: condition.GroupAnd,
			Conditions: []condition.Node{
				{Leaf: &condition.Leaf{Field: "dueDate", Operator: "<", Value: "2024-01-01"}},
				{Leaf: &condition.Leaf{Field: "balance", Operator: ">", Value: float64(0)}},
			},
		}},
		Actions:  []workflow.Action{{Type: "send_email", Config: map[string]any{"template": "overdue"}}},
		IsActive: true,
	}
}

func TestExecute_MatchRunsActions(t *testing.T) {
	rules := newFakeRuleStore(overdueRule())
	logs := &fakeLogStore{}
	eng := newEngine(t, rules, logs, okHandler("send_email", "Email sent"))

	data := map[string]any{"dueDate": "2023-12-01", "balance": float64(500)}
	res, err := eng.Execute(context.Background(), "rule-overdue", data, false)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Matched)
	require.Len(t, res.Results, 1)
	assert.True(t, res.Results[0].Success)
	assert.Equal(t, "send_email", res.Results[0].Type)

	rule, _ := rules.Get(context.Background(), "rule-overdue")
	assert.Equal(t, int64(1), rule.RunsCount)
	require.NotNil(t, rule.LastRunAt)

	require.Len(t, logs.saved, 1)
	entry := logs.saved[0]
	assert.Equal(t, workflow.StatusSuccess, entry.Status)
	assert.Equal(t, "rule-overdue", entry.WorkflowID)

	var out struct {
		Results []json.RawMessage `json:"results"`
		DryRun  bool              `json:"dryRun"`
	}
	require.NoError(t, json.Unmarshal(entry.OutputSnapshot, &out))
	assert.Len(t, out.Results, 1)
	assert.False(t, out.DryRun)
}

func TestExecute_NoMatchLeavesCountersAlone(t *testing.T) {
	rules := newFakeRuleStore(overdueRule())
	logs := &fakeLogStore{}
	eng := newEngine(t, rules, logs, okHandler("send_email", "Email sent"))

	data := map[string]any{"dueDate": "2024-06-01", "balance": float64(500)}
	for i := 0; i < 3; i++ {
		res, err := eng.Execute(context.Background(), "rule-overdue", data, false)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.False(t, res.Matched)
		assert.Equal(t, "Conditions not met", res.Message)
		assert.Empty(t, res.Results)
	}

	rule, _ := rules.Get(context.Background(), "rule-overdue")
	assert.Equal(t, int64(0), rule.RunsCount)
	assert.Nil(t, rule.LastRunAt)

	require.Len(t, logs.saved, 3)
	for _, entry := range logs.saved {
		assert.Equal(t, workflow.StatusSuccess, entry.Status)
		var out map[string]string
		require.NoError(t, json.Unmarshal(entry.OutputSnapshot, &out))
		assert.Equal(t, "Conditions not met, workflow not executed", out["message"])
	}
}

func TestExecute_DryRunSkipsActions(t *testing.T) {
	called := false
	h := &scriptedHandler{typ: "send_email", fn: func(config, data map[string]any) (*action.Outcome, error) {
		called = true
		return &action.Outcome{Success: true}, nil
	}}
	rules := newFakeRuleStore(overdueRule())
	logs := &fakeLogStore{}
	eng := newEngine(t, rules, logs, h)

	data := map[string]any{"dueDate": "2023-12-01", "balance": float64(500)}
	res, err := eng.Execute(context.Background(), "rule-overdue", data, true)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Matched)
	assert.True(t, res.DryRun)
	assert.Empty(t, res.Results)
	assert.False(t, called, "dry run must not invoke handlers")

	rule, _ := rules.Get(context.Background(), "rule-overdue")
	assert.Equal(t, int64(0), rule.RunsCount)
	assert.Nil(t, rule.LastRunAt)

	require.Len(t, logs.saved, 1)
	var out struct {
		Results []json.RawMessage `json:"results"`
		DryRun  bool              `json:"dryRun"`
	}
	require.NoError(t, json.Unmarshal(logs.saved[0].OutputSnapshot, &out))
	assert.Empty(t, out.Results)
	assert.True(t, out.DryRun)
}

func TestExecute_BadActionDoesNotShortCircuit(t *testing.T) {
	rule := overdueRule()
	rule.Actions = []workflow.Action{
		{Type: "send_email", Config: map[string]any{"template": "overdue"}},
		{Type: "carrier_pigeon", Config: map[string]any{}},
		{Type: "send_sms", Config: map[string]any{"message": "pay up"}},
	}
	rules := newFakeRuleStore(rule)
	logs := &fakeLogStore{}
	eng := newEngine(t, rules, logs,
		okHandler("send_email", "Email sent"),
		okHandler("send_sms", "SMS sent"),
	)

	data := map[string]any{"dueDate": "2023-12-01", "balance": float64(500)}
	res, err := eng.Execute(context.Background(), "rule-overdue", data, false)

	require.NoError(t, err)
	require.Len(t, res.Results, 3)
	assert.True(t, res.Results[0].Success)
	assert.False(t, res.Results[1].Success)
	assert.Equal(t, "Unknown action type: carrier_pigeon", res.Results[1].Message)
	assert.True(t, res.Results[2].Success)

	// A partially failed action list is still a completed run.
	require.Len(t, logs.saved, 1)
	assert.Equal(t, workflow.StatusSuccess, logs.saved[0].Status)
	r, _ := rules.Get(context.Background(), "rule-overdue")
	assert.Equal(t, int64(1), r.RunsCount)
}

func TestExecute_RuleNotFound(t *testing.T) {
	logs := &fakeLogStore{}
	eng := newEngine(t, newFakeRuleStore(), logs)

	_, err := eng.Execute(context.Background(), "missing", map[string]any{}, false)

	require.ErrorIs(t, err, store.ErrRuleNotFound)
	assert.Empty(t, logs.saved, "no log row may exist for a rule that failed to load")
}

func TestExecute_RecordRunFailureWritesFailedLog(t *testing.T) {
	rules := newFakeRuleStore(overdueRule())
	rules.recordRunErr = errors.New("connection reset")
	logs := &fakeLogStore{}
	eng := newEngine(t, rules, logs, okHandler("send_email", "Email sent"))

	data := map[string]any{"dueDate": "2023-12-01", "balance": float64(500)}
	_, err := eng.Execute(context.Background(), "rule-overdue", data, false)

	require.Error(t, err)
	require.Len(t, logs.saved, 1)
	assert.Equal(t, workflow.StatusFailed, logs.saved[0].Status)
	assert.Contains(t, logs.saved[0].ErrorMessage, "connection reset")
}

func TestExecute_InputSnapshotIsImmutable(t *testing.T) {
	// Handler mutates the data map; the stored snapshot must keep the
	// values from before dispatch.
	h := &scriptedHandler{typ: "send_email", fn: func(config, data map[string]any) (*action.Outcome, error) {
		data["balance"] = float64(0)
		return &action.Outcome{Success: true}, nil
	}}
	rules := newFakeRuleStore(overdueRule())
	logs := &fakeLogStore{}
	eng := newEngine(t, rules, logs, h)

	data := map[string]any{"dueDate": "2023-12-01", "balance": float64(500)}
	_, err := eng.Execute(context.Background(), "rule-overdue", data, false)
	require.NoError(t, err)

	require.Len(t, logs.saved, 1)
	var snap map[string]any
	require.NoError(t, json.Unmarshal(logs.saved[0].InputSnapshot, &snap))
	assert.Equal(t, float64(500), snap["balance"])
}

func TestExecute_VacuousConditionsAlwaysMatch(t *testing.T) {
	rule := overdueRule()
	rule.Conditions = nil
	rules := newFakeRuleStore(rule)
	logs := &fakeLogStore{}
	eng := newEngine(t, rules, logs, okHandler("send_email", "Email sent"))

	res, err := eng.Execute(context.Background(), "rule-overdue", map[string]any{}, false)

	require.NoError(t, err)
	assert.True(t, res.Matched)
	require.Len(t, res.Results, 1)
}

func TestExecuteAsync_QueueFull(t *testing.T) {
	block := make(chan struct{})
	h := &scriptedHandler{typ: "send_email", fn: func(config, data map[string]any) (*action.Outcome, error) {
		<-block
		return &action.Outcome{Success: true}, nil
	}}
	defer close(block)

	rule := overdueRule()
	rule.Conditions = nil
	rules := newFakeRuleStore(rule)
	eng := newEngine(t, rules, &fakeLogStore{}, h)

	// One execution occupies the single worker; fill the queue behind it.
	accepted := 0
	for i := 0; i < 10; i++ {
		if eng.ExecuteAsync("rule-overdue", map[string]any{}, false) {
			accepted++
		}
	}
	assert.Less(t, accepted, 10, "a bounded queue must eventually refuse work")
	assert.Greater(t, accepted, 0)
}

func TestSwapOptions(t *testing.T) {
	rule := overdueRule()
	rule.Conditions = &condition.Node{Leaf: &condition.Leaf{Field: "amount", Operator: "==", Value: float64(5)}}
	rules := newFakeRuleStore(rule)
	logs := &fakeLogStore{}
	eng := newEngine(t, rules, logs, okHandler("send_email", "Email sent"))

	data := map[string]any{"amount": "5"}

	res, err := eng.Execute(context.Background(), "rule-overdue", data, true)
	require.NoError(t, err)
	assert.True(t, res.Matched, "loose comparison should coerce \"5\" to 5")

	eng.SwapOptions(condition.Options{Strict: true})
	res, err = eng.Execute(context.Background(), "rule-overdue", data, true)
	require.NoError(t, err)
	assert.False(t, res.Matched, "strict comparison must not coerce")
}
