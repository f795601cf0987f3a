package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/paperledger/workflow/internal/action"
	"github.com/paperledger/workflow/internal/condition"
	"github.com/paperledger/workflow/internal/config"
	"github.com/paperledger/workflow/internal/metrics"
	"github.com/paperledger/workflow/internal/store"
	"github.com/paperledger/workflow/internal/workflow"
)

// ExecutionResult is the outcome of one rule execution.
type ExecutionResult struct {
	Success         bool              `json:"success"`
	Message         string            `json:"message,omitempty"`
	Matched         bool              `json:"matched"`
	Results         []*action.Outcome `json:"results"`
	DryRun          bool              `json:"dry_run"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
}

// outputSnapshot is the shape persisted into a matched run's log row.
type outputSnapshot struct {
	Results []*action.Outcome `json:"results"`
	DryRun  bool              `json:"dryRun"`
}

const noMatchMessage = "Conditions not met, workflow not executed"

// Engine orchestrates rule executions. It is stateless per call: each
// Execute owns its own log row, so concurrent invocations need no
// coordination beyond the store's atomicity.
type Engine struct {
	rules      store.RuleStore
	logs       store.LogStore
	dispatcher *action.Dispatcher
	opts       atomic.Pointer[condition.Options]
	pool       *workerPool[*execWork]
	conf       *config.EngineConf
	logger     *slog.Logger
	now        func() time.Time
}

type execWork struct {
	ruleID string
	data   map[string]any
	dryRun bool
}

// New creates an Engine using conf and starts the async worker pool.
func New(ctx context.Context, rules store.RuleStore, logs store.LogStore, d *action.Dispatcher, conf config.EngineConf, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		rules:      rules,
		logs:       logs,
		dispatcher: d,
		conf:       &conf,
		logger:     logger,
		now:        time.Now,
	}
	e.opts.Store(&condition.Options{Strict: conf.StrictCompare})

	e.pool = newWorkerPool(ctx, conf.ExecWorkers, conf.QueueDepth, func(ctx context.Context, w *execWork) {
		timeout := time.Duration(conf.ExecTimeoutMs) * time.Millisecond
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if _, err := e.Execute(runCtx, w.ruleID, w.data, w.dryRun); err != nil {
			e.logger.Error("async execution failed", "rule_id", w.ruleID, "error", err)
		}
	})

	return e
}

// SwapOptions atomically replaces evaluation options (used on hot-reload).
func (e *Engine) SwapOptions(opts condition.Options) {
	e.opts.Store(&opts)
}

// Execute runs one rule against data and always leaves exactly one log
// row in a terminal state once the rule has been loaded. A missing rule
// propagates store.ErrRuleNotFound with no log side effect.
func (e *Engine) Execute(ctx context.Context, ruleID string, data map[string]any, dryRun bool) (res *ExecutionResult, err error) {
	start := e.now()

	rule, err := e.rules.Get(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	// Snapshot the input before any handler can touch data.
	input, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot input: %w", err)
	}
	entry := &workflow.Log{
		ID:            workflow.NewLogID(),
		WorkflowID:    rule.ID,
		Status:        workflow.StatusRunning,
		RunAt:         start.UTC(),
		InputSnapshot: input,
	}

	// Whatever happens past this point, the log row must reach a
	// terminal state before the error escapes.
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("workflow execution panic: %v", r)
			e.failLog(ctx, entry, msg, start)
			res, err = nil, fmt.Errorf("execute rule %s: %s", ruleID, msg)
		}
	}()

	matched := condition.EvaluateWith(rule.Conditions, data, *e.opts.Load())
	if !matched {
		out, _ := json.Marshal(map[string]string{"message": noMatchMessage})
		entry.Status = workflow.StatusSuccess
		entry.OutputSnapshot = out
		entry.ExecutionTimeMs = time.Since(start).Milliseconds()
		if err := e.logs.Save(ctx, entry); err != nil {
			return nil, fmt.Errorf("persist run log: %w", err)
		}
		e.observe("success", entry.ExecutionTimeMs)
		return &ExecutionResult{
			Success:         true,
			Message:         "Conditions not met",
			Results:         []*action.Outcome{},
			DryRun:          dryRun,
			ExecutionTimeMs: entry.ExecutionTimeMs,
		}, nil
	}

	results := make([]*action.Outcome, 0, len(rule.Actions))
	if !dryRun {
		for _, act := range rule.Actions {
			out := e.dispatcher.Dispatch(ctx, act, data)
			status := "success"
			if !out.Success {
				status = "error"
			}
			metrics.ActionsExecuted.WithLabelValues(act.Type, status).Inc()
			results = append(results, out)
		}
		if err := e.rules.RecordRun(ctx, rule.ID, e.now().UTC()); err != nil {
			e.failLog(ctx, entry, err.Error(), start)
			return nil, fmt.Errorf("record run for rule %s: %w", ruleID, err)
		}
	}

	out, _ := json.Marshal(outputSnapshot{Results: results, DryRun: dryRun})
	entry.Status = workflow.StatusSuccess
	entry.OutputSnapshot = out
	entry.ExecutionTimeMs = time.Since(start).Milliseconds()
	if err := e.logs.Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("persist run log: %w", err)
	}
	e.observe("success", entry.ExecutionTimeMs)

	return &ExecutionResult{
		Success:         true,
		Matched:         true,
		Results:         results,
		DryRun:          dryRun,
		ExecutionTimeMs: entry.ExecutionTimeMs,
	}, nil
}

// ExecuteAsync enqueues an execution for background processing.
// Returns false if the queue is full.
func (e *Engine) ExecuteAsync(ruleID string, data map[string]any, dryRun bool) bool {
	if !e.pool.Submit(&execWork{ruleID: ruleID, data: data, dryRun: dryRun}) {
		metrics.ExecutionsDropped.Inc()
		return false
	}
	metrics.ExecutionsEnqueued.Inc()
	metrics.QueueUtilization.Set(e.QueueUtilization())
	return true
}

// QueueUtilization returns queue used / capacity (0-1).
func (e *Engine) QueueUtilization() float64 {
	if e.pool.QueueCap() == 0 {
		return 0
	}
	return float64(e.pool.QueueLen()) / float64(e.pool.QueueCap())
}

// Shutdown drains the async pool gracefully.
func (e *Engine) Shutdown() {
	e.pool.Drain()
}

func (e *Engine) failLog(ctx context.Context, entry *workflow.Log, msg string, start time.Time) {
	entry.Status = workflow.StatusFailed
	entry.ErrorMessage = msg
	entry.ExecutionTimeMs = time.Since(start).Milliseconds()
	if err := e.logs.Save(ctx, entry); err != nil {
		e.logger.Error("failed to persist terminal run log",
			"log_id", entry.ID, "workflow_id", entry.WorkflowID, "error", err)
	}
	e.observe("failed", entry.ExecutionTimeMs)
}

func (e *Engine) observe(status string, durationMs int64) {
	metrics.ExecutionsProcessed.WithLabelValues(status).Inc()
	metrics.ExecutionDuration.Observe(float64(durationMs))
}
