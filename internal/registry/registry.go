// Package registry provides tenant-scoped CRUD over workflow rules with
// fail-fast validation of condition trees and action configs.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paperledger/workflow/internal/action"
	"github.com/paperledger/workflow/internal/condition"
	"github.com/paperledger/workflow/internal/store"
	"github.com/paperledger/workflow/internal/workflow"
)

// ErrInvalidRule wraps all rule validation failures.
var ErrInvalidRule = errors.New("invalid workflow rule")

// DefaultLogLimit bounds run-log listings when the caller gives no limit.
const DefaultLogLimit = 50

// RuleInput carries the caller-supplied fields of a new rule.
type RuleInput struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Trigger     workflow.Trigger  `json:"trigger"`
	Conditions  *condition.Node   `json:"conditions"`
	Actions     []workflow.Action `json:"actions"`
	IsActive    *bool             `json:"is_active"`
}

// RuleUpdate carries a partial update; nil fields are left unchanged.
type RuleUpdate struct {
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	Trigger     *workflow.Trigger `json:"trigger"`
	Conditions  *condition.Node   `json:"conditions"`
	Actions     []workflow.Action `json:"actions"`
	IsActive    *bool             `json:"is_active"`
}

// Service manages the rule catalog.
type Service struct {
	rules   store.RuleStore
	logs    store.LogStore
	actions *action.Registry
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a rule service. The action registry is consulted at write
// time so misconfigured actions are rejected before they can run.
func New(rules store.RuleStore, logs store.LogStore, actions *action.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		rules:   rules,
		logs:    logs,
		actions: actions,
		logger:  logger,
		now:     time.Now,
	}
}

// Create validates and persists a new rule for the tenant.
func (s *Service) Create(ctx context.Context, tenantID string, in RuleInput, actorID string) (*workflow.Rule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidRule)
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if err := s.validateConditions(in.Conditions); err != nil {
		return nil, err
	}
	if err := s.validateActions(in.Actions); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rule := &workflow.Rule{
		ID:          workflow.NewRuleID(),
		TenantID:    tenantID,
		Name:        in.Name,
		Description: in.Description,
		Trigger:     in.Trigger,
		Conditions:  in.Conditions,
		Actions:     in.Actions,
		IsActive:    true,
		CreatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.IsActive != nil {
		rule.IsActive = *in.IsActive
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}
	s.logger.Info("workflow rule created",
		"rule_id", rule.ID, "tenant_id", tenantID, "name", rule.Name)
	return rule, nil
}

// Get fetches a single rule by ID.
func (s *Service) Get(ctx context.Context, id string) (*workflow.Rule, error) {
	return s.rules.Get(ctx, id)
}

// List returns the tenant's rules, optionally filtered by active state.
func (s *Service) List(ctx context.Context, tenantID string, isActive *bool) ([]*workflow.Rule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidRule)
	}
	return s.rules.List(ctx, tenantID, isActive)
}

// Update applies a partial update to an existing rule. Supplied fields
// are re-validated; omitted fields keep their stored values.
func (s *Service) Update(ctx context.Context, id string, up RuleUpdate) (*workflow.Rule, error) {
	rule, err := s.rules.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if up.Name != nil {
		if *up.Name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidRule)
		}
		rule.Name = *up.Name
	}
	if up.Description != nil {
		rule.Description = *up.Description
	}
	if up.Trigger != nil {
		rule.Trigger = *up.Trigger
	}
	if up.Conditions != nil {
		if err := s.validateConditions(up.Conditions); err != nil {
			return nil, err
		}
		rule.Conditions = up.Conditions
	}
	if up.Actions != nil {
		if err := s.validateActions(up.Actions); err != nil {
			return nil, err
		}
		rule.Actions = up.Actions
	}
	if up.IsActive != nil {
		rule.IsActive = *up.IsActive
	}
	rule.UpdatedAt = s.now().UTC()

	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, err
	}
	s.logger.Info("workflow rule updated", "rule_id", rule.ID, "tenant_id", rule.TenantID)
	return rule, nil
}

// Delete removes a rule. Its run logs are kept for audit.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("workflow rule deleted", "rule_id", id)
	return nil
}

// Logs returns the most recent run logs for a rule, newest first.
func (s *Service) Logs(ctx context.Context, id string, limit int) ([]*workflow.Log, error) {
	if _, err := s.rules.Get(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	return s.logs.ListByWorkflow(ctx, id, limit)
}

func (s *Service) validateConditions(n *condition.Node) error {
	if err := condition.Validate(n); err != nil {
		return fmt.Errorf("%w: conditions: %v", ErrInvalidRule, err)
	}
	return nil
}

func (s *Service) validateActions(actions []workflow.Action) error {
	for i, act := range actions {
		if act.Type == "" {
			return fmt.Errorf("%w: action %d: type is required", ErrInvalidRule, i)
		}
		h, err := s.actions.Get(act.Type)
		if err != nil {
			return fmt.Errorf("%w: action %d: %v", ErrInvalidRule, i, err)
		}
		if err := h.Validate(act.Config); err != nil {
			return fmt.Errorf("%w: action %d (%s): %v", ErrInvalidRule, i, act.Type, err)
		}
	}
	return nil
}
