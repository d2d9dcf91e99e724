// Package service — PlannerService manages goals, budgets and the
// label registry. All evaluation lives in SummaryService; this is
// validated CRUD.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/fintrack/vault-api-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var plansTracer = otel.Tracer("service/plans")

// PlannerService manages the user's planning objects.
type PlannerService struct {
	store     port.VaultStore
	viewCache port.Cache[any]
	logger    *zap.Logger
}

// NewPlannerService creates a new planner service.
func NewPlannerService(store port.VaultStore, viewCache port.Cache[any], logger *zap.Logger) *PlannerService {
	return &PlannerService{store: store, viewCache: viewCache, logger: logger}
}

// ============================================================
// Goals
// ============================================================

func (s *PlannerService) CreateGoal(ctx context.Context, userID string, req *domain.CreateGoalRequest) (*domain.Goal, error) {
	ctx, span := plansTracer.Start(ctx, "PlannerService.CreateGoal")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "goal name is required"}
	}
	if req.TargetAmount <= 0 {
		return nil, &domain.ErrValidation{Field: "target_amount", Message: "target amount must be positive"}
	}

	// Disallow two goals that SAVING entries could not tell apart.
	existing, err := s.store.ListGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	for _, g := range existing {
		if domain.NormalizeLabel(g.Name) == domain.NormalizeLabel(name) {
			return nil, &domain.ErrConflict{Message: fmt.Sprintf("a goal named %q already exists", g.Name)}
		}
	}

	goal := &domain.Goal{
		ID:           uuid.New().String(),
		UserID:       userID,
		Name:         name,
		TargetAmount: req.TargetAmount,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateGoal(ctx, goal); err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}

	s.logger.Info("goal created",
		zap.String("goal_id", goal.ID),
		zap.String("user_id", userID),
		zap.Float64("target", goal.TargetAmount),
	)
	return goal, nil
}

func (s *PlannerService) DeleteGoal(ctx context.Context, userID, goalID string) error {
	ctx, span := plansTracer.Start(ctx, "PlannerService.DeleteGoal")
	defer span.End()

	goals, err := s.store.ListGoals(ctx, userID)
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}
	found := false
	for _, g := range goals {
		if g.ID == goalID {
			found = true
			break
		}
	}
	if !found {
		return &domain.ErrNotFound{Resource: "goal", ID: goalID}
	}

	if err := s.store.DeleteGoal(ctx, goalID); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}

// ============================================================
// Budgets
// ============================================================

// SetBudget creates or overwrites the cap for one category.
func (s *PlannerService) SetBudget(ctx context.Context, userID string, req *domain.SetBudgetRequest) (*domain.Budget, error) {
	ctx, span := plansTracer.Start(ctx, "PlannerService.SetBudget")
	defer span.End()

	category := strings.TrimSpace(req.Category)
	if category == "" {
		return nil, &domain.ErrValidation{Field: "category", Message: "category is required"}
	}
	if req.Limit <= 0 {
		return nil, &domain.ErrValidation{Field: "limit", Message: "limit must be positive"}
	}

	budget := &domain.Budget{
		ID:       uuid.New().String(),
		UserID:   userID,
		Category: category,
		Limit:    req.Limit,
	}
	if err := s.store.SetBudget(ctx, budget); err != nil {
		return nil, fmt.Errorf("set budget: %w", err)
	}
	s.viewCache.DeletePrefix("user:" + userID + ":budgets")

	return budget, nil
}

func (s *PlannerService) ListBudgets(ctx context.Context, userID string) ([]domain.Budget, error) {
	ctx, span := plansTracer.Start(ctx, "PlannerService.ListBudgets")
	defer span.End()

	return s.store.ListBudgets(ctx, userID)
}

func (s *PlannerService) DeleteBudget(ctx context.Context, userID, budgetID string) error {
	ctx, span := plansTracer.Start(ctx, "PlannerService.DeleteBudget")
	defer span.End()

	budgets, err := s.store.ListBudgets(ctx, userID)
	if err != nil {
		return fmt.Errorf("list budgets: %w", err)
	}
	found := false
	for _, b := range budgets {
		if b.ID == budgetID {
			found = true
			break
		}
	}
	if !found {
		return &domain.ErrNotFound{Resource: "budget", ID: budgetID}
	}

	if err := s.store.DeleteBudget(ctx, budgetID); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	s.viewCache.DeletePrefix("user:" + userID + ":budgets")
	return nil
}

// ============================================================
// Labels
// ============================================================

func (s *PlannerService) ListLabels(ctx context.Context, userID string, kind domain.LabelKind) ([]domain.Label, error) {
	ctx, span := plansTracer.Start(ctx, "PlannerService.ListLabels")
	defer span.End()

	if kind != domain.LabelCategory && kind != domain.LabelChannel {
		return nil, &domain.ErrValidation{Field: "kind", Message: "kind must be category or channel"}
	}
	return s.store.ListLabels(ctx, userID, kind)
}

func (s *PlannerService) CreateLabel(ctx context.Context, userID string, req *domain.CreateLabelRequest) (*domain.Label, error) {
	ctx, span := plansTracer.Start(ctx, "PlannerService.CreateLabel")
	defer span.End()

	if req.Kind != domain.LabelCategory && req.Kind != domain.LabelChannel {
		return nil, &domain.ErrValidation{Field: "kind", Message: "kind must be category or channel"}
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "label name is required"}
	}
	if req.Kind == domain.LabelCategory && req.TxType != "" && !domain.ValidTransactionType(req.TxType) {
		return nil, &domain.ErrValidation{Field: "tx_type", Message: fmt.Sprintf("unknown transaction type %q", req.TxType)}
	}

	existing, err := s.store.ListLabels(ctx, userID, req.Kind)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	for _, l := range existing {
		if domain.NormalizeLabel(l.Name) == domain.NormalizeLabel(name) && l.TxType == req.TxType {
			return nil, &domain.ErrConflict{Message: fmt.Sprintf("label %q already exists", l.Name)}
		}
	}

	label := &domain.Label{
		ID:     uuid.New().String(),
		UserID: userID,
		Kind:   req.Kind,
		Name:   name,
		TxType: req.TxType,
	}
	if err := s.store.CreateLabel(ctx, label); err != nil {
		return nil, fmt.Errorf("create label: %w", err)
	}
	return label, nil
}

func (s *PlannerService) DeleteLabel(ctx context.Context, userID, labelID string) error {
	ctx, span := plansTracer.Start(ctx, "PlannerService.DeleteLabel")
	defer span.End()

	for _, kind := range []domain.LabelKind{domain.LabelCategory, domain.LabelChannel} {
		labels, err := s.store.ListLabels(ctx, userID, kind)
		if err != nil {
			return fmt.Errorf("list labels: %w", err)
		}
		for _, l := range labels {
			if l.ID == labelID {
				return s.store.DeleteLabel(ctx, labelID)
			}
		}
	}
	return &domain.ErrNotFound{Resource: "label", ID: labelID}
}
