// Package service — SummaryService derives every dashboard view from
// the raw ledger. Nothing here writes except the one-shot goal
// celebration stamp.
package service

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/fintrack/vault-api-go/internal/infra/observability"
	"github.com/fintrack/vault-api-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var summaryTracer = otel.Tracer("service/summary")

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// defaultTopN caps the top-spending list when the caller does not ask
// for a specific size.
const defaultTopN = 5

// SummaryService computes derived views over the ledger.
type SummaryService struct {
	store     port.VaultStore
	users     port.UserStore
	viewCache port.Cache[any]
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewSummaryService creates a new summary service.
func NewSummaryService(store port.VaultStore, users port.UserStore, viewCache port.Cache[any], metrics *observability.Metrics, logger *zap.Logger) *SummaryService {
	return &SummaryService{
		store:     store,
		users:     users,
		viewCache: viewCache,
		metrics:   metrics,
		logger:    logger,
	}
}

// ============================================================
// Summary — GET /v1/users/{id}/summary
// ============================================================

func (s *SummaryService) Summary(ctx context.Context, userID string) (*domain.VaultSummary, error) {
	ctx, span := summaryTracer.Start(ctx, "SummaryService.Summary")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))
	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("summary", time.Since(start)) }()

	cacheKey := "user:" + userID + ":summary"
	if cached, ok := s.viewCache.Get(cacheKey); ok {
		if summary, ok := cached.(*domain.VaultSummary); ok {
			s.metrics.IncrCacheHit("summary")
			return summary, nil
		}
	}
	s.metrics.IncrCacheMiss("summary")

	var (
		user *domain.User
		txs  []domain.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.users.GetUserByID(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = s.store.ListTransactions(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load summary inputs: %w", err)
	}

	summary := &domain.VaultSummary{
		UserID:          userID,
		NetLiquidity:    domain.NetLiquidity(txs),
		ChannelBalances: domain.ChannelBalances(txs),
		Coins:           user.Coins,
		Streak:          user.Streak,
		TierStatus:      domain.TierStatusFor(user.Coins),
		Credit:          domain.CreditBook(txs),
		Debt:            domain.DebtBook(txs),
		TransactionN:    len(txs),
	}

	s.viewCache.Set(cacheKey, summary)
	return summary, nil
}

// ============================================================
// TopSpending — GET /v1/users/{id}/spending?month=YYYY-MM
// ============================================================

func (s *SummaryService) TopSpending(ctx context.Context, userID, month string, n int) ([]domain.CategoryTotal, error) {
	ctx, span := summaryTracer.Start(ctx, "SummaryService.TopSpending")
	defer span.End()

	month, err := normalizeMonth(month)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = defaultTopN
	}

	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return domain.TopSpending(txs, month, n), nil
}

// ============================================================
// Budgets — GET /v1/users/{id}/budgets/report?month=YYYY-MM
// ============================================================

func (s *SummaryService) BudgetReport(ctx context.Context, userID, month string) (*domain.BudgetReport, error) {
	ctx, span := summaryTracer.Start(ctx, "SummaryService.BudgetReport")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	month, err := normalizeMonth(month)
	if err != nil {
		return nil, err
	}

	cacheKey := "user:" + userID + ":budgets:" + month
	if cached, ok := s.viewCache.Get(cacheKey); ok {
		if report, ok := cached.(*domain.BudgetReport); ok {
			s.metrics.IncrCacheHit("budgets")
			return report, nil
		}
	}
	s.metrics.IncrCacheMiss("budgets")

	var (
		budgets []domain.Budget
		txs     []domain.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		budgets, err = s.store.ListBudgets(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = s.store.ListTransactions(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load budget inputs: %w", err)
	}

	report := domain.EvaluateBudgets(budgets, txs, month)
	s.viewCache.Set(cacheKey, &report)
	return &report, nil
}

// ============================================================
// Goals — GET /v1/users/{id}/goals
// ============================================================

// GoalStatuses evaluates every goal against the SAVING ledger. A goal
// crossing 100% for the first time gets its celebration stamped so the
// JustReached flag fires exactly once.
func (s *SummaryService) GoalStatuses(ctx context.Context, userID string) ([]domain.GoalStatus, error) {
	ctx, span := summaryTracer.Start(ctx, "SummaryService.GoalStatuses")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var (
		goals []domain.Goal
		txs   []domain.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		goals, err = s.store.ListGoals(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = s.store.ListTransactions(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load goal inputs: %w", err)
	}

	statuses := domain.EvaluateGoals(goals, txs)
	for i := range statuses {
		if !statuses[i].JustReached {
			continue
		}
		now := time.Now().UTC()
		if err := s.store.MarkGoalCelebrated(ctx, statuses[i].ID, now); err != nil {
			s.logger.Warn("failed to stamp goal celebration",
				zap.String("goal_id", statuses[i].ID),
				zap.Error(err),
			)
			// Leave JustReached unset rather than replay it next render.
			statuses[i].JustReached = false
			continue
		}
		statuses[i].CelebratedAt = &now
		s.logger.Info("goal reached",
			zap.String("goal_id", statuses[i].ID),
			zap.String("user_id", userID),
		)
	}
	return statuses, nil
}

// ============================================================
// Leaderboard — GET /v1/leaderboard
// ============================================================

// Leaderboard ranks every user by streak, then coins.
func (s *SummaryService) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	ctx, span := summaryTracer.Start(ctx, "SummaryService.Leaderboard")
	defer span.End()

	const cacheKey = "global:leaderboard"
	if cached, ok := s.viewCache.Get(cacheKey); ok {
		if entries, ok := cached.([]domain.LeaderboardEntry); ok {
			s.metrics.IncrCacheHit("leaderboard")
			return entries, nil
		}
	}
	s.metrics.IncrCacheMiss("leaderboard")

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, domain.LeaderboardEntry{
			Name:   u.Name,
			Tier:   u.Tier,
			Streak: u.Streak,
			Coins:  u.Coins,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Streak != entries[j].Streak {
			return entries[i].Streak > entries[j].Streak
		}
		return entries[i].Coins > entries[j].Coins
	})

	s.viewCache.Set(cacheKey, entries)
	return entries, nil
}

// ============================================================
// Trends — GET /v1/users/{id}/trends
// ============================================================

func (s *SummaryService) Trends(ctx context.Context, userID string) ([]domain.MonthlyTrend, error) {
	ctx, span := summaryTracer.Start(ctx, "SummaryService.Trends")
	defer span.End()

	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return domain.MonthlyTrends(txs), nil
}

// normalizeMonth validates a YYYY-MM period, defaulting to the current
// UTC month when empty.
func normalizeMonth(month string) (string, error) {
	if month == "" {
		return time.Now().UTC().Format("2006-01"), nil
	}
	if !monthPattern.MatchString(month) {
		return "", &domain.ErrValidation{Field: "month", Message: "month must be YYYY-MM"}
	}
	return month, nil
}
