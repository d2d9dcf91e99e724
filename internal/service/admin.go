// Package service — AdminService covers the operator surface: user
// listing, reward resets and the purge cascade.
package service

import (
	"context"
	"fmt"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/fintrack/vault-api-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var adminTracer = otel.Tracer("service/admin")

// AdminService performs privileged operations. Handlers gate every
// call on the is_admin claim.
type AdminService struct {
	users     port.UserStore
	store     port.VaultStore
	tokens    port.TokenStore
	purge     port.PurgeList
	viewCache port.Cache[any]
	logger    *zap.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(users port.UserStore, store port.VaultStore, tokens port.TokenStore, purge port.PurgeList, viewCache port.Cache[any], logger *zap.Logger) *AdminService {
	return &AdminService{
		users:     users,
		store:     store,
		tokens:    tokens,
		purge:     purge,
		viewCache: viewCache,
		logger:    logger,
	}
}

// ListUsers returns every registered user.
func (s *AdminService) ListUsers(ctx context.Context) ([]domain.User, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.ListUsers")
	defer span.End()

	return s.users.ListUsers(ctx)
}

// ListAllTransactions returns the full ledger across users.
func (s *AdminService) ListAllTransactions(ctx context.Context) ([]domain.Transaction, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.ListAllTransactions")
	defer span.End()

	return s.store.ListTransactions(ctx, "")
}

// ResetRewards puts a user's reward state back to a fresh account's.
// The ledger itself is untouched.
func (s *AdminService) ResetRewards(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.ResetRewards")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	user, err := s.users.UpdateUser(ctx, userID, map[string]any{
		"coins":           domain.StartingCoins,
		"streak":          0,
		"last_entry_date": "",
		"tier":            string(domain.TierCopper),
	})
	if err != nil {
		return nil, fmt.Errorf("reset rewards: %w", err)
	}
	s.viewCache.DeletePrefix("user:" + userID + ":")
	s.viewCache.Delete("global:leaderboard")

	s.logger.Info("rewards reset", zap.String("user_id", userID))
	return user, nil
}

// PurgeUser permanently removes a user and everything they own. The id
// goes on the exclusion list FIRST: even if some remote deletes fail,
// no lookup will ever see the user again, and retrying the purge is
// safe.
func (s *AdminService) PurgeUser(ctx context.Context, userID string) error {
	ctx, span := adminTracer.Start(ctx, "AdminService.PurgeUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if s.purge.IsPurged(userID) {
		s.logger.Info("purge: user already on exclusion list, retrying cascade",
			zap.String("user_id", userID))
	}
	s.purge.MarkPurged(userID)
	s.viewCache.DeletePrefix("user:" + userID + ":")
	s.viewCache.Delete("global:leaderboard")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		txs, err := s.store.ListTransactions(gctx, userID)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		for _, tx := range txs {
			if err := s.store.DeleteTransaction(gctx, tx.ID); err != nil {
				return fmt.Errorf("delete transaction %s: %w", tx.ID, err)
			}
		}
		return nil
	})

	g.Go(func() error {
		goals, err := s.store.ListGoals(gctx, userID)
		if err != nil {
			return fmt.Errorf("list goals: %w", err)
		}
		for _, goal := range goals {
			if err := s.store.DeleteGoal(gctx, goal.ID); err != nil {
				return fmt.Errorf("delete goal %s: %w", goal.ID, err)
			}
		}
		return nil
	})

	g.Go(func() error {
		budgets, err := s.store.ListBudgets(gctx, userID)
		if err != nil {
			return fmt.Errorf("list budgets: %w", err)
		}
		for _, b := range budgets {
			if err := s.store.DeleteBudget(gctx, b.ID); err != nil {
				return fmt.Errorf("delete budget %s: %w", b.ID, err)
			}
		}
		return nil
	})

	g.Go(func() error {
		for _, kind := range []domain.LabelKind{domain.LabelCategory, domain.LabelChannel} {
			labels, err := s.store.ListLabels(gctx, userID, kind)
			if err != nil {
				return fmt.Errorf("list labels: %w", err)
			}
			for _, l := range labels {
				if err := s.store.DeleteLabel(gctx, l.ID); err != nil {
					return fmt.Errorf("delete label %s: %w", l.ID, err)
				}
			}
		}
		return nil
	})

	g.Go(func() error {
		return s.tokens.RevokeAllRefreshTokens(gctx, userID)
	})

	if err := g.Wait(); err != nil {
		// The exclusion list already hides the user; report the partial
		// failure so the operator can re-run the purge.
		s.logger.Error("purge: cascade incomplete",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return fmt.Errorf("purge cascade: %w", err)
	}

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		s.logger.Error("purge: user row delete failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return fmt.Errorf("delete user: %w", err)
	}

	s.logger.Info("user purged", zap.String("user_id", userID))
	return nil
}
