// Package service — VaultService owns the transaction ledger: recording
// entries (with reward write-back), edits, deletes and credit/debt
// resolution.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/fintrack/vault-api-go/internal/infra/observability"
	"github.com/fintrack/vault-api-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var vaultTracer = otel.Tracer("service/vault")

// rewardWriteAttempts bounds the conditional-write loop when two
// clients record entries for the same user at once.
const rewardWriteAttempts = 3

// VaultService orchestrates ledger writes.
type VaultService struct {
	store     port.VaultStore
	users     port.UserStore
	viewCache port.Cache[any]
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewVaultService creates a new vault service.
func NewVaultService(store port.VaultStore, users port.UserStore, viewCache port.Cache[any], metrics *observability.Metrics, logger *zap.Logger) *VaultService {
	return &VaultService{
		store:     store,
		users:     users,
		viewCache: viewCache,
		metrics:   metrics,
		logger:    logger,
	}
}

// ============================================================
// CreateTransaction — POST /v1/users/{id}/transactions
// ============================================================

func (s *VaultService) CreateTransaction(ctx context.Context, userID string, req *domain.CreateTransactionRequest) (*domain.EntryResult, error) {
	ctx, span := vaultTracer.Start(ctx, "VaultService.CreateTransaction")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("transaction.type", string(req.Type)),
	)
	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("create_transaction", time.Since(start)) }()

	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}
	if !domain.ValidTransactionType(req.Type) {
		return nil, &domain.ErrValidation{Field: "type", Message: fmt.Sprintf("unknown transaction type %q", req.Type)}
	}
	if strings.TrimSpace(req.Category) == "" {
		return nil, &domain.ErrValidation{Field: "category", Message: "category is required"}
	}
	if strings.TrimSpace(req.Channel) == "" {
		return nil, &domain.ErrValidation{Field: "payment_method", Message: "payment method is required"}
	}

	now := time.Now().UTC()
	date := now
	if req.Date != nil {
		date = req.Date.UTC()
	}

	tx := &domain.Transaction{
		ID:       uuid.New().String(),
		UserID:   userID,
		Amount:   req.Amount,
		Type:     req.Type,
		Category: strings.TrimSpace(req.Category),
		Channel:  strings.TrimSpace(req.Channel),
		Note:     strings.TrimSpace(req.Note),
		Date:     date,
	}
	// Credit and debt open unresolved; other types never carry a state.
	if tx.Type == domain.TypeCredit || tx.Type == domain.TypeDebt {
		tx.Resolution = domain.ResolutionPending
	}

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	user, earned, err := s.applyRewards(ctx, userID, tx.Type, now)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordEntry(string(tx.Type), earned)
	s.viewCache.DeletePrefix("user:" + userID + ":")
	// Coins and streak feed the leaderboard view.
	s.viewCache.Delete("global:leaderboard")

	s.logger.Info("transaction recorded",
		zap.String("transaction_id", tx.ID),
		zap.String("user_id", userID),
		zap.String("type", string(tx.Type)),
		zap.Int("coins_earned", earned),
		zap.Int("streak", user.Streak),
	)

	return &domain.EntryResult{
		Transaction: tx,
		CoinsEarned: earned,
		Coins:       user.Coins,
		Streak:      user.Streak,
		Tier:        user.Tier,
		TierStatus:  domain.TierStatusFor(user.Coins),
	}, nil
}

// applyRewards runs the streak engine against a fresh user snapshot and
// lands it with a conditional write. On contention it re-reads and
// recomputes so both writers' coins count and the day is counted once.
func (s *VaultService) applyRewards(ctx context.Context, userID string, txType domain.TransactionType, now time.Time) (*domain.User, int, error) {
	for attempt := 0; attempt < rewardWriteAttempts; attempt++ {
		user, err := s.users.GetUserByID(ctx, userID)
		if err != nil {
			return nil, 0, fmt.Errorf("get user for rewards: %w", err)
		}

		expect := user.LastEntryDate
		before := user.Coins
		updated := *user
		domain.ApplyRewards(&updated, txType, now)

		swapped, err := s.users.ApplyRewardUpdate(ctx, userID, expect, map[string]any{
			"coins":           updated.Coins,
			"streak":          updated.Streak,
			"last_entry_date": updated.LastEntryDate,
			"tier":            string(updated.Tier),
		})
		if err != nil {
			return nil, 0, fmt.Errorf("apply reward update: %w", err)
		}
		if swapped {
			return &updated, updated.Coins - before, nil
		}

		s.logger.Debug("reward write lost the race, retrying",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, 0, &domain.ErrConcurrentUpdate{Resource: "user", ID: userID}
}

// ============================================================
// ListTransactions — GET /v1/users/{id}/transactions
// ============================================================

func (s *VaultService) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	ctx, span := vaultTracer.Start(ctx, "VaultService.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// ============================================================
// UpdateTransaction — PATCH /v1/transactions/{id}
// ============================================================

func (s *VaultService) UpdateTransaction(ctx context.Context, userID, txID string, req *domain.UpdateTransactionRequest) (*domain.Transaction, error) {
	ctx, span := vaultTracer.Start(ctx, "VaultService.UpdateTransaction")
	defer span.End()

	tx, err := s.ownedTransaction(ctx, userID, txID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Amount != nil {
		if *req.Amount <= 0 {
			return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
		}
		updates["amount"] = *req.Amount
	}
	if req.Category != nil {
		if strings.TrimSpace(*req.Category) == "" {
			return nil, &domain.ErrValidation{Field: "category", Message: "category cannot be empty"}
		}
		updates["category"] = strings.TrimSpace(*req.Category)
	}
	if req.Channel != nil {
		if strings.TrimSpace(*req.Channel) == "" {
			return nil, &domain.ErrValidation{Field: "payment_method", Message: "payment method cannot be empty"}
		}
		updates["payment_method"] = strings.TrimSpace(*req.Channel)
	}
	if req.Note != nil {
		updates["note"] = strings.TrimSpace(*req.Note)
	}
	if len(updates) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "no fields to update"}
	}

	// Edits never re-run the reward engine.
	if err := s.store.UpdateTransaction(ctx, txID, updates); err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	s.viewCache.DeletePrefix("user:" + tx.UserID + ":")

	return s.store.GetTransaction(ctx, txID)
}

// ============================================================
// DeleteTransaction — DELETE /v1/transactions/{id}
// ============================================================

func (s *VaultService) DeleteTransaction(ctx context.Context, userID, txID string) error {
	ctx, span := vaultTracer.Start(ctx, "VaultService.DeleteTransaction")
	defer span.End()

	tx, err := s.ownedTransaction(ctx, userID, txID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteTransaction(ctx, txID); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.viewCache.DeletePrefix("user:" + tx.UserID + ":")

	s.logger.Info("transaction deleted",
		zap.String("transaction_id", txID),
		zap.String("user_id", tx.UserID),
	)
	return nil
}

// ============================================================
// Resolve — POST /v1/transactions/{id}/resolve
// ============================================================

// Resolve moves a CREDIT or DEBT record between settlement states.
// PENDING reopens a closed record (manual correction); SETTLED and
// DEFAULTED both remove it from net liquidity.
func (s *VaultService) Resolve(ctx context.Context, userID, txID string, req *domain.ResolveRequest) (*domain.Transaction, error) {
	ctx, span := vaultTracer.Start(ctx, "VaultService.Resolve")
	defer span.End()
	outcome := req.Outcome
	span.SetAttributes(attribute.String("resolution", string(outcome)))

	switch outcome {
	case domain.ResolutionPending, domain.ResolutionSettled, domain.ResolutionDefaulted:
	default:
		return nil, &domain.ErrValidation{Field: "outcome", Message: fmt.Sprintf("unknown resolution %q", outcome)}
	}

	tx, err := s.ownedTransaction(ctx, userID, txID)
	if err != nil {
		return nil, err
	}
	if tx.Type != domain.TypeCredit && tx.Type != domain.TypeDebt {
		return nil, &domain.ErrValidation{Field: "type", Message: "only credit and debt records can be resolved"}
	}

	updates := map[string]any{"resolution": string(outcome)}
	if req.Note != nil {
		updates["note"] = strings.TrimSpace(*req.Note)
	}
	if err := s.store.UpdateTransaction(ctx, txID, updates); err != nil {
		return nil, fmt.Errorf("resolve transaction: %w", err)
	}
	s.viewCache.DeletePrefix("user:" + tx.UserID + ":")

	s.logger.Info("transaction resolved",
		zap.String("transaction_id", txID),
		zap.String("outcome", string(outcome)),
	)

	tx.Resolution = outcome
	if req.Note != nil {
		tx.Note = strings.TrimSpace(*req.Note)
	}
	return tx, nil
}

// ownedTransaction fetches a record and enforces ownership. An empty
// userID skips the check (admin surfaces).
func (s *VaultService) ownedTransaction(ctx context.Context, userID, txID string) (*domain.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if userID != "" && tx.UserID != userID {
		return nil, &domain.ErrForbidden{Action: "access another user's transaction"}
	}
	return tx, nil
}
