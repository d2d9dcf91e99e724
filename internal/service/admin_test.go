package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/fintrack/vault-api-go/internal/infra/cache"
	"github.com/fintrack/vault-api-go/internal/infra/localstore"
	"github.com/fintrack/vault-api-go/internal/service"

	"go.uber.org/zap"
)

func newAdminService(store *localstore.Store) *service.AdminService {
	return service.NewAdminService(store, store, store, store, cache.New[any](time.Minute), zap.NewNop())
}

func TestPurgeUser_CascadesAndExcludes(t *testing.T) {
	store := localstore.New()
	svc := newAdminService(store)
	ctx := context.Background()
	seedUser(t, store, "u1")
	seedUser(t, store, "u2")

	store.CreateTransaction(ctx, &domain.Transaction{ID: "t1", UserID: "u1", Type: domain.TypeIncome, Amount: 10, Date: time.Now()})
	store.CreateTransaction(ctx, &domain.Transaction{ID: "t2", UserID: "u2", Type: domain.TypeIncome, Amount: 20, Date: time.Now()})
	store.CreateGoal(ctx, &domain.Goal{ID: "g1", UserID: "u1", Name: "trip"})
	store.SetBudget(ctx, &domain.Budget{ID: "b1", UserID: "u1", Category: "food", Limit: 100})
	store.CreateLabel(ctx, &domain.Label{ID: "l1", UserID: "u1", Kind: domain.LabelChannel, Name: "pix"})
	store.StoreRefreshToken(ctx, "u1", "hash1", time.Now().Add(time.Hour))

	if err := svc.PurgeUser(ctx, "u1"); err != nil {
		t.Fatalf("purge: %v", err)
	}

	if !store.IsPurged("u1") {
		t.Fatal("expected u1 on the exclusion list")
	}
	_, err := store.GetUserByID(ctx, "u1")
	var purged *domain.ErrUserPurged
	if !errors.As(err, &purged) {
		t.Fatalf("expected ErrUserPurged, got %v", err)
	}

	if txs, _ := store.ListTransactions(ctx, "u1"); len(txs) != 0 {
		t.Errorf("expected transactions gone, got %d", len(txs))
	}
	if goals, _ := store.ListGoals(ctx, "u1"); len(goals) != 0 {
		t.Errorf("expected goals gone, got %d", len(goals))
	}
	if budgets, _ := store.ListBudgets(ctx, "u1"); len(budgets) != 0 {
		t.Errorf("expected budgets gone, got %d", len(budgets))
	}
	if tok, _ := store.GetRefreshToken(ctx, "hash1"); tok != nil {
		t.Error("expected sessions revoked")
	}

	// The other user's data is untouched.
	if txs, _ := store.ListTransactions(ctx, "u2"); len(txs) != 1 {
		t.Errorf("expected u2's ledger intact, got %d records", len(txs))
	}

	// Purging again is safe.
	if err := svc.PurgeUser(ctx, "u1"); err != nil {
		t.Fatalf("re-purge: %v", err)
	}
}

func TestResetRewards_KeepsLedger(t *testing.T) {
	store := localstore.New()
	svc := newAdminService(store)
	ctx := context.Background()

	store.CreateUser(ctx, &domain.User{
		ID: "u1", Name: "Ana", Coins: 2600, Streak: 12,
		LastEntryDate: "2026-08-28", Tier: domain.TierPlatinum,
	})
	store.CreateTransaction(ctx, &domain.Transaction{ID: "t1", UserID: "u1", Type: domain.TypeIncome, Amount: 10, Date: time.Now()})

	user, err := svc.ResetRewards(ctx, "u1")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if user.Coins != domain.StartingCoins || user.Streak != 0 || user.Tier != domain.TierCopper || user.LastEntryDate != "" {
		t.Errorf("unexpected state after reset: %+v", user)
	}

	if txs, _ := store.ListTransactions(ctx, "u1"); len(txs) != 1 {
		t.Error("reset must not touch the ledger")
	}
}
