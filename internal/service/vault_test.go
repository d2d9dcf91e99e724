package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/fintrack/vault-api-go/internal/infra/cache"
	"github.com/fintrack/vault-api-go/internal/infra/localstore"
	"github.com/fintrack/vault-api-go/internal/infra/observability"
	"github.com/fintrack/vault-api-go/internal/service"

	"go.uber.org/zap"
)

func newVaultService(store *localstore.Store) *service.VaultService {
	return service.NewVaultService(store, store, cache.New[any](time.Minute), observability.NewMetrics(), zap.NewNop())
}

func seedUser(t *testing.T, store *localstore.Store, id string) {
	t.Helper()
	err := store.CreateUser(context.Background(), &domain.User{
		ID:    id,
		Email: id + "@example.com",
		Name:  "User " + id,
		Coins: domain.StartingCoins,
		Tier:  domain.TierCopper,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestCreateTransaction_AwardsCoinsAndCountsDayOnce(t *testing.T) {
	store := localstore.New()
	svc := newVaultService(store)
	ctx := context.Background()
	seedUser(t, store, "u1")

	res, err := svc.CreateTransaction(ctx, "u1", &domain.CreateTransactionRequest{
		Amount:   1200,
		Type:     domain.TypeIncome,
		Category: "salary",
		Channel:  "bank",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.CoinsEarned != domain.CoinsPerEntry {
		t.Errorf("expected %d coins earned, got %d", domain.CoinsPerEntry, res.CoinsEarned)
	}
	if res.Streak != 1 {
		t.Errorf("expected streak 1 on first entry, got %d", res.Streak)
	}
	if res.Transaction.Resolution != "" {
		t.Errorf("income must not carry a resolution, got %q", res.Transaction.Resolution)
	}

	// A second entry on the same day pays coins but keeps the streak.
	res2, err := svc.CreateTransaction(ctx, "u1", &domain.CreateTransactionRequest{
		Amount:   300,
		Type:     domain.TypeSaving,
		Category: "vacation",
		Channel:  "bank",
	})
	if err != nil {
		t.Fatalf("create saving: %v", err)
	}
	if res2.CoinsEarned != domain.CoinsPerSaving {
		t.Errorf("expected saving bonus %d, got %d", domain.CoinsPerSaving, res2.CoinsEarned)
	}
	if res2.Streak != 1 {
		t.Errorf("same-day entry must not inflate streak, got %d", res2.Streak)
	}
	if res2.Coins != domain.StartingCoins+domain.CoinsPerEntry+domain.CoinsPerSaving {
		t.Errorf("unexpected coin total %d", res2.Coins)
	}
}

func TestCreateTransaction_CreditOpensPending(t *testing.T) {
	store := localstore.New()
	svc := newVaultService(store)
	seedUser(t, store, "u1")

	res, err := svc.CreateTransaction(context.Background(), "u1", &domain.CreateTransactionRequest{
		Amount:   500,
		Type:     domain.TypeCredit,
		Category: "carlos",
		Channel:  "cash",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Transaction.Resolution != domain.ResolutionPending {
		t.Errorf("expected PENDING, got %q", res.Transaction.Resolution)
	}
}

func TestCreateTransaction_Validation(t *testing.T) {
	store := localstore.New()
	svc := newVaultService(store)
	seedUser(t, store, "u1")
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.CreateTransactionRequest
	}{
		{"zero amount", domain.CreateTransactionRequest{Amount: 0, Type: domain.TypeIncome, Category: "x", Channel: "y"}},
		{"negative amount", domain.CreateTransactionRequest{Amount: -5, Type: domain.TypeIncome, Category: "x", Channel: "y"}},
		{"unknown type", domain.CreateTransactionRequest{Amount: 10, Type: "LOAN", Category: "x", Channel: "y"}},
		{"missing category", domain.CreateTransactionRequest{Amount: 10, Type: domain.TypeExpense, Category: "  ", Channel: "y"}},
		{"missing channel", domain.CreateTransactionRequest{Amount: 10, Type: domain.TypeExpense, Category: "x", Channel: ""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateTransaction(ctx, "u1", &tc.req)
			var ve *domain.ErrValidation
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

// contentionStore fails the first n conditional writes the way a racing
// writer would, then behaves normally.
type contentionStore struct {
	*localstore.Store
	failures int
}

func (c *contentionStore) ApplyRewardUpdate(ctx context.Context, id, expect string, updates map[string]any) (bool, error) {
	if c.failures > 0 {
		c.failures--
		return false, nil
	}
	return c.Store.ApplyRewardUpdate(ctx, id, expect, updates)
}

func TestCreateTransaction_RetriesRewardWriteOnContention(t *testing.T) {
	store := localstore.New()
	users := &contentionStore{Store: store, failures: 2}
	svc := service.NewVaultService(store, users, cache.New[any](time.Minute), observability.NewMetrics(), zap.NewNop())
	seedUser(t, store, "u1")

	res, err := svc.CreateTransaction(context.Background(), "u1", &domain.CreateTransactionRequest{
		Amount:   10,
		Type:     domain.TypeExpense,
		Category: "food",
		Channel:  "card",
	})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if res.CoinsEarned != domain.CoinsPerEntry {
		t.Errorf("expected coins after retry, got %d", res.CoinsEarned)
	}
}

func TestCreateTransaction_GivesUpAfterRepeatedContention(t *testing.T) {
	store := localstore.New()
	users := &contentionStore{Store: store, failures: 10}
	svc := service.NewVaultService(store, users, cache.New[any](time.Minute), observability.NewMetrics(), zap.NewNop())
	seedUser(t, store, "u1")

	_, err := svc.CreateTransaction(context.Background(), "u1", &domain.CreateTransactionRequest{
		Amount:   10,
		Type:     domain.TypeExpense,
		Category: "food",
		Channel:  "card",
	})
	var conflict *domain.ErrConcurrentUpdate
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConcurrentUpdate, got %v", err)
	}
}

func TestResolve_CreditLifecycle(t *testing.T) {
	store := localstore.New()
	svc := newVaultService(store)
	seedUser(t, store, "u1")
	ctx := context.Background()

	res, err := svc.CreateTransaction(ctx, "u1", &domain.CreateTransactionRequest{
		Amount:   200,
		Type:     domain.TypeCredit,
		Category: "maria",
		Channel:  "cash",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	txID := res.Transaction.ID

	note := "paid back in person"
	tx, err := svc.Resolve(ctx, "u1", txID, &domain.ResolveRequest{Outcome: domain.ResolutionSettled, Note: &note})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tx.Resolution != domain.ResolutionSettled || tx.Note != note {
		t.Errorf("unexpected resolved record: %+v", tx)
	}

	// Reopening is a legal correction.
	tx, err = svc.Resolve(ctx, "u1", txID, &domain.ResolveRequest{Outcome: domain.ResolutionPending})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if tx.Resolution != domain.ResolutionPending {
		t.Errorf("expected PENDING after reopen, got %q", tx.Resolution)
	}
}

func TestResolve_RejectsNonDebtTypes(t *testing.T) {
	store := localstore.New()
	svc := newVaultService(store)
	seedUser(t, store, "u1")
	ctx := context.Background()

	res, _ := svc.CreateTransaction(ctx, "u1", &domain.CreateTransactionRequest{
		Amount:   50,
		Type:     domain.TypeExpense,
		Category: "food",
		Channel:  "card",
	})

	_, err := svc.Resolve(ctx, "u1", res.Transaction.ID, &domain.ResolveRequest{Outcome: domain.ResolutionSettled})
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for expense resolve, got %v", err)
	}
}

func TestUpdateTransaction_OwnershipEnforced(t *testing.T) {
	store := localstore.New()
	svc := newVaultService(store)
	seedUser(t, store, "u1")
	seedUser(t, store, "u2")
	ctx := context.Background()

	res, _ := svc.CreateTransaction(ctx, "u1", &domain.CreateTransactionRequest{
		Amount:   50,
		Type:     domain.TypeExpense,
		Category: "food",
		Channel:  "card",
	})

	amount := 75.0
	_, err := svc.UpdateTransaction(ctx, "u2", res.Transaction.ID, &domain.UpdateTransactionRequest{Amount: &amount})
	var forbidden *domain.ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if err := svc.DeleteTransaction(ctx, "u2", res.Transaction.ID); !errors.As(err, &forbidden) {
		t.Fatalf("expected ErrForbidden on delete, got %v", err)
	}
}

func TestCreateTransaction_RefreshesLeaderboard(t *testing.T) {
	store := localstore.New()
	viewCache := cache.New[any](time.Minute)
	vault := service.NewVaultService(store, store, viewCache, observability.NewMetrics(), zap.NewNop())
	summary := service.NewSummaryService(store, store, viewCache, observability.NewMetrics(), zap.NewNop())
	ctx := context.Background()
	seedUser(t, store, "u1")

	// Warm the leaderboard cache before any entry lands.
	before, err := summary.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if before[0].Coins != domain.StartingCoins {
		t.Fatalf("expected starting coins on the board, got %d", before[0].Coins)
	}

	if _, err := vault.CreateTransaction(ctx, "u1", &domain.CreateTransactionRequest{
		Amount:   300,
		Type:     domain.TypeSaving,
		Category: "trip",
		Channel:  "bank",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	after, err := summary.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	want := domain.StartingCoins + domain.CoinsPerSaving
	if after[0].Coins != want {
		t.Errorf("expected %d coins after the entry, got %d (stale cache)", want, after[0].Coins)
	}
	if after[0].Streak != 1 {
		t.Errorf("expected streak 1 after the entry, got %d", after[0].Streak)
	}
}
