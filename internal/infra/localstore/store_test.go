package localstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/fintrack/vault-api-go/internal/infra/localstore"
)

func TestStore_UserLifecycle(t *testing.T) {
	s := localstore.New()
	ctx := context.Background()

	u := &domain.User{
		ID:        "u1",
		Email:     "ana@example.com",
		Name:      "Ana",
		Coins:     100,
		Tier:      domain.TierCopper,
		CreatedAt: time.Now(),
	}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetUserByEmail(ctx, "ANA@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != "u1" {
		t.Errorf("expected u1, got %s", got.ID)
	}

	updated, err := s.UpdateUser(ctx, "u1", map[string]any{"coins": 250, "tier": "COPPER"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Coins != 250 {
		t.Errorf("expected 250 coins, got %d", updated.Coins)
	}

	// Returned copies must not alias internal state.
	updated.Coins = 9999
	again, _ := s.GetUserByID(ctx, "u1")
	if again.Coins != 250 {
		t.Errorf("mutation of returned copy leaked into store")
	}
}

func TestStore_ApplyRewardUpdate_CAS(t *testing.T) {
	s := localstore.New()
	ctx := context.Background()

	s.CreateUser(ctx, &domain.User{ID: "u1", LastEntryDate: "2026-08-28", Streak: 4})

	ok, err := s.ApplyRewardUpdate(ctx, "u1", "2026-08-28", map[string]any{
		"streak":          5,
		"last_entry_date": "2026-08-29",
	})
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if !ok {
		t.Fatal("expected first conditional write to land")
	}

	// Second writer raced on the same stale snapshot.
	ok, err = s.ApplyRewardUpdate(ctx, "u1", "2026-08-28", map[string]any{
		"streak":          5,
		"last_entry_date": "2026-08-29",
	})
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if ok {
		t.Fatal("expected stale conditional write to be rejected")
	}

	u, _ := s.GetUserByID(ctx, "u1")
	if u.Streak != 5 {
		t.Errorf("expected streak 5, got %d", u.Streak)
	}
}

func TestStore_PurgeExclusion(t *testing.T) {
	s := localstore.New()
	ctx := context.Background()

	s.CreateUser(ctx, &domain.User{ID: "u1", Email: "gone@example.com"})
	s.CreateTransaction(ctx, &domain.Transaction{ID: "t1", UserID: "u1", Type: domain.TypeIncome, Amount: 10})

	s.MarkPurged("u1")

	if !s.IsPurged("u1") {
		t.Fatal("expected u1 to be on the exclusion list")
	}

	_, err := s.GetUserByID(ctx, "u1")
	var purged *domain.ErrUserPurged
	if !errors.As(err, &purged) {
		t.Fatalf("expected ErrUserPurged, got %v", err)
	}

	// A stale mirror refresh must not resurrect the user.
	s.PutUser(&domain.User{ID: "u1", Email: "gone@example.com"})
	if _, err := s.GetUserByID(ctx, "u1"); err == nil {
		t.Fatal("expected purged user to stay gone after PutUser")
	}

	txs, _ := s.ListTransactions(ctx, "")
	for _, tx := range txs {
		if tx.UserID == "u1" {
			t.Fatal("purged user's transactions leaked into admin list")
		}
	}
}

func TestStore_SetBudget_Upsert(t *testing.T) {
	s := localstore.New()
	ctx := context.Background()

	s.SetBudget(ctx, &domain.Budget{ID: "b1", UserID: "u1", Category: "food", Limit: 500})
	s.SetBudget(ctx, &domain.Budget{ID: "b2", UserID: "u1", Category: "food", Limit: 800})

	budgets, _ := s.ListBudgets(ctx, "u1")
	if len(budgets) != 1 {
		t.Fatalf("expected 1 budget after upsert, got %d", len(budgets))
	}
	if budgets[0].Limit != 800 {
		t.Errorf("expected limit 800, got %v", budgets[0].Limit)
	}
}

func TestStore_MarkGoalCelebrated_Idempotent(t *testing.T) {
	s := localstore.New()
	ctx := context.Background()

	s.CreateGoal(ctx, &domain.Goal{ID: "g1", UserID: "u1", Name: "trip"})

	first := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	if err := s.MarkGoalCelebrated(ctx, "g1", first); err != nil {
		t.Fatalf("celebrate: %v", err)
	}
	// Second stamp must not overwrite the first.
	s.MarkGoalCelebrated(ctx, "g1", first.Add(time.Hour))

	goals, _ := s.ListGoals(ctx, "u1")
	if goals[0].CelebratedAt == nil || !goals[0].CelebratedAt.Equal(first) {
		t.Errorf("expected celebrated_at to stay %v, got %v", first, goals[0].CelebratedAt)
	}
}

func TestStore_RefreshTokens(t *testing.T) {
	s := localstore.New()
	ctx := context.Background()

	s.StoreRefreshToken(ctx, "u1", "hash1", time.Now().Add(time.Hour))
	s.StoreRefreshToken(ctx, "u1", "hash2", time.Now().Add(time.Hour))

	tok, err := s.GetRefreshToken(ctx, "hash1")
	if err != nil || tok == nil {
		t.Fatalf("expected token, got %v / %v", tok, err)
	}

	s.RevokeAllRefreshTokens(ctx, "u1")

	if tok, _ := s.GetRefreshToken(ctx, "hash1"); tok != nil {
		t.Fatal("expected hash1 revoked")
	}
	if tok, _ := s.GetRefreshToken(ctx, "hash2"); tok != nil {
		t.Fatal("expected hash2 revoked")
	}
}
