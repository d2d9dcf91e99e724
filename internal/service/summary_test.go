package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/fintrack/vault-api-go/internal/infra/cache"
	"github.com/fintrack/vault-api-go/internal/infra/localstore"
	"github.com/fintrack/vault-api-go/internal/infra/observability"
	"github.com/fintrack/vault-api-go/internal/service"

	"go.uber.org/zap"
)

func newSummaryService(store *localstore.Store) *service.SummaryService {
	return service.NewSummaryService(store, store, cache.New[any](time.Minute), observability.NewMetrics(), zap.NewNop())
}

func TestSummary_DerivesLedgerState(t *testing.T) {
	store := localstore.New()
	svc := newSummaryService(store)
	ctx := context.Background()
	seedUser(t, store, "u1")

	now := time.Now().UTC()
	store.CreateTransaction(ctx, &domain.Transaction{ID: "t1", UserID: "u1", Type: domain.TypeIncome, Amount: 3000, Channel: "bank", Date: now})
	store.CreateTransaction(ctx, &domain.Transaction{ID: "t2", UserID: "u1", Type: domain.TypeExpense, Amount: 400, Channel: "card", Date: now})
	store.CreateTransaction(ctx, &domain.Transaction{ID: "t3", UserID: "u1", Type: domain.TypeCredit, Amount: 500, Channel: "cash", Date: now, Resolution: domain.ResolutionPending})
	store.CreateTransaction(ctx, &domain.Transaction{ID: "t4", UserID: "u1", Type: domain.TypeDebt, Amount: 200, Channel: "cash", Date: now, Resolution: domain.ResolutionSettled})

	sum, err := svc.Summary(ctx, "u1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	// 3000 - 400 - 500 (open credit); settled debt contributes nothing.
	if sum.NetLiquidity != 2100 {
		t.Errorf("expected net liquidity 2100, got %v", sum.NetLiquidity)
	}
	if sum.Credit.Outstanding != 500 || sum.Credit.Recovered != 0 {
		t.Errorf("unexpected credit book: %+v", sum.Credit)
	}
	if sum.Debt.Outstanding != 0 || sum.Debt.Settled != 200 {
		t.Errorf("unexpected debt book: %+v", sum.Debt)
	}
	if sum.TransactionN != 4 {
		t.Errorf("expected 4 records, got %d", sum.TransactionN)
	}

	total := 0.0
	for _, v := range sum.ChannelBalances {
		total += v
	}
	if total != sum.NetLiquidity {
		t.Errorf("channel balances sum %v != net liquidity %v", total, sum.NetLiquidity)
	}
}

func TestGoalStatuses_CelebrationFiresOnce(t *testing.T) {
	store := localstore.New()
	svc := newSummaryService(store)
	ctx := context.Background()
	seedUser(t, store, "u1")

	store.CreateGoal(ctx, &domain.Goal{ID: "g1", UserID: "u1", Name: "Trip to Japan", TargetAmount: 1000, CreatedAt: time.Now()})
	store.CreateTransaction(ctx, &domain.Transaction{ID: "t1", UserID: "u1", Type: domain.TypeSaving, Amount: 1000, Category: "  trip TO japan ", Channel: "bank", Date: time.Now()})

	statuses, err := svc.GoalStatuses(ctx, "u1")
	if err != nil {
		t.Fatalf("goals: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("expected 1 goal, got %d", len(statuses))
	}
	if !statuses[0].Reached || !statuses[0].JustReached {
		t.Fatalf("expected first evaluation to celebrate, got %+v", statuses[0])
	}
	if statuses[0].Progress != 100 {
		t.Errorf("expected 100%% progress, got %v", statuses[0].Progress)
	}

	// Re-render: still reached, never celebrated again.
	statuses, err = svc.GoalStatuses(ctx, "u1")
	if err != nil {
		t.Fatalf("goals again: %v", err)
	}
	if !statuses[0].Reached {
		t.Error("expected goal to stay reached")
	}
	if statuses[0].JustReached {
		t.Error("celebration replayed on second evaluation")
	}
}

func TestBudgetReport_MonthValidation(t *testing.T) {
	store := localstore.New()
	svc := newSummaryService(store)
	seedUser(t, store, "u1")

	if _, err := svc.BudgetReport(context.Background(), "u1", "2026/08"); err == nil {
		t.Fatal("expected invalid month format to be rejected")
	}
	report, err := svc.BudgetReport(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("default month: %v", err)
	}
	if report.Month != time.Now().UTC().Format("2006-01") {
		t.Errorf("expected current month default, got %s", report.Month)
	}
}

func TestLeaderboard_OrdersByStreakThenCoins(t *testing.T) {
	store := localstore.New()
	svc := newSummaryService(store)
	ctx := context.Background()

	store.CreateUser(ctx, &domain.User{ID: "a", Name: "A", Streak: 3, Coins: 100})
	store.CreateUser(ctx, &domain.User{ID: "b", Name: "B", Streak: 7, Coins: 50})
	store.CreateUser(ctx, &domain.User{ID: "c", Name: "C", Streak: 3, Coins: 900})

	entries, err := svc.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	got := []string{entries[0].Name, entries[1].Name, entries[2].Name}
	want := []string{"B", "C", "A"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestTopSpending_UsesRequestedMonth(t *testing.T) {
	store := localstore.New()
	svc := newSummaryService(store)
	ctx := context.Background()
	seedUser(t, store, "u1")

	may := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	june := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	store.CreateTransaction(ctx, &domain.Transaction{ID: "t1", UserID: "u1", Type: domain.TypeExpense, Amount: 100, Category: "food", Channel: "card", Date: may})
	store.CreateTransaction(ctx, &domain.Transaction{ID: "t2", UserID: "u1", Type: domain.TypeExpense, Amount: 999, Category: "rent", Channel: "bank", Date: june})

	top, err := svc.TopSpending(ctx, "u1", "2026-05", 5)
	if err != nil {
		t.Fatalf("top spending: %v", err)
	}
	if len(top) != 1 || top[0].Category != "food" {
		t.Fatalf("expected only May's food spend, got %v", top)
	}
}
