package domain_test

import (
	"testing"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
)

func TestEvaluateBudgets_BreachFlag(t *testing.T) {
	budgets := []domain.Budget{
		{ID: "b1", Category: "Dining", Limit: 1000},
		{ID: "b2", Category: "Transport", Limit: 1000},
	}
	txs := []domain.Transaction{
		{Type: domain.TypeExpense, Amount: 1001, Category: "Dining", Date: day("2026-03-05")},
		{Type: domain.TypeExpense, Amount: 999, Category: "Transport", Date: day("2026-03-06")},
	}

	report := domain.EvaluateBudgets(budgets, txs, "2026-03")
	if len(report.Budgets) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(report.Budgets))
	}

	dining := report.Budgets[0]
	if !dining.Breached || dining.Remaining != -1 {
		t.Errorf("dining: breached=%v remaining=%v", dining.Breached, dining.Remaining)
	}
	transport := report.Budgets[1]
	if transport.Breached || transport.Remaining != 1 {
		t.Errorf("transport: breached=%v remaining=%v", transport.Breached, transport.Remaining)
	}
}

func TestEvaluateBudgets_GlobalSaturation(t *testing.T) {
	budgets := []domain.Budget{
		{Category: "Dining", Limit: 500},
		{Category: "Rent", Limit: 1500},
	}
	txs := []domain.Transaction{
		{Type: domain.TypeExpense, Amount: 250, Category: "Dining", Date: day("2026-03-01")},
		{Type: domain.TypeExpense, Amount: 750, Category: "Rent", Date: day("2026-03-02")},
		{Type: domain.TypeExpense, Amount: 100, Category: "Misc", Date: day("2026-02-01")}, // other month
	}

	report := domain.EvaluateBudgets(budgets, txs, "2026-03")
	if report.TotalLimit != 2000 || report.TotalSpent != 1000 {
		t.Fatalf("totals: limit=%v spent=%v", report.TotalLimit, report.TotalSpent)
	}
	if report.GlobalSaturation != 50 {
		t.Errorf("global saturation = %v, want 50", report.GlobalSaturation)
	}
}

func TestEvaluateBudgets_NormalizedCategoryMatch(t *testing.T) {
	budgets := []domain.Budget{{Category: "Dining", Limit: 100}}
	txs := []domain.Transaction{
		{Type: domain.TypeExpense, Amount: 60, Category: "  dining ", Date: day("2026-03-05")},
		{Type: domain.TypeExpense, Amount: 50, Category: "DINING", Date: day("2026-03-06")},
	}

	report := domain.EvaluateBudgets(budgets, txs, "2026-03")
	s := report.Budgets[0]
	if s.Spent != 110 {
		t.Errorf("spent = %v, want 110 across case/space variants", s.Spent)
	}
	if !s.Breached {
		t.Error("expected breach once variants are folded together")
	}
}

func TestEvaluateBudgets_ZeroLimit(t *testing.T) {
	report := domain.EvaluateBudgets(
		[]domain.Budget{{Category: "Dining", Limit: 0}},
		[]domain.Transaction{{Type: domain.TypeExpense, Amount: 10, Category: "Dining", Date: day("2026-03-01")}},
		"2026-03",
	)
	if report.Budgets[0].Progress != 0 {
		t.Errorf("zero-limit progress = %v, want 0", report.Budgets[0].Progress)
	}
}

func TestEvaluateGoals_NormalizedMatchAndClamp(t *testing.T) {
	goals := []domain.Goal{{ID: "g1", Name: "Emergency Fund", TargetAmount: 1000}}
	txs := []domain.Transaction{
		{Type: domain.TypeSaving, Amount: 700, Category: "  emergency fund "},
		{Type: domain.TypeSaving, Amount: 800, Category: "EMERGENCY FUND"},
		{Type: domain.TypeSaving, Amount: 500, Category: "Vacation"},
		{Type: domain.TypeExpense, Amount: 300, Category: "Emergency Fund"}, // not SAVING
	}

	statuses := domain.EvaluateGoals(goals, txs)
	s := statuses[0]
	if s.Saved != 1500 {
		t.Errorf("saved = %v, want 1500", s.Saved)
	}
	if s.Progress != 100 {
		t.Errorf("progress = %v, want clamped 100", s.Progress)
	}
	if !s.Reached || !s.JustReached {
		t.Errorf("reached=%v justReached=%v", s.Reached, s.JustReached)
	}
	if s.Remaining != 0 {
		t.Errorf("remaining = %v, want 0", s.Remaining)
	}
}

func TestEvaluateGoals_MonotonicProgress(t *testing.T) {
	goal := []domain.Goal{{Name: "Trip", TargetAmount: 1000}}
	txs := []domain.Transaction{}

	last := 0.0
	for i := 0; i < 5; i++ {
		txs = append(txs, domain.Transaction{Type: domain.TypeSaving, Amount: 300, Category: "Trip"})
		p := domain.EvaluateGoals(goal, txs)[0].Progress
		if p < last {
			t.Fatalf("progress decreased: %v after %v", p, last)
		}
		last = p
	}
	if last != 100 {
		t.Errorf("final progress = %v, want 100", last)
	}
}

func TestEvaluateGoals_CelebrationIsOneShot(t *testing.T) {
	celebrated := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	goals := []domain.Goal{{Name: "Trip", TargetAmount: 100, CelebratedAt: &celebrated}}
	txs := []domain.Transaction{{Type: domain.TypeSaving, Amount: 150, Category: "Trip"}}

	s := domain.EvaluateGoals(goals, txs)[0]
	if !s.Reached {
		t.Error("goal should be reached")
	}
	if s.JustReached {
		t.Error("already-celebrated goal must not fire again")
	}
}
