package domain_test

import (
	"testing"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func sampleTxs() []domain.Transaction {
	return []domain.Transaction{
		{ID: "t1", Type: domain.TypeIncome, Amount: 5000, Channel: "WALLET", Category: "Salary", Date: day("2026-03-01")},
		{ID: "t2", Type: domain.TypeExpense, Amount: 1200, Channel: "ONLINE", Category: "Rent", Date: day("2026-03-02")},
		{ID: "t3", Type: domain.TypeExpense, Amount: 300, Channel: "WALLET", Category: "Groceries", Date: day("2026-03-03")},
		{ID: "t4", Type: domain.TypeSaving, Amount: 500, Channel: "SAVING", Category: "Emergency Fund", Date: day("2026-03-04")},
		{ID: "t5", Type: domain.TypeCredit, Amount: 800, Channel: "ONLINE", Category: "Alice", Date: day("2026-03-05"), Resolution: domain.ResolutionPending},
		{ID: "t6", Type: domain.TypeDebt, Amount: 400, Channel: "WALLET", Category: "Bob", Date: day("2026-03-06"), Resolution: domain.ResolutionPending},
	}
}

func TestNetLiquidity(t *testing.T) {
	txs := sampleTxs()
	// 5000 - 1200 - 300 - 500 - 800 + 400
	want := 2600.0
	if got := domain.NetLiquidity(txs); got != want {
		t.Errorf("NetLiquidity = %v, want %v", got, want)
	}
}

func TestNetLiquidity_Idempotent(t *testing.T) {
	txs := sampleTxs()
	first := domain.NetLiquidity(txs)
	second := domain.NetLiquidity(txs)
	if first != second {
		t.Errorf("recompute changed result: %v then %v", first, second)
	}
	if txs[4].Resolution != domain.ResolutionPending {
		t.Error("input slice was mutated")
	}
}

func TestChannelBalances_SumMatchesNetLiquidity(t *testing.T) {
	txs := sampleTxs()
	balances := domain.ChannelBalances(txs)

	var sum float64
	for _, b := range balances {
		sum += b
	}
	if net := domain.NetLiquidity(txs); sum != net {
		t.Errorf("channel sum %v != net liquidity %v", sum, net)
	}

	if balances["WALLET"] != 5000-300+400 {
		t.Errorf("WALLET = %v, want %v", balances["WALLET"], 5000-300+400.0)
	}
	if balances["SAVING"] != -500 {
		t.Errorf("SAVING = %v, want -500", balances["SAVING"])
	}
}

func TestResolveCredit_MovesAmountNotLiquidity(t *testing.T) {
	txs := sampleTxs()
	before := domain.NetLiquidity(txs)
	credit := domain.CreditBook(txs)
	if credit.Outstanding != 800 || credit.Recovered != 0 {
		t.Fatalf("before resolve: outstanding=%v recovered=%v", credit.Outstanding, credit.Recovered)
	}

	txs[4].Resolution = domain.ResolutionSettled

	after := domain.NetLiquidity(txs)
	if after != before+800 {
		t.Errorf("resolving credit should add back %v: before=%v after=%v", 800.0, before, after)
	}
	credit = domain.CreditBook(txs)
	if credit.Outstanding != 0 || credit.Recovered != 800 {
		t.Errorf("after resolve: outstanding=%v recovered=%v", credit.Outstanding, credit.Recovered)
	}

	// No other record moved.
	debt := domain.DebtBook(txs)
	if debt.Outstanding != 400 || debt.Settled != 0 {
		t.Errorf("debt book changed: %+v", debt)
	}
}

func TestResolveDebt_Defaulted(t *testing.T) {
	txs := sampleTxs()
	txs[5].Resolution = domain.ResolutionDefaulted

	// Defaulted is terminal like settled: the borrowed money leaves the books.
	if got := domain.NetLiquidity(txs); got != 2200 {
		t.Errorf("NetLiquidity = %v, want 2200", got)
	}
	debt := domain.DebtBook(txs)
	if debt.Outstanding != 0 || debt.Settled != 400 {
		t.Errorf("debt book = %+v", debt)
	}
}

func TestResolutionIgnoredForOtherTypes(t *testing.T) {
	tx := domain.Transaction{Type: domain.TypeExpense, Amount: 100, Resolution: domain.ResolutionSettled}
	if tx.Resolved() {
		t.Error("EXPENSE must never report resolved")
	}
	if got := domain.Delta(tx); got != -100 {
		t.Errorf("Delta = %v, want -100", got)
	}
}

func TestTopSpending(t *testing.T) {
	txs := []domain.Transaction{
		{Type: domain.TypeExpense, Amount: 100, Category: "Dining", Date: day("2026-03-10")},
		{Type: domain.TypeExpense, Amount: 250, Category: "Transport", Date: day("2026-03-11")},
		{Type: domain.TypeExpense, Amount: 50, Category: "Dining", Date: day("2026-03-12")},
		{Type: domain.TypeExpense, Amount: 999, Category: "Rent", Date: day("2026-02-28")}, // other month
		{Type: domain.TypeIncome, Amount: 5000, Category: "Salary", Date: day("2026-03-13")},
	}

	top := domain.TopSpending(txs, "2026-03", 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].Category != "Transport" || top[0].Total != 250 {
		t.Errorf("top[0] = %+v", top[0])
	}
	if top[1].Category != "Dining" || top[1].Total != 150 {
		t.Errorf("top[1] = %+v", top[1])
	}
}

func TestMonthlyTrends(t *testing.T) {
	txs := []domain.Transaction{
		{Type: domain.TypeIncome, Amount: 1000, Date: day("2026-01-15")},
		{Type: domain.TypeExpense, Amount: 400, Date: day("2026-01-20")},
		{Type: domain.TypeExpense, Amount: 100, Date: day("2026-02-01")},
		{Type: domain.TypeSaving, Amount: 999, Date: day("2026-02-02")}, // excluded from trend
	}

	trends := domain.MonthlyTrends(txs)
	if len(trends) != 2 {
		t.Fatalf("expected 2 months, got %d", len(trends))
	}
	if trends[0].Month != "2026-01" || trends[0].Income != 1000 || trends[0].Expenses != 400 || trends[0].Net != 600 {
		t.Errorf("trends[0] = %+v", trends[0])
	}
	if trends[1].Month != "2026-02" || trends[1].Expenses != 100 {
		t.Errorf("trends[1] = %+v", trends[1])
	}
}
