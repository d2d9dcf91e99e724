package domain

import (
	"sort"
	"strings"
)

// Ledger engine: pure folds over a user's transaction list. All functions
// read a fully-materialized slice and never mutate it, so recomputing on
// every request is safe and idempotent.

// Delta is the signed contribution of one transaction to net liquidity.
// An unresolved CREDIT (money lent out) drains liquidity until it comes
// back; an unresolved DEBT (money borrowed in) adds liquidity until it is
// paid back. Both go to zero on resolution: the outstanding side is
// tracked by CreditBook/DebtBook, not here.
func Delta(t Transaction) float64 {
	switch t.Type {
	case TypeIncome:
		return t.Amount
	case TypeExpense, TypeSaving:
		return -t.Amount
	case TypeCredit:
		if t.Resolved() {
			return 0
		}
		return -t.Amount
	case TypeDebt:
		if t.Resolved() {
			return 0
		}
		return t.Amount
	}
	return 0
}

// NetLiquidity folds the full list to a single signed total.
func NetLiquidity(txs []Transaction) float64 {
	var total float64
	for _, t := range txs {
		total += Delta(t)
	}
	return total
}

// ChannelBalances accumulates the same deltas per observed channel
// string. Channels are open-ended, so nothing is excluded and the sum of
// all channel balances always equals NetLiquidity.
func ChannelBalances(txs []Transaction) map[string]float64 {
	balances := make(map[string]float64)
	for _, t := range txs {
		balances[t.Channel] += Delta(t)
	}
	return balances
}

// MonthlySpendByCategory sums EXPENSE amounts per category for one
// calendar month (month is "YYYY-MM", matched against the transaction
// date in UTC).
func MonthlySpendByCategory(txs []Transaction, month string) map[string]float64 {
	spend := make(map[string]float64)
	for _, t := range txs {
		if t.Type != TypeExpense {
			continue
		}
		if t.Date.UTC().Format("2006-01") != month {
			continue
		}
		spend[t.Category] += t.Amount
	}
	return spend
}

// TopSpending returns the month's expense categories sorted by total
// descending, truncated to n when n > 0. Ties break alphabetically so
// the order is deterministic.
func TopSpending(txs []Transaction, month string, n int) []CategoryTotal {
	spend := MonthlySpendByCategory(txs, month)
	out := make([]CategoryTotal, 0, len(spend))
	for cat, total := range spend {
		out = append(out, CategoryTotal{Category: cat, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Category < out[j].Category
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// CreditBook splits money lent out into outstanding vs recovered.
func CreditBook(txs []Transaction) CreditSummary {
	var s CreditSummary
	for _, t := range txs {
		if t.Type != TypeCredit {
			continue
		}
		if t.Resolved() {
			s.Recovered += t.Amount
		} else {
			s.Outstanding += t.Amount
		}
	}
	return s
}

// DebtBook splits money borrowed in into outstanding vs settled.
func DebtBook(txs []Transaction) DebtSummary {
	var s DebtSummary
	for _, t := range txs {
		if t.Type != TypeDebt {
			continue
		}
		if t.Resolved() {
			s.Settled += t.Amount
		} else {
			s.Outstanding += t.Amount
		}
	}
	return s
}

// MonthlyTrends buckets income and expense totals per calendar month,
// sorted ascending. CREDIT/DEBT/SAVING are excluded: the trend chart
// shows earn-vs-spend, not loan movement.
func MonthlyTrends(txs []Transaction) []MonthlyTrend {
	income := make(map[string]float64)
	expense := make(map[string]float64)
	for _, t := range txs {
		month := t.Date.UTC().Format("2006-01")
		switch t.Type {
		case TypeIncome:
			income[month] += t.Amount
		case TypeExpense:
			expense[month] += t.Amount
		}
	}
	months := make([]string, 0, len(income)+len(expense))
	seen := make(map[string]bool)
	for m := range income {
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	for m := range expense {
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	sort.Strings(months)

	out := make([]MonthlyTrend, 0, len(months))
	for _, m := range months {
		out = append(out, MonthlyTrend{
			Month:    m,
			Income:   income[m],
			Expenses: expense[m],
			Net:      income[m] - expense[m],
		})
	}
	return out
}

// NormalizeLabel canonicalizes a category/goal name for matching:
// trimmed and lower-cased.
func NormalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
