package domain

import "sort"

// Budget & goal evaluator: compares period spend and goal contributions
// against user-defined thresholds. Pure, like the ledger folds.

// EvaluateBudgets evaluates every budget against the month's expense
// spend. Category matching is normalized (trimmed, case-insensitive),
// same as goal matching. Global saturation compares total expense
// spend (all categories, budgeted or not) against the sum of all
// limits, matching what the dashboard header shows.
func EvaluateBudgets(budgets []Budget, txs []Transaction, month string) BudgetReport {
	spend := MonthlySpendByCategory(txs, month)
	normSpend := make(map[string]float64, len(spend))
	for cat, v := range spend {
		normSpend[NormalizeLabel(cat)] += v
	}

	report := BudgetReport{Month: month, Budgets: make([]BudgetStatus, 0, len(budgets))}
	for _, b := range budgets {
		spent := normSpend[NormalizeLabel(b.Category)]
		status := BudgetStatus{
			Budget:    b,
			Spent:     spent,
			Remaining: b.Limit - spent,
			Breached:  spent > b.Limit,
		}
		if b.Limit > 0 {
			status.Progress = spent / b.Limit * 100
		}
		report.Budgets = append(report.Budgets, status)
		report.TotalLimit += b.Limit
	}
	sort.Slice(report.Budgets, func(i, j int) bool {
		return report.Budgets[i].Category < report.Budgets[j].Category
	})

	for _, v := range spend {
		report.TotalSpent += v
	}
	if report.TotalLimit > 0 {
		report.GlobalSaturation = report.TotalSpent / report.TotalLimit * 100
	}
	return report
}

// EvaluateGoals computes saved totals and progress for each goal.
// Matching is normalized (trimmed, case-insensitive) on both sides.
// Progress clamps at 100; JustReached flags a goal that crossed 100 and
// has not been celebrated yet — the caller persists the celebration so
// it fires exactly once.
func EvaluateGoals(goals []Goal, txs []Transaction) []GoalStatus {
	saved := make(map[string]float64)
	for _, t := range txs {
		if t.Type != TypeSaving {
			continue
		}
		saved[NormalizeLabel(t.Category)] += t.Amount
	}

	out := make([]GoalStatus, 0, len(goals))
	for _, g := range goals {
		s := saved[NormalizeLabel(g.Name)]
		status := GoalStatus{Goal: g, Saved: s}
		if g.TargetAmount > 0 {
			progress := s / g.TargetAmount * 100
			if progress > 100 {
				progress = 100
			}
			status.Progress = progress
		}
		if remaining := g.TargetAmount - s; remaining > 0 {
			status.Remaining = remaining
		}
		status.Reached = status.Progress >= 100 && g.TargetAmount > 0
		status.JustReached = status.Reached && g.CelebratedAt == nil
		out = append(out, status)
	}
	return out
}
