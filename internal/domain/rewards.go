package domain

import "time"

// Streak & reward engine. Runs once per transaction creation, never on
// edit or delete. Calendar days are evaluated in a single reference
// timezone (UTC) so streaks are deterministic across clients.

// Coin policy. Tunable constants, not structural requirements.
const (
	StartingCoins  = 100
	CoinsPerEntry  = 50
	CoinsPerSaving = 100
)

// tierLadder is the monotonic step function from coins to tier,
// inclusive on the lower bound. Ordered ascending.
var tierLadder = []struct {
	Tier Tier
	Min  int
}{
	{TierCopper, 0},
	{TierSilver, 500},
	{TierGold, 1000},
	{TierPlatinum, 2500},
	{TierDiamond, 5000},
}

// TierFor maps cumulative coins to a tier.
func TierFor(coins int) Tier {
	tier := TierCopper
	for _, step := range tierLadder {
		if coins >= step.Min {
			tier = step.Tier
		}
	}
	return tier
}

// TierStatusFor computes the ladder position for display: current tier,
// next tier, and progress within the current band clamped to [0,100].
// At the top tier progress is pinned to 100.
func TierStatusFor(coins int) TierStatus {
	idx := 0
	for i, step := range tierLadder {
		if coins >= step.Min {
			idx = i
		}
	}
	status := TierStatus{
		Tier:         tierLadder[idx].Tier,
		CurrentFloor: tierLadder[idx].Min,
	}
	if idx == len(tierLadder)-1 {
		status.AtTop = true
		status.Progress = 100
		return status
	}
	next := tierLadder[idx+1]
	status.NextTier = next.Tier
	status.NextThreshold = next.Min
	status.CoinsToNext = next.Min - coins
	span := next.Min - tierLadder[idx].Min
	progress := float64(coins-tierLadder[idx].Min) / float64(span) * 100
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	status.Progress = progress
	return status
}

// EntryDay normalizes a moment to its reference-timezone calendar date.
func EntryDay(at time.Time) string {
	return at.UTC().Format("2006-01-02")
}

// ApplyRewards mutates u for one new transaction of the given type
// recorded at now. Coins are always awarded; the streak moves only on a
// day transition: same day is a no-op, the day after the last entry
// extends it, any larger gap (or a first entry) resets it to 1. The tier
// is recomputed from coins on every call.
func ApplyRewards(u *User, txType TransactionType, now time.Time) {
	if txType == TypeSaving {
		u.Coins += CoinsPerSaving
	} else {
		u.Coins += CoinsPerEntry
	}

	today := EntryDay(now)
	if u.LastEntryDate != today {
		yesterday := EntryDay(now.AddDate(0, 0, -1))
		if u.LastEntryDate == yesterday {
			u.Streak++
		} else {
			u.Streak = 1
		}
		u.LastEntryDate = today
	}

	u.Tier = TierFor(u.Coins)
}
