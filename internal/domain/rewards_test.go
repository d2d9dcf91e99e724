package domain_test

import (
	"testing"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
)

func TestTierFor_Boundaries(t *testing.T) {
	cases := []struct {
		coins int
		want  domain.Tier
	}{
		{0, domain.TierCopper},
		{499, domain.TierCopper},
		{500, domain.TierSilver},
		{999, domain.TierSilver},
		{1000, domain.TierGold},
		{2499, domain.TierGold},
		{2500, domain.TierPlatinum},
		{4999, domain.TierPlatinum},
		{5000, domain.TierDiamond},
		{99999, domain.TierDiamond},
	}
	for _, c := range cases {
		if got := domain.TierFor(c.coins); got != c.want {
			t.Errorf("TierFor(%d) = %s, want %s", c.coins, got, c.want)
		}
	}
}

func TestTierStatusFor(t *testing.T) {
	s := domain.TierStatusFor(750)
	if s.Tier != domain.TierSilver || s.NextTier != domain.TierGold {
		t.Fatalf("status = %+v", s)
	}
	// (750-500)/(1000-500) = 50%
	if s.Progress != 50 {
		t.Errorf("progress = %v, want 50", s.Progress)
	}
	if s.CoinsToNext != 250 {
		t.Errorf("coins to next = %d, want 250", s.CoinsToNext)
	}

	top := domain.TierStatusFor(7000)
	if !top.AtTop || top.Progress != 100 {
		t.Errorf("top tier status = %+v", top)
	}
}

func TestApplyRewards_FirstEntry(t *testing.T) {
	u := &domain.User{Coins: domain.StartingCoins}
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	domain.ApplyRewards(u, domain.TypeExpense, now)

	if u.Streak != 1 {
		t.Errorf("streak = %d, want 1", u.Streak)
	}
	if u.Coins != domain.StartingCoins+domain.CoinsPerEntry {
		t.Errorf("coins = %d", u.Coins)
	}
	if u.LastEntryDate != "2024-01-01" {
		t.Errorf("lastEntryDate = %q", u.LastEntryDate)
	}
}

func TestApplyRewards_SameDayDoesNotInflateStreak(t *testing.T) {
	u := &domain.User{Coins: 0, Streak: 5, LastEntryDate: "2024-01-01"}
	now := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)

	domain.ApplyRewards(u, domain.TypeIncome, now)

	if u.Streak != 5 {
		t.Errorf("same-day entry changed streak: %d", u.Streak)
	}
	if u.Coins != domain.CoinsPerEntry {
		t.Errorf("coins must still accrue on same-day entries: %d", u.Coins)
	}
}

func TestApplyRewards_ConsecutiveDayExtends(t *testing.T) {
	u := &domain.User{Streak: 5, LastEntryDate: "2024-01-01"}
	now := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

	domain.ApplyRewards(u, domain.TypeExpense, now)

	if u.Streak != 6 {
		t.Errorf("streak = %d, want 6", u.Streak)
	}
	if u.LastEntryDate != "2024-01-02" {
		t.Errorf("lastEntryDate = %q", u.LastEntryDate)
	}
}

func TestApplyRewards_GapResets(t *testing.T) {
	u := &domain.User{Streak: 5, LastEntryDate: "2024-01-01"}
	now := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)

	domain.ApplyRewards(u, domain.TypeExpense, now)

	if u.Streak != 1 {
		t.Errorf("streak = %d, want 1 after gap", u.Streak)
	}
}

func TestApplyRewards_SavingBonusAndTier(t *testing.T) {
	u := &domain.User{Coins: 950, Tier: domain.TierSilver}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	domain.ApplyRewards(u, domain.TypeSaving, now)

	if u.Coins != 1050 {
		t.Errorf("coins = %d, want 1050", u.Coins)
	}
	if u.Tier != domain.TierGold {
		t.Errorf("tier = %s, want GOLD after crossing 1000", u.Tier)
	}
}
