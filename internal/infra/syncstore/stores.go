package syncstore

import (
	"context"
	"fmt"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// UserStore
// ============================================================

func (s *Sync) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := readThrough(ctx, s,
		func(ctx context.Context) (*domain.User, error) { return s.remote.GetUserByEmail(ctx, email) },
		func() (*domain.User, error) { return s.local.GetUserByEmail(ctx, email) },
		func(u *domain.User) { s.local.PutUser(u) },
	)
	if err != nil {
		return nil, err
	}
	if s.local.IsPurged(u.ID) {
		return nil, &domain.ErrUserPurged{ID: u.ID}
	}
	return u, nil
}

func (s *Sync) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	// The exclusion list wins over anything the remote store returns.
	if s.local.IsPurged(id) {
		return nil, &domain.ErrUserPurged{ID: id}
	}
	return readThrough(ctx, s,
		func(ctx context.Context) (*domain.User, error) { return s.remote.GetUserByID(ctx, id) },
		func() (*domain.User, error) { return s.local.GetUserByID(ctx, id) },
		func(u *domain.User) { s.local.PutUser(u) },
	)
}

func (s *Sync) CreateUser(ctx context.Context, u *domain.User) error {
	cp := *u
	return s.write(ctx, fmt.Sprintf("create user %s", u.ID),
		func(ctx context.Context) error { return s.remote.CreateUser(ctx, &cp) },
		func() error { return s.local.CreateUser(ctx, &cp) },
	)
}

func (s *Sync) UpdateUser(ctx context.Context, id string, updates map[string]any) (*domain.User, error) {
	if s.local.IsPurged(id) {
		return nil, &domain.ErrUserPurged{ID: id}
	}

	if s.online.Load() {
		u, err := s.remote.UpdateUser(ctx, id, updates)
		if err == nil {
			s.local.PutUser(u)
			return u, nil
		}
		if !isConnectivity(err) {
			return nil, err
		}
		s.markOffline(err)
	}

	u, err := s.local.UpdateUser(ctx, id, updates)
	if err != nil {
		return nil, err
	}
	s.enqueue(fmt.Sprintf("update user %s", id), func(ctx context.Context) error {
		_, err := s.remote.UpdateUser(ctx, id, updates)
		return err
	})
	return u, nil
}

// ApplyRewardUpdate keeps its conditional semantics in both modes. When
// the remote write has to be queued, replay re-runs the same condition;
// a false result on replay means another writer recorded the day first,
// which is exactly what the condition is for, so it is logged and dropped.
func (s *Sync) ApplyRewardUpdate(ctx context.Context, id, expectLastEntry string, updates map[string]any) (bool, error) {
	if s.local.IsPurged(id) {
		return false, &domain.ErrUserPurged{ID: id}
	}

	if s.online.Load() {
		swapped, err := s.remote.ApplyRewardUpdate(ctx, id, expectLastEntry, updates)
		if err == nil {
			if swapped {
				if _, lerr := s.local.ApplyRewardUpdate(ctx, id, expectLastEntry, updates); lerr != nil {
					s.logger.Debug("sync: mirror reward update skipped", zap.Error(lerr))
				}
			}
			return swapped, nil
		}
		if !isConnectivity(err) {
			return false, err
		}
		s.markOffline(err)
	}

	swapped, err := s.local.ApplyRewardUpdate(ctx, id, expectLastEntry, updates)
	if err != nil || !swapped {
		return swapped, err
	}

	s.enqueue(fmt.Sprintf("reward update user %s", id), func(ctx context.Context) error {
		ok, err := s.remote.ApplyRewardUpdate(ctx, id, expectLastEntry, updates)
		if err != nil {
			return err
		}
		if !ok {
			s.logger.Warn("sync: queued reward update lost the race", zap.String("user_id", id))
		}
		return nil
	})
	return true, nil
}

func (s *Sync) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := readThrough(ctx, s,
		func(ctx context.Context) ([]domain.User, error) { return s.remote.ListUsers(ctx) },
		func() ([]domain.User, error) { return s.local.ListUsers(ctx) },
		func(users []domain.User) {
			for i := range users {
				s.local.PutUser(&users[i])
			}
		},
	)
	if err != nil {
		return nil, err
	}

	out := users[:0]
	for _, u := range users {
		if !s.local.IsPurged(u.ID) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Sync) DeleteUser(ctx context.Context, id string) error {
	return s.write(ctx, fmt.Sprintf("delete user %s", id),
		func(ctx context.Context) error { return s.remote.DeleteUser(ctx, id) },
		func() error { return s.local.DeleteUser(ctx, id) },
	)
}

// ============================================================
// TransactionStore
// ============================================================

func (s *Sync) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	return readThrough(ctx, s,
		func(ctx context.Context) ([]domain.Transaction, error) {
			return s.remote.ListTransactions(ctx, userID)
		},
		func() ([]domain.Transaction, error) { return s.local.ListTransactions(ctx, userID) },
		func(txs []domain.Transaction) {
			// The admin (all-user) view is not mirrored wholesale.
			if userID != "" {
				s.local.PutTransactions(userID, txs)
			}
		},
	)
}

func (s *Sync) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return readThrough(ctx, s,
		func(ctx context.Context) (*domain.Transaction, error) { return s.remote.GetTransaction(ctx, id) },
		func() (*domain.Transaction, error) { return s.local.GetTransaction(ctx, id) },
		func(tx *domain.Transaction) { _ = s.local.CreateTransaction(ctx, tx) },
	)
}

func (s *Sync) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	cp := *tx
	return s.write(ctx, fmt.Sprintf("create transaction %s", tx.ID),
		func(ctx context.Context) error { return s.remote.CreateTransaction(ctx, &cp) },
		func() error { return s.local.CreateTransaction(ctx, &cp) },
	)
}

func (s *Sync) UpdateTransaction(ctx context.Context, id string, updates map[string]any) error {
	return s.write(ctx, fmt.Sprintf("update transaction %s", id),
		func(ctx context.Context) error { return s.remote.UpdateTransaction(ctx, id, updates) },
		func() error { return s.local.UpdateTransaction(ctx, id, updates) },
	)
}

func (s *Sync) DeleteTransaction(ctx context.Context, id string) error {
	return s.write(ctx, fmt.Sprintf("delete transaction %s", id),
		func(ctx context.Context) error { return s.remote.DeleteTransaction(ctx, id) },
		func() error { return s.local.DeleteTransaction(ctx, id) },
	)
}

// ============================================================
// GoalStore
// ============================================================

func (s *Sync) ListGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	return readThrough(ctx, s,
		func(ctx context.Context) ([]domain.Goal, error) { return s.remote.ListGoals(ctx, userID) },
		func() ([]domain.Goal, error) { return s.local.ListGoals(ctx, userID) },
		func(goals []domain.Goal) { s.local.PutGoals(userID, goals) },
	)
}

func (s *Sync) CreateGoal(ctx context.Context, g *domain.Goal) error {
	cp := *g
	return s.write(ctx, fmt.Sprintf("create goal %s", g.ID),
		func(ctx context.Context) error { return s.remote.CreateGoal(ctx, &cp) },
		func() error { return s.local.CreateGoal(ctx, &cp) },
	)
}

func (s *Sync) DeleteGoal(ctx context.Context, id string) error {
	return s.write(ctx, fmt.Sprintf("delete goal %s", id),
		func(ctx context.Context) error { return s.remote.DeleteGoal(ctx, id) },
		func() error { return s.local.DeleteGoal(ctx, id) },
	)
}

func (s *Sync) MarkGoalCelebrated(ctx context.Context, id string, at time.Time) error {
	return s.write(ctx, fmt.Sprintf("celebrate goal %s", id),
		func(ctx context.Context) error { return s.remote.MarkGoalCelebrated(ctx, id, at) },
		func() error { return s.local.MarkGoalCelebrated(ctx, id, at) },
	)
}

// ============================================================
// BudgetStore
// ============================================================

func (s *Sync) ListBudgets(ctx context.Context, userID string) ([]domain.Budget, error) {
	return readThrough(ctx, s,
		func(ctx context.Context) ([]domain.Budget, error) { return s.remote.ListBudgets(ctx, userID) },
		func() ([]domain.Budget, error) { return s.local.ListBudgets(ctx, userID) },
		func(budgets []domain.Budget) { s.local.PutBudgets(userID, budgets) },
	)
}

func (s *Sync) SetBudget(ctx context.Context, b *domain.Budget) error {
	cp := *b
	return s.write(ctx, fmt.Sprintf("set budget %s/%s", b.UserID, b.Category),
		func(ctx context.Context) error { return s.remote.SetBudget(ctx, &cp) },
		func() error { return s.local.SetBudget(ctx, &cp) },
	)
}

func (s *Sync) DeleteBudget(ctx context.Context, id string) error {
	return s.write(ctx, fmt.Sprintf("delete budget %s", id),
		func(ctx context.Context) error { return s.remote.DeleteBudget(ctx, id) },
		func() error { return s.local.DeleteBudget(ctx, id) },
	)
}

// ============================================================
// LabelStore
// ============================================================

func (s *Sync) ListLabels(ctx context.Context, userID string, kind domain.LabelKind) ([]domain.Label, error) {
	return readThrough(ctx, s,
		func(ctx context.Context) ([]domain.Label, error) {
			return s.remote.ListLabels(ctx, userID, kind)
		},
		func() ([]domain.Label, error) { return s.local.ListLabels(ctx, userID, kind) },
		func([]domain.Label) {},
	)
}

func (s *Sync) CreateLabel(ctx context.Context, l *domain.Label) error {
	cp := *l
	return s.write(ctx, fmt.Sprintf("create label %s", l.ID),
		func(ctx context.Context) error { return s.remote.CreateLabel(ctx, &cp) },
		func() error { return s.local.CreateLabel(ctx, &cp) },
	)
}

func (s *Sync) DeleteLabel(ctx context.Context, id string) error {
	return s.write(ctx, fmt.Sprintf("delete label %s", id),
		func(ctx context.Context) error { return s.remote.DeleteLabel(ctx, id) },
		func() error { return s.local.DeleteLabel(ctx, id) },
	)
}

// ============================================================
// TokenStore — tokens are session state, kept local-only so logins
// keep working while the remote store is down. The remote copy is
// best-effort for visibility across restarts.
// ============================================================

func (s *Sync) StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	if err := s.local.StoreRefreshToken(ctx, userID, tokenHash, expiresAt); err != nil {
		return err
	}
	if s.online.Load() {
		if err := s.remote.StoreRefreshToken(ctx, userID, tokenHash, expiresAt); err != nil {
			s.markOffline(err)
		}
	}
	return nil
}

func (s *Sync) GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	tok, err := s.local.GetRefreshToken(ctx, tokenHash)
	if err == nil && tok != nil {
		return tok, nil
	}
	if s.online.Load() {
		return s.remote.GetRefreshToken(ctx, tokenHash)
	}
	return nil, nil
}

func (s *Sync) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	if err := s.local.RevokeRefreshToken(ctx, tokenHash); err != nil {
		return err
	}
	return s.write(ctx, "revoke refresh token",
		func(ctx context.Context) error { return s.remote.RevokeRefreshToken(ctx, tokenHash) },
		func() error { return nil },
	)
}

func (s *Sync) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	if err := s.local.RevokeAllRefreshTokens(ctx, userID); err != nil {
		return err
	}
	return s.write(ctx, fmt.Sprintf("revoke tokens for %s", userID),
		func(ctx context.Context) error { return s.remote.RevokeAllRefreshTokens(ctx, userID) },
		func() error { return nil },
	)
}
