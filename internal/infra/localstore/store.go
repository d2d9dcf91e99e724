// Package localstore is an in-memory mirror of the remote store. It
// serves reads while Supabase is unreachable and absorbs writes into
// the sync layer's replay queue. Data lives for the process lifetime.
package localstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
)

// Store holds per-entity maps guarded by one RWMutex. Snapshots are
// returned as copies so callers can never mutate mirror state.
type Store struct {
	mu           sync.RWMutex
	users        map[string]domain.User
	transactions map[string]domain.Transaction
	goals        map[string]domain.Goal
	budgets      map[string]domain.Budget
	labels       map[string]domain.Label
	tokens       map[string]domain.RefreshToken // keyed by token hash
	purged       map[string]struct{}
}

// New creates an empty mirror.
func New() *Store {
	return &Store{
		users:        make(map[string]domain.User),
		transactions: make(map[string]domain.Transaction),
		goals:        make(map[string]domain.Goal),
		budgets:      make(map[string]domain.Budget),
		labels:       make(map[string]domain.Label),
		tokens:       make(map[string]domain.RefreshToken),
		purged:       make(map[string]struct{}),
	}
}

// ============================================================
// Purge exclusion list
// ============================================================

// MarkPurged adds id to the exclusion list. Every subsequent lookup
// treats the user as nonexistent even if stale rows resurface from
// the remote store.
func (s *Store) MarkPurged(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purged[id] = struct{}{}
	delete(s.users, id)
}

// IsPurged reports whether id is on the exclusion list.
func (s *Store) IsPurged(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.purged[id]
	return ok
}

// PurgedIDs returns a snapshot of the exclusion list.
func (s *Store) PurgedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.purged))
	for id := range s.purged {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ============================================================
// Users
// ============================================================

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			if _, gone := s.purged[u.ID]; gone {
				continue
			}
			cp := u
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "user", ID: email}
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, gone := s.purged[id]; gone {
		return nil, &domain.ErrUserPurged{ID: id}
	}
	u, ok := s.users[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: id}
	}
	cp := u
	return &cp, nil
}

func (s *Store) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = *u
	return nil
}

// PutUser mirrors a remote row without create semantics.
func (s *Store) PutUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, gone := s.purged[u.ID]; gone {
		return
	}
	s.users[u.ID] = *u
}

func (s *Store) UpdateUser(_ context.Context, id string, updates map[string]any) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: id}
	}
	applyUserUpdates(&u, updates)
	s.users[id] = u
	cp := u
	return &cp, nil
}

func (s *Store) ApplyRewardUpdate(_ context.Context, id, expectLastEntry string, updates map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false, &domain.ErrNotFound{Resource: "user", ID: id}
	}
	if u.LastEntryDate != expectLastEntry {
		return false, nil
	}
	applyUserUpdates(&u, updates)
	s.users[id] = u
	return true, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		if _, gone := s.purged[u.ID]; gone {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

// applyUserUpdates mirrors the PATCH column semantics the remote store
// accepts. Unknown keys are ignored.
func applyUserUpdates(u *domain.User, updates map[string]any) {
	for k, v := range updates {
		switch k {
		case "name":
			if s, ok := v.(string); ok {
				u.Name = s
			}
		case "email":
			if s, ok := v.(string); ok {
				u.Email = s
			}
		case "password_hash":
			if s, ok := v.(string); ok {
				u.PasswordHash = s
			}
		case "coins":
			u.Coins = toInt(v)
		case "streak":
			u.Streak = toInt(v)
		case "last_entry_date":
			if s, ok := v.(string); ok {
				u.LastEntryDate = s
			}
		case "tier":
			if s, ok := v.(string); ok {
				u.Tier = domain.Tier(s)
			}
		case "is_admin":
			if b, ok := v.(bool); ok {
				u.IsAdmin = b
			}
		case "failed_logins":
			u.FailedLogins = toInt(v)
		case "locked_until":
			switch t := v.(type) {
			case nil:
				u.LockedUntil = nil
			case string:
				if ts, err := time.Parse(time.RFC3339, t); err == nil {
					u.LockedUntil = &ts
				}
			case time.Time:
				u.LockedUntil = &t
			}
		}
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// ============================================================
// Transactions
// ============================================================

func (s *Store) ListTransactions(_ context.Context, userID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if userID != "" && tx.UserID != userID {
			continue
		}
		if _, gone := s.purged[tx.UserID]; gone {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	cp := tx
	return &cp, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[tx.ID] = *tx
	return nil
}

// PutTransactions replaces the mirror's view of one user's records.
func (s *Store) PutTransactions(userID string, txs []domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, gone := s.purged[userID]; gone {
		return
	}
	for id, tx := range s.transactions {
		if tx.UserID == userID {
			delete(s.transactions, id)
		}
	}
	for _, tx := range txs {
		s.transactions[tx.ID] = tx
	}
}

func (s *Store) UpdateTransaction(_ context.Context, id string, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	for k, v := range updates {
		switch k {
		case "amount":
			if f, ok := v.(float64); ok {
				tx.Amount = f
			}
		case "category":
			if str, ok := v.(string); ok {
				tx.Category = str
			}
		case "payment_method":
			if str, ok := v.(string); ok {
				tx.Channel = str
			}
		case "note":
			if str, ok := v.(string); ok {
				tx.Note = str
			}
		case "resolution":
			if str, ok := v.(string); ok {
				tx.Resolution = domain.Resolution(str)
			}
		}
	}
	s.transactions[id] = tx
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions, id)
	return nil
}

// ============================================================
// Goals
// ============================================================

func (s *Store) ListGoals(_ context.Context, userID string) ([]domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Goal, 0)
	for _, g := range s.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CreateGoal(_ context.Context, g *domain.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[g.ID] = *g
	return nil
}

// PutGoals replaces the mirror's view of one user's goals.
func (s *Store) PutGoals(userID string, goals []domain.Goal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, gone := s.purged[userID]; gone {
		return
	}
	for id, g := range s.goals {
		if g.UserID == userID {
			delete(s.goals, id)
		}
	}
	for _, g := range goals {
		s.goals[g.ID] = g
	}
}

func (s *Store) DeleteGoal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.goals, id)
	return nil
}

func (s *Store) MarkGoalCelebrated(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.goals[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "goal", ID: id}
	}
	if g.CelebratedAt == nil {
		t := at
		g.CelebratedAt = &t
		s.goals[id] = g
	}
	return nil
}

// ============================================================
// Budgets
// ============================================================

func (s *Store) ListBudgets(_ context.Context, userID string) ([]domain.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Budget, 0)
	for _, b := range s.budgets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (s *Store) SetBudget(_ context.Context, b *domain.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Upsert on (user, category): replace an existing row in place.
	for id, existing := range s.budgets {
		if existing.UserID == b.UserID && existing.Category == b.Category {
			existing.Limit = b.Limit
			s.budgets[id] = existing
			return nil
		}
	}
	s.budgets[b.ID] = *b
	return nil
}

// PutBudgets replaces the mirror's view of one user's budgets.
func (s *Store) PutBudgets(userID string, budgets []domain.Budget) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, gone := s.purged[userID]; gone {
		return
	}
	for id, b := range s.budgets {
		if b.UserID == userID {
			delete(s.budgets, id)
		}
	}
	for _, b := range budgets {
		s.budgets[b.ID] = b
	}
}

func (s *Store) DeleteBudget(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.budgets, id)
	return nil
}

// ============================================================
// Labels
// ============================================================

func (s *Store) ListLabels(_ context.Context, userID string, kind domain.LabelKind) ([]domain.Label, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Label, 0)
	for _, l := range s.labels {
		if l.UserID == userID && l.Kind == kind {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) CreateLabel(_ context.Context, l *domain.Label) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels[l.ID] = *l
	return nil
}

func (s *Store) DeleteLabel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.labels, id)
	return nil
}

// ============================================================
// Refresh tokens
// ============================================================

func (s *Store) StoreRefreshToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[tokenHash] = domain.RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}
	return nil
}

func (s *Store) GetRefreshToken(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[tokenHash]
	if !ok || t.Revoked {
		return nil, nil
	}
	cp := t
	return &cp, nil
}

func (s *Store) RevokeRefreshToken(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tokens[tokenHash]; ok {
		t.Revoked = true
		s.tokens[tokenHash] = t
	}
	return nil
}

func (s *Store) RevokeAllRefreshTokens(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for h, t := range s.tokens {
		if t.UserID == userID {
			t.Revoked = true
			s.tokens[h] = t
		}
	}
	return nil
}
