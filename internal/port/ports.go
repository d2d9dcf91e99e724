// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations (Supabase, local mirror, advisor API).
package port

import (
	"context"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
)

// TransactionStore manages the append-only transaction list.
// ListTransactions with an empty userID returns all records (admin view).
type TransactionStore interface {
	ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	UpdateTransaction(ctx context.Context, id string, updates map[string]any) error
	DeleteTransaction(ctx context.Context, id string) error
}

// UserStore manages user records.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateUser(ctx context.Context, id string, updates map[string]any) (*domain.User, error)
	// ApplyRewardUpdate is a conditional write: it only lands when the
	// stored last_entry_date still equals expectLastEntry, so two clients
	// recording entries concurrently cannot double-count a streak day.
	ApplyRewardUpdate(ctx context.Context, id, expectLastEntry string, updates map[string]any) (bool, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// GoalStore manages savings goals.
type GoalStore interface {
	ListGoals(ctx context.Context, userID string) ([]domain.Goal, error)
	CreateGoal(ctx context.Context, g *domain.Goal) error
	DeleteGoal(ctx context.Context, id string) error
	MarkGoalCelebrated(ctx context.Context, id string, at time.Time) error
}

// BudgetStore manages per-category spending caps with upsert semantics
// on (user, category).
type BudgetStore interface {
	ListBudgets(ctx context.Context, userID string) ([]domain.Budget, error)
	SetBudget(ctx context.Context, b *domain.Budget) error
	DeleteBudget(ctx context.Context, id string) error
}

// LabelStore manages the free-text category/channel suggestion registry.
type LabelStore interface {
	ListLabels(ctx context.Context, userID string, kind domain.LabelKind) ([]domain.Label, error)
	CreateLabel(ctx context.Context, l *domain.Label) error
	DeleteLabel(ctx context.Context, id string) error
}

// TokenStore persists hashed refresh tokens.
type TokenStore interface {
	StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) error
}

// VaultStore groups every per-user data concern behind one dependency.
type VaultStore interface {
	TransactionStore
	GoalStore
	BudgetStore
	LabelStore
}

// PurgeList is the permanent exclusion list admin purges append to.
// A listed id must read as nonexistent even if stale rows resurface
// from the remote store.
type PurgeList interface {
	MarkPurged(id string)
	IsPurged(id string) bool
	PurgedIDs() []string
}

// AdviceCaller invokes the external LLM advice service.
type AdviceCaller interface {
	Advise(ctx context.Context, req *domain.AdviceRequest) (*domain.AdviceResponse, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	DeletePrefix(prefix string)
}
