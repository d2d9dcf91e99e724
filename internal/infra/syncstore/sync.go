// Package syncstore composes the remote Supabase store with the local
// in-memory mirror. Reads go remote-first and fall back to the mirror;
// writes that cannot reach the remote are applied locally and queued
// for replay once connectivity returns.
package syncstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/fintrack/vault-api-go/internal/infra/localstore"
	"github.com/fintrack/vault-api-go/internal/infra/observability"
	"github.com/fintrack/vault-api-go/internal/infra/resilience"

	"go.uber.org/zap"
)

// Remote is everything the sync layer needs from the Supabase client.
type Remote interface {
	// users
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateUser(ctx context.Context, id string, updates map[string]any) (*domain.User, error)
	ApplyRewardUpdate(ctx context.Context, id, expectLastEntry string, updates map[string]any) (bool, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	DeleteUser(ctx context.Context, id string) error
	// transactions
	ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	UpdateTransaction(ctx context.Context, id string, updates map[string]any) error
	DeleteTransaction(ctx context.Context, id string) error
	// goals
	ListGoals(ctx context.Context, userID string) ([]domain.Goal, error)
	CreateGoal(ctx context.Context, g *domain.Goal) error
	DeleteGoal(ctx context.Context, id string) error
	MarkGoalCelebrated(ctx context.Context, id string, at time.Time) error
	// budgets
	ListBudgets(ctx context.Context, userID string) ([]domain.Budget, error)
	SetBudget(ctx context.Context, b *domain.Budget) error
	DeleteBudget(ctx context.Context, id string) error
	// labels
	ListLabels(ctx context.Context, userID string, kind domain.LabelKind) ([]domain.Label, error)
	CreateLabel(ctx context.Context, l *domain.Label) error
	DeleteLabel(ctx context.Context, id string) error
	// tokens
	StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) error

	Ping(ctx context.Context) error
}

type pendingOp struct {
	desc string
	op   func(ctx context.Context) error
}

// Sync is the store the services depend on. It satisfies the user,
// token and vault store ports.
type Sync struct {
	remote  Remote
	local   *localstore.Store
	metrics *observability.Metrics
	logger  *zap.Logger

	online    atomic.Bool
	lastProbe atomic.Int64 // unix nanos

	mu      sync.Mutex
	pending []pendingOp
}

// New creates a sync store. It starts optimistic (online); the first
// failed remote call or probe flips it offline.
func New(remote Remote, local *localstore.Store, metrics *observability.Metrics, logger *zap.Logger) *Sync {
	s := &Sync{
		remote:  remote,
		local:   local,
		metrics: metrics,
		logger:  logger,
	}
	s.online.Store(true)
	metrics.SetSyncOnline(true)
	return s
}

// Local exposes the mirror for purge-list checks.
func (s *Sync) Local() *localstore.Store { return s.local }

// Online reports whether the remote store is currently considered
// reachable.
func (s *Sync) Online() bool { return s.online.Load() }

// Status is the payload for the sync status endpoint.
func (s *Sync) Status() domain.SyncStatus {
	s.mu.Lock()
	pending := len(s.pending)
	s.mu.Unlock()

	return domain.SyncStatus{
		Online:       s.online.Load(),
		PendingOps:   pending,
		LastProbeAt:  time.Unix(0, s.lastProbe.Load()).UTC(),
		RemoteErrors: s.metrics.RemoteErrorCount(),
	}
}

// Probe runs the connectivity loop until ctx is cancelled. A successful
// ping after an offline stretch triggers replay of the pending queue.
func (s *Sync) Probe(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ProbeNow(ctx)
		}
	}
}

// ProbeNow runs one connectivity check immediately. The readiness
// endpoint uses it to report live remote health.
func (s *Sync) ProbeNow(ctx context.Context) {
	s.lastProbe.Store(time.Now().UnixNano())

	if err := s.remote.Ping(ctx); err != nil {
		s.markOffline(err)
		return
	}

	wasOffline := !s.online.Load()
	s.markOnline()
	if wasOffline {
		s.logger.Info("sync: remote store reachable again, replaying queue")
	}
	s.FlushPending(ctx)
}

func (s *Sync) markOnline() {
	s.online.Store(true)
	s.metrics.SetSyncOnline(true)
}

func (s *Sync) markOffline(err error) {
	if s.online.CompareAndSwap(true, false) {
		s.logger.Warn("sync: remote store unreachable, serving from local mirror", zap.Error(err))
	}
	s.metrics.SetSyncOnline(false)
	s.metrics.IncrExternalError("supabase")
}

// enqueue records a failed remote write for replay.
func (s *Sync) enqueue(desc string, op func(ctx context.Context) error) {
	s.mu.Lock()
	s.pending = append(s.pending, pendingOp{desc: desc, op: op})
	n := len(s.pending)
	s.mu.Unlock()

	s.metrics.SetPendingWrites(n)
	s.logger.Info("sync: queued write for replay", zap.String("op", desc), zap.Int("queue_depth", n))
}

// FlushPending replays queued writes in order. A connectivity failure
// stops the flush, re-queues the remainder and flips offline. A write
// the remote rejects outright is dropped with an error log so it
// cannot block the ops queued behind it.
func (s *Sync) FlushPending(ctx context.Context) {
	s.mu.Lock()
	ops := s.pending
	s.pending = nil
	s.mu.Unlock()

	for i, p := range ops {
		err := p.op(ctx)
		if err == nil {
			s.logger.Debug("sync: replayed write", zap.String("op", p.desc))
			continue
		}
		if !isConnectivity(err) {
			s.logger.Error("sync: remote store rejected queued write, dropping it",
				zap.String("op", p.desc),
				zap.Error(err),
			)
			s.metrics.IncrExternalError("supabase")
			continue
		}
		s.logger.Warn("sync: replay failed, re-queueing",
			zap.String("op", p.desc),
			zap.Int("remaining", len(ops)-i),
			zap.Error(err),
		)
		s.mu.Lock()
		s.pending = append(ops[i:], s.pending...)
		n := len(s.pending)
		s.mu.Unlock()
		s.metrics.SetPendingWrites(n)
		s.markOffline(err)
		return
	}

	s.metrics.SetPendingWrites(s.pendingLen())
}

func (s *Sync) pendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// write applies a mutation remote-first. When the remote is
// unreachable (or already offline) the mutation is applied to the
// mirror and queued, so the caller still observes success. A rejection
// the remote would repeat on replay is surfaced to the caller instead;
// queueing it would wedge the queue.
func (s *Sync) write(ctx context.Context, desc string, remoteOp func(ctx context.Context) error, localOp func() error) error {
	if s.online.Load() {
		err := remoteOp(ctx)
		if err == nil {
			return localOp()
		}
		if !isConnectivity(err) {
			return err
		}
		s.markOffline(err)
	}

	if err := localOp(); err != nil {
		return err
	}
	s.enqueue(desc, remoteOp)
	return nil
}

// readThrough fetches remote-first, mirrors the result locally, and
// falls back to the mirror when the remote is down.
func readThrough[T any](ctx context.Context, s *Sync, remoteOp func(ctx context.Context) (T, error), localOp func() (T, error), mirror func(T)) (T, error) {
	if s.online.Load() {
		v, err := remoteOp(ctx)
		if err == nil {
			mirror(v)
			return v, nil
		}
		if !isConnectivity(err) {
			var zero T
			return zero, err
		}
		s.markOffline(err)
	}
	return localOp()
}

// isConnectivity distinguishes infrastructure failures (fall back to
// the mirror, queue the write) from answers the remote actually gave:
// domain errors like not-found, and 4xx rejections the client marked
// permanent. Only connectivity failures flip the store offline.
func isConnectivity(err error) bool {
	switch err.(type) {
	case *domain.ErrNotFound, *domain.ErrValidation, *domain.ErrConflict, *domain.ErrUserPurged:
		return false
	}
	return !resilience.IsPermanent(err)
}
