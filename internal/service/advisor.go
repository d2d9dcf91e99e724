// Package service — AdvisorService aggregates a user's financial
// picture and asks the external LLM service for guidance. The advisor
// is best-effort: any failure degrades to an inline error message so
// the dashboard still renders.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/fintrack/vault-api-go/internal/infra/observability"
	"github.com/fintrack/vault-api-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var advisorTracer = otel.Tracer("service/advisor")

// adviceUnavailable is the inline message shown when the advisor
// cannot be reached.
const adviceUnavailable = "The advisor is unavailable right now. Your numbers above are still up to date — try again in a moment."

// recentEntriesForPrompt bounds how much ledger detail is sent out.
const recentEntriesForPrompt = 10

// AdvisorService builds advice requests from ledger aggregates.
type AdvisorService struct {
	store   port.VaultStore
	users   port.UserStore
	advisor port.AdviceCaller
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewAdvisorService creates a new advisor service.
func NewAdvisorService(store port.VaultStore, users port.UserStore, advisor port.AdviceCaller, metrics *observability.Metrics, logger *zap.Logger) *AdvisorService {
	return &AdvisorService{
		store:   store,
		users:   users,
		advisor: advisor,
		metrics: metrics,
		logger:  logger,
	}
}

// Advice generates dashboard advice from the current month's picture.
func (s *AdvisorService) Advice(ctx context.Context, userID string) (*domain.AdviceResult, error) {
	return s.generate(ctx, userID, "")
}

// Chat answers a free-form question with the same aggregates attached.
func (s *AdvisorService) Chat(ctx context.Context, userID, query string) (*domain.AdviceResult, error) {
	if query == "" {
		return nil, &domain.ErrValidation{Field: "query", Message: "query is required"}
	}
	return s.generate(ctx, userID, query)
}

func (s *AdvisorService) generate(ctx context.Context, userID, query string) (*domain.AdviceResult, error) {
	ctx, span := advisorTracer.Start(ctx, "AdvisorService.generate")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))
	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("advice", time.Since(start)) }()

	req, err := s.buildRequest(ctx, userID, query)
	if err != nil {
		// Aggregation failures are real errors; only the LLM call
		// itself degrades inline.
		return nil, err
	}

	resp, err := s.advisor.Advise(ctx, req)
	if err != nil {
		s.metrics.IncrExternalError("advisor")
		s.logger.Warn("advisor unavailable, degrading inline",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return &domain.AdviceResult{
			Error:       adviceUnavailable,
			GeneratedAt: time.Now().UTC(),
		}, nil
	}

	return &domain.AdviceResult{
		Advice:      resp.Advice,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (s *AdvisorService) buildRequest(ctx context.Context, userID, query string) (*domain.AdviceRequest, error) {
	var (
		user *domain.User
		txs  []domain.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.users.GetUserByID(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = s.store.ListTransactions(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load advice inputs: %w", err)
	}

	month := time.Now().UTC().Format("2006-01")
	spendByCategory := domain.MonthlySpendByCategory(txs, month)
	monthSpend := 0.0
	topCategory := ""
	topAmount := 0.0
	for category, total := range spendByCategory {
		monthSpend += total
		if total > topAmount || (total == topAmount && category < topCategory) {
			topCategory = category
			topAmount = total
		}
	}

	recent := make([]string, 0, recentEntriesForPrompt)
	for i, tx := range txs {
		if i >= recentEntriesForPrompt {
			break
		}
		recent = append(recent, fmt.Sprintf("%s %s %.2f (%s)",
			tx.Date.Format("2006-01-02"), tx.Type, tx.Amount, tx.Category))
	}

	return &domain.AdviceRequest{
		UserName:      user.Name,
		Tier:          user.Tier,
		NetLiquidity:  domain.NetLiquidity(txs),
		MonthSpend:    monthSpend,
		TopCategory:   topCategory,
		RecentEntries: recent,
		Query:         query,
	}, nil
}
