package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/fintrack/vault-api-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// VaultStore implementation — transactions, goals, budgets, labels
// ============================================================

// supabaseTransaction maps the transactions table.
type supabaseTransaction struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	Amount     float64 `json:"amount"`
	Type       string  `json:"type"`
	Category   string  `json:"category"`
	Channel    string  `json:"payment_method"`
	Note       string  `json:"note"`
	Date       string  `json:"date"`
	Resolution string  `json:"resolution"`
}

func (r supabaseTransaction) toDomain() domain.Transaction {
	t, err := time.Parse(time.RFC3339, r.Date)
	if err != nil {
		t, _ = time.Parse("2006-01-02", r.Date)
	}
	return domain.Transaction{
		ID:         r.ID,
		UserID:     r.UserID,
		Amount:     r.Amount,
		Type:       domain.TransactionType(r.Type),
		Category:   r.Category,
		Channel:    r.Channel,
		Note:       r.Note,
		Date:       t,
		Resolution: domain.Resolution(r.Resolution),
	}
}

// ListTransactions fetches a user's transactions, newest first. An empty
// userID lists every record (admin view).
func (c *Client) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var transactions []domain.Transaction

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := "transactions?order=date.desc"
			if userID != "" {
				path = fmt.Sprintf("transactions?user_id=eq.%s&order=date.desc", userID)
			}
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				transactions = []domain.Transaction{}
				return nil
			}

			var rows []supabaseTransaction
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode transactions: %w", err)
			}

			transactions = make([]domain.Transaction, 0, len(rows))
			for _, r := range rows {
				transactions = append(transactions, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	return transactions, nil
}

// GetTransaction fetches one transaction by id.
func (c *Client) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetTransaction")
	defer span.End()

	path := fmt.Sprintf("transactions?id=eq.%s&limit=1", id)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}

	var rows []supabaseTransaction
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	tx := rows[0].toDomain()
	return &tx, nil
}

// CreateTransaction inserts a new transaction row.
func (c *Client) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateTransaction")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", tx.UserID),
		attribute.String("transaction.type", string(tx.Type)),
	)

	data := map[string]any{
		"id":             tx.ID,
		"user_id":        tx.UserID,
		"amount":         tx.Amount,
		"type":           string(tx.Type),
		"category":       tx.Category,
		"payment_method": tx.Channel,
		"note":           tx.Note,
		"date":           tx.Date.UTC().Format(time.RFC3339),
	}
	if tx.Resolution != "" {
		data["resolution"] = string(tx.Resolution)
	}

	if _, err := c.doPost(ctx, "transactions", data); err != nil {
		return &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}
	return nil
}

// UpdateTransaction applies a partial update to one transaction.
func (c *Client) UpdateTransaction(ctx context.Context, id string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateTransaction")
	defer span.End()

	path := fmt.Sprintf("transactions?id=eq.%s", id)
	body, err := c.doPatch(ctx, path, updates)
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}
	if rowCount(body) == 0 {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return nil
}

// DeleteTransaction removes one transaction row.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteTransaction")
	defer span.End()

	if err := c.doDelete(ctx, fmt.Sprintf("transactions?id=eq.%s", id)); err != nil {
		return &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}
	return nil
}

// --- Goals ---

type supabaseGoal struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	Name         string  `json:"name"`
	TargetAmount float64 `json:"target_amount"`
	CelebratedAt *string `json:"celebrated_at"`
	CreatedAt    string  `json:"created_at"`
}

func (r supabaseGoal) toDomain() domain.Goal {
	g := domain.Goal{
		ID:           r.ID,
		UserID:       r.UserID,
		Name:         r.Name,
		TargetAmount: r.TargetAmount,
	}
	if r.CelebratedAt != nil {
		if t, err := time.Parse(time.RFC3339, *r.CelebratedAt); err == nil {
			g.CelebratedAt = &t
		}
	}
	if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		g.CreatedAt = t
	}
	return g
}

// ListGoals fetches a user's savings goals, oldest first.
func (c *Client) ListGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListGoals")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("goals?user_id=eq.%s&order=created_at.asc", userID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/goals", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return []domain.Goal{}, nil
	}

	var rows []supabaseGoal
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode goals: %w", err)
	}

	goals := make([]domain.Goal, 0, len(rows))
	for _, r := range rows {
		goals = append(goals, r.toDomain())
	}
	return goals, nil
}

// CreateGoal inserts a new goal row.
func (c *Client) CreateGoal(ctx context.Context, g *domain.Goal) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateGoal")
	defer span.End()

	data := map[string]any{
		"id":            g.ID,
		"user_id":       g.UserID,
		"name":          g.Name,
		"target_amount": g.TargetAmount,
		"created_at":    g.CreatedAt.UTC().Format(time.RFC3339),
	}

	if _, err := c.doPost(ctx, "goals", data); err != nil {
		return &domain.ErrExternalService{Service: "supabase/goals", Err: err}
	}
	return nil
}

// DeleteGoal removes one goal row.
func (c *Client) DeleteGoal(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteGoal")
	defer span.End()

	if err := c.doDelete(ctx, fmt.Sprintf("goals?id=eq.%s", id)); err != nil {
		return &domain.ErrExternalService{Service: "supabase/goals", Err: err}
	}
	return nil
}

// MarkGoalCelebrated stamps the one-time completion celebration. The
// null filter makes the stamp idempotent under concurrent evaluations.
func (c *Client) MarkGoalCelebrated(ctx context.Context, id string, at time.Time) error {
	ctx, span := tracer.Start(ctx, "Supabase.MarkGoalCelebrated")
	defer span.End()

	path := fmt.Sprintf("goals?id=eq.%s&celebrated_at=is.null", id)
	_, err := c.doPatch(ctx, path, map[string]any{
		"celebrated_at": at.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/goals", Err: err}
	}
	return nil
}

// --- Budgets ---

// ListBudgets fetches a user's per-category spend caps.
func (c *Client) ListBudgets(ctx context.Context, userID string) ([]domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListBudgets")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("budgets?user_id=eq.%s&order=category.asc", userID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budgets", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return []domain.Budget{}, nil
	}

	var rows []domain.Budget
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode budgets: %w", err)
	}
	return rows, nil
}

// SetBudget upserts the cap for one (user, category) pair.
func (c *Client) SetBudget(ctx context.Context, b *domain.Budget) error {
	ctx, span := tracer.Start(ctx, "Supabase.SetBudget")
	defer span.End()

	data := map[string]any{
		"id":       b.ID,
		"user_id":  b.UserID,
		"category": b.Category,
		"limit":    b.Limit,
	}

	if _, err := c.doUpsert(ctx, "budgets", "user_id,category", data); err != nil {
		return &domain.ErrExternalService{Service: "supabase/budgets", Err: err}
	}
	return nil
}

// DeleteBudget removes one budget row.
func (c *Client) DeleteBudget(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteBudget")
	defer span.End()

	if err := c.doDelete(ctx, fmt.Sprintf("budgets?id=eq.%s", id)); err != nil {
		return &domain.ErrExternalService{Service: "supabase/budgets", Err: err}
	}
	return nil
}

// --- Labels ---

// ListLabels fetches a user's custom category/channel suggestions.
func (c *Client) ListLabels(ctx context.Context, userID string, kind domain.LabelKind) ([]domain.Label, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListLabels")
	defer span.End()

	path := fmt.Sprintf("custom_labels?user_id=eq.%s&kind=eq.%s&order=name.asc", userID, url.QueryEscape(string(kind)))
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/labels", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return []domain.Label{}, nil
	}

	var rows []domain.Label
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode custom_labels: %w", err)
	}
	return rows, nil
}

// CreateLabel inserts a new suggestion row.
func (c *Client) CreateLabel(ctx context.Context, l *domain.Label) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateLabel")
	defer span.End()

	data := map[string]any{
		"id":      l.ID,
		"user_id": l.UserID,
		"kind":    string(l.Kind),
		"name":    l.Name,
	}
	if l.TxType != "" {
		data["tx_type"] = string(l.TxType)
	}

	if _, err := c.doPost(ctx, "custom_labels", data); err != nil {
		return &domain.ErrExternalService{Service: "supabase/labels", Err: err}
	}
	return nil
}

// DeleteLabel removes one suggestion row.
func (c *Client) DeleteLabel(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteLabel")
	defer span.End()

	if err := c.doDelete(ctx, fmt.Sprintf("custom_labels?id=eq.%s", id)); err != nil {
		return &domain.ErrExternalService{Service: "supabase/labels", Err: err}
	}
	return nil
}
