package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/fintrack/vault-api-go/internal/infra/resilience"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// UserStore + TokenStore implementation — users via PostgREST
// ============================================================

// supabaseUser maps the users table. Sensitive columns live here rather
// than on domain.User so they never leak through API serialization.
type supabaseUser struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Name          string  `json:"name"`
	PasswordHash  string  `json:"password_hash"`
	Coins         int     `json:"coins"`
	Streak        int     `json:"streak"`
	LastEntryDate string  `json:"last_entry_date"`
	Tier          string  `json:"tier"`
	IsAdmin       bool    `json:"is_admin"`
	FailedLogins  int     `json:"failed_logins"`
	LockedUntil   *string `json:"locked_until"`
	CreatedAt     string  `json:"created_at"`
}

func (r supabaseUser) toDomain() *domain.User {
	u := &domain.User{
		ID:            r.ID,
		Email:         r.Email,
		Name:          r.Name,
		PasswordHash:  r.PasswordHash,
		Coins:         r.Coins,
		Streak:        r.Streak,
		LastEntryDate: r.LastEntryDate,
		Tier:          domain.Tier(r.Tier),
		IsAdmin:       r.IsAdmin,
		FailedLogins:  r.FailedLogins,
	}
	if r.LockedUntil != nil {
		if t, err := time.Parse(time.RFC3339, *r.LockedUntil); err == nil {
			u.LockedUntil = &t
		}
	}
	if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		u.CreatedAt = t
	}
	return u
}

func (c *Client) getUserBy(ctx context.Context, column, value string) (*domain.User, error) {
	var user *domain.User

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("users?%s=eq.%s&limit=1", column, url.QueryEscape(value))
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				return resilience.Permanent(&domain.ErrNotFound{Resource: "user", ID: value})
			}

			var rows []supabaseUser
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode user: %w", err)
			}
			if len(rows) == 0 {
				return resilience.Permanent(&domain.ErrNotFound{Resource: "user", ID: value})
			}

			user = rows[0].toDomain()
			return nil
		})
	})

	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil, nf
		}
		return nil, &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}

	return user, nil
}

// GetUserByEmail fetches a user record by email.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUserByEmail")
	defer span.End()

	return c.getUserBy(ctx, "email", email)
}

// GetUserByID fetches a user record by primary key.
func (c *Client) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUserByID")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id))

	return c.getUserBy(ctx, "id", id)
}

// CreateUser inserts a new user row.
func (c *Client) CreateUser(ctx context.Context, u *domain.User) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateUser")
	defer span.End()

	data := map[string]any{
		"id":              u.ID,
		"email":           u.Email,
		"name":            u.Name,
		"password_hash":   u.PasswordHash,
		"coins":           u.Coins,
		"streak":          u.Streak,
		"last_entry_date": u.LastEntryDate,
		"tier":            string(u.Tier),
		"is_admin":        u.IsAdmin,
		"failed_logins":   0,
		"created_at":      u.CreatedAt.UTC().Format(time.RFC3339),
	}

	if _, err := c.doPost(ctx, "users", data); err != nil {
		return &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}
	return nil
}

// UpdateUser applies a partial update and returns the fresh row.
func (c *Client) UpdateUser(ctx context.Context, id string, updates map[string]any) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id))

	path := fmt.Sprintf("users?id=eq.%s", id)
	body, err := c.doPatch(ctx, path, updates)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}

	var rows []supabaseUser
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode updated user: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "user", ID: id}
	}
	return rows[0].toDomain(), nil
}

// ApplyRewardUpdate writes coins/streak/tier conditionally: the PATCH
// filter pins the row to the last_entry_date the caller computed from,
// so PostgREST matches zero rows when another writer got there first.
// Returns false when the conditional write did not land.
func (c *Client) ApplyRewardUpdate(ctx context.Context, id, expectLastEntry string, updates map[string]any) (bool, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ApplyRewardUpdate")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id))

	path := fmt.Sprintf("users?id=eq.%s&last_entry_date=eq.%s", id, url.QueryEscape(expectLastEntry))
	body, err := c.doPatch(ctx, path, updates)
	if err != nil {
		return false, &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}

	return rowCount(body) > 0, nil
}

// ListUsers returns every user, newest first. Admin-only surface.
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListUsers")
	defer span.End()

	var users []domain.User

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, "users?order=created_at.desc")
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				users = []domain.User{}
				return nil
			}

			var rows []supabaseUser
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode users: %w", err)
			}

			users = make([]domain.User, 0, len(rows))
			for _, r := range rows {
				users = append(users, *r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}
	return users, nil
}

// DeleteUser removes the user row. Dependent rows are removed by the
// admin purge cascade, not by the database.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id))

	if err := c.doDelete(ctx, fmt.Sprintf("users?id=eq.%s", id)); err != nil {
		return &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}
	return nil
}

// --- Refresh tokens ---

func (c *Client) StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	ctx, span := tracer.Start(ctx, "Supabase.StoreRefreshToken")
	defer span.End()

	data := map[string]any{
		"id":         uuid.New().String(),
		"user_id":    userID,
		"token_hash": tokenHash,
		"expires_at": expiresAt.Format(time.RFC3339),
		"revoked":    false,
	}

	_, err := c.doPost(ctx, "refresh_tokens", data)
	return err
}

func (c *Client) GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetRefreshToken")
	defer span.End()

	path := fmt.Sprintf("refresh_tokens?token_hash=eq.%s&revoked=eq.false&limit=1", tokenHash)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	if body == nil || string(body) == "[]" {
		return nil, nil
	}

	var rows []domain.RefreshToken
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode refresh_tokens: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Client) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	ctx, span := tracer.Start(ctx, "Supabase.RevokeRefreshToken")
	defer span.End()

	path := fmt.Sprintf("refresh_tokens?token_hash=eq.%s", tokenHash)
	_, err := c.doPatch(ctx, path, map[string]any{"revoked": true})
	return err
}

func (c *Client) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.RevokeAllRefreshTokens")
	defer span.End()

	path := fmt.Sprintf("refresh_tokens?user_id=eq.%s&revoked=eq.false", userID)
	_, err := c.doPatch(ctx, path, map[string]any{"revoked": true})
	return err
}
