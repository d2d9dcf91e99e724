// Package domain defines the core business entities and the pure derivation
// engines for the FinTrack vault. These models are independent of external
// services and represent the canonical data structures used throughout the API.
package domain

import "time"

// ============================================================
// Transactions
// ============================================================

// TransactionType classifies a financial event.
type TransactionType string

const (
	TypeIncome  TransactionType = "INCOME"
	TypeExpense TransactionType = "EXPENSE"
	TypeCredit  TransactionType = "CREDIT" // money lent out
	TypeDebt    TransactionType = "DEBT"   // money borrowed in
	TypeSaving  TransactionType = "SAVING" // contribution toward a goal
)

// ValidTransactionType reports whether t is one of the five known types.
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TypeIncome, TypeExpense, TypeCredit, TypeDebt, TypeSaving:
		return true
	}
	return false
}

// Resolution is the settlement state of a CREDIT or DEBT transaction.
// Other types never carry a resolution.
type Resolution string

const (
	ResolutionPending   Resolution = "PENDING"
	ResolutionSettled   Resolution = "SETTLED"
	ResolutionDefaulted Resolution = "DEFAULTED"
)

// Terminal reports whether the resolution is a closed state. Both SETTLED
// and DEFAULTED remove the record's effect on net liquidity.
func (r Resolution) Terminal() bool {
	return r == ResolutionSettled || r == ResolutionDefaulted
}

// Transaction represents a single financial event owned by one user.
// For SAVING, Category doubles as the goal name; for CREDIT/DEBT it is
// the counterparty.
type Transaction struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Amount     float64         `json:"amount"`
	Type       TransactionType `json:"type"`
	Category   string          `json:"category"`
	Channel    string          `json:"payment_method"`
	Note       string          `json:"note,omitempty"`
	Date       time.Time       `json:"date"`
	Resolution Resolution      `json:"resolution,omitempty"`
}

// Resolved reports whether a CREDIT/DEBT transaction has reached a
// terminal state. Always false for other types.
func (t Transaction) Resolved() bool {
	return (t.Type == TypeCredit || t.Type == TypeDebt) && t.Resolution.Terminal()
}

// ============================================================
// Users
// ============================================================

// Tier is a cosmetic status rank derived purely from cumulative coins.
type Tier string

const (
	TierCopper   Tier = "COPPER"
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
	TierDiamond  Tier = "DIAMOND"
)

// User is an account record. PasswordHash is never serialized.
// LastEntryDate is a calendar date string (YYYY-MM-DD) in the reference
// timezone (UTC); empty means no entry has ever been recorded.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	PasswordHash  string     `json:"-"`
	Coins         int        `json:"coins"`
	Streak        int        `json:"streak"`
	LastEntryDate string     `json:"last_entry_date,omitempty"`
	Tier          Tier       `json:"tier"`
	IsAdmin       bool       `json:"is_admin"`
	FailedLogins  int        `json:"-"`
	LockedUntil   *time.Time `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ============================================================
// Goals & Budgets
// ============================================================

// Goal is a savings objective. Progress is computed from SAVING
// transactions whose category matches Name, never stored.
// CelebratedAt records the one-time completion celebration so UI
// re-renders do not replay it.
type Goal struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Name         string     `json:"name"`
	TargetAmount float64    `json:"target_amount"`
	CelebratedAt *time.Time `json:"celebrated_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Budget caps monthly EXPENSE spend for one category. One budget per
// (user, category) pair; setting again overwrites the limit.
type Budget struct {
	ID       string  `json:"id"`
	UserID   string  `json:"user_id"`
	Category string  `json:"category"`
	Limit    float64 `json:"limit"`
}

// ============================================================
// Labels (category / channel suggestions)
// ============================================================

// LabelKind distinguishes the two user-editable suggestion registries.
type LabelKind string

const (
	LabelCategory LabelKind = "category"
	LabelChannel  LabelKind = "channel"
)

// Label is a free-text suggestion a user can add to customize forms.
// TxType scopes a category label to one transaction type; unused for
// channel labels.
type Label struct {
	ID     string          `json:"id"`
	UserID string          `json:"user_id"`
	Kind   LabelKind       `json:"kind"`
	Name   string          `json:"name"`
	TxType TransactionType `json:"tx_type,omitempty"`
}

// ============================================================
// Derived views (computed, never stored)
// ============================================================

// CategoryTotal is spend aggregated per category.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// CreditSummary aggregates money lent out.
type CreditSummary struct {
	Outstanding float64 `json:"outstanding"`
	Recovered   float64 `json:"recovered"`
}

// DebtSummary aggregates money borrowed in.
type DebtSummary struct {
	Outstanding float64 `json:"outstanding"`
	Settled     float64 `json:"settled"`
}

// TierStatus is the tier ladder position derived from coins.
type TierStatus struct {
	Tier          Tier    `json:"tier"`
	NextTier      Tier    `json:"next_tier,omitempty"`
	Progress      float64 `json:"progress"` // 0..100 toward next tier
	CoinsToNext   int     `json:"coins_to_next"`
	AtTop         bool    `json:"at_top"`
	CurrentFloor  int     `json:"current_floor"`
	NextThreshold int     `json:"next_threshold,omitempty"`
}

// VaultSummary is the dashboard head: everything the overview screen
// renders in one payload.
type VaultSummary struct {
	UserID          string             `json:"user_id"`
	NetLiquidity    float64            `json:"net_liquidity"`
	ChannelBalances map[string]float64 `json:"channel_balances"`
	Coins           int                `json:"coins"`
	Streak          int                `json:"streak"`
	TierStatus      TierStatus         `json:"tier_status"`
	Credit          CreditSummary      `json:"credit"`
	Debt            DebtSummary        `json:"debt"`
	TransactionN    int                `json:"transaction_count"`
}

// BudgetStatus is one evaluated budget. Remaining goes negative when
// breached; its magnitude is the breach size.
type BudgetStatus struct {
	Budget
	Spent     float64 `json:"spent"`
	Progress  float64 `json:"progress"`
	Remaining float64 `json:"remaining"`
	Breached  bool    `json:"breached"`
}

// BudgetReport is the full budget evaluation for one month.
type BudgetReport struct {
	Month            string         `json:"month"` // YYYY-MM
	Budgets          []BudgetStatus `json:"budgets"`
	TotalLimit       float64        `json:"total_limit"`
	TotalSpent       float64        `json:"total_spent"`
	GlobalSaturation float64        `json:"global_saturation"`
}

// GoalStatus is one evaluated goal. JustReached is true only on the
// evaluation that first crossed 100%, for one-shot celebration.
type GoalStatus struct {
	Goal
	Saved       float64 `json:"saved"`
	Progress    float64 `json:"progress"`
	Remaining   float64 `json:"remaining"`
	Reached     bool    `json:"reached"`
	JustReached bool    `json:"just_reached"`
}

// MonthlyTrend is one month of income vs expense for the trend chart.
type MonthlyTrend struct {
	Month    string  `json:"month"` // YYYY-MM
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
}

// LeaderboardEntry is the public slice of a user shown on global ranks.
type LeaderboardEntry struct {
	Name   string `json:"name"`
	Tier   Tier   `json:"tier"`
	Streak int    `json:"streak"`
	Coins  int    `json:"coins"`
}

// ============================================================
// Advisor (external LLM service)
// ============================================================

// AdviceRequest is the aggregated context sent to the advisor service.
type AdviceRequest struct {
	UserName      string   `json:"user_name"`
	Tier          Tier     `json:"tier"`
	NetLiquidity  float64  `json:"net_liquidity"`
	MonthSpend    float64  `json:"month_spend"`
	TopCategory   string   `json:"top_category"`
	RecentEntries []string `json:"recent_entries,omitempty"`
	Query         string   `json:"query,omitempty"`
}

// AdviceResponse is what the advisor service returns.
type AdviceResponse struct {
	Advice     string `json:"advice"`
	TokensUsed int    `json:"tokens_used,omitempty"`
}

// AdviceResult is the API-level result. Error carries a user-visible
// message when the advisor is unreachable; derivations never fail with it.
type AdviceResult struct {
	Advice      string    `json:"advice,omitempty"`
	Error       string    `json:"error,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ============================================================
// Sync status
// ============================================================

// SyncStatus reports remote-store connectivity and the write-behind queue.
type SyncStatus struct {
	Online       bool      `json:"online"`
	PendingOps   int       `json:"pending_ops"`
	LastProbeAt  time.Time `json:"last_probe_at"`
	RemoteErrors int64     `json:"remote_errors"`
}

// ============================================================
// Auth request/response types
// ============================================================

// RegisterRequest is the body for POST /v1/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the body for 200 from login/refresh.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         *User  `json:"user"`
}

// RefreshRequest is the body for POST /v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshToken is a stored, hashed refresh token.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
}

// UpdateProfileRequest is the body for PATCH /v1/users/{id}.
type UpdateProfileRequest struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// CreateTransactionRequest is the body for POST /v1/users/{id}/transactions.
type CreateTransactionRequest struct {
	Amount   float64         `json:"amount"`
	Type     TransactionType `json:"type"`
	Category string          `json:"category"`
	Channel  string          `json:"payment_method"`
	Note     string          `json:"note,omitempty"`
	Date     *time.Time      `json:"date,omitempty"`
}

// CreateGoalRequest is the body for POST /v1/users/{id}/goals.
type CreateGoalRequest struct {
	Name         string  `json:"name"`
	TargetAmount float64 `json:"target_amount"`
}

// SetBudgetRequest is the body for PUT /v1/users/{id}/budgets.
type SetBudgetRequest struct {
	Category string  `json:"category"`
	Limit    float64 `json:"limit"`
}

// CreateLabelRequest is the body for POST /v1/users/{id}/labels.
type CreateLabelRequest struct {
	Kind   LabelKind       `json:"kind"`
	Name   string          `json:"name"`
	TxType TransactionType `json:"tx_type,omitempty"`
}

// UpdateTransactionRequest is the body for PATCH /v1/transactions/{id}.
// Pointer fields distinguish "leave alone" from "set to zero value".
type UpdateTransactionRequest struct {
	Amount   *float64 `json:"amount,omitempty"`
	Category *string  `json:"category,omitempty"`
	Channel  *string  `json:"payment_method,omitempty"`
	Note     *string  `json:"note,omitempty"`
}

// EntryResult is returned from recording a transaction: the stored
// record plus the reward state after the streak engine ran.
type EntryResult struct {
	Transaction *Transaction `json:"transaction"`
	CoinsEarned int          `json:"coins_earned"`
	Coins       int          `json:"coins"`
	Streak      int          `json:"streak"`
	Tier        Tier         `json:"tier"`
	TierStatus  TierStatus   `json:"tier_status"`
}

// ResolveRequest is the body for POST /v1/transactions/{id}/resolve.
// Outcome must be SETTLED or DEFAULTED; PENDING reopens the record
// (manual correction path). Note, when present, replaces the record's
// note alongside the state change.
type ResolveRequest struct {
	Outcome Resolution `json:"outcome"`
	Note    *string    `json:"note,omitempty"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
