package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/fintrack/vault-api-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Transactions
// ============================================================

func listTransactionsHandler(vaultSvc *service.VaultService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/transactions")
		defer span.End()

		userID := authorizeUser(w, r)
		if userID == "" {
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		transactions, err := vaultSvc.ListTransactions(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
	}
}

func createTransactionHandler(vaultSvc *service.VaultService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/transactions")
		defer span.End()

		userID := authorizeUser(w, r)
		if userID == "" {
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		var req domain.CreateTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := vaultSvc.CreateTransaction(ctx, userID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, result)
	}
}

func updateTransactionHandler(vaultSvc *service.VaultService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/transactions/{txId}")
		defer span.End()

		txID := chi.URLParam(r, "txId")

		var req domain.UpdateTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		tx, err := vaultSvc.UpdateTransaction(ctx, callerScope(ctx), txID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, tx)
	}
}

func deleteTransactionHandler(vaultSvc *service.VaultService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/transactions/{txId}")
		defer span.End()

		txID := chi.URLParam(r, "txId")
		if err := vaultSvc.DeleteTransaction(ctx, callerScope(ctx), txID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func resolveTransactionHandler(vaultSvc *service.VaultService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/{txId}/resolve")
		defer span.End()

		txID := chi.URLParam(r, "txId")

		var req domain.ResolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		tx, err := vaultSvc.Resolve(ctx, callerScope(ctx), txID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, tx)
	}
}

// callerScope is the ownership scope for transaction-id routes: admins
// get the unscoped view (empty id), everyone else their own records.
func callerScope(ctx context.Context) string {
	if IsAdminFromContext(ctx) {
		return ""
	}
	return UserIDFromContext(ctx)
}
