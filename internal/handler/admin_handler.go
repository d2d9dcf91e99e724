package handler

import (
	"net/http"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/fintrack/vault-api-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Admin
// ============================================================

func adminListUsersHandler(adminSvc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/users")
		defer span.End()

		users, err := adminSvc.ListUsers(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	}
}

func adminPurgeUserHandler(adminSvc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/admin/users/{userId}")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		if userID == UserIDFromContext(ctx) {
			writeError(w, http.StatusBadRequest, "admins cannot purge their own account")
			return
		}

		if err := adminSvc.PurgeUser(ctx, userID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		logger.Info("user purged", zap.String("user_id", userID),
			zap.String("admin_id", UserIDFromContext(ctx)))
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "user purged", ID: userID})
	}
}

func adminResetRewardsHandler(adminSvc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/users/{userId}/rewards/reset")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}

		user, err := adminSvc.ResetRewards(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		logger.Info("rewards reset", zap.String("user_id", userID),
			zap.String("admin_id", UserIDFromContext(ctx)))
		writeJSON(w, http.StatusOK, user)
	}
}

func adminListTransactionsHandler(adminSvc *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/transactions")
		defer span.End()

		transactions, err := adminSvc.ListAllTransactions(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
	}
}
