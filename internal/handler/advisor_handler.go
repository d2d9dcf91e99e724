package handler

import (
	"encoding/json"
	"net/http"

	"github.com/fintrack/vault-api-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Advisor
// ============================================================

func adviceHandler(advisorSvc *service.AdvisorService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/advice")
		defer span.End()

		userID := authorizeUser(w, r)
		if userID == "" {
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		result, err := advisorSvc.Advice(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func chatHandler(advisorSvc *service.AdvisorService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/chat")
		defer span.End()

		userID := authorizeUser(w, r)
		if userID == "" {
			return
		}

		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := advisorSvc.Chat(ctx, userID, req.Query)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}
