package handler

import (
	"net/http"
	"strconv"

	"github.com/fintrack/vault-api-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Derived views (summary, spending, trends, budgets, goals)
// ============================================================

func summaryHandler(summarySvc *service.SummaryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/summary")
		defer span.End()

		userID := authorizeUser(w, r)
		if userID == "" {
			return
		}
		span.SetAttributes(attribute.String("user.id", userID))

		summary, err := summarySvc.Summary(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, summary)
	}
}

func topSpendingHandler(summarySvc *service.SummaryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/spending")
		defer span.End()

		userID := authorizeUser(w, r)
		if userID == "" {
			return
		}

		month := r.URL.Query().Get("month")
		n := 0
		if v := r.URL.Query().Get("n"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
				n = parsed
			}
		}

		top, err := summarySvc.TopSpending(ctx, userID, month, n)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"month": month, "categories": top})
	}
}

func trendsHandler(summarySvc *service.SummaryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/trends")
		defer span.End()

		userID := authorizeUser(w, r)
		if userID == "" {
			return
		}

		trends, err := summarySvc.Trends(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"trends": trends})
	}
}

func budgetReportHandler(summarySvc *service.SummaryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/budgets/report")
		defer span.End()

		userID := authorizeUser(w, r)
		if userID == "" {
			return
		}

		report, err := summarySvc.BudgetReport(ctx, userID, r.URL.Query().Get("month"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}

func goalStatusesHandler(summarySvc *service.SummaryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/goals")
		defer span.End()

		userID := authorizeUser(w, r)
		if userID == "" {
			return
		}

		statuses, err := summarySvc.GoalStatuses(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"goals": statuses})
	}
}

func leaderboardHandler(summarySvc *service.SummaryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/leaderboard")
		defer span.End()

		entries, err := summarySvc.Leaderboard(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
	}
}
