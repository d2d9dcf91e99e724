package handler

import (
	"encoding/json"
	"net/http"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/fintrack/vault-api-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Goals
// ============================================================

func createGoalHandler(plannerSvc *service.PlannerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/goals")
		defer span.End()

		userID := authorizeUser(w, r)
		if userID == "" {
			return
		}

		var req domain.CreateGoalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		goal, err := plannerSvc.CreateGoal(ctx, userID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, goal)
	}
}

func deleteGoalHandler(plannerSvc *service.PlannerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/users/{userId}/goals/{goalId}")
		defer span.End()

		userID := authorizeUser(w, r)
		if userID == "" {
			return
		}

		if err := plannerSvc.DeleteGoal(ctx, userID, chi.URLParam(r, "goalId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Budgets
// ============================================================

func listBudgetsHandler(plannerSvc *service.PlannerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/budgets")
		defer span.End()

		userID := authorizeUser(w, r)
		if userID == "" {
			return
		}

		budgets, err := plannerSvc.ListBudgets(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"budgets": budgets})
	}
}

func setBudgetHandler(plannerSvc *service.PlannerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/users/{userId}/budgets")
		defer span.End()

		userID := authorizeUser(w, r)
		if userID == "" {
			return
		}

		var req domain.SetBudgetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		budget, err := plannerSvc.SetBudget(ctx, userID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, budget)
	}
}

func deleteBudgetHandler(plannerSvc *service.PlannerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/users/{userId}/budgets/{budgetId}")
		defer span.End()

		userID := authorizeUser(w, r)
		if userID == "" {
			return
		}

		if err := plannerSvc.DeleteBudget(ctx, userID, chi.URLParam(r, "budgetId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Labels
// ============================================================

func listLabelsHandler(plannerSvc *service.PlannerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/labels")
		defer span.End()

		userID := authorizeUser(w, r)
		if userID == "" {
			return
		}

		kind := domain.LabelKind(r.URL.Query().Get("kind"))
		if kind == "" {
			kind = domain.LabelCategory
		}

		labels, err := plannerSvc.ListLabels(ctx, userID, kind)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"labels": labels})
	}
}

func createLabelHandler(plannerSvc *service.PlannerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/labels")
		defer span.End()

		userID := authorizeUser(w, r)
		if userID == "" {
			return
		}

		var req domain.CreateLabelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		label, err := plannerSvc.CreateLabel(ctx, userID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, label)
	}
}

func deleteLabelHandler(plannerSvc *service.PlannerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/users/{userId}/labels/{labelId}")
		defer span.End()

		userID := authorizeUser(w, r)
		if userID == "" {
			return
		}

		if err := plannerSvc.DeleteLabel(ctx, userID, chi.URLParam(r, "labelId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
