package handler

import (
	"net/http"
	"strconv"

	"funnypdf/internal/middleware"
	"funnypdf/internal/models"
	"funnypdf/internal/repository"
)

// RunHandler exposes the run-history admin surface.
type RunHandler struct {
	runRepo *repository.RunRepository
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(runRepo *repository.RunRepository) *RunHandler {
	return &RunHandler{runRepo: runRepo}
}

// RegisterRoutes registers history routes (admin only).
func (h *RunHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	adminMw := middleware.RequireRole(models.RoleAdmin)
	mux.Handle("GET /api/v1/runs", authMw(adminMw(http.HandlerFunc(h.List))))
	mux.Handle("GET /api/v1/runs/stats", authMw(adminMw(http.HandlerFunc(h.Stats))))
}

// List handles GET /api/v1/runs?status=&limit=
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := q.Get("status")
	if status != "" {
		switch models.RunStatus(status) {
		case models.RunStatusDone, models.RunStatusFailed:
		default:
			Error(w, http.StatusBadRequest, "invalid status: "+status+" (allowed: done, failed)")
			return
		}
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	runs, err := h.runRepo.List(r.Context(), status, limit)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// Stats handles GET /api/v1/runs/stats
func (h *RunHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.runRepo.Stats(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, stats)
}
