// Package http exposes the grading, preview, leaderboard and recompute
// endpoints, plus a websocket stream of leaderboard updates.
package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"quiz-scoring-service/internal/app"
	"quiz-scoring-service/internal/domain"
)

type Handler struct {
	submissions *app.SubmissionService
	leaderboard *app.LeaderboardService
	rankings    *app.RankingService
}

func NewHandler(submissions *app.SubmissionService, leaderboard *app.LeaderboardService, rankings *app.RankingService) *Handler {
	return &Handler{
		submissions: submissions,
		leaderboard: leaderboard,
		rankings:    rankings,
	}
}

// Register wires the API routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/quizzes/{quizID}/submit", h.handleSubmit)
	mux.HandleFunc("GET /api/quizzes/{quizID}/points-preview", h.handlePointsPreview)
	mux.HandleFunc("GET /api/leaderboard", h.handleLeaderboard)
	mux.HandleFunc("POST /api/rankings/recompute", h.handleRecompute)
}

type submitRequest struct {
	UserID           *int64                 `json:"userId,omitempty"` // supplied by the auth layer; nil = guest
	TimeSpentSeconds *int                   `json:"timeSpentSeconds,omitempty"`
	Responses        []domain.ResponseInput `json:"responses"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathID(r, "quizID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.Validationf("body", "malformed JSON"))
		return
	}

	result, err := h.submissions.Submit(r.Context(), req.UserID, quizID, req.Responses, req.TimeSpentSeconds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handlePointsPreview(w http.ResponseWriter, r *http.Request) {
	quizID, err := pathID(r, "quizID")
	if err != nil {
		writeError(w, err)
		return
	}

	correct, err := queryInt(r, "correct", -1)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := queryInt(r, "total", -1)
	if err != nil {
		writeError(w, err)
		return
	}

	var timeSpent *int
	if raw := r.URL.Query().Get("timeSpent"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, domain.Validationf("timeSpent", "must be an integer"))
			return
		}
		timeSpent = &v
	}

	breakdown, err := h.submissions.PointsPreview(r.Context(), quizID, correct, total, timeSpent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := domain.LeaderboardQuery{
		Scope: domain.LeaderboardScope(r.URL.Query().Get("scope")),
		Desc:  r.URL.Query().Get("order") != "asc", // default desc
	}

	var err error
	if raw := r.URL.Query().Get("scopeId"); raw != "" {
		q.ScopeID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, domain.Validationf("scopeId", "must be an integer"))
			return
		}
	}
	if q.Limit, err = queryInt(r, "limit", 0); err != nil {
		writeError(w, err)
		return
	}
	if q.Page, err = queryInt(r, "page", 0); err != nil {
		writeError(w, err)
		return
	}

	page, err := h.leaderboard.Query(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleRecompute(w http.ResponseWriter, r *http.Request) {
	err := h.rankings.RecomputeAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"success": err == nil})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validationf(name, "must be a positive integer")
	}
	return id, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Validationf(name, "must be an integer")
	}
	return v, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Reason, Field: ve.Field})
	case errors.Is(err, domain.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrQuizNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrQuestionNotInQuiz), errors.Is(err, domain.ErrUnknownAnswer),
		errors.Is(err, domain.ErrEmptySubmission):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
