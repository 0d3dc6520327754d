package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/topiclab/mastery/internal/service"
)

type CurriculumHandler struct {
	svc *service.CurriculumService
}

func NewCurriculumHandler(svc *service.CurriculumService) *CurriculumHandler {
	return &CurriculumHandler{svc: svc}
}

type stageGapsResponse struct {
	Stage int                 `json:"stage"`
	Gaps  map[string][]string `json:"gaps"`
}

func (h *CurriculumHandler) GapsForStage(w http.ResponseWriter, r *http.Request) {
	stage, err := strconv.Atoi(chi.URLParam(r, "stage"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid stage")
		return
	}

	gaps, err := h.svc.GapsForStage(r.Context(), stage)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stage gaps")
		return
	}

	writeJSON(w, http.StatusOK, stageGapsResponse{Stage: stage, Gaps: gaps})
}

type staleResponse struct {
	Cutoff time.Time `json:"cutoff"`
	Topics []string  `json:"topics"`
}

// Stale lists topics not re-scored within the requested window
// (?days=N, default 30), oldest first.
func (h *CurriculumHandler) Stale(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = n
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	topics, err := h.svc.StaleTopics(r.Context(), cutoff)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stale topics")
		return
	}

	writeJSON(w, http.StatusOK, staleResponse{Cutoff: cutoff, Topics: topics})
}

func (h *CurriculumHandler) Progress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.svc.Progress(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load progress")
		return
	}

	writeJSON(w, http.StatusOK, progress)
}
