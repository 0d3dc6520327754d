package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/topiclab/mastery/internal/domain"
	"github.com/topiclab/mastery/internal/service"
	"github.com/topiclab/mastery/internal/store"
)

type TopicHandler struct {
	svc *service.IngestService
}

func NewTopicHandler(svc *service.IngestService) *TopicHandler {
	return &TopicHandler{svc: svc}
}

type ingestRequest struct {
	Stage               int                  `json:"stage,omitempty"`
	Criterion           string               `json:"criterion,omitempty"`
	SourceLabel         string               `json:"source_label,omitempty"`
	Summary             string               `json:"summary,omitempty"`
	KeyConcepts         []string             `json:"key_concepts,omitempty"`
	TradingImplications []string             `json:"trading_implications,omitempty"`
	RiskFactors         []string             `json:"risk_factors,omitempty"`
	Claims              []service.ClaimInput `json:"claims"`
}

func (h *TopicHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	topicID := chi.URLParam(r, "topicID")

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Claims) == 0 {
		writeError(w, http.StatusBadRequest, "claims are required")
		return
	}

	result, err := h.svc.Ingest(r.Context(), service.IngestBatch{
		TopicID:             topicID,
		Stage:               req.Stage,
		Criterion:           req.Criterion,
		SourceLabel:         req.SourceLabel,
		Summary:             req.Summary,
		KeyConcepts:         req.KeyConcepts,
		TradingImplications: req.TradingImplications,
		RiskFactors:         req.RiskFactors,
		Claims:              req.Claims,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTopicIDMissing),
			errors.Is(err, service.ErrNoValidClaims):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrTopicBusy):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to ingest batch")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type topicResponse struct {
	*domain.TopicFile
	State domain.MasteryState `json:"state"`
}

func (h *TopicHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	topicID := chi.URLParam(r, "topicID")

	file, err := h.svc.GetTopic(r.Context(), topicID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTopicIDMissing):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "topic not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to load topic")
		}
		return
	}

	writeJSON(w, http.StatusOK, topicResponse{
		TopicFile: file,
		State:     domain.StateForScore(file.Record.Score),
	})
}
