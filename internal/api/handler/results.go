package handler

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mavalente92/debatelens/internal/api/response"
	"github.com/mavalente92/debatelens/internal/cache"
	"github.com/mavalente92/debatelens/internal/pipeline"
	"github.com/mavalente92/debatelens/internal/store"
	"github.com/mavalente92/debatelens/pkg/models"
)

const (
	defaultListLimit = 10
	maxListLimit     = 50
)

type analysisView struct {
	*models.Analysis
	Transcript *models.Transcript `json:"transcript,omitempty"`
	Results    *resultsView       `json:"results,omitempty"`
}

type resultsView struct {
	SpeakerAnalyses []*models.SpeakerAnalysis `json:"speaker_analyses"`
	Comparison      *models.Comparison        `json:"comparison"`
}

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "analysisID"))
	return id, err == nil
}

// NewGetAnalysisHandler returns the handler for GET
// /api/v1/analyses/{analysisID}. Completed analyses embed the transcript
// and full results; in-flight ones carry only job state.
func NewGetAnalysisHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid analysis id", nil)
			return
		}

		a, err := st.GetAnalysis(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Analysis not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		view := analysisView{Analysis: a}
		if a.Status == models.StatusCompleted {
			if transcript, err := st.GetTranscript(r.Context(), id); err == nil {
				view.Transcript = transcript
			}
			sas, err := st.ListSpeakerAnalyses(r.Context(), id)
			if err == nil && len(sas) > 0 {
				results := &resultsView{SpeakerAnalyses: sas}
				if comparison, err := st.GetComparison(r.Context(), id); err == nil {
					results.Comparison = comparison
				}
				view.Results = results
			}
		}

		response.JSON(w, view)
	}
}

// NewAnalysisStatusHandler returns the handler for GET
// /api/v1/analyses/{analysisID}/status, the cheap polling endpoint. It
// prefers the Redis status mirror and falls back to the database.
func NewAnalysisStatusHandler(st store.Store, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid analysis id", nil)
			return
		}

		if status, found, err := ca.GetAnalysisStatus(r.Context(), id); err == nil && found {
			response.JSON(w, map[string]any{"id": id, "status": status})
			return
		}

		a, err := st.GetAnalysis(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Analysis not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		response.JSON(w, map[string]any{"id": id, "status": a.Status})
	}
}

// NewGetTranscriptHandler returns the handler for GET
// /api/v1/analyses/{analysisID}/transcript.
func NewGetTranscriptHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid analysis id", nil)
			return
		}

		transcript, err := st.GetTranscript(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Transcript not available", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		response.JSON(w, transcript)
	}
}

// NewListAnalysesHandler returns the handler for GET /api/v1/analyses.
// Supports page, limit and status query parameters.
func NewListAnalysesHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit < 1 {
			limit = defaultListLimit
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}

		status := r.URL.Query().Get("status")
		switch status {
		case "", models.StatusPending, models.StatusProcessing, models.StatusCompleted, models.StatusError:
		default:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"status must be one of pending, processing, completed, error", nil)
			return
		}

		analyses, total, err := st.ListAnalyses(r.Context(), store.AnalysisFilter{
			Status: status,
			Page:   page,
			Limit:  limit,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		if analyses == nil {
			analyses = []*models.Analysis{}
		}

		response.Collection(w, analyses, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

// NewDeleteAnalysisHandler returns the handler for DELETE
// /api/v1/analyses/{analysisID}. Uploaded media is removed from disk
// before the row cascade-deletes the rest.
func NewDeleteAnalysisHandler(st store.Store, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid analysis id", nil)
			return
		}

		if file, err := st.GetUploadedFile(r.Context(), id); err == nil {
			_ = os.Remove(file.Path)
		}

		if err := st.DeleteAnalysis(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Analysis not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		_ = ca.Delete(r.Context(), cache.AnalysisStatusKey(id))

		response.NoContent(w)
	}
}

// NewRegenerateHandler returns the handler for POST
// /api/v1/analyses/{analysisID}/regenerate.
func NewRegenerateHandler(p Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid analysis id", nil)
			return
		}

		task, err := p.Regenerate(r.Context(), id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Analysis not found", nil)
			return
		case errors.Is(err, pipeline.ErrAnalysisInProgress):
			response.Error(w, http.StatusConflict, "ANALYSIS_IN_PROGRESS",
				"The analysis is still processing", nil)
			return
		case err != nil:
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not restart the analysis", nil)
			return
		}

		response.Accepted(w, intakeResponse{
			ID:      task.AnalysisID,
			Status:  models.StatusProcessing,
			Message: "Regeneration started",
		})
	}
}
