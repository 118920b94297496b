// Package handler contains the HTTP handlers for the analysis API.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mavalente92/debatelens/internal/api/response"
	"github.com/mavalente92/debatelens/internal/pipeline"
	"github.com/mavalente92/debatelens/pkg/models"
)

const (
	minTextChars = 100
	maxSpeakers  = 10
)

// youtubeRe accepts standard watch URLs and short links with an 11-char
// video id.
var youtubeRe = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com/watch\?v=|youtu\.be/)[a-zA-Z0-9_-]{11}`)

// Pipeline is the job-dispatch interface the intake handlers depend on.
type Pipeline interface {
	Submit(ctx context.Context, job pipeline.Job) (*pipeline.Task, error)
	Regenerate(ctx context.Context, id uuid.UUID) (*pipeline.Task, error)
}

type intakeResponse struct {
	ID      uuid.UUID `json:"id"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}

// NewTextAnalysisHandler returns the handler for POST /api/v1/analyses/text.
func NewTextAnalysisHandler(p Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title    string   `json:"title"`
			Topic    string   `json:"topic"`
			Text     string   `json:"text"`
			Speakers []string `json:"speakers"`
			Language string   `json:"language"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if len(strings.TrimSpace(req.Text)) < minTextChars {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				fmt.Sprintf("text must be at least %d characters", minTextChars), nil)
			return
		}
		speakers, err := validateSpeakers(req.Speakers)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		job := pipeline.Job{
			Analysis: &models.Analysis{
				Title:      defaultTitle(req.Title, "Text analysis"),
				Topic:      req.Topic,
				SourceType: models.SourceText,
				Speakers:   speakers,
			},
			Text:     req.Text,
			Language: req.Language,
		}

		task, err := p.Submit(r.Context(), job)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not start the analysis", nil)
			return
		}

		response.Accepted(w, intakeResponse{
			ID:      task.AnalysisID,
			Status:  models.StatusPending,
			Message: "Analysis started",
		})
	}
}

// NewURLAnalysisHandler returns the handler for POST /api/v1/analyses/url.
func NewURLAnalysisHandler(p Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title    string   `json:"title"`
			Topic    string   `json:"topic"`
			URL      string   `json:"url"`
			Speakers []string `json:"speakers"`
			Language string   `json:"language"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if !youtubeRe.MatchString(req.URL) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"url must be a valid YouTube video URL", nil)
			return
		}
		speakers, err := validateSpeakers(req.Speakers)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		job := pipeline.Job{
			Analysis: &models.Analysis{
				Title:      defaultTitle(req.Title, "Video analysis"),
				Topic:      req.Topic,
				SourceType: models.SourceURL,
				SourceRef:  req.URL,
				Speakers:   speakers,
			},
			URL:      req.URL,
			Language: req.Language,
		}

		task, err := p.Submit(r.Context(), job)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not start the analysis", nil)
			return
		}

		response.Accepted(w, intakeResponse{
			ID:      task.AnalysisID,
			Status:  models.StatusPending,
			Message: "Analysis started. Transcription may take several minutes.",
		})
	}
}

// validateSpeakers trims names and enforces the participant bounds.
func validateSpeakers(raw []string) ([]string, error) {
	speakers := make([]string, 0, len(raw))
	for _, s := range raw {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			speakers = append(speakers, trimmed)
		}
	}
	if len(speakers) < 1 || len(speakers) > maxSpeakers {
		return nil, fmt.Errorf("speakers must list between 1 and %d non-empty names", maxSpeakers)
	}
	return speakers, nil
}

func defaultTitle(title, kind string) string {
	if strings.TrimSpace(title) != "" {
		return title
	}
	return fmt.Sprintf("%s - %s", kind, time.Now().Format("2006-01-02"))
}
