// Package models contains shared data models used across the DebateLens codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

const (
	SourceText   = "text"
	SourceUpload = "upload"
	SourceURL    = "url"
)

// Analysis tracks one end-to-end debate analysis job. The API returns the id
// on intake; the client polls GET /api/v1/analyses/{id} until status is
// completed or error. Regeneration resets a terminal job back to processing.
type Analysis struct {
	ID           uuid.UUID      `db:"id"            json:"id"`
	Title        string         `db:"title"         json:"title"`
	Topic        string         `db:"topic"         json:"topic"`
	SourceType   string         `db:"source_type"   json:"source_type"`
	SourceRef    string         `db:"source_ref"    json:"-"`
	Speakers     []string       `db:"speakers"      json:"speakers"`
	Status       string         `db:"status"        json:"status"`
	ErrorMessage *string        `db:"error_message" json:"error_message,omitempty"`
	Metadata     map[string]any `db:"metadata"      json:"metadata,omitempty"`
	CreatedAt    time.Time      `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"    json:"updated_at"`
	CompletedAt  *time.Time     `db:"completed_at"  json:"completed_at,omitempty"`
}

// Terminal reports whether the job reached a final state.
func (a *Analysis) Terminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusError
}
