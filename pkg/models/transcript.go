package models

import (
	"time"

	"github.com/google/uuid"
)

// Transcript is the flat text produced for one analysis. At most one per
// analysis; a regenerate replaces it wholesale rather than updating in place.
type Transcript struct {
	ID         int64     `db:"id"          json:"-"`
	AnalysisID uuid.UUID `db:"analysis_id" json:"-"`
	Text       string    `db:"text"        json:"text"`
	Language   string    `db:"language"    json:"language"`
	Duration   *float64  `db:"duration"    json:"duration,omitempty"` // seconds
	Source     string    `db:"source"      json:"source"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}
