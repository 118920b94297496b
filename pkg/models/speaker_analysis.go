package models

import (
	"time"

	"github.com/google/uuid"
)

// The six rhetorical categories every speaker is scored on, in display order.
const (
	CategoryTechnicalRigor       = "technical_rigor"
	CategoryDataUsage            = "data_usage"
	CategoryCommunicationStyle   = "communication_style"
	CategoryFocus                = "focus"
	CategoryPracticalOrientation = "practical_orientation"
	CategoryAccessibility        = "accessibility"
)

// Categories lists the fixed category keys in their canonical order.
var Categories = []string{
	CategoryTechnicalRigor,
	CategoryDataUsage,
	CategoryCommunicationStyle,
	CategoryFocus,
	CategoryPracticalOrientation,
	CategoryAccessibility,
}

// SpeakerAnalysis holds the AI-generated assessment for a single participant.
// Scores are in [1,10] with one decimal of precision; explanations are keyed
// by the same category keys as the scores. Immutable once created.
type SpeakerAnalysis struct {
	ID                int64              `db:"id"                 json:"-"`
	AnalysisID        uuid.UUID          `db:"analysis_id"        json:"-"`
	Speaker           string             `db:"speaker"            json:"speaker"`
	Scores            map[string]float64 `db:"scores"             json:"scores"`
	Explanations      map[string]string  `db:"explanations"       json:"explanations"`
	Highlights        []string           `db:"highlights"         json:"highlights"`
	Improvements      []string           `db:"improvements"       json:"improvements"`
	OverallAssessment string             `db:"overall_assessment" json:"overall_assessment"`
	CreatedAt         time.Time          `db:"created_at"         json:"created_at"`
}
