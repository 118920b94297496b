package models

import (
	"time"

	"github.com/google/uuid"
)

// UndeterminedWinner is the neutral winner value used when the comparative
// call cannot be parsed or obtained.
const UndeterminedWinner = "undetermined"

// Comparison is the cross-participant synthesis for one analysis. Winner
// names should reference speakers from the owning analysis; this is validated
// defensively downstream, not enforced at parse time.
type Comparison struct {
	ID              int64             `db:"id"               json:"-"`
	AnalysisID      uuid.UUID         `db:"analysis_id"      json:"-"`
	WinnerOverall   string            `db:"winner_overall"   json:"winner_overall"`
	CategoryWinners map[string]string `db:"category_winners" json:"category_winners"`
	Summary         string            `db:"summary"          json:"summary"`
	KeyDifferences  []string          `db:"key_differences"  json:"key_differences"`
	CreatedAt       time.Time         `db:"created_at"       json:"created_at"`
}
