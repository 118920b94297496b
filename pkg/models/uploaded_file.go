package models

import (
	"time"

	"github.com/google/uuid"
)

// UploadedFile records a media file uploaded for one analysis. The file on
// disk is removed together with the analysis (or by the retention sweeper).
type UploadedFile struct {
	ID           uuid.UUID `db:"id"            json:"id"`
	AnalysisID   uuid.UUID `db:"analysis_id"   json:"-"`
	Filename     string    `db:"filename"      json:"filename"`
	OriginalName string    `db:"original_name" json:"original_name"`
	Path         string    `db:"path"          json:"-"`
	Size         int64     `db:"size"          json:"size"`
	MimeType     string    `db:"mime_type"     json:"mime_type"`
	UploadedAt   time.Time `db:"uploaded_at"   json:"uploaded_at"`
}
