package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mavalente92/debatelens/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrInvalidTransition = errors.New("invalid status transition")

// Store is the data access interface. All database operations go through here.
// Every mutation is a single-row, single-statement operation keyed by
// analysis id; child records cascade on analysis delete.
type Store interface {
	Ping(ctx context.Context) error

	CreateAnalysis(ctx context.Context, a *models.Analysis) error
	GetAnalysis(ctx context.Context, id uuid.UUID) (*models.Analysis, error)
	ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]*models.Analysis, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, opts ...StatusUpdateOption) error
	DeleteAnalysis(ctx context.Context, id uuid.UUID) error
	ListAnalysesOlderThan(ctx context.Context, cutoff time.Time) ([]*models.Analysis, error)

	SaveTranscript(ctx context.Context, t *models.Transcript) error
	GetTranscript(ctx context.Context, analysisID uuid.UUID) (*models.Transcript, error)

	SaveSpeakerAnalysis(ctx context.Context, sa *models.SpeakerAnalysis) error
	ListSpeakerAnalyses(ctx context.Context, analysisID uuid.UUID) ([]*models.SpeakerAnalysis, error)

	SaveComparison(ctx context.Context, c *models.Comparison) error
	GetComparison(ctx context.Context, analysisID uuid.UUID) (*models.Comparison, error)

	// DeleteResults removes speaker analyses and the comparison for one
	// analysis. Called before a regenerate re-populates them.
	DeleteResults(ctx context.Context, analysisID uuid.UUID) error

	SaveUploadedFile(ctx context.Context, f *models.UploadedFile) error
	GetUploadedFile(ctx context.Context, analysisID uuid.UUID) (*models.UploadedFile, error)
}

// AnalysisFilter selects analyses for listing.
type AnalysisFilter struct {
	Status string
	Page   int
	Limit  int
}

// StatusUpdateParams collects the optional fields of a status update.
type StatusUpdateParams struct {
	ErrorMessage *string
}

type StatusUpdateOption func(*StatusUpdateParams)

func WithErrorMessage(msg string) StatusUpdateOption {
	return func(p *StatusUpdateParams) {
		p.ErrorMessage = &msg
	}
}

// ApplyStatusOptions folds options into a parameter struct. Used by Store
// implementations, including in-memory fakes outside this package.
func ApplyStatusOptions(opts []StatusUpdateOption) StatusUpdateParams {
	var p StatusUpdateParams
	for _, opt := range opts {
		opt(&p)
	}
	return p
}
