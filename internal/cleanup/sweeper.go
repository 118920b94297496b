// Package cleanup implements the retention sweeper: aged analyses are
// deleted together with their uploaded media, and stale temp artifacts
// left behind by crashed runs are removed.
package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mavalente92/debatelens/internal/store"
	"github.com/mavalente92/debatelens/pkg/models"
)

// Store is the slice of the data layer the sweeper needs.
type Store interface {
	ListAnalysesOlderThan(ctx context.Context, cutoff time.Time) ([]*models.Analysis, error)
	GetUploadedFile(ctx context.Context, analysisID uuid.UUID) (*models.UploadedFile, error)
	DeleteAnalysis(ctx context.Context, id uuid.UUID) error
}

// tempMaxAge is how long orphaned temp artifacts survive. Anything a live
// job still needs is younger than this by a wide margin.
const tempMaxAge = 24 * time.Hour

// Sweeper periodically enforces the retention policy.
type Sweeper struct {
	store    Store
	tempDir  string
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
}

// NewSweeper wires a Sweeper. maxAge is the retention window for analyses.
func NewSweeper(st Store, tempDir string, interval, maxAge time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:    st,
		tempDir:  tempDir,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
	}
}

// Run sweeps once immediately, then on every interval tick until the
// context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one retention pass. Failures on individual items are logged
// and skipped so one bad row cannot stall the whole sweep.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.maxAge)

	aged, err := s.store.ListAnalysesOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("listing aged analyses failed", "error", err)
	}

	removed := 0
	for _, a := range aged {
		if err := s.deleteAnalysis(ctx, a.ID); err != nil {
			s.logger.Warn("aged analysis not removed", "analysis_id", a.ID, "error", err)
			continue
		}
		removed++
	}

	staleFiles := s.sweepTempDir()

	if removed > 0 || staleFiles > 0 {
		s.logger.Info("retention sweep complete",
			"analyses_removed", removed,
			"temp_files_removed", staleFiles,
		)
	}
}

func (s *Sweeper) deleteAnalysis(ctx context.Context, id uuid.UUID) error {
	// Media first: once the row is gone there is no path back to the file.
	if file, err := s.store.GetUploadedFile(ctx, id); err == nil {
		if err := os.Remove(file.Path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("uploaded media not removed", "path", file.Path, "error", err)
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	return s.store.DeleteAnalysis(ctx, id)
}

// sweepTempDir removes temp artifacts older than tempMaxAge and returns
// how many were deleted.
func (s *Sweeper) sweepTempDir() int {
	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("temp dir not readable", "dir", s.tempDir, "error", err)
		}
		return 0
	}

	cutoff := time.Now().Add(-tempMaxAge)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.tempDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			s.logger.Warn("temp artifact not removed", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed
}
