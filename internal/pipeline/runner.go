// Package pipeline runs debate analysis jobs end to end: transcript
// acquisition, AI reasoning and result persistence, with the job row in
// Postgres as the source of truth for progress.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mavalente92/debatelens/internal/cache"
	"github.com/mavalente92/debatelens/internal/store"
	"github.com/mavalente92/debatelens/internal/transcribe"
	"github.com/mavalente92/debatelens/pkg/models"
)

// ErrAnalysisInProgress is returned when a regenerate targets a job that
// has not reached a terminal state yet.
var ErrAnalysisInProgress = errors.New("analysis is still processing")

// statusTTL bounds how long the cached status mirror outlives its last
// update.
const statusTTL = 30 * time.Minute

// DebateAnalyzer is the reasoning stage consumed by the runner.
type DebateAnalyzer interface {
	AnalyzeDebate(ctx context.Context, text string, speakers []string, topic string) (models.DebateResult, error)
}

// Transcriber is the media-to-text stage consumed by the runner.
type Transcriber interface {
	TranscribeFile(ctx context.Context, path, language string) (transcribe.Result, error)
	TranscribeURL(ctx context.Context, url, language string) (transcribe.Result, error)
}

// Job carries the per-source input for one run. Exactly one of Text,
// MediaPath or URL is set, matching the analysis source type. Upload, when
// present, is persisted together with the analysis row so the file can be
// found again for regeneration and retention.
type Job struct {
	Analysis  *models.Analysis
	Text      string
	MediaPath string
	URL       string
	Language  string
	Upload    *models.UploadedFile
}

// Task is a handle on one background run. Done is closed when the job has
// reached a terminal status, whether completed or error.
type Task struct {
	AnalysisID uuid.UUID
	done       chan struct{}
}

// Done returns a channel closed when the task finishes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Runner supervises background analysis jobs. Every launched job is
// guaranteed to leave its row in a terminal status, panics included.
type Runner struct {
	store       store.Store
	cache       cache.Cache
	analyzer    DebateAnalyzer
	transcriber Transcriber
	defaultLang string
	logger      *slog.Logger
	wg          sync.WaitGroup
}

// NewRunner wires a Runner. defaultLang is used when a job does not carry
// its own transcription language.
func NewRunner(st store.Store, ca cache.Cache, analyzer DebateAnalyzer, transcriber Transcriber, defaultLang string, logger *slog.Logger) *Runner {
	return &Runner{
		store:       st,
		cache:       ca,
		analyzer:    analyzer,
		transcriber: transcriber,
		defaultLang: defaultLang,
		logger:      logger,
	}
}

// Submit persists the pending job and dispatches it in a background
// goroutine. It returns as soon as the row exists; callers poll for
// progress.
func (r *Runner) Submit(ctx context.Context, job Job) (*Task, error) {
	a := job.Analysis
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Status = models.StatusPending
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	if err := r.store.CreateAnalysis(ctx, a); err != nil {
		return nil, fmt.Errorf("creating analysis: %w", err)
	}
	if job.Upload != nil {
		job.Upload.AnalysisID = a.ID
		job.Upload.UploadedAt = now
		if err := r.store.SaveUploadedFile(ctx, job.Upload); err != nil {
			// Without the file row the job can never transcribe or
			// regenerate; drop the analysis instead of stranding it pending.
			if derr := r.store.DeleteAnalysis(ctx, a.ID); derr != nil {
				r.logger.Error("cannot remove orphaned analysis", "analysis_id", a.ID, "error", derr)
			}
			return nil, fmt.Errorf("recording uploaded file: %w", err)
		}
	}
	_ = r.cache.SetAnalysisStatus(ctx, a.ID, models.StatusPending, statusTTL)

	return r.launch(job), nil
}

// Regenerate re-runs a terminal job. Text jobs reuse the stored transcript;
// media jobs replay transcription from the stored file or source URL.
// Previous results are dropped before the rerun so a failed regenerate
// never shows stale scores next to an error status.
func (r *Runner) Regenerate(ctx context.Context, id uuid.UUID) (*Task, error) {
	a, err := r.store.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Terminal() && a.Status != models.StatusPending {
		return nil, ErrAnalysisInProgress
	}

	job := Job{Analysis: a}

	switch a.SourceType {
	case models.SourceText:
		transcript, err := r.store.GetTranscript(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading transcript for regenerate: %w", err)
		}
		job.Text = transcript.Text
		job.Language = transcript.Language
	case models.SourceUpload:
		file, err := r.store.GetUploadedFile(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading uploaded file for regenerate: %w", err)
		}
		job.MediaPath = file.Path
		job.Language = transcriptLanguage(ctx, r.store, id)
	case models.SourceURL:
		job.URL = a.SourceRef
		job.Language = transcriptLanguage(ctx, r.store, id)
	default:
		return nil, fmt.Errorf("unknown source type %q", a.SourceType)
	}

	if err := r.store.UpdateStatus(ctx, id, models.StatusProcessing); err != nil {
		return nil, err
	}
	// run skips its own transition when the row is already processing.
	a.Status = models.StatusProcessing
	_ = r.cache.SetAnalysisStatus(ctx, id, models.StatusProcessing, statusTTL)

	if err := r.store.DeleteResults(ctx, id); err != nil {
		// The row is already processing with no task behind it; record the
		// failure so it lands terminal instead of blocking regenerates.
		err = fmt.Errorf("clearing previous results: %w", err)
		r.fail(ctx, id, err.Error())
		return nil, err
	}

	return r.launch(job), nil
}

// Wait blocks until every launched task has finished. Called during
// shutdown so in-flight jobs reach a terminal status.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) launch(job Job) *Task {
	if job.Language == "" {
		job.Language = r.defaultLang
	}
	task := &Task{AnalysisID: job.Analysis.ID, done: make(chan struct{})}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(task.done)
		r.run(job)
	}()
	return task
}

// run executes one job start to finish. It recovers from panics and always
// leaves the row in a terminal status.
func (r *Runner) run(job Job) {
	ctx := context.Background()
	a := job.Analysis

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic in analysis run", "analysis_id", a.ID, "error", rec)
			r.fail(ctx, a.ID, fmt.Sprintf("panic: %v", rec))
		}
	}()

	if a.Status != models.StatusProcessing {
		if err := r.store.UpdateStatus(ctx, a.ID, models.StatusProcessing); err != nil {
			r.logger.Error("cannot mark analysis processing", "analysis_id", a.ID, "error", err)
			return
		}
	}
	_ = r.cache.SetAnalysisStatus(ctx, a.ID, models.StatusProcessing, statusTTL)

	text, err := r.obtainTranscript(ctx, job)
	if err != nil {
		r.logger.Error("transcript acquisition failed", "analysis_id", a.ID, "error", err)
		r.fail(ctx, a.ID, fmt.Sprintf("transcription: %v", err))
		return
	}

	// No deadline here: each backend call carries its own HTTP timeout, and
	// a job-wide budget would starve the comparison after one slow speaker.
	result, err := r.analyzer.AnalyzeDebate(ctx, text, a.Speakers, a.Topic)
	if err != nil {
		r.logger.Error("debate analysis failed", "analysis_id", a.ID, "error", err)
		r.fail(ctx, a.ID, fmt.Sprintf("analysis: %v", err))
		return
	}

	if err := r.saveResults(ctx, a.ID, result); err != nil {
		r.logger.Error("result persistence failed", "analysis_id", a.ID, "error", err)
		r.fail(ctx, a.ID, fmt.Sprintf("storing results: %v", err))
		return
	}

	if err := r.store.UpdateStatus(ctx, a.ID, models.StatusCompleted); err != nil {
		r.logger.Error("cannot mark analysis completed", "analysis_id", a.ID, "error", err)
		return
	}
	_ = r.cache.SetAnalysisStatus(ctx, a.ID, models.StatusCompleted, statusTTL)

	r.logger.Info("analysis completed", "analysis_id", a.ID, "speakers", len(a.Speakers))
}

// obtainTranscript resolves the job input into flat transcript text and
// persists the transcript row.
func (r *Runner) obtainTranscript(ctx context.Context, job Job) (string, error) {
	a := job.Analysis

	switch a.SourceType {
	case models.SourceText:
		t := &models.Transcript{
			AnalysisID: a.ID,
			Text:       job.Text,
			Language:   job.Language,
			Source:     models.SourceText,
			CreatedAt:  time.Now().UTC(),
		}
		if err := r.store.SaveTranscript(ctx, t); err != nil {
			return "", fmt.Errorf("saving transcript: %w", err)
		}
		return job.Text, nil

	case models.SourceUpload, models.SourceURL:
		var (
			result transcribe.Result
			err    error
		)
		if a.SourceType == models.SourceUpload {
			result, err = r.transcriber.TranscribeFile(ctx, job.MediaPath, job.Language)
		} else {
			result, err = r.transcriber.TranscribeURL(ctx, job.URL, job.Language)
		}
		if err != nil {
			return "", err
		}

		t := &models.Transcript{
			AnalysisID: a.ID,
			Text:       result.Text,
			Language:   result.Language,
			Duration:   result.Duration,
			Source:     a.SourceType,
			CreatedAt:  time.Now().UTC(),
		}
		if err := r.store.SaveTranscript(ctx, t); err != nil {
			return "", fmt.Errorf("saving transcript: %w", err)
		}
		return result.Text, nil

	default:
		return "", fmt.Errorf("unknown source type %q", a.SourceType)
	}
}

func (r *Runner) saveResults(ctx context.Context, id uuid.UUID, result models.DebateResult) error {
	now := time.Now().UTC()
	for i := range result.Individual {
		sa := result.Individual[i]
		sa.AnalysisID = id
		sa.CreatedAt = now
		if err := r.store.SaveSpeakerAnalysis(ctx, &sa); err != nil {
			return fmt.Errorf("speaker %s: %w", sa.Speaker, err)
		}
	}
	comparison := result.Comparison
	comparison.AnalysisID = id
	comparison.CreatedAt = now
	if err := r.store.SaveComparison(ctx, &comparison); err != nil {
		return fmt.Errorf("comparison: %w", err)
	}
	return nil
}

// fail marks the job errored. Same shape on every failure path so callers
// can rely on error_message being present whenever status is error.
func (r *Runner) fail(ctx context.Context, id uuid.UUID, msg string) {
	if err := r.store.UpdateStatus(ctx, id, models.StatusError, store.WithErrorMessage(msg)); err != nil {
		r.logger.Error("cannot mark analysis errored", "analysis_id", id, "error", err)
	}
	_ = r.cache.SetAnalysisStatus(ctx, id, models.StatusError, statusTTL)
}

func transcriptLanguage(ctx context.Context, st store.Store, id uuid.UUID) string {
	if t, err := st.GetTranscript(ctx, id); err == nil && t.Language != "" {
		return t.Language
	}
	return ""
}
