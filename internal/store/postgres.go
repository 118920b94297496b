package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mavalente92/debatelens/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Analyses ---

func (s *PostgresStore) CreateAnalysis(ctx context.Context, a *models.Analysis) error {
	speakers, err := json.Marshal(a.Speakers)
	if err != nil {
		return fmt.Errorf("marshal speakers: %w", err)
	}
	metadata, err := json.Marshal(orEmptyMap(a.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (id, title, topic, source_type, source_ref, speakers, status, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.Title, a.Topic, a.SourceType, a.SourceRef, speakers, a.Status, metadata, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create analysis: %w", err)
	}
	return nil
}

const analysisColumns = `id, title, topic, source_type, source_ref, speakers, status, error_message, metadata, created_at, updated_at, completed_at`

func scanAnalysis(row pgx.Row) (*models.Analysis, error) {
	var a models.Analysis
	var speakers, metadata []byte
	err := row.Scan(&a.ID, &a.Title, &a.Topic, &a.SourceType, &a.SourceRef, &speakers,
		&a.Status, &a.ErrorMessage, &metadata, &a.CreatedAt, &a.UpdatedAt, &a.CompletedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(speakers, &a.Speakers); err != nil {
		return nil, fmt.Errorf("unmarshal speakers: %w", err)
	}
	if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id uuid.UUID) (*models.Analysis, error) {
	a, err := scanAnalysis(s.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]*models.Analysis, int, error) {
	where := "TRUE"
	args := []any{}
	if filter.Status != "" {
		where = "status = $1"
		args = append(args, filter.Status)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM analyses WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count analyses: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(`SELECT %s FROM analyses WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		analysisColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var analyses []*models.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	return analyses, total, rows.Err()
}

// validTransitions encodes the job state machine: intake moves pending jobs
// to processing, the pipeline ends in completed or error, and a regenerate
// cycles a terminal job back to processing.
var validTransitions = map[string][]string{
	models.StatusPending:    {models.StatusProcessing},
	models.StatusProcessing: {models.StatusCompleted, models.StatusError},
	models.StatusCompleted:  {models.StatusProcessing},
	models.StatusError:      {models.StatusProcessing},
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string, opts ...StatusUpdateOption) error {
	params := ApplyStatusOptions(opts)

	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM analyses WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get analysis status: %w", err)
	}

	valid := false
	for _, allowed := range validTransitions[currentStatus] {
		if allowed == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, status)
	}

	now := time.Now().UTC()
	query := `UPDATE analyses SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if status == models.StatusCompleted {
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	} else if status == models.StatusProcessing {
		// A regenerate clears the previous failure.
		query += ", error_message = NULL"
	}

	query += " WHERE id = $1"

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update analysis status: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAnalysis(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListAnalysesOlderThan(ctx context.Context, cutoff time.Time) ([]*models.Analysis, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE created_at < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list analyses older than: %w", err)
	}
	defer rows.Close()

	var analyses []*models.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

// --- Transcripts ---

func (s *PostgresStore) SaveTranscript(ctx context.Context, t *models.Transcript) error {
	// One transcript per analysis; a regenerate logically replaces it.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transcripts (analysis_id, text, language, duration, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (analysis_id) DO UPDATE SET
		   text = EXCLUDED.text,
		   language = EXCLUDED.language,
		   duration = EXCLUDED.duration,
		   source = EXCLUDED.source,
		   created_at = EXCLUDED.created_at`,
		t.AnalysisID, t.Text, t.Language, t.Duration, t.Source, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTranscript(ctx context.Context, analysisID uuid.UUID) (*models.Transcript, error) {
	var t models.Transcript
	err := s.pool.QueryRow(ctx,
		`SELECT id, analysis_id, text, language, duration, source, created_at
		 FROM transcripts WHERE analysis_id = $1`, analysisID,
	).Scan(&t.ID, &t.AnalysisID, &t.Text, &t.Language, &t.Duration, &t.Source, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	return &t, nil
}

// --- Speaker analyses ---

func (s *PostgresStore) SaveSpeakerAnalysis(ctx context.Context, sa *models.SpeakerAnalysis) error {
	scores, err := json.Marshal(sa.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	explanations, err := json.Marshal(orEmptyStringMap(sa.Explanations))
	if err != nil {
		return fmt.Errorf("marshal explanations: %w", err)
	}
	highlights, err := json.Marshal(orEmptySlice(sa.Highlights))
	if err != nil {
		return fmt.Errorf("marshal highlights: %w", err)
	}
	improvements, err := json.Marshal(orEmptySlice(sa.Improvements))
	if err != nil {
		return fmt.Errorf("marshal improvements: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO speaker_analyses (analysis_id, speaker, scores, explanations, highlights, improvements, overall_assessment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sa.AnalysisID, sa.Speaker, scores, explanations, highlights, improvements, sa.OverallAssessment, sa.CreatedAt)
	if err != nil {
		return fmt.Errorf("save speaker analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSpeakerAnalyses(ctx context.Context, analysisID uuid.UUID) ([]*models.SpeakerAnalysis, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, analysis_id, speaker, scores, explanations, highlights, improvements, overall_assessment, created_at
		 FROM speaker_analyses WHERE analysis_id = $1 ORDER BY id`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("list speaker analyses: %w", err)
	}
	defer rows.Close()

	var analyses []*models.SpeakerAnalysis
	for rows.Next() {
		var sa models.SpeakerAnalysis
		var scores, explanations, highlights, improvements []byte
		if err := rows.Scan(&sa.ID, &sa.AnalysisID, &sa.Speaker, &scores, &explanations,
			&highlights, &improvements, &sa.OverallAssessment, &sa.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan speaker analysis: %w", err)
		}
		if err := json.Unmarshal(scores, &sa.Scores); err != nil {
			return nil, fmt.Errorf("unmarshal scores: %w", err)
		}
		if err := json.Unmarshal(explanations, &sa.Explanations); err != nil {
			return nil, fmt.Errorf("unmarshal explanations: %w", err)
		}
		if err := json.Unmarshal(highlights, &sa.Highlights); err != nil {
			return nil, fmt.Errorf("unmarshal highlights: %w", err)
		}
		if err := json.Unmarshal(improvements, &sa.Improvements); err != nil {
			return nil, fmt.Errorf("unmarshal improvements: %w", err)
		}
		analyses = append(analyses, &sa)
	}
	return analyses, rows.Err()
}

// --- Comparisons ---

func (s *PostgresStore) SaveComparison(ctx context.Context, c *models.Comparison) error {
	winners, err := json.Marshal(orEmptyStringMap(c.CategoryWinners))
	if err != nil {
		return fmt.Errorf("marshal category winners: %w", err)
	}
	differences, err := json.Marshal(orEmptySlice(c.KeyDifferences))
	if err != nil {
		return fmt.Errorf("marshal key differences: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO comparisons (analysis_id, winner_overall, category_winners, summary, key_differences, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (analysis_id) DO UPDATE SET
		   winner_overall = EXCLUDED.winner_overall,
		   category_winners = EXCLUDED.category_winners,
		   summary = EXCLUDED.summary,
		   key_differences = EXCLUDED.key_differences,
		   created_at = EXCLUDED.created_at`,
		c.AnalysisID, c.WinnerOverall, winners, c.Summary, differences, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("save comparison: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComparison(ctx context.Context, analysisID uuid.UUID) (*models.Comparison, error) {
	var c models.Comparison
	var winners, differences []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, analysis_id, winner_overall, category_winners, summary, key_differences, created_at
		 FROM comparisons WHERE analysis_id = $1`, analysisID,
	).Scan(&c.ID, &c.AnalysisID, &c.WinnerOverall, &winners, &c.Summary, &differences, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comparison: %w", err)
	}
	if err := json.Unmarshal(winners, &c.CategoryWinners); err != nil {
		return nil, fmt.Errorf("unmarshal category winners: %w", err)
	}
	if err := json.Unmarshal(differences, &c.KeyDifferences); err != nil {
		return nil, fmt.Errorf("unmarshal key differences: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) DeleteResults(ctx context.Context, analysisID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM speaker_analyses WHERE analysis_id = $1`, analysisID); err != nil {
		return fmt.Errorf("delete speaker analyses: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM comparisons WHERE analysis_id = $1`, analysisID); err != nil {
		return fmt.Errorf("delete comparison: %w", err)
	}
	return nil
}

// --- Uploaded files ---

func (s *PostgresStore) SaveUploadedFile(ctx context.Context, f *models.UploadedFile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO uploaded_files (id, analysis_id, filename, original_name, path, size, mime_type, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.AnalysisID, f.Filename, f.OriginalName, f.Path, f.Size, f.MimeType, f.UploadedAt)
	if err != nil {
		return fmt.Errorf("save uploaded file: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUploadedFile(ctx context.Context, analysisID uuid.UUID) (*models.UploadedFile, error) {
	var f models.UploadedFile
	err := s.pool.QueryRow(ctx,
		`SELECT id, analysis_id, filename, original_name, path, size, mime_type, uploaded_at
		 FROM uploaded_files WHERE analysis_id = $1 ORDER BY uploaded_at DESC LIMIT 1`, analysisID,
	).Scan(&f.ID, &f.AnalysisID, &f.Filename, &f.OriginalName, &f.Path, &f.Size, &f.MimeType, &f.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get uploaded file: %w", err)
	}
	return &f, nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmptyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
