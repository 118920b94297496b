package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mavalente92/debatelens/internal/store"
	"github.com/mavalente92/debatelens/internal/transcribe"
	"github.com/mavalente92/debatelens/pkg/models"
)

var testLogger = slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// memStore is an in-memory store.Store for runner tests.
type memStore struct {
	mu          sync.Mutex
	analyses    map[uuid.UUID]*models.Analysis
	transcripts map[uuid.UUID]*models.Transcript
	speakers    map[uuid.UUID][]*models.SpeakerAnalysis
	comparisons map[uuid.UUID]*models.Comparison
	uploads     map[uuid.UUID]*models.UploadedFile
}

func newMemStore() *memStore {
	return &memStore{
		analyses:    make(map[uuid.UUID]*models.Analysis),
		transcripts: make(map[uuid.UUID]*models.Transcript),
		speakers:    make(map[uuid.UUID][]*models.SpeakerAnalysis),
		comparisons: make(map[uuid.UUID]*models.Comparison),
		uploads:     make(map[uuid.UUID]*models.UploadedFile),
	}
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) CreateAnalysis(_ context.Context, a *models.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *a
	m.analyses[a.ID] = &copied
	return nil
}

func (m *memStore) GetAnalysis(_ context.Context, id uuid.UUID) (*models.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.analyses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *memStore) ListAnalyses(context.Context, store.AnalysisFilter) ([]*models.Analysis, int, error) {
	return nil, 0, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id uuid.UUID, status string, opts ...store.StatusUpdateOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.analyses[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Status = status
	a.ErrorMessage = nil
	params := store.ApplyStatusOptions(opts)
	if params.ErrorMessage != nil {
		a.ErrorMessage = params.ErrorMessage
	}
	return nil
}

func (m *memStore) DeleteAnalysis(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.analyses, id)
	return nil
}

func (m *memStore) ListAnalysesOlderThan(context.Context, time.Time) ([]*models.Analysis, error) {
	return nil, nil
}

func (m *memStore) SaveTranscript(_ context.Context, t *models.Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *t
	m.transcripts[t.AnalysisID] = &copied
	return nil
}

func (m *memStore) GetTranscript(_ context.Context, id uuid.UUID) (*models.Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transcripts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *memStore) SaveSpeakerAnalysis(_ context.Context, sa *models.SpeakerAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *sa
	m.speakers[sa.AnalysisID] = append(m.speakers[sa.AnalysisID], &copied)
	return nil
}

func (m *memStore) ListSpeakerAnalyses(_ context.Context, id uuid.UUID) ([]*models.SpeakerAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speakers[id], nil
}

func (m *memStore) SaveComparison(_ context.Context, c *models.Comparison) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *c
	m.comparisons[c.AnalysisID] = &copied
	return nil
}

func (m *memStore) GetComparison(_ context.Context, id uuid.UUID) (*models.Comparison, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comparisons[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *memStore) DeleteResults(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.speakers, id)
	delete(m.comparisons, id)
	return nil
}

func (m *memStore) SaveUploadedFile(_ context.Context, f *models.UploadedFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *f
	m.uploads[f.AnalysisID] = &copied
	return nil
}

func (m *memStore) GetUploadedFile(_ context.Context, id uuid.UUID) (*models.UploadedFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.uploads[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *f
	return &copied, nil
}

// memCache records status updates without a real Redis.
type memCache struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]string
}

func newMemCache() *memCache {
	return &memCache{statuses: make(map[uuid.UUID]string)}
}

func (c *memCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (c *memCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (c *memCache) Delete(context.Context, string) error                     { return nil }
func (c *memCache) Ping(context.Context) error                               { return nil }

func (c *memCache) SetAnalysisStatus(_ context.Context, id uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[id] = status
	return nil
}

func (c *memCache) GetAnalysisStatus(_ context.Context, id uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[id]
	return s, ok, nil
}

func (c *memCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}

type fakeAnalyzer struct {
	err    error
	panics bool
}

func (f *fakeAnalyzer) AnalyzeDebate(_ context.Context, _ string, speakers []string, _ string) (models.DebateResult, error) {
	if f.panics {
		panic("analyzer exploded")
	}
	if f.err != nil {
		return models.DebateResult{}, f.err
	}
	individual := make([]models.SpeakerAnalysis, len(speakers))
	for i, s := range speakers {
		individual[i] = models.SpeakerAnalysis{
			Speaker: s,
			Scores:  map[string]float64{models.CategoryFocus: 7},
		}
	}
	return models.DebateResult{
		Individual: individual,
		Comparison: models.Comparison{WinnerOverall: speakers[0]},
	}, nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) TranscribeFile(_ context.Context, _, language string) (transcribe.Result, error) {
	if f.err != nil {
		return transcribe.Result{}, f.err
	}
	return transcribe.Result{Text: f.text, Language: language, Source: "file"}, nil
}

func (f *fakeTranscriber) TranscribeURL(_ context.Context, _, language string) (transcribe.Result, error) {
	if f.err != nil {
		return transcribe.Result{}, f.err
	}
	return transcribe.Result{Text: f.text, Language: language, Source: "url"}, nil
}

func newTestRunner(st store.Store, ca *memCache, analyzer DebateAnalyzer, tr Transcriber) *Runner {
	return NewRunner(st, ca, analyzer, tr, "it", testLogger)
}

func textJob(speakers ...string) Job {
	return Job{
		Analysis: &models.Analysis{
			Title:      "Debate",
			Topic:      "energy",
			SourceType: models.SourceText,
			Speakers:   speakers,
		},
		Text:     "Anna: first argument about grids. Bruno: second argument about costs.",
		Language: "it",
	}
}

func TestSubmit_TextHappyPath(t *testing.T) {
	st := newMemStore()
	ca := newMemCache()
	r := newTestRunner(st, ca, &fakeAnalyzer{}, &fakeTranscriber{})

	task, err := r.Submit(context.Background(), textJob("Anna", "Bruno"))
	require.NoError(t, err)
	<-task.Done()

	a, err := st.GetAnalysis(context.Background(), task.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, a.Status)
	assert.Nil(t, a.ErrorMessage)

	transcript, err := st.GetTranscript(context.Background(), task.AnalysisID)
	require.NoError(t, err)
	assert.Contains(t, transcript.Text, "first argument")
	assert.Equal(t, models.SourceText, transcript.Source)

	sas, err := st.ListSpeakerAnalyses(context.Background(), task.AnalysisID)
	require.NoError(t, err)
	assert.Len(t, sas, 2)

	comparison, err := st.GetComparison(context.Background(), task.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, "Anna", comparison.WinnerOverall)

	cached, ok, _ := ca.GetAnalysisStatus(context.Background(), task.AnalysisID)
	assert.True(t, ok)
	assert.Equal(t, models.StatusCompleted, cached)
}

func TestSubmit_URLTranscriptionFailure(t *testing.T) {
	st := newMemStore()
	ca := newMemCache()
	r := newTestRunner(st, ca, &fakeAnalyzer{}, &fakeTranscriber{err: errors.New("download blocked")})

	job := Job{
		Analysis: &models.Analysis{
			SourceType: models.SourceURL,
			SourceRef:  "https://www.youtube.com/watch?v=abc",
			Speakers:   []string{"Anna"},
		},
		URL: "https://www.youtube.com/watch?v=abc",
	}

	task, err := r.Submit(context.Background(), job)
	require.NoError(t, err)
	<-task.Done()

	a, err := st.GetAnalysis(context.Background(), task.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, a.Status)
	require.NotNil(t, a.ErrorMessage)
	assert.Contains(t, *a.ErrorMessage, "download blocked")
}

func TestSubmit_AnalyzerFailure(t *testing.T) {
	st := newMemStore()
	ca := newMemCache()
	r := newTestRunner(st, ca, &fakeAnalyzer{err: errors.New("provider down")}, &fakeTranscriber{})

	task, err := r.Submit(context.Background(), textJob("Anna"))
	require.NoError(t, err)
	<-task.Done()

	a, _ := st.GetAnalysis(context.Background(), task.AnalysisID)
	assert.Equal(t, models.StatusError, a.Status)
	require.NotNil(t, a.ErrorMessage)
	assert.Contains(t, *a.ErrorMessage, "provider down")
}

func TestSubmit_PanicReachesTerminalStatus(t *testing.T) {
	st := newMemStore()
	ca := newMemCache()
	r := newTestRunner(st, ca, &fakeAnalyzer{panics: true}, &fakeTranscriber{})

	task, err := r.Submit(context.Background(), textJob("Anna"))
	require.NoError(t, err)
	<-task.Done()

	a, _ := st.GetAnalysis(context.Background(), task.AnalysisID)
	assert.Equal(t, models.StatusError, a.Status)
	require.NotNil(t, a.ErrorMessage)
	assert.Contains(t, *a.ErrorMessage, "panic")
}

func TestRegenerate_TextReusesTranscript(t *testing.T) {
	st := newMemStore()
	ca := newMemCache()
	transcriber := &fakeTranscriber{err: errors.New("must not be called for text regenerate")}
	r := newTestRunner(st, ca, &fakeAnalyzer{}, transcriber)

	task, err := r.Submit(context.Background(), textJob("Anna", "Bruno"))
	require.NoError(t, err)
	<-task.Done()

	task2, err := r.Regenerate(context.Background(), task.AnalysisID)
	require.NoError(t, err)
	<-task2.Done()

	a, _ := st.GetAnalysis(context.Background(), task.AnalysisID)
	assert.Equal(t, models.StatusCompleted, a.Status)

	sas, _ := st.ListSpeakerAnalyses(context.Background(), task.AnalysisID)
	assert.Len(t, sas, 2, "regenerate must replace, not append, speaker analyses")
}

func TestRegenerate_ConflictWhileProcessing(t *testing.T) {
	st := newMemStore()
	ca := newMemCache()
	r := newTestRunner(st, ca, &fakeAnalyzer{}, &fakeTranscriber{})

	a := &models.Analysis{
		ID:         uuid.New(),
		SourceType: models.SourceText,
		Speakers:   []string{"Anna"},
		Status:     models.StatusProcessing,
	}
	require.NoError(t, st.CreateAnalysis(context.Background(), a))

	_, err := r.Regenerate(context.Background(), a.ID)
	assert.ErrorIs(t, err, ErrAnalysisInProgress)
}

func TestRegenerate_URLReplaysDownload(t *testing.T) {
	st := newMemStore()
	ca := newMemCache()
	transcriber := &fakeTranscriber{text: "Anna says a thing. Bruno says another thing."}
	r := newTestRunner(st, ca, &fakeAnalyzer{}, transcriber)

	job := Job{
		Analysis: &models.Analysis{
			SourceType: models.SourceURL,
			SourceRef:  "https://www.youtube.com/watch?v=abc",
			Speakers:   []string{"Anna", "Bruno"},
		},
		URL:      "https://www.youtube.com/watch?v=abc",
		Language: "en",
	}
	task, err := r.Submit(context.Background(), job)
	require.NoError(t, err)
	<-task.Done()

	task2, err := r.Regenerate(context.Background(), task.AnalysisID)
	require.NoError(t, err)
	<-task2.Done()

	a, _ := st.GetAnalysis(context.Background(), task.AnalysisID)
	assert.Equal(t, models.StatusCompleted, a.Status)

	transcript, _ := st.GetTranscript(context.Background(), task.AnalysisID)
	assert.Equal(t, "en", transcript.Language, "regenerate should keep the original language")
}

func TestWait_BlocksUntilTasksFinish(t *testing.T) {
	st := newMemStore()
	ca := newMemCache()
	r := newTestRunner(st, ca, &fakeAnalyzer{}, &fakeTranscriber{})

	task, err := r.Submit(context.Background(), textJob("Anna"))
	require.NoError(t, err)

	r.Wait()

	select {
	case <-task.Done():
	default:
		t.Fatal("Wait returned before the task finished")
	}
}

// failingStore lets individual mutations be forced to fail.
type failingStore struct {
	*memStore
	saveUploadErr    error
	deleteResultsErr error
}

func (f *failingStore) SaveUploadedFile(ctx context.Context, u *models.UploadedFile) error {
	if f.saveUploadErr != nil {
		return f.saveUploadErr
	}
	return f.memStore.SaveUploadedFile(ctx, u)
}

func (f *failingStore) DeleteResults(ctx context.Context, id uuid.UUID) error {
	if f.deleteResultsErr != nil {
		return f.deleteResultsErr
	}
	return f.memStore.DeleteResults(ctx, id)
}

func TestSubmit_StampsTimestamps(t *testing.T) {
	st := newMemStore()
	ca := newMemCache()
	r := newTestRunner(st, ca, &fakeAnalyzer{}, &fakeTranscriber{text: "Anna talks. Bruno talks."})

	job := Job{
		Analysis: &models.Analysis{
			SourceType: models.SourceUpload,
			Speakers:   []string{"Anna", "Bruno"},
		},
		MediaPath: "/uploads/debate.mp3",
		Upload: &models.UploadedFile{
			ID:           uuid.New(),
			Filename:     "debate.mp3",
			OriginalName: "debate.mp3",
			Path:         "/uploads/debate.mp3",
		},
	}
	task, err := r.Submit(context.Background(), job)
	require.NoError(t, err)
	<-task.Done()

	now := time.Now().UTC()
	a, err := st.GetAnalysis(context.Background(), task.AnalysisID)
	require.NoError(t, err)
	assert.WithinDuration(t, now, a.CreatedAt, time.Minute, "created_at must be stamped at submit")
	assert.WithinDuration(t, now, a.UpdatedAt, time.Minute)

	transcript, err := st.GetTranscript(context.Background(), task.AnalysisID)
	require.NoError(t, err)
	assert.False(t, transcript.CreatedAt.IsZero())

	sas, err := st.ListSpeakerAnalyses(context.Background(), task.AnalysisID)
	require.NoError(t, err)
	for _, sa := range sas {
		assert.False(t, sa.CreatedAt.IsZero())
	}

	comparison, err := st.GetComparison(context.Background(), task.AnalysisID)
	require.NoError(t, err)
	assert.False(t, comparison.CreatedAt.IsZero())

	upload, err := st.GetUploadedFile(context.Background(), task.AnalysisID)
	require.NoError(t, err)
	assert.False(t, upload.UploadedAt.IsZero())
}

func TestSubmit_FreshAnalysisOutlivesRetentionCutoff(t *testing.T) {
	st := newMemStore()
	ca := newMemCache()
	r := newTestRunner(st, ca, &fakeAnalyzer{}, &fakeTranscriber{})

	task, err := r.Submit(context.Background(), textJob("Anna"))
	require.NoError(t, err)
	<-task.Done()

	a, err := st.GetAnalysis(context.Background(), task.AnalysisID)
	require.NoError(t, err)
	cutoff := time.Now().UTC().Add(-48 * time.Hour)
	assert.True(t, a.CreatedAt.After(cutoff),
		"a just-submitted analysis must not fall behind the retention cutoff")
}

func TestSubmit_UploadRecordFailureRemovesAnalysis(t *testing.T) {
	st := &failingStore{memStore: newMemStore(), saveUploadErr: errors.New("disk full")}
	ca := newMemCache()
	r := newTestRunner(st, ca, &fakeAnalyzer{}, &fakeTranscriber{})

	job := Job{
		Analysis: &models.Analysis{
			SourceType: models.SourceUpload,
			Speakers:   []string{"Anna"},
		},
		MediaPath: "/uploads/debate.mp3",
		Upload:    &models.UploadedFile{ID: uuid.New(), Path: "/uploads/debate.mp3"},
	}
	task, err := r.Submit(context.Background(), job)
	require.Error(t, err)
	assert.Nil(t, task)

	_, err = st.GetAnalysis(context.Background(), job.Analysis.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "orphaned pending row must be removed")
}

func TestRegenerate_DeleteResultsFailureLandsTerminal(t *testing.T) {
	st := &failingStore{memStore: newMemStore()}
	ca := newMemCache()
	r := newTestRunner(st, ca, &fakeAnalyzer{}, &fakeTranscriber{})

	task, err := r.Submit(context.Background(), textJob("Anna", "Bruno"))
	require.NoError(t, err)
	<-task.Done()

	st.deleteResultsErr = errors.New("db connection reset")
	_, err = r.Regenerate(context.Background(), task.AnalysisID)
	require.Error(t, err)

	a, _ := st.GetAnalysis(context.Background(), task.AnalysisID)
	assert.Equal(t, models.StatusError, a.Status,
		"a regenerate that dies before launch must not stay processing")
	require.NotNil(t, a.ErrorMessage)
	assert.Contains(t, *a.ErrorMessage, "clearing previous results")

	st.deleteResultsErr = nil
	task2, err := r.Regenerate(context.Background(), task.AnalysisID)
	require.NoError(t, err, "the job must stay regenerable after the failure")
	<-task2.Done()

	a, _ = st.GetAnalysis(context.Background(), task.AnalysisID)
	assert.Equal(t, models.StatusCompleted, a.Status)
}

// deadlineAnalyzer records whether the reasoning stage was handed a deadline.
type deadlineAnalyzer struct {
	fakeAnalyzer
	hadDeadline bool
}

func (d *deadlineAnalyzer) AnalyzeDebate(ctx context.Context, text string, speakers []string, topic string) (models.DebateResult, error) {
	_, d.hadDeadline = ctx.Deadline()
	return d.fakeAnalyzer.AnalyzeDebate(ctx, text, speakers, topic)
}

func TestRun_NoJobWideDeadlineOnReasoning(t *testing.T) {
	st := newMemStore()
	ca := newMemCache()
	analyzer := &deadlineAnalyzer{}
	r := newTestRunner(st, ca, analyzer, &fakeTranscriber{})

	task, err := r.Submit(context.Background(), textJob("Anna"))
	require.NoError(t, err)
	<-task.Done()

	assert.False(t, analyzer.hadDeadline,
		"per-call timeouts belong to the backend client, not the whole reasoning stage")
}
