// Package transcribe turns media files and video URLs into plain-text
// transcripts by driving local ffmpeg and Whisper subprocesses.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Sentinel errors surfaced to callers for input problems; everything else
// comes back wrapped with subprocess context.
var (
	ErrEmptyFile         = errors.New("media file is empty")
	ErrFileTooLarge      = errors.New("media file exceeds the size limit")
	ErrUnsupportedFormat = errors.New("unsupported media format")
	ErrNotAFile          = errors.New("path is not a regular file")
)

// maxMediaBytes caps accepted media at 100MB, the practical ceiling for a
// single local Whisper run on the base model.
const maxMediaBytes = 100 << 20

// chunkSeconds is the threshold and segment length for chunked
// transcription of long audio.
const chunkSeconds = 600

// supportedExtensions is the allowlist of media containers Whisper and
// ffmpeg handle reliably here.
var supportedExtensions = map[string]bool{
	".mp3": true, ".mp4": true, ".wav": true, ".flac": true,
	".m4a": true, ".ogg": true, ".webm": true, ".avi": true, ".mov": true,
}

// audioExtensions are passed to Whisper as-is; anything else is converted
// to mp3 first.
var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".flac": true, ".m4a": true, ".ogg": true,
}

// commandRunner executes an external command and returns its combined
// output. Injectable so tests never spawn real processes.
type commandRunner func(ctx context.Context, name string, args ...string) (string, error)

func defaultCommandRunner(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// Result is the outcome of one transcription run.
type Result struct {
	Text     string
	Language string
	Duration *float64
	Segments int
	Model    string
	Source   string
}

// Service drives the media-to-text pipeline. Safe for concurrent use.
type Service struct {
	python   string
	model    string
	tempDir  string
	logger   *slog.Logger
	run      commandRunner
	acquirer *MediaAcquirer
}

// NewService creates a transcription Service. tempDir is created if missing.
func NewService(python, model, tempDir string, logger *slog.Logger) *Service {
	s := &Service{
		python:  python,
		model:   model,
		tempDir: tempDir,
		logger:  logger,
		run:     defaultCommandRunner,
	}
	s.acquirer = newMediaAcquirer(s, logger)
	return s
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(run commandRunner) {
	s.run = run
	s.acquirer = newMediaAcquirer(s, s.logger)
}

// TranscribeFile validates and transcribes a local media file. Long audio is
// transcribed in fixed-length chunks whose texts are joined with single
// spaces.
func (s *Service) TranscribeFile(ctx context.Context, path, language string) (Result, error) {
	if err := validateMedia(path); err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("ensure temp dir: %w", err)
	}

	audioPath, converted, err := s.toAudio(ctx, path)
	if err != nil {
		return Result{}, err
	}
	if converted {
		defer os.Remove(audioPath)
	}

	duration := s.probeDuration(ctx, audioPath)

	chunks := []string{audioPath}
	if duration != nil && *duration > chunkSeconds {
		chunks, err = s.splitAudio(ctx, audioPath, *duration)
		if err != nil {
			return Result{}, err
		}
		defer func() {
			for _, c := range chunks {
				if c != audioPath {
					os.Remove(c)
				}
			}
		}()
	}

	s.logger.Info("starting transcription",
		"file", filepath.Base(path),
		"model", s.model,
		"language", language,
		"chunks", len(chunks),
	)

	texts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		text, err := s.runWhisper(ctx, chunk, language)
		if err != nil {
			return Result{}, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		texts = append(texts, text)
	}

	return Result{
		Text:     strings.Join(texts, " "),
		Language: language,
		Duration: duration,
		Segments: len(chunks),
		Model:    s.model,
		Source:   "file",
	}, nil
}

// TranscribeURL downloads the audio track of a video URL and transcribes it.
// The downloaded artifact is removed afterwards.
func (s *Service) TranscribeURL(ctx context.Context, url, language string) (Result, error) {
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("ensure temp dir: %w", err)
	}

	audioPath, err := s.acquirer.Acquire(ctx, url, s.tempDir)
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(audioPath)

	result, err := s.TranscribeFile(ctx, audioPath, language)
	if err != nil {
		return Result{}, err
	}
	result.Source = "url"
	return result, nil
}

// validateMedia rejects paths that cannot be transcribed before any
// subprocess is spawned.
func validateMedia(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat media: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotAFile, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	if info.Size() > maxMediaBytes {
		return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return nil
}
