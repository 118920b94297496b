package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNoTranscript means Whisper exited cleanly but produced no output file.
var ErrNoTranscript = errors.New("whisper produced no transcript")

// runWhisper transcribes one audio file via `python -m whisper`. Whisper
// names its output after the input file, so each run gets a private output
// directory that is removed when the text has been read.
func (s *Service) runWhisper(ctx context.Context, audioPath, language string) (string, error) {
	outputDir := filepath.Join(s.tempDir, "whisper_"+uuid.New().String())
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("whisper output dir: %w", err)
	}
	defer os.RemoveAll(outputDir)

	absAudio, err := filepath.Abs(audioPath)
	if err != nil {
		return "", fmt.Errorf("resolve audio path: %w", err)
	}
	absOutput, err := filepath.Abs(outputDir)
	if err != nil {
		return "", fmt.Errorf("resolve output dir: %w", err)
	}

	args := []string{
		"-m", "whisper",
		absAudio,
		"--model", s.model,
		"--language", language,
		"--output_dir", absOutput,
		"--output_format", "txt",
		"--verbose", "False",
		"--task", "transcribe",
	}

	if _, err := s.run(ctx, s.python, args...); err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}

	text, err := readTranscript(outputDir)
	if err != nil {
		return "", err
	}
	return text, nil
}

// readTranscript returns the trimmed contents of the first .txt file in dir.
func readTranscript(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read whisper output dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return "", fmt.Errorf("read transcript: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", ErrNoTranscript
}
