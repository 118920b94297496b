package transcribe

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	ffmpegBinary  = "ffmpeg"
	ffprobeBinary = "ffprobe"
)

// toAudio returns a path Whisper can consume. Audio containers pass through
// untouched; video containers are converted to mono 16kHz mp3, the cheapest
// format Whisper accepts without quality loss at the base model.
func (s *Service) toAudio(ctx context.Context, path string) (string, bool, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if audioExtensions[ext] {
		return path, false, nil
	}

	out := filepath.Join(s.tempDir, uuid.New().String()+".mp3")
	args := []string{
		"-i", path,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", "128k",
		"-ac", "1",
		"-ar", "16000",
		"-y",
		out,
	}
	if _, err := s.run(ctx, ffmpegBinary, args...); err != nil {
		return "", false, fmt.Errorf("audio conversion: %w", err)
	}
	return out, true, nil
}

// probeDuration asks ffprobe for the media duration in seconds. A probe
// failure is not fatal: duration only gates chunking and enriches metadata.
func (s *Service) probeDuration(ctx context.Context, path string) *float64 {
	output, err := s.run(ctx, ffprobeBinary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		s.logger.Warn("duration probe failed", "file", filepath.Base(path), "error", err)
		return nil
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(output), 64)
	if err != nil {
		s.logger.Warn("unparseable duration", "output", strings.TrimSpace(output))
		return nil
	}
	return &d
}

// splitAudio cuts the file into consecutive chunkSeconds-long mp3 segments.
// Each chunk is re-encoded: the source may be wav/flac/m4a/ogg that passed
// through toAudio untouched, and those codecs cannot be stream-copied into
// an mp3 container.
func (s *Service) splitAudio(ctx context.Context, path string, duration float64) ([]string, error) {
	n := int(math.Ceil(duration / chunkSeconds))
	chunks := make([]string, 0, n)

	for i := 0; i < n; i++ {
		out := filepath.Join(s.tempDir, fmt.Sprintf("%s_chunk_%d.mp3", uuid.New().String(), i))
		args := []string{
			"-ss", strconv.Itoa(i * chunkSeconds),
			"-t", strconv.Itoa(chunkSeconds),
			"-i", path,
			"-acodec", "libmp3lame",
			"-b:a", "128k",
			"-ac", "1",
			"-ar", "16000",
			"-y",
			out,
		}
		if _, err := s.run(ctx, ffmpegBinary, args...); err != nil {
			return nil, fmt.Errorf("split chunk %d: %w", i, err)
		}
		chunks = append(chunks, out)
	}
	return chunks, nil
}
