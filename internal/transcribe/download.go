package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	youtube "github.com/kkdai/youtube/v2"
)

// ErrDownloadFailed means every configured download strategy failed.
var ErrDownloadFailed = errors.New("all download strategies failed")

// Downloader fetches the audio track of a video URL into destDir and
// returns the path of the resulting mp3.
type Downloader interface {
	Name() string
	Download(ctx context.Context, url, destDir string) (string, error)
}

// MediaAcquirer tries an ordered list of download strategies until one
// succeeds. The order is fixed at construction; earlier entries are the
// more capable tools.
type MediaAcquirer struct {
	downloaders []Downloader
	logger      *slog.Logger
}

func newMediaAcquirer(s *Service, logger *slog.Logger) *MediaAcquirer {
	return &MediaAcquirer{
		downloaders: []Downloader{
			&ytDlpDownloader{service: s},
			&youtubeLibDownloader{service: s, client: &youtube.Client{}},
		},
		logger: logger,
	}
}

// Acquire runs the strategies in order and returns the first success. When
// everything fails the per-strategy errors are joined under
// ErrDownloadFailed.
func (a *MediaAcquirer) Acquire(ctx context.Context, url, destDir string) (string, error) {
	var errs []error
	for _, d := range a.downloaders {
		path, err := d.Download(ctx, url, destDir)
		if err == nil {
			a.logger.Info("media download complete", "strategy", d.Name(), "file", filepath.Base(path))
			return path, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		a.logger.Warn("download strategy failed", "strategy", d.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
	}
	return "", fmt.Errorf("%w: %w", ErrDownloadFailed, errors.Join(errs...))
}

// ytDlpDownloader shells out to `python -m yt_dlp`, the most robust
// extractor for the long tail of video hosts.
type ytDlpDownloader struct {
	service *Service
}

func (d *ytDlpDownloader) Name() string { return "yt-dlp" }

func (d *ytDlpDownloader) Download(ctx context.Context, url, destDir string) (string, error) {
	base := uuid.New().String() + "_download"
	template := filepath.Join(destDir, base+".%(ext)s")
	final := filepath.Join(destDir, base+".mp3")

	args := []string{
		"-m", "yt_dlp",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "128K",
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		"--output", template,
		url,
	}
	if _, err := d.service.run(ctx, d.service.python, args...); err != nil {
		return "", err
	}

	if _, err := os.Stat(final); err != nil {
		return "", fmt.Errorf("downloaded audio not found: %w", err)
	}
	return final, nil
}

// youtubeLibDownloader fetches the audio stream directly over HTTP and
// normalizes it with ffmpeg. YouTube-only, used when yt-dlp is missing or
// broken on the host.
type youtubeLibDownloader struct {
	service *Service
	client  *youtube.Client
}

func (d *youtubeLibDownloader) Name() string { return "youtube-lib" }

func (d *youtubeLibDownloader) Download(ctx context.Context, url, destDir string) (string, error) {
	video, err := d.client.GetVideoContext(ctx, url)
	if err != nil {
		return "", fmt.Errorf("resolve video: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return "", errors.New("no audio formats available")
	}
	best := formats[0]
	for _, f := range formats[1:] {
		if strings.HasPrefix(f.MimeType, "audio/") && f.Bitrate > best.Bitrate {
			best = f
		}
	}

	stream, _, err := d.client.GetStreamContext(ctx, video, &best)
	if err != nil {
		return "", fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	rawPath := filepath.Join(destDir, uuid.New().String()+"_raw")
	rawFile, err := os.Create(rawPath)
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}
	if _, err := io.Copy(rawFile, stream); err != nil {
		rawFile.Close()
		os.Remove(rawPath)
		return "", fmt.Errorf("download stream: %w", err)
	}
	if err := rawFile.Close(); err != nil {
		os.Remove(rawPath)
		return "", fmt.Errorf("close download file: %w", err)
	}
	defer os.Remove(rawPath)

	out := filepath.Join(destDir, uuid.New().String()+".mp3")
	args := []string{
		"-i", rawPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", "128k",
		"-ac", "1",
		"-ar", "16000",
		"-y",
		out,
	}
	if _, err := d.service.run(ctx, ffmpegBinary, args...); err != nil {
		return "", fmt.Errorf("audio conversion: %w", err)
	}
	return out, nil
}
