package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mavalente92/debatelens/internal/api/response"
	"github.com/mavalente92/debatelens/internal/pipeline"
	"github.com/mavalente92/debatelens/pkg/models"
)

// uploadExtensions mirrors what the transcription stage accepts; rejecting
// here saves the client a round trip through a doomed job.
var uploadExtensions = map[string]bool{
	".mp3": true, ".mp4": true, ".wav": true, ".flac": true,
	".m4a": true, ".ogg": true, ".webm": true, ".avi": true, ".mov": true,
}

// NewUploadAnalysisHandler returns the handler for POST
// /api/v1/analyses/upload. The request is multipart form data with a
// "file" part plus speakers (JSON array), topic, title and language
// fields.
func NewUploadAnalysisHandler(p Pipeline, uploadDir string, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
				"Upload exceeds the size limit", nil)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "No file uploaded", nil)
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !uploadExtensions[ext] {
			response.Error(w, http.StatusBadRequest, "UNSUPPORTED_FORMAT",
				fmt.Sprintf("unsupported media format %q", ext), nil)
			return
		}

		var rawSpeakers []string
		if s := r.FormValue("speakers"); s != "" {
			if err := json.Unmarshal([]byte(s), &rawSpeakers); err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"speakers must be a JSON array of names", nil)
				return
			}
		}
		speakers, err := validateSpeakers(rawSpeakers)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		if err := os.MkdirAll(uploadDir, 0o755); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not store the upload", nil)
			return
		}

		filename := fmt.Sprintf("%s_%d%s", uuid.New(), time.Now().UnixMilli(), ext)
		path := filepath.Join(uploadDir, filename)
		dst, err := os.Create(path)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not store the upload", nil)
			return
		}
		size, err := io.Copy(dst, file)
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not store the upload", nil)
			return
		}

		job := pipeline.Job{
			Analysis: &models.Analysis{
				Title:      defaultTitle(r.FormValue("title"), "Media analysis"),
				Topic:      r.FormValue("topic"),
				SourceType: models.SourceUpload,
				SourceRef:  filename,
				Speakers:   speakers,
			},
			MediaPath: path,
			Language:  r.FormValue("language"),
			Upload: &models.UploadedFile{
				ID:           uuid.New(),
				Filename:     filename,
				OriginalName: header.Filename,
				Path:         path,
				Size:         size,
				MimeType:     header.Header.Get("Content-Type"),
			},
		}

		task, err := p.Submit(r.Context(), job)
		if err != nil {
			os.Remove(path)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not start the analysis", nil)
			return
		}

		response.Accepted(w, intakeResponse{
			ID:      task.AnalysisID,
			Status:  models.StatusPending,
			Message: "Upload received. Transcription may take several minutes.",
		})
	}
}
