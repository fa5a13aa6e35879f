package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mgpai22/jimaku/internal/config"
	"github.com/mgpai22/jimaku/internal/subtitle"
	"github.com/mgpai22/jimaku/internal/transcribe"
)

// multipart parts beyond this are spooled to disk by the stdlib
const formMemory = 32 << 20

type transcribeResponse struct {
	Success       bool             `json:"success"`
	SRT           string           `json:"srt"`
	SegmentsCount int              `json:"segments_count"`
	Duration      float64          `json:"duration"`
	FullText      string           `json:"full_text"`
	Entries       []subtitle.Entry `json:"entries"`
}

// requestError is a failure caused by the caller's input.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	reqID := RequestIDFrom(r.Context())

	if r.ContentLength > s.cfg.MaxUploadBytes() {
		writeError(w, http.StatusRequestEntityTooLarge, s.tooLargeMessage())
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())
	file, header, err := s.uploadedFile(r)
	if err != nil {
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			writeError(w, reqErr.status, reqErr.msg)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	model := strings.TrimSpace(r.FormValue("model"))
	maxChars := config.ParseMaxChars(
		r.FormValue("max_chars"),
		s.cfg.Subtitle.DefaultMaxChars,
		s.cfg.Subtitle.MaxCharsLimit,
	)

	s.logger.Debugw("transcribe request",
		"request_id", reqID,
		"filename", header.Filename,
		"size", header.Size,
		"model", model,
		"max_chars", maxChars,
	)

	resp, err := s.transcribeUpload(r.Context(), file, header.Filename, model, maxChars)
	if err != nil {
		if errors.Is(err, transcribe.ErrUnknownModel) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Errorw("transcription failed",
			"request_id", reqID,
			"filename", header.Filename,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) uploadedFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, &requestError{
				status: http.StatusRequestEntityTooLarge,
				msg:    s.tooLargeMessage(),
			}
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, fmt.Errorf("invalid form: %w", err)
		}
	}

	file, header, err := r.FormFile("audio")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		// a part sent with an empty filename lands in the value map
		if r.MultipartForm != nil && len(r.MultipartForm.Value["audio"]) > 0 {
			return nil, nil, &requestError{status: http.StatusBadRequest, msg: "No file selected"}
		}
		return nil, nil, &requestError{status: http.StatusBadRequest, msg: "No audio file provided"}
	}
	if err != nil {
		return nil, nil, err
	}
	if header.Filename == "" {
		file.Close()
		return nil, nil, &requestError{status: http.StatusBadRequest, msg: "No file selected"}
	}
	return file, header, nil
}

func (s *Server) tooLargeMessage() string {
	return fmt.Sprintf("File too large (limit %d MB)", s.cfg.Server.MaxUploadMB)
}

// transcribeUpload stages the upload, converts it to WAV, transcribes it and
// builds subtitles. Staged files are always removed.
func (s *Server) transcribeUpload(
	ctx context.Context,
	upload io.Reader,
	filename, model string,
	maxChars int,
) (*transcribeResponse, error) {
	suffix := filepath.Ext(filename)
	if suffix == "" {
		suffix = ".tmp"
	}

	tmp, err := os.CreateTemp(s.tempDir, "jimaku-upload-*"+suffix)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	wavPath := tmpPath + ".wav"
	defer func() {
		for _, p := range []string{tmpPath, wavPath} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				s.logger.Warnw("failed to remove temp file", "path", p, "error", err)
			}
		}
	}()

	_, err = io.Copy(tmp, upload)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	if err := s.convert(ctx, tmpPath, wavPath); err != nil {
		return nil, err
	}

	total, err := s.wavDuration(wavPath)
	if err != nil {
		return nil, err
	}

	transcriber, err := s.models.Get(ctx, model)
	if err != nil {
		return nil, err
	}

	result, err := transcribe.TranscribeFile(ctx, transcriber, wavPath, transcribe.ChunkOptions{
		ChunkDuration: s.cfg.Transcription.ChunkDuration,
		Total:         total,
		Concurrency:   s.cfg.Transcription.Concurrency,
		TempDir:       s.tempDir,
	})
	if err != nil {
		return nil, err
	}

	for _, seg := range result.Segments {
		if seg.End < seg.Start {
			s.logger.Warnw("segment ends before it starts",
				"request_id", RequestIDFrom(ctx),
				"start", seg.Start,
				"end", seg.End,
			)
		}
	}

	built, err := subtitle.Build(result.Segments, maxChars)
	if err != nil {
		return nil, err
	}

	entries := built.Entries
	if entries == nil {
		entries = []subtitle.Entry{}
	}

	return &transcribeResponse{
		Success:       true,
		SRT:           built.SRT,
		SegmentsCount: built.Count(),
		Duration:      math.Round(built.Duration*100) / 100,
		FullText:      strings.TrimSpace(result.Text),
		Entries:       entries,
	}, nil
}
