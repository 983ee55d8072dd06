package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/calwin/live-speech-translator/internal/batchasr"
	"github.com/calwin/live-speech-translator/internal/history"
	"github.com/calwin/live-speech-translator/internal/jobs"
	"github.com/calwin/live-speech-translator/internal/subtitles"
	"github.com/calwin/live-speech-translator/pkg/file"
	"github.com/calwin/live-speech-translator/pkg/log"
)

// autoDetect is the source-language value that defers language selection to
// the recognizer.
const autoDetect = "unknown"

type uploadResponse struct {
	JobID string `json:"job_id"`
}

// handleUpload accepts a video, prepares its audio, registers a recognition
// job upstream, and returns the job id the client then attaches to over the
// status websocket.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	upload, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer upload.Close()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "video/") {
		writeError(w, http.StatusUnsupportedMediaType, "only video uploads are accepted")
		return
	}

	sourceLang := strings.TrimSpace(r.FormValue("source_lang"))
	if sourceLang == "" {
		sourceLang = autoDetect
	}
	targetLang := strings.TrimSpace(r.FormValue("target_lang"))
	if targetLang == "" {
		writeError(w, http.StatusBadRequest, "target_lang is required")
		return
	}

	jobID := jobs.NewID()
	workDir := filepath.Join(s.workRoot, "subjob-"+jobID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		log.Error("Failed to create working directory for job %s: %v", jobID, err)
		writeError(w, http.StatusInternalServerError, "failed to prepare job")
		return
	}

	cleanup := func() { _ = os.RemoveAll(workDir) }

	videoPath := filepath.Join(workDir, file.SafeBase(header.Filename))
	if err := saveUpload(upload, videoPath); err != nil {
		cleanup()
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
			return
		}
		log.Error("Failed to store upload for job %s: %v", jobID, err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	audioPath, err := s.extractAudio(r.Context(), videoPath, workDir)
	if err != nil {
		cleanup()
		log.Error("Audio extraction failed for job %s: %v", jobID, err)
		writeError(w, http.StatusInternalServerError, "failed to extract audio from the video")
		return
	}

	opts := batchasr.JobOptions{Diarization: true, Timestamps: true}
	if sourceLang != autoDetect {
		opts.LanguageCode = sourceLang
	}

	recognitionID, err := s.createRecognitionJob(r, opts, audioPath)
	if err != nil {
		cleanup()
		log.Error("Failed to register recognition job for %s: %v", jobID, err)
		writeError(w, http.StatusBadGateway, "transcription service is unavailable")
		return
	}

	s.registry.Put(&jobs.Job{
		ID:            jobID,
		RecognitionID: recognitionID,
		SourceLang:    sourceLang,
		TargetLang:    targetLang,
		WorkDir:       workDir,
		State:         jobs.StateCreated,
		CreatedAt:     time.Now(),
	})

	log.Info("Job %s registered: %s -> %s (recognition %s)", jobID, sourceLang, targetLang, recognitionID)
	writeJSON(w, http.StatusOK, uploadResponse{JobID: jobID})
}

func (s *Server) createRecognitionJob(r *http.Request, opts batchasr.JobOptions, audioPath string) (string, error) {
	ctx := r.Context()
	recognitionID, err := s.batch.CreateJob(ctx, opts)
	if err != nil {
		return "", err
	}
	if err := s.batch.UploadAudio(ctx, recognitionID, audioPath); err != nil {
		return "", err
	}
	if err := s.batch.Start(ctx, recognitionID); err != nil {
		return "", err
	}
	return recognitionID, nil
}

func saveUpload(src io.Reader, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// handleSubtitleSocket attaches a client to a registered job's status
// channel. The job's working directory lives exactly as long as this
// connection: cleanup runs when the pipeline finishes or the client leaves.
func (s *Server) handleSubtitleSocket(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/ws/subtitles/")
	jobID = strings.TrimSuffix(jobID, "/")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	job, ok := s.registry.Get(jobID)
	if !ok {
		_ = conn.WriteJSON(subtitles.Event{Type: subtitles.EventError, Message: "unknown job id"})
		return
	}

	defer s.registry.Cleanup(jobID)
	s.registry.SetState(jobID, jobs.StatePolling)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// A client-side close abandons the job.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	err = s.pipeline.Run(ctx, job, func(ev subtitles.Event) {
		if writeErr := conn.WriteJSON(ev); writeErr != nil {
			cancel()
		}
	})
	if err != nil {
		log.Warn("Job %s ended with: %v", jobID, err)
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// handleTranslateSocket upgrades the connection and hands it to the live
// session gateway.
func (s *Server) handleTranslateSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	if err := s.sessions.Handle(r.Context(), conn); err != nil {
		log.Warn("Live session ended with: %v", err)
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.history == nil {
		writeJSON(w, http.StatusOK, []history.Record{})
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
