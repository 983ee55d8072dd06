// Package server exposes the HTTP surface: the upload endpoint and status
// websocket of the batch subtitle pipeline, the live translation websocket,
// and the read-only job and history listings.
package server

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/calwin/live-speech-translator/internal/batchasr"
	"github.com/calwin/live-speech-translator/internal/gateway"
	"github.com/calwin/live-speech-translator/internal/history"
	"github.com/calwin/live-speech-translator/internal/jobs"
	"github.com/calwin/live-speech-translator/internal/media"
	"github.com/calwin/live-speech-translator/internal/subtitles"
)

// pipelineRunner drives one registered batch job to a terminal outcome.
type pipelineRunner interface {
	Run(ctx context.Context, job *jobs.Job, emit func(subtitles.Event)) error
}

// sessionHandler runs one live translation session over a websocket.
type sessionHandler interface {
	Handle(ctx context.Context, conn gateway.Conn) error
}

type historyReader interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

// audioExtractor produces a recognizer-ready audio file from an uploaded
// video.
type audioExtractor func(ctx context.Context, videoPath, workDir string) (string, error)

type Server struct {
	registry *jobs.Registry
	pipeline pipelineRunner
	sessions sessionHandler
	batch    batchasr.Recognizer
	history  historyReader

	workRoot       string
	maxUploadBytes int64
	extractAudio   audioExtractor

	uiEnabled   bool
	uiStaticDir string

	upgrader websocket.Upgrader
	mux      *http.ServeMux
	server   *http.Server
}

type Option func(*Server)

func WithUI(staticDir string, enabled bool) Option {
	return func(s *Server) {
		s.uiStaticDir = staticDir
		s.uiEnabled = enabled
	}
}

func WithHistory(reader historyReader) Option {
	return func(s *Server) {
		s.history = reader
	}
}

// WithAudioExtractor replaces the ffmpeg-backed extraction step.
func WithAudioExtractor(extract audioExtractor) Option {
	return func(s *Server) {
		s.extractAudio = extract
	}
}

func NewServer(registry *jobs.Registry, pipeline pipelineRunner, sessions sessionHandler, batch batchasr.Recognizer, workRoot string, maxUploadBytes int64, opts ...Option) *Server {
	s := &Server{
		registry:       registry,
		pipeline:       pipeline,
		sessions:       sessions,
		batch:          batch,
		workRoot:       workRoot,
		maxUploadBytes: maxUploadBytes,
		extractAudio:   ffmpegExtract,
		uiEnabled:      false,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func ffmpegExtract(ctx context.Context, videoPath, workDir string) (string, error) {
	return media.NewFfmpeg(videoPath).ExtractAudio(ctx, workDir, "audio.wav")
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/subtitles/upload", s.handleUpload)
	s.mux.HandleFunc("/ws/subtitles/", s.handleSubtitleSocket)
	s.mux.HandleFunc("/ws/translate", s.handleTranslateSocket)
	s.mux.HandleFunc("/api/jobs", s.handleListJobs)
	s.mux.HandleFunc("/api/history", s.handleHistory)
	s.mux.HandleFunc("/", s.handleStatic)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if !s.uiEnabled || s.uiStaticDir == "" {
		http.NotFound(w, r)
		return
	}

	rel := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	indexPath := filepath.Join(s.uiStaticDir, "index.html")

	if rel == "" || !strings.Contains(filepath.Base(rel), ".") {
		http.ServeFile(w, r, indexPath)
		return
	}

	filePath := filepath.Join(s.uiStaticDir, rel)
	if _, err := os.Stat(filePath); err != nil {
		// SPA fallback: non-existing static file path returns index
		http.ServeFile(w, r, indexPath)
		return
	}
	http.ServeFile(w, r, filePath)
}
