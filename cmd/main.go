package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/calwin/live-speech-translator/internal/batchasr"
	"github.com/calwin/live-speech-translator/internal/config"
	"github.com/calwin/live-speech-translator/internal/gateway"
	"github.com/calwin/live-speech-translator/internal/history"
	"github.com/calwin/live-speech-translator/internal/jobs"
	"github.com/calwin/live-speech-translator/internal/server"
	"github.com/calwin/live-speech-translator/internal/speech"
	"github.com/calwin/live-speech-translator/internal/subtitles"
	"github.com/calwin/live-speech-translator/internal/translate"
	"github.com/calwin/live-speech-translator/internal/tts"
	"github.com/calwin/live-speech-translator/pkg/log"
)

// Provider model identifiers for each speech capability.
const (
	speechModel    = "saaras:v3"
	translateModel = "sarvam-translate:v1"
	ttsModel       = "bulbul:v3"
)

type sweeper interface {
	Start()
	Stop()
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		stdlog.Fatal("Failed to load configuration: ", err)
	}
	log.InitLogger(log.ParseLevel(cfg.LogLevel))

	var store *history.Store
	if cfg.Pipeline.HistoryDB != "" {
		store, err = history.NewStore(cfg.Pipeline.HistoryDB)
		if err != nil {
			log.Fatal("Failed to open history store: %v", err)
		}
		defer store.Close()
	}

	registry := jobs.NewRegistry()
	swp, err := jobs.NewSweeper(registry, cfg.Pipeline.JobTTL, cfg.Pipeline.SweepCron)
	if err != nil {
		log.Fatal("Invalid sweep schedule %q: %v", cfg.Pipeline.SweepCron, err)
	}

	streaming := speech.NewClient(cfg.Provider.StreamURL, cfg.Provider.APIKey, speechModel)
	batch := batchasr.NewClient(cfg.Provider.BatchURL, cfg.Provider.APIKey, cfg.Provider.Timeout)
	translator := translate.NewClient(cfg.Provider.TranslateURL, cfg.Provider.APIKey, translateModel, cfg.Provider.Timeout)
	synthesizer := tts.NewClient(cfg.Provider.TTSURL, cfg.Provider.APIKey, ttsModel, cfg.Provider.Timeout)

	var recorder subtitles.Recorder
	if store != nil {
		recorder = store
	}
	pipeline := subtitles.NewPipeline(batch, translator, recorder, subtitles.Options{
		PollInterval:         cfg.Pipeline.PollInterval,
		TranslateConcurrency: cfg.Pipeline.TranslateConcurrency,
		Cues: subtitles.CueOptions{
			PauseGap: cfg.Pipeline.CuePauseGap,
			MaxWords: cfg.Pipeline.CueMaxWords,
		},
	})

	sessions := gateway.New(streaming, translator, synthesizer, cfg.Gateway.DefaultSpeaker, cfg.Gateway.SampleRate)

	serverOpts := []server.Option{
		server.WithUI(cfg.HTTP.StaticDir, cfg.HTTP.UIEnabled),
	}
	if store != nil {
		serverOpts = append(serverOpts, server.WithHistory(store))
	}
	srv := server.NewServer(registry, pipeline, sessions, batch,
		cfg.Pipeline.WorkRoot, cfg.Pipeline.MaxUploadBytes, serverOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runWithComponents(ctx, cfg, swp, srv); err != nil {
		log.Fatal("Server exited: %v", err)
	}
}

// runWithComponents runs the sweeper and the HTTP server until ctx is
// cancelled, then shuts the server down gracefully.
func runWithComponents(ctx context.Context, cfg *config.Config, swp sweeper, httpSrv httpServer) error {
	swp.Start()
	defer swp.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
		errCh <- httpSrv.ListenAndServe(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
