package subtitles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"github.com/calwin/live-speech-translator/internal/batchasr"
	"github.com/calwin/live-speech-translator/internal/history"
	"github.com/calwin/live-speech-translator/internal/jobs"
	"github.com/calwin/live-speech-translator/internal/translate"
	"github.com/calwin/live-speech-translator/pkg/log"
)

// autoDetectLanguage is the source-language placeholder meaning "let the
// recognizer identify the spoken language".
const autoDetectLanguage = "unknown"

// ErrNoSpeech marks a job whose audio produced no usable transcript. It is a
// terminal outcome, not a retryable failure.
var ErrNoSpeech = errors.New("no speech detected")

// Event is one message on the status-streaming channel.
type Event struct {
	Type    string `json:"type"`
	Percent int    `json:"percent,omitempty"`
	Message string `json:"message,omitempty"`
	VTT     string `json:"vtt,omitempty"`
}

const (
	EventProgress = "progress"
	EventError    = "error"
	EventComplete = "complete"
)

// pollProgressCap bounds the progress reported while waiting on the
// recognizer, so result processing still has visible headroom.
const pollProgressCap = 80

// Recorder persists terminal job outcomes. Recording failures never fail the
// pipeline.
type Recorder interface {
	Record(ctx context.Context, rec history.Record) error
}

// Options tunes the batch pipeline.
type Options struct {
	PollInterval         time.Duration
	TranslateConcurrency int64
	Cues                 CueOptions
}

func DefaultOptions() Options {
	return Options{
		PollInterval:         3 * time.Second,
		TranslateConcurrency: 5,
		Cues:                 DefaultCueOptions(),
	}
}

// Pipeline turns a registered batch job into a rendered subtitle document,
// streaming progress along the way.
type Pipeline struct {
	recognizer batchasr.Recognizer
	translator translate.Translator
	recorder   Recorder
	opts       Options
}

func NewPipeline(recognizer batchasr.Recognizer, translator translate.Translator, recorder Recorder, opts Options) *Pipeline {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOptions().PollInterval
	}
	if opts.TranslateConcurrency <= 0 {
		opts.TranslateConcurrency = DefaultOptions().TranslateConcurrency
	}
	return &Pipeline{
		recognizer: recognizer,
		translator: translator,
		recorder:   recorder,
		opts:       opts,
	}
}

// Run drives the job to a terminal outcome, calling emit for every
// client-facing event. It does not perform cleanup; the owner of the status
// channel does that in all cases.
func (p *Pipeline) Run(ctx context.Context, job *jobs.Job, emit func(Event)) error {
	err := p.run(ctx, job, emit)

	outcome := "completed"
	detail := ""
	switch {
	case err == nil:
	case errors.Is(err, ErrNoSpeech):
		outcome = "no_speech"
		emit(Event{Type: EventError, Message: "No speech detected"})
	case ctx.Err() != nil:
		outcome = "abandoned"
		detail = ctx.Err().Error()
	default:
		outcome = "failed"
		detail = err.Error()
		emit(Event{Type: EventError, Message: err.Error()})
	}

	p.record(job, outcome, detail)
	return err
}

func (p *Pipeline) run(ctx context.Context, job *jobs.Job, emit func(Event)) error {
	percent := 20
	progress := func(pct int, msg string) {
		// Progress only moves forward.
		if pct > percent {
			percent = pct
		}
		emit(Event{Type: EventProgress, Percent: percent, Message: msg})
	}

	progress(20, "Transcribing audio...")

	status, err := p.waitForRecognition(ctx, job, progress)
	if err != nil {
		return err
	}

	progress(85, "Processing transcript...")

	result, err := p.recognizer.DownloadResult(ctx, job.RecognitionID, job.WorkDir)
	if err != nil {
		return fmt.Errorf("failed to fetch transcription result: %w", err)
	}

	sourceLang := job.SourceLang
	if sourceLang == autoDetectLanguage || sourceLang == "" {
		sourceLang = resolveDetectedLanguage(status, result)
		log.Info("Job %s: detected source language %q", job.ID, sourceLang)
	}

	cues := BuildCues(result, p.opts.Cues)
	if len(cues) == 0 {
		return ErrNoSpeech
	}

	progress(90, "Translating subtitles...")
	cues = TranslateCues(ctx, p.translator, cues, sourceLang, job.TargetLang, p.opts.TranslateConcurrency)

	progress(95, "Rendering subtitles...")
	vtt := Render(cues)

	emit(Event{Type: EventComplete, Percent: 100, Message: "Subtitles ready", VTT: vtt})
	return nil
}

// waitForRecognition polls the recognition job until it reaches a terminal
// state. A single failed poll is logged and retried on the next tick; only a
// job reported as failed ends the pipeline.
func (p *Pipeline) waitForRecognition(ctx context.Context, job *jobs.Job, progress func(int, string)) (batchasr.JobStatus, error) {
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	percent := 20
	for {
		select {
		case <-ctx.Done():
			return batchasr.JobStatus{}, ctx.Err()
		case <-ticker.C:
			status, err := p.recognizer.PollStatus(ctx, job.RecognitionID)
			if err != nil {
				if ctx.Err() != nil {
					return batchasr.JobStatus{}, ctx.Err()
				}
				log.Warn("Job %s: status poll failed: %v", job.ID, err)
				continue
			}

			switch status.State {
			case batchasr.StateCompleted:
				return status, nil
			case batchasr.StateFailed:
				detail := status.Detail
				if detail == "" {
					detail = "transcription failed"
				}
				return status, fmt.Errorf("transcription failed: %s", detail)
			default:
				if percent < pollProgressCap {
					percent += 3
				}
				progress(percent, "Transcribing audio...")
			}
		}
	}
}

// resolveDetectedLanguage picks the actual source language for translation
// when the client asked for auto-detect: the recognizer's report wins, the
// result artifact is next, and text-based detection over the transcript is
// the last resort.
func resolveDetectedLanguage(status batchasr.JobStatus, result *batchasr.Result) string {
	if status.DetectedLanguage != "" {
		return status.DetectedLanguage
	}
	if result.LanguageCode != "" {
		return result.LanguageCode
	}
	return detectTranscriptLanguage(transcriptText(result))
}

func transcriptText(result *batchasr.Result) string {
	if result.Transcript != "" {
		return result.Transcript
	}
	for _, entry := range result.DiarizedEntries {
		if entry.Transcript != "" {
			return entry.Transcript
		}
	}
	return ""
}

func detectTranscriptLanguage(text string) string {
	if text == "" {
		return autoDetectLanguage
	}
	iso := whatlanggo.Detect(text).Lang.Iso6391()
	if iso == "" {
		return autoDetectLanguage
	}
	// The provider speaks region-qualified Indic locale codes.
	tag, err := language.Compose(language.Make(iso), language.MustParseRegion("IN"))
	if err != nil {
		return autoDetectLanguage
	}
	return tag.String()
}

func (p *Pipeline) record(job *jobs.Job, outcome, detail string) {
	if p.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := p.recorder.Record(ctx, history.Record{
		JobID:      job.ID,
		SourceLang: job.SourceLang,
		TargetLang: job.TargetLang,
		Outcome:    outcome,
		Detail:     detail,
		CreatedAt:  job.CreatedAt,
		FinishedAt: time.Now(),
	})
	if err != nil {
		log.Error("Failed to record history for job %s: %v", job.ID, err)
	}
}
