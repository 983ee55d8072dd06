package subtitles

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calwin/live-speech-translator/internal/batchasr"
	"github.com/calwin/live-speech-translator/internal/history"
	"github.com/calwin/live-speech-translator/internal/jobs"
)

// fakeBatchRecognizer serves a scripted poll sequence and a canned result.
type fakeBatchRecognizer struct {
	mu       sync.Mutex
	statuses []batchasr.JobStatus
	result   *batchasr.Result
	polls    int
}

func (f *fakeBatchRecognizer) CreateJob(context.Context, batchasr.JobOptions) (string, error) {
	return "remote-1", nil
}
func (f *fakeBatchRecognizer) UploadAudio(context.Context, string, string) error { return nil }
func (f *fakeBatchRecognizer) Start(context.Context, string) error               { return nil }

func (f *fakeBatchRecognizer) PollStatus(context.Context, string) (batchasr.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.polls
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	f.polls++
	return f.statuses[idx], nil
}

func (f *fakeBatchRecognizer) DownloadResult(context.Context, string, string) (*batchasr.Result, error) {
	return f.result, nil
}

type recordingTranslator struct {
	mu    sync.Mutex
	langs []string
}

func (r *recordingTranslator) Translate(_ context.Context, text, sourceLang, _ string) (string, error) {
	r.mu.Lock()
	r.langs = append(r.langs, sourceLang)
	r.mu.Unlock()
	return "T:" + text, nil
}

type memRecorder struct {
	mu      sync.Mutex
	records []history.Record
}

func (m *memRecorder) Record(_ context.Context, rec history.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memRecorder) last(t *testing.T) history.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.records)
	return m.records[len(m.records)-1]
}

func collectEvents() (func(Event), *[]Event, *sync.Mutex) {
	var mu sync.Mutex
	events := make([]Event, 0)
	return func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}, &events, &mu
}

func testOptions() Options {
	return Options{
		PollInterval:         5 * time.Millisecond,
		TranslateConcurrency: 5,
		Cues:                 DefaultCueOptions(),
	}
}

func TestPipeline_Run_CompletesWithVTT(t *testing.T) {
	rec := &fakeBatchRecognizer{
		statuses: []batchasr.JobStatus{
			{State: batchasr.StateProcessing},
			{State: batchasr.StateProcessing},
			{State: batchasr.StateCompleted},
		},
		result: &batchasr.Result{
			DiarizedEntries: []batchasr.DiarizedEntry{
				{Transcript: "namaste", StartSeconds: 0, EndSeconds: 1},
			},
		},
	}
	recorder := &memRecorder{}
	p := NewPipeline(rec, &recordingTranslator{}, recorder, testOptions())

	emit, events, mu := collectEvents()
	job := &jobs.Job{ID: "j1", RecognitionID: "remote-1", SourceLang: "hi-IN", TargetLang: "en-IN", CreatedAt: time.Now()}

	require.NoError(t, p.Run(context.Background(), job, emit))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, *events)

	last := (*events)[len(*events)-1]
	assert.Equal(t, EventComplete, last.Type)
	assert.Equal(t, 100, last.Percent)
	assert.True(t, strings.HasPrefix(last.VTT, "WEBVTT\n\n"))
	assert.Contains(t, last.VTT, "T:namaste")

	// Progress is monotonically non-decreasing throughout.
	prev := 0
	for _, ev := range *events {
		if ev.Type != EventProgress {
			continue
		}
		assert.GreaterOrEqual(t, ev.Percent, prev)
		assert.LessOrEqual(t, ev.Percent, 95)
		prev = ev.Percent
	}

	assert.Equal(t, "completed", recorder.last(t).Outcome)
}

func TestPipeline_Run_FailedJobEmitsErrorNoComplete(t *testing.T) {
	rec := &fakeBatchRecognizer{
		statuses: []batchasr.JobStatus{
			{State: batchasr.StateProcessing},
			{State: batchasr.StateFailed, Detail: "bad audio"},
		},
	}
	recorder := &memRecorder{}
	p := NewPipeline(rec, &recordingTranslator{}, recorder, testOptions())

	emit, events, mu := collectEvents()
	job := &jobs.Job{ID: "j2", RecognitionID: "remote-1", SourceLang: "hi-IN", TargetLang: "en-IN"}

	err := p.Run(context.Background(), job, emit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad audio")

	mu.Lock()
	defer mu.Unlock()
	var sawError, sawComplete bool
	for _, ev := range *events {
		switch ev.Type {
		case EventError:
			sawError = true
		case EventComplete:
			sawComplete = true
		}
	}
	assert.True(t, sawError)
	assert.False(t, sawComplete)
	assert.Equal(t, "failed", recorder.last(t).Outcome)
}

func TestPipeline_Run_NoSpeechIsTerminal(t *testing.T) {
	rec := &fakeBatchRecognizer{
		statuses: []batchasr.JobStatus{{State: batchasr.StateCompleted}},
		result:   &batchasr.Result{},
	}
	recorder := &memRecorder{}
	p := NewPipeline(rec, &recordingTranslator{}, recorder, testOptions())

	emit, events, mu := collectEvents()
	job := &jobs.Job{ID: "j3", RecognitionID: "remote-1", SourceLang: "hi-IN", TargetLang: "en-IN"}

	err := p.Run(context.Background(), job, emit)
	require.ErrorIs(t, err, ErrNoSpeech)

	mu.Lock()
	defer mu.Unlock()
	last := (*events)[len(*events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Equal(t, "No speech detected", last.Message)
	assert.Equal(t, "no_speech", recorder.last(t).Outcome)
}

func TestPipeline_Run_AutoDetectUsesReportedLanguage(t *testing.T) {
	rec := &fakeBatchRecognizer{
		statuses: []batchasr.JobStatus{{State: batchasr.StateCompleted, DetectedLanguage: "ta-IN"}},
		result: &batchasr.Result{
			DiarizedEntries: []batchasr.DiarizedEntry{
				{Transcript: "vanakkam", StartSeconds: 0, EndSeconds: 1},
			},
		},
	}
	tr := &recordingTranslator{}
	p := NewPipeline(rec, tr, nil, testOptions())

	emit, _, _ := collectEvents()
	job := &jobs.Job{ID: "j4", RecognitionID: "remote-1", SourceLang: "unknown", TargetLang: "en-IN"}

	require.NoError(t, p.Run(context.Background(), job, emit))

	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.NotEmpty(t, tr.langs)
	for _, lang := range tr.langs {
		assert.Equal(t, "ta-IN", lang, "translation must use the detected language, not the placeholder")
	}
}

func TestPipeline_Run_AbandonedContextEmitsNothing(t *testing.T) {
	rec := &fakeBatchRecognizer{
		statuses: []batchasr.JobStatus{{State: batchasr.StateProcessing}},
	}
	recorder := &memRecorder{}
	p := NewPipeline(rec, &recordingTranslator{}, recorder, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	emit, events, mu := collectEvents()
	job := &jobs.Job{ID: "j5", RecognitionID: "remote-1", SourceLang: "hi-IN", TargetLang: "en-IN"}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := p.Run(ctx, job, emit)
	require.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	for _, ev := range *events {
		assert.NotEqual(t, EventError, ev.Type, "an abandoned channel gets no error event")
		assert.NotEqual(t, EventComplete, ev.Type)
	}
	assert.Equal(t, "abandoned", recorder.last(t).Outcome)
}

func TestResolveDetectedLanguage_FallsBackToTextDetection(t *testing.T) {
	result := &batchasr.Result{Transcript: "this is clearly english text about the weather today"}
	lang := resolveDetectedLanguage(batchasr.JobStatus{}, result)
	assert.Equal(t, "en-IN", lang)
}
