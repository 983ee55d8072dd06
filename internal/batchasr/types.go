package batchasr

import "context"

// State is the lifecycle of a batch recognition job on the provider side.
type State string

const (
	StateCreated    State = "created"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// JobOptions configures a batch recognition job.
type JobOptions struct {
	LanguageCode string
	Diarization  bool
	Timestamps   bool
}

// JobStatus is one poll of a batch recognition job.
type JobStatus struct {
	State State
	// DetectedLanguage is filled once the provider has identified the spoken
	// language. Empty until then.
	DetectedLanguage string
	Detail           string
}

// DiarizedEntry is a recognition segment already bounded by speaker-turn
// boundaries.
type DiarizedEntry struct {
	Transcript   string  `json:"transcript"`
	StartSeconds float64 `json:"start_time_seconds"`
	EndSeconds   float64 `json:"end_time_seconds"`
	SpeakerID    string  `json:"speaker_id"`
}

// TimedWord is a word with start/end offsets in the source audio.
type TimedWord struct {
	Word         string  `json:"word"`
	StartSeconds float64 `json:"start_time_seconds"`
	EndSeconds   float64 `json:"end_time_seconds"`
}

// Result is the downloaded recognition artifact for one job.
type Result struct {
	Transcript      string          `json:"transcript"`
	LanguageCode    string          `json:"language_code"`
	DiarizedEntries []DiarizedEntry `json:"diarized_entries"`
	Words           []TimedWord     `json:"words"`
}

// Recognizer is the asynchronous (job-based) recognition capability.
type Recognizer interface {
	CreateJob(ctx context.Context, opts JobOptions) (string, error)
	UploadAudio(ctx context.Context, jobID, audioPath string) error
	Start(ctx context.Context, jobID string) error
	PollStatus(ctx context.Context, jobID string) (JobStatus, error)
	DownloadResult(ctx context.Context, jobID, destDir string) (*Result, error)
}
