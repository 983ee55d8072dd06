package jobs

import (
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateCreated   State = "created"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Job is one batch subtitle unit of work, tracked from upload until its
// status channel finishes and cleanup runs.
type Job struct {
	ID            string    `json:"id"`
	RecognitionID string    `json:"recognition_id"`
	SourceLang    string    `json:"source_lang"`
	TargetLang    string    `json:"target_lang"`
	WorkDir       string    `json:"-"`
	State         State     `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewID generates a short job identifier for client correlation.
func NewID() string {
	return uuid.NewString()[:8]
}
