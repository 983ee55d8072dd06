package speech

import "context"

// EventKind discriminates messages on a recognition stream.
type EventKind string

const (
	EventSpeechStart EventKind = "speech_start"
	EventSpeechEnd   EventKind = "speech_end"
	EventError       EventKind = "error"
	EventTranscript  EventKind = "transcript"
)

// Event is one message from the recognition stream. Transcript events carry
// the finalized text; error events carry Err and are not fatal to the stream.
type Event struct {
	Kind       EventKind
	Transcript string
	Language   string
	Err        error
}

// StreamConfig selects the model and input format for one connection.
type StreamConfig struct {
	LanguageCode string
	SampleRate   int
}

// Stream is one live recognition connection. Events() is closed when the
// upstream connection ends; SendAudio and Flush are safe for one writer.
type Stream interface {
	SendAudio(chunk []byte) error
	Flush() error
	Events() <-chan Event
	Close() error
}

// Recognizer opens streaming recognition connections.
type Recognizer interface {
	Connect(ctx context.Context, cfg StreamConfig) (Stream, error)
}
