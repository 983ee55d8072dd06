package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Conn is the subset of a websocket connection the gateway needs. It is
// satisfied by *websocket.Conn.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// handshake is the first client message on a live session. It selects the
// languages before any audio may flow.
type handshake struct {
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	TTSEnabled     *bool  `json:"tts_enabled"`
	Speaker        string `json:"speaker"`
}

func parseHandshake(data []byte, defaultSpeaker string) (handshake, error) {
	var hs handshake
	if err := json.Unmarshal(data, &hs); err != nil {
		return hs, fmt.Errorf("malformed session config: %w", err)
	}
	hs.SourceLanguage = strings.TrimSpace(hs.SourceLanguage)
	hs.TargetLanguage = strings.TrimSpace(hs.TargetLanguage)
	if hs.SourceLanguage == "" || hs.TargetLanguage == "" {
		return hs, fmt.Errorf("source_language and target_language are required")
	}
	if hs.Speaker == "" {
		hs.Speaker = defaultSpeaker
	}
	return hs, nil
}

func (hs handshake) ttsEnabled() bool {
	return hs.TTSEnabled == nil || *hs.TTSEnabled
}

// outboundEvent is one server-to-client message. All session event types
// share this shape; unused fields stay off the wire.
type outboundEvent struct {
	Type     string `json:"type"`
	Message  string `json:"message,omitempty"`
	Event    string `json:"event,omitempty"`
	Text     string `json:"text,omitempty"`
	Language string `json:"language,omitempty"`
	Data     string `json:"data,omitempty"`
}

// session pairs the connection with a write lock. Event producers run
// concurrently, so every outbound write goes through send.
type session struct {
	conn   Conn
	sendMu sync.Mutex

	sourceLang string
	targetLang string
	tts        bool
	speaker    string
}

// send writes one event to the client. A write failure means the client is
// gone; producers treat it as best-effort.
func (s *session) send(ev outboundEvent) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.conn.WriteJSON(ev)
}

func (s *session) sendStatus(msg string) {
	_ = s.send(outboundEvent{Type: "status", Message: msg})
}

func (s *session) sendError(msg string) {
	_ = s.send(outboundEvent{Type: "error", Message: msg})
}
