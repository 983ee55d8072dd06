package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/calwin/live-speech-translator/pkg/log"
)

// Client connects to the provider's streaming speech-to-text websocket.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	dialer   *websocket.Dialer
}

func NewClient(endpoint, apiKey, model string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		dialer:   websocket.DefaultDialer,
	}
}

// Connect opens a streaming recognition session. The returned stream keeps a
// reader goroutine running until the upstream closes the connection.
func (c *Client) Connect(ctx context.Context, cfg StreamConfig) (Stream, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid stream endpoint: %w", err)
	}

	q := u.Query()
	q.Set("model", c.model)
	q.Set("mode", "transcribe")
	q.Set("language-code", cfg.LanguageCode)
	q.Set("sample-rate", strconv.Itoa(cfg.SampleRate))
	q.Set("high-vad-sensitivity", "true")
	q.Set("vad-signals", "true")
	q.Set("flush-signal", "true")
	q.Set("input-audio-codec", "pcm_s16le")
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("api-subscription-key", c.apiKey)

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("stream connect failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("stream connect failed: %w", err)
	}

	s := &stream{
		conn:       conn,
		sampleRate: cfg.SampleRate,
		events:     make(chan Event, 16),
	}
	go s.readLoop()
	return s, nil
}

type stream struct {
	conn       *websocket.Conn
	sampleRate int

	writeMu   sync.Mutex
	events    chan Event
	closeOnce sync.Once
}

type audioFrame struct {
	Type       string `json:"type"`
	Audio      string `json:"audio"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type controlFrame struct {
	Type string `json:"type"`
}

// serverFrame is the upstream message envelope. Exactly one of the payload
// fields is meaningful depending on Type.
type serverFrame struct {
	Type string `json:"type"`
	Data struct {
		Transcript   string `json:"transcript"`
		LanguageCode string `json:"language_code"`
		SignalType   string `json:"signal_type"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *stream) SendAudio(chunk []byte) error {
	frame := audioFrame{
		Type:       "audio",
		Audio:      base64.StdEncoding.EncodeToString(chunk),
		Encoding:   "audio/wav",
		SampleRate: s.sampleRate,
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(frame)
}

// Flush asks the recognizer to finalize any buffered audio.
func (s *stream) Flush() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(controlFrame{Type: "flush"})
}

func (s *stream) Events() <-chan Event {
	return s.events
}

func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

func (s *stream) readLoop() {
	defer close(s.events)

	for {
		var frame serverFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("Recognition stream closed: %v", err)
			}
			return
		}

		switch frame.Type {
		case "events":
			switch frame.Data.SignalType {
			case "START_SPEECH":
				s.events <- Event{Kind: EventSpeechStart}
			case "END_SPEECH":
				s.events <- Event{Kind: EventSpeechEnd}
			}
		case "error":
			msg := frame.Error.Message
			if msg == "" {
				msg = "recognition error"
			}
			s.events <- Event{Kind: EventError, Err: errors.New(msg)}
		case "data":
			s.events <- Event{
				Kind:       EventTranscript,
				Transcript: frame.Data.Transcript,
				Language:   frame.Data.LanguageCode,
			}
		}
	}
}
