// Package gateway runs live speech-to-speech translation sessions: a client
// streams microphone audio over a websocket and receives transcript,
// translation, voice audio and voice-activity events back on the same
// connection.
package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/calwin/live-speech-translator/internal/speech"
	"github.com/calwin/live-speech-translator/internal/translate"
	"github.com/calwin/live-speech-translator/internal/tts"
	"github.com/calwin/live-speech-translator/pkg/log"
)

// translationUnavailable is sent in place of a translation the capability
// could not produce, so the client always sees one translation event per
// transcript.
const translationUnavailable = "[Translation unavailable]"

// flushGrace is how long a stopped session waits for the recognizer to
// deliver the flushed final transcripts before the stream is forced closed.
const flushGrace = 3 * time.Second

// Gateway wires the streaming recognizer, the translator and the synthesizer
// into live sessions.
type Gateway struct {
	recognizer  speech.Recognizer
	translator  translate.Translator
	synthesizer tts.Synthesizer

	defaultSpeaker string
	sampleRate     int
}

func New(recognizer speech.Recognizer, translator translate.Translator, synthesizer tts.Synthesizer, defaultSpeaker string, sampleRate int) *Gateway {
	return &Gateway{
		recognizer:     recognizer,
		translator:     translator,
		synthesizer:    synthesizer,
		defaultSpeaker: defaultSpeaker,
		sampleRate:     sampleRate,
	}
}

// Handle runs one session to completion. The first client message must be the
// session config; audio frames may only follow it. Handle closes conn before
// returning.
func (gw *Gateway) Handle(ctx context.Context, conn Conn) error {
	defer conn.Close()

	mt, data, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	if mt != websocket.TextMessage {
		sess := &session{conn: conn}
		sess.sendError("expected session config before audio")
		return nil
	}

	hs, err := parseHandshake(data, gw.defaultSpeaker)
	if err != nil {
		sess := &session{conn: conn}
		sess.sendError(err.Error())
		return nil
	}

	sess := &session{
		conn:       conn,
		sourceLang: hs.SourceLanguage,
		targetLang: hs.TargetLanguage,
		tts:        hs.ttsEnabled(),
		speaker:    hs.Speaker,
	}

	stream, err := gw.recognizer.Connect(ctx, speech.StreamConfig{
		LanguageCode: sess.sourceLang,
		SampleRate:   gw.sampleRate,
	})
	if err != nil {
		log.Error("Failed to connect recognition stream: %v", err)
		sess.sendError("speech recognition is unavailable")
		return err
	}

	sess.sendStatus("listening")

	var speakWG sync.WaitGroup
	stopped := false
	relayDone := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(relayDone)
		var err error
		stopped, err = gw.relay(sess, stream)
		return err
	})
	g.Go(func() error {
		gw.consume(gctx, sess, stream, &speakWG)
		return nil
	})

	// Close the stream once the client is done sending. A stopped session
	// gets a grace period for the flushed finals to arrive; a vanished one
	// does not.
	go func() {
		select {
		case <-relayDone:
			if stopped {
				select {
				case <-time.After(flushGrace):
				case <-gctx.Done():
				}
			}
		case <-gctx.Done():
		}
		stream.Close()
	}()

	err = g.Wait()
	speakWG.Wait()
	sess.sendStatus("done")
	return err
}

// relay pumps client messages into the recognition stream. Binary frames are
// audio; the only control message accepted is stop, which flushes pending
// audio and ends the sending half. Returns whether the client stopped
// cleanly.
func (gw *Gateway) relay(sess *session, stream speech.Stream) (bool, error) {
	for {
		mt, data, err := sess.conn.ReadMessage()
		if err != nil {
			// Client went away; the session winds down without a send.
			return false, nil
		}

		switch mt {
		case websocket.BinaryMessage:
			if err := stream.SendAudio(data); err != nil {
				log.Warn("Dropping session, audio forward failed: %v", err)
				return false, nil
			}
		case websocket.TextMessage:
			if !isStopMessage(data) {
				sess.sendError("unexpected control message; only stop is accepted")
				continue
			}
			if err := stream.Flush(); err != nil {
				log.Warn("Flush on stop failed: %v", err)
			}
			return true, nil
		}
	}
}

func isStopMessage(data []byte) bool {
	var ctl struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &ctl); err == nil && ctl.Type == "stop" {
		return true
	}
	return strings.TrimSpace(string(data)) == "stop"
}

// consume forwards recognition events to the client. Every final transcript
// fans out into a translate-then-speak task; the tasks are tracked so the
// session's done message trails the last translation.
func (gw *Gateway) consume(ctx context.Context, sess *session, stream speech.Stream, speakWG *sync.WaitGroup) {
	for ev := range stream.Events() {
		switch ev.Kind {
		case speech.EventSpeechStart:
			_ = sess.send(outboundEvent{Type: "vad", Event: "start"})
		case speech.EventSpeechEnd:
			_ = sess.send(outboundEvent{Type: "vad", Event: "end"})
		case speech.EventError:
			// Recognition errors are reported but do not end the session.
			log.Warn("Recognition stream error: %v", ev.Err)
			sess.sendError(ev.Err.Error())
		case speech.EventTranscript:
			text := strings.TrimSpace(ev.Transcript)
			if text == "" {
				continue
			}
			lang := ev.Language
			if lang == "" {
				lang = sess.sourceLang
			}
			_ = sess.send(outboundEvent{Type: "transcript", Text: text, Language: lang})

			speakWG.Add(1)
			go func() {
				defer speakWG.Done()
				gw.translateAndSpeak(ctx, sess, text, lang)
			}()
		}
	}
}

// translateAndSpeak produces the translation event for one transcript and,
// when voice output applies, the audio events after it. Synthesis failures
// are swallowed; the translation already reached the client.
func (gw *Gateway) translateAndSpeak(ctx context.Context, sess *session, text, sourceLang string) {
	translated := text
	if sourceLang != sess.targetLang {
		out, err := gw.translator.Translate(ctx, text, sourceLang, sess.targetLang)
		if err != nil || strings.TrimSpace(out) == "" {
			if err != nil {
				log.Warn("Translation failed: %v", err)
			}
			_ = sess.send(outboundEvent{Type: "translation", Text: translationUnavailable, Language: sess.targetLang})
			return
		}
		translated = out
	}

	_ = sess.send(outboundEvent{Type: "translation", Text: translated, Language: sess.targetLang})

	if !sess.tts || gw.synthesizer == nil || !tts.HasVoice(sess.targetLang) {
		return
	}
	audios, err := gw.synthesizer.Speak(ctx, translated, sess.targetLang, sess.speaker)
	if err != nil {
		log.Warn("Speech synthesis failed: %v", err)
		return
	}
	for _, audio := range audios {
		if audio == "" {
			continue
		}
		_ = sess.send(outboundEvent{Type: "audio", Data: audio})
	}
}
