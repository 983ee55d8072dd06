package tts

import (
	"context"

	"golang.org/x/text/language"
)

// Synthesizer converts text to encoded audio payloads (base64). A call may
// fail; voice output is a non-essential enhancement and callers swallow the
// error.
type Synthesizer interface {
	Speak(ctx context.Context, text, targetLang, speaker string) ([]string, error)
}

// voiceLanguages lists the languages the synthesis model has voices for.
var voiceLanguages = map[string]struct{}{
	"bn-IN": {},
	"en-IN": {},
	"gu-IN": {},
	"hi-IN": {},
	"kn-IN": {},
	"ml-IN": {},
	"mr-IN": {},
	"od-IN": {},
	"pa-IN": {},
	"ta-IN": {},
	"te-IN": {},
}

// HasVoice reports whether synthesis is available for the language code.
// The code is canonicalized first so spelling variants still match.
func HasVoice(code string) bool {
	if _, ok := voiceLanguages[code]; ok {
		return true
	}
	tag, err := language.Parse(code)
	if err != nil {
		return false
	}
	_, ok := voiceLanguages[tag.String()]
	return ok
}
