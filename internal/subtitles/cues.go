package subtitles

import (
	"strings"
	"time"

	"github.com/calwin/live-speech-translator/internal/batchasr"
)

// Cue is one timed subtitle entry. Start and End are offsets in seconds.
type Cue struct {
	Start          float64
	End            float64
	Text           string
	TranslatedText string
}

// CueOptions tunes how word-level timestamps are grouped into cues.
type CueOptions struct {
	// PauseGap is the silence between consecutive words that closes a cue.
	PauseGap time.Duration
	// MaxWords caps the words per cue for readability.
	MaxWords int
}

func DefaultCueOptions() CueOptions {
	return CueOptions{
		PauseGap: 500 * time.Millisecond,
		MaxWords: 8,
	}
}

// fallbackCueSeconds spans the single last-resort cue when the recognizer
// returned neither diarized entries nor word timestamps.
const fallbackCueSeconds = 10

// BuildCues turns a recognition result into an ordered cue list. Diarized
// entries are preferred since they already carry phrase boundaries; word
// timestamps are grouped greedily as a fallback; a bare transcript becomes a
// single cue so any recognized speech always yields output.
func BuildCues(result *batchasr.Result, opts CueOptions) []Cue {
	if result == nil {
		return nil
	}
	if opts.MaxWords <= 0 {
		opts.MaxWords = DefaultCueOptions().MaxWords
	}
	if opts.PauseGap <= 0 {
		opts.PauseGap = DefaultCueOptions().PauseGap
	}

	if len(result.DiarizedEntries) > 0 {
		cues := make([]Cue, 0, len(result.DiarizedEntries))
		for _, entry := range result.DiarizedEntries {
			text := strings.TrimSpace(entry.Transcript)
			if text == "" {
				continue
			}
			cues = append(cues, Cue{
				Start: entry.StartSeconds,
				End:   entry.EndSeconds,
				Text:  text,
			})
		}
		if len(cues) > 0 {
			return cues
		}
	}

	if len(result.Words) > 0 {
		return cuesFromWords(result.Words, opts)
	}

	if text := strings.TrimSpace(result.Transcript); text != "" {
		return []Cue{{Start: 0, End: fallbackCueSeconds, Text: text}}
	}

	return nil
}

// cuesFromWords greedily accumulates consecutive words into cues. A cue is
// closed on the last word, when the gap to the next word exceeds the pause
// threshold, or when it already holds MaxWords words.
func cuesFromWords(words []batchasr.TimedWord, opts CueOptions) []Cue {
	gap := opts.PauseGap.Seconds()

	var cues []Cue
	var run []batchasr.TimedWord

	flush := func() {
		if len(run) == 0 {
			return
		}
		texts := make([]string, 0, len(run))
		for _, w := range run {
			texts = append(texts, w.Word)
		}
		cues = append(cues, Cue{
			Start: run[0].StartSeconds,
			End:   run[len(run)-1].EndSeconds,
			Text:  strings.Join(texts, " "),
		})
		run = run[:0]
	}

	for i, word := range words {
		run = append(run, word)

		last := i == len(words)-1
		pause := !last && words[i+1].StartSeconds-word.EndSeconds > gap
		full := len(run) >= opts.MaxWords

		if last || pause || full {
			flush()
		}
	}

	return cues
}
