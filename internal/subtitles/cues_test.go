package subtitles

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calwin/live-speech-translator/internal/batchasr"
)

func TestBuildCues_PrefersDiarizedEntries(t *testing.T) {
	result := &batchasr.Result{
		DiarizedEntries: []batchasr.DiarizedEntry{
			{Transcript: "hello there", StartSeconds: 0.0, EndSeconds: 1.2},
			{Transcript: "   ", StartSeconds: 1.3, EndSeconds: 1.5},
			{Transcript: "how are you", StartSeconds: 1.6, EndSeconds: 2.8},
		},
		Words: []batchasr.TimedWord{
			{Word: "ignored", StartSeconds: 0, EndSeconds: 1},
		},
	}

	cues := BuildCues(result, DefaultCueOptions())
	require.Len(t, cues, 2, "empty-text entries are discarded")
	assert.Equal(t, "hello there", cues[0].Text)
	assert.Equal(t, 0.0, cues[0].Start)
	assert.Equal(t, 1.2, cues[0].End)
	assert.Equal(t, "how are you", cues[1].Text)
}

func TestBuildCues_WordFallback_PauseBreaks(t *testing.T) {
	// Two runs separated by a 1s pause; within a run, gaps stay under 0.5s.
	result := &batchasr.Result{
		Words: []batchasr.TimedWord{
			{Word: "one", StartSeconds: 0.0, EndSeconds: 0.3},
			{Word: "two", StartSeconds: 0.4, EndSeconds: 0.7},
			{Word: "three", StartSeconds: 1.7, EndSeconds: 2.0},
			{Word: "four", StartSeconds: 2.1, EndSeconds: 2.4},
		},
	}

	cues := BuildCues(result, DefaultCueOptions())
	require.Len(t, cues, 2)

	assert.Equal(t, "one two", cues[0].Text)
	assert.Equal(t, 0.0, cues[0].Start)
	assert.Equal(t, 0.7, cues[0].End, "cue end equals the end of its last word")

	assert.Equal(t, "three four", cues[1].Text)
	assert.Equal(t, 1.7, cues[1].Start, "cue start equals the start of its first word")
	assert.Equal(t, 2.4, cues[1].End)
}

func TestBuildCues_WordFallback_EightWordCap(t *testing.T) {
	// Nine words 0.1s apart with no pause: exactly one full 8-word cue, then
	// the ninth starts a new cue regardless of pause.
	words := make([]batchasr.TimedWord, 9)
	for i := range words {
		start := float64(i) * 0.4
		words[i] = batchasr.TimedWord{
			Word:         fmt.Sprintf("w%d", i),
			StartSeconds: start,
			EndSeconds:   start + 0.3,
		}
	}

	cues := BuildCues(&batchasr.Result{Words: words}, DefaultCueOptions())
	require.Len(t, cues, 2)
	assert.Equal(t, "w0 w1 w2 w3 w4 w5 w6 w7", cues[0].Text)
	assert.Equal(t, "w8", cues[1].Text)
}

func TestBuildCues_WordFallback_ExactGapDoesNotSplit(t *testing.T) {
	// A gap of exactly 0.5s does not close the cue; only a gap above the
	// threshold does.
	result := &batchasr.Result{
		Words: []batchasr.TimedWord{
			{Word: "a", StartSeconds: 0.0, EndSeconds: 0.5},
			{Word: "b", StartSeconds: 1.0, EndSeconds: 1.4},
		},
	}

	cues := BuildCues(result, DefaultCueOptions())
	require.Len(t, cues, 1)
	assert.Equal(t, "a b", cues[0].Text)
}

func TestBuildCues_TranscriptLastResort(t *testing.T) {
	cues := BuildCues(&batchasr.Result{Transcript: "  full transcript text  "}, DefaultCueOptions())
	require.Len(t, cues, 1)
	assert.Equal(t, "full transcript text", cues[0].Text)
	assert.Equal(t, 0.0, cues[0].Start)
	assert.Equal(t, 10.0, cues[0].End)
}

func TestBuildCues_NothingToWorkWith(t *testing.T) {
	assert.Empty(t, BuildCues(&batchasr.Result{Transcript: "   "}, DefaultCueOptions()))
	assert.Empty(t, BuildCues(&batchasr.Result{}, DefaultCueOptions()))
	assert.Empty(t, BuildCues(nil, DefaultCueOptions()))
}

func TestBuildCues_MonotonicStarts(t *testing.T) {
	words := make([]batchasr.TimedWord, 30)
	for i := range words {
		start := float64(i) * 0.7
		words[i] = batchasr.TimedWord{Word: "w", StartSeconds: start, EndSeconds: start + 0.2}
	}

	cues := BuildCues(&batchasr.Result{Words: words}, DefaultCueOptions())
	require.NotEmpty(t, cues)
	for i := 1; i < len(cues); i++ {
		assert.GreaterOrEqual(t, cues[i].Start, cues[i-1].Start)
		assert.GreaterOrEqual(t, cues[i].Start, cues[i-1].End)
	}
}
