package subtitles

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTranslator struct {
	mu       sync.Mutex
	calls    int
	fail     bool
	empty    bool
	delay    time.Duration
	inFlight atomic.Int64
	maxSeen  atomic.Int64
	prefix   string
}

func (f *fakeTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if cur <= seen || f.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail {
		return "", errors.New("translation unavailable")
	}
	if f.empty {
		return "   ", nil
	}
	return f.prefix + text, nil
}

func (f *fakeTranslator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func someCues(n int) []Cue {
	cues := make([]Cue, n)
	for i := range cues {
		cues[i] = Cue{Start: float64(i), End: float64(i) + 0.5, Text: "text"}
	}
	return cues
}

func TestTranslateCues_SameLanguageSkipsCapability(t *testing.T) {
	tr := &fakeTranslator{}
	out := TranslateCues(context.Background(), tr, someCues(4), "hi-IN", "hi-IN", 5)

	assert.Zero(t, tr.callCount())
	for _, cue := range out {
		assert.Equal(t, cue.Text, cue.TranslatedText)
	}
}

func TestTranslateCues_TranslatesAll(t *testing.T) {
	tr := &fakeTranslator{prefix: "T:"}
	out := TranslateCues(context.Background(), tr, someCues(7), "hi-IN", "en-IN", 5)

	assert.Equal(t, 7, tr.callCount())
	for _, cue := range out {
		assert.Equal(t, "T:text", cue.TranslatedText)
	}
}

func TestTranslateCues_FailureFallsBackPerCue(t *testing.T) {
	tr := &fakeTranslator{fail: true}
	out := TranslateCues(context.Background(), tr, someCues(6), "hi-IN", "en-IN", 5)

	assert.Equal(t, 6, tr.callCount())
	for _, cue := range out {
		assert.Equal(t, cue.Text, cue.TranslatedText, "a failed translation keeps the original text")
	}
}

func TestTranslateCues_BoundedConcurrency(t *testing.T) {
	tr := &fakeTranslator{prefix: "T:", delay: 20 * time.Millisecond}
	out := TranslateCues(context.Background(), tr, someCues(20), "hi-IN", "en-IN", 5)

	require.Len(t, out, 20)
	assert.LessOrEqual(t, tr.maxSeen.Load(), int64(5), "never more than 5 in-flight calls")
	assert.Equal(t, 20, tr.callCount())
}

func TestTranslateCues_EmptyResultFallsBack(t *testing.T) {
	tr := &fakeTranslator{empty: true}
	out := TranslateCues(context.Background(), tr, someCues(1), "hi-IN", "en-IN", 5)
	assert.Equal(t, "text", out[0].TranslatedText, "blank translation keeps the original text")
}

func TestTranslateCues_DoesNotMutateInput(t *testing.T) {
	in := someCues(3)
	_ = TranslateCues(context.Background(), &fakeTranslator{prefix: "T:"}, in, "hi-IN", "en-IN", 5)
	for _, cue := range in {
		assert.Empty(t, cue.TranslatedText)
	}
}
