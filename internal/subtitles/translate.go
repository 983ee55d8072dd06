package subtitles

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/calwin/live-speech-translator/internal/translate"
	"github.com/calwin/live-speech-translator/pkg/log"
)

// TranslateCues fills TranslatedText for every cue. When source and target
// languages match, the text is copied without any capability call. Otherwise
// cues are translated concurrently, bounded by limit in-flight calls; a
// failed translation falls back to the cue's original text so a partial
// result never becomes an empty document.
func TranslateCues(ctx context.Context, tr translate.Translator, cues []Cue, sourceLang, targetLang string, limit int64) []Cue {
	out := make([]Cue, len(cues))
	copy(out, cues)

	if sourceLang == targetLang || tr == nil {
		for i := range out {
			out[i].TranslatedText = out[i].Text
		}
		return out
	}

	if limit <= 0 {
		limit = 1
	}
	sem := semaphore.NewWeighted(limit)

	var wg sync.WaitGroup
	for i := range out {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context gone; keep original text for the rest.
			out[i].TranslatedText = out[i].Text
			continue
		}
		wg.Add(1)
		go func(cue *Cue) {
			defer wg.Done()
			defer sem.Release(1)

			translated, err := tr.Translate(ctx, cue.Text, sourceLang, targetLang)
			if err != nil || strings.TrimSpace(translated) == "" {
				if err != nil {
					log.Warn("Cue translation failed, keeping original text: %v", err)
				}
				cue.TranslatedText = cue.Text
				return
			}
			cue.TranslatedText = translated
		}(&out[i])
	}
	wg.Wait()

	return out
}
