package translate

import "context"

// Translator converts text between languages. A call may fail; callers are
// expected to substitute a fallback rather than abort their pipeline.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}
