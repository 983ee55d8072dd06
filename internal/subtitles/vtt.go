package subtitles

import (
	"fmt"
	"strings"
)

// FormatTimestamp renders seconds as a WebVTT timestamp HH:MM:SS.mmm.
// Hours are unbounded; milliseconds are truncated, not rounded.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int64(seconds * 1000)

	h := millis / 3600000
	m := (millis % 3600000) / 60000
	s := (millis % 60000) / 1000
	ms := millis % 1000

	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// Render produces the WebVTT document for a cue list. Cues are numbered from
// one; the translated text is used, falling back to the original when empty.
func Render(cues []Cue) string {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")

	for i, cue := range cues {
		text := cue.TranslatedText
		if text == "" {
			text = cue.Text
		}
		fmt.Fprintf(&sb, "%d\n", i+1)
		fmt.Fprintf(&sb, "%s --> %s\n", FormatTimestamp(cue.Start), FormatTimestamp(cue.End))
		fmt.Fprintf(&sb, "%s\n\n", text)
	}

	return sb.String()
}
