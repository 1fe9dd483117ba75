// Package subtitle renders word-level SRT subtitles.
package subtitle

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/book-expert/voicebatch/internal/core"
)

// ErrBadTimestamp indicates a string that is not HH:MM:SS,mmm.
var ErrBadTimestamp = errors.New("malformed SRT timestamp")

// Cue is one numbered subtitle.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// FromWords makes one cue per word. Each cue lasts until the next word starts,
// the last one until its own end, and every time is shifted by offset.
func FromWords(words []core.Word, offset float64) []Cue {
	cues := make([]Cue, 0, len(words))

	for i, word := range words {
		text := strings.TrimSpace(word.Text)
		if text == "" {
			continue
		}

		end := word.End
		if i+1 < len(words) {
			end = words[i+1].Start
		}

		cues = append(cues, Cue{
			Index: len(cues) + 1,
			Start: word.Start + offset,
			End:   end + offset,
			Text:  text,
		})
	}

	return cues
}

// Render formats cues as an SRT document.
func Render(cues []Cue) string {
	var sb strings.Builder

	for _, cue := range cues {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n", cue.Index, FormatTimestamp(cue.Start), FormatTimestamp(cue.End), cue.Text)
	}

	return sb.String()
}

// FormatTimestamp converts seconds to HH:MM:SS,mmm. Negative values clamp to zero.
func FormatTimestamp(seconds float64) string {
	millis := int64(math.Round(seconds * 1000))
	if millis < 0 {
		millis = 0
	}

	hours := millis / 3_600_000
	minutes := millis % 3_600_000 / 60_000
	secs := millis % 60_000 / 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis%1000)
}

// ParseTimestamp converts HH:MM:SS,mmm to seconds.
func ParseTimestamp(value string) (float64, error) {
	var hours, minutes, secs, millis int

	n, err := fmt.Sscanf(strings.TrimSpace(value), "%d:%d:%d,%d", &hours, &minutes, &secs, &millis)
	if err != nil || n != 4 || minutes >= 60 || secs >= 60 || millis >= 1000 || hours < 0 || minutes < 0 || secs < 0 || millis < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, value)
	}

	return float64(hours*3600+minutes*60+secs) + float64(millis)/1000, nil
}
