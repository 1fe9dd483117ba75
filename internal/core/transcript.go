package core

import "strings"

// Word is a single timestamped token of a transcript.
type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is a timed run of words.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Transcript is the payload produced by a Transcriber.
type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// Words flattens the word list across all segments in order.
func (t *Transcript) Words() []Word {
	var words []Word

	for _, segment := range t.Segments {
		words = append(words, segment.Words...)
	}

	return words
}

// SpokenDuration returns Duration when the backend reported one, otherwise the
// end of the last segment.
func (t *Transcript) SpokenDuration() float64 {
	if t.Duration > 0 {
		return t.Duration
	}

	if len(t.Segments) == 0 {
		return 0
	}

	return t.Segments[len(t.Segments)-1].End
}

// PlainText returns Text, or the trimmed segment texts joined by spaces.
func (t *Transcript) PlainText() string {
	if t.Text != "" {
		return strings.TrimSpace(t.Text)
	}

	parts := make([]string, 0, len(t.Segments))
	for _, segment := range t.Segments {
		parts = append(parts, strings.TrimSpace(segment.Text))
	}

	return strings.Join(parts, " ")
}
