package subtitle_test

import (
	"testing"

	"github.com/book-expert/voicebatch/internal/core"
	"github.com/book-expert/voicebatch/internal/subtitle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "00:00:00,000"},
		{0.6, "00:00:00,600"},
		{61.25, "00:01:01,250"},
		{3723.0049, "01:02:03,005"},
		{-1, "00:00:00,000"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, subtitle.FormatTimestamp(test.seconds))
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	seconds, err := subtitle.ParseTimestamp("01:02:03,450")
	require.NoError(t, err)
	assert.InDelta(t, 3723.45, seconds, 1e-9)

	for _, bad := range []string{"", "1:2:3", "00:61:00,000", "00:00:00.500", "aa:bb:cc,ddd"} {
		_, err := subtitle.ParseTimestamp(bad)
		require.ErrorIs(t, err, subtitle.ErrBadTimestamp, bad)
	}
}

func TestFromWords(t *testing.T) {
	t.Parallel()

	words := []core.Word{
		{Text: " Hello", Start: 0.0, End: 0.4},
		{Text: " ", Start: 0.4, End: 0.5},
		{Text: "there", Start: 0.5, End: 0.9},
		{Text: "friend.", Start: 1.1, End: 1.6},
	}

	cues := subtitle.FromWords(words, 2.2)
	require.Len(t, cues, 3)

	expected := []struct {
		text       string
		start, end float64
	}{
		{"Hello", 2.2, 2.6},
		{"there", 2.7, 3.3},
		{"friend.", 3.3, 3.8},
	}

	for i, cue := range cues {
		assert.Equal(t, i+1, cue.Index)
		assert.Equal(t, expected[i].text, cue.Text)
		assert.InDelta(t, expected[i].start, cue.Start, 1e-9)
		assert.InDelta(t, expected[i].end, cue.End, 1e-9)
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	cues := subtitle.FromWords([]core.Word{
		{Text: "Hi", Start: 0, End: 0.3},
		{Text: "you", Start: 0.35, End: 0.8},
	}, 0)

	expected := "1\n00:00:00,000 --> 00:00:00,350\nHi\n\n" +
		"2\n00:00:00,350 --> 00:00:00,800\nyou\n\n"
	assert.Equal(t, expected, subtitle.Render(cues))
	assert.Empty(t, subtitle.Render(nil))
}
