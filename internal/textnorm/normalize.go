// Package textnorm cleans up script text before it is sent to a speech model.
package textnorm

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Number spelling limits.
const (
	baseTen       = 10
	baseTwenty    = 20
	baseHundred   = 100
	baseThousand  = 1000
	maxSpelledOut = 999999
)

const (
	urlRegexPattern        = `https?://\S+`
	emailRegexPattern      = `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`
	numberRegexPattern     = `\b\d+\b`
	whitespaceRegexPattern = `\s+`
	placeholderMark        = "\x00"
)

var (
	ones = []string{
		"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
		"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
		"seventeen", "eighteen", "nineteen",
	}
	tens = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}
)

// Normalizer rewrites text into a form voice models read aloud cleanly.
// English-only rules (abbreviations, numbers) apply when the language is "en".
type Normalizer struct {
	urlPattern        *regexp.Regexp
	emailPattern      *regexp.Regexp
	numberPattern     *regexp.Regexp
	whitespacePattern *regexp.Regexp
	abbreviations     *strings.Replacer
	punctuation       *strings.Replacer
}

// New compiles a Normalizer.
func New() *Normalizer {
	return &Normalizer{
		urlPattern:        regexp.MustCompile(urlRegexPattern),
		emailPattern:      regexp.MustCompile(emailRegexPattern),
		numberPattern:     regexp.MustCompile(numberRegexPattern),
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		abbreviations: strings.NewReplacer(
			"Mr.", "Mister",
			"Mrs.", "Misses",
			"Dr.", "Doctor",
			"St.", "Saint",
			"Capt.", "Captain",
			"Lt.", "Lieutenant",
		),
		punctuation: strings.NewReplacer(
			"—", " - ",
			"–", "-",
			"‒", "-",
			"…", "...",
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// Normalize collapses whitespace, straightens quotes and dashes, squeezes
// repeated punctuation and terminates the sentence. URLs and e-mail addresses
// pass through untouched.
func (n *Normalizer) Normalize(text, language string) string {
	text, preserved := n.preserve(text)

	if isEnglish(language) {
		text = n.abbreviations.Replace(text)
		text = n.numberPattern.ReplaceAllStringFunc(text, spellNumber)
	}

	text = n.punctuation.Replace(text)
	text = n.whitespacePattern.ReplaceAllString(text, " ")
	text = squeezePunctuation(strings.TrimSpace(text))

	for i, token := range preserved {
		text = strings.Replace(text, placeholder(i), token, 1)
	}

	return terminate(text)
}

func (n *Normalizer) preserve(text string) (string, []string) {
	var preserved []string

	replace := func(token string) string {
		preserved = append(preserved, token)

		return placeholder(len(preserved) - 1)
	}

	text = n.urlPattern.ReplaceAllStringFunc(text, replace)
	text = n.emailPattern.ReplaceAllStringFunc(text, replace)

	return text, preserved
}

// placeholder holds no digits, punctuation or spaces, so no rule rewrites it.
func placeholder(index int) string {
	return placeholderMark + strings.Repeat("x", index+1) + placeholderMark
}

func isEnglish(language string) bool {
	return language == "" || strings.EqualFold(language, "en") || strings.HasPrefix(strings.ToLower(language), "en-")
}

// squeezePunctuation keeps the first of a run of identical punctuation marks,
// except for periods so an ellipsis survives.
func squeezePunctuation(text string) string {
	var (
		builder strings.Builder
		last    rune
	)

	for _, char := range text {
		if char == last && unicode.IsPunct(char) && char != '.' {
			continue
		}

		builder.WriteRune(char)
		last = char
	}

	return builder.String()
}

func terminate(text string) string {
	if text == "" {
		return ""
	}

	lastChar, _ := utf8.DecodeLastRuneInString(text)

	switch lastChar {
	case '.', '!', '?', '"', '\'':
		return text
	default:
		return text + "."
	}
}

func spellNumber(digits string) string {
	number, err := strconv.Atoi(digits)
	if err != nil || number > maxSpelledOut {
		return digits
	}

	return integerToWords(number)
}

func integerToWords(number int) string {
	if number < baseTwenty {
		return ones[number]
	}

	var parts []string

	if number >= baseThousand {
		parts = append(parts, integerToWords(number/baseThousand), "thousand")
		number %= baseThousand

		if number == 0 {
			return strings.Join(parts, " ")
		}
	}

	if number >= baseHundred {
		parts = append(parts, ones[number/baseHundred], "hundred")
		number %= baseHundred

		if number == 0 {
			return strings.Join(parts, " ")
		}
	}

	switch {
	case number < baseTwenty:
		parts = append(parts, ones[number])
	case number%baseTen == 0:
		parts = append(parts, tens[number/baseTen])
	default:
		parts = append(parts, tens[number/baseTen]+"-"+ones[number%baseTen])
	}

	return strings.Join(parts, " ")
}
