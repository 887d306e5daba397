package tts

import (
	"strings"
	"unicode/utf8"
)

// maxUnitChars caps the length of one synthesis unit. Longer sentences
// are split at the nearest word boundary.
const maxUnitChars = 200

var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true, '…': true,
	'。': true, '！': true, '？': true,
}

// Segmenter groups streamed model text into speakable units so that
// synthesis can start before the full reply exists. Units end at
// sentence punctuation and never exceed maxUnitChars.
type Segmenter struct {
	buf strings.Builder
}

func NewSegmenter() *Segmenter {
	return &Segmenter{}
}

// Feed appends one text delta and returns any units that completed.
func (s *Segmenter) Feed(delta string) []string {
	s.buf.WriteString(delta)
	var units []string
	for {
		unit, rest, ok := takeUnit(s.buf.String())
		if !ok {
			break
		}
		units = append(units, unit)
		s.buf.Reset()
		s.buf.WriteString(rest)
	}
	return units
}

// Flush returns the trailing partial unit at end of stream.
func (s *Segmenter) Flush() string {
	out := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	return out
}

// takeUnit extracts one complete unit from the head of text. A unit
// completes at a sentence ender or when the buffer exceeds the cap.
func takeUnit(text string) (unit, rest string, ok bool) {
	runeCount := 0
	lastSpace := -1
	for i, r := range text {
		runeCount++
		if sentenceEnders[r] {
			end := i + utf8.RuneLen(r)
			unit = strings.TrimSpace(text[:end])
			rest = strings.TrimLeft(text[end:], " ")
			if unit == "" {
				continue
			}
			return unit, rest, true
		}
		if r == ' ' {
			lastSpace = i
		}
		if runeCount >= maxUnitChars {
			cut := lastSpace
			if cut <= 0 {
				cut = i
			}
			unit = strings.TrimSpace(text[:cut])
			rest = strings.TrimLeft(text[cut:], " ")
			if unit == "" {
				return "", "", false
			}
			return unit, rest, true
		}
	}
	return "", "", false
}
