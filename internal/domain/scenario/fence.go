package scenario

import "strings"

// FenceGuard splits a streamed agent reply into the part the client may
// see and the fenced updates block at the end. Once a fence opens,
// everything from the opening backticks onward is withheld; the full
// reply still reaches ExtractUpdates after the stream ends.
type FenceGuard struct {
	suppressing bool
	tail        string
}

func NewFenceGuard() *FenceGuard {
	return &FenceGuard{}
}

// Feed consumes one delta and returns the portion safe to show and
// speak. Backticks that could open a fence on a later delta are held
// back until resolved.
func (g *FenceGuard) Feed(delta string) string {
	if g.suppressing {
		return ""
	}

	s := g.tail + delta
	g.tail = ""

	if i := strings.Index(s, "```"); i >= 0 {
		g.suppressing = true
		return s[:i]
	}

	hold := 0
	for hold < 2 && hold < len(s) && s[len(s)-1-hold] == '`' {
		hold++
	}
	if hold > 0 {
		g.tail = s[len(s)-hold:]
		s = s[:len(s)-hold]
	}
	return s
}

// Flush releases any held-back backticks that never became a fence.
func (g *FenceGuard) Flush() string {
	if g.suppressing {
		return ""
	}
	out := g.tail
	g.tail = ""
	return out
}
