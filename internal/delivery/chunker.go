// Package delivery splits outbound text into parts that fit a messaging
// platform's per-message ceiling and sends them in order.
//
// Lengths are measured in runes, so a part never ends inside a multi-byte
// character. Two modes exist: [Chunker.Generic] for plain text such as
// transcripts, and [Chunker.Structural] for generated scenario batches, which
// keeps whole records together whenever a record fits.
package delivery

import (
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/reelwright/internal/scenario"
)

// DefaultLimit stays safely under Discord's 4096-character embed description.
const DefaultLimit = 4000

// sentenceSep is the delimiter generic mode packs on.
const sentenceSep = ". "

// Chunker splits text for one message ceiling and record grammar. The zero
// value uses [DefaultLimit] and the default scenario grammar.
type Chunker struct {
	// Limit is the maximum part length in runes.
	Limit int

	// Grammar locates record boundaries for structural mode.
	Grammar *scenario.Grammar
}

func (c Chunker) limit() int {
	if c.Limit <= 0 {
		return DefaultLimit
	}
	return c.Limit
}

func (c Chunker) grammar() *scenario.Grammar {
	if c.Grammar == nil {
		return scenario.Default()
	}
	return c.Grammar
}

// Generic splits text with the default grammar. See [Chunker.Generic].
func Generic(text string, limit int) []string {
	return Chunker{Limit: limit}.Generic(text)
}

// Structural splits text with the default grammar. See [Chunker.Structural].
func Structural(text string, limit int) []string {
	return Chunker{Limit: limit}.Structural(text)
}

// Generic splits text at sentence boundaries, greedily packing sentences into
// parts of at most Limit runes. A sentence longer than Limit is packed word by
// word; a single word longer than Limit is cut at rune boundaries.
//
// Text that already fits, including the empty string, is returned as the only
// part. Otherwise no part is empty.
func (c Chunker) Generic(text string) []string {
	limit := c.limit()
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	p := packer{limit: limit, sep: " "}
	sentences := strings.Split(text, sentenceSep)
	for i, s := range sentences {
		s = strings.TrimSpace(s)
		if i < len(sentences)-1 {
			s += "."
		}
		if s == "" || s == "." {
			continue
		}
		if runeLen(s) <= limit {
			p.add(s)
			continue
		}
		for _, w := range strings.Fields(s) {
			if runeLen(w) <= limit {
				p.add(w)
				continue
			}
			p.flush()
			for _, piece := range hardSplit(w, limit) {
				p.add(piece)
			}
		}
	}
	if parts := p.finish(); len(parts) > 0 {
		return parts
	}
	// Only whitespace: nothing to pack, but the text is still too long.
	return hardSplit(text, limit)
}

// Structural splits text into parts that each hold the preamble or whole
// records, packing greedily so the part count is minimal for the record
// order. A record longer than Limit on its own is split with
// [Chunker.Generic] and occupies its parts alone. Text without records falls
// back to generic mode.
func (c Chunker) Structural(text string) []string {
	limit := c.limit()
	segs := c.grammar().Segments(text)
	if len(segs) == 1 {
		return c.Generic(text)
	}

	var (
		parts []string
		cur   string
	)
	flush := func() {
		if t := strings.TrimSpace(cur); t != "" {
			parts = append(parts, t)
		}
		cur = ""
	}
	for _, seg := range segs {
		if strings.TrimSpace(seg) == "" {
			cur += seg
			continue
		}
		if runeLen(strings.TrimSpace(cur+seg)) <= limit {
			cur += seg
			continue
		}
		flush()
		if runeLen(strings.TrimSpace(seg)) <= limit {
			cur = seg
			continue
		}
		parts = append(parts, c.Generic(strings.TrimSpace(seg))...)
	}
	flush()
	if len(parts) == 0 {
		return []string{text}
	}
	return parts
}

// packer accumulates tokens joined by sep into parts of at most limit runes.
type packer struct {
	limit  int
	sep    string
	parts  []string
	cur    strings.Builder
	curLen int
}

func (p *packer) add(tok string) {
	n := runeLen(tok)
	if p.curLen > 0 && p.curLen+runeLen(p.sep)+n > p.limit {
		p.flush()
	}
	if p.curLen > 0 {
		p.cur.WriteString(p.sep)
		p.curLen += runeLen(p.sep)
	}
	p.cur.WriteString(tok)
	p.curLen += n
}

func (p *packer) flush() {
	if p.curLen > 0 {
		p.parts = append(p.parts, p.cur.String())
	}
	p.cur.Reset()
	p.curLen = 0
}

func (p *packer) finish() []string {
	p.flush()
	return p.parts
}

// hardSplit cuts s into pieces of at most limit runes.
func hardSplit(s string, limit int) []string {
	var out []string
	for s != "" {
		i, n := 0, 0
		for i < len(s) && n < limit {
			_, size := utf8.DecodeRuneInString(s[i:])
			i += size
			n++
		}
		out = append(out, s[:i])
		s = s[i:]
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
