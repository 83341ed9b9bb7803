// Package scenario implements the record micro-grammar of generated scenario
// batches.
//
// A batch is free text in which each scenario starts on its own line with a
// marker, an ordinal and, on the following lines, labelled fields:
//
//	batch    := preamble record* [epilogue]
//	record   := MARKER SP ordinal NL body
//	body     := any text up to the next MARKER at line start, or end of text
//	epilogue := a trailing paragraph after the last record (see [Batch.Epilogue])
//	field    := ["<b>" | "**"] LABEL ":" ["</b>" | "**"] SP text
//
// MARKER defaults to "🎥 Kontent" with the field labels "Hook" and "Kontent".
// Text without any record is a valid batch with zero items (see [Batch.Empty]);
// it is still deliverable as-is.
package scenario

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const (
	// DefaultMarker starts every record.
	DefaultMarker = "🎥 Kontent"

	// DefaultHookLabel labels the opening line of a scenario.
	DefaultHookLabel = "Hook"

	// DefaultBodyLabel labels the scenario description.
	DefaultBodyLabel = "Kontent"

	// DefaultBatchSize is the number of records requested per batch.
	DefaultBatchSize = 15
)

// Item is one numbered record of a batch.
type Item struct {
	// Number is the ordinal written after the marker.
	Number int

	// Hook is the text of the hook field, empty when absent.
	Hook string

	// Body is the text of the body field, empty when absent.
	Body string

	// Raw is the whole record from the marker through the end of its body,
	// with trailing whitespace removed.
	Raw string
}

// Batch is the parsed form of one generated text.
type Batch struct {
	// Raw is the text the batch was parsed from.
	Raw string

	// Preamble is the text before the first record, trimmed.
	Preamble string

	// Epilogue is a closing paragraph after the last record, trimmed. It is
	// only split off when no other record spans more than one paragraph;
	// otherwise it stays part of the last record's Raw.
	Epilogue string

	// Items are the records in text order. Duplicate ordinals are kept; use
	// [Batch.Find] to get the first one.
	Items []Item
}

// Empty reports whether no record was recognised.
func (b Batch) Empty() bool { return len(b.Items) == 0 }

// Find returns the first record numbered n.
func (b Batch) Find(n int) (Item, bool) {
	for _, it := range b.Items {
		if it.Number == n {
			return it, true
		}
	}
	return Item{}, false
}

// Numbers returns the distinct record ordinals in ascending order.
func (b Batch) Numbers() []int {
	nums := make([]int, 0, len(b.Items))
	for _, it := range b.Items {
		nums = append(nums, it.Number)
	}
	slices.Sort(nums)
	return slices.Compact(nums)
}

// Grammar parses and rebuilds batches for one marker and label set. A Grammar
// is immutable and safe for concurrent use.
type Grammar struct {
	marker string
	header *regexp.Regexp
	hook   *regexp.Regexp
	body   *regexp.Regexp
}

// NewGrammar returns a Grammar for the given marker and field labels. Empty
// arguments fall back to the defaults.
func NewGrammar(marker, hookLabel, bodyLabel string) *Grammar {
	if marker == "" {
		marker = DefaultMarker
	}
	if hookLabel == "" {
		hookLabel = DefaultHookLabel
	}
	if bodyLabel == "" {
		bodyLabel = DefaultBodyLabel
	}
	return &Grammar{
		marker: marker,
		header: regexp.MustCompile(`(?m)^[ \t]*` + regexp.QuoteMeta(marker) + `[ \t]*#?(\d+)[^\n]*`),
		hook:   fieldPattern(hookLabel, false),
		body:   fieldPattern(bodyLabel, true),
	}
}

func fieldPattern(label string, multiline bool) *regexp.Regexp {
	value := `([^\n]*)`
	if multiline {
		value = `([\s\S]*)`
	}
	return regexp.MustCompile(`(?mi)^[ \t]*(?:<b>|\*\*)?[ \t]*` + regexp.QuoteMeta(label) +
		`[ \t]*:[ \t]*(?:</b>|\*\*)?[ \t]*` + value)
}

var (
	defaultGrammar = NewGrammar("", "", "")
	blankLine      = regexp.MustCompile(`\n[ \t\r]*\n`)
)

// Default returns the grammar for [DefaultMarker].
func Default() *Grammar { return defaultGrammar }

// Parse parses text with the default grammar.
func Parse(text string) Batch { return defaultGrammar.Parse(text) }

// Marker returns the record marker.
func (g *Grammar) Marker() string { return g.marker }

// Header renders the first line of record n.
func (g *Grammar) Header(n int) string {
	return g.marker + " " + strconv.Itoa(n)
}

// Bounds returns the byte offsets at which records start in text.
func (g *Grammar) Bounds(text string) []int {
	locs := g.header.FindAllStringIndex(text, -1)
	out := make([]int, len(locs))
	for i, loc := range locs {
		out[i] = loc[0]
	}
	return out
}

// Segments cuts text into the preamble (if any) followed by one string per
// record. Concatenating the result yields text unchanged.
func (g *Grammar) Segments(text string) []string {
	bounds := g.Bounds(text)
	if len(bounds) == 0 {
		return []string{text}
	}
	var segs []string
	if bounds[0] > 0 {
		segs = append(segs, text[:bounds[0]])
	}
	for i, start := range bounds {
		end := len(text)
		if i+1 < len(bounds) {
			end = bounds[i+1]
		}
		segs = append(segs, text[start:end])
	}
	return segs
}

// Parse locates every record in text. It never fails: text without records
// yields an empty batch whose Preamble is the whole text.
func (g *Grammar) Parse(text string) Batch {
	b := Batch{Raw: text}
	locs := g.header.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		b.Preamble = strings.TrimSpace(text)
		return b
	}
	b.Preamble = strings.TrimSpace(text[:locs[0][0]])
	tail := len(text)
	if cut := epilogueStart(text, locs); cut >= 0 {
		b.Epilogue = strings.TrimSpace(text[cut:])
		tail = cut
	}

	for i, loc := range locs {
		end := tail
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		n, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		raw := strings.TrimRight(text[loc[0]:end], " \t\r\n")
		content := text[loc[1]:end]
		item := Item{
			Number: n,
			Raw:    strings.TrimLeft(raw, " \t"),
		}
		if m := g.hook.FindStringSubmatch(content); m != nil {
			item.Hook = strings.TrimSpace(m[1])
		}
		if m := g.body.FindStringSubmatch(content); m != nil {
			item.Body = strings.TrimSpace(m[1])
		}
		b.Items = append(b.Items, item)
	}
	return b
}

// epilogueStart returns the offset of the first blank line inside the last
// record's content, or -1. Batches whose earlier records contain blank lines
// use multi-paragraph bodies, so nothing is cut there.
func epilogueStart(text string, locs [][]int) int {
	if len(locs) < 2 {
		return -1
	}
	for i := 0; i+1 < len(locs); i++ {
		if blankLine.MatchString(strings.TrimSpace(text[locs[i][1]:locs[i+1][0]])) {
			return -1
		}
	}
	start := locs[len(locs)-1][1]
	content := strings.TrimRight(text[start:], " \t\r\n")
	lead := len(content) - len(strings.TrimLeft(content, " \t\r\n"))
	loc := blankLine.FindStringIndex(content[lead:])
	if loc == nil {
		return -1
	}
	return start + lead + loc[0]
}

// Preserve returns next with every kept record of prev restored verbatim.
//
// When both texts parse, each kept ordinal that next altered or dropped is
// replaced by (or re-inserted as) prev's record, and the result is rebuilt in
// ascending ordinal order followed by next's epilogue. Prev's epilogue is
// never copied. When nothing needed restoring, or either text has no records,
// next.Raw is returned unchanged. The second result is the number of restored
// records.
func (g *Grammar) Preserve(prev, next Batch, kept []int) (string, int) {
	if prev.Empty() || next.Empty() || len(kept) == 0 {
		return next.Raw, 0
	}

	records := make(map[int]string, len(next.Items))
	order := make([]int, 0, len(next.Items))
	for _, it := range next.Items {
		if _, dup := records[it.Number]; dup {
			continue
		}
		records[it.Number] = it.Raw
		order = append(order, it.Number)
	}

	restored := 0
	for _, n := range kept {
		old, ok := prev.Find(n)
		if !ok {
			continue
		}
		cur, present := records[n]
		if present && cur == old.Raw {
			continue
		}
		if !present {
			order = append(order, n)
		}
		records[n] = old.Raw
		restored++
	}
	if restored == 0 {
		return next.Raw, 0
	}

	slices.Sort(order)
	var sb strings.Builder
	if next.Preamble != "" {
		sb.WriteString(next.Preamble)
		sb.WriteString("\n\n")
	}
	for i, n := range order {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(records[n])
	}
	if next.Epilogue != "" {
		sb.WriteString("\n\n")
		sb.WriteString(next.Epilogue)
	}
	return sb.String(), restored
}
