package scenario

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrInvalidSelection is returned by [ParseSelection] when the input is not a
// list of ordinals or names no ordinal inside the batch.
var ErrInvalidSelection = errors.New("scenario: invalid selection")

// maxRangeSpan bounds "a-b" ranges so a typo like "1-1000000" cannot
// allocate without limit.
const maxRangeSpan = 1000

// Selection is the set of records a user keeps from the last batch.
type Selection struct {
	// All is true for the "keep all" signal.
	All bool

	// Numbers are the kept ordinals, sorted ascending without duplicates.
	Numbers []int

	// Ignored are ordinals the user typed that fall outside 1..size.
	Ignored []int
}

// KeepAll returns the selection of every ordinal in 1..size.
func KeepAll(size int) Selection {
	nums := make([]int, size)
	for i := range nums {
		nums[i] = i + 1
	}
	return Selection{All: true, Numbers: nums}
}

// String renders the kept ordinals as "1, 5, 10".
func (s Selection) String() string {
	parts := make([]string, len(s.Numbers))
	for i, n := range s.Numbers {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

// Contains reports whether n is kept.
func (s Selection) Contains(n int) bool {
	_, ok := slices.BinarySearch(s.Numbers, n)
	return ok
}

// ParseSelection parses a free-text list of ordinals such as "1, 5, 10",
// "1 5 10" or "3-5". Separators are commas, semicolons and whitespace.
// Ordinals outside 1..size are collected in Ignored; if none remain the
// selection is invalid. Any token that is not a number or a range makes the
// whole input invalid.
func ParseSelection(text string, size int) (Selection, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) == 0 {
		return Selection{}, fmt.Errorf("%w: no ordinals given", ErrInvalidSelection)
	}

	var sel Selection
	for _, f := range fields {
		f = strings.TrimSuffix(strings.TrimPrefix(f, "#"), ".")
		lo, hi, err := parseToken(f)
		if err != nil {
			return Selection{}, fmt.Errorf("%w: %q: %w", ErrInvalidSelection, f, err)
		}
		// Stop on n == hi so hi == MaxInt terminates.
		for n := lo; ; n++ {
			if n < 1 || n > size {
				sel.Ignored = append(sel.Ignored, n)
			} else {
				sel.Numbers = append(sel.Numbers, n)
			}
			if n == hi {
				break
			}
		}
	}

	slices.Sort(sel.Numbers)
	sel.Numbers = slices.Compact(sel.Numbers)
	slices.Sort(sel.Ignored)
	sel.Ignored = slices.Compact(sel.Ignored)

	if len(sel.Numbers) == 0 {
		return sel, fmt.Errorf("%w: no ordinal within 1..%d", ErrInvalidSelection, size)
	}
	return sel, nil
}

func parseToken(tok string) (lo, hi int, err error) {
	a, b, isRange := strings.Cut(tok, "-")
	if !isRange {
		n, err := strconv.Atoi(tok)
		return n, n, err
	}
	if lo, err = strconv.Atoi(a); err != nil {
		return 0, 0, err
	}
	if hi, err = strconv.Atoi(b); err != nil {
		return 0, 0, err
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi-lo > maxRangeSpan {
		return 0, 0, errors.New("range too wide")
	}
	return lo, hi, nil
}

// IgnoredString renders at most limit ignored ordinals as "16, 17, …".
func (s Selection) IgnoredString(limit int) string {
	shown := s.Ignored
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	text := Selection{Numbers: shown}.String()
	if len(shown) < len(s.Ignored) {
		text += ", …"
	}
	return text
}

// ParseOrdinal parses a single ordinal such as "7" or "#7".
func ParseOrdinal(text string) (int, error) {
	t := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(text), "#"), ".")
	n, err := strconv.Atoi(t)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q is not an ordinal", ErrInvalidSelection, text)
	}
	return n, nil
}
