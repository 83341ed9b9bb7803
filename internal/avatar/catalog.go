package avatar

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/reelwright/internal/content"
)

var _ content.Catalog = (*Catalog)(nil)

// ErrUnknownName is returned when a typed name matches no catalog entry.
var ErrUnknownName = errors.New("avatar: unknown name")

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// DefaultAvatars are public HeyGen avatars usable without an account-specific
// catalog.
var DefaultAvatars = map[string]string{
	"Angela": "Angela-inblackskirt-20220820",
	"Josh":   "josh-lite3-20230714",
	"Anna":   "Anna_public_3_20240108",
}

// CatalogOption is a functional option for [NewCatalog].
type CatalogOption func(*Catalog)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a name whose
// Double Metaphone codes overlap the input. Default: 0.70.
func WithPhoneticThreshold(threshold float64) CatalogOption {
	return func(c *Catalog) { c.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score when no name sounds
// like the input. Default: 0.85.
func WithFuzzyThreshold(threshold float64) CatalogOption {
	return func(c *Catalog) { c.fuzzyThreshold = threshold }
}

// Catalog maps display names of avatars and voices to service IDs and
// resolves what users type ("👩 angela", "Anjela") to the closest name.
// It is read-only after construction and safe for concurrent use.
type Catalog struct {
	avatars map[string]string
	voices  map[string]string

	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewCatalog returns a catalog over the given name→ID maps. A nil avatars
// map selects [DefaultAvatars]. Voices may be empty, in which case the
// render service default voice is used.
func NewCatalog(avatars, voices map[string]string, opts ...CatalogOption) *Catalog {
	if len(avatars) == 0 {
		avatars = DefaultAvatars
	}
	c := &Catalog{
		avatars:           maps.Clone(avatars),
		voices:            maps.Clone(voices),
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Avatars returns the avatar names in sorted order.
func (c *Catalog) Avatars() []string { return slices.Sorted(maps.Keys(c.avatars)) }

// Voices returns the voice names in sorted order.
func (c *Catalog) Voices() []string { return slices.Sorted(maps.Keys(c.voices)) }

// Avatar resolves a typed avatar name to its ID.
func (c *Catalog) Avatar(input string) (string, error) {
	return c.resolve(input, c.avatars)
}

// Voice resolves a typed voice name to its ID.
func (c *Catalog) Voice(input string) (string, error) {
	return c.resolve(input, c.voices)
}

func (c *Catalog) resolve(input string, entries map[string]string) (string, error) {
	name, ok := c.Match(input, slices.Sorted(maps.Keys(entries)))
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownName, input)
	}
	return entries[name], nil
}

// Match returns the name from names that best matches input.
//
// An exact token match wins outright. Otherwise names whose Double Metaphone
// codes overlap the input are ranked by Jaro-Winkler similarity and accepted
// above the phonetic threshold; when no name sounds alike, pure Jaro-Winkler
// similarity must reach the higher fuzzy threshold.
func (c *Catalog) Match(input string, names []string) (string, bool) {
	inTokens := tokens(input)
	if len(inTokens) == 0 {
		return "", false
	}
	inFull := strings.Join(inTokens, " ")
	inCodes := codesForTokens(inTokens)

	type candidate struct {
		name     string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, name := range names {
		nameTokens := tokens(name)
		if len(nameTokens) == 0 {
			continue
		}
		if containsAll(inTokens, nameTokens) {
			return name, true
		}

		score := bestJWScore(inTokens, nameTokens, inFull, strings.Join(nameTokens, " "))
		if codesOverlap(inCodes, codesForTokens(nameTokens)) {
			if score >= c.phoneticThreshold && (!best.phonetic || score > best.score) {
				best = candidate{name: name, score: score, phonetic: true}
			}
		} else if !best.phonetic && score >= c.fuzzyThreshold && score > best.score {
			best = candidate{name: name, score: score}
		}
	}
	return best.name, best.name != ""
}

// tokens lower-cases s and splits it into runs of letters and digits, so
// decorations such as emoji and parentheses are ignored.
func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsAll(haystack, needles []string) bool {
	for _, n := range needles {
		if !slices.Contains(haystack, n) {
			return false
		}
	}
	return true
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens.
func codesForTokens(toks []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(toks)*2)
	for _, t := range toks {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the highest Jaro-Winkler similarity of the full strings,
// the space-stripped strings and any token pair.
func bestJWScore(inTokens, nameTokens []string, inFull, nameFull string) float64 {
	score := matchr.JaroWinkler(inFull, nameFull, false)
	if len(inTokens) > 1 || len(nameTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inTokens, ""), strings.Join(nameTokens, ""), false); s > score {
			score = s
		}
	}
	for _, it := range inTokens {
		for _, nt := range nameTokens {
			if s := matchr.JaroWinkler(it, nt, false); s > score {
				score = s
			}
		}
	}
	return score
}
