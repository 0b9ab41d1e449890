package resolve

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Connector words and command verbs stripped from spoken requests, Hindi and
// English. The caller says "krishna ka bhajan bajao"; the catalogs know
// "krishna bhajan".
var defaultStopWords = []string{
	"ka", "ki", "ke", "ko", "kya",
	"play", "bajao", "chal", "chalo", "sunao", "suno",
	"on", "about", "the", "a", "an", "is", "are",
	"discourse", "vani", "pravachan", "talk", "speech",
}

// NormalizedQuery is the canonical form of a caller query: the surviving
// tokens plus their joined form used as the cache key component. Derived
// deterministically; never mutated once produced.
type NormalizedQuery struct {
	Tokens []string
	Joined string
}

type Normalizer struct {
	stop map[string]struct{}
	fold transform.Transformer
}

// NewNormalizer builds a normalizer with the default stop-word set plus any
// deployment-specific extras.
func NewNormalizer(extra ...string) *Normalizer {
	stop := make(map[string]struct{}, len(defaultStopWords)+len(extra))
	for _, word := range defaultStopWords {
		stop[word] = struct{}{}
	}
	for _, word := range extra {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" {
			stop[word] = struct{}{}
		}
	}
	return &Normalizer{
		stop: stop,
		// NFD plus combining-mark removal strips the diacritics that creep in
		// through romanized transliteration ("kṛṣṇa" → "krsna").
		fold: transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
	}
}

// Normalize lowercases, strips transliteration diacritics, tokenises and
// removes stop words. If filtering would empty the query it falls back to the
// full lowered string, so the key is never empty for non-empty input. Pure,
// no error path.
func (n *Normalizer) Normalize(raw string) NormalizedQuery {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if folded, _, err := transform.String(n.fold, lowered); err == nil {
		lowered = folded
	}
	if lowered == "" {
		return NormalizedQuery{}
	}

	all := tokenPattern.FindAllString(lowered, -1)
	kept := make([]string, 0, len(all))
	for _, token := range all {
		if _, skip := n.stop[token]; skip {
			continue
		}
		kept = append(kept, token)
	}

	if len(kept) == 0 {
		return NormalizedQuery{Tokens: all, Joined: lowered}
	}
	return NormalizedQuery{Tokens: kept, Joined: strings.Join(kept, " ")}
}
