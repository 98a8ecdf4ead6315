package game

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatcherConfig holds the two empirical thresholds of the answer matcher.
// They are configurable rather than hard invariants; the defaults come
// from play-testing.
type MatcherConfig struct {
	// WordOverlap is the minimum fraction of the target's distinct words
	// that must appear in the guess.
	WordOverlap float64
	// Similarity is the minimum normalized Levenshtein similarity.
	Similarity float64
}

// DefaultMatcherConfig returns the thresholds used in production.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{WordOverlap: 0.60, Similarity: 0.70}
}

var (
	bracketRe   = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]|\{[^}]*\}`)
	featuringRe = regexp.MustCompile(`(?i)\b(?:featuring|feat\.?|ft\.?)\b.*$`)

	// Strips combining marks after NFD decomposition, so "Beyoncé"
	// normalizes to "beyonce". Not a transliterator.
	accentFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Normalize lowercases, folds accents, strips bracketed qualifiers and
// trailing featuring clauses, replaces punctuation with spaces and
// collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	if folded, _, err := transform.String(accentFold, s); err == nil {
		s = folded
	}
	s = bracketRe.ReplaceAllString(s, " ")
	s = featuringRe.ReplaceAllString(s, " ")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Matches reports whether a free-text guess is close enough to the target
// title. Pure function; heuristics are applied in order and short-circuit
// on the first hit.
func Matches(guess, target string, cfg MatcherConfig) bool {
	g := Normalize(guess)
	t := Normalize(target)
	if g == "" || t == "" {
		return false
	}
	if g == t {
		return true
	}
	if strings.Contains(g, t) || strings.Contains(t, g) {
		return true
	}
	if wordOverlap(g, t) >= cfg.WordOverlap {
		return true
	}
	return similarity(g, t) >= cfg.Similarity
}

// wordOverlap returns the fraction of the target's distinct words that
// also occur in the guess. No stop-word filtering is applied; short
// common titles may over-match, which is tolerated.
func wordOverlap(guess, target string) float64 {
	targetWords := make(map[string]struct{})
	for _, w := range strings.Fields(target) {
		targetWords[w] = struct{}{}
	}
	if len(targetWords) == 0 {
		return 0
	}
	guessWords := make(map[string]struct{})
	for _, w := range strings.Fields(guess) {
		guessWords[w] = struct{}{}
	}
	hits := 0
	for w := range targetWords {
		if _, ok := guessWords[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(targetWords))
}

// similarity is 1 - levenshtein(a,b)/max(len(a),len(b)) over runes.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
