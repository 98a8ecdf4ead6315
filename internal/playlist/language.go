package playlist

import "strings"

var languageHints = map[string][]string{
	"it": {"che", "non", "per", "con", "una", "uno", "di", "nel", "della", "delle", "degli", "gli"},
	"es": {"que", "para", "con", "una", "uno", "del", "de", "las", "los", "el"},
	"en": {"the", "and", "you", "me", "of", "in", "on", "love"},
}

// detectLanguage guesses the language of a title/artist string from stop
// words and accent usage. Best-effort only, used to bias random catalog
// results toward the requested language; returns "" when nothing stands
// out.
func detectLanguage(text string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)
	words := strings.Fields(lower)

	scores := map[string]int{}
	for _, w := range words {
		for lang, hints := range languageHints {
			for _, h := range hints {
				if w == h {
					scores[lang]++
				}
			}
		}
	}
	if strings.ContainsAny(lower, "áéíóúñ") {
		scores["es"]++
	}
	if strings.ContainsAny(lower, "àèéìòù") {
		scores["it"]++
	}

	best, bestScore := "", 0
	for lang, score := range scores {
		if score > bestScore {
			best, bestScore = lang, score
		}
	}
	return best
}
