package utilities

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/ledgerline/propops/internal/datastore/entities"
)

// minSimilarity is the lowest normalized Levenshtein similarity accepted as a
// suggestion.
const minSimilarity = 0.8

// synonyms extends the matching vocabulary of the built-in types with the
// words that show up in GL account names.
var synonyms = map[string][]string{
	"water":    {"water", "h2o"},
	"electric": {"electric", "electricity", "power", "energy"},
	"gas":      {"gas", "propane"},
	"sewer":    {"sewer", "sewage", "wastewater"},
	"trash":    {"trash", "garbage", "refuse", "rubbish", "waste"},
	"internet": {"internet", "broadband", "wifi", "cable"},
}

// SuggestType picks the type whose key, label or synonyms best match a GL
// account name. It returns nil when nothing is close enough.
func SuggestType(accountName string, types []entities.UtilityType) *entities.UtilityType {
	words := tokenize(accountName)
	if len(words) == 0 {
		return nil
	}

	var best *entities.UtilityType
	bestScore := 0.0
	for i := range types {
		t := &types[i]
		for _, cand := range vocabulary(t) {
			for _, w := range words {
				if s := similarity(w, cand); s > bestScore {
					best, bestScore = t, s
				}
			}
		}
	}
	if bestScore < minSimilarity {
		return nil
	}
	return best
}

func vocabulary(t *entities.UtilityType) []string {
	out := append([]string{}, synonyms[t.Key]...)
	out = append(out, tokenize(strings.ReplaceAll(t.Key, "_", " "))...)
	out = append(out, tokenize(t.Label)...)
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len(a), len(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
