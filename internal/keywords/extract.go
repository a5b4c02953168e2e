// Package keywords classifies FDS text into a coarse system type and
// collects the equipment, operation and control terms it mentions.
package keywords

import (
	"regexp"
	"strings"

	"github.com/hmi-forge/backend/internal/models"
)

// MinScore is the lowest category score that can win.
const MinScore = 3

const (
	distinctBonus = 2
	primaryBonus  = 5
)

type compiledCategory struct {
	name     string
	keywords []*regexp.Regexp
	primary  []*regexp.Regexp
}

var compiled = compileCatalog(Catalog)

func compileCatalog(cats []Category) []compiledCategory {
	out := make([]compiledCategory, len(cats))
	for i, c := range cats {
		out[i] = compiledCategory{
			name:     c.Name,
			keywords: wordPatterns(c.Keywords),
			primary:  wordPatterns(c.Primary),
		}
	}
	return out
}

func wordPatterns(words []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		res[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return res
}

// Extract builds the keyword profile of text. It is deterministic and
// has no side effects.
func Extract(text string) models.KeywordProfile {
	scores := Score(text)
	lower := strings.ToLower(text)

	return models.KeywordProfile{
		SystemType: pickSystemType(scores),
		Components: matchTerms(lower, ComponentTerms),
		Operations: matchTerms(lower, OperationTerms),
		Controls:   matchTerms(lower, ControlTerms),
		Scores:     scores,
	}
}

// Score returns the score of every catalog category that matched at all.
func Score(text string) map[string]int {
	scores := make(map[string]int)
	for _, c := range compiled {
		score := 0
		distinct := 0
		for _, re := range c.keywords {
			n := len(re.FindAllStringIndex(text, -1))
			if n > 0 {
				score += n
				distinct++
			}
		}
		if distinct >= 2 {
			score += distinctBonus * distinct
		}
		for _, re := range c.primary {
			score += primaryBonus * len(re.FindAllStringIndex(text, -1))
		}
		if score > 0 {
			scores[c.name] = score
		}
	}
	return scores
}

func pickSystemType(scores map[string]int) string {
	best := models.SystemTypeIndustrialControl
	bestScore := MinScore - 1
	for _, c := range Catalog {
		if s := scores[c.Name]; s > bestScore {
			best = c.Name
			bestScore = s
		}
	}
	return best
}

// Match returns the terms of vocabulary that occur in text, in
// vocabulary order.
func Match(text string, vocabulary []string) []string {
	return matchTerms(strings.ToLower(text), vocabulary)
}

func matchTerms(lower string, terms []string) []string {
	found := make([]string, 0)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			found = append(found, t)
		}
	}
	return found
}

// IsKnownSystemType reports whether t is a catalog name or the default.
func IsKnownSystemType(t string) bool {
	if t == models.SystemTypeIndustrialControl {
		return true
	}
	for _, c := range Catalog {
		if c.Name == t {
			return true
		}
	}
	return false
}
