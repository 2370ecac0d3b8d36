// Package search ranks catalog items against a free-text query and picks
// related items for a product page.
package search

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/wichananm65/perfume-shop-backend/internal/catalog"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultLimit        = 5
	DefaultRelatedLimit = 10

	// Threshold is the worst normalised distance still counted as a match;
	// 0 is exact, 1 is nothing in common.
	Threshold = 0.4
)

var folder = cases.Fold()

// fold lower-cases s and strips combining marks so "Oúd" matches "oud".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return folder.String(out)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// tokenDistance is the edit distance between a and b divided by the longer
// token's length. A field token that starts with the query token counts as
// exact, so partially typed words still hit.
func tokenDistance(q, f string) float64 {
	if strings.HasPrefix(f, q) {
		return 0
	}
	longest := max(utf8.RuneCountInString(q), utf8.RuneCountInString(f))
	if longest == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(q, f)) / float64(longest)
}

// fieldScore averages, over the query tokens, the distance to the closest
// token of the field.
func fieldScore(query string, queryTokens []string, field string) float64 {
	folded := fold(field)
	if folded == "" {
		return 1
	}
	if strings.Contains(folded, query) {
		return 0
	}
	fieldTokens := tokenize(folded)
	if len(fieldTokens) == 0 {
		return 1
	}
	total := 0.0
	for _, q := range queryTokens {
		best := 1.0
		for _, f := range fieldTokens {
			if d := tokenDistance(q, f); d < best {
				best = d
			}
		}
		total += best
	}
	return total / float64(len(queryTokens))
}

// Score returns the best normalised distance of query against the item's
// name, brand and description. Lower is better.
func Score(query string, it catalog.Item) float64 {
	q := fold(strings.TrimSpace(query))
	qt := tokenize(q)
	if len(qt) == 0 {
		return 1
	}
	best := 1.0
	for _, field := range []string{it.Name, it.Brand, it.Description} {
		if s := fieldScore(q, qt, field); s < best {
			best = s
		}
	}
	return best
}

type scored struct {
	item  catalog.Item
	score float64
}

// Search returns up to n items matching query, best first. Equal scores are
// ordered by item id so results are stable. A blank query matches nothing.
func Search(query string, items []catalog.Item, n int) []catalog.Item {
	if n <= 0 {
		n = DefaultLimit
	}
	if strings.TrimSpace(query) == "" {
		return []catalog.Item{}
	}
	hits := make([]scored, 0)
	for _, it := range items {
		if s := Score(query, it); s <= Threshold {
			hits = append(hits, scored{item: it, score: s})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score < hits[b].score
		}
		return hits[a].item.ID < hits[b].item.ID
	})
	if len(hits) > n {
		hits = hits[:n]
	}
	out := make([]catalog.Item, len(hits))
	for i, h := range hits {
		out[i] = h.item
	}
	return out
}

// Related returns up to n other items in the same category, ordered by name
// then id.
func Related(current catalog.Item, items []catalog.Item, n int) []catalog.Item {
	if n <= 0 {
		n = DefaultRelatedLimit
	}
	out := make([]catalog.Item, 0)
	for _, it := range items {
		if it.ID == current.ID || it.Category != current.Category {
			continue
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Name != out[b].Name {
			return out[a].Name < out[b].Name
		}
		return out[a].ID < out[b].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
