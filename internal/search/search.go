// Package search implements substring search over pages. It is a linear scan
// ranked by recency only.
package search

import (
	"sort"
	"strings"

	"labbook/internal/textnorm"
	"labbook/pkg/domain"
)

// Search returns the pages whose title, aliases, tags or body contain query,
// ignoring case, most recently updated first. A blank query matches nothing.
func Search(pages []domain.Page, query string) []domain.Page {
	q := textnorm.Key(query)
	if q == "" {
		return nil
	}
	var out []domain.Page
	for _, p := range pages {
		if strings.Contains(haystack(p), q) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func haystack(p domain.Page) string {
	parts := make([]string, 0, 2+len(p.Aliases)+len(p.Tags))
	parts = append(parts, p.Title)
	parts = append(parts, p.Aliases...)
	parts = append(parts, p.Tags...)
	parts = append(parts, p.Body)
	return textnorm.Lower(strings.Join(parts, "\n"))
}
