// Package xref resolves [[Name]] cross-links against page titles and aliases.
// Everything here is a pure function over a slice of pages in collection order.
package xref

import (
	"regexp"
	"strings"

	"labbook/internal/textnorm"
	"labbook/pkg/domain"
)

var linkPattern = regexp.MustCompile(`\[\[([^\]]+)\]\]`)

// Link is one [[Name]] marker found in free text. Start and End are byte
// offsets of the whole marker.
type Link struct {
	Name  string
	Start int
	End   int
}

// Links extracts the markers in text in order of appearance. Names are
// trimmed and markers whose name is blank are skipped.
func Links(text string) []Link {
	var out []Link
	for _, m := range linkPattern.FindAllStringSubmatchIndex(text, -1) {
		name := strings.TrimSpace(text[m[2]:m[3]])
		if name == "" {
			continue
		}
		out = append(out, Link{Name: name, Start: m[0], End: m[1]})
	}
	return out
}

// LinkNames returns the distinct link names of text, first occurrence first.
func LinkNames(text string) []string {
	var names []string
	seen := map[string]struct{}{}
	for _, l := range Links(text) {
		if _, ok := seen[l.Name]; ok {
			continue
		}
		seen[l.Name] = struct{}{}
		names = append(names, l.Name)
	}
	return names
}

// FindPageByTitleOrAlias returns the first page, in the given order, whose
// title or one of whose aliases equals name ignoring case. Each page is
// checked for both before moving to the next. Blank names never match.
func FindPageByTitleOrAlias(pages []domain.Page, name string) (domain.Page, bool) {
	key := textnorm.Key(name)
	if key == "" {
		return domain.Page{}, false
	}
	for _, p := range pages {
		if Matches(p, key) {
			return p, true
		}
	}
	return domain.Page{}, false
}

// Matches reports whether p answers to the already normalised key.
func Matches(p domain.Page, key string) bool {
	if textnorm.Lower(p.Title) == key {
		return true
	}
	for _, alias := range p.Aliases {
		if textnorm.Lower(alias) == key {
			return true
		}
	}
	return false
}

// DefaultNewType picks the type of a page created from an unresolved link:
// reagent inside a protocol, otherwise the linking page's own type, and
// protocol when there is no linking page.
func DefaultNewType(from domain.PageType) domain.PageType {
	switch {
	case from == domain.PageProtocol:
		return domain.PageReagent
	case from.Valid():
		return from
	default:
		return domain.PageProtocol
	}
}

// Target is the outcome of activating a link: an existing page, or a request
// to create one pre-filled with Title and Type.
type Target struct {
	Page   domain.Page
	Exists bool
	Title  string
	Type   domain.PageType
}

// Resolve looks name up and falls back to a creation target typed by the
// linking page.
func Resolve(pages []domain.Page, name string, from domain.PageType) Target {
	if p, ok := FindPageByTitleOrAlias(pages, name); ok {
		return Target{Page: p, Exists: true, Title: p.Title, Type: p.Type()}
	}
	return Target{Title: strings.TrimSpace(name), Type: DefaultNewType(from)}
}

// References returns every link name carried by a page: its body and, for
// reagents, the names in its composition rows.
func References(p domain.Page) []string {
	var b strings.Builder
	b.WriteString(p.Body)
	if r, ok := p.Reagent(); ok {
		for _, c := range r.Composition {
			b.WriteByte('\n')
			b.WriteString(c.Name)
		}
	}
	return LinkNames(b.String())
}

// Backlinks lists the pages, in collection order, that link to target by its
// title or any alias. A page never links back to itself.
func Backlinks(pages []domain.Page, target domain.Page) []domain.Page {
	var out []domain.Page
	for _, p := range pages {
		if p.ID == target.ID {
			continue
		}
		for _, name := range References(p) {
			if Matches(target, textnorm.Key(name)) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
