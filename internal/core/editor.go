package core

import (
	"context"
	"strings"

	"labbook/pkg/domain"
)

// PageDraft is the editor form for a page. Aliases and Tags are the raw
// comma-separated inputs. Type-specific fields are ignored for other types.
type PageDraft struct {
	ID       string // empty creates a new page
	Type     PageType
	Title    string
	Aliases  string
	Tags     string
	Favorite bool
	// Body is the free text of protocol and duty pages and the preparation
	// method of reagents. Cell pages never keep a body.
	Body          string
	Composition   []Component
	Adhesion      string
	Medium        string
	PassageTiming string
}

// SplitList splits a comma-separated input, trimming items and dropping
// empty ones. Duplicates are kept.
func SplitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// DraftFromPage fills an editor form from a stored page.
func DraftFromPage(p Page) PageDraft {
	d := PageDraft{
		ID:       p.ID,
		Type:     p.Type(),
		Title:    p.Title,
		Aliases:  strings.Join(p.Aliases, ", "),
		Tags:     strings.Join(p.Tags, ", "),
		Favorite: p.Favorite,
		Body:     p.Body,
	}
	switch k := p.Kind.(type) {
	case domain.Reagent:
		d.Composition = append([]Component(nil), k.Composition...)
	case domain.Cell:
		d.Adhesion = string(k.Adhesion)
		d.Medium = k.Medium
		d.PassageTiming = k.PassageTiming
	}
	return d
}

// SavePage stores an editor form. A new page gets a fresh id; an existing
// cell page keeps its passage log.
func (s *Service) SavePage(ctx context.Context, d PageDraft) (Page, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return Page{}, domain.ValidationError{Field: "title", Message: "title is required"}
	}
	pageType, err := domain.ParsePageType(string(d.Type))
	if err != nil {
		return Page{}, err
	}
	var saved Page
	err = s.mutate(ctx, "save_page", func(tx Transaction) (string, error) {
		page := Page{ID: d.ID}
		var existing Page
		if page.ID == "" {
			page.ID = s.ids.NewID()
		} else {
			var ok bool
			if existing, ok = tx.Snapshot().FindPage(page.ID); !ok {
				return page.ID, domain.NotFoundError{Entity: EntityPage, ID: page.ID}
			}
		}
		page.Title = title
		page.Aliases = SplitList(d.Aliases)
		page.Tags = SplitList(d.Tags)
		page.Favorite = d.Favorite
		page.UpdatedAt = s.now()

		switch pageType {
		case PageReagent:
			var r domain.Reagent
			for _, c := range d.Composition {
				if c.Empty() {
					continue
				}
				r.Composition = append(r.Composition, Component{
					Name:     strings.TrimSpace(c.Name),
					Amount:   strings.TrimSpace(c.Amount),
					Location: strings.TrimSpace(c.Location),
				})
			}
			page.Body = d.Body
			page.Kind = r
		case PageCell:
			adhesion, ok := domain.ParseAdhesion(d.Adhesion)
			if !ok {
				return page.ID, domain.ValidationError{Field: "adhesion", Message: "unknown adhesion " + d.Adhesion}
			}
			c := domain.Cell{
				Adhesion:      adhesion,
				Medium:        strings.TrimSpace(d.Medium),
				PassageTiming: strings.TrimSpace(d.PassageTiming),
			}
			if prev, ok := existing.Cell(); ok {
				c.Passages = prev.Passages
			}
			page.Kind = c
		default:
			page.Body = d.Body
			page.Kind = domain.KindFor(pageType)
		}

		var err error
		saved, err = tx.UpsertPage(page)
		return page.ID, err
	})
	return saved, err
}
