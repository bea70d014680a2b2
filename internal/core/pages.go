package core

import (
	"context"
	"sort"
	"strings"

	"labbook/internal/search"
	"labbook/internal/xref"
	"labbook/pkg/domain"
)

// ListPages returns the pages of type t, favorites first, then most recently
// updated first. Ties keep collection order. An empty t lists every page.
func (s *Service) ListPages(ctx context.Context, t PageType) []Page {
	var out []Page
	s.view(ctx, func(v TransactionView) {
		for _, p := range v.ListPages() {
			if t == "" || p.Type() == t {
				out = append(out, p)
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Favorite != out[j].Favorite {
			return out[i].Favorite
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// GetPage returns the page with id.
func (s *Service) GetPage(ctx context.Context, id string) (Page, bool) {
	var (
		page Page
		ok   bool
	)
	s.view(ctx, func(v TransactionView) { page, ok = v.FindPage(id) })
	return page, ok
}

// UpsertPage stores p, replacing the page with the same id in place or
// inserting it at the front. UpdatedAt is always stamped with the clock; an
// empty id gets a fresh one.
func (s *Service) UpsertPage(ctx context.Context, p Page) (Page, error) {
	var saved Page
	err := s.mutate(ctx, "upsert_page", func(tx Transaction) (string, error) {
		if strings.TrimSpace(p.ID) == "" {
			p.ID = s.ids.NewID()
		}
		p.UpdatedAt = s.now()
		var err error
		saved, err = tx.UpsertPage(p)
		return p.ID, err
	})
	return saved, err
}

// DeletePage removes the page. Deleting a missing page is a no-op; runs that
// reference the page are left untouched.
func (s *Service) DeletePage(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_page", func(tx Transaction) (string, error) {
		tx.DeletePage(id)
		return id, nil
	})
}

// ToggleFavorite flips the favorite flag and stamps updatedAt.
func (s *Service) ToggleFavorite(ctx context.Context, id string) (Page, error) {
	return s.updatePage(ctx, "toggle_favorite", id, func(p *Page) error {
		p.Favorite = !p.Favorite
		return nil
	})
}

// updatePage applies mutator to the stored page and stamps updatedAt.
func (s *Service) updatePage(ctx context.Context, op, id string, mutator func(*Page) error) (Page, error) {
	var saved Page
	err := s.mutate(ctx, op, func(tx Transaction) (string, error) {
		var err error
		saved, err = tx.UpdatePage(id, func(p *Page) error {
			if err := mutator(p); err != nil {
				return err
			}
			p.UpdatedAt = s.now()
			return p.Validate()
		})
		return id, err
	})
	return saved, err
}

// FindPageByTitleOrAlias looks a page up by title or alias, case-insensitively.
func (s *Service) FindPageByTitleOrAlias(ctx context.Context, name string) (Page, bool) {
	var (
		page Page
		ok   bool
	)
	s.view(ctx, func(v TransactionView) { page, ok = xref.FindPageByTitleOrAlias(v.ListPages(), name) })
	return page, ok
}

// ResolveLink resolves a [[name]] marker found on the page fromPageID. An
// unknown name yields a creation target typed after the source page.
func (s *Service) ResolveLink(ctx context.Context, name, fromPageID string) xref.Target {
	var target xref.Target
	s.view(ctx, func(v TransactionView) {
		var fromType PageType
		if from, ok := v.FindPage(fromPageID); ok {
			fromType = from.Type()
		}
		target = xref.Resolve(v.ListPages(), name, fromType)
	})
	return target
}

// OutgoingLinks resolves every distinct link carried by the page, in the
// order they first appear.
func (s *Service) OutgoingLinks(ctx context.Context, pageID string) ([]xref.Target, error) {
	var (
		targets []xref.Target
		err     error
	)
	s.view(ctx, func(v TransactionView) {
		from, ok := v.FindPage(pageID)
		if !ok {
			err = domain.NotFoundError{Entity: EntityPage, ID: pageID}
			return
		}
		pages := v.ListPages()
		for _, name := range xref.References(from) {
			targets = append(targets, xref.Resolve(pages, name, from.Type()))
		}
	})
	return targets, err
}

// Backlinks lists the pages linking to pageID by its title or an alias.
func (s *Service) Backlinks(ctx context.Context, pageID string) ([]Page, error) {
	var (
		out []Page
		err error
	)
	s.view(ctx, func(v TransactionView) {
		target, ok := v.FindPage(pageID)
		if !ok {
			err = domain.NotFoundError{Entity: EntityPage, ID: pageID}
			return
		}
		out = xref.Backlinks(v.ListPages(), target)
	})
	return out, err
}

// Search returns the pages whose text contains query, most recent first.
func (s *Service) Search(ctx context.Context, query string) []Page {
	var out []Page
	s.view(ctx, func(v TransactionView) { out = search.Search(v.ListPages(), query) })
	return out
}
