package core

import (
	"context"
	"strconv"
	"strings"
	"time"

	"labbook/pkg/domain"
)

// AddPassage logs a passage on a cell page, newest first. A nil at means now.
func (s *Service) AddPassage(ctx context.Context, cellID string, at *time.Time, note string) (Page, error) {
	return s.updateCell(ctx, "add_passage", cellID, func(c *domain.Cell) error {
		when := s.now()
		if at != nil {
			when = truncateMillis(*at)
		}
		c.Passages = append([]Passage{{At: when, Note: strings.TrimSpace(note)}}, c.Passages...)
		return nil
	})
}

// EditPassage rewrites the note of the passage at index and, when at is
// given, its time.
func (s *Service) EditPassage(ctx context.Context, cellID string, index int, at *time.Time, note string) (Page, error) {
	return s.updateCell(ctx, "edit_passage", cellID, func(c *domain.Cell) error {
		if err := checkPassageIndex(c, index); err != nil {
			return err
		}
		c.Passages[index].Note = strings.TrimSpace(note)
		if at != nil {
			c.Passages[index].At = truncateMillis(*at)
		}
		return nil
	})
}

// DeletePassage removes the passage at index.
func (s *Service) DeletePassage(ctx context.Context, cellID string, index int) (Page, error) {
	return s.updateCell(ctx, "delete_passage", cellID, func(c *domain.Cell) error {
		if err := checkPassageIndex(c, index); err != nil {
			return err
		}
		c.Passages = append(c.Passages[:index:index], c.Passages[index+1:]...)
		if len(c.Passages) == 0 {
			c.Passages = nil
		}
		return nil
	})
}

func checkPassageIndex(c *domain.Cell, index int) error {
	if index < 0 || index >= len(c.Passages) {
		return domain.ValidationError{Field: "index", Message: "passage index " + strconv.Itoa(index) + " out of range"}
	}
	return nil
}

func (s *Service) updateCell(ctx context.Context, op, id string, mutator func(*domain.Cell) error) (Page, error) {
	return s.updatePage(ctx, op, id, func(p *Page) error {
		c, ok := p.Cell()
		if !ok {
			return domain.ValidationError{Field: "type", Message: "page " + id + " is not a cell page"}
		}
		if err := mutator(&c); err != nil {
			return err
		}
		p.Kind = c
		return nil
	})
}
