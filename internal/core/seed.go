package core

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"labbook/pkg/domain"
)

//go:embed seed.yaml
var seedYAML []byte

type seedFile struct {
	Pages []seedPage `yaml:"pages"`
}

type seedPage struct {
	Type        string          `yaml:"type"`
	Title       string          `yaml:"title"`
	Aliases     []string        `yaml:"aliases"`
	Tags        []string        `yaml:"tags"`
	Favorite    bool            `yaml:"favorite"`
	Body        string          `yaml:"body"`
	Composition []seedComponent `yaml:"composition"`
}

type seedComponent struct {
	Name     string `yaml:"name"`
	Amount   string `yaml:"amount"`
	Location string `yaml:"location"`
}

// SeedSnapshot builds the example dataset, in display order, with fresh ids
// and every page stamped at now.
func SeedSnapshot(ids IDGenerator, now time.Time) (Snapshot, error) {
	var file seedFile
	if err := yaml.Unmarshal(seedYAML, &file); err != nil {
		return Snapshot{}, fmt.Errorf("parse seed: %w", err)
	}
	var out Snapshot
	for i, sp := range file.Pages {
		pageType, err := domain.ParsePageType(sp.Type)
		if err != nil {
			return Snapshot{}, fmt.Errorf("seed page %d: %w", i, err)
		}
		kind := domain.KindFor(pageType)
		if pageType == PageReagent {
			var r domain.Reagent
			for _, c := range sp.Composition {
				r.Composition = append(r.Composition, Component(c))
			}
			kind = r
		}
		out.Pages = append(out.Pages, Page{
			ID:        ids.NewID(),
			Title:     sp.Title,
			Aliases:   sp.Aliases,
			Tags:      sp.Tags,
			Body:      sp.Body,
			Favorite:  sp.Favorite,
			UpdatedAt: now,
			Kind:      kind,
		})
	}
	return out, nil
}

// Bootstrap seeds the example dataset when the store has never persisted any
// state. It reports whether seeding happened. A store whose pages were all
// deleted still counts as having state and is never reseeded.
func (s *Service) Bootstrap(ctx context.Context) (bool, error) {
	if s.store.HasState() {
		return false, nil
	}
	snapshot, err := SeedSnapshot(s.ids, s.now())
	if err != nil {
		return false, err
	}
	err = s.mutate(ctx, "seed", func(tx Transaction) (string, error) {
		return "", tx.ReplaceState(snapshot)
	})
	if err != nil {
		return false, err
	}
	s.logger.Info("seeded example dataset", "pages", len(snapshot.Pages))
	return true, nil
}
