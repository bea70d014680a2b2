// Package domain defines the persistent records, value types, error taxonomy
// and rule evaluation primitives used by labbook.
package domain

import (
	"strings"
	"time"
)

// PageType discriminates the four page variants.
type PageType string

// Supported page types.
const (
	PageProtocol PageType = "protocol"
	PageReagent  PageType = "reagent"
	PageDuty     PageType = "duty"
	PageCell     PageType = "cell"
)

// PageTypes lists every page type in display order.
var PageTypes = []PageType{PageProtocol, PageReagent, PageDuty, PageCell}

// Valid reports whether t names a known page variant.
func (t PageType) Valid() bool {
	switch t {
	case PageProtocol, PageReagent, PageDuty, PageCell:
		return true
	default:
		return false
	}
}

// ParsePageType converts user input into a PageType.
func ParsePageType(raw string) (PageType, error) {
	t := PageType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", ValidationError{Field: "type", Message: "unknown page type " + raw}
	}
	return t, nil
}

// Kind is the variant payload of a page. Exactly one Kind is attached to every
// page and only the reagent and cell kinds carry metadata.
type Kind interface {
	Type() PageType
	cloneKind() Kind
}

// Protocol is the kind of a protocol page.
type Protocol struct{}

// Duty is the kind of a duty checklist page.
type Duty struct{}

// Reagent is the kind of a reagent page; the page body holds the preparation method.
type Reagent struct {
	Composition []Component
}

// Component is one ingredient row of a reagent.
type Component struct {
	Name     string
	Amount   string
	Location string
}

// Empty reports whether every field of the row is blank.
func (c Component) Empty() bool {
	return strings.TrimSpace(c.Name) == "" && strings.TrimSpace(c.Amount) == "" && strings.TrimSpace(c.Location) == ""
}

// Adhesion describes how a cell line grows.
type Adhesion string

// Adhesion values.
const (
	Adherent   Adhesion = "adherent"
	Suspension Adhesion = "suspension"
)

// ParseAdhesion accepts the canonical values and the labels written by the
// original browser application. Blank input means adherent.
func ParseAdhesion(raw string) (Adhesion, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(Adherent), "付着":
		return Adherent, true
	case string(Suspension), "浮遊":
		return Suspension, true
	default:
		return "", false
	}
}

// Cell is the kind of a cell line page. Cell pages never carry a body.
type Cell struct {
	Adhesion      Adhesion
	Medium        string
	PassageTiming string
	Passages      []Passage
}

// Passage is one logged passaging event, newest first.
type Passage struct {
	At   time.Time
	Note string
}

func (Protocol) Type() PageType { return PageProtocol }
func (Duty) Type() PageType     { return PageDuty }
func (Reagent) Type() PageType  { return PageReagent }
func (Cell) Type() PageType     { return PageCell }

func (k Protocol) cloneKind() Kind { return k }
func (k Duty) cloneKind() Kind     { return k }

func (k Reagent) cloneKind() Kind {
	k.Composition = cloneSlice(k.Composition)
	return k
}

func (k Cell) cloneKind() Kind {
	k.Passages = cloneSlice(k.Passages)
	return k
}

// KindFor returns the empty kind for a page type.
func KindFor(t PageType) Kind {
	switch t {
	case PageProtocol:
		return Protocol{}
	case PageReagent:
		return Reagent{}
	case PageDuty:
		return Duty{}
	case PageCell:
		return Cell{Adhesion: Adherent}
	default:
		return nil
	}
}

// Page is a titled, taggable record of one of four kinds.
type Page struct {
	ID        string
	Title     string
	Aliases   []string
	Tags      []string
	Body      string
	Favorite  bool
	UpdatedAt time.Time
	Kind      Kind
}

// Type returns the page discriminator, or the empty string when no kind is attached.
func (p Page) Type() PageType {
	if p.Kind == nil {
		return ""
	}
	return p.Kind.Type()
}

// Reagent returns the reagent metadata when the page is a reagent.
func (p Page) Reagent() (Reagent, bool) {
	r, ok := p.Kind.(Reagent)
	return r, ok
}

// Cell returns the cell metadata when the page is a cell line.
func (p Page) Cell() (Cell, bool) {
	c, ok := p.Kind.(Cell)
	return c, ok
}

// Validate checks the fields every stored page must carry.
func (p Page) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ValidationError{Field: "id", Message: "page id is required"}
	}
	if strings.TrimSpace(p.Title) == "" {
		return ValidationError{Field: "title", Message: "title is required"}
	}
	if p.Kind == nil {
		return ValidationError{Field: "type", Message: "page type is required"}
	}
	return nil
}

// Clone returns a deep copy of the page.
func (p Page) Clone() Page {
	cp := p
	cp.Aliases = cloneSlice(p.Aliases)
	cp.Tags = cloneSlice(p.Tags)
	if p.Kind != nil {
		cp.Kind = p.Kind.cloneKind()
	}
	return cp
}

// cloneSlice copies values; empty input yields nil so that a page has a single
// canonical representation of "no aliases".
func cloneSlice[T any](in []T) []T {
	if len(in) == 0 {
		return nil
	}
	return append([]T(nil), in...)
}
