package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// The wire layout below is shared by the persisted payload, export files and
// import payloads. It stays readable by backups written by the browser app.

type wireSnapshot struct {
	Pages []wirePage `json:"pages"`
	Runs  []wireRun  `json:"runs"`
}

type wirePage struct {
	ID          string       `json:"id"`
	Type        PageType     `json:"type"`
	Title       string       `json:"title"`
	Aliases     []string     `json:"aliases"`
	Tags        []string     `json:"tags"`
	Body        string       `json:"body"`
	Favorite    bool         `json:"favorite"`
	UpdatedAt   epochMillis  `json:"updatedAt"`
	MetaReagent *wireReagent `json:"metaReagent,omitempty"`
	MetaCell    *wireCell    `json:"metaCell,omitempty"`
}

type wireReagent struct {
	Composition []wireComponent `json:"composition"`
}

type wireComponent struct {
	Name     string `json:"name"`
	Amount   string `json:"amount"`
	Location string `json:"location"`
}

type wireCell struct {
	Adhesion      string        `json:"adhesion"`
	Medium        string        `json:"medium"`
	PassageTiming string        `json:"passageTiming"`
	Passages      []wirePassage `json:"passages"`
}

type wirePassage struct {
	At   epochMillis `json:"at"`
	Note string      `json:"note"`
}

type wireRun struct {
	ID                    string       `json:"id"`
	ProtocolID            string       `json:"protocolId"`
	ProtocolTitleSnapshot string       `json:"protocolTitleSnapshot"`
	ProtocolBodySnapshot  string       `json:"protocolBodySnapshot"`
	StartedAt             epochMillis  `json:"startedAt"`
	FinishedAt            *epochMillis `json:"finishedAt"`
	Notes                 string       `json:"notes"`
	Plan                  wirePlan     `json:"plan"`
	CellID                *string      `json:"cellId"`
}

type wirePlan struct {
	Blocks []wireBlock `json:"blocks"`
}

type wireBlock struct {
	Label   string      `json:"label"`
	StartAt epochMillis `json:"startAt"`
	EndAt   epochMillis `json:"endAt"`
}

// epochMillis is a timestamp carried as milliseconds since the Unix epoch.
// Fractional values written by older exports are rounded.
type epochMillis int64

func millisOf(t time.Time) epochMillis {
	if t.IsZero() {
		return 0
	}
	return epochMillis(t.UnixMilli())
}

func (m epochMillis) Time() time.Time {
	if m == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(m)).UTC()
}

func (m epochMillis) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(m), 10), nil
}

func (m *epochMillis) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", data, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("timestamp %s is not finite", data)
	}
	*m = epochMillis(math.Round(f))
	return nil
}

// EncodeSnapshot serializes the state using the persisted layout. Empty
// collections are written as [] and absent optional values as null.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	return marshalWire(toWire(s), "")
}

// EncodeSnapshotIndent serializes the state as 2-space indented JSON without a
// trailing newline, the layout used for export files.
func EncodeSnapshotIndent(s Snapshot) ([]byte, error) {
	return marshalWire(toWire(s), "  ")
}

// marshalWire encodes without HTML escaping so bodies containing <, > or &
// stay byte-identical to what the browser app wrote. The encoder's trailing
// newline is dropped.
func marshalWire(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// DecodeSnapshot parses a persisted or imported payload. Both "pages" and
// "runs" must be present and be arrays, and every record needs an id unique
// within its collection; anything else is a FormatError.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return Snapshot{}, FormatError{Reason: "payload must be a JSON object with pages and runs"}
	}
	for _, key := range []string{"pages", "runs"} {
		raw, ok := top[key]
		if !ok {
			return Snapshot{}, FormatError{Reason: "missing " + key}
		}
		if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
			return Snapshot{}, FormatError{Reason: key + " must be an array"}
		}
	}
	var wire wireSnapshot
	if err := json.Unmarshal(top["pages"], &wire.Pages); err != nil {
		return Snapshot{}, FormatError{Reason: "pages: " + err.Error()}
	}
	if err := json.Unmarshal(top["runs"], &wire.Runs); err != nil {
		return Snapshot{}, FormatError{Reason: "runs: " + err.Error()}
	}
	return fromWire(wire)
}

func toWire(s Snapshot) wireSnapshot {
	out := wireSnapshot{
		Pages: make([]wirePage, 0, len(s.Pages)),
		Runs:  make([]wireRun, 0, len(s.Runs)),
	}
	for _, p := range s.Pages {
		out.Pages = append(out.Pages, pageToWire(p))
	}
	for _, r := range s.Runs {
		out.Runs = append(out.Runs, runToWire(r))
	}
	return out
}

func pageToWire(p Page) wirePage {
	w := wirePage{
		ID:        p.ID,
		Type:      p.Type(),
		Title:     p.Title,
		Aliases:   nonNil(p.Aliases),
		Tags:      nonNil(p.Tags),
		Body:      p.Body,
		Favorite:  p.Favorite,
		UpdatedAt: millisOf(p.UpdatedAt),
	}
	switch k := p.Kind.(type) {
	case Reagent:
		comp := make([]wireComponent, 0, len(k.Composition))
		for _, c := range k.Composition {
			comp = append(comp, wireComponent(c))
		}
		w.MetaReagent = &wireReagent{Composition: comp}
	case Cell:
		passages := make([]wirePassage, 0, len(k.Passages))
		for _, ps := range k.Passages {
			passages = append(passages, wirePassage{At: millisOf(ps.At), Note: ps.Note})
		}
		adhesion := k.Adhesion
		if adhesion == "" {
			adhesion = Adherent
		}
		w.MetaCell = &wireCell{
			Adhesion:      string(adhesion),
			Medium:        k.Medium,
			PassageTiming: k.PassageTiming,
			Passages:      passages,
		}
	}
	return w
}

func runToWire(r Run) wireRun {
	w := wireRun{
		ID:                    r.ID,
		ProtocolID:            r.ProtocolID,
		ProtocolTitleSnapshot: r.ProtocolTitleSnapshot,
		ProtocolBodySnapshot:  r.ProtocolBodySnapshot,
		StartedAt:             millisOf(r.StartedAt),
		Notes:                 r.Notes,
		Plan:                  wirePlan{Blocks: make([]wireBlock, 0, len(r.Plan.Blocks))},
	}
	if r.FinishedAt != nil {
		ms := millisOf(*r.FinishedAt)
		w.FinishedAt = &ms
	}
	if r.CellID != "" {
		id := r.CellID
		w.CellID = &id
	}
	for _, b := range r.Plan.Blocks {
		w.Plan.Blocks = append(w.Plan.Blocks, wireBlock{Label: b.Label, StartAt: millisOf(b.StartAt), EndAt: millisOf(b.EndAt)})
	}
	return w
}

func fromWire(w wireSnapshot) (Snapshot, error) {
	var out Snapshot
	for i, wp := range w.Pages {
		p, err := pageFromWire(wp)
		if err != nil {
			return Snapshot{}, FormatError{Reason: fmt.Sprintf("pages[%d]: %s", i, err.Error())}
		}
		out.Pages = append(out.Pages, p)
	}
	for _, wr := range w.Runs {
		out.Runs = append(out.Runs, runFromWire(wr))
	}
	if err := out.CheckIDs(); err != nil {
		return Snapshot{}, err
	}
	return out, nil
}

func pageFromWire(w wirePage) (Page, error) {
	p := Page{
		ID:        w.ID,
		Title:     w.Title,
		Aliases:   cloneSlice(w.Aliases),
		Tags:      cloneSlice(w.Tags),
		Body:      w.Body,
		Favorite:  w.Favorite,
		UpdatedAt: w.UpdatedAt.Time(),
	}
	switch w.Type {
	case PageProtocol:
		p.Kind = Protocol{}
	case PageDuty:
		p.Kind = Duty{}
	case PageReagent:
		var r Reagent
		if w.MetaReagent != nil {
			for _, c := range w.MetaReagent.Composition {
				r.Composition = append(r.Composition, Component(c))
			}
		}
		p.Kind = r
	case PageCell:
		c := Cell{Adhesion: Adherent}
		if w.MetaCell != nil {
			adhesion, ok := ParseAdhesion(w.MetaCell.Adhesion)
			if !ok {
				return Page{}, fmt.Errorf("unknown adhesion %q", w.MetaCell.Adhesion)
			}
			c.Adhesion = adhesion
			c.Medium = w.MetaCell.Medium
			c.PassageTiming = w.MetaCell.PassageTiming
			for _, ps := range w.MetaCell.Passages {
				c.Passages = append(c.Passages, Passage{At: ps.At.Time(), Note: ps.Note})
			}
		}
		p.Kind = c
	default:
		return Page{}, fmt.Errorf("unknown page type %q", w.Type)
	}
	return p, nil
}

func runFromWire(w wireRun) Run {
	r := Run{
		ID:                    w.ID,
		ProtocolID:            w.ProtocolID,
		ProtocolTitleSnapshot: w.ProtocolTitleSnapshot,
		ProtocolBodySnapshot:  w.ProtocolBodySnapshot,
		StartedAt:             w.StartedAt.Time(),
		Notes:                 w.Notes,
	}
	if w.FinishedAt != nil {
		t := w.FinishedAt.Time()
		r.FinishedAt = &t
	}
	if w.CellID != nil {
		r.CellID = *w.CellID
	}
	for _, b := range w.Plan.Blocks {
		r.Plan.Blocks = append(r.Plan.Blocks, Block{Label: b.Label, StartAt: b.StartAt.Time(), EndAt: b.EndAt.Time()})
	}
	return r
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
