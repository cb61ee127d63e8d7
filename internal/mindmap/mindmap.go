// Package mindmap lays timeline events out as a graph: one row per calendar
// date, events spread across the row, and edges between adjacent rows.
package mindmap

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dgallion1/casegest/internal/dates"
	"github.com/dgallion1/casegest/internal/timeline"
)

// ErrInvalidCanvas is returned for canvases with no drawable area.
var ErrInvalidCanvas = errors.New("invalid canvas")

// Canvas is the drawing area. Nodes are placed inside the padding bounds.
type Canvas struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Padding float64 `json:"padding"`
}

func DefaultCanvas() Canvas {
	return Canvas{Width: 900, Height: 800, Padding: 100}
}

func (c Canvas) Validate() error {
	for _, v := range []float64{c.Width, c.Height, c.Padding} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite dimension", ErrInvalidCanvas)
		}
	}
	if c.Padding < 0 {
		return fmt.Errorf("%w: negative padding", ErrInvalidCanvas)
	}
	if 2*c.Padding >= c.Width || 2*c.Padding >= c.Height {
		return fmt.Errorf("%w: padding %.0f leaves no room in %.0fx%.0f", ErrInvalidCanvas, c.Padding, c.Width, c.Height)
	}
	return nil
}

// Item is the minimal event record the layout needs. Date may be a string
// (bare date, ISO date-time, or space separated date-time), a time.Time or
// a *time.Time.
type Item struct {
	ID           string
	Title        string
	Date         any
	Description  string
	Participants []string
	Documents    []string
	Location     string
	Context      string
}

// FromTimeline converts timeline events to layout items.
func FromTimeline(events []timeline.Event) []Item {
	items := make([]Item, 0, len(events))
	for _, ev := range events {
		var docs []string
		if ev.DocumentName != "" {
			docs = []string{ev.DocumentName}
		}
		items = append(items, Item{
			ID:           ev.ID,
			Title:        ev.Summary,
			Date:         ev.Date,
			Description:  ev.Summary,
			Participants: ev.Participants,
			Documents:    docs,
			Location:     ev.Location,
			Context:      ev.Context,
		})
	}
	return items
}

type Detail struct {
	Description  string   `json:"description"`
	Participants []string `json:"participants"`
	Documents    []string `json:"documents"`
	Location     string   `json:"location"`
	Context      string   `json:"context"`
}

// Node is a positioned event. Date is the canonical key; Label is its
// display form ("15 OCTOBER 2021").
type Node struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Date   string  `json:"date"`
	Label  string  `json:"label"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Detail Detail  `json:"detail"`
}

type ConnectionKind string

const (
	Straight ConnectionKind = "straight"
	Curved   ConnectionKind = "curved"
)

type Connection struct {
	From string         `json:"from"`
	To   string         `json:"to"`
	Kind ConnectionKind `json:"kind"`
}

// Graph is the full layout. Skipped lists input items whose date could not
// be normalized.
type Graph struct {
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
	Skipped     []Skipped    `json:"skipped,omitempty"`
}

type Skipped struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Err   string `json:"error"`
}

type group struct {
	key   string
	day   time.Time
	items []Item
}

// Layout groups items by calendar date, places each group on its own row in
// chronological order, and connects adjacent rows. It returns nil when no
// item has a usable date. The same input always yields the same graph.
func Layout(items []Item, canvas Canvas) (*Graph, error) {
	if err := canvas.Validate(); err != nil {
		return nil, err
	}

	var skipped []Skipped
	groups := make(map[string]*group)
	var ordered []*group
	for i, it := range items {
		key, err := dates.Key(it.Date)
		if err != nil {
			skipped = append(skipped, Skipped{Index: i, ID: it.ID, Err: err.Error()})
			continue
		}
		g, ok := groups[key]
		if !ok {
			day, err := dates.Parse(key)
			if err != nil {
				skipped = append(skipped, Skipped{Index: i, ID: it.ID, Err: err.Error()})
				continue
			}
			g = &group{key: key, day: day}
			groups[key] = g
			ordered = append(ordered, g)
		}
		g.items = append(g.items, it)
	}
	if len(ordered) == 0 {
		return nil, nil
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].day.Before(ordered[j].day)
	})

	graph := &Graph{
		Nodes:       make([]Node, 0, len(items)),
		Connections: []Connection{},
		Skipped:     skipped,
	}
	ids := newIDAllocator()
	rows := make([][]string, len(ordered))
	xs := make(map[string]float64, len(items))

	vertical := (canvas.Height - 2*canvas.Padding) / math.Max(1, float64(len(ordered)-1))
	for rank, g := range ordered {
		y := canvas.Padding + float64(rank)*vertical
		horizontal := (canvas.Width - 2*canvas.Padding) / math.Max(1, float64(len(g.items)-1))
		label := dates.Label(g.key)

		for i, it := range g.items {
			x := canvas.Padding + float64(i)*horizontal
			if len(g.items) == 1 {
				x = canvas.Width / 2
			}

			id := it.ID
			if id == "" {
				id = fmt.Sprintf("event-%d-%d", rank, i)
			}
			id = ids.claim(id)

			graph.Nodes = append(graph.Nodes, Node{
				ID:    id,
				Title: it.Title,
				Date:  g.key,
				Label: label,
				X:     x,
				Y:     y,
				Detail: Detail{
					Description:  it.Description,
					Participants: nonNil(it.Participants),
					Documents:    nonNil(it.Documents),
					Location:     it.Location,
					Context:      it.Context,
				},
			})
			rows[rank] = append(rows[rank], id)
			xs[id] = x
		}
	}

	for r := 0; r+1 < len(rows); r++ {
		graph.Connections = append(graph.Connections, connectGroups(rows[r], rows[r+1], xs)...)
	}
	return graph, nil
}

// connectGroups links two chronologically adjacent rows. A lone node on
// either side fans out to or in from every node on the other; two lone
// nodes get a straight edge. Otherwise each node in from picks the node in
// to with the nearest x, the first one winning ties. Ids without a known
// position are skipped.
func connectGroups(from, to []string, xs map[string]float64) []Connection {
	var out []Connection
	link := func(a, b string, kind ConnectionKind) {
		if _, ok := xs[a]; !ok {
			return
		}
		if _, ok := xs[b]; !ok {
			return
		}
		out = append(out, Connection{From: a, To: b, Kind: kind})
	}

	switch {
	case len(from) == 0 || len(to) == 0:
	case len(from) == 1 && len(to) == 1:
		link(from[0], to[0], Straight)
	case len(from) == 1:
		for _, b := range to {
			link(from[0], b, Curved)
		}
	case len(to) == 1:
		for _, a := range from {
			link(a, to[0], Curved)
		}
	default:
		for _, a := range from {
			ax, ok := xs[a]
			if !ok {
				continue
			}
			best := ""
			bestDist := math.Inf(1)
			for _, b := range to {
				bx, ok := xs[b]
				if !ok {
					continue
				}
				if d := math.Abs(ax - bx); d < bestDist {
					best, bestDist = b, d
				}
			}
			if best != "" {
				out = append(out, Connection{From: a, To: best, Kind: Curved})
			}
		}
	}
	return out
}

// idAllocator keeps node ids unique within one layout pass by suffixing
// repeats with -2, -3, ...
type idAllocator struct {
	used map[string]bool
}

func newIDAllocator() *idAllocator {
	return &idAllocator{used: make(map[string]bool)}
}

func (a *idAllocator) claim(id string) string {
	if !a.used[id] {
		a.used[id] = true
		return id
	}
	for k := 2; ; k++ {
		candidate := fmt.Sprintf("%s-%d", id, k)
		if !a.used[candidate] {
			a.used[candidate] = true
			return candidate
		}
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
