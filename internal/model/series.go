package model

import (
	"sort"
	"time"
)

// Point is one value of a derived series.
type Point struct {
	Timestamp time.Time `json:"t"`
	Value     float64   `json:"v"`
}

// Window is the aggregator output handed to sinks.
type Window struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Size        int                `json:"window_size"`
	Timestamps  []time.Time        `json:"timestamps"`
	PerSymbol   map[string][]Point `json:"symbols"`
	Portfolio   []Point            `json:"portfolio"`
}

// Symbols returns the symbols present in the window in sorted order.
func (w *Window) Symbols() []string {
	out := make([]string, 0, len(w.PerSymbol))
	for s := range w.PerSymbol {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Latest returns the last portfolio point, if any.
func (w *Window) Latest() (Point, bool) {
	if len(w.Portfolio) == 0 {
		return Point{}, false
	}
	return w.Portfolio[len(w.Portfolio)-1], true
}
