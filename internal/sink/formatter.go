package sink

import (
	"context"
	"fmt"
	"log"
	"strings"

	"PortfolioTracker/internal/model"
)

// FormatSummary renders a one-line summary of the latest window values.
func FormatSummary(w *model.Window) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("window %d ts", w.Size))
	if latest, ok := w.Latest(); ok {
		b.WriteString(fmt.Sprintf(" | portfolio %.4f (%+.2f%%)", latest.Value, (latest.Value-1)*100))
	}
	for _, sym := range w.Symbols() {
		pts := w.PerSymbol[sym]
		last := pts[len(pts)-1]
		b.WriteString(fmt.Sprintf(" | %s %.4f", sym, last.Value))
	}
	if !w.GeneratedAt.IsZero() {
		b.WriteString(" | at " + w.GeneratedAt.UTC().Format(model.TimestampLayout) + " UTC")
	}
	return b.String()
}

// Log writes the summary of each window to the process log.
type Log struct{}

func (Log) Name() string { return "log" }

func (Log) Write(_ context.Context, w *model.Window) error {
	log.Printf("[INFO] %s", FormatSummary(w))
	return nil
}
