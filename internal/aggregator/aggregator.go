package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"PortfolioTracker/internal/metrics"
	"PortfolioTracker/internal/model"
)

// Sink consumes the window produced by each pass.
type Sink interface {
	Name() string
	Write(ctx context.Context, w *model.Window) error
}

// Aggregator recomputes the window from the store and hands it to its sinks.
type Aggregator struct {
	Store   Reader
	Size    int
	Sinks   []Sink
	Metrics *metrics.Metrics

	now func() time.Time
}

// New creates an Aggregator over store keeping size timestamps.
func New(store Reader, size int, m *metrics.Metrics, sinks ...Sink) *Aggregator {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Aggregator{Store: store, Size: size, Sinks: sinks, Metrics: m, now: time.Now}
}

// Pass runs one aggregation. An empty store is logged and skipped; store and
// sink failures are returned for the calling loop to log. Every sink sees the
// window even when another sink fails.
func (a *Aggregator) Pass(ctx context.Context) (*model.Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, err := ComputeWindow(ctx, a.Store, a.Size)
	if errors.Is(err, ErrAwaitingData) {
		log.Println("[INFO] no data yet, waiting...")
		a.Metrics.ObservePass("awaiting_data", 0, 0)
		return nil, nil
	}
	if err != nil {
		a.Metrics.ObservePass("error", 0, 0)
		a.Metrics.StoreError("aggregation")
		return nil, err
	}
	w.GeneratedAt = a.now().UTC()

	latest, _ := w.Latest()
	a.Metrics.ObservePass("ok", w.Size, latest.Value)

	// each sink runs to completion; one failing sink never cancels another
	var g errgroup.Group
	errs := make([]error, len(a.Sinks))
	for i, s := range a.Sinks {
		g.Go(func() error {
			if err := s.Write(ctx, w); err != nil {
				errs[i] = fmt.Errorf("sink %s: %w", s.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := errors.Join(errs...); err != nil {
		return w, err
	}
	return w, nil
}
