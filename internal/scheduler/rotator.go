package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"PortfolioTracker/internal/collector"
	"PortfolioTracker/internal/metrics"
	"PortfolioTracker/internal/model"
	"PortfolioTracker/internal/recorder"
)

// State is the phase of the rotation cycle.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StatePersisting
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "FETCHING"
	case StatePersisting:
		return "PERSISTING"
	default:
		return "IDLE"
	}
}

// CycleReport summarizes one rotation cycle.
type CycleReport struct {
	Cycle     uint64
	Provider  string
	Timestamp time.Time
	Fetched   int
	Failed    int
	Appended  int
}

// Rotator fetches from one provider per cycle, moving to the next provider
// after every cycle whatever its outcome.
type Rotator struct {
	providers []collector.Descriptor
	collector *collector.Collector
	store     recorder.Store
	metrics   *metrics.Metrics
	now       func() time.Time

	mu     sync.Mutex
	index  int
	cycles uint64
	state  atomic.Int32
}

// NewRotator creates a Rotator starting at the first provider.
func NewRotator(providers []collector.Descriptor, col *collector.Collector, store recorder.Store, m *metrics.Metrics) (*Rotator, error) {
	if len(providers) == 0 {
		return nil, &collector.ConfigurationError{}
	}
	ps := make([]collector.Descriptor, len(providers))
	copy(ps, providers)
	return &Rotator{providers: ps, collector: col, store: store, metrics: m, now: time.Now}, nil
}

// Index returns the position of the provider used by the next cycle.
func (r *Rotator) Index() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index
}

// Cycles returns the number of cycles run so far.
func (r *Rotator) Cycles() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cycles
}

func (r *Rotator) State() State { return State(r.state.Load()) }

func (r *Rotator) setState(s State) { r.state.Store(int32(s)) }

// RunCycle fetches every symbol from the current provider and appends the
// successful quotes as one batch sharing the cycle timestamp. Fetch failures
// are logged and omitted. Only a store failure is returned.
//
// When ctx is cancelled mid-cycle no further fetches are issued, but what was
// already fetched is still persisted and the index still advances.
func (r *Rotator) RunCycle(ctx context.Context) (CycleReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.setState(StateIdle)

	ts := model.CycleTime(r.now())
	d := r.providers[r.index]
	r.cycles++
	report := CycleReport{Cycle: r.cycles, Provider: d.ID, Timestamp: ts}

	r.setState(StateFetching)
	results := r.collector.Collect(ctx, d)

	batch := make([]model.Quote, 0, len(results))
	stamp := ts.Format(model.TimestampLayout)
	for _, res := range results {
		if !res.OK() {
			report.Failed++
			log.Printf("[WARN] fetch failed: %v", res.Err)
			continue
		}
		batch = append(batch, model.Quote{Timestamp: ts, Symbol: res.Symbol, Price: res.Price, Source: d.ID})
		log.Printf("[INFO] [%s] %s = $%.2f (%s)", stamp, res.Symbol, res.Price, d.ID)
	}
	report.Fetched = len(batch)

	r.index = (r.index + 1) % len(r.providers)

	r.setState(StatePersisting)
	if err := r.store.Append(context.WithoutCancel(ctx), batch); err != nil {
		r.metrics.ObserveCycle(d.ID, 0, report.Failed)
		r.metrics.StoreError("rotation")
		var se *recorder.StoreError
		if !errors.As(err, &se) {
			err = &recorder.StoreError{Op: "append", Err: err}
		}
		return report, err
	}
	report.Appended = len(batch)
	r.metrics.ObserveCycle(d.ID, report.Appended, report.Failed)

	log.Printf("[INFO] cycle %d complete: provider=%s fetched=%d failed=%d", report.Cycle, d.ID, report.Fetched, report.Failed)
	return report, nil
}
