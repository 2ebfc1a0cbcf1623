package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"PortfolioTracker/internal/calculator"
	"PortfolioTracker/internal/model"
)

// DefaultWindowSize is the number of distinct timestamps kept in the view.
const DefaultWindowSize = 100

// ErrAwaitingData means the store holds no records yet. It is not a failure.
var ErrAwaitingData = errors.New("awaiting data")

// Reader is the read side of the record store.
type Reader interface {
	ReadAll(ctx context.Context) ([]model.Quote, error)
}

// ComputeWindow derives the normalized per-symbol series and the portfolio
// index over the n most recent distinct timestamps in the store. n <= 0 keeps
// every timestamp. Each symbol is normalized against its own earliest price
// inside the window. The result depends only on the stored records.
func ComputeWindow(ctx context.Context, store Reader, n int) (*model.Window, error) {
	records, err := store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrAwaitingData
	}
	return windowOf(records, n), nil
}

func windowOf(records []model.Quote, n int) *model.Window {
	// group by symbol; the last record for a (symbol, timestamp) wins
	series := make(map[string][]model.Quote)
	for _, q := range sorted(records) {
		s := series[q.Symbol]
		if k := len(s); k > 0 && s[k-1].Timestamp.Equal(q.Timestamp) {
			s[k-1] = q
			continue
		}
		series[q.Symbol] = append(s, q)
	}

	window := recentTimestamps(records, n)
	inWindow := make(map[int64]struct{}, len(window))
	for _, ts := range window {
		inWindow[ts.Unix()] = struct{}{}
	}

	symbols := make([]string, 0, len(series))
	for s := range series {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	out := &model.Window{
		Size:       len(window),
		Timestamps: window,
		PerSymbol:  make(map[string][]model.Point, len(symbols)),
	}
	byTime := make(map[int64][]float64, len(window))
	for _, sym := range symbols {
		var (
			stamps []time.Time
			prices []float64
		)
		for _, q := range series[sym] {
			if _, ok := inWindow[q.Timestamp.Unix()]; ok {
				stamps = append(stamps, q.Timestamp)
				prices = append(prices, q.Price)
			}
		}
		if len(prices) == 0 {
			continue
		}
		normalized, err := calculator.Normalize(prices)
		if err != nil {
			continue
		}
		points := make([]model.Point, len(normalized))
		for i, v := range normalized {
			points[i] = model.Point{Timestamp: stamps[i], Value: v}
			byTime[stamps[i].Unix()] = append(byTime[stamps[i].Unix()], v)
		}
		out.PerSymbol[sym] = points
	}

	for _, ts := range window {
		mean, err := calculator.Mean(byTime[ts.Unix()])
		if err != nil {
			continue
		}
		out.Portfolio = append(out.Portfolio, model.Point{Timestamp: ts, Value: mean})
	}
	return out
}

// recentTimestamps returns the last n distinct timestamps, ascending.
func recentTimestamps(records []model.Quote, n int) []time.Time {
	seen := make(map[int64]time.Time, len(records))
	for _, q := range records {
		seen[q.Timestamp.Unix()] = q.Timestamp.UTC()
	}
	all := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		all = append(all, ts)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Before(all[j]) })
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

// sorted returns records ordered by (symbol, timestamp) without trusting the
// reader's ordering; ties keep their input order.
func sorted(records []model.Quote) []model.Quote {
	out := make([]model.Quote, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
