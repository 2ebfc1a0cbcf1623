package model

import (
	"math"
	"time"
)

// TimestampLayout is the second-resolution UTC layout used in the record log.
const TimestampLayout = "2006-01-02 15:04:05"

// Quote is a single persisted price observation.
type Quote struct {
	Timestamp time.Time
	Symbol    string
	Price     float64
	Source    string
}

// Valid reports whether the quote carries a usable price.
func (q Quote) Valid() bool {
	return q.Symbol != "" && ValidPrice(q.Price)
}

// ValidPrice reports whether p is a positive finite number.
func ValidPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

// CycleTime truncates t to the second in UTC, the precision records are stored at.
func CycleTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// FetchResult is the outcome of fetching a single symbol: a price or the reason it failed.
type FetchResult struct {
	Symbol string
	Price  float64
	Err    error
}

// OK reports whether the fetch produced a price.
func (r FetchResult) OK() bool { return r.Err == nil }
