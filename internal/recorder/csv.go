package recorder

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"PortfolioTracker/internal/model"
)

var csvHeader = []string{"timestamp", "symbol", "price", "source"}

// CSVStore is a tabular append log. Every append rewrites the log into a
// temporary file in the same directory and renames it over the original, so
// readers in this or any other process only ever see whole batches.
type CSVStore struct {
	path string
	mu   sync.RWMutex
}

// NewCSVStore opens the log at path, creating its directory. With Clear the
// existing log is removed.
func NewCSVStore(path string, policy StartPolicy) (*CSVStore, error) {
	if path == "" {
		return nil, fmt.Errorf("csv store: empty path")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &StoreError{Op: "open", Path: path, Err: err}
		}
	}
	if policy == Clear {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, &StoreError{Op: "clear", Path: path, Err: err}
		}
		log.Printf("[INFO] csv store cleared on start: %s", path)
	}
	return &CSVStore{path: path}, nil
}

// Path returns the log location.
func (s *CSVStore) Path() string { return s.path }

// Close waits for an in-flight commit. The log holds no open handles between appends.
func (s *CSVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nil
}

func (s *CSVStore) Append(ctx context.Context, batch []model.Quote) error {
	if len(batch) == 0 {
		return nil
	}
	if err := validateBatch(batch); err != nil {
		return &StoreError{Op: "append", Path: s.path, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &StoreError{Op: "append", Path: s.path, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commit(batch); err != nil {
		return &StoreError{Op: "append", Path: s.path, Err: err}
	}
	return nil
}

func (s *CSVStore) commit(batch []model.Quote) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	src, err := os.Open(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err = w.Write(csvHeader); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		_, err = io.Copy(tmp, src)
		src.Close()
		if err != nil {
			return fmt.Errorf("copy log: %w", err)
		}
	}

	for _, q := range batch {
		row := []string{
			model.CycleTime(q.Timestamp).Format(model.TimestampLayout),
			q.Symbol,
			decimal.NewFromFloat(q.Price).String(),
			q.Source,
		}
		if err = w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// ReadAll parses the log. A missing file is an empty store; malformed rows are skipped.
func (s *CSVStore) ReadAll(ctx context.Context) ([]model.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StoreError{Op: "read", Path: s.path, Err: err}
	}
	s.mu.RLock()
	f, err := os.Open(s.path)
	s.mu.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "read", Path: s.path, Err: err}
	}
	defer f.Close()

	quotes, err := parseCSV(f)
	if err != nil {
		return nil, &StoreError{Op: "read", Path: s.path, Err: err}
	}
	sortQuotes(quotes)
	return quotes, nil
}

func parseCSV(r io.Reader) ([]model.Quote, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var out []model.Quote
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				log.Printf("[WARN] csv store: skipping line %d: %v", line, err)
				continue
			}
			return nil, err
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), csvHeader[0]) {
			continue
		}
		q, err := parseRow(rec)
		if err != nil {
			log.Printf("[WARN] csv store: skipping line %d: %v", line, err)
			continue
		}
		out = append(out, q)
	}
}

func parseRow(rec []string) (model.Quote, error) {
	if len(rec) < 3 {
		return model.Quote{}, fmt.Errorf("want at least 3 fields, got %d", len(rec))
	}
	ts, err := time.ParseInLocation(model.TimestampLayout, strings.TrimSpace(rec[0]), time.UTC)
	if err != nil {
		return model.Quote{}, fmt.Errorf("parse timestamp: %w", err)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(rec[2]))
	if err != nil {
		return model.Quote{}, fmt.Errorf("parse price: %w", err)
	}
	price, _ := d.Float64()
	q := model.Quote{Timestamp: ts, Symbol: strings.TrimSpace(rec[1]), Price: price}
	if len(rec) > 3 {
		q.Source = strings.TrimSpace(rec[3])
	}
	if !q.Valid() {
		return model.Quote{}, fmt.Errorf("invalid quote %s=%s", q.Symbol, rec[2])
	}
	return q, nil
}
