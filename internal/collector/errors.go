package collector

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSymbolMissing is reported when a provider answered but left out a symbol.
	ErrSymbolMissing = errors.New("symbol missing from response")
	// ErrInvalidPrice is reported for zero, negative or non-finite prices.
	ErrInvalidPrice = errors.New("invalid price")
)

// ConfigurationError means no usable provider is available. It is fatal at startup.
type ConfigurationError struct {
	Skipped []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Skipped) == 0 {
		return "no providers registered"
	}
	return fmt.Sprintf("no usable providers: missing credentials for %s", strings.Join(e.Skipped, ", "))
}

// FetchError wraps the failure of one symbol (or a whole provider call when Symbol is empty).
type FetchError struct {
	Provider string
	Symbol   string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
