package collector

import "context"

//go:generate mockgen -package=collector_test -destination=mock_fetcher_test.go -source=fetcher.go Fetcher

// Fetcher is a quote source. Implementations are stateless between calls and
// return a price for every symbol they could resolve.
type Fetcher interface {
	Fetch(ctx context.Context, symbols []string) (map[string]float64, error)
	Name() string
}

// Descriptor registers a Fetcher under a unique identifier.
type Descriptor struct {
	ID      string
	Fetcher Fetcher
	// Batch is true when one call fetches all symbols; otherwise the fetcher
	// is invoked once per symbol with a pacing delay between calls.
	Batch bool
	// Credential names the environment key the provider needs. Empty means
	// no credential is required.
	Credential string
}
