package collector

import (
	"fmt"
	"strings"
	"time"
)

// Spec describes a provider to construct.
type Spec struct {
	ID         string
	Type       string
	BaseURL    string
	Credential string
	// Batch overrides the fetcher's default call mode when set.
	Batch *bool
}

// Build constructs the Fetcher for spec, resolving its credential from env.
// A provider whose credential is absent is still built; ActiveProviders
// filters it out.
func Build(spec Spec, env Environment, proxyURL string) (Descriptor, error) {
	var apiKey string
	if spec.Credential != "" {
		apiKey, _ = env.Lookup(spec.Credential)
	}

	var (
		f     Fetcher
		batch bool
	)
	switch strings.ToLower(strings.TrimSpace(spec.Type)) {
	case "alphavantage":
		av := NewAlphaVantageFetcher(apiKey, proxyURL)
		if spec.BaseURL != "" {
			av.BaseURL = spec.BaseURL
		}
		f = av
	case "fmp":
		fm := NewFMPFetcher(apiKey, proxyURL)
		if spec.BaseURL != "" {
			fm.BaseURL = spec.BaseURL
		}
		f, batch = fm, true
	case "yahoo":
		y := NewYahooFetcher(proxyURL)
		if spec.BaseURL != "" {
			y.BaseURL = spec.BaseURL
		}
		f = y
	case "mock":
		f, batch = NewMockFetcher(100, time.Now().UnixNano()), true
	default:
		return Descriptor{}, fmt.Errorf("provider %s: unknown type %q", spec.ID, spec.Type)
	}

	if spec.Batch != nil {
		batch = *spec.Batch
	}
	id := spec.ID
	if id == "" {
		id = f.Name()
	}
	return Descriptor{ID: id, Fetcher: f, Batch: batch, Credential: spec.Credential}, nil
}
