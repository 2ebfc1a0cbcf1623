package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const fmpBaseURL = "https://financialmodelingprep.com"

// FMPFetcher implements Fetcher using the Financial Modeling Prep batch quote endpoint.
type FMPFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewFMPFetcher creates a new FMP fetcher.
func NewFMPFetcher(apiKey, proxyURL string) *FMPFetcher {
	return &FMPFetcher{
		BaseURL: fmpBaseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *FMPFetcher) Name() string { return "fmp" }

type fmpQuote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// Fetch requests all symbols in a single call.
func (f *FMPFetcher) Fetch(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}
	escaped := make([]string, len(symbols))
	for i, s := range symbols {
		escaped[i] = url.PathEscape(s)
	}
	endpoint := fmt.Sprintf("%s/api/v3/quote/%s?apikey=%s",
		f.BaseURL, strings.Join(escaped, ","), url.QueryEscape(f.APIKey))

	body, err := getBody(ctx, f.Client, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("fmp fetch: %w", err)
	}

	// Errors come back as an object rather than a list.
	var apiErr struct {
		Message string `json:"Error Message"`
	}
	if len(body) > 0 && body[0] == '{' {
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("fmp: %s", apiErr.Message)
		}
		return nil, fmt.Errorf("fmp: unexpected response: %.128s", string(body))
	}

	var quotes []fmpQuote
	if err := json.Unmarshal(body, &quotes); err != nil {
		return nil, fmt.Errorf("fmp decode: %w", err)
	}
	out := make(map[string]float64, len(quotes))
	for _, q := range quotes {
		out[q.Symbol] = q.Price
	}
	return out, nil
}
