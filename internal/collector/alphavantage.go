package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const alphaVantageBaseURL = "https://www.alphavantage.co"

// AlphaVantageFetcher implements Fetcher using the GLOBAL_QUOTE endpoint.
// The endpoint takes one symbol per request.
type AlphaVantageFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewAlphaVantageFetcher creates a new Alpha Vantage fetcher.
func NewAlphaVantageFetcher(apiKey, proxyURL string) *AlphaVantageFetcher {
	return &AlphaVantageFetcher{
		BaseURL: alphaVantageBaseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL),
	}
}

func (f *AlphaVantageFetcher) Name() string { return "alphavantage" }

type avGlobalQuote struct {
	Quote       map[string]string `json:"Global Quote"`
	Note        string            `json:"Note"`
	Information string            `json:"Information"`
	Error       string            `json:"Error Message"`
}

func (f *AlphaVantageFetcher) Fetch(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	var errs []error
	for _, s := range symbols {
		p, err := f.fetchQuote(ctx, s)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s, err))
			continue
		}
		out[s] = p
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (f *AlphaVantageFetcher) fetchQuote(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", symbol)
	q.Set("apikey", f.APIKey)
	endpoint := f.BaseURL + "/query?" + q.Encode()

	body, err := getBody(ctx, f.Client, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("alphavantage fetch: %w", err)
	}
	var resp avGlobalQuote
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("alphavantage decode: %w", err)
	}
	switch {
	case resp.Error != "":
		return 0, fmt.Errorf("alphavantage: %s", resp.Error)
	case resp.Note != "":
		return 0, fmt.Errorf("alphavantage: %s", resp.Note)
	case resp.Information != "":
		return 0, fmt.Errorf("alphavantage: %s", resp.Information)
	}
	raw, ok := resp.Quote["05. price"]
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, fmt.Errorf("alphavantage: no price for %s", symbol)
	}
	p, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("alphavantage: parse price %q: %w", raw, err)
	}
	return p, nil
}
