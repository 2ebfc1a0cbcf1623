package calculator

import (
	"errors"

	"PortfolioTracker/internal/model"
)

// Normalize divides every price by the first one, so the series starts at 1.0.
func Normalize(prices []float64) ([]float64, error) {
	if len(prices) == 0 {
		return nil, errors.New("no prices to normalize")
	}
	base := prices[0]
	if !model.ValidPrice(base) {
		return nil, errors.New("normalization base must be positive")
	}
	out := make([]float64, len(prices))
	for i, p := range prices {
		out[i] = p / base
	}
	return out, nil
}

// Mean computes the arithmetic mean of values.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("not enough data for mean calculation")
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}
