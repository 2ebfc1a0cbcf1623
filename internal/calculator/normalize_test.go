package calculator

import (
	"math"
	"testing"
)

func TestNormalize_StartsAtOne(t *testing.T) {
	got, err := Normalize([]float64{100, 110, 90})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{1.0, 1.1, 0.9}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("index %d: expected %.4f, got %.4f", i, want[i], got[i])
		}
	}
}

func TestNormalize_SinglePoint(t *testing.T) {
	got, err := Normalize([]float64{42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != 1.0 {
		t.Errorf("expected [1.0], got %v", got)
	}
}

func TestNormalize_Errors(t *testing.T) {
	if _, err := Normalize(nil); err == nil {
		t.Error("expected error for empty input")
	}
	if _, err := Normalize([]float64{0, 1}); err == nil {
		t.Error("expected error for zero base")
	}
}

func TestMean(t *testing.T) {
	got, err := Mean([]float64{1.1, 0.9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-1.0) > 1e-12 {
		t.Errorf("expected 1.0, got %.6f", got)
	}
	if _, err := Mean(nil); err == nil {
		t.Error("expected error for empty input")
	}
}
