package model

import "fmt"

// linear is a dense linear regression stored inline in the manifest.
type linear struct {
	intercept float64
	weights   []float64
}

func newLinear(m Manifest, width int) (*linear, error) {
	if len(m.Weights) != width {
		return nil, fmt.Errorf("linear model has %d weights, features encode to %d", len(m.Weights), width)
	}
	weights := make([]float64, len(m.Weights))
	copy(weights, m.Weights)
	return &linear{intercept: m.Intercept, weights: weights}, nil
}

func (l *linear) Run(input []float32) (float32, error) {
	if len(input) != len(l.weights) {
		return 0, fmt.Errorf("input has %d values, want %d", len(input), len(l.weights))
	}
	sum := l.intercept
	for i, x := range input {
		sum += l.weights[i] * float64(x)
	}
	return float32(sum), nil
}

func (l *linear) Close() error {
	return nil
}
