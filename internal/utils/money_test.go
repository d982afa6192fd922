package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundCurrency(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   float64
	}{
		{"already two decimals", 10.25, 10.25},
		{"rounds down", 10.254, 10.25},
		{"rounds up", 10.256, 10.26},
		// Banker's rounding: exact half cents go to the even neighbour.
		{"half cent to even, down", 0.125, 0.12},
		{"half cent to even, up", 0.375, 0.38},
		{"half cent to even, large", 1.875, 1.88},
		{"zero", 0, 0},
		{"negative", -10.254, -10.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RoundCurrency(tt.amount), 1e-9)
		})
	}
}

func TestCommissionAmount(t *testing.T) {
	assert.InDelta(t, 100.0, CommissionAmount(1000, 10), 1e-9)
	assert.InDelta(t, 50.0, CommissionAmount(1000, 5), 1e-9)
	assert.InDelta(t, 33.33, CommissionAmount(333.30, 10), 1e-9)
	// 12.5 * 1% = 0.125, an exact half cent: rounds to the even 0.12.
	assert.InDelta(t, 0.12, CommissionAmount(12.5, 1), 1e-9)
	assert.InDelta(t, 0.0, CommissionAmount(0, 10), 1e-9)
}
