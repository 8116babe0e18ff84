package scan

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func items(amounts ...float64) []Item {
	out := make([]Item, 0, len(amounts))
	for _, a := range amounts {
		out = append(out, Item{Description: "line", Amount: decimal.NewFromFloat(a)})
	}
	return out
}

func TestClassifyTotals(t *testing.T) {
	tests := []struct {
		name     string
		items    []Item
		total    float64
		subtotal float64
		want     string
	}{
		{
			name:  "items sum to grand total",
			items: items(80.00, 40.00),
			total: 120.00,
			want:  TotalMatchTotal,
		},
		{
			name:     "items sum to pre-tax subtotal",
			items:    items(80.00, 40.00),
			total:    130.00,
			subtotal: 120.00,
			want:     TotalMatchSubtotal,
		},
		{
			name:  "neither total matches",
			items: items(80.00, 40.00),
			total: 999.00,
			want:  TotalMatchMismatch,
		},
		{
			name:  "no totals detected",
			items: items(80.00, 40.00),
			want:  TotalMatchNone,
		},
		{
			name:  "one cent of rounding noise still matches",
			items: items(39.99, 80.00),
			total: 120.00,
			want:  TotalMatchTotal,
		},
		{
			name:  "two cents is a mismatch",
			items: items(39.98, 80.00),
			total: 120.00,
			want:  TotalMatchMismatch,
		},
		{
			name: "empty items with detected total mismatch",
			total: 50.00,
			want:  TotalMatchMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyTotals(tt.items,
				decimal.NewFromFloat(tt.total),
				decimal.NewFromFloat(tt.subtotal))
			assert.Equal(t, tt.want, got)
		})
	}
}
