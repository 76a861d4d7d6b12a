package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPerformanceScore(t *testing.T) {
	tests := []struct {
		name   string
		visits int
		orders int
		want   int
	}{
		{"no visits yields zero", 0, 5, 0},
		{"no orders is the floor", 10, 0, 50},
		{"half conversion", 4, 2, 75},
		{"full conversion", 4, 4, 100},
		{"over-conversion is capped", 1, 3, 100},
		{"rounding", 3, 1, 67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, performanceScore(tt.visits, tt.orders))
		})
	}
}
