package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAchievementPct(t *testing.T) {
	assert.Equal(t, 50.0, AchievementPct(5, 10))
	assert.Equal(t, 100.0, AchievementPct(10, 10))
	assert.Equal(t, 150.0, AchievementPct(15, 10))
}

func TestAchievementPctZeroDenominator(t *testing.T) {
	got := AchievementPct(7, 0)
	assert.Equal(t, 0.0, got)
	assert.False(t, math.IsNaN(got))
	assert.False(t, math.IsInf(got, 0))

	assert.Equal(t, 0.0, AchievementPct(0, 0))
	assert.Equal(t, 0.0, AchievementPct(3, -1))
}
