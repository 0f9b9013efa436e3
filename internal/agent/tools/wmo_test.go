package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConditionForCodeCoversTable(t *testing.T) {
	known := []int{0, 1, 2, 3, 45, 48, 51, 53, 55, 56, 57, 61, 63, 65, 66, 67, 71, 73, 75, 77, 80, 81, 82, 85, 86, 95, 96, 99}
	for _, code := range known {
		c := ConditionForCode(code)
		assert.NotEqual(t, "Unknown", c.Condition, "code %d", code)
		assert.NotEmpty(t, c.Icon, "code %d", code)
	}
	assert.Len(t, wmoConditions, len(known))
}

func TestConditionForCodeFallsBack(t *testing.T) {
	for _, code := range []int{-1, 4, 50, 100, 1000} {
		assert.Equal(t, WeatherCondition{Condition: "Unknown", Icon: "❓"}, ConditionForCode(code))
	}
	assert.Equal(t, WeatherCondition{Condition: "Thunderstorm with heavy hail", Icon: "⛈️"}, ConditionForCode(99))
	assert.Equal(t, "Clear sky", ConditionForCode(0).Condition)
}

func TestDominantCode(t *testing.T) {
	assert.Equal(t, 0, DominantCode(nil))
	assert.Equal(t, 61, DominantCode([]int{3, 61, 61, 3, 61}))
	// tie between 63 and 2: 63 is seen first
	assert.Equal(t, 63, DominantCode([]int{63, 2, 2, 63}))
	assert.Equal(t, 2, DominantCode([]int{2, 63, 63, 2}))
}

func TestRainChance(t *testing.T) {
	assert.Equal(t, 0.0, RainChance(nil))
	assert.Equal(t, 40.0, RainChance([]int{51, 3, 63, 0, 1}))
	assert.Equal(t, 33.0, RainChance([]int{50, 51, 2}))
	assert.Equal(t, 67.0, RainChance([]int{95, 51, 2}))
}

func TestJSRound(t *testing.T) {
	assert.Equal(t, 3.0, jsRound(2.5))
	assert.Equal(t, -2.0, jsRound(-2.5))
	assert.Equal(t, 21.0, jsRound(20.6))
}
