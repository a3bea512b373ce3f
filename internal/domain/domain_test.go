package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRegion(t *testing.T) {
	assert.Equal(t, "NA", NormalizeRegion("na"))
	assert.Equal(t, "OCE", NormalizeRegion("  oce "))
	// Idempotent: normalizing twice changes nothing.
	assert.Equal(t, NormalizeRegion("eu"), NormalizeRegion(NormalizeRegion("eu")))
}

func TestValidRegion(t *testing.T) {
	for _, r := range []string{"NA", "eu", "As", "oce"} {
		assert.True(t, ValidRegion(r), r)
	}
	for _, r := range []string{"", "SA", "EUROPE", "N"} {
		assert.False(t, ValidRegion(r), r)
	}
}

func TestPoolOverallScore(t *testing.T) {
	tiers := map[string]int{"vanilla": 50, "uhc": 30, "overall": 999}
	assert.Equal(t, 80, PoolStandard.OverallScore(tiers), "overall key is ignored")

	maxed := map[string]int{}
	for _, mode := range PoolStandard.Modes {
		maxed[mode] = MaxModeScore
	}
	assert.Equal(t, PoolStandard.MaxOverall, PoolStandard.OverallScore(maxed), "sum caps at the pool maximum")

	hidden := map[string]int{}
	for _, mode := range PoolHidden.Modes {
		hidden[mode] = MaxModeScore
	}
	assert.Equal(t, PoolHidden.MaxOverall, PoolHidden.OverallScore(hidden))
}

func TestPoolHasMode(t *testing.T) {
	assert.True(t, PoolStandard.HasMode("axe"))
	assert.True(t, PoolStandard.HasMode(ModeOverall))
	assert.False(t, PoolStandard.HasMode("bed"))
	assert.True(t, PoolHidden.HasMode("bed"))
	assert.False(t, PoolHidden.HasMode("axe"))
}

func TestPoolByName(t *testing.T) {
	p, ok := PoolByName("standard")
	assert.True(t, ok)
	assert.Equal(t, "players", p.Collection)

	p, ok = PoolByName("hidden")
	assert.True(t, ok)
	assert.Equal(t, "hidden-players", p.Collection)

	_, ok = PoolByName("ranked")
	assert.False(t, ok)
}

func TestPlayerScore(t *testing.T) {
	var p Player
	assert.Equal(t, 0, p.Score("axe"), "nil tiers map reads as zero")
	p.Tiers = map[string]int{"axe": 7}
	assert.Equal(t, 7, p.Score("axe"))
	assert.Equal(t, 0, p.Score("sword"))
}
