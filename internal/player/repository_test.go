package player

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crtiers/crtiers/internal/domain"
	"github.com/crtiers/crtiers/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(memory.New(), domain.PoolStandard, testLogger())
}

func TestCreate_DerivesOverall(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.Create(ctx, &domain.Player{
		Name:          "Steve",
		MinecraftName: "Steve",
		Region:        "na",
		Tiers:         map[string]int{"axe": 50, "sword": 30, "overall": 12345},
	})
	require.NoError(t, err)

	p, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 80, p.Score("overall"), "overall is derived, client value discarded")
	assert.Equal(t, "NA", p.Region, "region stored normalized")
	assert.EqualValues(t, 1, p.Version)
	for _, mode := range domain.PoolStandard.Modes {
		_, ok := p.Tiers[mode]
		assert.True(t, ok, "every pool mode gets a score key, mode %s", mode)
	}
}

func TestCreate_ValidationMessages(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Create(ctx, &domain.Player{
		Name:          "ab",
		MinecraftName: "ab",
		Region:        "ATLANTIS",
		Tiers:         map[string]int{"axe": -1, "bed": 5, "sword": 500},
	})
	require.Error(t, err)

	verrs, ok := domain.AsValidationErrors(err)
	require.True(t, ok)
	assert.Contains(t, verrs, "Minecraft name must be at least 3 characters long")
	assert.Contains(t, verrs, "Region must be NA, EU, AS, or OCE")
	assert.Contains(t, verrs, "axe score must be a positive number")
	assert.Contains(t, verrs, "bed is not a valid game mode")
	assert.Contains(t, verrs, "sword score should not exceed 101")
}

func TestGetByName_CaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Create(ctx, &domain.Player{
		Name:          "Technoblade",
		MinecraftName: "Technoblade",
		Region:        "NA",
	})
	require.NoError(t, err)

	for _, name := range []string{"Technoblade", "technoblade", "TECHNOBLADE"} {
		p, err := repo.GetByName(ctx, name)
		require.NoError(t, err, name)
		assert.Equal(t, "Technoblade", p.MinecraftName)
	}

	_, err = repo.GetByName(ctx, "Dream")
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)
}

func TestUpdate_PartialScoreIsolation(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.Create(ctx, &domain.Player{
		Name:          "Steve",
		MinecraftName: "Steve",
		Region:        "EU",
		Tiers:         map[string]int{"axe": 10, "sword": 20},
	})
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, id, map[string]any{"tiers.axe": 60}, 1))

	p, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 60, p.Score("axe"))
	assert.Equal(t, 20, p.Score("sword"), "untouched mode survives")
	assert.Equal(t, 80, p.Score("overall"), "overall recomputed from merged scores")
	assert.EqualValues(t, 2, p.Version)
}

func TestUpdate_VersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.Create(ctx, &domain.Player{
		Name:          "Steve",
		MinecraftName: "Steve",
		Region:        "EU",
	})
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, id, map[string]any{"tiers.axe": 10}, 1))

	// Second writer still holds version 1.
	err = repo.Update(ctx, id, map[string]any{"tiers.axe": 99}, 1)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	p, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Score("axe"), "conflicting write must not land")
}

func TestUpdate_RejectsUnknownField(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.Create(ctx, &domain.Player{
		Name:          "Steve",
		MinecraftName: "Steve",
		Region:        "EU",
	})
	require.NoError(t, err)

	err = repo.Update(ctx, id, map[string]any{"admin": true}, 1)
	verrs, ok := domain.AsValidationErrors(err)
	require.True(t, ok)
	assert.Contains(t, verrs, "admin is not an editable field")
}

func TestUpdate_OverallCapped(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.Create(ctx, &domain.Player{
		Name:          "Steve",
		MinecraftName: "Steve",
		Region:        "EU",
	})
	require.NoError(t, err)

	version := int64(1)
	for _, mode := range domain.PoolStandard.Modes {
		require.NoError(t, repo.Update(ctx, id, map[string]any{"tiers." + mode: domain.MaxModeScore}, version))
		version++
	}

	p, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PoolStandard.MaxOverall, p.Score("overall"))
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, name := range []string{"Dream", "DreamXD", "Technoblade"} {
		_, err := repo.Create(ctx, &domain.Player{Name: name, MinecraftName: name, Region: "NA"})
		require.NoError(t, err)
	}

	matches, err := repo.Search(ctx, "dream")
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestCountHigher(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, p := range []struct {
		name   string
		region string
		axe    int
	}{
		{"One", "NA", 90},
		{"Two", "EU", 70},
		{"Three", "NA", 50},
	} {
		_, err := repo.Create(ctx, &domain.Player{
			Name: p.name, MinecraftName: p.name, Region: p.region,
			Tiers: map[string]int{"axe": p.axe},
		})
		require.NoError(t, err)
	}

	n, err := repo.CountHigher(ctx, "axe", 50, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.CountHigher(ctx, "axe", 50, "na")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "regional count sees only NA players above 50")

	n, err = repo.CountHigher(ctx, "axe", 90, "")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "top score has nobody above it")

	_, err = repo.CountHigher(ctx, "bed", 10, "")
	assert.ErrorIs(t, err, domain.ErrUnknownMode)
}

func TestOrderedTop(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for name, score := range map[string]int{"Low": 5, "Mid": 40, "High": 95} {
		_, err := repo.Create(ctx, &domain.Player{
			Name: name, MinecraftName: name, Region: "EU",
			Tiers: map[string]int{"sword": score},
		})
		require.NoError(t, err)
	}

	top, err := repo.OrderedTop(ctx, "sword", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "High", top[0].MinecraftName)
	assert.Equal(t, "Mid", top[1].MinecraftName)
}
