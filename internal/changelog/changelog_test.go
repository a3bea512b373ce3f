package changelog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crtiers/crtiers/internal/domain"
	"github.com/crtiers/crtiers/internal/player"
	"github.com/crtiers/crtiers/internal/store/memory"
)

type capturePublisher struct {
	entries []domain.ChangelogEntry
	fail    bool
}

func (p *capturePublisher) PublishTierChange(_ context.Context, entry domain.ChangelogEntry) error {
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.entries = append(p.entries, entry)
	return nil
}

func newTestService(t *testing.T, pub Publisher) (*Service, *player.Repository, *player.Repository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New()
	standard := player.NewRepository(st, domain.PoolStandard, logger)
	hidden := player.NewRepository(st, domain.PoolHidden, logger)
	return NewService(st, standard, hidden, pub, logger), standard, hidden
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{}
	svc, _, _ := newTestService(t, pub)

	first, err := svc.Record(ctx, domain.ChangelogEntry{
		PlayerID:      "p1",
		MinecraftName: "Steve",
		Changes:       []domain.TierChange{{GameMode: "axe", PreviousScore: 0, NewScore: 10}},
	})
	require.NoError(t, err)

	second, err := svc.Record(ctx, domain.ChangelogEntry{
		PlayerID:      "p2",
		MinecraftName: "Alex",
		Changes:       []domain.TierChange{{GameMode: "sword", PreviousScore: 5, NewScore: 2}},
	})
	require.NoError(t, err)

	entries, err := svc.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second, entries[0].ID, "newest entry first")
	assert.Equal(t, first, entries[1].ID)
	assert.False(t, entries[0].CreatedAt.IsZero())

	assert.Len(t, pub.entries, 2, "every record is mirrored to the audit stream")
}

func TestRecord_PublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, &capturePublisher{fail: true})

	id, err := svc.Record(ctx, domain.ChangelogEntry{
		PlayerID: "p1",
		Changes:  []domain.TierChange{{GameMode: "axe", NewScore: 5}},
	})
	require.NoError(t, err, "a dead broker must not lose the changelog")
	assert.NotEmpty(t, id)
}

func TestRevert_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, standard, _ := newTestService(t, nil)

	playerID, err := standard.Create(ctx, &domain.Player{
		Name:          "Steve",
		MinecraftName: "Steve",
		Region:        "NA",
		Tiers:         map[string]int{"axe": 10, "sword": 20},
	})
	require.NoError(t, err)

	// The admin bumps axe 10 → 60.
	require.NoError(t, standard.Update(ctx, playerID, map[string]any{"tiers.axe": 60}, 1))
	entryID, err := svc.Record(ctx, domain.ChangelogEntry{
		PlayerID:      playerID,
		MinecraftName: "Steve",
		Changes:       []domain.TierChange{{GameMode: "axe", PreviousScore: 10, NewScore: 60}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Revert(ctx, entryID))

	p, err := standard.GetByID(ctx, playerID)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Score("axe"), "previous score restored")
	assert.Equal(t, 20, p.Score("sword"), "unrelated mode untouched")
	assert.Equal(t, 30, p.Score("overall"), "overall re-derived after revert")

	_, err = svc.Get(ctx, entryID)
	assert.ErrorIs(t, err, domain.ErrChangelogNotFound, "revert consumes the entry")
}

func TestRevert_MissingEntry(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, nil)

	err := svc.Revert(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrChangelogNotFound)
}

func TestRevert_MissingPlayerHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, nil)

	entryID, err := svc.Record(ctx, domain.ChangelogEntry{
		PlayerID: "deleted-player",
		Changes:  []domain.TierChange{{GameMode: "axe", PreviousScore: 1, NewScore: 2}},
	})
	require.NoError(t, err)

	err = svc.Revert(ctx, entryID)
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)

	// The entry survives a failed revert.
	_, err = svc.Get(ctx, entryID)
	assert.NoError(t, err)
}

func TestRevert_HiddenPool(t *testing.T) {
	ctx := context.Background()
	svc, _, hidden := newTestService(t, nil)

	playerID, err := hidden.Create(ctx, &domain.Player{
		Name:          "Ghost",
		MinecraftName: "Ghost",
		Region:        "EU",
		Tiers:         map[string]int{"bed": 4},
	})
	require.NoError(t, err)

	require.NoError(t, hidden.Update(ctx, playerID, map[string]any{"tiers.bed": 40}, 1))
	entryID, err := svc.Record(ctx, domain.ChangelogEntry{
		PlayerID:   playerID,
		HiddenPool: true,
		Changes:    []domain.TierChange{{GameMode: "bed", PreviousScore: 4, NewScore: 40}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Revert(ctx, entryID))

	p, err := hidden.GetByID(ctx, playerID)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Score("bed"))
}
