package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crtiers/crtiers/internal/domain"
	"github.com/crtiers/crtiers/internal/mojang"
	"github.com/crtiers/crtiers/internal/player"
	"github.com/crtiers/crtiers/internal/store/memory"
)

type stubResolver struct {
	uuids map[string]string // name → uuid
	names map[string]string // uuid → name
	calls int
}

func (r *stubResolver) ResolveUUID(_ context.Context, name string) (string, error) {
	r.calls++
	if id, ok := r.uuids[name]; ok {
		return id, nil
	}
	return "", mojang.ErrNotFound
}

func (r *stubResolver) ResolveName(_ context.Context, uuid string) (string, error) {
	r.calls++
	if name, ok := r.names[uuid]; ok {
		return name, nil
	}
	return "", errors.New("session server unavailable")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSyncFixture(t *testing.T, resolver Resolver) (*UUIDSync, *player.Repository) {
	t.Helper()
	repo := player.NewRepository(memory.New(), domain.PoolStandard, testLogger())
	job := NewUUIDSync([]*player.Repository{repo}, resolver, time.Millisecond, testLogger())
	return job, repo
}

func entryFor(t *testing.T, summary PoolSummary, name string) ChangeEntry {
	t.Helper()
	for _, e := range summary.Entries {
		if e.MinecraftName == name {
			return e
		}
	}
	t.Fatalf("no entry for %s", name)
	return ChangeEntry{}
}

func TestRun_AddsMissingUUID(t *testing.T) {
	ctx := context.Background()
	resolver := &stubResolver{uuids: map[string]string{"Steve": "abc123"}}
	job, repo := newSyncFixture(t, resolver)

	id, err := repo.Create(ctx, &domain.Player{Name: "Steve", MinecraftName: "Steve", Region: "NA"})
	require.NoError(t, err)

	summaries, err := job.Run(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, 1, s.Processed)
	assert.Equal(t, 1, s.Updated)
	entry := entryFor(t, s, "Steve")
	assert.Equal(t, "Added UUID: abc123", entry.Message)
	assert.True(t, entry.Updated)

	p, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "abc123", p.MinecraftUUID)
}

func TestRun_LookupFailure(t *testing.T) {
	ctx := context.Background()
	job, repo := newSyncFixture(t, &stubResolver{})

	_, err := repo.Create(ctx, &domain.Player{Name: "Ghost", MinecraftName: "Ghost", Region: "EU"})
	require.NoError(t, err)

	summaries, err := job.Run(ctx)
	require.NoError(t, err)

	s := summaries[0]
	assert.Equal(t, 1, s.Processed)
	assert.Equal(t, 0, s.Updated)
	entry := entryFor(t, s, "Ghost")
	assert.Equal(t, "Lookup failed — name may not exist", entry.Message)
	assert.False(t, entry.Updated)
}

func TestRun_Rename(t *testing.T) {
	ctx := context.Background()
	resolver := &stubResolver{names: map[string]string{"abc123": "NewName"}}
	job, repo := newSyncFixture(t, resolver)

	id, err := repo.Create(ctx, &domain.Player{
		Name: "OldName", MinecraftName: "OldName", MinecraftUUID: "abc123", Region: "NA",
	})
	require.NoError(t, err)

	summaries, err := job.Run(ctx)
	require.NoError(t, err)

	entry := entryFor(t, summaries[0], "OldName")
	assert.Equal(t, "Renamed OldName → NewName", entry.Message)
	assert.True(t, entry.Updated)

	p, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "NewName", p.MinecraftName)
}

func TestRun_NoChangesAndFetchFailure(t *testing.T) {
	ctx := context.Background()
	resolver := &stubResolver{names: map[string]string{"keep": "Same"}}
	job, repo := newSyncFixture(t, resolver)

	_, err := repo.Create(ctx, &domain.Player{
		Name: "Same", MinecraftName: "Same", MinecraftUUID: "keep", Region: "NA",
	})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &domain.Player{
		Name: "Broken", MinecraftName: "Broken", MinecraftUUID: "dead", Region: "NA",
	})
	require.NoError(t, err)

	summaries, err := job.Run(ctx)
	require.NoError(t, err)

	s := summaries[0]
	assert.Equal(t, 2, s.Processed)
	assert.Equal(t, 0, s.Updated)
	assert.Equal(t, "No changes needed", entryFor(t, s, "Same").Message)
	assert.Equal(t, "Fetch failed — UUID may be invalid", entryFor(t, s, "Broken").Message)
}

func TestRun_CancellationStopsBatch(t *testing.T) {
	resolver := &stubResolver{uuids: map[string]string{}}
	job, repo := newSyncFixture(t, resolver)

	ctx := context.Background()
	for _, name := range []string{"One", "Two", "Three"} {
		_, err := repo.Create(ctx, &domain.Player{Name: name, MinecraftName: name, Region: "NA"})
		require.NoError(t, err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	summaries, err := job.Run(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, summaries, 1)
	assert.Zero(t, summaries[0].Processed, "a cancelled context stops before any record")
	assert.Zero(t, resolver.calls)
}
