package mojang

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(cfg Config) *Client {
	return NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestResolveUUID_PrimarySuccess(t *testing.T) {
	var fallbackHit atomic.Bool

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "CrTiers-UUID-Sync/1.0", r.Header.Get("User-Agent"))
		w.Write([]byte(`{"id":"abc123","name":"Steve"}`))
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackHit.Store(true)
		w.Write([]byte(`{}`))
	}))
	defer fallback.Close()

	c := testClient(Config{
		MojangAPIBase: primary.URL,
		PlayerDBBase:  fallback.URL,
		MCAPIBase:     fallback.URL,
	})

	id, err := c.ResolveUUID(context.Background(), "Steve")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)
	assert.False(t, fallbackHit.Load(), "a primary hit must not touch the fallbacks")
}

func TestResolveUUID_Primary404StopsChain(t *testing.T) {
	var fallbackHit atomic.Bool

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackHit.Store(true)
		w.Write([]byte(`{"data":{"player":{"raw_id":"stale"}}}`))
	}))
	defer fallback.Close()

	c := testClient(Config{
		MojangAPIBase: primary.URL,
		PlayerDBBase:  fallback.URL,
		MCAPIBase:     fallback.URL,
	})

	_, err := c.ResolveUUID(context.Background(), "NoSuchName")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, fallbackHit.Load(), "a genuine not-found must not be masked by mirrors")
}

func TestResolveUUID_PrimaryErrorFallsThrough(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()

	playerdb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"player":{"raw_id":"def456"}}}`))
	}))
	defer playerdb.Close()

	c := testClient(Config{
		MojangAPIBase: primary.URL,
		PlayerDBBase:  playerdb.URL,
		MCAPIBase:     primary.URL,
	})

	id, err := c.ResolveUUID(context.Background(), "Steve")
	require.NoError(t, err)
	assert.Equal(t, "def456", id, "first working fallback wins")
}

func TestResolveUUID_LastFallback(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	mcapi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"uuid":"ghi789"}`))
	}))
	defer mcapi.Close()

	c := testClient(Config{
		MojangAPIBase: failing.URL,
		PlayerDBBase:  failing.URL,
		MCAPIBase:     mcapi.URL,
	})

	id, err := c.ResolveUUID(context.Background(), "Steve")
	require.NoError(t, err)
	assert.Equal(t, "ghi789", id)
}

func TestResolveUUID_AllFail(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	c := testClient(Config{
		MojangAPIBase: failing.URL,
		PlayerDBBase:  failing.URL,
		MCAPIBase:     failing.URL,
	})

	_, err := c.ResolveUUID(context.Background(), "Steve")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolvePrimaryUUID(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/profiles/minecraft/Steve":
			w.Write([]byte(`{"id":"abc123"}`))
		case "/users/profiles/minecraft/Missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer primary.Close()

	c := testClient(Config{MojangAPIBase: primary.URL})

	id, err := c.ResolvePrimaryUUID(context.Background(), "Steve")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	_, err = c.ResolvePrimaryUUID(context.Background(), "Missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.ResolvePrimaryUUID(context.Background(), "Broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound, "service failure is not a not-found")
}

func TestResolveName(t *testing.T) {
	session := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session/minecraft/profile/abc123":
			w.Write([]byte(`{"id":"abc123","name":"Steve"}`))
		case "/session/minecraft/profile/gone":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer session.Close()

	c := testClient(Config{SessionServerBase: session.URL})

	name, err := c.ResolveName(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "Steve", name)

	_, err = c.ResolveName(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.ResolveName(context.Background(), "flaky")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
