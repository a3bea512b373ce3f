// Package mojang resolves Minecraft usernames to persistent profile UUIDs
// and back, against the Mojang APIs with community mirrors as fallbacks.
package mojang

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrNotFound means the username or UUID genuinely does not exist, as
// opposed to the lookup services being unreachable.
var ErrNotFound = errors.New("minecraft profile not found")

const userAgent = "CrTiers-UUID-Sync/1.0"

// Config holds provider endpoints and timeouts. Base URLs are overridable
// so tests can point the client at local servers.
type Config struct {
	MojangAPIBase     string        `yaml:"mojang_api_base"`
	SessionServerBase string        `yaml:"session_server_base"`
	PlayerDBBase      string        `yaml:"playerdb_base"`
	MCAPIBase         string        `yaml:"mcapi_base"`
	PrimaryTimeout    time.Duration `yaml:"primary_timeout"`
	FallbackTimeout   time.Duration `yaml:"fallback_timeout"`
}

func (c *Config) applyDefaults() {
	if c.MojangAPIBase == "" {
		c.MojangAPIBase = "https://api.mojang.com"
	}
	if c.SessionServerBase == "" {
		c.SessionServerBase = "https://sessionserver.mojang.com"
	}
	if c.PlayerDBBase == "" {
		c.PlayerDBBase = "https://playerdb.co"
	}
	if c.MCAPIBase == "" {
		c.MCAPIBase = "https://mc-api.net"
	}
	if c.PrimaryTimeout == 0 {
		c.PrimaryTimeout = 10 * time.Second
	}
	if c.FallbackTimeout == 0 {
		c.FallbackTimeout = 5 * time.Second
	}
}

// Client performs profile lookups.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *slog.Logger
}

// NewClient creates a resolver with the given configuration.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		httpClient: &http.Client{},
		config:     cfg,
		logger:     logger,
	}
}

type provider struct {
	name  string
	url   string
	parse func([]byte) string
}

func (c *Client) primaryProvider(username string) provider {
	return provider{
		name: "Mojang Official",
		url:  fmt.Sprintf("%s/users/profiles/minecraft/%s", c.config.MojangAPIBase, username),
		parse: func(body []byte) string {
			var resp struct {
				ID string `json:"id"`
			}
			json.Unmarshal(body, &resp)
			return resp.ID
		},
	}
}

// ResolvePrimaryUUID resolves a username against the official Mojang API
// only. 404 means the name does not exist; other failures surface as
// errors.
func (c *Client) ResolvePrimaryUUID(ctx context.Context, username string) (string, error) {
	id, status, err := c.fetch(ctx, c.primaryProvider(username), c.config.PrimaryTimeout)
	if status == http.StatusNotFound {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolving uuid for %s: %w", username, err)
	}
	if id == "" {
		return "", ErrNotFound
	}
	return id, nil
}

// ResolveUUID resolves a username to its profile UUID. The primary Mojang
// API is authoritative: its 404 means the name does not exist and stops
// the chain. Only genuine failures (network errors, non-404 statuses)
// fall through to the secondary providers, which would otherwise mask a
// real not-found with stale mirror data.
func (c *Client) ResolveUUID(ctx context.Context, username string) (string, error) {
	id, status, err := c.fetch(ctx, c.primaryProvider(username), c.config.PrimaryTimeout)
	if err == nil && id != "" {
		return id, nil
	}
	if status == http.StatusNotFound {
		return "", ErrNotFound
	}
	c.logger.Warn("primary uuid lookup failed, trying fallbacks",
		"username", username, "status", status, "error", err)

	fallbacks := []provider{
		{
			name: "PlayerDB",
			url:  fmt.Sprintf("%s/api/player/minecraft/%s", c.config.PlayerDBBase, username),
			parse: func(body []byte) string {
				var resp struct {
					Data struct {
						Player struct {
							RawID string `json:"raw_id"`
						} `json:"player"`
					} `json:"data"`
				}
				json.Unmarshal(body, &resp)
				return resp.Data.Player.RawID
			},
		},
		{
			name: "MC-API",
			url:  fmt.Sprintf("%s/v3/uuid/%s", c.config.MCAPIBase, username),
			parse: func(body []byte) string {
				var resp struct {
					UUID string `json:"uuid"`
				}
				json.Unmarshal(body, &resp)
				return resp.UUID
			},
		},
	}

	for _, p := range fallbacks {
		id, status, err := c.fetch(ctx, p, c.config.FallbackTimeout)
		if err == nil && id != "" {
			c.logger.Debug("uuid resolved by fallback provider", "provider", p.name, "username", username)
			return id, nil
		}
		c.logger.Debug("fallback provider failed", "provider", p.name, "status", status, "error", err)
	}
	return "", ErrNotFound
}

// ResolveName resolves a profile UUID to its current username via the
// authoritative session server only. A 404 is a genuine not-found; other
// non-2xx statuses surface as errors so callers can tell "name does not
// exist" apart from "service degraded".
func (c *Client) ResolveName(ctx context.Context, uuid string) (string, error) {
	p := provider{
		name: "Mojang Session Server",
		url:  fmt.Sprintf("%s/session/minecraft/profile/%s", c.config.SessionServerBase, uuid),
		parse: func(body []byte) string {
			var resp struct {
				Name string `json:"name"`
			}
			json.Unmarshal(body, &resp)
			return resp.Name
		},
	}

	name, status, err := c.fetch(ctx, p, c.config.PrimaryTimeout)
	if status == http.StatusNotFound {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolving name for %s: %w", uuid, err)
	}
	if name == "" {
		return "", ErrNotFound
	}
	return name, nil
}

// fetch performs one provider call and extracts the single field of
// interest. status is zero when the request never completed.
func (c *Client) fetch(ctx context.Context, p provider, timeout time.Duration) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", resp.StatusCode, fmt.Errorf("%s: status %d", p.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("%s: reading body: %w", p.name, err)
	}
	return p.parse(body), resp.StatusCode, nil
}
