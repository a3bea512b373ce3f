// Package handler exposes the HTTP API: public leaderboard reads, the
// websocket endpoint, and the cookie-gated admin surface.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/crtiers/crtiers/internal/auth"
	"github.com/crtiers/crtiers/internal/changelog"
	"github.com/crtiers/crtiers/internal/domain"
	"github.com/crtiers/crtiers/internal/mojang"
	"github.com/crtiers/crtiers/internal/service"
	"github.com/crtiers/crtiers/internal/websocket"
	"github.com/crtiers/crtiers/internal/worker"
)

// Handler provides HTTP handlers for the tier list API.
type Handler struct {
	leaderboards *service.LeaderboardService
	admin        *service.AdminService
	sessions     *auth.Service
	mojang       *mojang.Client
	uuidSync     *worker.UUIDSync
	hub          *websocket.Hub
	logger       *slog.Logger
}

// NewHandler wires the handler to its services.
func NewHandler(
	leaderboards *service.LeaderboardService,
	admin *service.AdminService,
	sessions *auth.Service,
	mojangClient *mojang.Client,
	uuidSync *worker.UUIDSync,
	hub *websocket.Hub,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		leaderboards: leaderboards,
		admin:        admin,
		sessions:     sessions,
		mojang:       mojangClient,
		uuidSync:     uuidSync,
		hub:          hub,
		logger:       logger,
	}
}

// APIResponse is the standard response envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Router creates and configures the HTTP router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/leaderboards/{pool}/{mode}", func(r chi.Router) {
			r.Get("/", h.GetLeaderboard)
			r.Get("/top", h.GetLeaderboard)
		})
		r.Route("/players/{pool}", func(r chi.Router) {
			r.Get("/", h.SearchPlayers)
			r.Get("/{name}", h.GetPlayer)
			r.Get("/{name}/rank", h.GetPlayerRank)
		})
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)

		r.Group(func(r chi.Router) {
			r.Use(h.sessions.Middleware(func(w http.ResponseWriter, _ *http.Request, err error) {
				h.writeError(w, http.StatusUnauthorized, err)
			}))

			r.Route("/players/{pool}", func(r chi.Router) {
				r.Get("/", h.ListPlayers)
				r.Post("/", h.CreatePlayer)
				r.Put("/{id}", h.UpdatePlayer)
				r.Delete("/{id}", h.DeletePlayer)
			})

			r.Get("/changelogs", h.ListChangelogs)
			r.Post("/changelogs/{id}/revert", h.RevertChangelog)

			r.Post("/sync-uuids", h.SyncUUIDs)

			r.Get("/mojang/uuid/{username}", h.MojangUUID)
			r.Get("/mojang/uuid-fallback/{username}", h.MojangUUIDFallback)
			r.Get("/mojang/username/{uuid}", h.MojangUsername)
		})
	})

	return r
}

// corsMiddleware echoes the caller's origin so the session cookie can
// travel with credentialed requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeSuccess(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeServiceError maps domain errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var verrs domain.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		h.writeError(w, http.StatusBadRequest, verrs)
	case errors.Is(err, domain.ErrUnknownPool), errors.Is(err, domain.ErrUnknownMode):
		h.writeError(w, http.StatusBadRequest, err)
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrVersionConflict):
		h.writeError(w, http.StatusConflict, err)
	default:
		h.logger.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// HandleWebSocket handles WebSocket upgrade requests.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns connection statistics.
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]any{
		"total_connections": h.hub.TotalConnections(),
	})
}

// HealthCheck returns service health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// GetLeaderboard returns the decorated top rows of one pool's mode.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	pool := chi.URLParam(r, "pool")
	mode := chi.URLParam(r, "mode")
	limit := queryInt(r, "limit", service.DefaultLeaderboardLimit)

	rows, err := h.leaderboards.Top(r.Context(), pool, mode, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, rows)
}

// SearchPlayers lists a pool's players, optionally filtered by ?search.
func (h *Handler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	pool := chi.URLParam(r, "pool")
	term := r.URL.Query().Get("search")

	profiles, err := h.leaderboards.Search(r.Context(), pool, term)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, profiles)
}

// GetPlayer returns one player's decorated profile by username.
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	pool := chi.URLParam(r, "pool")
	name := chi.URLParam(r, "name")

	profile, err := h.leaderboards.GetProfile(r.Context(), pool, name)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, profile)
}

// GetPlayerRank returns a player's 1-based rank in ?mode, optionally
// within ?region.
func (h *Handler) GetPlayerRank(w http.ResponseWriter, r *http.Request) {
	pool := chi.URLParam(r, "pool")
	name := chi.URLParam(r, "name")
	mode := r.URL.Query().Get("mode")
	region := r.URL.Query().Get("region")
	if mode == "" {
		mode = domain.ModeOverall
	}

	profile, err := h.leaderboards.GetProfile(r.Context(), pool, name)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rank, err := h.leaderboards.Rank(r.Context(), pool, mode, profile.Player.Score(mode), region)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, map[string]any{
		"playerId": profile.Player.ID,
		"mode":     mode,
		"region":   region,
		"score":    profile.Player.Score(mode),
		"rank":     rank,
	})
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login verifies the admin password and sets the session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	token, expires, err := h.sessions.Login(req.Password)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	h.writeSuccess(w, map[string]any{"expiresAt": expires})
}

// Logout clears the session cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	h.writeSuccess(w, map[string]string{"status": "logged out"})
}

// Me reports whether the caller holds a valid session.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.CookieName)
	if err != nil {
		h.writeSuccess(w, map[string]any{"authenticated": false})
		return
	}
	claims, err := h.sessions.Verify(cookie.Value)
	if err != nil {
		h.writeSuccess(w, map[string]any{"authenticated": false})
		return
	}
	h.writeSuccess(w, map[string]any{
		"authenticated": true,
		"role":          claims.Role,
		"expiresAt":     claims.ExpiresAt,
	})
}

// ListPlayers returns a pool's full roster for the admin table.
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	pool := chi.URLParam(r, "pool")
	profiles, err := h.leaderboards.Search(r.Context(), pool, r.URL.Query().Get("search"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, profiles)
}

// CreatePlayer inserts a new player record.
func (h *Handler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	pool := chi.URLParam(r, "pool")

	var p domain.Player
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	created, err := h.admin.CreatePlayer(r.Context(), pool, &p)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    created,
	})
}

type updatePlayerRequest struct {
	Fields  map[string]any `json:"fields"`
	Version int64          `json:"version"`
}

// UpdatePlayer applies a partial update under optimistic concurrency.
// Fields use document paths: "tiers.axe", "region", "minecraftName".
func (h *Handler) UpdatePlayer(w http.ResponseWriter, r *http.Request) {
	pool := chi.URLParam(r, "pool")
	id := chi.URLParam(r, "id")

	var req updatePlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Fields) == 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	updated, err := h.admin.UpdatePlayer(r.Context(), pool, id, req.Fields, req.Version)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, updated)
}

// DeletePlayer removes a player record.
func (h *Handler) DeletePlayer(w http.ResponseWriter, r *http.Request) {
	pool := chi.URLParam(r, "pool")
	id := chi.URLParam(r, "id")

	if err := h.admin.DeletePlayer(r.Context(), pool, id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "deleted"})
}

// ListChangelogs returns recent tier changes, newest first.
func (h *Handler) ListChangelogs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", changelog.DefaultListLimit)
	entries, err := h.admin.Changelogs(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, entries)
}

// RevertChangelog undoes one recorded change by entry id.
func (h *Handler) RevertChangelog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.admin.Revert(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "reverted"})
}

// SyncUUIDs runs the Mojang reconciliation batch over every pool.
// ?updated=true filters the per-record entries down to actual changes.
func (h *Handler) SyncUUIDs(w http.ResponseWriter, r *http.Request) {
	// The sequential batch outlives the server's write timeout on any
	// real roster, so lift the connection deadline for this request.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Warn("could not lift write deadline for uuid sync", "error", err)
	}

	summaries, err := h.uuidSync.Run(r.Context())
	if err != nil {
		// Cancellation mid-batch still reports the partial summaries.
		h.logger.Warn("uuid sync ended early", "error", err)
	}
	if r.URL.Query().Get("updated") == "true" {
		for i := range summaries {
			filtered := summaries[i].Entries[:0]
			for _, e := range summaries[i].Entries {
				if e.Updated {
					filtered = append(filtered, e)
				}
			}
			summaries[i].Entries = filtered
		}
	}
	h.writeSuccess(w, summaries)
}

// MojangUUID proxies a primary-only UUID lookup.
func (h *Handler) MojangUUID(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	id, err := h.mojang.ResolvePrimaryUUID(r.Context(), username)
	h.writeMojangResult(w, map[string]string{"id": id}, err)
}

// MojangUUIDFallback proxies the full provider chain.
func (h *Handler) MojangUUIDFallback(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	id, err := h.mojang.ResolveUUID(r.Context(), username)
	h.writeMojangResult(w, map[string]string{"id": id}, err)
}

// MojangUsername proxies a reverse lookup via the session server.
func (h *Handler) MojangUsername(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	name, err := h.mojang.ResolveName(r.Context(), uuid)
	h.writeMojangResult(w, map[string]string{"name": name}, err)
}

func (h *Handler) writeMojangResult(w http.ResponseWriter, data any, err error) {
	switch {
	case errors.Is(err, mojang.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case err != nil:
		h.logger.Error("mojang lookup failed", "error", err)
		h.writeError(w, http.StatusBadGateway, err)
	default:
		h.writeSuccess(w, data)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
