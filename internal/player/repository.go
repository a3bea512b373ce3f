// Package player provides the per-pool repository over the document store.
// All writes are validated here, so no caller can bypass validation, and
// every update is guarded by the record's version field.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crtiers/crtiers/internal/domain"
	"github.com/crtiers/crtiers/internal/store"
)

const (
	fieldName          = "name"
	fieldMinecraftName = "minecraftName"
	fieldMinecraftUUID = "minecraftUuid"
	fieldRegion        = "region"
	fieldVersion       = "version"
	tiersPrefix        = "tiers."
)

// Repository is the CRUD and query façade for one player pool.
type Repository struct {
	store  store.Store
	pool   domain.Pool
	logger *slog.Logger
}

// NewRepository creates a repository bound to one pool's collection.
func NewRepository(st store.Store, pool domain.Pool, logger *slog.Logger) *Repository {
	return &Repository{store: st, pool: pool, logger: logger}
}

// Pool returns the pool this repository serves.
func (r *Repository) Pool() domain.Pool {
	return r.pool
}

// List returns every player in the pool.
func (r *Repository) List(ctx context.Context) ([]domain.Player, error) {
	docs, err := r.store.List(ctx, r.pool.Collection)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.pool.Collection, err)
	}
	players := make([]domain.Player, len(docs))
	for i, doc := range docs {
		players[i] = decodePlayer(doc)
	}
	return players, nil
}

// Search returns players whose display or minecraft name contains term,
// case-insensitively. Filtering happens in memory; the store cannot do
// substring matches over unindexed fields.
func (r *Repository) Search(ctx context.Context, term string) ([]domain.Player, error) {
	players, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(term)
	matched := players[:0]
	for _, p := range players {
		if strings.Contains(strings.ToLower(p.MinecraftName), term) ||
			strings.Contains(strings.ToLower(p.Name), term) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// GetByID fetches one player by record id.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Player, error) {
	doc, err := r.store.Get(ctx, r.pool.Collection, id)
	if err != nil {
		if errors.Is(err, store.ErrDocNotFound) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting player %s: %w", id, err)
	}
	p := decodePlayer(doc)
	return &p, nil
}

// GetByName looks a player up by username: exact minecraft name, then
// exact display name, then a full-scan case-insensitive comparison against
// both. The scan is O(n), accepted for correctness over a field the store
// cannot compare case-insensitively.
func (r *Repository) GetByName(ctx context.Context, name string) (*domain.Player, error) {
	for _, field := range []string{fieldMinecraftName, fieldName} {
		docs, err := r.store.Query(ctx, r.pool.Collection, store.Where(field, store.OpEqual, name))
		if err != nil {
			return nil, fmt.Errorf("querying player by %s: %w", field, err)
		}
		if len(docs) > 0 {
			p := decodePlayer(docs[0])
			return &p, nil
		}
	}

	players, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(name)
	for i := range players {
		if strings.ToLower(players[i].MinecraftName) == lower ||
			strings.ToLower(players[i].Name) == lower {
			return &players[i], nil
		}
	}
	return nil, domain.ErrPlayerNotFound
}

// OrderedTop returns up to limit players ordered by the mode's score,
// highest first.
func (r *Repository) OrderedTop(ctx context.Context, mode string, limit int) ([]domain.Player, error) {
	if !r.pool.HasMode(mode) {
		return nil, domain.ErrUnknownMode
	}
	docs, err := r.store.OrderByLimit(ctx, r.pool.Collection, tiersPrefix+mode, true, limit)
	if err != nil {
		return nil, fmt.Errorf("ordered top for %s: %w", mode, err)
	}
	players := make([]domain.Player, len(docs))
	for i, doc := range docs {
		players[i] = decodePlayer(doc)
	}
	return players, nil
}

// CountHigher returns how many players strictly outscore the given score
// in a mode. A non-empty region restricts the count to that region.
func (r *Repository) CountHigher(ctx context.Context, mode string, score int, region string) (int64, error) {
	if !r.pool.HasMode(mode) {
		return 0, domain.ErrUnknownMode
	}
	conds := []store.Cond{store.Where(tiersPrefix+mode, store.OpGreater, score)}
	if region != "" {
		conds = append(conds, store.Where(fieldRegion, store.OpEqual, domain.NormalizeRegion(region)))
	}
	n, err := r.store.Count(ctx, r.pool.Collection, conds...)
	if err != nil {
		return 0, fmt.Errorf("counting higher scores for %s: %w", mode, err)
	}
	return n, nil
}

// Create validates and inserts a player. The overall score is derived
// server-side; any caller-supplied value is discarded. Returns the
// store-assigned id.
func (r *Repository) Create(ctx context.Context, p *domain.Player) (string, error) {
	if errs := r.validate(p); len(errs) > 0 {
		return "", errs
	}

	tiers := make(map[string]int, len(r.pool.Modes)+1)
	for _, mode := range r.pool.Modes {
		tiers[mode] = p.Score(mode)
	}
	tiers[domain.ModeOverall] = r.pool.OverallScore(tiers)

	data := map[string]any{
		fieldName:          p.Name,
		fieldMinecraftName: p.MinecraftName,
		fieldMinecraftUUID: p.MinecraftUUID,
		fieldRegion:        domain.NormalizeRegion(p.Region),
		fieldVersion:       int64(1),
		"tiers":            encodeTiers(tiers),
	}
	id, err := r.store.Add(ctx, r.pool.Collection, data)
	if err != nil {
		return "", fmt.Errorf("creating player: %w", err)
	}
	return id, nil
}

// Update applies a path-scoped partial update. Fields use document paths
// ("tiers.axe", "region", ...); updating one score leaves siblings intact.
// The write only lands while the record still carries expectedVersion;
// otherwise ErrVersionConflict is returned and nothing is applied. When
// any score changes, the overall aggregate is recomputed from the merged
// score set.
func (r *Repository) Update(ctx context.Context, id string, fields map[string]any, expectedVersion int64) error {
	if errs := r.validateFields(fields); len(errs) > 0 {
		return errs
	}

	update := make(map[string]any, len(fields)+2)
	touchedScores := false
	for path, value := range fields {
		if path == tiersPrefix+domain.ModeOverall {
			// Derived field, never written by callers.
			continue
		}
		if strings.HasPrefix(path, tiersPrefix) {
			touchedScores = true
			update[path] = store.AsInt(value)
			continue
		}
		if path == fieldRegion {
			update[path] = domain.NormalizeRegion(store.AsString(value))
			continue
		}
		update[path] = value
	}

	if touchedScores {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		merged := make(map[string]int, len(r.pool.Modes))
		for _, mode := range r.pool.Modes {
			merged[mode] = current.Score(mode)
		}
		for path, value := range update {
			if strings.HasPrefix(path, tiersPrefix) {
				merged[strings.TrimPrefix(path, tiersPrefix)] = store.AsInt(value)
			}
		}
		update[tiersPrefix+domain.ModeOverall] = r.pool.OverallScore(merged)
	}

	update[fieldVersion] = expectedVersion + 1

	err := r.store.UpdateFieldsIf(ctx, r.pool.Collection, id, update, fieldVersion, expectedVersion)
	switch {
	case errors.Is(err, store.ErrDocNotFound):
		return domain.ErrPlayerNotFound
	case errors.Is(err, store.ErrPreconditionFailed):
		return domain.ErrVersionConflict
	case err != nil:
		return fmt.Errorf("updating player %s: %w", id, err)
	}
	return nil
}

// Delete removes a player record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, r.pool.Collection, id); err != nil {
		return fmt.Errorf("deleting player %s: %w", id, err)
	}
	return nil
}

func (r *Repository) validate(p *domain.Player) domain.ValidationErrors {
	var errs domain.ValidationErrors
	if len(strings.TrimSpace(p.MinecraftName)) < 3 {
		errs = append(errs, "Minecraft name must be at least 3 characters long")
	}
	if !domain.ValidRegion(p.Region) {
		errs = append(errs, "Region must be NA, EU, AS, or OCE")
	}
	for mode, score := range p.Tiers {
		if mode == domain.ModeOverall {
			// Derived server-side, caller value discarded.
			continue
		}
		errs = append(errs, r.validateScore(mode, score)...)
	}
	return errs
}

func (r *Repository) validateFields(fields map[string]any) domain.ValidationErrors {
	var errs domain.ValidationErrors
	for path, value := range fields {
		switch {
		case path == fieldMinecraftName:
			if len(strings.TrimSpace(store.AsString(value))) < 3 {
				errs = append(errs, "Minecraft name must be at least 3 characters long")
			}
		case path == fieldRegion:
			if !domain.ValidRegion(store.AsString(value)) {
				errs = append(errs, "Region must be NA, EU, AS, or OCE")
			}
		case path == tiersPrefix+domain.ModeOverall:
			// Derived server-side, caller value discarded.
		case strings.HasPrefix(path, tiersPrefix):
			mode := strings.TrimPrefix(path, tiersPrefix)
			errs = append(errs, r.validateScore(mode, store.AsInt(value))...)
		case path == fieldName, path == fieldMinecraftUUID:
			// Free-form fields.
		default:
			errs = append(errs, fmt.Sprintf("%s is not an editable field", path))
		}
	}
	return errs
}

func (r *Repository) validateScore(mode string, score int) domain.ValidationErrors {
	var errs domain.ValidationErrors
	if !r.pool.HasMode(mode) {
		errs = append(errs, fmt.Sprintf("%s is not a valid game mode", mode))
		return errs
	}
	if score < 0 {
		errs = append(errs, fmt.Sprintf("%s score must be a positive number", mode))
	}
	if max := r.pool.MaxScore(mode); score > max {
		errs = append(errs, fmt.Sprintf("%s score should not exceed %d", mode, max))
	}
	return errs
}

func encodeTiers(tiers map[string]int) map[string]any {
	out := make(map[string]any, len(tiers))
	for mode, score := range tiers {
		out[mode] = score
	}
	return out
}

func decodePlayer(doc store.Doc) domain.Player {
	p := domain.Player{
		ID:            doc.ID,
		Name:          store.AsString(doc.Data[fieldName]),
		MinecraftName: store.AsString(doc.Data[fieldMinecraftName]),
		MinecraftUUID: store.AsString(doc.Data[fieldMinecraftUUID]),
		Region:        store.AsString(doc.Data[fieldRegion]),
		Version:       store.AsInt64(doc.Data[fieldVersion]),
		Tiers:         make(map[string]int),
	}
	if tiers, ok := doc.Data["tiers"].(map[string]any); ok {
		for mode, score := range tiers {
			p.Tiers[mode] = store.AsInt(score)
		}
	}
	return p
}
