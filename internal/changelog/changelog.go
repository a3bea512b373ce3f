// Package changelog records admin tier edits and can reverse them. Entries
// are append-only; a revert restores the previous scores onto the player
// record and consumes the entry.
package changelog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crtiers/crtiers/internal/domain"
	"github.com/crtiers/crtiers/internal/player"
	"github.com/crtiers/crtiers/internal/store"
)

const collection = "changelogs"

// DefaultListLimit bounds List when the caller does not pass a limit.
const DefaultListLimit = 100

// Publisher mirrors recorded entries to an external audit stream.
type Publisher interface {
	PublishTierChange(ctx context.Context, entry domain.ChangelogEntry) error
}

// Service owns the changelogs collection. It reads player records only to
// resolve revert targets, always by immutable record id.
type Service struct {
	store     store.Store
	standard  *player.Repository
	hidden    *player.Repository
	publisher Publisher
	logger    *slog.Logger
}

// NewService creates the changelog service. publisher may be nil.
func NewService(st store.Store, standard, hidden *player.Repository, publisher Publisher, logger *slog.Logger) *Service {
	return &Service{
		store:     st,
		standard:  standard,
		hidden:    hidden,
		publisher: publisher,
		logger:    logger,
	}
}

// Record appends an entry with a server-assigned timestamp and returns its
// id. A failed audit-stream publish is logged, never surfaced: the edit
// already happened.
func (s *Service) Record(ctx context.Context, entry domain.ChangelogEntry) (string, error) {
	entry.CreatedAt = time.Now().UTC()

	id, err := s.store.Add(ctx, collection, encodeEntry(entry))
	if err != nil {
		return "", fmt.Errorf("recording changelog: %w", err)
	}
	entry.ID = id

	if s.publisher != nil {
		if err := s.publisher.PublishTierChange(ctx, entry); err != nil {
			s.logger.Warn("failed to publish tier change event", "changelog_id", id, "error", err)
		}
	}
	return id, nil
}

// List returns up to limit entries, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]domain.ChangelogEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	docs, err := s.store.OrderByLimit(ctx, collection, "createdAt", true, limit)
	if err != nil {
		return nil, fmt.Errorf("listing changelogs: %w", err)
	}
	entries := make([]domain.ChangelogEntry, len(docs))
	for i, doc := range docs {
		entries[i] = decodeEntry(doc)
	}
	return entries, nil
}

// Get fetches one entry by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.ChangelogEntry, error) {
	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		if errors.Is(err, store.ErrDocNotFound) {
			return nil, domain.ErrChangelogNotFound
		}
		return nil, fmt.Errorf("getting changelog %s: %w", id, err)
	}
	entry := decodeEntry(doc)
	return &entry, nil
}

// Revert restores the previous score of every change whose mode still
// exists on the current record, then deletes the entry. The target is
// resolved by record id; a missing target fails without side effects.
// Restored scores are not re-validated.
func (s *Service) Revert(ctx context.Context, id string) error {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	repo := s.standard
	if entry.HiddenPool {
		repo = s.hidden
	}

	current, err := repo.GetByID(ctx, entry.PlayerID)
	if err != nil {
		return err
	}

	fields := make(map[string]any)
	for _, change := range entry.Changes {
		if _, ok := current.Tiers[change.GameMode]; ok {
			fields["tiers."+change.GameMode] = change.PreviousScore
		}
	}

	if err := repo.Update(ctx, current.ID, fields, current.Version); err != nil {
		return fmt.Errorf("restoring previous scores: %w", err)
	}

	if err := s.store.Delete(ctx, collection, entry.ID); err != nil {
		return fmt.Errorf("deleting reverted changelog: %w", err)
	}

	s.logger.Info("reverted tier changes",
		"changelog_id", entry.ID,
		"player_id", entry.PlayerID,
		"changes", len(entry.Changes),
	)
	return nil
}

func encodeEntry(entry domain.ChangelogEntry) map[string]any {
	changes := make([]any, len(entry.Changes))
	for i, c := range entry.Changes {
		changes[i] = map[string]any{
			"gameMode":      c.GameMode,
			"previousScore": c.PreviousScore,
			"newScore":      c.NewScore,
		}
	}
	return map[string]any{
		"playerId":       entry.PlayerID,
		"minecraftName":  entry.MinecraftName,
		"isHiddenPlayer": entry.HiddenPool,
		"changes":        changes,
		"createdAt":      store.FormatTime(entry.CreatedAt),
	}
}

func decodeEntry(doc store.Doc) domain.ChangelogEntry {
	entry := domain.ChangelogEntry{
		ID:            doc.ID,
		PlayerID:      store.AsString(doc.Data["playerId"]),
		MinecraftName: store.AsString(doc.Data["minecraftName"]),
		CreatedAt:     store.AsTime(doc.Data["createdAt"]),
	}
	if hidden, ok := doc.Data["isHiddenPlayer"].(bool); ok {
		entry.HiddenPool = hidden
	}
	if raw, ok := doc.Data["changes"].([]any); ok {
		for _, item := range raw {
			change, ok := item.(map[string]any)
			if !ok {
				continue
			}
			entry.Changes = append(entry.Changes, domain.TierChange{
				GameMode:      store.AsString(change["gameMode"]),
				PreviousScore: store.AsInt(change["previousScore"]),
				NewScore:      store.AsInt(change["newScore"]),
			})
		}
	}
	return entry
}
