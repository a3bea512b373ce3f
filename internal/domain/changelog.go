package domain

import "time"

// TierChange is one mutated score within a changelog entry.
type TierChange struct {
	GameMode      string `json:"gameMode"`
	PreviousScore int    `json:"previousScore"`
	NewScore      int    `json:"newScore"`
}

// ChangelogEntry records one admin edit of a player's tiers. Entries are
// append-only until consumed by a revert, which restores the previous
// scores and deletes the entry.
type ChangelogEntry struct {
	ID            string       `json:"id"`
	PlayerID      string       `json:"playerId"`
	MinecraftName string       `json:"minecraftName"`
	HiddenPool    bool         `json:"isHiddenPlayer"`
	Changes       []TierChange `json:"changes"`
	CreatedAt     time.Time    `json:"createdAt"`
}
