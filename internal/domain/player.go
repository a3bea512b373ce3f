package domain

// ModeOverall is the derived aggregate score key present in every pool.
const ModeOverall = "overall"

// MaxModeScore is the per-game-mode score ceiling shared by both pools.
const MaxModeScore = 101

// Player is a ranked community member. The same shape backs both pools;
// only the set of game-mode keys in Tiers differs.
type Player struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	MinecraftName string         `json:"minecraftName"`
	MinecraftUUID string         `json:"minecraftUuid,omitempty"`
	Region        string         `json:"region"`
	Tiers         map[string]int `json:"tiers"`
	Version       int64          `json:"version"`
}

// Score returns the player's score for a mode, zero when unset.
func (p *Player) Score(mode string) int {
	if p.Tiers == nil {
		return 0
	}
	return p.Tiers[mode]
}

// Pool describes one of the two player collections.
type Pool struct {
	Name       string
	Collection string
	Modes      []string // non-overall game modes
	MaxOverall int
}

var (
	// PoolStandard is the public tier list.
	PoolStandard = Pool{
		Name:       "standard",
		Collection: "players",
		Modes:      []string{"vanilla", "uhc", "pot", "nethop", "smp", "sword", "axe", "mace"},
		MaxOverall: 808,
	}

	// PoolHidden is the restricted tier list for novelty game modes.
	PoolHidden = Pool{
		Name:       "hidden",
		Collection: "hidden-players",
		Modes:      []string{"bed", "cart", "creeper", "spleef"},
		MaxOverall: 404,
	}
)

// Pools lists both pools in display order.
func Pools() []Pool {
	return []Pool{PoolStandard, PoolHidden}
}

// PoolByName resolves a pool from its URL name.
func PoolByName(name string) (Pool, bool) {
	switch name {
	case PoolStandard.Name:
		return PoolStandard, true
	case PoolHidden.Name:
		return PoolHidden, true
	}
	return Pool{}, false
}

// HasMode reports whether mode is a valid score key for the pool,
// including the overall aggregate.
func (p Pool) HasMode(mode string) bool {
	if mode == ModeOverall {
		return true
	}
	for _, m := range p.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// MaxScore returns the upper validation bound for a mode in this pool.
func (p Pool) MaxScore(mode string) int {
	if mode == ModeOverall {
		return p.MaxOverall
	}
	return MaxModeScore
}

// OverallScore derives the overall aggregate from a tier map: the sum of
// all non-overall scores capped at the pool maximum.
func (p Pool) OverallScore(tiers map[string]int) int {
	sum := 0
	for mode, score := range tiers {
		if mode == ModeOverall {
			continue
		}
		sum += score
	}
	if sum > p.MaxOverall {
		return p.MaxOverall
	}
	return sum
}
