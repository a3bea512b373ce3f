// Package tier maps numeric scores onto the ladder of competitive tier
// labels. Breakpoints are inclusive lower bounds checked highest first, so
// a score sitting exactly on a breakpoint belongs to the higher tier.
package tier

// Unranked is returned only for a zero score on a non-overall mode.
const Unranked = "Unranked"

type breakpoint struct {
	min   int
	label string
}

// Overall ladder, driven by the aggregate 0-808 scale.
var overallLadder = []breakpoint{
	{400, "HT1"},
	{350, "LT1"},
	{300, "HT2"},
	{280, "LT2"},
	{240, "HT3"},
	{200, "LT3"},
	{150, "HT4"},
	{80, "LT4"},
	{25, "HT5"},
	{10, "LT5"},
}

// Per-game-mode ladder on the 0-101 scale.
var modeLadder = []breakpoint{
	{60, "HT1"},
	{45, "LT1"},
	{30, "HT2"},
	{20, "LT2"},
	{10, "HT3"},
	{6, "LT3"},
	{4, "HT4"},
	{3, "LT4"},
	{2, "HT5"},
	{1, "LT5"},
}

// Name classifies a score into its tier label. Total: every score maps to
// exactly one label. Below the lowest overall breakpoint the bottom tier is
// returned; a zero score on a regular mode is Unranked.
func Name(score int, overall bool) string {
	if overall {
		for _, bp := range overallLadder {
			if score >= bp.min {
				return bp.label
			}
		}
		return "LT5"
	}
	for _, bp := range modeLadder {
		if score >= bp.min {
			return bp.label
		}
	}
	return Unranked
}

// ColorClass derives the CSS color group for a score. Low and high halves
// of a tier share a color, so LTx collapses onto HTx.
func ColorClass(score int, overall bool) string {
	label := Name(score, overall)
	if label == Unranked {
		return "tierUnranked"
	}
	if label[0] == 'L' {
		label = "H" + label[1:]
	}
	return "tier" + label
}
