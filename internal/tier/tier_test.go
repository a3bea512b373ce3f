package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName_OverallBreakpoints(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{808, "HT1"},
		{400, "HT1"},
		{399, "LT1"},
		{350, "LT1"},
		{300, "HT2"},
		{280, "LT2"},
		{240, "HT3"},
		{200, "LT3"},
		{150, "HT4"},
		{80, "LT4"},
		{25, "HT5"},
		{10, "LT5"},
		{9, "LT5"},
		{0, "LT5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Name(tt.score, true), "overall score %d", tt.score)
	}
}

func TestName_ModeBreakpoints(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{101, "HT1"},
		{60, "HT1"},
		{59, "LT1"},
		{45, "LT1"},
		{30, "HT2"},
		{20, "LT2"},
		{10, "HT3"},
		{6, "LT3"},
		{4, "HT4"},
		{3, "LT4"},
		{2, "HT5"},
		{1, "LT5"},
		{0, Unranked},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Name(tt.score, false), "mode score %d", tt.score)
	}
}

// Every score maps to exactly one label and a higher score never maps to
// a lower tier.
func TestName_TotalAndMonotonic(t *testing.T) {
	rank := func(label string) int {
		order := []string{Unranked, "LT5", "HT5", "LT4", "HT4", "LT3", "HT3", "LT2", "HT2", "LT1", "HT1"}
		for i, l := range order {
			if l == label {
				return i
			}
		}
		t.Fatalf("unknown label %q", label)
		return -1
	}

	for _, overall := range []bool{true, false} {
		prev := -1
		for score := 0; score <= 850; score++ {
			got := Name(score, overall)
			assert.NotEmpty(t, got)
			r := rank(got)
			assert.GreaterOrEqual(t, r, prev, "score %d (overall=%v) dropped below previous tier", score, overall)
			prev = r
		}
	}
}

func TestColorClass(t *testing.T) {
	assert.Equal(t, "tierHT1", ColorClass(60, false))
	assert.Equal(t, "tierHT1", ColorClass(45, false), "LT1 shares HT1's color")
	assert.Equal(t, "tierHT5", ColorClass(1, false), "LT5 shares HT5's color")
	assert.Equal(t, "tierUnranked", ColorClass(0, false))
	assert.Equal(t, "tierHT5", ColorClass(0, true), "overall never goes unranked")
}
