package domain

import "strings"

// Regions players can belong to. Stored upper-cased.
var Regions = []string{"NA", "EU", "AS", "OCE"}

// NormalizeRegion upper-cases a free-text region value.
func NormalizeRegion(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidRegion reports whether raw normalizes to a known region.
func ValidRegion(raw string) bool {
	normalized := NormalizeRegion(raw)
	for _, r := range Regions {
		if r == normalized {
			return true
		}
	}
	return false
}
