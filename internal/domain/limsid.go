package domain

import (
	"strings"
)

// control markers embedded in positive/negative control sample IDs.
var controlMarkers = []string{"PC", "NC", "Neg", "Pos"}

// IsControl reports whether a LIMS ID names a positive or negative control
// sample. Controls keep their raw IDs and are excluded from combined
// submission files.
func IsControl(limsID string) bool {
	for _, m := range controlMarkers {
		if strings.Contains(limsID, m) {
			return true
		}
	}
	return false
}

// NormalizeLimsID strips run suffixes from a raw sample ID. Controls and
// repeat samples (-R/-r suffix) are kept verbatim; other IDs are truncated
// at the first underscore, or at the first dash when no underscore exists.
func NormalizeLimsID(raw string) string {
	switch {
	case IsControl(raw):
		return raw
	case strings.Contains(raw, "-R") || strings.Contains(raw, "-r"):
		return raw
	case strings.Contains(raw, "_"):
		return strings.SplitN(raw, "_", 2)[0]
	default:
		return strings.SplitN(raw, "-", 2)[0]
	}
}
