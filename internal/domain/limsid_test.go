package domain

import (
	"testing"
)

func TestIsControl(t *testing.T) {
	tests := []struct {
		limsID   string
		expected bool
	}{
		{"PC01", true},
		{"NC-2", true},
		{"Neg_ctrl", true},
		{"Pos_ctrl", true},
		{"K001", false},
		{"K001_S12", false},
	}

	for _, tt := range tests {
		t.Run(tt.limsID, func(t *testing.T) {
			if got := IsControl(tt.limsID); got != tt.expected {
				t.Errorf("IsControl(%q) = %v, want %v", tt.limsID, got, tt.expected)
			}
		})
	}
}

func TestNormalizeLimsID(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"underscore run suffix stripped", "K001_S12_L001", "K001"},
		{"dash suffix stripped", "K001-B2", "K001"},
		{"plain ID unchanged", "K001", "K001"},
		{"repeat sample kept verbatim", "K001-R", "K001-R"},
		{"lowercase repeat kept verbatim", "K001-r2", "K001-r2"},
		{"positive control kept verbatim", "PC01_S1", "PC01_S1"},
		{"negative control kept verbatim", "NC-02_S3", "NC-02_S3"},
		{"Neg marker kept verbatim", "Neg_ctrl_S9", "Neg_ctrl_S9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeLimsID(tt.raw); got != tt.expected {
				t.Errorf("NormalizeLimsID(%q) = %q, want %q", tt.raw, got, tt.expected)
			}
		})
	}
}
