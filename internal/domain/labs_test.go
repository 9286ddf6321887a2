package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLabDirectory(t *testing.T) {
	tests := []struct {
		name        string
		assignments map[string][]string
		wantErr     bool
	}{
		{
			name:        "valid range and exact entries",
			assignments: map[string][]string{"NICD": {"K001-K010", "X042"}},
			wantErr:     false,
		},
		{
			name:        "blank entries ignored",
			assignments: map[string][]string{"NICD": {"", "  "}},
			wantErr:     false,
		},
		{
			name:        "mismatched range prefixes",
			assignments: map[string][]string{"NICD": {"K001-M010"}},
			wantErr:     true,
		},
		{
			name:        "end before start",
			assignments: map[string][]string{"NICD": {"K010-K001"}},
			wantErr:     true,
		},
		{
			name:        "range without numeric parts",
			assignments: map[string][]string{"NICD": {"abc-def"}},
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLabDirectory("CERI", tt.assignments)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLabDirectory() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLabDirectory_LabFor(t *testing.T) {
	d, err := NewLabDirectory("CERI", map[string][]string{
		"NICD":   {"K001-K003"},
		"Lancet": {"K010", "M100-M200"},
	})
	require.NoError(t, err)

	tests := []struct {
		limsID   string
		expected string
	}{
		{"K001", "NICD"},
		{"K002", "NICD"},
		{"K003", "NICD"},
		{"K004", "CERI"},   // outside range, default lab
		{"K010", "Lancet"}, // exact match
		{"M150", "Lancet"},
		{"M201", "CERI"},
		{"Z999", "CERI"},
	}

	for _, tt := range tests {
		t.Run(tt.limsID, func(t *testing.T) {
			assert.Equal(t, tt.expected, d.LabFor(tt.limsID))
		})
	}
}

func TestLabDirectory_LabFor_NoDefault(t *testing.T) {
	d, err := NewLabDirectory("", nil)
	require.NoError(t, err)
	assert.Equal(t, UnknownLab, d.LabFor("K001"))
}
