package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		profile *VirusProfile
		wantErr bool
	}{
		{
			name: "valid non-segmented profile",
			profile: &VirusProfile{
				ID:             "hiv",
				HeaderTemplate: "<isolate>/<LimsID>",
			},
			wantErr: false,
		},
		{
			name: "valid segmented profile",
			profile: &VirusProfile{
				ID:             "influenza-a",
				HeaderTemplate: "<isolate>/<LimsID>_<gene>",
				Segments:       []SegmentSpec{{Slot: 1, Name: "PB2"}},
			},
			wantErr: false,
		},
		{
			name:    "nil profile",
			profile: nil,
			wantErr: true,
		},
		{
			name: "missing ID",
			profile: &VirusProfile{
				HeaderTemplate: "<LimsID>",
			},
			wantErr: true,
		},
		{
			name: "missing header template",
			profile: &VirusProfile{
				ID: "rsv",
			},
			wantErr: true,
		},
		{
			name: "segment without a name",
			profile: &VirusProfile{
				ID:             "influenza-a",
				HeaderTemplate: "<LimsID>",
				Segments:       []SegmentSpec{{Slot: 1}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Register(tt.profile)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_ProfileFor(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&VirusProfile{ID: "rsv", HeaderTemplate: "<LimsID>"}))

	p, err := r.ProfileFor("rsv")
	require.NoError(t, err)
	assert.Equal(t, "rsv", p.ID)

	_, err = r.ProfileFor("measles")
	require.Error(t, err)
	var unknown *UnknownVirusError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "measles", unknown.Virus)
}

func TestRegistry_IDs(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&VirusProfile{ID: "rsv", HeaderTemplate: "x"}))
	require.NoError(t, r.Register(&VirusProfile{ID: "hiv", HeaderTemplate: "x"}))
	require.NoError(t, r.Register(&VirusProfile{ID: "influenza-a", HeaderTemplate: "x"}))

	assert.Equal(t, []string{"hiv", "influenza-a", "rsv"}, r.IDs())
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"hiv", "influenza-a", "influenza-b", "rsv"}, r.IDs())

	t.Run("influenza A segment layout", func(t *testing.T) {
		p, err := r.ProfileFor("influenza-a")
		require.NoError(t, err)
		require.True(t, p.Segmented())
		require.Len(t, p.Segments, 8)

		names := make([]string, 0, len(p.Segments))
		for i, s := range p.Segments {
			assert.Equal(t, i+1, s.Slot)
			names = append(names, s.Name)
		}
		assert.Equal(t, []string{"PB2", "PB1", "PA", "HA", "NP", "NA", "MP", "NS"}, names)
	})

	t.Run("influenza B swaps PB1 and PB2", func(t *testing.T) {
		p, err := r.ProfileFor("influenza-b")
		require.NoError(t, err)
		require.Len(t, p.Segments, 8)
		assert.Equal(t, "PB1", p.Segments[0].Name)
		assert.Equal(t, "PB2", p.Segments[1].Name)
	})

	t.Run("non-segmented profiles", func(t *testing.T) {
		for _, id := range []string{"hiv", "rsv"} {
			p, err := r.ProfileFor(id)
			require.NoError(t, err)
			assert.False(t, p.Segmented(), "profile %s should be non-segmented", id)
			assert.Equal(t, DefaultMinDepth, p.MinDepth)
			assert.Equal(t, DefaultMinCoverage, p.MinCoverage)
		}
	})
}
