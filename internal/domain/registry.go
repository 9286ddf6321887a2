package domain

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps virus identifiers to their immutable profiles. Adding a
// virus is a data entry: evaluation and assembly are parameterized by the
// profile and never change per virus.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*VirusProfile
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]*VirusProfile)}
}

// Register adds or replaces a profile. The profile must carry an ID and a
// header template; segmented profiles must name every segment.
func (r *Registry) Register(p *VirusProfile) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("registering profile: %w", fmt.Errorf("profile ID is required"))
	}
	if p.HeaderTemplate == "" {
		return fmt.Errorf("registering profile %s: header template is required", p.ID)
	}
	for _, s := range p.Segments {
		if s.Name == "" {
			return fmt.Errorf("registering profile %s: segment slot %d has no name", p.ID, s.Slot)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID] = p
	return nil
}

// ProfileFor looks up the profile for a virus identifier.
func (r *Registry) ProfileFor(virusID string) (*VirusProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[virusID]
	if !ok {
		return nil, &UnknownVirusError{Virus: virusID}
	}
	return p, nil
}

// IDs returns the registered virus identifiers in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// influenzaSegments builds the eight-segment influenza topology with the
// given slot-to-gene layout and uniform default thresholds.
func influenzaSegments(genes [8]string) []SegmentSpec {
	segs := make([]SegmentSpec, 0, len(genes))
	for i, g := range genes {
		segs = append(segs, SegmentSpec{
			Slot:        i + 1,
			Name:        g,
			MinDepth:    DefaultMinDepth,
			MinCoverage: DefaultMinCoverage,
		})
	}
	return segs
}

// DefaultRegistry returns a registry pre-loaded with the laboratory's
// standard virus profiles: Influenza A and B (segmented), HIV and RSV
// (non-segmented).
func DefaultRegistry() *Registry {
	r := NewRegistry()

	builtins := []*VirusProfile{
		{
			ID:               "influenza-a",
			Name:             "Influenza A",
			IsolateLabel:     "A",
			TaxonomyKeywords: []string{"alphainfluenzavirus influenzae"},
			Segments:         influenzaSegments([8]string{"PB2", "PB1", "PA", "HA", "NP", "NA", "MP", "NS"}),
			MinDepth:         DefaultMinDepth,
			MinCoverage:      DefaultMinCoverage,
			HeaderTemplate:   "<isolate>/South Africa/<lab>-CERI-<LimsID>/2025_<gene>",
		},
		{
			ID:               "influenza-b",
			Name:             "Influenza B",
			IsolateLabel:     "B",
			TaxonomyKeywords: []string{"betainfluenzavirus influenzae"},
			Segments:         influenzaSegments([8]string{"PB1", "PB2", "PA", "HA", "NP", "NA", "MP", "NS"}),
			MinDepth:         DefaultMinDepth,
			MinCoverage:      DefaultMinCoverage,
			HeaderTemplate:   "<isolate>/South Africa/<lab>-CERI-<LimsID>/2025_<gene>",
		},
		{
			ID:               "hiv",
			Name:             "HIV",
			IsolateLabel:     "HIV",
			TaxonomyKeywords: []string{"human immunodeficiency virus"},
			MinDepth:         DefaultMinDepth,
			MinCoverage:      DefaultMinCoverage,
			HeaderTemplate:   "<isolate>/South Africa/<lab>-CERI-<LimsID>/2025",
		},
		{
			ID:               "rsv",
			Name:             "RSV",
			IsolateLabel:     "RSV",
			TaxonomyKeywords: []string{"orthopneumovirus hominis"},
			MinDepth:         DefaultMinDepth,
			MinCoverage:      DefaultMinCoverage,
			HeaderTemplate:   "<isolate>/South Africa/<lab>-CERI-<LimsID>/2025",
		},
	}

	for _, p := range builtins {
		if err := r.Register(p); err != nil {
			// Built-in profiles are statically defined; registration
			// cannot fail.
			panic(err)
		}
	}
	return r
}
