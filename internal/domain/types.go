// Package domain contains the core entities for viral genome quality
// evaluation and GISAID submission preparation: virus profiles, per-segment
// assignment records, eligibility verdicts and assembled genome artifacts.
package domain

import (
	"math"
)

// WholeGenome is the sentinel segment name used for non-segmented viruses.
// A profile with no declared segments is evaluated as a single implicit
// group under this name.
const WholeGenome = "genome"

// Default thresholds applied when a profile or run does not override them.
const (
	DefaultMinDepth    = 10.0
	DefaultMinCoverage = 80.0
)

// SegmentSpec describes one expected genomic segment of a segmented virus.
type SegmentSpec struct {
	// Slot is the numeric segment position used in Genome Detective
	// region labels ("Segment 4 (HA)" -> slot 4).
	Slot int `json:"slot"`
	// Name is the gene name used in headers and reports (e.g. "HA").
	Name string `json:"name"`

	MinDepth    float64 `json:"min_depth"`
	MinCoverage float64 `json:"min_coverage"`
}

// VirusProfile is the immutable per-virus configuration: expected segment
// topology, quality thresholds and the FASTA header template. The order of
// Segments is canonical; it defines concatenation order and report column
// order.
type VirusProfile struct {
	ID           string `json:"id"`   // registry key, e.g. "influenza-a"
	Name         string `json:"name"` // display name, e.g. "Influenza A"
	IsolateLabel string `json:"isolate_label"`

	// TaxonomyKeywords match Genome Detective strain taxonomy names
	// (case-insensitive substring match).
	TaxonomyKeywords []string `json:"taxonomy_keywords"`

	// Segments is empty for non-segmented viruses.
	Segments []SegmentSpec `json:"segments"`

	// Thresholds for the implicit whole-genome group of non-segmented
	// viruses. Segmented profiles carry thresholds per SegmentSpec.
	MinDepth    float64 `json:"min_depth"`
	MinCoverage float64 `json:"min_coverage"`

	// HeaderTemplate supports the <LimsID>, <gene>, <lab> and <isolate>
	// placeholders. Rendered headers are stored without the leading '>'.
	HeaderTemplate string `json:"header_template"`
}

// Segmented reports whether the profile declares genomic segments.
func (p *VirusProfile) Segmented() bool {
	return len(p.Segments) > 0
}

// ExpectedSegments returns the segments evaluation iterates over. For
// non-segmented profiles this is the single implicit whole-genome group.
func (p *VirusProfile) ExpectedSegments() []SegmentSpec {
	if p.Segmented() {
		return p.Segments
	}
	return []SegmentSpec{{
		Name:        WholeGenome,
		MinDepth:    p.MinDepth,
		MinCoverage: p.MinCoverage,
	}}
}

// SegmentBySlot resolves a Genome Detective segment slot to its spec.
func (p *VirusProfile) SegmentBySlot(slot int) (SegmentSpec, bool) {
	for _, s := range p.Segments {
		if s.Slot == slot {
			return s, true
		}
	}
	return SegmentSpec{}, false
}

// WithThresholds derives a copy of the profile with every threshold replaced.
// Segment topology, taxonomy keywords and the header template are preserved,
// so a per-run override never alters what the registry knows about a virus.
func (p *VirusProfile) WithThresholds(minDepth, minCoverage float64) *VirusProfile {
	out := *p
	out.MinDepth = minDepth
	out.MinCoverage = minCoverage
	out.Segments = make([]SegmentSpec, len(p.Segments))
	for i, s := range p.Segments {
		s.MinDepth = minDepth
		s.MinCoverage = minCoverage
		out.Segments[i] = s
	}
	return &out
}

// WithHeaderTemplate derives a copy of the profile with a custom header.
func (p *VirusProfile) WithHeaderTemplate(template string) *VirusProfile {
	out := *p
	out.Segments = append([]SegmentSpec(nil), p.Segments...)
	out.HeaderTemplate = template
	return &out
}

// AssignmentRecord is one segment candidate extracted from a sample's
// Genome Detective assignment document. A sample may carry zero, one or
// several candidates per segment; candidates for the same segment are
// comparable by coverage and depth.
type AssignmentRecord struct {
	LimsID  string `json:"lims_id"`
	Segment string `json:"segment"` // gene name, or WholeGenome
	Slot    int    `json:"slot"`    // 0 for non-segmented

	// Label is the assigned subtype/genotype conclusion of the strain
	// the candidate came from.
	Label string `json:"label"`

	Depth       float64 `json:"depth"`
	Coverage    float64 `json:"coverage"`
	ReferenceID string  `json:"reference_id"`
	Sequence    string  `json:"sequence,omitempty"`

	// Strain-level audit metrics carried through to the full-genome-info
	// report.
	TaxonomyName  string  `json:"taxonomy_name"`
	NumberOfReads int64   `json:"number_of_reads"`
	StrainDepth   float64 `json:"strain_depth"`
	StrainCov     float64 `json:"strain_coverage"`
	NTIdentity    float64 `json:"nt_identity"`
}

// SegmentVerdict is the eligibility decision for one (sample, expected
// segment) pair. Chosen is nil when no candidate record existed.
type SegmentVerdict struct {
	Segment     string            `json:"segment"`
	Slot        int               `json:"slot"`
	Chosen      *AssignmentRecord `json:"chosen,omitempty"`
	Eligible    bool              `json:"eligible"`
	MinDepth    float64           `json:"min_depth"`
	MinCoverage float64           `json:"min_coverage"`
}

// Missing reports whether no candidate record existed for the segment.
func (v SegmentVerdict) Missing() bool {
	return v.Chosen == nil
}

// GenomeMetrics are the strain-level metrics of the winning assignment,
// reported for every processed sample regardless of eligibility.
type GenomeMetrics struct {
	TaxonomyName  string  `json:"taxonomy_name"`
	NumberOfReads int64   `json:"number_of_reads"`
	Depth         float64 `json:"depth"`
	Coverage      float64 `json:"coverage"`
	NTIdentity    float64 `json:"nt_identity"`
}

// SampleVerdict aggregates the segment verdicts of one sample.
//
// OverallEligible is strict: every expected segment must be eligible.
// Informative is the looser reporting flag: at least one eligible segment.
type SampleVerdict struct {
	LimsID    string `json:"lims_id"`
	VirusID   string `json:"virus_id"`
	VirusType string `json:"virus_type"` // isolate label, e.g. "A"
	Subtype   string `json:"subtype"`    // assigned subtype conclusion
	Control   bool   `json:"control"`

	Segments        []SegmentVerdict `json:"segments"` // profile order
	OverallEligible bool             `json:"overall_eligible"`
	Informative     bool             `json:"informative"`
	MissingSegments []string         `json:"missing_segments"`

	Genome GenomeMetrics `json:"genome"`

	// FailureReason is empty for samples that evaluated cleanly; the
	// batch orchestrator fills it when a sample is isolated by an error.
	FailureReason FailureReason `json:"failure_reason,omitempty"`
}

// EligibleSegmentCount returns how many expected segments passed.
func (v *SampleVerdict) EligibleSegmentCount() int {
	n := 0
	for _, s := range v.Segments {
		if s.Eligible {
			n++
		}
	}
	return n
}

// SegmentEntry is one standalone submission-ready sequence record. Entries
// are emitted for every eligible segment even when the sample as a whole is
// ineligible (partial submission support).
type SegmentEntry struct {
	LimsID   string `json:"lims_id"`
	Segment  string `json:"segment"`
	Slot     int    `json:"slot"`
	Control  bool   `json:"control"`
	Header   string `json:"header"` // without the leading '>'
	Sequence string `json:"sequence"`
}

// AssembledGenome is the concatenated full-genome artifact, produced only
// for overall-eligible samples.
type AssembledGenome struct {
	LimsID   string `json:"lims_id"`
	Control  bool   `json:"control"`
	Header   string `json:"header"` // without the leading '>'
	Sequence string `json:"sequence"`
}

// SequenceSource retrieves nucleotide sequence text by reference identifier.
// Implementations wrap the alignment output of the upstream pipeline.
type SequenceSource interface {
	Sequence(referenceID string) (string, error)
}

// MeetsThresholds applies the inclusive threshold comparison used across
// the pipeline. NaN values fail closed: a candidate with an unparseable or
// unstable metric is ineligible, never an error.
func MeetsThresholds(depth, coverage, minDepth, minCoverage float64) bool {
	if math.IsNaN(depth) || math.IsNaN(coverage) {
		return false
	}
	return depth >= minDepth && coverage >= minCoverage
}
