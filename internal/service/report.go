package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/gisaid-prep-pipeline/internal/domain"
)

// SubmissionRow is one line of the submission-status table.
type SubmissionRow struct {
	LimsID           string
	VirusType        string
	Subtype          string
	Eligible         bool
	EligibleSegments int
	MissingSegments  []string
	Control          bool
	FailureReason    domain.FailureReason
}

// SegmentRow is one line of the segment-detail table (segmented viruses
// only).
type SegmentRow struct {
	LimsID      string
	Segment     string
	Slot        int
	Label       string
	Depth       float64
	Coverage    float64
	ReferenceID string
	Eligible    bool
}

// GenomeRow is one line of the full-genome-info table. Every processed
// sample gets a row, eligible or not, failed or not.
type GenomeRow struct {
	LimsID        string
	VirusType     string
	TaxonomyName  string
	NumberOfReads int64
	Depth         float64
	Coverage      float64
	NTIdentity    float64
	FailureReason domain.FailureReason
}

// BatchReport holds the three report tables for one virus type. Rows are
// kept in processing order; CSV serialization sorts by LIMS ID so output is
// stable across concurrent runs.
type BatchReport struct {
	Virus     string
	Segmented bool

	Submission []SubmissionRow
	Segments   []SegmentRow
	Genomes    []GenomeRow
}

// EligibleCount returns how many samples are overall eligible.
func (r *BatchReport) EligibleCount() int {
	n := 0
	for _, row := range r.Submission {
		if row.Eligible {
			n++
		}
	}
	return n
}

// ControlCount returns how many eligible samples are controls.
func (r *BatchReport) ControlCount() int {
	n := 0
	for _, row := range r.Submission {
		if row.Eligible && row.Control {
			n++
		}
	}
	return n
}

// ReportAggregator folds per-sample verdicts into a virus type's
// BatchReport. It is the only cross-sample mutable state in a run: each
// append is a single critical section, so rows of one sample never
// interleave with another sample's when workers run concurrently.
type ReportAggregator struct {
	mu     sync.Mutex
	report BatchReport
}

// NewReportAggregator creates the accumulator for one virus type's batch.
func NewReportAggregator(profile *domain.VirusProfile) *ReportAggregator {
	return &ReportAggregator{
		report: BatchReport{
			Virus:     profile.ID,
			Segmented: profile.Segmented(),
		},
	}
}

// Append records one evaluated sample in all applicable tables.
func (ra *ReportAggregator) Append(v domain.SampleVerdict) {
	ra.mu.Lock()
	defer ra.mu.Unlock()

	ra.report.Submission = append(ra.report.Submission, SubmissionRow{
		LimsID:           v.LimsID,
		VirusType:        v.VirusType,
		Subtype:          v.Subtype,
		Eligible:         v.OverallEligible,
		EligibleSegments: v.EligibleSegmentCount(),
		MissingSegments:  append([]string(nil), v.MissingSegments...),
		Control:          v.Control,
		FailureReason:    v.FailureReason,
	})

	if ra.report.Segmented {
		for _, sv := range v.Segments {
			row := SegmentRow{
				LimsID:   v.LimsID,
				Segment:  sv.Segment,
				Slot:     sv.Slot,
				Eligible: sv.Eligible,
			}
			if sv.Chosen != nil {
				row.Label = sv.Chosen.Label
				row.Depth = sv.Chosen.Depth
				row.Coverage = sv.Chosen.Coverage
				row.ReferenceID = sv.Chosen.ReferenceID
			}
			ra.report.Segments = append(ra.report.Segments, row)
		}
	}

	ra.report.Genomes = append(ra.report.Genomes, GenomeRow{
		LimsID:        v.LimsID,
		VirusType:     v.VirusType,
		TaxonomyName:  v.Genome.TaxonomyName,
		NumberOfReads: v.Genome.NumberOfReads,
		Depth:         v.Genome.Depth,
		Coverage:      v.Genome.Coverage,
		NTIdentity:    v.Genome.NTIdentity,
		FailureReason: v.FailureReason,
	})
}

// AppendFailure records a sample that could not be evaluated. The sample
// still appears in the submission-status and full-genome-info tables with
// its reason code rather than disappearing silently.
func (ra *ReportAggregator) AppendFailure(limsID, virusType string, reason domain.FailureReason) {
	ra.mu.Lock()
	defer ra.mu.Unlock()

	ra.report.Submission = append(ra.report.Submission, SubmissionRow{
		LimsID:        limsID,
		VirusType:     virusType,
		Control:       domain.IsControl(limsID),
		FailureReason: reason,
	})
	ra.report.Genomes = append(ra.report.Genomes, GenomeRow{
		LimsID:        limsID,
		VirusType:     virusType,
		FailureReason: reason,
	})
}

// Finalize returns the accumulated report. The aggregator must not be
// appended to afterwards.
func (ra *ReportAggregator) Finalize() *BatchReport {
	ra.mu.Lock()
	defer ra.mu.Unlock()

	report := ra.report
	return &report
}

// yesNo renders boolean report cells the way the submission sheets expect.
func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func formatMetric(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// WriteSubmissionCSV serializes the submission-status table, sorted by LIMS
// ID.
func (r *BatchReport) WriteSubmissionCSV(w io.Writer) error {
	rows := append([]SubmissionRow(nil), r.Submission...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].LimsID < rows[j].LimsID })

	cw := csv.NewWriter(w)
	header := []string{"LimsID", "VirusType", "Subtype", "Submit to GISAID", "EligibleSegments", "MissingSegments", "Is Control", "FailureReason"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing submission status header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.LimsID,
			row.VirusType,
			row.Subtype,
			yesNo(row.Eligible),
			fmt.Sprintf("%d", row.EligibleSegments),
			strings.Join(row.MissingSegments, ";"),
			yesNo(row.Control),
			row.FailureReason.String(),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing submission status row for %s: %w", row.LimsID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSegmentsCSV serializes the segment-detail table, sorted by LIMS ID
// with the profile's segment order preserved within each sample.
func (r *BatchReport) WriteSegmentsCSV(w io.Writer) error {
	rows := append([]SegmentRow(nil), r.Segments...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].LimsID < rows[j].LimsID })

	cw := csv.NewWriter(w)
	header := []string{"LimsID", "Segment", "Label", "DepthOfCoverage", "CoveragePercentage", "ReferenceSequenceId", "Eligible"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing segment detail header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.LimsID,
			fmt.Sprintf("Segment %d (%s)", row.Slot, row.Segment),
			row.Label,
			formatMetric(row.Depth),
			formatMetric(row.Coverage),
			row.ReferenceID,
			yesNo(row.Eligible),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing segment detail row for %s: %w", row.LimsID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteGenomesCSV serializes the full-genome-info table, sorted by LIMS ID.
func (r *BatchReport) WriteGenomesCSV(w io.Writer) error {
	rows := append([]GenomeRow(nil), r.Genomes...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].LimsID < rows[j].LimsID })

	cw := csv.NewWriter(w)
	header := []string{"LimsID", "VirusType", "TaxonomyName", "NumberOfReads", "DepthOfCoverage", "CoveragePercentage", "NtIdentity", "FailureReason"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing genome info header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.LimsID,
			row.VirusType,
			row.TaxonomyName,
			fmt.Sprintf("%d", row.NumberOfReads),
			formatMetric(row.Depth),
			formatMetric(row.Coverage),
			formatMetric(row.NTIdentity),
			row.FailureReason.String(),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing genome info row for %s: %w", row.LimsID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
