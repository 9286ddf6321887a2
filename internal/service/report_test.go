package service

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gisaid-prep-pipeline/internal/domain"
)

func TestReportAggregator_Append(t *testing.T) {
	profile := influenzaAProfile(t)
	agg := NewReportAggregator(profile)

	verdict := eligibleVerdict(t, "K002")
	verdict.Subtype = "H3N2"
	verdict.Genome = domain.GenomeMetrics{
		TaxonomyName:  "Alphainfluenzavirus influenzae",
		NumberOfReads: 120345,
		Depth:         412.5,
		Coverage:      97.1,
		NTIdentity:    99.2,
	}
	agg.Append(verdict)

	report := agg.Finalize()
	require.Len(t, report.Submission, 1)
	require.Len(t, report.Segments, 8, "segmented virus gets one row per segment")
	require.Len(t, report.Genomes, 1)

	sub := report.Submission[0]
	assert.Equal(t, "K002", sub.LimsID)
	assert.Equal(t, "H3N2", sub.Subtype)
	assert.True(t, sub.Eligible)
	assert.Equal(t, 8, sub.EligibleSegments)
	assert.Equal(t, domain.ReasonNone, sub.FailureReason)

	genome := report.Genomes[0]
	assert.Equal(t, int64(120345), genome.NumberOfReads)
	assert.Equal(t, 99.2, genome.NTIdentity)
}

func TestReportAggregator_AppendNonSegmented(t *testing.T) {
	profile := hivProfile(t)
	agg := NewReportAggregator(profile)

	agg.Append(domain.SampleVerdict{LimsID: "H100", VirusType: "HIV"})

	report := agg.Finalize()
	assert.Len(t, report.Submission, 1)
	assert.Empty(t, report.Segments, "non-segmented viruses have no segment table")
	assert.Len(t, report.Genomes, 1)
}

func TestReportAggregator_AppendFailure(t *testing.T) {
	profile := influenzaAProfile(t)
	agg := NewReportAggregator(profile)

	agg.AppendFailure("K009", "A", domain.ReasonMalformed)
	agg.AppendFailure("NC-01", "A", domain.ReasonNoMatchingStrains)

	report := agg.Finalize()
	require.Len(t, report.Submission, 2)
	require.Len(t, report.Genomes, 2)
	assert.Empty(t, report.Segments)

	assert.Equal(t, domain.ReasonMalformed, report.Submission[0].FailureReason)
	assert.False(t, report.Submission[0].Eligible)
	assert.True(t, report.Submission[1].Control)
	assert.Equal(t, domain.ReasonNoMatchingStrains, report.Genomes[1].FailureReason)
}

func TestBatchReport_Counts(t *testing.T) {
	report := &BatchReport{
		Submission: []SubmissionRow{
			{LimsID: "K001", Eligible: true},
			{LimsID: "K002", Eligible: false},
			{LimsID: "PC01", Eligible: true, Control: true},
		},
	}

	assert.Equal(t, 2, report.EligibleCount())
	assert.Equal(t, 1, report.ControlCount())
}

func readCSV(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	rows, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestBatchReport_WriteSubmissionCSV(t *testing.T) {
	report := &BatchReport{
		Submission: []SubmissionRow{
			{LimsID: "K010", VirusType: "A", Subtype: "H3N2", Eligible: true, EligibleSegments: 8},
			{LimsID: "K002", VirusType: "A", Subtype: "H1N1", EligibleSegments: 6, MissingSegments: []string{"PB2", "MP"}},
			{LimsID: "K005", VirusType: "A", Control: true, FailureReason: domain.ReasonMalformed},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteSubmissionCSV(&buf))

	rows := readCSV(t, &buf)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"LimsID", "VirusType", "Subtype", "Submit to GISAID", "EligibleSegments", "MissingSegments", "Is Control", "FailureReason"}, rows[0])

	// Rows come out sorted by LIMS ID regardless of append order.
	assert.Equal(t, "K002", rows[1][0])
	assert.Equal(t, "K005", rows[2][0])
	assert.Equal(t, "K010", rows[3][0])

	assert.Equal(t, "No", rows[1][3])
	assert.Equal(t, "PB2;MP", rows[1][5])
	assert.Equal(t, "Yes", rows[2][6])
	assert.Equal(t, "malformed assignment", rows[2][7])
	assert.Equal(t, "Yes", rows[3][3])
	assert.Equal(t, "8", rows[3][4])
}

func TestBatchReport_WriteSegmentsCSV(t *testing.T) {
	report := &BatchReport{
		Segmented: true,
		Segments: []SegmentRow{
			{LimsID: "K002", Segment: "HA", Slot: 4, Label: "H3N2", Depth: 350, Coverage: 98.4, ReferenceID: "REF-HA-1", Eligible: true},
			{LimsID: "K001", Segment: "NA", Slot: 6, Depth: 5.5, Coverage: 40},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteSegmentsCSV(&buf))

	rows := readCSV(t, &buf)
	require.Len(t, rows, 3)
	assert.Equal(t, "K001", rows[1][0])
	assert.Equal(t, "Segment 6 (NA)", rows[1][1])
	assert.Equal(t, "5.50", rows[1][3])
	assert.Equal(t, "No", rows[1][6])

	assert.Equal(t, "Segment 4 (HA)", rows[2][1])
	assert.Equal(t, "98.40", rows[2][4])
	assert.Equal(t, "REF-HA-1", rows[2][5])
	assert.Equal(t, "Yes", rows[2][6])
}

func TestBatchReport_WriteGenomesCSV(t *testing.T) {
	report := &BatchReport{
		Genomes: []GenomeRow{
			{LimsID: "K002", VirusType: "A", TaxonomyName: "Alphainfluenzavirus influenzae", NumberOfReads: 120345, Depth: 412.5, Coverage: 97.1, NTIdentity: 99.2},
			{LimsID: "K001", VirusType: "A", FailureReason: domain.ReasonNoMatchingStrains},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteGenomesCSV(&buf))

	rows := readCSV(t, &buf)
	require.Len(t, rows, 3)
	assert.Equal(t, "K001", rows[1][0])
	assert.Equal(t, "no matching strains", rows[1][7])
	assert.Equal(t, "120345", rows[2][3])
	assert.Equal(t, "412.50", rows[2][4])
	assert.Equal(t, "99.20", rows[2][6])
}
