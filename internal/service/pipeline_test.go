package service

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gisaid-prep-pipeline/internal/domain"
)

func newTestPipeline(t *testing.T, workers int) *Pipeline {
	t.Helper()
	logger := testLogger()
	return NewPipeline(
		logger,
		NewAssignmentParser(logger),
		NewQualityEvaluator(logger),
		NewGenomeAssembler(logger, testLabs(t)),
		workers,
	)
}

// fluSampleDoc renders an influenza A assignment document with one region
// per profile segment, all passing the default thresholds.
func fluSampleDoc(t *testing.T) ([]byte, fakeSequenceSource) {
	t.Helper()
	profile := influenzaAProfile(t)

	seqs := fakeSequenceSource{}
	regions := ""
	for i, s := range profile.Segments {
		if i > 0 {
			regions += ","
		}
		ref := fmt.Sprintf("REF-%s", s.Name)
		seqs[ref] = fmt.Sprintf("ATG%s", s.Name)
		regions += fmt.Sprintf(
			`{"segment": "Segment %d (%s)", "depthOfCoverage": 120.0, "coveragePercentage": 96.0, "referenceSequenceId": %q}`,
			s.Slot, s.Name, ref)
	}

	doc := fmt.Sprintf(`{"data":{"attributes":{"strains":[{
	  "taxonomyName": "Alphainfluenzavirus influenzae",
	  "subTypeConclusion": "H3N2",
	  "depthOfCoverage": 130.0,
	  "coveragePercentage": 97.0,
	  "ntIdentity": 99.0,
	  "numberOfReads": 100000,
	  "regions": [%s]
	}]}}}`, regions)

	return []byte(doc), seqs
}

func TestPipeline_Run(t *testing.T) {
	pipeline := newTestPipeline(t, 4)
	profile := influenzaAProfile(t)

	raw, seqs := fluSampleDoc(t)
	samples := []Sample{
		{LimsID: "K001", Raw: raw, Sequences: seqs},
		{LimsID: "K002", Raw: raw, Sequences: seqs},
	}

	result, err := pipeline.Run(context.Background(), profile, samples)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "influenza-a", result.Virus)
	assert.False(t, result.FinishedAt.Before(result.StartedAt))

	assert.Len(t, result.Verdicts, 2)
	assert.Len(t, result.Genomes, 2)
	assert.Len(t, result.Segments, 16)

	require.NotNil(t, result.Report)
	assert.Len(t, result.Report.Submission, 2)
	assert.Equal(t, 2, result.Report.EligibleCount())
}

func TestPipeline_Run_FailureIsolation(t *testing.T) {
	pipeline := newTestPipeline(t, 2)
	profile := influenzaAProfile(t)

	raw, seqs := fluSampleDoc(t)
	samples := []Sample{
		{LimsID: "K001", Raw: raw, Sequences: seqs},
		{LimsID: "K002", Raw: []byte("{broken")},
		{LimsID: "K003", Raw: []byte(`{"data":{"attributes":{"strains":[]}}}`)},
	}

	result, err := pipeline.Run(context.Background(), profile, samples)
	require.NoError(t, err, "per-sample failures never fail the batch")

	assert.Len(t, result.Verdicts, 1, "only the healthy sample produced a verdict")
	assert.Len(t, result.Genomes, 1)

	require.Len(t, result.Report.Submission, 3)
	byID := make(map[string]SubmissionRow)
	for _, row := range result.Report.Submission {
		byID[row.LimsID] = row
	}
	assert.Equal(t, domain.ReasonNone, byID["K001"].FailureReason)
	assert.Equal(t, domain.ReasonMalformed, byID["K002"].FailureReason)
	assert.Equal(t, domain.ReasonNoMatchingStrains, byID["K003"].FailureReason)
}

func TestPipeline_Run_AssemblyFailureKeepsReportRows(t *testing.T) {
	pipeline := newTestPipeline(t, 1)
	profile := influenzaAProfile(t)

	// Eligible segments with no retrievable sequences abort assembly.
	raw, _ := fluSampleDoc(t)
	samples := []Sample{{LimsID: "K001", Raw: raw, Sequences: fakeSequenceSource{}}}

	result, err := pipeline.Run(context.Background(), profile, samples)
	require.NoError(t, err)

	assert.Empty(t, result.Genomes)
	assert.Empty(t, result.Segments)

	require.Len(t, result.Report.Submission, 1)
	row := result.Report.Submission[0]
	assert.Equal(t, domain.ReasonAssemblyFailed, row.FailureReason)
	assert.Len(t, result.Report.Segments, 8, "evaluation rows are still reported")
}

func TestPipeline_Run_Cancellation(t *testing.T) {
	pipeline := newTestPipeline(t, 1)
	profile := influenzaAProfile(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	raw, seqs := fluSampleDoc(t)
	_, err := pipeline.Run(ctx, profile, []Sample{{LimsID: "K001", Raw: raw, Sequences: seqs}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_Run_DeterministicReports(t *testing.T) {
	profile := influenzaAProfile(t)
	raw, seqs := fluSampleDoc(t)

	samples := make([]Sample, 0, 6)
	for i := 1; i <= 6; i++ {
		samples = append(samples, Sample{
			LimsID:    fmt.Sprintf("K%03d", i),
			Raw:       raw,
			Sequences: seqs,
		})
	}

	render := func(workers int) string {
		pipeline := newTestPipeline(t, workers)
		result, err := pipeline.Run(context.Background(), profile, samples)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, result.Report.WriteSubmissionCSV(&buf))
		require.NoError(t, result.Report.WriteSegmentsCSV(&buf))
		require.NoError(t, result.Report.WriteGenomesCSV(&buf))
		return buf.String()
	}

	sequential := render(1)
	concurrent := render(4)
	assert.Equal(t, sequential, concurrent, "serialized reports are identical across worker counts")
}
