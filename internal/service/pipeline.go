package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gisaid-prep-pipeline/internal/domain"
)

// Sample is one unit of pipeline work: a sample's raw assignment document
// plus the collaborator that resolves its alignment sequences.
type Sample struct {
	LimsID    string
	Raw       []byte
	Sequences domain.SequenceSource
}

// RunResult carries everything a completed batch produced.
type RunResult struct {
	RunID      string
	Virus      string
	StartedAt  time.Time
	FinishedAt time.Time

	Report   *BatchReport
	Verdicts []domain.SampleVerdict
	Segments []domain.SegmentEntry
	Genomes  []domain.AssembledGenome
}

// Pipeline runs parse -> evaluate -> assemble for every sample of a batch.
// The per-sample unit is side-effect free over in-memory data, so samples
// are processed by concurrent workers; the report aggregator is the single
// shared resource and serializes its own appends.
type Pipeline struct {
	logger    *logrus.Logger
	parser    *AssignmentParser
	evaluator *QualityEvaluator
	assembler *GenomeAssembler
	workers   int
}

// NewPipeline wires the pipeline stages together. workers limits the number
// of samples in flight; values below 1 mean sequential processing.
func NewPipeline(logger *logrus.Logger, parser *AssignmentParser, evaluator *QualityEvaluator, assembler *GenomeAssembler, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		logger:    logger,
		parser:    parser,
		evaluator: evaluator,
		assembler: assembler,
		workers:   workers,
	}
}

// sampleOutput is the complete result of one sample, collected in a single
// critical section so rows of different samples never interleave.
type sampleOutput struct {
	verdict  domain.SampleVerdict
	segments []domain.SegmentEntry
	genome   *domain.AssembledGenome
}

// Run processes a batch of samples for one virus profile. Per-sample
// failures are isolated: the failing sample is annotated in the report with
// its reason code and the batch continues. Run itself fails only on context
// cancellation.
func (p *Pipeline) Run(ctx context.Context, profile *domain.VirusProfile, samples []Sample) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.NewString(),
		Virus:     profile.ID,
		StartedAt: time.Now().UTC(),
	}

	p.logger.WithFields(logrus.Fields{
		"run_id":  result.RunID,
		"virus":   profile.ID,
		"samples": len(samples),
		"workers": p.workers,
	}).Info("Starting batch run")

	aggregator := NewReportAggregator(profile)

	var mu sync.Mutex // guards result output slices
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, sample := range samples {
		sample := sample
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			out := p.processSample(profile, sample, aggregator)
			if out == nil {
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			result.Verdicts = append(result.Verdicts, out.verdict)
			result.Segments = append(result.Segments, out.segments...)
			if out.genome != nil {
				result.Genomes = append(result.Genomes, *out.genome)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Report = aggregator.Finalize()
	result.FinishedAt = time.Now().UTC()

	p.logger.WithFields(logrus.Fields{
		"run_id":   result.RunID,
		"virus":    profile.ID,
		"samples":  len(result.Report.Submission),
		"eligible": result.Report.EligibleCount(),
		"controls": result.Report.ControlCount(),
		"duration": result.FinishedAt.Sub(result.StartedAt),
	}).Info("Completed batch run")

	return result, nil
}

// processSample runs one sample end to end, converting errors into report
// annotations. It returns nil when the sample produced no verdict at all
// (parse failure or no matching strains).
func (p *Pipeline) processSample(profile *domain.VirusProfile, sample Sample, aggregator *ReportAggregator) *sampleOutput {
	records, err := p.parser.Parse(profile, sample.LimsID, sample.Raw, sample.Sequences)
	if err != nil {
		p.logger.WithError(err).WithField("lims_id", sample.LimsID).Error("Failed to parse assignment document")
		aggregator.AppendFailure(sample.LimsID, profile.IsolateLabel, domain.ReasonForError(err))
		return nil
	}
	if len(records) == 0 {
		p.logger.WithFields(logrus.Fields{
			"lims_id": sample.LimsID,
			"virus":   profile.ID,
		}).Warn("No matching strains in assignment document")
		aggregator.AppendFailure(sample.LimsID, profile.IsolateLabel, domain.ReasonNoMatchingStrains)
		return nil
	}

	verdict := p.evaluator.Evaluate(profile, sample.LimsID, records)

	genome, segments, err := p.assembler.Assemble(profile, verdict)
	if err != nil {
		// Evaluation rows are still reported; only the sample's sequence
		// outputs are withheld.
		p.logger.WithError(err).WithField("lims_id", sample.LimsID).Error("Assembly aborted")
		verdict.FailureReason = domain.ReasonForError(err)
		aggregator.Append(verdict)
		return &sampleOutput{verdict: verdict}
	}

	aggregator.Append(verdict)
	return &sampleOutput{verdict: verdict, segments: segments, genome: genome}
}
