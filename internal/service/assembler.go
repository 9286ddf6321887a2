package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gisaid-prep-pipeline/internal/domain"
)

// FullGenomeGene is the <gene> placeholder value used when rendering the
// single header of a concatenated genome record.
const FullGenomeGene = "full_genome"

// GenomeAssembler turns a sample verdict into submission-ready sequence
// records: one standalone entry per eligible segment, plus the concatenated
// full genome when the sample is overall eligible.
type GenomeAssembler struct {
	logger *logrus.Logger
	labs   *domain.LabDirectory
}

// NewGenomeAssembler creates a genome assembler. The lab directory resolves
// the <lab> header placeholder per sample.
func NewGenomeAssembler(logger *logrus.Logger, labs *domain.LabDirectory) *GenomeAssembler {
	return &GenomeAssembler{logger: logger, labs: labs}
}

// Assemble emits the standalone entries for every eligible segment and,
// when the sample is overall eligible, the concatenated genome in the
// profile's canonical segment order. An eligible segment without sequence
// data is an upstream inconsistency and returns a *domain.AssemblyError.
func (a *GenomeAssembler) Assemble(profile *domain.VirusProfile, verdict domain.SampleVerdict) (*domain.AssembledGenome, []domain.SegmentEntry, error) {
	lab := a.labs.LabFor(verdict.LimsID)

	var entries []domain.SegmentEntry
	var concatenated strings.Builder
	for _, sv := range verdict.Segments {
		if !sv.Eligible {
			continue
		}
		if sv.Chosen == nil || sv.Chosen.Sequence == "" {
			return nil, nil, &domain.AssemblyError{LimsID: verdict.LimsID, Segment: sv.Segment}
		}

		entries = append(entries, domain.SegmentEntry{
			LimsID:   verdict.LimsID,
			Segment:  sv.Segment,
			Slot:     sv.Slot,
			Control:  verdict.Control,
			Header:   renderHeader(profile.HeaderTemplate, verdict.VirusType, lab, verdict.LimsID, sv.Segment),
			Sequence: sv.Chosen.Sequence,
		})
		concatenated.WriteString(sv.Chosen.Sequence)
	}

	if !verdict.OverallEligible {
		a.logger.WithFields(logrus.Fields{
			"lims_id":            verdict.LimsID,
			"standalone_entries": len(entries),
		}).Debug("Sample not overall eligible, emitting standalone segments only")
		return nil, entries, nil
	}

	genome := &domain.AssembledGenome{
		LimsID:   verdict.LimsID,
		Control:  verdict.Control,
		Header:   renderHeader(profile.HeaderTemplate, verdict.VirusType, lab, verdict.LimsID, FullGenomeGene),
		Sequence: concatenated.String(),
	}

	a.logger.WithFields(logrus.Fields{
		"lims_id":            verdict.LimsID,
		"standalone_entries": len(entries),
		"genome_length":      len(genome.Sequence),
	}).Debug("Assembled full genome")

	return genome, entries, nil
}

// renderHeader fills the profile's header template. The leading '>' is a
// FASTA serialization concern and is stripped here if the template carries
// one.
func renderHeader(template, isolate, lab, limsID, gene string) string {
	header := strings.NewReplacer(
		"<LimsID>", limsID,
		"<gene>", gene,
		"<lab>", lab,
		"<isolate>", isolate,
	).Replace(template)
	return strings.TrimPrefix(header, ">")
}
