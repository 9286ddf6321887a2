// Package service implements the quality-evaluation and segment-assembly
// engine: assignment parsing, threshold evaluation, genome assembly, report
// aggregation and the concurrent batch pipeline tying them together.
package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gisaid-prep-pipeline/internal/domain"
)

// segmentSlotPattern extracts the numeric slot from Genome Detective region
// labels such as "Segment 4 (HA)" or "segment rna 6".
var segmentSlotPattern = regexp.MustCompile(`(?i)segment(?:\s*rna)?\s*(\d+)`)

// gdDocument mirrors the relevant shape of a Genome Detective
// `.assignments.json` document. Numeric fields are pointers so that a
// missing field is distinguishable from a zero value.
type gdDocument struct {
	Data struct {
		Attributes struct {
			Strains []gdStrain `json:"strains"`
		} `json:"attributes"`
	} `json:"data"`
}

type gdStrain struct {
	TaxonomyName       string     `json:"taxonomyName"`
	SubTypeConclusion  string     `json:"subTypeConclusion"`
	DepthOfCoverage    *float64   `json:"depthOfCoverage"`
	CoveragePercentage *float64   `json:"coveragePercentage"`
	NTIdentity         *float64   `json:"ntIdentity"`
	NumberOfReads      *float64   `json:"numberOfReads"`
	Regions            []gdRegion `json:"regions"`
}

type gdRegion struct {
	Segment             string   `json:"segment"`
	DepthOfCoverage     *float64 `json:"depthOfCoverage"`
	CoveragePercentage  *float64 `json:"coveragePercentage"`
	ReferenceSequenceID string   `json:"referenceSequenceId"`
}

// AssignmentParser converts raw assignment documents into normalized
// AssignmentRecord sets for one sample. Parsing is a pure transformation;
// sequence retrieval is delegated to the SequenceSource collaborator.
type AssignmentParser struct {
	logger *logrus.Logger
}

// NewAssignmentParser creates an assignment parser.
func NewAssignmentParser(logger *logrus.Logger) *AssignmentParser {
	return &AssignmentParser{logger: logger}
}

// Parse extracts the candidate assignment records for the profile's virus
// from a sample's raw assignment document. Strains whose taxonomy does not
// match the profile are skipped; a document with no matching strains yields
// an empty record set and no error. Missing or non-numeric required fields
// return a *domain.MalformedAssignmentError, which isolates the sample but
// never the batch.
func (p *AssignmentParser) Parse(profile *domain.VirusProfile, limsID string, raw []byte, seqs domain.SequenceSource) ([]domain.AssignmentRecord, error) {
	if len(raw) == 0 {
		return nil, &domain.MalformedAssignmentError{LimsID: limsID, Field: "document", Detail: "empty document"}
	}

	var doc gdDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &domain.MalformedAssignmentError{LimsID: limsID, Field: "document", Detail: err.Error()}
	}

	var records []domain.AssignmentRecord
	for _, strain := range doc.Data.Attributes.Strains {
		if !matchesTaxonomy(profile, strain.TaxonomyName) {
			continue
		}

		strainRecords, err := p.strainRecords(profile, limsID, strain)
		if err != nil {
			return nil, err
		}
		records = append(records, strainRecords...)
	}

	if seqs != nil {
		p.attachSequences(limsID, records, seqs)
	}

	p.logger.WithFields(logrus.Fields{
		"lims_id": limsID,
		"virus":   profile.ID,
		"records": len(records),
	}).Debug("Parsed assignment document")

	return records, nil
}

// strainRecords converts one matching strain into candidate records: one per
// recognized region for segmented viruses, or a single whole-genome record
// for non-segmented ones.
func (p *AssignmentParser) strainRecords(profile *domain.VirusProfile, limsID string, strain gdStrain) ([]domain.AssignmentRecord, error) {
	base := domain.AssignmentRecord{
		LimsID:       limsID,
		Label:        strain.SubTypeConclusion,
		TaxonomyName: strain.TaxonomyName,
	}
	if strain.NumberOfReads != nil {
		base.NumberOfReads = int64(*strain.NumberOfReads)
	}
	if strain.DepthOfCoverage != nil {
		base.StrainDepth = *strain.DepthOfCoverage
	}
	if strain.CoveragePercentage != nil {
		base.StrainCov = *strain.CoveragePercentage
	}
	if strain.NTIdentity != nil {
		base.NTIdentity = *strain.NTIdentity
	}

	if !profile.Segmented() {
		if len(strain.Regions) == 0 {
			return nil, nil
		}
		// Non-segmented viruses carry a single region.
		region := strain.Regions[0]
		rec, err := p.regionRecord(base, limsID, "regions[0]", region)
		if err != nil {
			return nil, err
		}
		rec.Segment = domain.WholeGenome
		return []domain.AssignmentRecord{rec}, nil
	}

	var records []domain.AssignmentRecord
	for i, region := range strain.Regions {
		slot, ok := parseSegmentSlot(region.Segment)
		if !ok {
			p.logger.WithFields(logrus.Fields{
				"lims_id": limsID,
				"label":   region.Segment,
			}).Warn("Could not extract segment number from region label")
			continue
		}

		spec, ok := profile.SegmentBySlot(slot)
		if !ok {
			// Region outside the profile's declared topology.
			p.logger.WithFields(logrus.Fields{
				"lims_id": limsID,
				"slot":    slot,
				"virus":   profile.ID,
			}).Warn("Region slot not in virus profile, skipping")
			continue
		}

		rec, err := p.regionRecord(base, limsID, fmt.Sprintf("regions[%d]", i), region)
		if err != nil {
			return nil, err
		}
		rec.Segment = spec.Name
		rec.Slot = slot
		records = append(records, rec)
	}
	return records, nil
}

// regionRecord fills the per-region metrics, failing with a malformed
// assignment error when a required numeric field is absent.
func (p *AssignmentParser) regionRecord(base domain.AssignmentRecord, limsID, field string, region gdRegion) (domain.AssignmentRecord, error) {
	if region.DepthOfCoverage == nil {
		return base, &domain.MalformedAssignmentError{LimsID: limsID, Field: field + ".depthOfCoverage", Detail: "missing numeric field"}
	}
	if region.CoveragePercentage == nil {
		return base, &domain.MalformedAssignmentError{LimsID: limsID, Field: field + ".coveragePercentage", Detail: "missing numeric field"}
	}

	rec := base
	rec.Depth = *region.DepthOfCoverage
	rec.Coverage = *region.CoveragePercentage
	rec.ReferenceID = region.ReferenceSequenceID
	return rec, nil
}

// attachSequences retrieves nucleotide sequences for every record that
// names a reference. Retrieval failures leave the sequence empty; the
// assembler surfaces the inconsistency if the segment turns out eligible.
func (p *AssignmentParser) attachSequences(limsID string, records []domain.AssignmentRecord, seqs domain.SequenceSource) {
	for i := range records {
		if records[i].ReferenceID == "" {
			continue
		}
		seq, err := seqs.Sequence(records[i].ReferenceID)
		if err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"lims_id":      limsID,
				"reference_id": records[i].ReferenceID,
			}).Warn("Failed to retrieve sequence for reference")
			continue
		}
		records[i].Sequence = seq
	}
}

func matchesTaxonomy(profile *domain.VirusProfile, taxonomyName string) bool {
	taxonomy := strings.ToLower(taxonomyName)
	for _, kw := range profile.TaxonomyKeywords {
		if strings.Contains(taxonomy, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func parseSegmentSlot(label string) (int, bool) {
	if m := segmentSlotPattern.FindStringSubmatch(label); m != nil {
		slot, err := strconv.Atoi(m[1])
		if err == nil {
			return slot, true
		}
	}
	// Fallback: the label is just the slot digits.
	if slot, err := strconv.Atoi(strings.TrimSpace(label)); err == nil {
		return slot, true
	}
	return 0, false
}
