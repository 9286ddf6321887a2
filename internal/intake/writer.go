package intake

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/gisaid-prep-pipeline/internal/domain"
	"github.com/gisaid-prep-pipeline/internal/service"
)

// Output tree layout under the writer's base directory.
const (
	outputsDir = "Outputs"
	summaryDir = "Summary_files"
)

// OutputWriter persists the artifacts a batch run produced: per-segment
// FASTA files, per-sample concatenated genomes, the run-level combined
// FASTA and the three CSV summary tables.
type OutputWriter struct {
	baseDir string
	logger  *logrus.Logger
}

// NewOutputWriter creates a writer rooted at baseDir.
func NewOutputWriter(baseDir string, logger *logrus.Logger) *OutputWriter {
	return &OutputWriter{baseDir: baseDir, logger: logger}
}

// WriteSegments writes one FASTA file per standalone segment entry under
// Outputs/<LimsID>/. Segmented entries are named segment<slot>.fasta;
// whole-genome entries are named <LimsID>_<virus>.fasta.
func (w *OutputWriter) WriteSegments(virus string, entries []domain.SegmentEntry) error {
	for _, entry := range entries {
		dir := filepath.Join(w.baseDir, outputsDir, entry.LimsID)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating sample output folder: %w", err)
		}

		name := fmt.Sprintf("segment%d.fasta", entry.Slot)
		if entry.Segment == domain.WholeGenome {
			name = fmt.Sprintf("%s_%s.fasta", entry.LimsID, virus)
		}

		path := filepath.Join(dir, name)
		if err := writeFastaFile(path, FastaRecord{Header: entry.Header, Sequence: entry.Sequence}); err != nil {
			return err
		}
		w.logger.WithFields(logrus.Fields{
			"lims_id": entry.LimsID,
			"segment": entry.Segment,
			"path":    path,
		}).Info("Written segment fasta")
	}
	return nil
}

// WriteGenomes writes each overall-eligible sample's concatenated genome to
// Outputs/<LimsID>/<LimsID>_all_segments.fasta.
func (w *OutputWriter) WriteGenomes(genomes []domain.AssembledGenome) error {
	for _, g := range genomes {
		dir := filepath.Join(w.baseDir, outputsDir, g.LimsID)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating sample output folder: %w", err)
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_all_segments.fasta", g.LimsID))
		if err := writeFastaFile(path, FastaRecord{Header: g.Header, Sequence: g.Sequence}); err != nil {
			return err
		}
		w.logger.WithFields(logrus.Fields{
			"lims_id": g.LimsID,
			"path":    path,
		}).Info("Written full genome fasta")
	}
	return nil
}

// WriteCombined writes every non-control assembled genome into a single
// master FASTA, sorted by LIMS ID. Control samples never reach the combined
// submission file.
func (w *OutputWriter) WriteCombined(genomes []domain.AssembledGenome) (string, error) {
	dir := filepath.Join(w.baseDir, outputsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output folder: %w", err)
	}

	sorted := append([]domain.AssembledGenome(nil), genomes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].LimsID < sorted[j].LimsID })

	var records []FastaRecord
	for _, g := range sorted {
		if g.Control {
			w.logger.WithField("lims_id", g.LimsID).Info("Skipping control sample in combined fasta")
			continue
		}
		records = append(records, FastaRecord{Header: g.Header, Sequence: g.Sequence})
	}

	path := filepath.Join(dir, "all_samples_combined.fasta")
	if err := writeFastaFile(path, records...); err != nil {
		return "", err
	}

	w.logger.WithFields(logrus.Fields{
		"path":    path,
		"genomes": len(records),
	}).Info("Written combined fasta")
	return path, nil
}

// WriteReports serializes the three summary tables under Summary_files/,
// named by the run's virus identifier. The segment-detail table is written
// for segmented viruses only.
func (w *OutputWriter) WriteReports(report *service.BatchReport) error {
	dir := filepath.Join(w.baseDir, summaryDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating summary folder: %w", err)
	}

	statusPath := filepath.Join(dir, fmt.Sprintf("gisaid_submission_status_%s.csv", report.Virus))
	if err := writeCSVFile(statusPath, report.WriteSubmissionCSV); err != nil {
		return err
	}

	if report.Segmented {
		segmentsPath := filepath.Join(dir, fmt.Sprintf("%s_segments.csv", report.Virus))
		if err := writeCSVFile(segmentsPath, report.WriteSegmentsCSV); err != nil {
			return err
		}
	}

	genomePath := filepath.Join(dir, fmt.Sprintf("full_genome_info_%s.csv", report.Virus))
	if err := writeCSVFile(genomePath, report.WriteGenomesCSV); err != nil {
		return err
	}

	w.logger.WithFields(logrus.Fields{
		"virus": report.Virus,
		"dir":   dir,
	}).Info("Written summary reports")
	return nil
}

func writeFastaFile(path string, records ...FastaRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteFasta(f, records...); err != nil {
		return err
	}
	return f.Close()
}

func writeCSVFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := write(f); err != nil {
		return err
	}
	return f.Close()
}
