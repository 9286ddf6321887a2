package intake

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gisaid-prep-pipeline/internal/domain"
)

// assignmentSuffix names the Genome Detective output file each sample
// folder carries.
const assignmentSuffix = ".assignments.json"

// SampleFolder is one discovered sample: its normalized LIMS ID, the folder
// holding its alignment FASTA files and the path of its assignment
// document.
type SampleFolder struct {
	LimsID         string
	RawID          string
	Dir            string
	AssignmentPath string
}

// DiscoverSamples walks the processed-output tree and returns one
// SampleFolder per non-empty *.assignments.json file, in walk order. Empty
// assignment files are skipped with a warning, matching the behavior of
// the upstream batch copies.
func DiscoverSamples(root string, logger *logrus.Logger) ([]SampleFolder, error) {
	var samples []SampleFolder

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), assignmentSuffix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() == 0 {
			logger.WithField("path", path).Warn("Empty assignment file detected, skipping")
			return nil
		}

		rawID := strings.SplitN(d.Name(), ".", 2)[0]
		samples = append(samples, SampleFolder{
			LimsID:         domain.NormalizeLimsID(rawID),
			RawID:          rawID,
			Dir:            filepath.Dir(path),
			AssignmentPath: path,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering samples under %s: %w", root, err)
	}

	logger.WithFields(logrus.Fields{
		"root":    root,
		"samples": len(samples),
	}).Info("Discovered sample folders")

	return samples, nil
}

// LoadAssignment reads the raw assignment document of a sample.
func (s SampleFolder) LoadAssignment() ([]byte, error) {
	raw, err := os.ReadFile(s.AssignmentPath)
	if err != nil {
		return nil, fmt.Errorf("reading assignment for %s: %w", s.LimsID, err)
	}
	return raw, nil
}
