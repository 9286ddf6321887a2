package intake

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// alignmentSuffix names the per-reference alignment FASTA files the
// upstream aligner leaves in each sample folder.
const alignmentSuffix = "alignment-nt.fasta"

// DefaultSequenceCacheSize bounds the per-sample consensus cache.
const DefaultSequenceCacheSize = 64

// AlignmentSource resolves reference sequence identifiers to consensus
// nucleotide sequences from a sample folder's alignment FASTA files. It
// implements domain.SequenceSource. Lookups are cached: multiple strains of
// one sample frequently point at the same reference.
type AlignmentSource struct {
	dir    string
	cache  *lru.Cache[string, string]
	logger *logrus.Logger
}

// NewAlignmentSource creates a sequence source over one sample folder.
func NewAlignmentSource(dir string, cacheSize int, logger *logrus.Logger) (*AlignmentSource, error) {
	if cacheSize < 1 {
		cacheSize = DefaultSequenceCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating sequence cache: %w", err)
	}
	return &AlignmentSource{dir: dir, cache: cache, logger: logger}, nil
}

// Sequence returns the consensus sequence for a reference identifier,
// located by matching "*<referenceID>*alignment-nt.fasta" inside the sample
// folder.
func (s *AlignmentSource) Sequence(referenceID string) (string, error) {
	if referenceID == "" {
		return "", fmt.Errorf("looking up sequence: reference ID is empty")
	}
	if seq, ok := s.cache.Get(referenceID); ok {
		return seq, nil
	}

	path, err := s.findAlignmentFile(referenceID)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening alignment file for %s: %w", referenceID, err)
	}
	defer f.Close()

	seq, err := ConsensusSequence(f)
	if err != nil {
		return "", fmt.Errorf("alignment file %s: %w", filepath.Base(path), err)
	}

	s.cache.Add(referenceID, seq)
	s.logger.WithFields(logrus.Fields{
		"reference_id": referenceID,
		"file":         filepath.Base(path),
		"length":       len(seq),
	}).Debug("Loaded consensus sequence")

	return seq, nil
}

func (s *AlignmentSource) findAlignmentFile(referenceID string) (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", fmt.Errorf("listing sample folder %s: %w", s.dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.Contains(name, referenceID) && strings.HasSuffix(name, alignmentSuffix) {
			return filepath.Join(s.dir, name), nil
		}
	}
	return "", fmt.Errorf("no alignment file for reference %s in %s", referenceID, s.dir)
}
