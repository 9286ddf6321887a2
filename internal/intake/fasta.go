// Package intake provides the I/O collaborators around the evaluation
// engine: sample folder discovery, alignment FASTA access and writing of
// submission files and summary reports.
package intake

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// FastaRecord is a single FASTA record: header (without '>') and sequence.
type FastaRecord struct {
	Header   string
	Sequence string
}

// ParseFasta reads FASTA records from r. Lines beginning with '>' denote
// headers; sequence lines are concatenated with surrounding whitespace
// stripped.
func ParseFasta(r io.Reader) ([]FastaRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []FastaRecord
	var current *FastaRecord
	var seq strings.Builder

	flush := func() {
		if current != nil {
			current.Sequence = seq.String()
			records = append(records, *current)
			seq.Reset()
		}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			flush()
			current = &FastaRecord{Header: strings.TrimPrefix(line, ">")}
			continue
		}
		if current != nil {
			seq.WriteString(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading fasta: %w", err)
	}
	flush()

	return records, nil
}

// ConsensusSequence extracts the consensus from an alignment FASTA. The
// upstream aligner writes the reference first and the sample consensus
// second, so the file must contain at least two records.
func ConsensusSequence(r io.Reader) (string, error) {
	records, err := ParseFasta(r)
	if err != nil {
		return "", err
	}
	if len(records) < 2 {
		return "", fmt.Errorf("extracting consensus: expected at least 2 sequences, found %d", len(records))
	}
	return records[1].Sequence, nil
}

// WriteFasta serializes records to w, one header line and one sequence line
// per record.
func WriteFasta(w io.Writer, records ...FastaRecord) error {
	for _, rec := range records {
		if _, err := fmt.Fprintf(w, ">%s\n%s\n", rec.Header, rec.Sequence); err != nil {
			return fmt.Errorf("writing fasta record %s: %w", rec.Header, err)
		}
	}
	return nil
}
