package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// UnknownLab is the <lab> placeholder value for samples no lab claims.
const UnknownLab = "UNKNOWN"

// limsPattern splits a LIMS ID into its alphabetic prefix and numeric part,
// e.g. "K001" -> ("K", 1).
var limsPattern = regexp.MustCompile(`^(\D+)(\d+)`)

type labRange struct {
	lab    string
	prefix string
	start  int
	end    int
}

type labExact struct {
	lab    string
	limsID string
}

// LabDirectory resolves which submitting laboratory a sample belongs to.
// Assignments are either exact LIMS IDs or inclusive ranges written as
// "K001-K003" (same prefix, numeric span). Samples outside every
// assignment fall back to the default lab, or UnknownLab if none is set.
type LabDirectory struct {
	defaultLab string
	ranges     []labRange
	exact      []labExact
}

// NewLabDirectory builds a directory from a lab-name-to-assignments map.
func NewLabDirectory(defaultLab string, assignments map[string][]string) (*LabDirectory, error) {
	d := &LabDirectory{defaultLab: defaultLab}

	for lab, entries := range assignments {
		for _, entry := range entries {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			if !strings.Contains(entry, "-") {
				d.exact = append(d.exact, labExact{lab: lab, limsID: entry})
				continue
			}

			r, err := parseLabRange(lab, entry)
			if err != nil {
				return nil, fmt.Errorf("lab %s: %w", lab, err)
			}
			d.ranges = append(d.ranges, r)
		}
	}
	return d, nil
}

func parseLabRange(lab, entry string) (labRange, error) {
	parts := strings.SplitN(entry, "-", 2)
	startMatch := limsPattern.FindStringSubmatch(parts[0])
	endMatch := limsPattern.FindStringSubmatch(parts[1])
	if startMatch == nil || endMatch == nil {
		return labRange{}, fmt.Errorf("invalid range %q: expected format like K001-K003", entry)
	}
	if startMatch[1] != endMatch[1] {
		return labRange{}, fmt.Errorf("invalid range %q: prefixes differ", entry)
	}

	start, err := strconv.Atoi(startMatch[2])
	if err != nil {
		return labRange{}, fmt.Errorf("invalid range %q: %w", entry, err)
	}
	end, err := strconv.Atoi(endMatch[2])
	if err != nil {
		return labRange{}, fmt.Errorf("invalid range %q: %w", entry, err)
	}
	if end < start {
		return labRange{}, fmt.Errorf("invalid range %q: end before start", entry)
	}

	return labRange{lab: lab, prefix: startMatch[1], start: start, end: end}, nil
}

// LabFor returns the lab name assigned to a LIMS ID.
func (d *LabDirectory) LabFor(limsID string) string {
	for _, e := range d.exact {
		if e.limsID == limsID {
			return e.lab
		}
	}

	if m := limsPattern.FindStringSubmatch(limsID); m != nil {
		num, err := strconv.Atoi(m[2])
		if err == nil {
			for _, r := range d.ranges {
				if r.prefix == m[1] && num >= r.start && num <= r.end {
					return r.lab
				}
			}
		}
	}

	if d.defaultLab != "" {
		return d.defaultLab
	}
	return UnknownLab
}
