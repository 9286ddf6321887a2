package domain

import (
	"errors"
	"fmt"
)

// FailureReason is the reason code attached to a sample's report rows when
// an error isolated it from the rest of the batch.
type FailureReason string

const (
	ReasonNone              FailureReason = ""
	ReasonUnknownVirus      FailureReason = "unknown virus"
	ReasonMalformed         FailureReason = "malformed assignment"
	ReasonAssemblyFailed    FailureReason = "assembly failed"
	ReasonNoMatchingStrains FailureReason = "no matching strains"
)

// String returns the reason code as written into report rows.
func (r FailureReason) String() string {
	return string(r)
}

// UnknownVirusError indicates a virus identifier with no registered profile.
// It is fatal for the affected sample (or run) only, never for other samples.
type UnknownVirusError struct {
	Virus string
}

func (e *UnknownVirusError) Error() string {
	return fmt.Sprintf("unknown virus %q: no profile registered", e.Virus)
}

// MalformedAssignmentError indicates an assignment document whose required
// numeric fields are missing or non-numeric. The affected sample is skipped
// with a recorded failure row; the batch continues.
type MalformedAssignmentError struct {
	LimsID string
	Field  string
	Detail string
}

func (e *MalformedAssignmentError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("malformed assignment for sample %s: field %s: %s", e.LimsID, e.Field, e.Detail)
	}
	return fmt.Sprintf("malformed assignment for sample %s: field %s", e.LimsID, e.Field)
}

// AssemblyError indicates an eligible segment whose stored sequence is
// empty. This is an upstream data inconsistency and must be surfaced; the
// sample's assembly is aborted but its evaluation rows are still reported.
type AssemblyError struct {
	LimsID  string
	Segment string
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assembly for sample %s: eligible segment %s has no sequence data", e.LimsID, e.Segment)
}

// ReasonForError maps a per-sample error to its report reason code.
func ReasonForError(err error) FailureReason {
	if err == nil {
		return ReasonNone
	}

	var unknownVirus *UnknownVirusError
	var malformed *MalformedAssignmentError
	var assembly *AssemblyError

	switch {
	case errors.As(err, &unknownVirus):
		return ReasonUnknownVirus
	case errors.As(err, &malformed):
		return ReasonMalformed
	case errors.As(err, &assembly):
		return ReasonAssemblyFailed
	default:
		return ReasonMalformed
	}
}
