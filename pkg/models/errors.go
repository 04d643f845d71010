package models

import (
	"errors"
	"fmt"
)

// Error kinds. Concrete error types below tie themselves to one of these
// sentinels via an Is method, so callers can branch with errors.Is without
// caring about the specific failure.
var (
	// ErrNotFound covers missing enrichments, versions and jobs. Safe to
	// report to the caller directly; never retried.
	ErrNotFound = errors.New("not found")

	// ErrValidation covers every schema validation failure. Always a
	// caller-input error.
	ErrValidation = errors.New("validation failed")

	// ErrConflict covers duplicate registrations.
	ErrConflict = errors.New("conflict")

	// ErrIllegalTransition covers job status changes that violate the
	// lifecycle state diagram.
	ErrIllegalTransition = errors.New("illegal transition")
)

// MissingFieldError reports a required field absent from the payload.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrValidation }

// UnknownFieldError reports a payload key not declared in the schema.
// Schemas are closed-world: unexpected keys are rejected so upstream drift
// surfaces early.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field: %s", e.Field)
}

func (e *UnknownFieldError) Is(target error) bool { return target == ErrValidation }

// TypeMismatchError reports a field value that does not conform to its
// declared type tag.
type TypeMismatchError struct {
	Field string
	Want  FieldType
	Got   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("field %s expected %s, got %s", e.Field, e.Want, e.Got)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrValidation }

// CustomValidationError reports a field that failed its custom predicate.
type CustomValidationError struct {
	Field string
}

func (e *CustomValidationError) Error() string {
	return fmt.Sprintf("validation failed for field: %s", e.Field)
}

func (e *CustomValidationError) Is(target error) bool { return target == ErrValidation }

// EnrichmentNotFoundError reports an enrichment name with no registration.
type EnrichmentNotFoundError struct {
	Name string
}

func (e *EnrichmentNotFoundError) Error() string {
	return fmt.Sprintf("enrichment %s not found", e.Name)
}

func (e *EnrichmentNotFoundError) Is(target error) bool { return target == ErrNotFound }

// VersionNotFoundError reports a version id that does not resolve within an
// enrichment, or an enrichment with no versions at all (empty VersionID).
type VersionNotFoundError struct {
	Enrichment string
	VersionID  string
}

func (e *VersionNotFoundError) Error() string {
	if e.VersionID == "" {
		return fmt.Sprintf("no versions found for enrichment %s", e.Enrichment)
	}
	return fmt.Sprintf("version %s not found for enrichment %s", e.VersionID, e.Enrichment)
}

func (e *VersionNotFoundError) Is(target error) bool { return target == ErrNotFound }

// JobNotFoundError reports a job id with no record.
type JobNotFoundError struct {
	JobID string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job %s not found", e.JobID)
}

func (e *JobNotFoundError) Is(target error) bool { return target == ErrNotFound }

// DuplicateEnrichmentError reports a second registration of the same name.
// Registration is deliberately not an upsert; callers wanting idempotency
// must handle this at a higher layer.
type DuplicateEnrichmentError struct {
	Name string
}

func (e *DuplicateEnrichmentError) Error() string {
	return fmt.Sprintf("enrichment %s already exists", e.Name)
}

func (e *DuplicateEnrichmentError) Is(target error) bool { return target == ErrConflict }

// IllegalTransitionError reports a job status change that the state diagram
// forbids, e.g. re-entering RUNNING after COMPLETED.
type IllegalTransitionError struct {
	JobID string
	From  JobStatus
	To    JobStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("job %s cannot transition from %s to %s", e.JobID, e.From, e.To)
}

func (e *IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }

// OutputValidationError reports a job result that failed the version's
// output schema. It is surfaced separately from the job's own business
// failure so a bad result never corrupts job state.
type OutputValidationError struct {
	JobID string
	Err   error
}

func (e *OutputValidationError) Error() string {
	return fmt.Sprintf("job %s output rejected: %v", e.JobID, e.Err)
}

func (e *OutputValidationError) Unwrap() error { return e.Err }

func (e *OutputValidationError) Is(target error) bool { return target == ErrValidation }
