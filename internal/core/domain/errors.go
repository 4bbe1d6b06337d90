package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
//
// The taxonomy has three propagation classes. Configuration errors are
// fatal and never retried. Transient errors are retried with bounded
// backoff at the component boundary and never surfaced past the retry
// budget. Processing errors abort the run after retries are exhausted.
// A per-section synthesis failure is not an error value at all: it is
// recorded on the report (Failed/Error fields) and the run continues.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration marks fatal, non-retryable misconfiguration:
	// vector-size mismatches, missing required settings, bad URIs.
	ErrConfiguration = errors.New("configuration error")

	// ErrTransient marks retryable failures: network errors, timeouts,
	// rate limits, 5xx responses from any collaborator.
	ErrTransient = errors.New("transient service error")

	// ErrProcessing marks run-fatal failures after retries are spent.
	ErrProcessing = errors.New("processing error")

	// ErrSkeletonSealed indicates a mutation was attempted on a sealed
	// skeleton.
	ErrSkeletonSealed = errors.New("skeleton is sealed")

	// ErrCollectionMismatch indicates an existing collection has a
	// different vector size than requested.
	ErrCollectionMismatch = fmt.Errorf("%w: collection vector size mismatch", ErrConfiguration)

	// ErrEmptyCollection indicates a query hit a collection holding no
	// vectors.
	ErrEmptyCollection = errors.New("collection holds no vectors")

	// ErrUnsupportedSource indicates no loader handles the source URI.
	ErrUnsupportedSource = errors.New("unsupported source")
)

// ConfigErrorf builds a fatal configuration error.
func ConfigErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// TransientErrorf builds a retryable transient error.
func TransientErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTransient, fmt.Sprintf(format, args...))
}

// Transient wraps err as retryable, preserving the cause chain.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsConfiguration reports whether err is fatal misconfiguration.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsTransient reports whether err may be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// ProcessingError aborts a run. It names the failing stage and, when
// batch-scoped, the failing batch index plus the last good skeleton
// version so the caller can resume explicitly.
type ProcessingError struct {
	// Stage is the pipeline stage that failed (e.g. "skeleton", "synthesis").
	Stage string

	// BatchIndex is the failing batch, or -1 when not batch-scoped.
	BatchIndex int

	// LastGoodVersion is the skeleton version before the failing batch,
	// or -1 when not applicable.
	LastGoodVersion int

	// Snapshot is the last good skeleton for batch-scoped failures, so
	// the caller can persist it and resume. Nil otherwise.
	Snapshot *Skeleton

	// Err is the underlying cause.
	Err error
}

func (e *ProcessingError) Error() string {
	if e.BatchIndex >= 0 {
		return fmt.Sprintf("%s failed at batch %d (last good skeleton v%d): %v", e.Stage, e.BatchIndex, e.LastGoodVersion, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrProcessing) match any ProcessingError.
func (e *ProcessingError) Is(target error) bool { return target == ErrProcessing }

// NewProcessingError builds a run-fatal error for a non-batch stage.
func NewProcessingError(stage string, err error) *ProcessingError {
	return &ProcessingError{Stage: stage, BatchIndex: -1, LastGoodVersion: -1, Err: err}
}

// NewBatchProcessingError builds a run-fatal error naming the failing
// batch and carrying the last good skeleton for explicit resume.
func NewBatchProcessingError(stage string, batchIndex int, lastGood *Skeleton, err error) *ProcessingError {
	e := &ProcessingError{Stage: stage, BatchIndex: batchIndex, LastGoodVersion: -1, Err: err}
	if lastGood != nil {
		e.LastGoodVersion = lastGood.Version
		e.Snapshot = lastGood.Clone()
	}
	return e
}
