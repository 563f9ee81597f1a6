package types

import (
	"sync"

	"go.uber.org/multierr"
)

// BatchFailure records one sub-operation that failed inside a batch.
type BatchFailure struct {
	Ref string
	Err error
}

// BatchOutcome aggregates the results of concurrently issued
// sub-operations. Callers inspect partial outcomes instead of inferring
// them from sentinel values. Safe for use from multiple goroutines.
type BatchOutcome struct {
	mu        sync.Mutex
	succeeded []string
	failed    []BatchFailure
}

// AddSuccess records a completed sub-operation.
func (b *BatchOutcome) AddSuccess(ref string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.succeeded = append(b.succeeded, ref)
}

// AddFailure records a failed sub-operation.
func (b *BatchOutcome) AddFailure(ref string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failed = append(b.failed, BatchFailure{Ref: ref, Err: err})
}

// Succeeded returns the refs of completed sub-operations.
func (b *BatchOutcome) Succeeded() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.succeeded))
	copy(out, b.succeeded)
	return out
}

// Failed returns the recorded failures.
func (b *BatchOutcome) Failed() []BatchFailure {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BatchFailure, len(b.failed))
	copy(out, b.failed)
	return out
}

// OK reports whether every sub-operation settled successfully.
func (b *BatchOutcome) OK() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.failed) == 0
}

// Err combines every recorded failure into a single error, or nil.
func (b *BatchOutcome) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	errs := make([]error, 0, len(b.failed))
	for _, f := range b.failed {
		errs = append(errs, f.Err)
	}
	return multierr.Combine(errs...)
}
