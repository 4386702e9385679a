package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyVocabulary    = errors.New("vocabulary is empty")
	ErrDuplicateCategory  = errors.New("duplicate category")
	ErrInvalidWindow      = errors.New("window start is after window end")
	ErrUnknownMetric      = errors.New("unknown metric")
	ErrMisalignedBucket   = errors.New("bucket values are not aligned with its dates")
	ErrIncompatibleShards = errors.New("shards do not share metrics and categories")
)

// TransientError marks a backend failure worth retrying (timeouts, 5xx).
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// FatalError means nothing usable could be retrieved for a stage and the whole
// refresh has to be aborted.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("refresh aborted at %s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}

// Degradation records a stage that failed but was substituted with a default
// or a fallback. The refresh keeps going.
type Degradation struct {
	Stage    string `json:"stage"`
	Reason   string `json:"reason"`
	Fallback string `json:"fallback"`
}
