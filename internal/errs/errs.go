// Package errs defines the error kinds shared by the translation pipeline.
// Concrete failures wrap one of these sentinels; callers test with errors.Is.
package errs

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks malformed input: an empty candidate list, a
	// glossary entry without text, mismatched chunk counts.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAborted marks work that stopped because its context was cancelled.
	ErrAborted = errors.New("aborted")
	// ErrUpstream marks a failed model invocation.
	ErrUpstream = errors.New("upstream failure")
	// ErrMalformedOutput marks a structured reply that could not be decoded
	// or did not match its schema. It is always reported together with ErrUpstream.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrPrecondition marks a request that cannot run as configured,
	// e.g. chunk translation with no models.
	ErrPrecondition = errors.New("precondition failed")
)

// CheckContext returns nil while ctx is live and an error wrapping both
// ErrAborted and ctx.Err() once it is done.
func CheckContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrAborted, err)
	}
	return nil
}

// Malformed wraps err as an unparseable structured reply.
func Malformed(err error) error {
	return fmt.Errorf("%w: %w: %w", ErrUpstream, ErrMalformedOutput, err)
}

// Upstream wraps err as a failed model invocation. Context cancellation is
// reported as ErrAborted instead.
func Upstream(ctx context.Context, err error) error {
	if ctxErr := CheckContext(ctx); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, ErrUpstream) || errors.Is(err, ErrAborted) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}
