package imagesource

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNormalizerUnavailable signals that no decode/re-encode surface is
// configured. This is fatal for the whole fetch: no fallback source can help,
// so it propagates immediately instead of advancing the proxy sequence.
var ErrNormalizerUnavailable = errors.New("imagesource: normalizer is not configured")

// Attempt records one load attempt against one source: the URL under attempt
// and its failure. Attempts are transient; they exist only inside the
// aggregate error for the fetch that produced them.
type Attempt struct {
	Location string
	Err      error
}

// FetchError is the terminal failure after the direct attempt and every
// configured proxy have been exhausted, in order. It names each source tried.
type FetchError struct {
	Source   string
	Attempts []Attempt
}

// Error lists every exhausted source so "no source succeeded" failures stay
// diagnosable from the message alone.
func (e *FetchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "imagesource: no source succeeded for %q", e.Source)
	for _, attempt := range e.Attempts {
		fmt.Fprintf(&sb, "; %s: %v", attempt.Location, attempt.Err)
	}
	return sb.String()
}

// Unwrap exposes the per-attempt errors for errors.Is/As inspection.
func (e *FetchError) Unwrap() []error {
	if len(e.Attempts) == 0 {
		return nil
	}
	errs := make([]error, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		if attempt.Err != nil {
			errs = append(errs, attempt.Err)
		}
	}
	return errs
}
