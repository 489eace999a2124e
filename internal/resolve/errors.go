package resolve

import (
	"errors"
	"fmt"

	"github.com/matsen/citeq/internal/fuzzy"
)

// Step names the resolution stage that failed.
type Step string

const (
	StepSourceASearch Step = "source-a-search"
	StepSourceAFilter Step = "source-a-filter"
	StepSourceAMatch  Step = "source-a-match"
	StepSourceBSearch Step = "source-b-search"
	StepSourceBMatch  Step = "source-b-match"
	StepSourceBLookup Step = "source-b-lookup"
)

// ResolutionFailedError reports that no identity could be chosen. It
// reflects absent data, so it is never retried. Candidates holds whatever
// was scored before the failure, best first.
type ResolutionFailedError struct {
	Query      fuzzy.Profile
	Step       Step
	Err        error
	Candidates []fuzzy.Scored
}

func (e *ResolutionFailedError) Error() string {
	return fmt.Sprintf("resolving %q failed at %s: %v", e.Query.Name, e.Step, e.Err)
}

func (e *ResolutionFailedError) Unwrap() error { return e.Err }

// IsResolutionFailed returns true if err is a *ResolutionFailedError.
func IsResolutionFailed(err error) bool {
	var rf *ResolutionFailedError
	return errors.As(err, &rf)
}
