package cli

import (
	"errors"
	"fmt"
)

const (
	ExitLocalized    = 0 // at least one image newly localized
	ExitFailure      = 1 // bad invocation, asset dir or persist failure
	ExitMissingInput = 2 // the document does not exist
	ExitNothingToDo  = 3 // no remote images, or none could be localized
	ExitCommitFailed = 4 // images localized but the git step failed
)

var ErrMissingInput = errors.New("input document not found")

// PersistError reports that the rewritten document could not be saved.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("save %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// CommitError reports a failed git step after a successful localization.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("version control: %v", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// ExitCode maps the error returned by App.Execute to a process exit code.
func ExitCode(err error, changed bool) int {
	var commitErr *CommitError
	switch {
	case err == nil && changed:
		return ExitLocalized
	case err == nil:
		return ExitNothingToDo
	case errors.Is(err, ErrMissingInput):
		return ExitMissingInput
	case errors.As(err, &commitErr):
		return ExitCommitFailed
	default:
		return ExitFailure
	}
}
