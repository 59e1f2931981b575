package search

import (
	"errors"
	"fmt"
)

// ErrorKind tags a SearchError. The set is closed.
type ErrorKind int

const (
	// KindArchiveIO means an archive or entry could not be opened or read.
	KindArchiveIO ErrorKind = iota + 1
	// KindInterrupted means the stop flag was observed at an entry boundary.
	KindInterrupted
	// KindInvalidQuery means the search pattern failed to compile.
	KindInvalidQuery
)

func (k ErrorKind) String() string {
	switch k {
	case KindArchiveIO:
		return "archive io"
	case KindInterrupted:
		return "interrupted"
	case KindInvalidQuery:
		return "invalid query"
	default:
		return "unknown"
	}
}

// Sentinel errors matched through errors.Is on a SearchError.
var (
	// ErrInterrupted is returned when the user stopped a running search.
	ErrInterrupted = errors.New("interrupted by user")

	// ErrInvalidQuery is returned when the query is not a valid regular expression.
	ErrInvalidQuery = errors.New("invalid search query")
)

// SearchError is the only error type returned by Engine.Search. Archive and
// Entry hold the position the step had reached so the caller can decide how to
// update its cursor.
type SearchError struct {
	Kind    ErrorKind
	Archive string
	Entry   string
	Err     error
}

func (e *SearchError) Error() string {
	where := e.Archive
	if e.Entry != "" {
		if where != "" {
			where += "/"
		}
		where += e.Entry
	}
	if where == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s at %s: %v", e.Kind, where, e.Err)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// Is reports kind-level equality so errors.Is(err, ErrInterrupted) works even
// when Err carries more detail.
func (e *SearchError) Is(target error) bool {
	switch target {
	case ErrInterrupted:
		return e.Kind == KindInterrupted
	case ErrInvalidQuery:
		return e.Kind == KindInvalidQuery
	}
	return false
}

// IsInterrupted reports whether err is a user interruption.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted)
}

// Position extracts the archive/entry pair carried by a SearchError.
func Position(err error) (archive, entry string, ok bool) {
	var se *SearchError
	if !errors.As(err, &se) {
		return "", "", false
	}
	return se.Archive, se.Entry, true
}

func archiveIOError(archive, entry string, err error) *SearchError {
	return &SearchError{Kind: KindArchiveIO, Archive: archive, Entry: entry, Err: err}
}
