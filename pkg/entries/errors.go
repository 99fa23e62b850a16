package entries

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedName     = errors.New("invalid or unsupported entry name")
	ErrUnknownAction       = errors.New("unknown entry action")
	ErrUnknownFormat       = errors.New("unknown entry format")
	ErrTimestamp           = errors.New("unable to parse entry timestamp")
	ErrMissingParticipants = errors.New("unable to find any participants in the group conversation")

	ErrMissingPlaceholder = errors.New("unable to find the media placeholder")
	ErrUnsavedMedia       = errors.New("unable to merge unsaved media entry")
	ErrUnsupported        = errors.New("unsupported operation")
)

// ClassificationError reports a file name the factory could not turn into an entry.
type ClassificationError struct {
	Name string
	Err  error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("%s: %q", e.Err, e.Name)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// ParticipantResolutionError reports a group conversation whose participants
// could not be recovered from its HTML document.
type ParticipantResolutionError struct {
	Path string
	Err  error
}

func (e *ParticipantResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve participants from %q: %s", e.Path, e.Err)
}

func (e *ParticipantResolutionError) Unwrap() error { return e.Err }
