package fetch

import (
	"errors"
	"fmt"
)

// ErrUnsupportedStream is returned when the response carries no incremental body reader.
var ErrUnsupportedStream = errors.New("incremental response body not supported")

// TransportError reports a non-success status or a failure while reading the body.
// Status is 0 when no response was received.
type TransportError struct {
	Status     int
	StatusText string
	URL        string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("transport error fetching %s: %v", e.URL, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("transport error (%d %s) fetching %s: %v", e.Status, e.StatusText, e.URL, e.Err)
	default:
		return fmt.Sprintf("%d %s", e.Status, e.StatusText)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
