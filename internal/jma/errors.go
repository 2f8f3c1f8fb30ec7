package jma

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGranularity is returned before any fetch when the granularity
	// is neither daily nor hourly.
	ErrInvalidGranularity = errors.New("granularity must be daily or hourly")

	// ErrInvalidDateRange is returned before any fetch when from is after to.
	ErrInvalidDateRange = errors.New("from date is after to date")

	// errMissingTable marks a series page without a data table. It never
	// leaves this package.
	errMissingTable = errors.New("page has no data table")
)

// TransportError is a network failure or a non-2xx response.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError means a station marker payload did not have the expected shape.
type DecodeError struct {
	Link    string
	Payload string
	Reason  string
	Err     error
}

func (e *DecodeError) Error() string {
	msg := "decode station marker"
	if e.Link != "" {
		msg += " " + e.Link
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
