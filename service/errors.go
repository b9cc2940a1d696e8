package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrIssueNotFound = errors.New("issue not found")
	ErrTraceNotFound = errors.New("trace not found")
)

// MalformedVerdictError describes a terminal resolution that failed schema
// validation. The run that produced it is recorded as failed.
type MalformedVerdictError struct {
	Reason string
}

func (e *MalformedVerdictError) Error() string {
	return fmt.Sprintf("malformed resolution: %s", e.Reason)
}
