package errortypes

import (
	"fmt"
	"strings"
)

// AggregateErrors joins the errors found while validating or building one component.
type AggregateErrors struct {
	Message string
	Errors  []error
}

func NewAggregateErrors(msg string, errs []error) AggregateErrors {
	return AggregateErrors{
		Message: msg,
		Errors:  errs,
	}
}

// Error lists every error under the message, one per line. An empty aggregate renders as "".
func (e AggregateErrors) Error() string {
	if len(e.Errors) == 0 {
		return ""
	}

	var b strings.Builder
	if len(e.Errors) == 1 {
		fmt.Fprintf(&b, "%s (1 error):\n", e.Message)
	} else {
		fmt.Fprintf(&b, "%s (%d errors):\n", e.Message, len(e.Errors))
	}
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d: %s\n", i+1, err.Error())
	}
	return b.String()
}

// Unwrap exposes the aggregated errors to errors.Is and errors.As.
func (e AggregateErrors) Unwrap() []error {
	return e.Errors
}
