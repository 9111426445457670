package errortypes

import "errors"

// Severity represents the severity level of a privacy processing error.
type Severity int

const (
	SeverityUnknown Severity = iota

	// SeverityFatal errors stop the request from being served.
	SeverityFatal

	// SeverityWarning errors report request data which was ignored because it was invalid or ambiguous.
	SeverityWarning
)

// severityOf reads the severity of the first Coder in the error chain. Errors without one are fatal.
func severityOf(err error) Severity {
	var coder Coder
	if errors.As(err, &coder) {
		return coder.Severity()
	}
	return SeverityFatal
}

// IsWarning reports whether the error, or an error it wraps, is a Warning.
func IsWarning(err error) bool {
	return severityOf(err) == SeverityWarning
}

// ContainsFatalError checks if the error list contains a fatal error.
func ContainsFatalError(errs []error) bool {
	for _, err := range errs {
		if severityOf(err) == SeverityFatal {
			return true
		}
	}
	return false
}

// FatalOnly returns the fatal errors of the list.
func FatalOnly(errs []error) []error {
	return filterBySeverity(errs, SeverityFatal)
}

// WarningOnly returns the warnings of the list.
func WarningOnly(errs []error) []error {
	return filterBySeverity(errs, SeverityWarning)
}

func filterBySeverity(errs []error, severity Severity) []error {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if severityOf(err) == severity {
			filtered = append(filtered, err)
		}
	}
	return filtered
}
