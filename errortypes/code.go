package errortypes

import "errors"

// Error codes.
const (
	UnknownErrorCode  = 999
	BadInputErrorCode = iota
	UnauthorizedErrorCode
	FailedToFetchVendorListErrorCode
)

// Warning codes.
const (
	UnknownWarningCode               = 10999
	InvalidPrivacyConsentWarningCode = iota + 10000
	DeprecatedConsentWarningCode
)

// Coder provides an error or warning code with severity.
type Coder interface {
	Code() int
	Severity() Severity
}

// ReadCode returns the code of the first Coder in the error chain, or UnknownErrorCode.
func ReadCode(err error) int {
	var coder Coder
	if errors.As(err, &coder) {
		return coder.Code()
	}
	return UnknownErrorCode
}

// Scope limits where an error is reported.
type Scope int

const (
	ScopeAny Scope = iota
	ScopeDebug
)

// Scoped is implemented by errors reported only in some outputs.
type Scoped interface {
	Scope() Scope
}

// ReadScope returns the scope of the first Scoped in the error chain. Unscoped errors are reported
// everywhere.
func ReadScope(err error) Scope {
	var scoped Scoped
	if errors.As(err, &scoped) {
		return scoped.Scope()
	}
	return ScopeAny
}
