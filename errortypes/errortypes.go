package errortypes

// BadInput flags a request the caller has to fix, such as a malformed body or an unparsable gdpr
// signal. Endpoints answer it with 400 and it is not written to the app log.
type BadInput struct {
	Message string
}

func (err *BadInput) Error() string      { return err.Message }
func (err *BadInput) Code() int          { return BadInputErrorCode }
func (err *BadInput) Severity() Severity { return SeverityFatal }

// Unauthorized flags a user who opted out of syncs or an account which may not use the endpoint.
type Unauthorized struct {
	Message string
}

func (err *Unauthorized) Error() string      { return err.Message }
func (err *Unauthorized) Code() int          { return UnauthorizedErrorCode }
func (err *Unauthorized) Severity() Severity { return SeverityFatal }

// FailedToFetchVendorList is returned when a vendor list version is not loaded. Callers downgrade their
// enforcement instead of failing the request.
type FailedToFetchVendorList struct {
	Message string
}

func (err *FailedToFetchVendorList) Error() string      { return err.Message }
func (err *FailedToFetchVendorList) Code() int          { return FailedToFetchVendorListErrorCode }
func (err *FailedToFetchVendorList) Severity() Severity { return SeverityFatal }

// Warning is a non-fatal error reported back to the caller.
type Warning struct {
	Message     string
	WarningCode int
}

func (err *Warning) Error() string      { return err.Message }
func (err *Warning) Code() int          { return err.WarningCode }
func (err *Warning) Severity() Severity { return SeverityWarning }

// Scope reports consent warnings only for debug output.
func (err *Warning) Scope() Scope {
	if err.WarningCode == InvalidPrivacyConsentWarningCode {
		return ScopeDebug
	}
	return ScopeAny
}
