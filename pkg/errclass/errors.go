package errclass

import "fmt"

// TTMError is a stable, machine-readable error class.
type TTMError struct {
	Code    string
	Message string
	Cause   error
}

func (e *TTMError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TTMError) Is(target error) bool {
	t, ok := target.(*TTMError)
	return ok && e.Code == t.Code
}

// Unwrap exposes the underlying cause, if any.
func (e *TTMError) Unwrap() error {
	return e.Cause
}

// WithMessage returns a new TTMError with the same Code but a specific message.
func (e *TTMError) WithMessage(msg string) *TTMError {
	return &TTMError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new TTMError with a formatted message.
func (e *TTMError) WithMessagef(format string, args ...any) *TTMError {
	return &TTMError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a new TTMError carrying cause; the message is "<msg>: <cause>".
func (e *TTMError) Wrap(cause error, msg string) *TTMError {
	return &TTMError{Code: e.Code, Message: fmt.Sprintf("%s: %v", msg, cause), Cause: cause}
}

// All stable error classes.
var (
	ErrIO               = &TTMError{Code: "E_IO"}
	ErrCorruptLog       = &TTMError{Code: "E_CORRUPT_LOG"}
	ErrNotFound         = &TTMError{Code: "E_NOT_FOUND"}
	ErrEncoding         = &TTMError{Code: "E_ENCODING"}
	ErrEntropy          = &TTMError{Code: "E_ENTROPY"}
	ErrNameInvalid      = &TTMError{Code: "E_NAME_INVALID"}
	ErrMarkerCorrupt    = &TTMError{Code: "E_MARKER_CORRUPT"}
	ErrAuditChainBroken = &TTMError{Code: "E_AUDIT_CHAIN_BROKEN"}
	ErrConfigInvalid    = &TTMError{Code: "E_CONFIG_INVALID"}
)
