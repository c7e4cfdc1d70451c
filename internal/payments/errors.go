// internal/payments/errors.go
package payments

import "fmt"

// Kind classifies service failures so the HTTP boundary can map them without
// inspecting messages.
type Kind string

const (
	KindNotFound      Kind = "not_found"      // missing entity
	KindForbidden     Kind = "forbidden"      // authorization failure
	KindConflict      Kind = "conflict"       // state precondition violated
	KindIntegrity     Kind = "integrity"      // cross-entity consistency violation, logged as suspicious
	KindSecurity      Kind = "security"       // signature failure, always logged with context
	KindIndeterminate Kind = "indeterminate"  // gateway outcome unknown, manual reconciliation
	KindInternal      Kind = "internal"       // everything else
)

// Error is the typed error returned by the payment services. Code is a stable
// machine-readable identifier; Message is safe to show to the client.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Kind, e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

func notFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func forbidden(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

func conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func integrity(code, message string) *Error {
	return &Error{Kind: KindIntegrity, Code: code, Message: message}
}

func security(code, message string) *Error {
	return &Error{Kind: KindSecurity, Code: code, Message: message}
}

func indeterminate(code, message string, err error) *Error {
	return &Error{Kind: KindIndeterminate, Code: code, Message: message, err: err}
}

func internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: message, err: err}
}
