// Package diagnostics defines the structured error values surfaced by the
// type checker. Rendering (colorization, source snippets) happens outside
// this package — see cmd/polysubml.
package diagnostics

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/polysubml/polysubml/internal/token"
)

// Kind enumerates the error kinds named in the specification (§7).
type Kind string

const (
	KindSyntaxError     Kind = "SyntaxError"
	KindTypeMismatch    Kind = "TypeMismatch"
	KindMissingField    Kind = "MissingField"
	KindImmutableField  Kind = "ImmutableField"
	KindUnhandledVariant Kind = "UnhandledVariant"
	KindTypeEscape      Kind = "TypeEscape"
	KindPoisonedPoly    Kind = "PoisonedPoly"
)

// FlowReason records why a particular edge exists, so a chain of reasons
// can be walked backward from a failing head pair to the root flow() call
// that ultimately caused it (spec §7 "Provenance").
type FlowReason struct {
	// Kind is one of "root", "transitivity", "check".
	Kind string
	Span token.Span
	// Detail is a short human tag (e.g. the node index involved), purely
	// informative — it never participates in comparisons.
	Detail string
}

func RootReason(span token.Span) FlowReason {
	return FlowReason{Kind: "root", Span: span}
}

func TransitivityReason(detail string) FlowReason {
	return FlowReason{Kind: "transitivity", Detail: detail}
}

func CheckReason(detail string) FlowReason {
	return FlowReason{Kind: "check", Detail: detail}
}

// DiagnosticError is the single structured error type returned by the
// checker and materializer. Locations are carried only as Spans; turning
// them into file/line/column text is left to whoever renders the error.
type DiagnosticError struct {
	SessionID uuid.UUID
	Code      Kind
	Message   string

	Primary   token.Span
	Secondary *token.Span

	// Chain is the provenance trail, root-first.
	Chain []FlowReason
}

func (e *DiagnosticError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New constructs a DiagnosticError with an empty provenance chain; no
// code in this repository fills Chain in afterwards.
func New(code Kind, primary token.Span, message string) *DiagnosticError {
	return &DiagnosticError{Code: code, Primary: primary, Message: message}
}

func NewWithSecondary(code Kind, primary, secondary token.Span, message string) *DiagnosticError {
	sec := secondary
	return &DiagnosticError{Code: code, Primary: primary, Secondary: &sec, Message: message}
}

// WithSession stamps the session id that produced this error, for
// correlating diagnostics across a gRPC stream or cache lookup.
func (e *DiagnosticError) WithSession(id uuid.UUID) *DiagnosticError {
	e.SessionID = id
	return e
}
