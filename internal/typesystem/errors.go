package typesystem

import (
	"fmt"

	"github.com/polysubml/polysubml/internal/diagnostics"
	"github.com/polysubml/polysubml/internal/token"
)

func typeMismatchErr(c *Checker, lhs *valueNode, rhs *useNode) *diagnostics.DiagnosticError {
	msg := fmt.Sprintf("expected %s, found %s", describeUHead(rhs.Head), describeVHead(lhs.Head))
	return diagnostics.NewWithSecondary(diagnostics.KindTypeMismatch, lhs.Span, rhs.Span, msg)
}

func missingFieldErr(lhsSpan, rhsSpan token.Span, field string) *diagnostics.DiagnosticError {
	msg := fmt.Sprintf("missing field `%s`", field)
	return diagnostics.NewWithSecondary(diagnostics.KindMissingField, lhsSpan, rhsSpan, msg)
}

func immutableFieldErr(lhsSpan, rhsSpan token.Span, field string) *diagnostics.DiagnosticError {
	msg := fmt.Sprintf("field `%s` is not mutable here", field)
	return diagnostics.NewWithSecondary(diagnostics.KindImmutableField, lhsSpan, rhsSpan, msg)
}

func unhandledVariantErr(lhsSpan, rhsSpan token.Span, tag string) *diagnostics.DiagnosticError {
	msg := fmt.Sprintf("unhandled case tag `%s", tag)
	return diagnostics.NewWithSecondary(diagnostics.KindUnhandledVariant, lhsSpan, rhsSpan, msg)
}

func typeEscapeErr(c *Checker, ty TypeCtorInd, lhsSpan, rhsSpan token.Span, funcLvl uint32) *diagnostics.DiagnosticError {
	name := "<type>"
	if int(ty) < len(c.typeCtors) {
		name = c.typeCtors[ty].Name
	}
	msg := fmt.Sprintf("abstract type `%s` escapes the function that introduced it", name)
	return diagnostics.NewWithSecondary(diagnostics.KindTypeEscape, lhsSpan, rhsSpan, msg)
}

func poisonedPolyErr(span token.Span) *diagnostics.DiagnosticError {
	return diagnostics.New(diagnostics.KindPoisonedPoly, span, "cannot instantiate: this quantifier is poisoned by an earlier error")
}
