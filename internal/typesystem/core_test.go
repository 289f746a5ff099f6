package typesystem

import (
	"testing"

	"github.com/polysubml/polysubml/internal/diagnostics"
	"github.com/polysubml/polysubml/internal/token"
	"github.com/stretchr/testify/require"
)

func span() token.Span { return token.Span{Source: 0, Start: 0, End: 1} }

func TestFlowSameAbstractTypeSucceeds(t *testing.T) {
	c := NewChecker()
	intCtor, ok := c.TypeCtorByName("int")
	require.True(t, ok)

	v := c.NewValue(AbstractValue(intCtor), span(), PolyDeps{})
	u := c.NewUse(AbstractUse(intCtor), span(), PolyDeps{})

	require.Nil(t, c.Flow(v, u, span()))
}

func TestFlowDistinctAbstractTypesFails(t *testing.T) {
	c := NewChecker()
	intCtor, _ := c.TypeCtorByName("int")
	boolCtor, _ := c.TypeCtorByName("bool")

	v := c.NewValue(AbstractValue(intCtor), span(), PolyDeps{})
	u := c.NewUse(AbstractUse(boolCtor), span(), PolyDeps{})

	err := c.Flow(v, u, span())
	require.NotNil(t, err)
	require.Equal(t, diagnostics.KindTypeMismatch, err.Code)
}

func TestFlowIntoVarThenOut(t *testing.T) {
	// int <: x, x <: int  should both succeed: x unifies down to int.
	c := NewChecker()
	intCtor, _ := c.TypeCtorByName("int")

	v := c.NewValue(AbstractValue(intCtor), span(), PolyDeps{})
	xv, xu := c.NewVar(HoleSrc{Tag: "x", Span: span()})
	u := c.NewUse(AbstractUse(intCtor), span(), PolyDeps{})

	require.Nil(t, c.Flow(v, xu, span()))
	require.Nil(t, c.Flow(xv, u, span()))
}

func TestSaveRevertDiscardsFlow(t *testing.T) {
	c := NewChecker()
	intCtor, _ := c.TypeCtorByName("int")
	boolCtor, _ := c.TypeCtorByName("bool")

	v := c.NewValue(AbstractValue(intCtor), span(), PolyDeps{})
	u := c.NewUse(AbstractUse(intCtor), span(), PolyDeps{})
	badU := c.NewUse(AbstractUse(boolCtor), span(), PolyDeps{})

	c.Save()
	err := c.Flow(v, badU, span())
	require.NotNil(t, err)
	c.Revert()

	// The graph should behave as if the failed flow never happened.
	require.Nil(t, c.Flow(v, u, span()))
}

func TestBotAndTopUseAreTrivial(t *testing.T) {
	c := NewChecker()
	intCtor, _ := c.TypeCtorByName("int")
	u := c.NewUse(AbstractUse(intCtor), span(), PolyDeps{})
	v := c.NewValue(AbstractValue(intCtor), span(), PolyDeps{})

	require.Nil(t, c.Flow(Bot(), u, span()))
	require.Nil(t, c.Flow(v, TopUse(), span()))
}

func TestFlowRejectsAbstractTypeEscapingItsFunctionScope(t *testing.T) {
	// A type ctor declared one function level deeper than the edge that
	// tries to carry it out must be rejected (spec "Funclvl non-escape"):
	// the edge's own funclvl has to be stamped at creation time, not left
	// at the sentinel "no constraint" value, or this case slips through.
	c := NewChecker()

	c.EnterFunc()
	inner := c.RegisterTypeCtor("t", span())
	v := c.NewValue(AbstractValue(inner), span(), PolyDeps{})
	u := c.NewUse(AbstractUse(inner), span(), PolyDeps{})
	c.LeaveFunc()

	err := c.Flow(v, u, span())
	require.NotNil(t, err)
	require.Equal(t, diagnostics.KindTypeEscape, err.Code)
}

func TestFlowAllowsAbstractTypeAtItsOwnFunctionLevel(t *testing.T) {
	c := NewChecker()

	c.EnterFunc()
	inner := c.RegisterTypeCtor("t", span())
	v := c.NewValue(AbstractValue(inner), span(), PolyDeps{})
	u := c.NewUse(AbstractUse(inner), span(), PolyDeps{})

	require.Nil(t, c.Flow(v, u, span()))
	c.LeaveFunc()
}

func TestStatsCountsFlowsAndVars(t *testing.T) {
	c := NewChecker()
	intCtor, _ := c.TypeCtorByName("int")
	v := c.NewValue(AbstractValue(intCtor), span(), PolyDeps{})
	u := c.NewUse(AbstractUse(intCtor), span(), PolyDeps{})
	c.NewVar(HoleSrc{Tag: "t", Span: span()})

	require.Nil(t, c.Flow(v, u, span()))
	st := c.Stats()
	require.Equal(t, uint64(1), st.FlowCount)
	require.Equal(t, uint64(1), st.VarCount)
}
