package typesystem

import (
	"github.com/polysubml/polysubml/internal/ast"
	"github.com/polysubml/polysubml/internal/token"
)

// This file is the analyzer-facing constructor surface: internal/analyzer
// builds heads through these functions rather than naming the unexported
// vHead/uHead implementations directly, keeping the tagged-union types
// themselves private to the engine (spec §4's "no I/O, no outside access
// to graph internals").

func AbstractValue(ty TypeCtorInd) vHead { return vAbstract{Ty: ty} }
func AbstractUse(ty TypeCtorInd) uHead   { return uAbstract{Ty: ty} }

func FuncValue(arg Use, ret Value) vHead { return vFunc{Arg: arg, Ret: ret} }
func FuncUse(arg Value, ret Use) uHead   { return uFunc{Arg: arg, Ret: ret} }

// ObjFieldValue is the analyzer-facing mirror of vObjField/uObjField: Read
// is always present, Write is non-nil only for a mutable field.
type ObjFieldValue struct {
	Read  Value
	Write *Use
	Span  token.Span
}

func ObjValue(fields map[string]ObjFieldValue) vHead {
	out := make(map[string]vObjField, len(fields))
	for name, f := range fields {
		out[name] = vObjField{Read: f.Read, Write: f.Write, Span: f.Span}
	}
	return vObj{Fields: out}
}

// ObjUse builds a record use that only reads the named fields (record
// field access / destructuring).
func ObjUse(reads map[string]Use) uHead {
	out := make(map[string]uObjField, len(reads))
	for name, u := range reads {
		out[name] = uObjField{Read: u}
	}
	return uObj{Fields: out}
}

// ObjWriteUse builds a record use asserting only that one field accepts
// val on write; the read channel is left at top (no obligation) since a
// pure field-set expression never reads the field back.
func ObjWriteUse(field string, val Value) uHead {
	return uObj{Fields: map[string]uObjField{field: {Read: TopUse(), Write: &val}}}
}

func CaseValue(tag string, v Value) vHead { return vCase{Tag: tag, Value: v} }

// CaseUse builds a single-arm case use (the shape a `pattern` destructure
// needs against one specific tag, spec §6.2).
func CaseUse(tag string, u Use) uHead {
	return uCase{Cases: map[string]Use{tag: u}}
}

// CaseUseSet builds the full case use a match expression asserts: every
// handled tag plus an optional wildcard for the rest (spec §4.3 rule 7).
func CaseUseSet(cases map[string]Use, wildcard *Use) uHead {
	return uCase{Cases: cases, Wildcard: wildcard}
}

func PolyValue(kind ast.PolyKind, loc SourceLoc, params []PolyParam, body Value) vHead {
	return vPolyHead{Poly: &PolyHeadData{Kind: kind, Loc: loc, Params: params}, Body: body}
}

func PolyUse(kind ast.PolyKind, loc SourceLoc, params []PolyParam, body Use) uHead {
	return uPolyHead{Poly: &PolyHeadData{Kind: kind, Loc: loc, Params: params}, Body: body}
}
