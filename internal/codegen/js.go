// Package codegen lowers a type-checked PolySubML program into a small
// JavaScript expression tree and renders it to source text. Grounded on
// original_source/compiler_lib/src/js.rs: a closed algebra of JS
// expression constructors plus a precedence-aware printer, so the
// compiler never has to think about operator precedence while building
// the tree.
package codegen

import "strings"

// jsOp mirrors js.rs's Op: the binary operators the target language
// actually needs (PolySubML has no bitwise/shift surface syntax).
type jsOp int

const (
	opAdd jsOp = iota
	opSub
	opMul
	opDiv
	opRem
	opLt
	opLte
	opGt
	opGte
	opEq
	opNeq
)

var opText = map[jsOp]string{
	opAdd: " + ", opSub: " - ", opMul: " * ", opDiv: " / ", opRem: " % ",
	opLt: " < ", opLte: " <= ", opGt: " > ", opGte: " >= ",
	opEq: " === ", opNeq: " !== ",
}

// precedence follows JS's own grammar, tightest first; used only to decide
// where js.Expr needs parenthesizing, never emitted directly.
type precedence int

const (
	precPrimary precedence = iota
	precMember
	precCall
	precLHS
	precUnary
	precMultiplicative
	precAdditive
	precRelational
	precEquality
	precConditional
	precAssign
	precExpr
)

func binOpPrecedence(op jsOp) precedence {
	switch op {
	case opMul, opDiv, opRem:
		return precMultiplicative
	case opAdd, opSub:
		return precAdditive
	case opLt, opLte, opGt, opGte:
		return precRelational
	default:
		return precEquality
	}
}

// jsKind tags which constructor built an Expr, used by the printer.
type jsKind int

const (
	kParen jsKind = iota
	kLiteral
	kObj
	kVar
	kField
	kScopeField
	kCall
	kMinus
	kVoid
	kBinOp
	kTernary
	kAssign
	kArrowFunc
	kComma
	kPrintln
)

// objField is one `name: value` entry of an object literal.
type objField struct {
	Name string
	Val  *Expr
}

// Expr is a JS expression fragment. It is built exclusively through the
// constructor functions below, mirroring js.rs's free functions over a
// private Expr2 enum.
type Expr struct {
	kind jsKind

	lit     string
	name    string
	field   string
	scope1  string
	scope2  string
	op      jsOp
	sub     *Expr
	sub2    *Expr
	sub3    *Expr
	fields  []objField
	items   []*Expr
	keepRHS bool
}

func Lit(code string) *Expr                 { return &Expr{kind: kLiteral, lit: code} }
func Var(name string) *Expr                 { return &Expr{kind: kVar, name: name} }
func ScopeField(scope, name string) *Expr   { return &Expr{kind: kScopeField, scope1: scope, scope2: name} }
func Field(lhs *Expr, name string) *Expr    { return &Expr{kind: kField, sub: lhs, field: name} }
func Call(lhs, arg *Expr) *Expr             { return &Expr{kind: kCall, sub: lhs, sub2: arg} }
func UnaryMinus(e *Expr) *Expr              { return &Expr{kind: kMinus, sub: e} }
func Void() *Expr                           { return &Expr{kind: kVoid} }
func BinOp(lhs, rhs *Expr, op jsOp) *Expr   { return &Expr{kind: kBinOp, sub: lhs, sub2: rhs, op: op} }
func Eq(lhs, rhs *Expr) *Expr               { return BinOp(lhs, rhs, opEq) }
func Ternary(cond, a, b *Expr) *Expr        { return &Expr{kind: kTernary, sub: cond, sub2: a, sub3: b} }

// Assign builds `lhs = rhs`. keepIfUnused mirrors js.rs's third
// Assignment field (set for `let rec` bindings that close over each
// other); it is only recorded on the Expr, since this package has no
// dead-code pass that would read it.
func Assign(lhs, rhs *Expr, keepIfUnused bool) *Expr {
	return &Expr{kind: kAssign, sub: lhs, sub2: rhs, keepRHS: keepIfUnused}
}

func Func(arg *Expr, scopeArg string, body *Expr) *Expr {
	return &Expr{kind: kArrowFunc, sub: arg, scope1: scopeArg, sub2: body}
}

func Obj(fields []objField) *Expr { return &Expr{kind: kObj, fields: fields} }

func Println(args []*Expr) *Expr { return &Expr{kind: kPrintln, items: args} }

// CommaList flattens nested comma expressions and collapses to the bare
// expression (or `void 0`) when there is nothing to sequence.
func CommaList(exprs []*Expr) *Expr {
	var flat []*Expr
	for _, e := range exprs {
		if e.kind == kComma {
			flat = append(flat, e.items...)
		} else {
			flat = append(flat, e)
		}
	}
	switch len(flat) {
	case 0:
		return Void()
	case 1:
		return flat[0]
	default:
		return &Expr{kind: kComma, items: flat}
	}
}

// shouldInline reports whether an expr is cheap enough that a codegen
// temp-var binding can be skipped and it can be substituted directly
// (js.rs's Expr2::should_inline — short literals, bare names, scope
// field reads).
func (e *Expr) shouldInline() bool {
	switch e.kind {
	case kLiteral:
		return len(e.lit) <= 10
	case kMinus:
		return e.sub.shouldInline()
	case kScopeField, kVar:
		return true
	default:
		return false
	}
}

// ToSource renders the expression to JS source text, inserting
// parentheses wherever precedence demands it.
func (e *Expr) ToSource() string {
	clone := e.clone()
	clone.addParens()
	var sb strings.Builder
	clone.write(&sb)
	return sb.String()
}

func (e *Expr) clone() *Expr {
	if e == nil {
		return nil
	}
	c := *e
	c.sub, c.sub2, c.sub3 = e.sub.clone(), e.sub2.clone(), e.sub3.clone()
	if e.fields != nil {
		c.fields = make([]objField, len(e.fields))
		for i, f := range e.fields {
			c.fields[i] = objField{Name: f.Name, Val: f.Val.clone()}
		}
	}
	if e.items != nil {
		c.items = make([]*Expr, len(e.items))
		for i, it := range e.items {
			c.items[i] = it.clone()
		}
	}
	return &c
}

func (e *Expr) precedence() precedence {
	switch e.kind {
	case kParen, kLiteral, kObj, kVar:
		return precPrimary
	case kField, kScopeField:
		return precMember
	case kCall, kPrintln:
		return precCall
	case kMinus, kVoid:
		return precUnary
	case kBinOp:
		return binOpPrecedence(e.op)
	case kTernary:
		return precConditional
	case kAssign, kArrowFunc:
		return precAssign
	case kComma:
		return precExpr
	}
	return precPrimary
}

// tokKind is the "what does this expression start with" classifier
// js.rs needs to decide whether an arrow-func body must be parenthesized
// (a body starting with `{` would otherwise parse as a block).
type tokKind int

const (
	tokOther tokKind = iota
	tokBrace
	tokParen
)

func (e *Expr) first() tokKind {
	switch e.kind {
	case kParen:
		return tokParen
	case kObj:
		return tokBrace
	case kField, kCall, kBinOp, kAssign:
		return e.sub.first()
	case kArrowFunc:
		return tokParen
	case kComma:
		if len(e.items) == 0 {
			return tokOther
		}
		return e.items[0].first()
	default:
		return tokOther
	}
}

func (e *Expr) wrapInParens() {
	inner := *e
	*e = Expr{kind: kParen, sub: &inner}
}

func (e *Expr) ensure(required precedence) {
	if e.precedence() > required {
		e.wrapInParens()
	}
}

// addParens walks the tree once, deciding where parentheses are needed
// to preserve the intended grouping when printed with bare operators
// (js.rs's Expr2::add_parens).
func (e *Expr) addParens() {
	switch e.kind {
	case kParen:
		e.sub.addParens()
	case kObj:
		for _, f := range e.fields {
			f.Val.addParens()
			f.Val.ensure(precAssign)
		}
	case kField:
		e.sub.addParens()
		e.sub.ensure(precMember)
	case kCall:
		e.sub.addParens()
		e.sub.ensure(precMember)
		e.sub2.addParens()
		e.sub2.ensure(precAssign)
	case kMinus:
		e.sub.addParens()
		e.sub.ensure(precUnary)
	case kBinOp:
		lhsReq, rhsReq := binOpParenReq(e.op)
		e.sub.addParens()
		e.sub.ensure(lhsReq)
		e.sub2.addParens()
		e.sub2.ensure(rhsReq)
	case kTernary:
		e.sub.addParens()
		e.sub2.addParens()
		e.sub2.ensure(precAssign)
		e.sub3.addParens()
		e.sub3.ensure(precAssign)
	case kAssign:
		e.sub.addParens()
		e.sub.ensure(precLHS)
		e.sub2.addParens()
		e.sub2.ensure(precAssign)
	case kArrowFunc:
		e.sub.addParens()
		e.sub2.addParens()
		e.sub2.ensure(precAssign)
		if e.sub2.first() == tokBrace {
			e.sub2.wrapInParens()
		}
	case kComma:
		for _, it := range e.items {
			it.addParens()
		}
		for _, it := range e.items[1:] {
			it.ensure(precAssign)
		}
	case kPrintln:
		for _, it := range e.items {
			it.addParens()
			it.ensure(precPrimary)
		}
	}
}

func binOpParenReq(op jsOp) (lhs, rhs precedence) {
	switch op {
	case opMul, opDiv, opRem:
		return precMultiplicative, precUnary
	case opAdd, opSub:
		return precAdditive, precMultiplicative
	case opLt, opLte, opGt, opGte:
		return precRelational, precAdditive
	default: // Eq, Neq
		return precEquality, precRelational
	}
}

func (e *Expr) write(sb *strings.Builder) {
	switch e.kind {
	case kParen:
		sb.WriteByte('(')
		e.sub.write(sb)
		sb.WriteByte(')')
	case kLiteral:
		sb.WriteString(e.lit)
	case kObj:
		sb.WriteByte('{')
		for i, f := range e.fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('\'')
			sb.WriteString(f.Name)
			sb.WriteString("': ")
			f.Val.write(sb)
		}
		sb.WriteByte('}')
	case kVar:
		sb.WriteString(e.name)
	case kField:
		e.sub.write(sb)
		sb.WriteByte('.')
		sb.WriteString(e.field)
	case kScopeField:
		sb.WriteString(e.scope1)
		sb.WriteByte('.')
		sb.WriteString(e.scope2)
	case kCall:
		e.sub.write(sb)
		sb.WriteByte('(')
		e.sub2.write(sb)
		sb.WriteByte(')')
	case kMinus:
		sb.WriteByte('-')
		e.sub.write(sb)
	case kVoid:
		sb.WriteString("void 0")
	case kBinOp:
		e.sub.write(sb)
		sb.WriteString(opText[e.op])
		e.sub2.write(sb)
	case kTernary:
		e.sub.write(sb)
		sb.WriteString(" ? ")
		e.sub2.write(sb)
		sb.WriteString(" : ")
		e.sub3.write(sb)
	case kAssign:
		e.sub.write(sb)
		sb.WriteString(" = ")
		e.sub2.write(sb)
	case kArrowFunc:
		sb.WriteByte('(')
		e.sub.write(sb)
		sb.WriteString(", ")
		sb.WriteString(e.scope1)
		sb.WriteString("={}) => ")
		e.sub2.write(sb)
	case kComma:
		for i, it := range e.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			it.write(sb)
		}
	case kPrintln:
		sb.WriteString("p.println(")
		for i, it := range e.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			it.write(sb)
		}
		sb.WriteByte(')')
	}
}
