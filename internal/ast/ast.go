// Package ast defines the surface syntax tree consumed by the analyzer.
// Its shape follows spec.md §6.2 exactly; it carries no type information
// of its own — the analyzer keeps inferred types in a side table keyed by
// Node (see internal/analyzer.Analyzer.TypeMap), the way funvibe/funxy's
// Analyzer keeps a `TypeMap map[ast.Node]typesystem.Type` instead of
// annotating nodes in place.
package ast

import "github.com/polysubml/polysubml/internal/token"

// Node is the base interface implemented by every AST node.
type Node interface {
	GetToken() token.Token
}

// Statement is a top-level or block-level statement.
type Statement interface {
	Node
	statementNode()
}

// Expression is any PolySubML expression.
type Expression interface {
	Node
	expressionNode()
}

// Program is the root of one parsed source file/top-level script.
type Program struct {
	Statements []Statement
}

func (p *Program) GetToken() token.Token {
	if len(p.Statements) > 0 {
		return p.Statements[0].GetToken()
	}
	return token.Token{}
}

// ---- Statements (spec §6.2) ----

type EmptyStatement struct{ Token token.Token }

func (s *EmptyStatement) GetToken() token.Token { return s.Token }
func (s *EmptyStatement) statementNode()        {}

type ExprStatement struct {
	Token token.Token
	Expr  Expression
}

func (s *ExprStatement) GetToken() token.Token { return s.Token }
func (s *ExprStatement) statementNode()        {}

type LetDefStatement struct {
	Token   token.Token
	Pattern LetPattern
	Value   Expression
}

func (s *LetDefStatement) GetToken() token.Token { return s.Token }
func (s *LetDefStatement) statementNode()        {}

// LetRecBinding is one `name = fun ...` entry of a `let rec` group.
type LetRecBinding struct {
	Name  string
	Span  token.Span
	Value Expression // must be a *FuncDef, checked by the analyzer
}

type LetRecDefStatement struct {
	Token    token.Token
	Bindings []LetRecBinding
}

func (s *LetRecDefStatement) GetToken() token.Token { return s.Token }
func (s *LetRecDefStatement) statementNode()        {}

type PrintlnStatement struct {
	Token token.Token
	Args  []Expression
}

func (s *PrintlnStatement) GetToken() token.Token { return s.Token }
func (s *PrintlnStatement) statementNode()        {}

// ---- Patterns (spec §6.2 LetPattern) ----

// LetPattern is one of *CasePattern, *RecordPattern, *VarPattern.
type LetPattern interface {
	Node
	patternNode()
}

type CasePattern struct {
	Token   token.Token
	Tag     string
	TagSpan token.Span
	Sub     LetPattern
}

func (p *CasePattern) GetToken() token.Token { return p.Token }
func (p *CasePattern) patternNode()          {}

type RecordPatternField struct {
	Name string
	Span token.Span
	Sub  LetPattern
}

type RecordPattern struct {
	Token  token.Token
	Fields []RecordPatternField
}

func (p *RecordPattern) GetToken() token.Token { return p.Token }
func (p *RecordPattern) patternNode()          {}

type VarPattern struct {
	Token token.Token
	// Name is "_" for the wildcard pattern `_`.
	Name         string
	Span         token.Span
	TypeAnnot    TypeExpr // nil if absent
}

func (p *VarPattern) GetToken() token.Token { return p.Token }
func (p *VarPattern) patternNode()          {}

// ---- Expressions (spec §6.2) ----

type OperatorClass int

const (
	ClassBool OperatorClass = iota
	ClassFloat
	ClassInt
	ClassStr
)

// BinOp describes one infix operator's argument/result classing
// (INT_OP, FLOAT_OP, STR_OP, INT_CMP, FLOAT_CMP, ANY_CMP from spec §6.2).
type BinOp struct {
	Token    token.Token
	Op       string
	Left     Expression
	Right    Expression
	ArgClass *OperatorClass // nil means ANY_CMP (==, !=): no argument constraint
	RetClass OperatorClass
}

func (e *BinOp) GetToken() token.Token { return e.Token }
func (e *BinOp) expressionNode()       {}

type BlockExpr struct {
	Token      token.Token
	Statements []Statement // may be empty
	Result     Expression
}

func (e *BlockExpr) GetToken() token.Token { return e.Token }
func (e *BlockExpr) expressionNode()       {}

type CallExpr struct {
	Token    token.Token
	Function Expression
	Argument Expression
}

func (e *CallExpr) GetToken() token.Token { return e.Token }
func (e *CallExpr) expressionNode()       {}

type CaseExpr struct {
	Token   token.Token
	Tag     string
	TagSpan token.Span
	Value   Expression
}

func (e *CaseExpr) GetToken() token.Token { return e.Token }
func (e *CaseExpr) expressionNode()       {}

type FieldAccessExpr struct {
	Token     token.Token
	Target    Expression
	Field     string
	FieldSpan token.Span
}

func (e *FieldAccessExpr) GetToken() token.Token { return e.Token }
func (e *FieldAccessExpr) expressionNode()       {}

type FieldSetExpr struct {
	Token     token.Token
	Target    Expression
	Field     string
	FieldSpan token.Span
	Value     Expression
}

func (e *FieldSetExpr) GetToken() token.Token { return e.Token }
func (e *FieldSetExpr) expressionNode()       {}

type FuncDef struct {
	Token      token.Token
	TypeParams []FuncTypeParam
	Param      LetPattern
	ReturnType TypeExpr // nil if absent
	Body       Expression
}

// FuncTypeParam is a `forall`-bound type parameter declared directly on a
// function signature (sugar for a top-level Poly wrapping the function).
type FuncTypeParam struct {
	Name string
	Span token.Span
}

func (e *FuncDef) GetToken() token.Token { return e.Token }
func (e *FuncDef) expressionNode()       {}

type IfExpr struct {
	Token       token.Token
	Condition   Expression
	Consequence Expression
	Alternative Expression
}

func (e *IfExpr) GetToken() token.Token { return e.Token }
func (e *IfExpr) expressionNode()       {}

// InstantiateSourceKind distinguishes the two instantiation call forms for
// HoleSrc/diagnostics provenance.
type InstantiateSourceKind int

const (
	InstantiateExistKind InstantiateSourceKind = iota
	InstantiateUniKind
)

type TypeArg struct {
	Name string
	Expr TypeExpr
}

type InstantiateExistExpr struct {
	Token  token.Token
	Target Expression
	Args   []TypeArg
}

func (e *InstantiateExistExpr) GetToken() token.Token { return e.Token }
func (e *InstantiateExistExpr) expressionNode()       {}

type InstantiateUniExpr struct {
	Token  token.Token
	Target Expression
	Args   []TypeArg
}

func (e *InstantiateUniExpr) GetToken() token.Token { return e.Token }
func (e *InstantiateUniExpr) expressionNode()       {}

type LiteralKind int

const (
	LitBool LiteralKind = iota
	LitFloat
	LitInt
	LitStr
)

type LiteralExpr struct {
	Token  token.Token
	Kind   LiteralKind
	Lexeme string
}

func (e *LiteralExpr) GetToken() token.Token { return e.Token }
func (e *LiteralExpr) expressionNode()       {}

type LoopExpr struct {
	Token token.Token
	Body  Expression
}

func (e *LoopExpr) GetToken() token.Token { return e.Token }
func (e *LoopExpr) expressionNode()       {}

type MatchArm struct {
	Pattern LetPattern
	Span    token.Span
	Expr    Expression
}

type MatchExpr struct {
	Token token.Token
	Value Expression
	Arms  []MatchArm
}

func (e *MatchExpr) GetToken() token.Token { return e.Token }
func (e *MatchExpr) expressionNode()       {}

type RecordField struct {
	Name      string
	Span      token.Span
	Mutable   bool
	TypeAnnot TypeExpr // only meaningful/allowed for mutable fields
	Value     Expression
}

type RecordExpr struct {
	Token  token.Token
	Fields []RecordField
}

func (e *RecordExpr) GetToken() token.Token { return e.Token }
func (e *RecordExpr) expressionNode()       {}

type TypedExpr struct {
	Token token.Token
	Expr  Expression
	Type  TypeExpr
}

func (e *TypedExpr) GetToken() token.Token { return e.Token }
func (e *TypedExpr) expressionNode()       {}

type VariableExpr struct {
	Token token.Token
	Name  string
}

func (e *VariableExpr) GetToken() token.Token { return e.Token }
func (e *VariableExpr) expressionNode()       {}

// ---- Type expressions (spec §6.2) ----

// TypeExpr is one of the surface type-expression node kinds.
type TypeExpr interface {
	Node
	typeExprNode()
}

type BotType struct{ Token token.Token }

func (t *BotType) GetToken() token.Token { return t.Token }
func (t *BotType) typeExprNode()         {}

type TopType struct{ Token token.Token }

func (t *TopType) GetToken() token.Token { return t.Token }
func (t *TopType) typeExprNode()         {}

type HoleType struct{ Token token.Token }

func (t *HoleType) GetToken() token.Token { return t.Token }
func (t *HoleType) typeExprNode()         {}

type IdentType struct {
	Token token.Token
	Name  string
}

func (t *IdentType) GetToken() token.Token { return t.Token }
func (t *IdentType) typeExprNode()         {}

type FuncType struct {
	Token token.Token
	Arg   TypeExpr
	Ret   TypeExpr
}

func (t *FuncType) GetToken() token.Token { return t.Token }
func (t *FuncType) typeExprNode()         {}

type RecordTypeField struct {
	Name    string
	Span    token.Span
	Mutable bool
	Type    TypeExpr
}

type RecordType struct {
	Token  token.Token
	Fields []RecordTypeField
}

func (t *RecordType) GetToken() token.Token { return t.Token }
func (t *RecordType) typeExprNode()         {}

type CaseTypeArm struct {
	Tag  string
	Span token.Span
	Type TypeExpr // nil for a bare tag (unit payload)
}

type CaseType struct {
	Token    token.Token
	Arms     []CaseTypeArm
	Wildcard TypeExpr // nil if absent
}

func (t *CaseType) GetToken() token.Token { return t.Token }
func (t *CaseType) typeExprNode()         {}

type PolyKind int

const (
	PolyUniversal PolyKind = iota
	PolyExistential
)

type PolyType struct {
	Token  token.Token
	Kind   PolyKind
	Params []FuncTypeParam
	Body   TypeExpr
}

func (t *PolyType) GetToken() token.Token { return t.Token }
func (t *PolyType) typeExprNode()         {}

type JoinKind int

const (
	JoinUnion JoinKind = iota
	JoinIntersect
)

type VarJoinType struct {
	Token    token.Token
	Kind     JoinKind
	Children []TypeExpr
}

func (t *VarJoinType) GetToken() token.Token { return t.Token }
func (t *VarJoinType) typeExprNode()         {}

// RecursiveDefType names a recursive type binder; the surface syntax is
// out of spec.md's worked detail, so this node is kept minimal: a name
// bound over a body that may refer to itself by that name via IdentType.
type RecursiveDefType struct {
	Token token.Token
	Name  string
	Body  TypeExpr
}

func (t *RecursiveDefType) GetToken() token.Token { return t.Token }
func (t *RecursiveDefType) typeExprNode()         {}
