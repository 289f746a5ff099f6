// Package parser is a hand-written recursive-descent parser over the
// lexer's token stream, producing an internal/ast.Program. It follows the
// same small-grammar-by-hand approach as the lexer rather than reaching
// for a parser generator, matching the scale of funvibe/funxy's own
// parser package.
package parser

import (
	"fmt"

	"github.com/polysubml/polysubml/internal/ast"
	"github.com/polysubml/polysubml/internal/diagnostics"
	"github.com/polysubml/polysubml/internal/lexer"
	"github.com/polysubml/polysubml/internal/token"
)

type Parser struct {
	lex  *lexer.Lexer
	cur  token.Token
	peek token.Token
}

func New(src token.SourceID, text string) (*Parser, *diagnostics.DiagnosticError) {
	p := &Parser{lex: lexer.New(src, text)}
	if err := p.prime(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) prime() *diagnostics.DiagnosticError {
	t1, err := p.lex.Next()
	if err != nil {
		return err
	}
	t2, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur, p.peek = t1, t2
	return nil
}

func (p *Parser) advance() *diagnostics.DiagnosticError {
	p.cur = p.peek
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.peek = t
	return nil
}

func (p *Parser) expect(k token.Kind, what string) (token.Token, *diagnostics.DiagnosticError) {
	if p.cur.Kind != k {
		return token.Token{}, p.errorf("expected %s, found %q", what, p.cur.Lexeme)
	}
	t := p.cur
	err := p.advance()
	return t, err
}

func (p *Parser) errorf(format string, args ...any) *diagnostics.DiagnosticError {
	return diagnostics.New(diagnostics.KindSyntaxError, p.cur.Span, fmt.Sprintf(format, args...))
}

// ParseProgram parses every statement up to EOF.
func (p *Parser) ParseProgram() (*ast.Program, *diagnostics.DiagnosticError) {
	prog := &ast.Program{}
	for p.cur.Kind != token.EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
	}
	return prog, nil
}

func (p *Parser) parseStatement() (ast.Statement, *diagnostics.DiagnosticError) {
	switch p.cur.Kind {
	case token.Semi:
		tok := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.EmptyStatement{Token: tok}, nil

	case token.KwLet:
		return p.parseLetStatement()

	case token.KwPrintln:
		tok := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.LParen, "'('"); err != nil {
			return nil, err
		}
		var args []ast.Expression
		for p.cur.Kind != token.RParen {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, e)
			if p.cur.Kind == token.Comma {
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
		}
		if _, err := p.expect(token.RParen, "')'"); err != nil {
			return nil, err
		}
		p.consumeSemi()
		return &ast.PrintlnStatement{Token: tok, Args: args}, nil

	default:
		tok := p.cur
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.consumeSemi()
		return &ast.ExprStatement{Token: tok, Expr: e}, nil
	}
}

func (p *Parser) consumeSemi() {
	if p.cur.Kind == token.Semi {
		p.advance()
	}
}

func (p *Parser) parseLetStatement() (ast.Statement, *diagnostics.DiagnosticError) {
	tok := p.cur
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Kind == token.KwRec {
		if err := p.advance(); err != nil {
			return nil, err
		}
		var bindings []ast.LetRecBinding
		for {
			name, err := p.expect(token.Ident, "a function name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Eq, "'='"); err != nil {
				return nil, err
			}
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			bindings = append(bindings, ast.LetRecBinding{Name: name.Lexeme, Span: name.Span, Value: val})
			if p.cur.Kind != token.KwRec {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		p.consumeSemi()
		return &ast.LetRecDefStatement{Token: tok, Bindings: bindings}, nil
	}

	pat, err := p.parsePattern()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Eq, "'='"); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.consumeSemi()
	return &ast.LetDefStatement{Token: tok, Pattern: pat, Value: val}, nil
}

// ---- Patterns ----

func (p *Parser) parsePattern() (ast.LetPattern, *diagnostics.DiagnosticError) {
	switch p.cur.Kind {
	case token.Backtick:
		tok := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		tagTok, err := p.expect(token.Ident, "a case tag")
		if err != nil {
			return nil, err
		}
		sub, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		return &ast.CasePattern{Token: tok, Tag: tagTok.Lexeme, TagSpan: tagTok.Span, Sub: sub}, nil

	case token.LBrace:
		tok := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		var fields []ast.RecordPatternField
		for p.cur.Kind != token.RBrace {
			name, err := p.expect(token.Ident, "a field name")
			if err != nil {
				return nil, err
			}
			var sub ast.LetPattern
			if p.cur.Kind == token.Eq {
				p.advance()
				sub, err = p.parsePattern()
				if err != nil {
					return nil, err
				}
			}
			fields = append(fields, ast.RecordPatternField{Name: name.Lexeme, Span: name.Span, Sub: sub})
			if p.cur.Kind == token.Comma {
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
		}
		if _, err := p.expect(token.RBrace, "'}'"); err != nil {
			return nil, err
		}
		return &ast.RecordPattern{Token: tok, Fields: fields}, nil

	default:
		tok := p.cur
		name := ""
		if p.cur.Kind == token.Ident {
			name = p.cur.Lexeme
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else {
			if _, err := p.expect(token.Ident, "a pattern"); err != nil {
				return nil, err
			}
		}
		var annot ast.TypeExpr
		if p.cur.Kind == token.Colon {
			if err := p.advance(); err != nil {
				return nil, err
			}
			var err *diagnostics.DiagnosticError
			annot, err = p.parseTypeExpr()
			if err != nil {
				return nil, err
			}
		}
		return &ast.VarPattern{Token: tok, Name: name, Span: tok.Span, TypeAnnot: annot}, nil
	}
}

// ---- Expressions ----
//
// Precedence climbs: assignment-free PolySubML has no ternary/assignment
// operators, so the ladder is: ifelse/match/fun (whole-expression forms) >
// ||  > && > comparisons (==, !=, <, <=, >, >=) > + - > * / > postfix
// (call, field access/set, instantiate) > primary.

func (p *Parser) parseExpr() (ast.Expression, *diagnostics.DiagnosticError) {
	switch p.cur.Kind {
	case token.KwIf:
		return p.parseIf()
	case token.KwMatch:
		return p.parseMatch()
	case token.KwFun:
		return p.parseFun()
	case token.KwLoop:
		return p.parseLoop()
	default:
		return p.parseOrOr()
	}
}

func (p *Parser) parseIf() (ast.Expression, *diagnostics.DiagnosticError) {
	tok := p.cur
	p.advance()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KwThen, "'then'"); err != nil {
		return nil, err
	}
	cons, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KwElse, "'else'"); err != nil {
		return nil, err
	}
	alt, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.IfExpr{Token: tok, Condition: cond, Consequence: cons, Alternative: alt}, nil
}

func (p *Parser) parseLoop() (ast.Expression, *diagnostics.DiagnosticError) {
	tok := p.cur
	p.advance()
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.LoopExpr{Token: tok, Body: body}, nil
}

func (p *Parser) parseMatch() (ast.Expression, *diagnostics.DiagnosticError) {
	tok := p.cur
	p.advance()
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KwWith, "'with'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var arms []ast.MatchArm
	for p.cur.Kind != token.RBrace {
		if p.cur.Kind == token.Pipe {
			p.advance()
		}
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.FatArrow, "'=>'"); err != nil {
			return nil, err
		}
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		arms = append(arms, ast.MatchArm{Pattern: pat, Span: pat.GetToken().Span, Expr: body})
		if p.cur.Kind == token.Comma {
			p.advance()
		}
	}
	if _, err := p.expect(token.RBrace, "'}'"); err != nil {
		return nil, err
	}
	return &ast.MatchExpr{Token: tok, Value: val, Arms: arms}, nil
}

func (p *Parser) parseFun() (ast.Expression, *diagnostics.DiagnosticError) {
	tok := p.cur
	p.advance()
	var typeParams []ast.FuncTypeParam
	if p.cur.Kind == token.KwForall {
		p.advance()
		for p.cur.Kind == token.Ident {
			typeParams = append(typeParams, ast.FuncTypeParam{Name: p.cur.Lexeme, Span: p.cur.Span})
			p.advance()
		}
		if _, err := p.expect(token.Comma, "','"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.LParen, "'('"); err != nil {
		return nil, err
	}
	param, err := p.parsePattern()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen, "')'"); err != nil {
		return nil, err
	}
	var ret ast.TypeExpr
	if p.cur.Kind == token.Arrow {
		p.advance()
		ret, err = p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.FatArrow, "'=>'"); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDef{Token: tok, TypeParams: typeParams, Param: param, ReturnType: ret, Body: body}, nil
}

type binOpSpec struct {
	op       string
	kind     token.Kind
	argClass *ast.OperatorClass
	retClass ast.OperatorClass
}

func cls(c ast.OperatorClass) *ast.OperatorClass { return &c }

var compareOps = []binOpSpec{
	{"==", token.EqEq, nil, ast.ClassBool},
	{"!=", token.NotEq, nil, ast.ClassBool},
	{"<", token.Lt, cls(ast.ClassInt), ast.ClassBool},
	{"<=", token.Le, cls(ast.ClassInt), ast.ClassBool},
	{">", token.Gt, cls(ast.ClassInt), ast.ClassBool},
	{">=", token.Ge, cls(ast.ClassInt), ast.ClassBool},
}

func (p *Parser) parseOrOr() (ast.Expression, *diagnostics.DiagnosticError) {
	left, err := p.parseAndAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.OrOr {
		tok := p.cur
		p.advance()
		right, err := p.parseAndAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Token: tok, Op: "||", Left: left, Right: right, ArgClass: cls(ast.ClassBool), RetClass: ast.ClassBool}
	}
	return left, nil
}

func (p *Parser) parseAndAnd() (ast.Expression, *diagnostics.DiagnosticError) {
	left, err := p.parseCompare()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.AndAnd {
		tok := p.cur
		p.advance()
		right, err := p.parseCompare()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Token: tok, Op: "&&", Left: left, Right: right, ArgClass: cls(ast.ClassBool), RetClass: ast.ClassBool}
	}
	return left, nil
}

func (p *Parser) parseCompare() (ast.Expression, *diagnostics.DiagnosticError) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	for _, spec := range compareOps {
		if p.cur.Kind == spec.kind {
			tok := p.cur
			p.advance()
			right, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			return &ast.BinOp{Token: tok, Op: spec.op, Left: left, Right: right, ArgClass: spec.argClass, RetClass: spec.retClass}, nil
		}
	}
	return left, nil
}

func (p *Parser) parseAdd() (ast.Expression, *diagnostics.DiagnosticError) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.Plus || p.cur.Kind == token.Minus {
		tok := p.cur
		op := "+"
		if tok.Kind == token.Minus {
			op = "-"
		}
		p.advance()
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Token: tok, Op: op, Left: left, Right: right, ArgClass: cls(ast.ClassInt), RetClass: ast.ClassInt}
	}
	return left, nil
}

func (p *Parser) parseMul() (ast.Expression, *diagnostics.DiagnosticError) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == token.Star || p.cur.Kind == token.Slash {
		tok := p.cur
		op := "*"
		if tok.Kind == token.Slash {
			op = "/"
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Token: tok, Op: op, Left: left, Right: right, ArgClass: cls(ast.ClassInt), RetClass: ast.ClassInt}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expression, *diagnostics.DiagnosticError) {
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expression, *diagnostics.DiagnosticError) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur.Kind {
		case token.Dot:
			tok := p.cur
			p.advance()
			field, err := p.expect(token.Ident, "a field name")
			if err != nil {
				return nil, err
			}
			if p.cur.Kind == token.LArrowSet {
				p.advance()
				val, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				e = &ast.FieldSetExpr{Token: tok, Target: e, Field: field.Lexeme, FieldSpan: field.Span, Value: val}
				continue
			}
			e = &ast.FieldAccessExpr{Token: tok, Target: e, Field: field.Lexeme, FieldSpan: field.Span}

		case token.LParen:
			tok := p.cur
			p.advance()
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RParen, "')'"); err != nil {
				return nil, err
			}
			e = &ast.CallExpr{Token: tok, Function: e, Argument: arg}

		case token.ColonGt, token.ColonLt:
			isUni := p.cur.Kind == token.ColonGt
			tok := p.cur
			p.advance()
			args, err := p.parseTypeArgs()
			if err != nil {
				return nil, err
			}
			if isUni {
				e = &ast.InstantiateUniExpr{Token: tok, Target: e, Args: args}
			} else {
				e = &ast.InstantiateExistExpr{Token: tok, Target: e, Args: args}
			}

		case token.Colon:
			tok := p.cur
			p.advance()
			t, err := p.parseTypeExpr()
			if err != nil {
				return nil, err
			}
			e = &ast.TypedExpr{Token: tok, Expr: e, Type: t}

		default:
			return e, nil
		}
	}
}

func (p *Parser) parseTypeArgs() ([]ast.TypeArg, *diagnostics.DiagnosticError) {
	if _, err := p.expect(token.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var args []ast.TypeArg
	for p.cur.Kind != token.RBrace {
		name, err := p.expect(token.Ident, "a type parameter name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Eq, "'='"); err != nil {
			return nil, err
		}
		t, err := p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, ast.TypeArg{Name: name.Lexeme, Expr: t})
		if p.cur.Kind == token.Comma {
			p.advance()
		}
	}
	if _, err := p.expect(token.RBrace, "'}'"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parsePrimary() (ast.Expression, *diagnostics.DiagnosticError) {
	switch p.cur.Kind {
	case token.Int:
		tok := p.cur
		p.advance()
		return &ast.LiteralExpr{Token: tok, Kind: ast.LitInt, Lexeme: tok.Lexeme}, nil
	case token.Float:
		tok := p.cur
		p.advance()
		return &ast.LiteralExpr{Token: tok, Kind: ast.LitFloat, Lexeme: tok.Lexeme}, nil
	case token.String:
		tok := p.cur
		p.advance()
		return &ast.LiteralExpr{Token: tok, Kind: ast.LitStr, Lexeme: tok.Lexeme}, nil
	case token.Bool:
		tok := p.cur
		p.advance()
		return &ast.LiteralExpr{Token: tok, Kind: ast.LitBool, Lexeme: tok.Lexeme}, nil
	case token.Ident:
		tok := p.cur
		p.advance()
		return &ast.VariableExpr{Token: tok, Name: tok.Lexeme}, nil
	case token.Backtick:
		tok := p.cur
		p.advance()
		tagTok, err := p.expect(token.Ident, "a case tag")
		if err != nil {
			return nil, err
		}
		val, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		return &ast.CaseExpr{Token: tok, Tag: tagTok.Lexeme, TagSpan: tagTok.Span, Value: val}, nil
	case token.LParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case token.LBrace:
		return p.parseBlockOrRecord()
	default:
		return nil, p.errorf("unexpected token %q", p.cur.Lexeme)
	}
}

// parseBlockOrRecord disambiguates `{ stmt; stmt; result }` from
// `{ field = val, ... }` by looking one token past the opening brace: `mut`,
// or a bare identifier immediately followed by `=` or `:`, reads as a
// record field, anything else as a block. `{}` is the empty record.
func (p *Parser) parseBlockOrRecord() (ast.Expression, *diagnostics.DiagnosticError) {
	tok := p.cur
	p.advance()
	if p.cur.Kind == token.RBrace {
		p.advance()
		return &ast.RecordExpr{Token: tok}, nil
	}
	if p.looksLikeRecordField() {
		return p.finishRecord(tok)
	}
	return p.finishBlock(tok)
}

func (p *Parser) looksLikeRecordField() bool {
	if p.cur.Kind == token.KwMut {
		return true
	}
	return p.cur.Kind == token.Ident && (p.peek.Kind == token.Eq || p.peek.Kind == token.Colon)
}

func (p *Parser) finishRecord(tok token.Token) (ast.Expression, *diagnostics.DiagnosticError) {
	var fields []ast.RecordField
	for p.cur.Kind != token.RBrace {
		mutable := false
		if p.cur.Kind == token.KwMut {
			mutable = true
			p.advance()
		}
		name, err := p.expect(token.Ident, "a field name")
		if err != nil {
			return nil, err
		}
		var annot ast.TypeExpr
		if p.cur.Kind == token.Colon {
			p.advance()
			annot, err = p.parseTypeExpr()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(token.Eq, "'='"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.RecordField{Name: name.Lexeme, Span: name.Span, Mutable: mutable, TypeAnnot: annot, Value: val})
		if p.cur.Kind == token.Comma {
			p.advance()
		}
	}
	if _, err := p.expect(token.RBrace, "'}'"); err != nil {
		return nil, err
	}
	return &ast.RecordExpr{Token: tok, Fields: fields}, nil
}

func (p *Parser) finishBlock(tok token.Token) (ast.Expression, *diagnostics.DiagnosticError) {
	var stmts []ast.Statement
	var result ast.Expression
	for p.cur.Kind != token.RBrace {
		if p.cur.Kind == token.KwLet || p.cur.Kind == token.KwPrintln {
			stmt, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, stmt)
			continue
		}
		stmtTok := p.cur
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.cur.Kind == token.Semi {
			p.advance()
			stmts = append(stmts, &ast.ExprStatement{Token: stmtTok, Expr: e})
			continue
		}
		result = e
		break
	}
	if _, err := p.expect(token.RBrace, "'}'"); err != nil {
		return nil, err
	}
	return &ast.BlockExpr{Token: tok, Statements: stmts, Result: result}, nil
}

// ---- Type expressions ----

func (p *Parser) parseTypeExpr() (ast.TypeExpr, *diagnostics.DiagnosticError) {
	return p.parseTypeJoin()
}

func (p *Parser) parseTypeJoin() (ast.TypeExpr, *diagnostics.DiagnosticError) {
	left, err := p.parseTypeArrow()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == token.Pipe {
		tok := p.cur
		children := []ast.TypeExpr{left}
		for p.cur.Kind == token.Pipe {
			p.advance()
			next, err := p.parseTypeArrow()
			if err != nil {
				return nil, err
			}
			children = append(children, next)
		}
		return &ast.VarJoinType{Token: tok, Kind: ast.JoinUnion, Children: children}, nil
	}
	if p.cur.Kind == token.AndAnd {
		tok := p.cur
		children := []ast.TypeExpr{left}
		for p.cur.Kind == token.AndAnd {
			p.advance()
			next, err := p.parseTypeArrow()
			if err != nil {
				return nil, err
			}
			children = append(children, next)
		}
		return &ast.VarJoinType{Token: tok, Kind: ast.JoinIntersect, Children: children}, nil
	}
	return left, nil
}

func (p *Parser) parseTypeArrow() (ast.TypeExpr, *diagnostics.DiagnosticError) {
	left, err := p.parseTypePrimary()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == token.Arrow {
		tok := p.cur
		p.advance()
		right, err := p.parseTypeArrow()
		if err != nil {
			return nil, err
		}
		return &ast.FuncType{Token: tok, Arg: left, Ret: right}, nil
	}
	return left, nil
}

func (p *Parser) parseTypePrimary() (ast.TypeExpr, *diagnostics.DiagnosticError) {
	switch p.cur.Kind {
	case token.Ident:
		tok := p.cur
		if tok.Lexeme == "bot" {
			p.advance()
			return &ast.BotType{Token: tok}, nil
		}
		if tok.Lexeme == "top" {
			p.advance()
			return &ast.TopType{Token: tok}, nil
		}
		p.advance()
		return &ast.IdentType{Token: tok, Name: tok.Lexeme}, nil

	case token.Star:
		tok := p.cur
		p.advance()
		return &ast.HoleType{Token: tok}, nil

	case token.KwForall, token.KwExists:
		tok := p.cur
		kind := ast.PolyUniversal
		if p.cur.Kind == token.KwExists {
			kind = ast.PolyExistential
		}
		p.advance()
		var params []ast.FuncTypeParam
		for p.cur.Kind == token.Ident {
			params = append(params, ast.FuncTypeParam{Name: p.cur.Lexeme, Span: p.cur.Span})
			p.advance()
		}
		if _, err := p.expect(token.Comma, "','"); err != nil {
			return nil, err
		}
		body, err := p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
		return &ast.PolyType{Token: tok, Kind: kind, Params: params, Body: body}, nil

	case token.LParen:
		p.advance()
		t, err := p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen, "')'"); err != nil {
			return nil, err
		}
		return t, nil

	case token.LBrace:
		tok := p.cur
		p.advance()
		var fields []ast.RecordTypeField
		for p.cur.Kind != token.RBrace {
			mutable := false
			if p.cur.Kind == token.KwMut {
				mutable = true
				p.advance()
			}
			name, err := p.expect(token.Ident, "a field name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Colon, "':'"); err != nil {
				return nil, err
			}
			ty, err := p.parseTypeExpr()
			if err != nil {
				return nil, err
			}
			fields = append(fields, ast.RecordTypeField{Name: name.Lexeme, Span: name.Span, Mutable: mutable, Type: ty})
			if p.cur.Kind == token.Comma {
				p.advance()
			}
		}
		if _, err := p.expect(token.RBrace, "'}'"); err != nil {
			return nil, err
		}
		return &ast.RecordType{Token: tok, Fields: fields}, nil

	case token.Backtick:
		tok := p.cur
		var arms []ast.CaseTypeArm
		var wildcard ast.TypeExpr
		for p.cur.Kind == token.Backtick {
			p.advance()
			if p.cur.Kind == token.Star {
				p.advance()
				wildcard = &ast.TopType{Token: p.cur}
				break
			}
			tagTok, err := p.expect(token.Ident, "a case tag")
			if err != nil {
				return nil, err
			}
			var ty ast.TypeExpr
			if p.cur.Kind != token.Pipe && p.cur.Kind != token.RParen && p.cur.Kind != token.RBrace &&
				p.cur.Kind != token.Arrow && p.cur.Kind != token.Comma && p.cur.Kind != token.AndAnd {
				ty, err = p.parseTypePrimary()
				if err != nil {
					return nil, err
				}
			}
			arms = append(arms, ast.CaseTypeArm{Tag: tagTok.Lexeme, Span: tagTok.Span, Type: ty})
			if p.cur.Kind != token.Pipe {
				break
			}
			if p.peek.Kind != token.Backtick {
				break
			}
			p.advance()
		}
		return &ast.CaseType{Token: tok, Arms: arms, Wildcard: wildcard}, nil

	default:
		return nil, p.errorf("unexpected token %q in type expression", p.cur.Lexeme)
	}
}
