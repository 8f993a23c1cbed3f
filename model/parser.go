// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package model

import (
	"strconv"
	"strings"
)

// parser is an LL(1) recursive-descent parser over the model/rule grammar
// (spec §4.2). Parse is a total function modulo ParseError.
type parser struct {
	lex  *lexer
	tok  token
	peek *token
}

func newParser(src string) (*parser, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	if p.peek != nil {
		p.tok = *p.peek
		p.peek = nil
		return nil
	}
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) lookahead() (token, error) {
	if p.peek == nil {
		t, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.peek = &t
	}
	return *p.peek, nil
}

func (p *parser) at(kind tokenKind, text string) bool {
	return p.tok.kind == kind && (text == "" || p.tok.text == text)
}

func (p *parser) expect(kind tokenKind, text string) (token, error) {
	if !p.at(kind, text) {
		return token{}, &ParseError{Pos: p.tok.pos, Found: p.tok.text, Expected: []string{text}}
	}
	t := p.tok
	if err := p.advance(); err != nil {
		return token{}, err
	}
	return t, nil
}

// ParseModel parses a `model Name { ... }` block.
func ParseModel(src string) (*Model, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	return p.parseModel()
}

// ParseFormula parses a `rule Name { formula ... }` block.
func ParseFormula(src string) (*Formula, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	return p.parseRule()
}

func (p *parser) parseModel() (*Model, error) {
	if _, err := p.expect(tokKeyword, "model"); err != nil {
		return nil, err
	}
	name, err := p.expect(tokIdent, "")
	if err != nil {
		return nil, &ParseError{Pos: p.tok.pos, Found: p.tok.text, Expected: []string{"model name"}}
	}
	if _, err := p.expect(tokPunct, "{"); err != nil {
		return nil, err
	}
	m := &Model{Name: name.text, Terminal: map[string]bool{}}
	for !p.at(tokPunct, "}") {
		if p.tok.kind == tokEOF {
			return nil, &ParseError{Pos: p.tok.pos, Message: "unexpected end of input inside model block"}
		}
		switch {
		case p.at(tokKeyword, "states"):
			if err := p.parseStatesDecl(m); err != nil {
				return nil, err
			}
		case p.at(tokKeyword, "initial"):
			if err := p.parseInitialDecl(m); err != nil {
				return nil, err
			}
		case p.at(tokKeyword, "terminal"):
			if err := p.parseTerminalDecl(m); err != nil {
				return nil, err
			}
		case p.at(tokKeyword, "transition"):
			t, err := p.parseTransition()
			if err != nil {
				return nil, err
			}
			m.Transitions = append(m.Transitions, t)
		default:
			return nil, &ParseError{Pos: p.tok.pos, Found: p.tok.text,
				Expected: []string{"states", "initial", "terminal", "transition", "}"}}
		}
	}
	if _, err := p.expect(tokPunct, "}"); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *parser) parseIdentList() ([]string, error) {
	var out []string
	for {
		id, err := p.expect(tokIdent, "")
		if err != nil {
			return nil, err
		}
		out = append(out, id.text)
		if p.at(tokPunct, ",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return out, nil
}

func (p *parser) parseStatesDecl(m *Model) error {
	if err := p.advance(); err != nil { // "states"
		return err
	}
	if _, err := p.expect(tokPunct, ":"); err != nil {
		return err
	}
	ids, err := p.parseIdentList()
	if err != nil {
		return err
	}
	m.States = append(m.States, ids...)
	return nil
}

func (p *parser) parseInitialDecl(m *Model) error {
	if err := p.advance(); err != nil {
		return err
	}
	if _, err := p.expect(tokPunct, ":"); err != nil {
		return err
	}
	id, err := p.expect(tokIdent, "")
	if err != nil {
		return err
	}
	m.Initial = id.text
	return nil
}

func (p *parser) parseTerminalDecl(m *Model) error {
	if err := p.advance(); err != nil {
		return err
	}
	if _, err := p.expect(tokPunct, ":"); err != nil {
		return err
	}
	ids, err := p.parseIdentList()
	if err != nil {
		return err
	}
	for _, id := range ids {
		m.Terminal[id] = true
	}
	return nil
}

func (p *parser) parseTransition() (Transition, error) {
	if err := p.advance(); err != nil { // "transition"
		return Transition{}, err
	}
	from, err := p.expect(tokIdent, "")
	if err != nil {
		return Transition{}, err
	}
	if _, err := p.expect(tokPunct, "-"); err != nil {
		return Transition{}, err
	}
	action, err := p.expect(tokIdent, "")
	if err != nil {
		return Transition{}, err
	}
	if _, err := p.expect(tokPunct, "->"); err != nil {
		return Transition{}, err
	}
	to, err := p.expect(tokIdent, "")
	if err != nil {
		return Transition{}, err
	}
	t := Transition{From: from.text, To: to.text, Action: action.text}
	if p.at(tokPunct, "[") {
		guards, err := p.parseGuardList()
		if err != nil {
			return Transition{}, err
		}
		t.Guards = guards
	}
	return t, nil
}

// parseGuardList parses `[ +pred(args) -pred(args) ... ]`, empty allowed.
func (p *parser) parseGuardList() ([]Predicate, error) {
	if _, err := p.expect(tokPunct, "["); err != nil {
		return nil, err
	}
	var out []Predicate
	for !p.at(tokPunct, "]") {
		pr, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	if _, err := p.expect(tokPunct, "]"); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) parsePredicate() (Predicate, error) {
	positive := true
	switch {
	case p.at(tokPunct, "+"):
		positive = true
		if err := p.advance(); err != nil {
			return Predicate{}, err
		}
	case p.at(tokPunct, "-"):
		positive = false
		if err := p.advance(); err != nil {
			return Predicate{}, err
		}
	default:
		return Predicate{}, &ParseError{Pos: p.tok.pos, Found: p.tok.text, Expected: []string{"+", "-"}}
	}
	name, err := p.expect(tokIdent, "")
	if err != nil {
		return Predicate{}, err
	}
	args, err := p.parseArgList()
	if err != nil {
		return Predicate{}, err
	}
	return Predicate{Positive: positive, Name: name.text, Args: args}, nil
}

func (p *parser) parseArgList() ([]Arg, error) {
	if !p.at(tokPunct, "(") {
		return nil, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var out []Arg
	for !p.at(tokPunct, ")") {
		a, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
		if p.at(tokPunct, ",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
	}
	if _, err := p.expect(tokPunct, ")"); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) parseArg() (Arg, error) {
	switch p.tok.kind {
	case tokPath:
		text := p.tok.text
		kind := ArgPath
		if strings.Contains(text, "{") {
			kind = ArgTemplatePath
		}
		if err := p.advance(); err != nil {
			return Arg{}, err
		}
		return Arg{Kind: kind, Path: text}, nil
	case tokNumber, tokString:
		text := p.tok.text
		if err := p.advance(); err != nil {
			return Arg{}, err
		}
		return Arg{Kind: ArgLiteral, Literal: text}, nil
	case tokKeyword:
		if p.tok.text == "true" || p.tok.text == "false" {
			text := p.tok.text
			if err := p.advance(); err != nil {
				return Arg{}, err
			}
			return Arg{Kind: ArgLiteral, Literal: text}, nil
		}
	}
	return Arg{}, &ParseError{Pos: p.tok.pos, Found: p.tok.text,
		Expected: []string{"path", "number", "string", "bool"}}
}

func (p *parser) parseRule() (*Formula, error) {
	if _, err := p.expect(tokKeyword, "rule"); err != nil {
		return nil, err
	}
	name, err := p.expect(tokIdent, "")
	if err != nil {
		return nil, err
	}
	f := &Formula{Name: name.text}
	if p.at(tokKeyword, "anchor") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokPunct, ":"); err != nil {
			return nil, err
		}
		anchor, err := p.expect(tokIdent, "")
		if err != nil {
			return nil, err
		}
		f.Anchor = anchor.text
	}
	if _, err := p.expect(tokPunct, "{"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokKeyword, "formula"); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	f.Expr = expr
	if _, err := p.expect(tokPunct, "}"); err != nil {
		return nil, err
	}
	return f, nil
}

// Operator precedence, low to high: <->, ->, |, &, ! (unary), atoms.
func (p *parser) parseExpr() (FormulaExpr, error) {
	return p.parseIff()
}

func (p *parser) parseIff() (FormulaExpr, error) {
	left, err := p.parseImplies()
	if err != nil {
		return nil, err
	}
	for p.at(tokPunct, "<->") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseImplies()
		if err != nil {
			return nil, err
		}
		left = ExprAnd{
			Left:  ExprImplies{Left: left, Right: right},
			Right: ExprImplies{Left: right, Right: left},
		}
	}
	return left, nil
}

func (p *parser) parseImplies() (FormulaExpr, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.at(tokPunct, "->") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseImplies() // right-associative
		if err != nil {
			return nil, err
		}
		return ExprImplies{Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *parser) parseOr() (FormulaExpr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(tokPunct, "|") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ExprOr{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (FormulaExpr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(tokPunct, "&") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ExprAnd{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (FormulaExpr, error) {
	if p.at(tokPunct, "!") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ExprNot{Expr: inner}, nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (FormulaExpr, error) {
	switch {
	case p.at(tokKeyword, "true"):
		return p.consumeAtom(ExprTrue{})
	case p.at(tokKeyword, "false"):
		return p.consumeAtom(ExprFalse{})
	case p.at(tokKeyword, "always"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseParenOrAtom()
		if err != nil {
			return nil, err
		}
		return Always(inner), nil
	case p.at(tokKeyword, "eventually"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseParenOrAtom()
		if err != nil {
			return nil, err
		}
		return Eventually(inner), nil
	case p.at(tokKeyword, "until"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokPunct, "("); err != nil {
			return nil, err
		}
		p1, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokPunct, ","); err != nil {
			return nil, err
		}
		p2, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokPunct, ")"); err != nil {
			return nil, err
		}
		return Until(p1, p2), nil
	case p.at(tokKeyword, "lfp"), p.at(tokKeyword, "gfp"):
		isLfp := p.tok.text == "lfp"
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokPunct, "("); err != nil {
			return nil, err
		}
		v, err := p.expect(tokIdent, "")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokPunct, ","); err != nil {
			return nil, err
		}
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokPunct, ")"); err != nil {
			return nil, err
		}
		if isLfp {
			return ExprLfp{Var: v.text, Expr: body}, nil
		}
		return ExprGfp{Var: v.text, Expr: body}, nil
	case p.at(tokPunct, "("):
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokPunct, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	case p.at(tokPunct, "<"):
		return p.parseDiamond()
	case p.at(tokPunct, "["):
		return p.parseBoxOrCommitted()
	case p.tok.kind == tokIdent:
		id := p.tok.text
		la, err := p.lookahead()
		if err != nil {
			return nil, err
		}
		if la.kind == tokPunct && la.text == "(" {
			pr, err := p.parsePredicateFromIdent(id)
			if err != nil {
				return nil, err
			}
			return ExprProp{Predicate: pr}, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ExprVar{Name: id}, nil
	default:
		return nil, &ParseError{Pos: p.tok.pos, Found: p.tok.text,
			Expected: []string{"true", "false", "always", "eventually", "until", "lfp", "gfp", "(", "<", "[", "identifier"}}
	}
}

func (p *parser) consumeAtom(e FormulaExpr) (FormulaExpr, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	return e, nil
}

// parsePredicateFromIdent parses `name(args...)` where name was already
// peeked (positive sign implicit; formula-level propositions have no sign).
func (p *parser) parsePredicateFromIdent(name string) (Predicate, error) {
	if err := p.advance(); err != nil { // consume ident
		return Predicate{}, err
	}
	args, err := p.parseArgList()
	if err != nil {
		return Predicate{}, err
	}
	return Predicate{Positive: true, Name: name, Args: args}, nil
}

func (p *parser) parseParenOrAtom() (FormulaExpr, error) {
	return p.parseUnary()
}

// parseDiamond parses `<guards> expr` for the diamond modality.
func (p *parser) parseDiamond() (FormulaExpr, error) {
	if _, err := p.expect(tokPunct, "<"); err != nil {
		return nil, err
	}
	var guards []Predicate
	for !p.at(tokPunct, ">") {
		pr, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		guards = append(guards, pr)
	}
	if _, err := p.expect(tokPunct, ">"); err != nil {
		return nil, err
	}
	inner, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return ExprDiamond{Guards: guards, Expr: inner}, nil
}

// parseBoxOrCommitted parses `[guards] expr` (box) or `[<+guards>] expr`
// (committed diamond-box, spec §4.4).
func (p *parser) parseBoxOrCommitted() (FormulaExpr, error) {
	if _, err := p.expect(tokPunct, "["); err != nil {
		return nil, err
	}
	committed := false
	if p.at(tokPunct, "<") {
		committed = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	var guards []Predicate
	for !p.at(tokPunct, "]") && !p.at(tokPunct, ">") {
		pr, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		guards = append(guards, pr)
	}
	if committed {
		if _, err := p.expect(tokPunct, ">"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokPunct, "]"); err != nil {
		return nil, err
	}
	inner, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if committed {
		return ExprDiamondBox{Guards: guards, Expr: inner}, nil
	}
	return ExprBox{Guards: guards, Expr: inner}, nil
}

// LiteralFloat parses an Arg's literal text as a float64, for numeric
// comparison predicates.
func LiteralFloat(a Arg) (float64, bool) {
	if a.Kind != ArgLiteral {
		return 0, false
	}
	f, err := strconv.ParseFloat(a.Literal, 64)
	return f, err == nil
}
