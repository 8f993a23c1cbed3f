// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// PrintModel renders m back into model/rule surface syntax such that
// ParseModel(PrintModel(m)) reproduces m (spec §8 "Parse(Print(AST)) ==
// AST").
func PrintModel(m *Model) string {
	var b strings.Builder
	fmt.Fprintf(&b, "model %s {\n", m.Name)
	if len(m.States) > 0 {
		fmt.Fprintf(&b, "  states: %s\n", strings.Join(m.States, ", "))
	}
	if m.Initial != "" {
		fmt.Fprintf(&b, "  initial: %s\n", m.Initial)
	}
	if len(m.Terminal) > 0 {
		names := make([]string, 0, len(m.Terminal))
		for name := range m.Terminal {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "  terminal: %s\n", strings.Join(names, ", "))
	}
	for _, t := range m.Transitions {
		b.WriteString("  ")
		b.WriteString(printTransition(t))
		b.WriteByte('\n')
	}
	b.WriteString("}\n")
	return b.String()
}

func printTransition(t Transition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "transition %s - %s -> %s", t.From, t.Action, t.To)
	if len(t.Guards) > 0 {
		b.WriteString(" [")
		for i, g := range t.Guards {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(printPredicate(g, true))
		}
		b.WriteByte(']')
	}
	return b.String()
}

// PrintFormula renders f back into `rule Name { formula ... }` source such
// that ParseFormula(PrintFormula(f)) reproduces f's Expr (the Anchor field
// is set by admission, not parsed back from source, and is carried
// unchanged by the caller rather than round-tripped through text).
func PrintFormula(f *Formula) string {
	var b strings.Builder
	fmt.Fprintf(&b, "rule %s {\n", f.Name)
	fmt.Fprintf(&b, "  formula %s\n", printExpr(f.Expr))
	b.WriteString("}\n")
	return b.String()
}

// printExpr renders e as a syntax fragment that reparses to exactly e.
// Every binary operand is fully parenthesized so the result is immune to
// precedence ambiguity regardless of where it is embedded.
func printExpr(e FormulaExpr) string {
	switch v := e.(type) {
	case ExprTrue:
		return "true"
	case ExprFalse:
		return "false"
	case ExprProp:
		return printPredicate(v.Predicate, false)
	case ExprNot:
		return "!(" + printExpr(v.Expr) + ")"
	case ExprAnd:
		return "(" + printExpr(v.Left) + ") & (" + printExpr(v.Right) + ")"
	case ExprOr:
		return "(" + printExpr(v.Left) + ") | (" + printExpr(v.Right) + ")"
	case ExprImplies:
		return "(" + printExpr(v.Left) + ") -> (" + printExpr(v.Right) + ")"
	case ExprDiamond:
		return "<" + printGuards(v.Guards) + ">(" + printExpr(v.Expr) + ")"
	case ExprBox:
		return "[" + printGuards(v.Guards) + "](" + printExpr(v.Expr) + ")"
	case ExprDiamondBox:
		return "[<" + printGuards(v.Guards) + ">](" + printExpr(v.Expr) + ")"
	case ExprLfp:
		return "lfp(" + v.Var + ", " + printExpr(v.Expr) + ")"
	case ExprGfp:
		return "gfp(" + v.Var + ", " + printExpr(v.Expr) + ")"
	case ExprVar:
		return v.Name
	default:
		return ""
	}
}

func printGuards(guards []Predicate) string {
	parts := make([]string, len(guards))
	for i, g := range guards {
		parts[i] = printPredicate(g, true)
	}
	return strings.Join(parts, " ")
}

// printPredicate renders a predicate call. withSign controls whether the
// leading +/- is emitted: guard-position predicates always carry an
// explicit sign; formula-level propositions (ExprProp) never do (spec
// §4.2 grammar has no sign at that position).
func printPredicate(p Predicate, withSign bool) string {
	var b strings.Builder
	if withSign {
		if p.Positive {
			b.WriteByte('+')
		} else {
			b.WriteByte('-')
		}
	}
	b.WriteString(p.Name)
	if len(p.Args) > 0 {
		b.WriteByte('(')
		for i, a := range p.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(printArg(a))
		}
		b.WriteByte(')')
	}
	return b.String()
}

func printArg(a Arg) string {
	switch a.Kind {
	case ArgPath, ArgTemplatePath:
		return a.Path
	default:
		return printLiteral(a.Literal)
	}
}

// printLiteral reproduces the token class the lexer will reassign: numbers
// and true/false print bare, everything else is quoted as a string.
func printLiteral(lit string) string {
	if lit == "true" || lit == "false" {
		return lit
	}
	if _, err := strconv.ParseFloat(lit, 64); err == nil {
		return lit
	}
	escaped := strings.ReplaceAll(lit, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}
