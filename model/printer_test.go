// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrintModelRoundTrips(t *testing.T) {
	src := `model Escrow {
  states: open, funded, released
  initial: open
  terminal: released
  transition open - fund -> funded [ +amount_gte(/amount.num, 100) ]
  transition funded - release -> released [ +signed_by(/buyer.id) -expired(/deadline.datetime) ]
}
`
	m, err := ParseModel(src)
	require.NoError(t, err)

	reparsed, err := ParseModel(PrintModel(m))
	require.NoError(t, err)
	require.Equal(t, m, reparsed)
}

func TestPrintModelRoundTripsWithNoGuardsOrTerminal(t *testing.T) {
	src := `model Simple {
  states: a, b
  initial: a
  transition a - go -> b
}
`
	m, err := ParseModel(src)
	require.NoError(t, err)

	reparsed, err := ParseModel(PrintModel(m))
	require.NoError(t, err)
	require.Equal(t, m, reparsed)
}

func TestPrintFormulaRoundTripsBooleanConnectives(t *testing.T) {
	src := `rule NoDoubleSpend {
  formula always (!(double_spent(/tx.hash)) -> eventually(settled(/tx.hash)))
}
`
	f, err := ParseFormula(src)
	require.NoError(t, err)

	reparsed, err := ParseFormula(PrintFormula(f))
	require.NoError(t, err)
	require.Equal(t, f.Expr, reparsed.Expr)
}

func TestPrintFormulaRoundTripsModalOperators(t *testing.T) {
	src := `rule EventualRelease {
  formula <+released(/state.text)> true & [+funded(/state.text)] eventually(released(/state.text))
}
`
	f, err := ParseFormula(src)
	require.NoError(t, err)

	reparsed, err := ParseFormula(PrintFormula(f))
	require.NoError(t, err)
	require.Equal(t, f.Expr, reparsed.Expr)
}

func TestPrintFormulaRoundTripsCommittedBoxAndUntil(t *testing.T) {
	src := `rule Committed {
  formula until(pending(/state.text), [<+released(/state.text)>] true)
}
`
	f, err := ParseFormula(src)
	require.NoError(t, err)

	reparsed, err := ParseFormula(PrintFormula(f))
	require.NoError(t, err)
	require.Equal(t, f.Expr, reparsed.Expr)
}

func TestPrintLiteralQuotesNonNumericArgs(t *testing.T) {
	require.Equal(t, "true", printLiteral("true"))
	require.Equal(t, "42", printLiteral("42"))
	require.Equal(t, "3.14", printLiteral("3.14"))
	require.Equal(t, `"hello"`, printLiteral("hello"))
	require.Equal(t, `"with \"quotes\""`, printLiteral(`with "quotes"`))
}
