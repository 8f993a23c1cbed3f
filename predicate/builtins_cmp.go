// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package predicate

import (
	"strings"

	"github.com/modalitylabs/modality/contract"
	"github.com/modalitylabs/modality/model"
)

func evalComparison(guard model.Predicate, s contract.State) (bool, *Failure) {
	if len(guard.Args) == 0 {
		return fail(guard.Name, "", "expects at least one argument")
	}
	lhs, lhsArg, err := ResolveArg(guard.Args[0], s)
	if err != nil {
		return fail(guard.Name, lhsArg, err.Error())
	}

	switch guard.Name {
	case "text_is_empty":
		if lhs.Text == "" {
			return ok()
		}
		return fail(guard.Name, lhsArg, "text is not empty")
	case "text_not_empty":
		if lhs.Text != "" {
			return ok()
		}
		return fail(guard.Name, lhsArg, "text is empty")
	case "bool_is_true":
		if lhs.Bool {
			return ok()
		}
		return fail(guard.Name, lhsArg, "value is false")
	case "bool_is_false":
		if !lhs.Bool {
			return ok()
		}
		return fail(guard.Name, lhsArg, "value is true")
	case "num_positive":
		if lhs.Num > 0 {
			return ok()
		}
		return fail(guard.Name, lhsArg, "value is not positive")
	case "num_negative":
		if lhs.Num < 0 {
			return ok()
		}
		return fail(guard.Name, lhsArg, "value is not negative")
	case "num_zero":
		if lhs.Num == 0 {
			return ok()
		}
		return fail(guard.Name, lhsArg, "value is not zero")
	}

	if len(guard.Args) < 2 {
		return fail(guard.Name, lhsArg, "expects a second argument")
	}
	rhs, rhsArg, err := resolveComparand(guard.Args[1], s)
	if err != nil {
		return fail(guard.Name, rhsArg, err.Error())
	}

	switch guard.Name {
	case "text_equals":
		return boolResult(guard.Name, lhsArg, lhs.Text == rhs.Text, "text differs")
	case "text_contains":
		return boolResult(guard.Name, lhsArg, strings.Contains(lhs.Text, rhs.Text), "text does not contain substring")
	case "text_starts_with":
		return boolResult(guard.Name, lhsArg, strings.HasPrefix(lhs.Text, rhs.Text), "text does not start with prefix")
	case "text_ends_with":
		return boolResult(guard.Name, lhsArg, strings.HasSuffix(lhs.Text, rhs.Text), "text does not end with suffix")
	case "text_length_eq":
		return boolResult(guard.Name, lhsArg, float64(len(lhs.Text)) == rhs.Num, "text length not equal")
	case "text_length_gt":
		return boolResult(guard.Name, lhsArg, float64(len(lhs.Text)) > rhs.Num, "text length not greater")
	case "text_length_lt":
		return boolResult(guard.Name, lhsArg, float64(len(lhs.Text)) < rhs.Num, "text length not lesser")
	case "bool_equals":
		return boolResult(guard.Name, lhsArg, lhs.Bool == rhs.Bool, "bool differs")
	case "num_eq":
		return boolResult(guard.Name, lhsArg, lhs.Num == rhs.Num, "not equal")
	case "num_gt":
		return boolResult(guard.Name, lhsArg, lhs.Num > rhs.Num, "not greater")
	case "num_lt":
		return boolResult(guard.Name, lhsArg, lhs.Num < rhs.Num, "not lesser")
	case "num_gte":
		return boolResult(guard.Name, lhsArg, lhs.Num >= rhs.Num, "not greater-or-equal")
	case "num_lte":
		return boolResult(guard.Name, lhsArg, lhs.Num <= rhs.Num, "not lesser-or-equal")
	case "num_between":
		if len(guard.Args) != 3 {
			return fail(guard.Name, lhsArg, "expects (path, low, high)")
		}
		hi, _, err := resolveComparand(guard.Args[2], s)
		if err != nil {
			return fail(guard.Name, lhsArg, err.Error())
		}
		return boolResult(guard.Name, lhsArg, lhs.Num >= rhs.Num && lhs.Num <= hi.Num, "not within range")
	default:
		return fail(guard.Name, lhsArg, "unhandled comparison predicate")
	}
}

func boolResult(name, arg string, cond bool, reason string) (bool, *Failure) {
	if cond {
		return ok()
	}
	return fail(name, arg, reason)
}

// resolveComparand resolves an argument that may be a literal (parsed as
// number/bool/text depending on destination) or a path reference.
func resolveComparand(a model.Arg, s contract.State) (contract.Value, string, error) {
	if a.Kind == model.ArgLiteral {
		if f, isNum := model.LiteralFloat(a); isNum {
			return contract.Value{Suffix: contract.SuffixNum, Num: f, Text: a.Literal,
				Bool: a.Literal == "true"}, a.Literal, nil
		}
		return contract.Value{Suffix: contract.SuffixText, Text: a.Literal, Bool: a.Literal == "true"}, a.Literal, nil
	}
	return ResolveArg(a, s)
}
