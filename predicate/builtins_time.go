// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package predicate

import (
	"time"

	"github.com/modalitylabs/modality/contract"
	"github.com/modalitylabs/modality/model"
)

// currentTime implements spec §4.3: "if W is null (deterministic replay),
// time predicates read the timestamp of the block/certificate delivering C."
func currentTime(c *contract.Commit, clk Clock) time.Time {
	if clk != nil {
		return clk.Now()
	}
	return time.Unix(c.DeliveredAt, 0).UTC()
}

func resolveDeadline(a model.Arg, s contract.State) (time.Time, string, error) {
	v, arg, err := resolveComparand(a, s)
	if err != nil {
		return time.Time{}, arg, err
	}
	if v.Suffix == contract.SuffixDatetime || v.Suffix == contract.SuffixDate {
		return time.Unix(v.Time, 0).UTC(), arg, nil
	}
	// Literal deadline expressed as a unix-seconds numeric literal.
	return time.Unix(int64(v.Num), 0).UTC(), arg, nil
}

func evalTime(guard model.Predicate, c *contract.Commit, s contract.State, clk Clock) (bool, *Failure) {
	now := currentTime(c, clk)
	switch guard.Name {
	case "before":
		if len(guard.Args) != 1 {
			return fail("before", "", "expects one deadline argument")
		}
		deadline, arg, err := resolveDeadline(guard.Args[0], s)
		if err != nil {
			return fail("before", arg, err.Error())
		}
		// Half-open interval: "[after, before)" => before is exclusive.
		return boolResult("before", arg, now.Before(deadline), "now is not before deadline")
	case "after":
		if len(guard.Args) != 1 {
			return fail("after", "", "expects one deadline argument")
		}
		deadline, arg, err := resolveDeadline(guard.Args[0], s)
		if err != nil {
			return fail("after", arg, err.Error())
		}
		return boolResult("after", arg, !now.Before(deadline), "now is before deadline")
	case "timestamp_within":
		if len(guard.Args) != 2 {
			return fail("timestamp_within", "", "expects (start, end)")
		}
		start, arg, err := resolveDeadline(guard.Args[0], s)
		if err != nil {
			return fail("timestamp_within", arg, err.Error())
		}
		end, _, err := resolveDeadline(guard.Args[1], s)
		if err != nil {
			return fail("timestamp_within", arg, err.Error())
		}
		return boolResult("timestamp_within", arg, !now.Before(start) && now.Before(end), "now not within [start,end)")
	case "timestamp_near":
		if len(guard.Args) != 2 {
			return fail("timestamp_near", "", "expects (t, epsilon)")
		}
		t, arg, err := resolveDeadline(guard.Args[0], s)
		if err != nil {
			return fail("timestamp_near", arg, err.Error())
		}
		epsVal, _, err := resolveComparand(guard.Args[1], s)
		if err != nil {
			return fail("timestamp_near", arg, err.Error())
		}
		eps := time.Duration(epsVal.Num) * time.Second
		diff := now.Sub(t)
		if diff < 0 {
			diff = -diff
		}
		return boolResult("timestamp_near", arg, diff <= eps, "now not within epsilon of t")
	default:
		return fail(guard.Name, "", "unhandled time predicate")
	}
}
