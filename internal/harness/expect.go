package harness

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/ffquery/internal/engine"
	"github.com/roach88/ffquery/internal/ir"
)

// checkExpect compares a step result against its expectations and returns
// one message per mismatch.
func checkExpect(exp Expect, sr StepResult) []string {
	var errs []string

	if exp.Error != sr.Error {
		if sr.Error == "" {
			errs = append(errs, fmt.Sprintf("expected error %s, step succeeded", exp.Error))
		} else {
			errs = append(errs, fmt.Sprintf("unexpected error %s", sr.Error))
		}
		return errs
	}
	if sr.Error != "" {
		return nil
	}

	if exp.IDs != nil && !slices.Equal(exp.IDs, sr.IDs) {
		errs = append(errs, fmt.Sprintf("ids: expected %v, got %v", exp.IDs, sr.IDs))
	}
	if exp.Empty && (len(sr.IDs) > 0 || len(sr.Groups) > 0) {
		errs = append(errs, fmt.Sprintf("expected no rows, got ids %v groups %v", sr.IDs, sr.Groups))
	}
	if exp.Count != nil && (sr.Count == nil || *exp.Count != *sr.Count) {
		got := "none"
		if sr.Count != nil {
			got = strconv.FormatInt(*sr.Count, 10)
		}
		errs = append(errs, fmt.Sprintf("count: expected %d, got %s", *exp.Count, got))
	}
	if exp.Groups != nil && !slices.Equal(exp.Groups, sr.Groups) {
		errs = append(errs, fmt.Sprintf("groups: expected %v, got %v", exp.Groups, sr.Groups))
	}
	for _, label := range exp.Absent {
		for _, g := range sr.Groups {
			if groupLabel(g) == label {
				errs = append(errs, fmt.Sprintf("group %q should be absent", label))
			}
		}
	}
	return errs
}

// groupLabel strips the "=count" suffix of a rendered group.
func groupLabel(group string) string {
	if i := strings.LastIndexByte(group, '='); i >= 0 {
		return group[:i]
	}
	return group
}

// GroupLabels renders aggregate groups as "label=count", in result order.
// Geography labels join the non-empty levels with " / ". An age range
// renders as "min-max" with "*" for an open bound.
func GroupLabels(r *engine.AggregateResult) []string {
	out := make([]string, 0, r.Len())
	for _, g := range r.Geography {
		var parts []string
		for _, v := range []string{g.Country, g.State, g.City} {
			if v != "" {
				parts = append(parts, v)
			}
		}
		out = append(out, fmt.Sprintf("%s=%d", strings.Join(parts, " / "), g.Count))
	}
	for _, f := range r.Facilities {
		out = append(out, fmt.Sprintf("%s=%d", f.Name, f.Count))
	}
	for _, d := range r.Descriptors {
		out = append(out, fmt.Sprintf("%s=%d", d.Name, d.Count))
	}
	for _, q := range r.Qualifiers {
		out = append(out, fmt.Sprintf("%s=%d", q.Name, q.Count))
	}
	if a := r.AgeRange; a != nil && a.Count > 0 {
		out = append(out, fmt.Sprintf("%s-%s=%d", ageBound(a.MinimumAge), ageBound(a.MaximumAge), a.Count))
	}
	return out
}

func ageBound(v *int) string {
	if v == nil {
		return "*"
	}
	return strconv.Itoa(*v)
}

// diffEntities reports the first position where two result lists disagree.
func diffEntities(want, got []ir.Entity) string {
	if len(want) != len(got) {
		return fmt.Sprintf("pages returned %d rows, unpaginated search %d", len(got), len(want))
	}
	for i := range want {
		if want[i].ID != got[i].ID {
			return fmt.Sprintf("row %d: pages returned id %d, unpaginated search %d", i, got[i].ID, want[i].ID)
		}
	}
	return ""
}
