package quality

import (
	"fmt"
	"math"
	"strings"

	"github.com/mlenz/stockpipe/internal/model"
	"github.com/mlenz/stockpipe/internal/partition"
)

// Violation rules.
const (
	RuleMissingColumn = "missing_column"
	RuleTypeMismatch  = "type_mismatch"
	RuleNullValue     = "null_value"
	RuleNonFinite     = "non_finite"
	RuleDuplicateKey  = "duplicate_key"
)

// Violation is one failed check.
type Violation struct {
	Column string
	Rule   string
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s (%s)", v.Column, v.Rule, v.Detail)
}

// Result is the outcome of checking one partition.
type Result struct {
	Violations []Violation
}

// Passed reports whether the partition may be published.
func (r Result) Passed() bool {
	return len(r.Violations) == 0
}

// Err renders the violations as a single error, or nil when passed.
func (r Result) Err() error {
	if r.Passed() {
		return nil
	}
	parts := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		parts[i] = v.String()
	}
	return fmt.Errorf("quality gate: %s", strings.Join(parts, "; "))
}

// Check validates an enriched partition against the expected schema and
// value constraints. All checks run; nothing short-circuits.
func Check(p *partition.Enriched) Result {
	var res Result

	res.Violations = append(res.Violations, checkSchema(p.Columns)...)
	res.Violations = append(res.Violations, checkValues(p.Rows)...)
	res.Violations = append(res.Violations, checkDuplicates(p.Rows)...)

	return res
}

// checkSchema verifies required columns exist with the expected physical
// types.
func checkSchema(actual []partition.Column) []Violation {
	byName := make(map[string]string, len(actual))
	for _, c := range actual {
		byName[c.Name] = c.Type
	}

	var out []Violation
	for _, want := range partition.EnrichedColumns() {
		got, ok := byName[want.Name]
		if !ok {
			out = append(out, Violation{
				Column: want.Name,
				Rule:   RuleMissingColumn,
				Detail: "required column absent",
			})
			continue
		}
		if got != want.Type {
			out = append(out, Violation{
				Column: want.Name,
				Rule:   RuleTypeMismatch,
				Detail: fmt.Sprintf("expected %s, found %s", want.Type, got),
			})
		}
	}
	return out
}

// checkValues enforces null constraints and rejects non-finite metrics.
// instrument and date must never be null; the metric columns may be null
// but a computed Inf/NaN means a divide-by-zero leaked through upstream.
func checkValues(rows []model.EnrichedRow) []Violation {
	var out []Violation
	for i, r := range rows {
		if r.Instrument == "" {
			out = append(out, Violation{
				Column: "instrument",
				Rule:   RuleNullValue,
				Detail: fmt.Sprintf("row %d", i),
			})
		}
		if r.Date.IsZero() {
			out = append(out, Violation{
				Column: "date",
				Rule:   RuleNullValue,
				Detail: fmt.Sprintf("row %d", i),
			})
		}
		if r.DailyReturn != nil && !isFinite(*r.DailyReturn) {
			out = append(out, Violation{
				Column: "daily_return",
				Rule:   RuleNonFinite,
				Detail: fmt.Sprintf("row %d: %v", i, *r.DailyReturn),
			})
		}
		if r.RollingVol != nil && !isFinite(*r.RollingVol) {
			out = append(out, Violation{
				Column: "rolling_vol",
				Rule:   RuleNonFinite,
				Detail: fmt.Sprintf("row %d: %v", i, *r.RollingVol),
			})
		}
	}
	return out
}

// checkDuplicates re-validates the merge engine's uniqueness invariant as
// defense in depth.
func checkDuplicates(rows []model.EnrichedRow) []Violation {
	seen := make(map[model.RowKey]bool, len(rows))
	var out []Violation
	for _, r := range rows {
		key := r.Key()
		if seen[key] {
			out = append(out, Violation{
				Column: "date",
				Rule:   RuleDuplicateKey,
				Detail: fmt.Sprintf("%s/%s", key.Instrument, key.Date.Format("2006-01-02")),
			})
		}
		seen[key] = true
	}
	return out
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
