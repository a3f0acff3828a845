// Package coreloop implements the lightweight quality mechanisms layered on
// top of the task store: success-criteria validation, the progress log,
// feedback scores, and their aggregation into metrics. Every function here
// that reads or writes the store takes a Queryer so it can run standalone or
// inside a caller's transaction.
package coreloop

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/taskorch/taskctl/pkg/apperrors"
	"github.com/taskorch/taskctl/pkg/types"
)

// MaxCriteria and MaxCriterionLen bound the success-criteria array accepted
// on task creation.
const (
	MaxCriteria     = 10
	MaxCriterionLen = 500
)

// Queryer is satisfied by both *sql.DB and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ParseCriteria decodes and validates a success-criteria JSON array, as
// accepted by `add --criteria`. An empty or blank raw string yields a nil,
// empty slice: criteria are optional.
func ParseCriteria(raw string) ([]types.Criterion, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var criteria []types.Criterion
	if err := json.Unmarshal([]byte(raw), &criteria); err != nil {
		return nil, &apperrors.ValidationError{Field: "criteria", Reason: "not a valid JSON array: " + err.Error()}
	}
	if len(criteria) > MaxCriteria {
		return nil, &apperrors.ValidationError{Field: "criteria", Reason: "at most 10 entries allowed"}
	}
	for _, c := range criteria {
		if strings.TrimSpace(c.Criterion) == "" {
			return nil, &apperrors.ValidationError{Field: "criteria", Reason: "criterion text must not be empty"}
		}
		if len(c.Criterion) > MaxCriterionLen || len(c.Measurable) > MaxCriterionLen {
			return nil, &apperrors.ValidationError{Field: "criteria", Reason: "each criterion field must be at most 500 characters"}
		}
	}
	return criteria, nil
}

// EncodeCriteria serializes criteria for storage. Nil or empty yields an
// empty string rather than "null" or "[]", so the column reads as unset.
func EncodeCriteria(criteria []types.Criterion) (string, error) {
	if len(criteria) == 0 {
		return "", nil
	}
	b, err := json.Marshal(criteria)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeCriteria is the inverse of EncodeCriteria, tolerant of an empty
// string (no criteria stored).
func DecodeCriteria(raw string) ([]types.Criterion, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var criteria []types.Criterion
	if err := json.Unmarshal([]byte(raw), &criteria); err != nil {
		return nil, err
	}
	return criteria, nil
}

// Validate produces a per-criterion report. answers maps a criterion's text
// to the caller-supplied truthiness for it; a criterion absent from answers
// defaults to "manual" (requires confirmation the caller hasn't given yet).
func Validate(criteria []types.Criterion, answers map[string]bool) []types.CriterionReport {
	report := make([]types.CriterionReport, 0, len(criteria))
	for _, c := range criteria {
		answer, given := answers[c.Criterion]
		switch {
		case !given:
			report = append(report, types.CriterionReport{Criterion: c.Criterion, Status: "manual", Detail: "awaiting caller confirmation"})
		case answer:
			report = append(report, types.CriterionReport{Criterion: c.Criterion, Status: "pass"})
		default:
			report = append(report, types.CriterionReport{Criterion: c.Criterion, Status: "fail"})
		}
	}
	return report
}

// Unresolved reports whether any criterion in report is a fail or is still
// manual (unconfirmed). Either blocks completion unless the caller passes
// an explicit override.
func Unresolved(report []types.CriterionReport) bool {
	for _, r := range report {
		if r.Status == "fail" || r.Status == "manual" {
			return true
		}
	}
	return false
}
