package coreloop

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCriteriaEmpty(t *testing.T) {
	criteria, err := ParseCriteria("")
	require.NoError(t, err)
	assert.Nil(t, criteria)
}

func TestParseCriteriaValid(t *testing.T) {
	criteria, err := ParseCriteria(`[{"criterion":"tests pass"},{"criterion":"docs updated","measurable":"doc diff present"}]`)
	require.NoError(t, err)
	require.Len(t, criteria, 2)
	assert.Equal(t, "tests pass", criteria[0].Criterion)
	assert.Equal(t, "doc diff present", criteria[1].Measurable)
}

func TestParseCriteriaRejectsTooMany(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < 11; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"criterion":"c"}`)
	}
	sb.WriteString("]")

	_, err := ParseCriteria(sb.String())
	assert.Error(t, err)
}

func TestParseCriteriaRejectsMalformedJSON(t *testing.T) {
	_, err := ParseCriteria(`not json`)
	assert.Error(t, err)
}

func TestParseCriteriaRejectsEmptyCriterionText(t *testing.T) {
	_, err := ParseCriteria(`[{"criterion":"  "}]`)
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	criteria, err := ParseCriteria(`[{"criterion":"a"},{"criterion":"b"}]`)
	require.NoError(t, err)

	raw, err := EncodeCriteria(criteria)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	decoded, err := DecodeCriteria(raw)
	require.NoError(t, err)
	assert.Equal(t, criteria, decoded)
}

func TestEncodeEmptyCriteriaIsEmptyString(t *testing.T) {
	raw, err := EncodeCriteria(nil)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestValidateAllPass(t *testing.T) {
	criteria, err := ParseCriteria(`[{"criterion":"tests pass"},{"criterion":"docs updated"}]`)
	require.NoError(t, err)

	report := Validate(criteria, map[string]bool{"tests pass": true, "docs updated": true})
	require.Len(t, report, 2)
	for _, r := range report {
		assert.Equal(t, "pass", r.Status)
	}
	assert.False(t, Unresolved(report))
}

func TestValidateOneFailBlocks(t *testing.T) {
	criteria, err := ParseCriteria(`[{"criterion":"tests pass"},{"criterion":"docs updated"}]`)
	require.NoError(t, err)

	report := Validate(criteria, map[string]bool{"tests pass": true, "docs updated": false})
	assert.True(t, Unresolved(report))
}

func TestValidateDefaultsToManual(t *testing.T) {
	criteria, err := ParseCriteria(`[{"criterion":"tests pass"}]`)
	require.NoError(t, err)

	report := Validate(criteria, nil)
	require.Len(t, report, 1)
	assert.Equal(t, "manual", report[0].Status)
	assert.True(t, Unresolved(report))
}
