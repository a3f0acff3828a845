package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorch/taskctl/pkg/types"
)

func sampleDetails() []types.TaskDetail {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	est := 4.0
	return []types.TaskDetail{
		{
			Task: types.Task{
				ID:             "abcd1234",
				Title:          "Ship the parser",
				Status:         types.StatusInProgress,
				Priority:       types.PriorityHigh,
				Assignee:       "alice",
				CreatedAt:      now,
				UpdatedAt:      now,
				Tags:           []string{"backend", "parser"},
				EstimatedHours: &est,
			},
			Deps:       []string{"base001"},
			Dependents: []string{"dep002"},
		},
	}
}

func TestRenderJSONRoundTripsObservableFields(t *testing.T) {
	data, hash, err := Render(FormatJSON, sampleDetails())
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	var out []jsonTask
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "abcd1234", out[0].ID)
	assert.Equal(t, []string{"base001"}, out[0].Deps)
	assert.Equal(t, 4.0, *out[0].EstimatedHours)
}

func TestRenderJSONEmptyListProducesEmptyArray(t *testing.T) {
	data, _, err := Render(FormatJSON, nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestRenderMarkdownGroupsByStatus(t *testing.T) {
	data, _, err := Render(FormatMarkdown, sampleDetails())
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, "## in_progress"))
	assert.True(t, strings.Contains(out, "Ship the parser"))
}

func TestRenderMarkdownEmptyListIsValid(t *testing.T) {
	data, _, err := Render(FormatMarkdown, nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), "No tasks")
}

func TestRenderCSVJoinsMultiValuedFieldsWithSemicolon(t *testing.T) {
	data, _, err := Render(FormatCSV, sampleDetails())
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, "backend;parser"))
	assert.True(t, strings.Contains(out, "base001"))
}

func TestRenderTSVUsesTabDelimiter(t *testing.T) {
	data, _, err := Render(FormatTSV, sampleDetails())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.Contains(lines[0], "\t"))
}

func TestRenderUnknownFormatErrors(t *testing.T) {
	_, _, err := Render(Format("yaml"), sampleDetails())
	assert.Error(t, err)
}

func TestRenderHashIsStableForSameContent(t *testing.T) {
	_, hash1, err := Render(FormatJSON, sampleDetails())
	require.NoError(t, err)
	_, hash2, err := Render(FormatJSON, sampleDetails())
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2)
}
