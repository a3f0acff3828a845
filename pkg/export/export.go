// Package export renders the enumerable task view as JSON, Markdown, CSV,
// or TSV. Rendering is pure: given a slice of task details it produces
// bytes, with no knowledge of the store or how the list was filtered.
package export

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/taskorch/taskctl/pkg/types"
)

// Format selects the rendering produced by Render.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatTSV      Format = "tsv"
)

// Render produces the requested format over details, and returns a SHA-256
// hash of the emitted bytes alongside it so callers can detect an unchanged
// export without re-reading the full content.
func Render(format Format, details []types.TaskDetail) (data []byte, hash string, err error) {
	switch format {
	case FormatJSON:
		data, err = renderJSON(details)
	case FormatMarkdown:
		data, err = renderMarkdown(details)
	case FormatCSV:
		data, err = renderDelimited(details, ',')
	case FormatTSV:
		data, err = renderDelimited(details, '\t')
	default:
		return nil, "", fmt.Errorf("export: unknown format %q", format)
	}
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256(data)
	return data, fmt.Sprintf("%x", sum), nil
}

// jsonTask is the wire shape of one exported task: a flattened view of
// types.TaskDetail with all non-null fields, matching what show() returns
// internally but JSON-tagged for external consumption.
type jsonTask struct {
	ID                 string              `json:"id"`
	Title              string              `json:"title"`
	Description        string              `json:"description,omitempty"`
	Status             types.TaskStatus    `json:"status"`
	Priority           types.Priority      `json:"priority"`
	Assignee           string              `json:"assignee,omitempty"`
	CreatedAt          string              `json:"created_at"`
	UpdatedAt          string              `json:"updated_at"`
	Deps               []string            `json:"deps,omitempty"`
	Dependents         []string            `json:"dependents,omitempty"`
	FileRefs           []types.FileRef     `json:"file_refs,omitempty"`
	Tags               []string            `json:"tags,omitempty"`
	SuccessCriteria    []types.Criterion   `json:"success_criteria,omitempty"`
	Deadline           *string             `json:"deadline,omitempty"`
	EstimatedHours     *float64            `json:"estimated_hours,omitempty"`
	ActualHours        *float64            `json:"actual_hours,omitempty"`
	CompletionSummary  string              `json:"completion_summary,omitempty"`
	ReworkOf           string              `json:"rework_of,omitempty"`
	ReworkOfTitle      string              `json:"rework_of_title,omitempty"`
	CancelReason       string              `json:"cancel_reason,omitempty"`
	Progress           []types.ProgressEntry `json:"progress,omitempty"`
	Feedback           *types.Feedback     `json:"feedback,omitempty"`
}

func toJSONTask(d types.TaskDetail) jsonTask {
	t := d.Task
	jt := jsonTask{
		ID:                t.ID,
		Title:             t.Title,
		Description:       t.Description,
		Status:            t.Status,
		Priority:          t.Priority,
		Assignee:          t.Assignee,
		CreatedAt:         t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:         t.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Deps:              d.Deps,
		Dependents:        d.Dependents,
		FileRefs:          t.FileRefs,
		Tags:              t.Tags,
		SuccessCriteria:   t.SuccessCriteria,
		EstimatedHours:    t.EstimatedHours,
		ActualHours:       t.ActualHours,
		CompletionSummary: t.CompletionSummary,
		ReworkOf:          t.ReworkOf,
		ReworkOfTitle:     d.ReworkOfTitle,
		CancelReason:      t.CancelReason,
		Progress:          d.Progress,
		Feedback:          d.Feedback,
	}
	if t.Deadline != nil {
		s := t.Deadline.Format("2006-01-02T15:04:05Z07:00")
		jt.Deadline = &s
	}
	return jt
}

func renderJSON(details []types.TaskDetail) ([]byte, error) {
	out := make([]jsonTask, 0, len(details))
	for _, d := range details {
		out = append(out, toJSONTask(d))
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderMarkdown(details []types.TaskDetail) ([]byte, error) {
	grouped := make(map[types.TaskStatus][]types.TaskDetail)
	var order []types.TaskStatus
	for _, d := range details {
		if _, ok := grouped[d.Task.Status]; !ok {
			order = append(order, d.Task.Status)
		}
		grouped[d.Task.Status] = append(grouped[d.Task.Status], d)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	var b strings.Builder
	if len(details) == 0 {
		b.WriteString("# Tasks\n\nNo tasks.\n")
		return []byte(b.String()), nil
	}

	b.WriteString("# Tasks\n\n")
	for _, status := range order {
		b.WriteString(fmt.Sprintf("## %s\n\n", status))
		for _, d := range grouped[status] {
			t := d.Task
			b.WriteString(fmt.Sprintf("### %s (%s)\n\n", t.Title, t.ID))
			b.WriteString(fmt.Sprintf("- priority: %s\n", t.Priority))
			if t.Assignee != "" {
				b.WriteString(fmt.Sprintf("- assignee: %s\n", t.Assignee))
			}
			if len(d.Deps) > 0 {
				b.WriteString(fmt.Sprintf("- deps: %s\n", strings.Join(d.Deps, ", ")))
			}
			if len(t.Tags) > 0 {
				b.WriteString(fmt.Sprintf("- tags: %s\n", strings.Join(t.Tags, ", ")))
			}
			if t.Description != "" {
				b.WriteString(fmt.Sprintf("\n%s\n", t.Description))
			}
			b.WriteString("\n")
		}
	}
	return []byte(b.String()), nil
}

var delimitedColumns = []string{
	"id", "title", "status", "priority", "assignee", "created_at", "updated_at",
	"deps", "dependents", "tags", "estimated_hours", "actual_hours",
	"completion_summary", "rework_of",
}

func renderDelimited(details []types.TaskDetail, comma rune) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = comma

	if err := w.Write(delimitedColumns); err != nil {
		return nil, err
	}
	for _, d := range details {
		t := d.Task
		row := []string{
			t.ID,
			t.Title,
			string(t.Status),
			string(t.Priority),
			t.Assignee,
			t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			t.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
			strings.Join(d.Deps, ";"),
			strings.Join(d.Dependents, ";"),
			strings.Join(t.Tags, ";"),
			floatOrEmpty(t.EstimatedHours),
			floatOrEmpty(t.ActualHours),
			t.CompletionSummary,
			t.ReworkOf,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func floatOrEmpty(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
