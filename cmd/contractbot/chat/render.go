package chat

import (
	"fmt"
	"slices"
	"strings"

	"contractbot/internal/dialogue"
	"contractbot/internal/processors"
	"contractbot/internal/session"
)

// RenderMarkdown formats a turn response as markdown for terminal display.
func RenderMarkdown(r *dialogue.Response) string {
	if r == nil {
		return ""
	}
	var sb strings.Builder

	if r.Data.Notice != "" {
		fmt.Fprintf(&sb, "_%s_\n\n", r.Data.Notice)
	}
	if r.Data.Message != "" {
		sb.WriteString(r.Data.Message)
		sb.WriteString("\n\n")
	}

	for _, e := range r.Errors {
		marker := "ℹ"
		switch e.Severity {
		case processors.SeverityError:
			marker = "✗"
		case processors.SeverityWarning:
			marker = "⚠"
		}
		if e.Field != "" {
			fmt.Fprintf(&sb, "%s **%s** (%s): %s\n", marker, e.Code, e.Field, e.Message)
		} else {
			fmt.Fprintf(&sb, "%s **%s**: %s\n", marker, e.Code, e.Message)
		}
	}
	if len(r.Errors) > 0 {
		sb.WriteString("\n")
	}

	if len(r.Data.Collected) > 0 && r.Data.Result == nil {
		writeValues(&sb, "Collected so far", r.Data.Collected, r.Data.Remaining)
	}
	if r.Data.Result != nil {
		writeValues(&sb, "Created", r.Data.Result, nil)
	}

	if len(r.Data.Choices) > 0 {
		for _, c := range r.Data.Choices {
			fmt.Fprintf(&sb, "%d. %s\n", c.Number, c.Label)
		}
		sb.WriteString("\n")
	}

	if r.Data.Phase == "" || r.Data.Phase == session.PhaseNotStarted {
		writeQuery(&sb, r)
	}

	if r.Data.Prompt != "" && !strings.Contains(r.Data.Message, r.Data.Prompt) {
		sb.WriteString(r.Data.Prompt)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func writeValues(sb *strings.Builder, title string, values map[string]string, remaining []string) {
	fmt.Fprintf(sb, "**%s**\n\n| Field | Value |\n|---|---|\n", title)
	for _, k := range sortedKeys(values) {
		fmt.Fprintf(sb, "| %s | %s |\n", k, escapeCell(values[k]))
	}
	sb.WriteString("\n")
	if len(remaining) > 0 {
		fmt.Fprintf(sb, "Still needed: %s\n\n", strings.Join(remaining, ", "))
	}
}

func writeQuery(sb *strings.Builder, r *dialogue.Response) {
	if r.Metadata.QueryType == "" {
		return
	}
	fmt.Fprintf(sb, "`%s` / `%s`\n\n", r.Metadata.QueryType, r.Metadata.ActionType)
	if len(r.Filters) > 0 {
		sb.WriteString("| Column | Op | Value |\n|---|---|---|\n")
		for _, f := range r.Filters {
			fmt.Fprintf(sb, "| %s | %s | %s |\n", f.Column, f.Operation, escapeCell(f.Value))
		}
		sb.WriteString("\n")
	}
	if len(r.DisplayFields) > 0 {
		fmt.Fprintf(sb, "Columns: %s\n\n", strings.Join(r.DisplayFields, ", "))
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
