// Package model holds the records that flow through the content and image
// pipelines.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Canonical column names of the content plan worksheet.
const (
	ColumnContent     = "content"
	ColumnTargetGroup = "target_group"
	ColumnInstagram   = "instagram"
	ColumnLinkedIn    = "linkedin"
	ColumnProcessed   = "processed"
)

// ProcessedMark is the value written to the processed column once a row is done.
const ProcessedMark = "x"

// Row is one content plan record. Index is the 0-based data row position
// (header excluded) within the range the row was fetched from.
type Row struct {
	Index       int
	Content     string
	TargetGroup string
	Instagram   string
	LinkedIn    string
	Processed   bool
}

// NormalizeHeader maps a header cell to its canonical column name. Matching is
// case-insensitive and treats spaces and hyphens as underscores, so
// "Target Group", "target group" and "target_group" all map to target_group.
func NormalizeHeader(h string) string {
	s := strings.ToLower(strings.TrimSpace(h))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	switch s {
	case "targetgroup", "target_audience", "audience":
		return ColumnTargetGroup
	case "linked_in":
		return ColumnLinkedIn
	case "topic":
		return ColumnContent
	}
	return s
}

// NormalizeHeaders returns the canonical names for a header row.
func NormalizeHeaders(header []any) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = NormalizeHeader(CellString(h))
	}
	return out
}

// RowFromCells builds a Row from a data row using normalized header names.
// Cells beyond the header width are ignored; missing cells read as empty.
func RowFromCells(index int, header []string, cells []any) Row {
	r := Row{Index: index}
	for i, name := range header {
		var v any
		if i < len(cells) {
			v = cells[i]
		}
		switch name {
		case ColumnContent:
			r.Content = strings.TrimSpace(CellString(v))
		case ColumnTargetGroup:
			r.TargetGroup = strings.TrimSpace(CellString(v))
		case ColumnInstagram:
			r.Instagram = CellString(v)
		case ColumnLinkedIn:
			r.LinkedIn = CellString(v)
		case ColumnProcessed:
			r.Processed = Truthy(v)
		}
	}
	return r
}

// CellString renders a worksheet cell value as text. Whole numbers are
// printed without a fractional part.
func CellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// Truthy reports whether a cell value counts as set. Empty strings, false,
// zero and nil are falsy.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return true
	}
}
