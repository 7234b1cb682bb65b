// Package workbook reads and writes the content plan worksheet through the
// Graph workbook API.
package workbook

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/kalambet/susi/internal/graph"
	"github.com/kalambet/susi/internal/model"
)

// ErrColumnNotFound is returned when a write targets a column the header row lacks.
var ErrColumnNotFound = errors.New("column not found in header row")

// Workbook is one worksheet of an Excel file stored in OneDrive.
type Workbook struct {
	client *graph.Client
	path   string
	sheet  string
}

// New creates a Workbook for the file at path (drive-relative, e.g.
// /Documents/posts.xlsx) and the named worksheet.
func New(client *graph.Client, path, sheet string) *Workbook {
	return &Workbook{client: client, path: path, sheet: sheet}
}

type usedRange struct {
	Address string  `json:"address"`
	Values  [][]any `json:"values"`
}

func (w *Workbook) worksheetPath() string {
	name := url.PathEscape(strings.ReplaceAll(w.sheet, "'", "''"))
	return fmt.Sprintf("me/drive/root:%s:/workbook/worksheets('%s')", graph.PathSegment(w.path), name)
}

func (w *Workbook) usedRange(ctx context.Context) (usedRange, error) {
	var ur usedRange
	if err := w.client.GetJSON(ctx, w.worksheetPath()+"/usedRange?valuesOnly=true", &ur); err != nil {
		return usedRange{}, fmt.Errorf("reading worksheet %s: %w", w.sheet, err)
	}
	return ur, nil
}

// FetchUnprocessedRows returns every data row whose processed cell is falsy,
// in sheet order. Row.Index is the row's position among all data rows.
func (w *Workbook) FetchUnprocessedRows(ctx context.Context) ([]model.Row, error) {
	ur, err := w.usedRange(ctx)
	if err != nil {
		return nil, err
	}
	if len(ur.Values) < 2 {
		return nil, nil
	}
	header := model.NormalizeHeaders(ur.Values[0])
	var rows []model.Row
	for i, cells := range ur.Values[1:] {
		r := model.RowFromCells(i, header, cells)
		if !r.Processed {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// WriteCell sets one cell of data row rowIndex in the named column.
func (w *Workbook) WriteCell(ctx context.Context, rowIndex int, column, value string) error {
	ur, err := w.usedRange(ctx)
	if err != nil {
		return err
	}
	if len(ur.Values) == 0 {
		return fmt.Errorf("%w: %s (worksheet is empty)", ErrColumnNotFound, column)
	}
	col := -1
	for i, h := range model.NormalizeHeaders(ur.Values[0]) {
		if h == column {
			col = i
			break
		}
	}
	if col < 0 {
		return fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}

	originCol, originRow, err := parseOrigin(ur.Address)
	if err != nil {
		return err
	}
	addr := fmt.Sprintf("%s%d", ColumnLetters(originCol+col), originRow+1+rowIndex)
	body := map[string]any{"values": [][]string{{value}}}
	if err := w.client.PatchJSON(ctx, w.worksheetPath()+"/range(address='"+addr+"')", body, nil); err != nil {
		return fmt.Errorf("writing %s to %s: %w", column, addr, err)
	}
	return nil
}

// MarkProcessed writes the processed marker for data row rowIndex.
func (w *Workbook) MarkProcessed(ctx context.Context, rowIndex int) error {
	return w.WriteCell(ctx, rowIndex, model.ColumnProcessed, model.ProcessedMark)
}

// ColumnLetters converts a 0-based column number to its letter name: 0 is A,
// 25 is Z, 26 is AA.
func ColumnLetters(n int) string {
	var b []byte
	for n >= 0 {
		b = append([]byte{byte('A' + n%26)}, b...)
		n = n/26 - 1
	}
	return string(b)
}

// ColumnNumber is the inverse of ColumnLetters.
func ColumnNumber(letters string) (int, error) {
	if letters == "" {
		return 0, errors.New("empty column reference")
	}
	n := 0
	for _, r := range strings.ToUpper(letters) {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column reference %q", letters)
		}
		n = n*26 + int(r-'A') + 1
	}
	return n - 1, nil
}

// parseOrigin returns the 0-based column and 1-based row of the top-left cell
// of a range address such as "posts!B2:F10". An empty address means A1.
func parseOrigin(address string) (col, row int, err error) {
	if address == "" {
		return 0, 1, nil
	}
	ref := address
	if i := strings.LastIndex(ref, "!"); i >= 0 {
		ref = ref[i+1:]
	}
	if i := strings.Index(ref, ":"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.ReplaceAll(ref, "$", "")
	split := strings.IndexFunc(ref, unicode.IsDigit)
	if split <= 0 {
		return 0, 0, fmt.Errorf("invalid range address %q", address)
	}
	col, err = ColumnNumber(ref[:split])
	if err != nil {
		return 0, 0, err
	}
	row, err = strconv.Atoi(ref[split:])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range address %q: %w", address, err)
	}
	return col, row, nil
}
