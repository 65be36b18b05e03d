package render

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/jwalitptl/labreport/internal/model"
)

const sheetName = "Report"

// buildXLSX writes the patient block and test table as a single sheet.
func buildXLSX(c model.ReportContent, lh Letterhead) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	st, err := newSheetStyles(f)
	if err != nil {
		return nil, err
	}

	w := &sheetWriter{f: f, row: 1}

	w.set(1, lh.Name, st.heading)
	w.merge(1, 4)
	w.row += 2

	if c.Patient != nil {
		for _, fld := range patientFields(c.Patient) {
			w.set(1, fld.Label, st.label)
			w.set(2, fld.Value, 0)
			w.row++
		}
		w.row++
	}

	if c.ReportName != "" {
		w.set(1, ReportTitle(c.ReportName), st.title)
		w.merge(1, 4)
		w.row += 2
	}

	if len(c.Tests) > 0 {
		for i, h := range TableColumns {
			w.set(i+1, h, st.head)
		}
		w.row++
		for _, t := range c.Tests {
			for i, v := range []string{t.Name, t.Result, t.Range, t.Unit} {
				w.set(i+1, v, st.cell)
			}
			w.row++
		}
	} else {
		w.set(1, PlaceholderText, 0)
		w.row++
	}

	if c.Options.Description != "" {
		w.row++
		w.set(1, "Description / Remarks:", st.label)
		w.row++
		w.set(1, c.Options.Description, st.wrap)
		w.merge(1, 4)
		w.row++
	}

	if w.err != nil {
		return nil, fmt.Errorf("failed to write sheet: %w", w.err)
	}

	for col, width := range map[string]float64{"A": 32, "B": 20, "C": 24, "D": 14} {
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to size columns: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

type sheetStyles struct {
	heading, title, label, head, cell, wrap int
}

func newSheetStyles(f *excelize.File) (sheetStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "9CA3AF", Style: 1},
		{Type: "right", Color: "9CA3AF", Style: 1},
		{Type: "top", Color: "9CA3AF", Style: 1},
		{Type: "bottom", Color: "9CA3AF", Style: 1},
	}
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true}

	defs := []*excelize.Style{
		{Font: &excelize.Font{Bold: true, Size: 16}, Alignment: center},
		{Font: &excelize.Font{Bold: true, Size: 13, Color: "B91C1C", Underline: "single"}, Alignment: center},
		{Font: &excelize.Font{Bold: true}},
		{
			Font:      &excelize.Font{Bold: true},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"E5E7EB"}, Pattern: 1},
			Border:    border,
			Alignment: center,
		},
		{Border: border, Alignment: center},
		{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}},
	}

	var st sheetStyles
	targets := []*int{&st.heading, &st.title, &st.label, &st.head, &st.cell, &st.wrap}
	for i, d := range defs {
		id, err := f.NewStyle(d)
		if err != nil {
			return st, fmt.Errorf("failed to create style: %w", err)
		}
		*targets[i] = id
	}
	return st, nil
}

// sheetWriter keeps the first error so rows can be written without checking
// every cell.
type sheetWriter struct {
	f   *excelize.File
	row int
	err error
}

func (w *sheetWriter) cell(col int) string {
	name, err := excelize.CoordinatesToCellName(col, w.row)
	if err != nil && w.err == nil {
		w.err = err
	}
	return name
}

func (w *sheetWriter) set(col int, value string, style int) {
	if w.err != nil {
		return
	}
	name := w.cell(col)
	if err := w.f.SetCellStr(sheetName, name, value); err != nil {
		w.err = err
		return
	}
	if style != 0 {
		if err := w.f.SetCellStyle(sheetName, name, name, style); err != nil {
			w.err = err
		}
	}
}

func (w *sheetWriter) merge(from, to int) {
	if w.err != nil {
		return
	}
	if err := w.f.MergeCell(sheetName, w.cell(from), w.cell(to)); err != nil {
		w.err = err
	}
}
