package model

import (
	"encoding/json"
	"errors"
)

var (
	ErrRowIndex         = errors.New("row index out of range")
	ErrRowNotEditable   = errors.New("catalog rows cannot be edited")
	ErrNoReportSelected = errors.New("no report type selected")
)

// TestRow is either a CatalogRow or a *ManualRow.
type TestRow interface {
	Name() string
	Range() string
	Unit() string
	Manual() bool
}

// CatalogRow comes from the report catalog and is read-only.
type CatalogRow struct {
	name        string
	normalRange string
	unit        string
}

func NewCatalogRow(name, normalRange, unit string) CatalogRow {
	return CatalogRow{name: name, normalRange: normalRange, unit: unit}
}

func (r CatalogRow) Name() string  { return r.name }
func (r CatalogRow) Range() string { return r.normalRange }
func (r CatalogRow) Unit() string  { return r.unit }
func (r CatalogRow) Manual() bool  { return false }

// ManualRow is an ad-hoc row the user typed in.
type ManualRow struct {
	name        string
	normalRange string
	unit        string
}

func NewManualRow(name, normalRange, unit string) *ManualRow {
	return &ManualRow{name: name, normalRange: normalRange, unit: unit}
}

func (r *ManualRow) Name() string  { return r.name }
func (r *ManualRow) Range() string { return r.normalRange }
func (r *ManualRow) Unit() string  { return r.unit }
func (r *ManualRow) Manual() bool  { return true }

func (r *ManualRow) SetName(name string)         { r.name = name }
func (r *ManualRow) SetRange(normalRange string) { r.normalRange = normalRange }
func (r *ManualRow) SetUnit(unit string)         { r.unit = unit }

// TestResultRow is one line of a saved report.
type TestResultRow struct {
	Name   string `json:"name"`
	Result string `json:"result"`
	Range  string `json:"range"`
	Unit   string `json:"unit"`
}

// EntryRow is a row of the working table with its typed-in result.
type EntryRow struct {
	Row    TestRow
	Result string
}

type entryRowJSON struct {
	Name   string `json:"name"`
	Range  string `json:"range"`
	Unit   string `json:"unit"`
	Manual bool   `json:"manual"`
	Result string `json:"result"`
}

func (e EntryRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryRowJSON{
		Name:   e.Row.Name(),
		Range:  e.Row.Range(),
		Unit:   e.Row.Unit(),
		Manual: e.Row.Manual(),
		Result: e.Result,
	})
}

func (e *EntryRow) UnmarshalJSON(data []byte) error {
	var raw entryRowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Manual {
		e.Row = NewManualRow(raw.Name, raw.Range, raw.Unit)
	} else {
		e.Row = NewCatalogRow(raw.Name, raw.Range, raw.Unit)
	}
	e.Result = raw.Result
	return nil
}

// TestEntry is the working test table for one report type.
type TestEntry struct {
	ReportType string     `json:"report_type"`
	Rows       []EntryRow `json:"rows"`
}

// Select replaces the table with the catalog rows of reportType and clears
// all results.
func (e *TestEntry) Select(reportType string, rows []CatalogRow) {
	e.ReportType = reportType
	e.Rows = make([]EntryRow, 0, len(rows))
	for _, r := range rows {
		e.Rows = append(e.Rows, EntryRow{Row: r})
	}
}

// AddManualRow appends an empty editable row and returns its index.
func (e *TestEntry) AddManualRow() (int, error) {
	if e.ReportType == "" {
		return 0, ErrNoReportSelected
	}
	e.Rows = append(e.Rows, EntryRow{Row: NewManualRow("", "", "")})
	return len(e.Rows) - 1, nil
}

func (e *TestEntry) EditManualRow(i int, name, normalRange, unit string) error {
	if i < 0 || i >= len(e.Rows) {
		return ErrRowIndex
	}
	row, ok := e.Rows[i].Row.(*ManualRow)
	if !ok {
		return ErrRowNotEditable
	}
	row.SetName(name)
	row.SetRange(normalRange)
	row.SetUnit(unit)
	return nil
}

func (e *TestEntry) SetResult(i int, value string) error {
	if i < 0 || i >= len(e.Rows) {
		return ErrRowIndex
	}
	e.Rows[i].Result = value
	return nil
}

// Results snapshots the table in display order.
func (e *TestEntry) Results() []TestResultRow {
	out := make([]TestResultRow, 0, len(e.Rows))
	for _, r := range e.Rows {
		out = append(out, TestResultRow{
			Name:   r.Row.Name(),
			Result: r.Result,
			Range:  r.Row.Range(),
			Unit:   r.Row.Unit(),
		})
	}
	return out
}

// Clone deep-copies the table; manual rows are pointers.
func (e TestEntry) Clone() TestEntry {
	out := TestEntry{ReportType: e.ReportType, Rows: make([]EntryRow, len(e.Rows))}
	for i, r := range e.Rows {
		if m, ok := r.Row.(*ManualRow); ok {
			r.Row = NewManualRow(m.Name(), m.Range(), m.Unit())
		}
		out.Rows[i] = r
	}
	return out
}
