package model

import (
	"time"

	"github.com/google/uuid"
)

// ReportOptions are the layout toggles and free text remarks.
type ReportOptions struct {
	IncludeHeader bool   `json:"include_header"`
	IncludeFooter bool   `json:"include_footer"`
	Description   string `json:"description"`
}

func DefaultReportOptions() ReportOptions {
	return ReportOptions{IncludeHeader: true, IncludeFooter: true}
}

// Draft is everything one user has entered for one report, held in memory
// until it is exported or discarded.
type Draft struct {
	Base
	Form       PatientForm     `json:"form"`
	Patient    *PatientRecord  `json:"patient,omitempty"`
	Entry      TestEntry       `json:"entry"`
	ReportName string          `json:"report_name"`
	Tests      []TestResultRow `json:"tests"`
	Options    ReportOptions   `json:"options"`
}

func NewDraft(now time.Time, form PatientForm) *Draft {
	return &Draft{
		Base: Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Form:    form,
		Entry:   TestEntry{Rows: []EntryRow{}},
		Tests:   []TestResultRow{},
		Options: DefaultReportOptions(),
	}
}

// SaveTests commits the working table as the report content.
func (d *Draft) SaveTests() error {
	if d.Entry.ReportType == "" {
		return ErrNoReportSelected
	}
	d.ReportName = d.Entry.ReportType
	d.Tests = d.Entry.Results()
	return nil
}

// Clone returns a deep copy safe to read without the owner's lock.
func (d *Draft) Clone() *Draft {
	out := *d
	if d.Patient != nil {
		p := *d.Patient
		out.Patient = &p
	}
	out.Entry = d.Entry.Clone()
	out.Tests = append([]TestResultRow(nil), d.Tests...)
	return &out
}

// Content is what gets rendered.
func (d *Draft) Content() ReportContent {
	c := ReportContent{
		ReportName: d.ReportName,
		Tests:      append([]TestResultRow(nil), d.Tests...),
		Options:    d.Options,
	}
	if d.Patient != nil {
		p := *d.Patient
		c.Patient = &p
	}
	return c
}

// ReportContent is the saved part of a draft: what the report shows.
type ReportContent struct {
	Patient    *PatientRecord  `json:"patient,omitempty"`
	ReportName string          `json:"report_name"`
	Tests      []TestResultRow `json:"tests"`
	Options    ReportOptions   `json:"options"`
}
