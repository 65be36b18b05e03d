package render

import (
	"strings"

	"github.com/jwalitptl/labreport/internal/model"
)

// PlaceholderText stands in for the test table when there are no rows.
const PlaceholderText = "No tests entered yet."

const missingValue = "-"

type BlockKind string

const (
	BlockHeader      BlockKind = "header"
	BlockSpacer      BlockKind = "spacer"
	BlockPatient     BlockKind = "patient"
	BlockTitle       BlockKind = "title"
	BlockTable       BlockKind = "table"
	BlockPlaceholder BlockKind = "placeholder"
	BlockDescription BlockKind = "description"
	BlockSignatory   BlockKind = "signatory"
	BlockFooter      BlockKind = "footer"
)

// TableColumns are the headings of the test table.
var TableColumns = []string{"Test Name", "Result", "Normal Range", "Unit"}

type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Block is one vertical section of a report.
type Block struct {
	Kind    BlockKind  `json:"kind"`
	Title   string     `json:"title,omitempty"`
	Lines   []string   `json:"lines,omitempty"`
	Fields  []Field    `json:"fields,omitempty"`
	QRCode  string     `json:"qr_code,omitempty"`
	Columns []string   `json:"columns,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`
}

// Layout is a composed report, independent of any output format.
type Layout struct {
	Blocks   []Block `json:"blocks"`
	Filename string  `json:"filename"`
}

// Letterhead is the lab's fixed report text.
type Letterhead struct {
	Name                   string
	Address                string
	Phone                  string
	Signatory              string
	SignatoryQualification string
	FooterGrade            string
	FooterNote             string
	QRCode                 bool
}

// Compose lays out the saved content of a draft. Blocks appear in print
// order; optional ones are left out instead of rendered empty.
func Compose(c model.ReportContent, lh Letterhead) Layout {
	blocks := make([]Block, 0, 7)

	if c.Options.IncludeHeader {
		var lines []string
		for _, l := range []string{lh.Address, lh.Phone} {
			if strings.TrimSpace(l) != "" {
				lines = append(lines, l)
			}
		}
		blocks = append(blocks, Block{Kind: BlockHeader, Title: lh.Name, Lines: lines})
	} else {
		blocks = append(blocks, Block{Kind: BlockSpacer})
	}

	if c.Patient != nil {
		b := Block{Kind: BlockPatient, Title: "Patient Information", Fields: patientFields(c.Patient)}
		if lh.QRCode && c.Patient.PatientID != "" {
			b.QRCode = c.Patient.PatientID
		}
		blocks = append(blocks, b)
	}

	if c.ReportName != "" {
		blocks = append(blocks, Block{Kind: BlockTitle, Title: ReportTitle(c.ReportName)})
	}

	if len(c.Tests) > 0 {
		rows := make([][]string, 0, len(c.Tests))
		for _, t := range c.Tests {
			rows = append(rows, []string{t.Name, t.Result, t.Range, t.Unit})
		}
		blocks = append(blocks, Block{Kind: BlockTable, Columns: TableColumns, Rows: rows})
	} else {
		blocks = append(blocks, Block{Kind: BlockPlaceholder, Lines: []string{PlaceholderText}})
	}

	if strings.TrimSpace(c.Options.Description) != "" {
		blocks = append(blocks, Block{
			Kind:  BlockDescription,
			Title: "Description / Remarks:",
			Lines: strings.Split(c.Options.Description, "\n"),
		})
	}

	blocks = append(blocks, Block{
		Kind:  BlockSignatory,
		Lines: []string{lh.Signatory, lh.SignatoryQualification},
	})

	if c.Options.IncludeFooter {
		blocks = append(blocks, Block{
			Kind: BlockFooter,
			Fields: []Field{
				{Label: "Lab Grade", Value: lh.FooterGrade},
				{Label: "Note", Value: lh.FooterNote},
			},
		})
	}

	return Layout{Blocks: blocks, Filename: Filename(c.Patient, ".pdf")}
}

// ReportTitle is the heading printed above the test table.
func ReportTitle(reportName string) string {
	return strings.ToUpper(reportName) + " REPORT"
}

func patientFields(p *model.PatientRecord) []Field {
	date := ""
	if !p.VisitDate.IsZero() {
		date = p.VisitDate.Format(model.DisplayDateLayout)
	}
	return []Field{
		{Label: "Name", Value: orMissing(p.Name)},
		{Label: "Age", Value: orMissing(p.Age)},
		{Label: "Gender", Value: orMissing(string(p.Gender))},
		{Label: "Contact", Value: orMissing(p.Contact)},
		{Label: "Date", Value: orMissing(date)},
		{Label: "Patient ID", Value: orMissing(p.PatientID)},
		{Label: "Referred By", Value: orMissing(p.ReferredBy)},
	}
}

func orMissing(s string) string {
	if strings.TrimSpace(s) == "" {
		return missingValue
	}
	return s
}
