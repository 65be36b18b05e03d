package model

// PatientUpdate carries the fields a client changed; nil fields are left
// as they are.
type PatientUpdate struct {
	Name    *string `json:"name"`
	Age     *string `json:"age"`
	Gender  *Gender `json:"gender"`
	Contact *string `json:"contact"`
	// Doctor is a name from the doctor list or ManualDoctorOption.
	Doctor       *string `json:"doctor"`
	ManualDoctor *string `json:"manual_doctor"`
}

type SelectReportRequest struct {
	ReportType string `json:"report_type" binding:"required"`
}

type ManualRowRequest struct {
	Name  string `json:"name"`
	Range string `json:"range"`
	Unit  string `json:"unit"`
}

type ResultRequest struct {
	Result string `json:"result"`
}

type OptionsUpdate struct {
	IncludeHeader *bool   `json:"include_header"`
	IncludeFooter *bool   `json:"include_footer"`
	Description   *string `json:"description"`
}

type EmailRequest struct {
	To     string `json:"to" binding:"required,email"`
	Format string `json:"format" binding:"omitempty,oneof=pdf xlsx"`
}

// ReportInput is a complete report supplied in one piece, as the command
// line generator reads it from a file.
type ReportInput struct {
	Patient    PatientUpdate   `json:"patient"`
	ReportType string          `json:"report_type"`
	Tests      []TestResultRow `json:"tests"`
	Options    *ReportOptions  `json:"options"`
}
