package model

import (
	"errors"
	"strings"
	"time"

	"github.com/jwalitptl/labreport/pkg/validator"
)

// ManualDoctorOption is the doctor choice that switches to free entry.
const ManualDoctorOption = "manual"

var ErrUnknownDoctor = errors.New("doctor is not in the list")

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// PatientRecord is a validated patient form. It is not modified after it is
// created.
type PatientRecord struct {
	Name       string    `json:"name"`
	Age        string    `json:"age"`
	Gender     Gender    `json:"gender"`
	Contact    string    `json:"contact"`
	VisitDate  time.Time `json:"visit_date"`
	PatientID  string    `json:"patient_id"`
	ReferredBy string    `json:"referred_by"`
}

// PatientForm is the editable side of a patient record. Field order is the
// order in which validation failures are reported.
type PatientForm struct {
	Name         string    `json:"name" validate:"required"`
	Age          string    `json:"age" validate:"required"`
	Contact      string    `json:"contact" validate:"required,contact"`
	Gender       Gender    `json:"gender" validate:"required,oneof=Male Female Other"`
	ReferredBy   string    `json:"referred_by" validate:"required"`
	ManualDoctor bool      `json:"manual_doctor"`
	VisitDate    time.Time `json:"visit_date"`
	PatientID    string    `json:"patient_id"`
}

// PatientMessages are the messages shown for each failed field rule.
var PatientMessages = map[string]string{
	"name.required":        "Please enter patient name.",
	"age.required":         "Please enter age.",
	"contact.required":     "Please enter contact number.",
	"contact.contact":      "Please enter valid 10-digit phone number.",
	"gender.required":      "Please select gender.",
	"gender.oneof":         "Please select gender.",
	"referred_by.required": "Please select or enter referred doctor.",
}

// NewPatientForm starts a form for a visit on date with an issued identifier.
func NewPatientForm(visitDate time.Time, patientID string) PatientForm {
	return PatientForm{
		Gender:    GenderMale,
		VisitDate: visitDate,
		PatientID: patientID,
	}
}

func (f *PatientForm) SetName(name string) {
	f.Name = strings.TrimSpace(name)
}

func (f *PatientForm) SetAge(age string) {
	f.Age = strings.TrimSpace(age)
}

func (f *PatientForm) SetGender(g Gender) {
	f.Gender = Gender(strings.TrimSpace(string(g)))
}

func (f *PatientForm) SetContact(contact string) {
	f.Contact = strings.TrimSpace(contact)
}

// SelectDoctor picks a doctor from the fixed list. Choosing
// ManualDoctorOption clears the doctor and enables free entry.
func (f *PatientForm) SelectDoctor(choice string, doctors []string) error {
	choice = strings.TrimSpace(choice)
	if choice == ManualDoctorOption {
		f.ManualDoctor = true
		f.ReferredBy = ""
		return nil
	}
	if choice != "" && !contains(doctors, choice) {
		return ErrUnknownDoctor
	}
	f.ManualDoctor = false
	f.ReferredBy = choice
	return nil
}

// SetManualDoctor records a freely entered doctor name.
func (f *PatientForm) SetManualDoctor(name string) {
	f.ManualDoctor = true
	f.ReferredBy = strings.TrimSpace(name)
}

// Validate checks every field at once and only then produces the record.
func (f *PatientForm) Validate(v validator.Validator) (*PatientRecord, error) {
	if err := v.Validate(f); err != nil {
		return nil, err
	}
	return &PatientRecord{
		Name:       f.Name,
		Age:        f.Age,
		Gender:     f.Gender,
		Contact:    f.Contact,
		VisitDate:  f.VisitDate,
		PatientID:  f.PatientID,
		ReferredBy: f.ReferredBy,
	}, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
