package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/labreport/internal/email"
	"github.com/jwalitptl/labreport/internal/model"
	"github.com/jwalitptl/labreport/internal/render"
	"github.com/jwalitptl/labreport/internal/repository/file"
	"github.com/jwalitptl/labreport/internal/repository/memory"
	"github.com/jwalitptl/labreport/internal/service/catalog"
	"github.com/jwalitptl/labreport/internal/service/sequence"
	apperrors "github.com/jwalitptl/labreport/pkg/errors"
	"github.com/jwalitptl/labreport/pkg/messaging"
	"github.com/jwalitptl/labreport/pkg/metrics"
	"github.com/jwalitptl/labreport/pkg/validator"
)

var testNow = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

type fakeMailer struct {
	mu   sync.Mutex
	to   []string
	subj []string
	att  []email.Attachment
	err  error
}

func (m *fakeMailer) SendReport(ctx context.Context, to, subject, body string, att email.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.to = append(m.to, to)
	m.subj = append(m.subj, subject)
	m.att = append(m.att, att)
	return nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []messaging.Message
}

func (s *fakeSink) Enqueue(channel string, msg messaging.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, msg)
	return true
}

type brokenSequence struct{}

func (brokenSequence) Issue(ctx context.Context) (string, time.Time, error) {
	return "", time.Time{}, errors.New("store offline")
}

func (brokenSequence) Current(ctx context.Context) (*model.SequencerState, error) {
	return nil, nil
}

type fixture struct {
	svc    *Service
	mailer *fakeMailer
	sink   *fakeSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat, err := catalog.Parse(strings.NewReader(`{
		"CBC": [
			{"name": "Hemoglobin", "range": "13.0 - 17.0", "unit": "g/dL"},
			{"name": "WBC", "range": "4000 - 11000", "unit": "/cumm"}
		],
		"Widal": [{"name": "S. Typhi O", "range": "< 1:80", "unit": ""}]
	}`))
	require.NoError(t, err)

	renderer, err := render.NewRenderer(render.Config{
		PixelsPerMM: 2,
		PageHeight:  295,
		Letterhead:  render.Letterhead{Name: "Maruti Nisarg Laboratory", Signatory: "Mrs. Heena V. Modh"},
	})
	require.NoError(t, err)

	m := metrics.NewNop()
	seq := sequence.NewService(
		file.NewSequenceRepository(filepath.Join(t.TempDir(), "sequence.json")),
		time.UTC, m,
		sequence.WithClock(func() time.Time { return testNow }),
	)

	f := &fixture{mailer: &fakeMailer{}, sink: &fakeSink{}}
	f.svc = NewService(Dependencies{
		Drafts:    memory.NewDraftRepository(time.Hour, time.Hour),
		Sequence:  seq,
		Catalog:   cat,
		Renderer:  renderer,
		Validator: validator.New(validator.WithMessages(model.PatientMessages)),
		Doctors:   []string{"Dr. C. B. Patel", "Dr. Rai"},
		Mailer:    f.mailer,
		Events:    f.sink,
		Metrics:   m,
		Now:       func() time.Time { return testNow },
	})
	return f
}

func str(s string) *string { return &s }

func validPatient() model.PatientUpdate {
	g := model.GenderMale
	return model.PatientUpdate{
		Name:    str("Test Patient"),
		Age:     str("40"),
		Gender:  &g,
		Contact: str("9876543210"),
		Doctor:  str("Dr. Rai"),
	}
}

func requireAppError(t *testing.T, err error, status int) *apperrors.AppError {
	t.Helper()
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, status, appErr.StatusCode())
	return appErr
}

func TestService_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, "010124/001", draft.Form.PatientID)
	assert.Equal(t, testNow, draft.Form.VisitDate)

	draft, err = f.svc.UpdatePatient(ctx, draft.ID, validPatient())
	require.NoError(t, err)
	require.NotNil(t, draft.Patient)
	assert.Equal(t, "Dr. Rai", draft.Patient.ReferredBy)

	_, err = f.svc.SelectReport(ctx, draft.ID, "CBC")
	require.NoError(t, err)
	_, err = f.svc.SetResult(ctx, draft.ID, 0, "14.2")
	require.NoError(t, err)
	_, err = f.svc.SetResult(ctx, draft.ID, 1, "7000")
	require.NoError(t, err)
	draft, err = f.svc.SaveTests(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "CBC", draft.ReportName)

	layout, err := f.svc.Preview(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Patient_010124-001.pdf", layout.Filename)
	var table render.Block
	for _, b := range layout.Blocks {
		if b.Kind == render.BlockTable {
			table = b
		}
	}
	assert.Equal(t, [][]string{
		{"Hemoglobin", "14.2", "13.0 - 17.0", "g/dL"},
		{"WBC", "7000", "4000 - 11000", "/cumm"},
	}, table.Rows)

	doc, err := f.svc.Export(ctx, draft.ID, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "Test Patient_010124-001.pdf", doc.Filename)
	assert.Equal(t, 1, doc.Pages)

	require.Len(t, f.sink.events, 1)
	assert.Equal(t, EventExported, f.sink.events[0].Type)

	next, err := f.svc.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, "010124/002", next.Form.PatientID)
}

func TestService_CreateFailsWithoutIdentifier(t *testing.T) {
	f := newFixture(t)
	f.svc.deps.Sequence = brokenSequence{}

	_, err := f.svc.Create(context.Background())
	requireAppError(t, err, http.StatusServiceUnavailable)
}

func TestService_UpdatePatientValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.Create(ctx)
	require.NoError(t, err)

	upd := validPatient()
	upd.Contact = str("12345")
	got, err := f.svc.UpdatePatient(ctx, draft.ID, upd)

	appErr := requireAppError(t, err, http.StatusBadRequest)
	assert.Equal(t, "Please enter valid 10-digit phone number.", appErr.Message)
	details, ok := appErr.Details.(validator.ValidationErrors)
	require.True(t, ok)
	assert.Equal(t, "contact", details.First().Field)

	require.NotNil(t, got)
	assert.Nil(t, got.Patient)
	assert.Equal(t, "Test Patient", got.Form.Name)

	stored, err := f.svc.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "12345", stored.Form.Contact)
	assert.Nil(t, stored.Patient)
}

func TestService_UpdatePatientUnknownDoctor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.Create(ctx)
	require.NoError(t, err)

	upd := validPatient()
	upd.Doctor = str("Dr. Nobody")
	_, err = f.svc.UpdatePatient(ctx, draft.ID, upd)
	requireAppError(t, err, http.StatusBadRequest)

	upd.Doctor = str(model.ManualDoctorOption)
	upd.ManualDoctor = str("Dr. Visiting")
	draft, err = f.svc.UpdatePatient(ctx, draft.ID, upd)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Visiting", draft.Patient.ReferredBy)
}

func TestService_ManualRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.Create(ctx)
	require.NoError(t, err)

	_, _, err = f.svc.AddManualRow(ctx, draft.ID)
	requireAppError(t, err, http.StatusBadRequest)
	_, err = f.svc.SaveTests(ctx, draft.ID)
	requireAppError(t, err, http.StatusBadRequest)

	_, err = f.svc.SelectReport(ctx, draft.ID, "Widal")
	require.NoError(t, err)

	_, index, err := f.svc.AddManualRow(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, index)

	_, err = f.svc.EditManualRow(ctx, draft.ID, 0, model.ManualRowRequest{Name: "changed"})
	requireAppError(t, err, http.StatusBadRequest)

	_, err = f.svc.EditManualRow(ctx, draft.ID, index, model.ManualRowRequest{Name: "ESR", Range: "0 - 20", Unit: "mm/hr"})
	require.NoError(t, err)
	_, err = f.svc.SetResult(ctx, draft.ID, index, "12")
	require.NoError(t, err)
	_, err = f.svc.SetResult(ctx, draft.ID, 5, "x")
	requireAppError(t, err, http.StatusBadRequest)

	draft, err = f.svc.SaveTests(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.TestResultRow{
		{Name: "S. Typhi O", Range: "< 1:80"},
		{Name: "ESR", Result: "12", Range: "0 - 20", Unit: "mm/hr"},
	}, draft.Tests)
}

func TestService_SelectReportResetsTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.Create(ctx)
	require.NoError(t, err)

	_, err = f.svc.SelectReport(ctx, draft.ID, "CBC")
	require.NoError(t, err)
	_, err = f.svc.SetResult(ctx, draft.ID, 0, "14.2")
	require.NoError(t, err)

	draft, err = f.svc.SelectReport(ctx, draft.ID, "CBC")
	require.NoError(t, err)
	assert.Empty(t, draft.Entry.Rows[0].Result)

	_, err = f.svc.SelectReport(ctx, draft.ID, "Unknown")
	requireAppError(t, err, http.StatusBadRequest)
}

func TestService_PreviewUsesSavedTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.Create(ctx)
	require.NoError(t, err)
	_, err = f.svc.SelectReport(ctx, draft.ID, "CBC")
	require.NoError(t, err)

	layout, err := f.svc.Preview(ctx, draft.ID)
	require.NoError(t, err)

	kinds := map[render.BlockKind]bool{}
	for _, b := range layout.Blocks {
		kinds[b.Kind] = true
	}
	assert.True(t, kinds[render.BlockPlaceholder])
	assert.False(t, kinds[render.BlockPatient])
	assert.Equal(t, "Lab_Report_ID.pdf", layout.Filename)
}

func TestService_SetOptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.Create(ctx)
	require.NoError(t, err)

	off := false
	draft, err = f.svc.SetOptions(ctx, draft.ID, model.OptionsUpdate{IncludeHeader: &off, Description: str("Repeat test")})
	require.NoError(t, err)
	assert.False(t, draft.Options.IncludeHeader)
	assert.True(t, draft.Options.IncludeFooter)

	layout, err := f.svc.Preview(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, render.BlockSpacer, layout.Blocks[0].Kind)
}

func TestService_ExportUnknownFormat(t *testing.T) {
	f := newFixture(t)
	draft, err := f.svc.Create(context.Background())
	require.NoError(t, err)

	_, err = f.svc.Export(context.Background(), draft.ID, "docx")
	requireAppError(t, err, http.StatusBadRequest)
}

func TestService_Discard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, f.svc.Discard(ctx, draft.ID))

	_, err = f.svc.Get(ctx, draft.ID)
	requireAppError(t, err, http.StatusNotFound)
	requireAppError(t, f.svc.Discard(ctx, draft.ID), http.StatusNotFound)
	_, err = f.svc.SetResult(ctx, uuid.New(), 0, "1")
	requireAppError(t, err, http.StatusNotFound)
}

func TestService_EmailReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.Create(ctx)
	require.NoError(t, err)
	_, err = f.svc.UpdatePatient(ctx, draft.ID, validPatient())
	require.NoError(t, err)

	require.NoError(t, f.svc.EmailReport(ctx, draft.ID, model.EmailRequest{To: "doctor@example.com"}))
	require.Len(t, f.mailer.att, 1)
	assert.Equal(t, "Test Patient_010124-001.pdf", f.mailer.att[0].Filename)
	assert.Equal(t, "Lab Report - Test Patient", f.mailer.subj[0])

	f.mailer.err = errors.New("smtp down")
	err = f.svc.EmailReport(ctx, draft.ID, model.EmailRequest{To: "doctor@example.com", Format: "xlsx"})
	requireAppError(t, err, http.StatusServiceUnavailable)

	f.svc.deps.Mailer = nil
	err = f.svc.EmailReport(ctx, draft.ID, model.EmailRequest{To: "doctor@example.com"})
	requireAppError(t, err, http.StatusServiceUnavailable)
}

func TestService_Generate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, draft, err := f.svc.Generate(ctx, model.ReportInput{
		Patient:    validPatient(),
		ReportType: "CBC",
		Tests: []model.TestResultRow{
			{Name: "wbc", Result: "7000"},
			{Name: "ESR", Result: "12", Range: "0 - 20", Unit: "mm/hr"},
			{Name: "Hemoglobin", Result: "14.2"},
		},
		Options: &model.ReportOptions{IncludeHeader: true, IncludeFooter: false},
	}, "pdf")
	require.NoError(t, err)

	assert.Equal(t, "Test Patient_010124-001.pdf", doc.Filename)
	assert.Equal(t, []model.TestResultRow{
		{Name: "Hemoglobin", Result: "14.2", Range: "13.0 - 17.0", Unit: "g/dL"},
		{Name: "WBC", Result: "7000", Range: "4000 - 11000", Unit: "/cumm"},
		{Name: "ESR", Result: "12", Range: "0 - 20", Unit: "mm/hr"},
	}, draft.Tests)
	assert.False(t, draft.Options.IncludeFooter)

	_, err = f.svc.Get(ctx, draft.ID)
	requireAppError(t, err, http.StatusNotFound)
}

func TestService_GenerateValidation(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Generate(context.Background(), model.ReportInput{
		Tests: []model.TestResultRow{{Name: "x"}},
	}, "pdf")
	requireAppError(t, err, http.StatusBadRequest)

	_, _, err = f.svc.Generate(context.Background(), model.ReportInput{Patient: model.PatientUpdate{Name: str("Only")}}, "pdf")
	requireAppError(t, err, http.StatusBadRequest)
}

func TestService_ConcurrentResultsAreAllKept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.Create(ctx)
	require.NoError(t, err)
	_, err = f.svc.SelectReport(ctx, draft.ID, "CBC")
	require.NoError(t, err)

	const extra = 20
	for i := 0; i < extra; i++ {
		_, _, err := f.svc.AddManualRow(ctx, draft.ID)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < extra+2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.SetResult(ctx, draft.ID, i, fmt.Sprint(i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := f.svc.Get(ctx, draft.ID)
	require.NoError(t, err)
	for i, row := range stored.Entry.Rows {
		assert.Equal(t, fmt.Sprint(i), row.Result)
	}
}
