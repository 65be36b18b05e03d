package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/labreport/internal/email"
	"github.com/jwalitptl/labreport/internal/model"
	"github.com/jwalitptl/labreport/internal/render"
	"github.com/jwalitptl/labreport/internal/repository"
	"github.com/jwalitptl/labreport/internal/service/catalog"
	"github.com/jwalitptl/labreport/internal/service/sequence"
	apperrors "github.com/jwalitptl/labreport/pkg/errors"
	"github.com/jwalitptl/labreport/pkg/messaging"
	"github.com/jwalitptl/labreport/pkg/metrics"
	"github.com/jwalitptl/labreport/pkg/validator"
)

// EventExported is published after every successful export.
const EventExported = "report.exported"

// EventSink accepts events without blocking.
type EventSink interface {
	Enqueue(channel string, msg messaging.Message) bool
}

type ReportService interface {
	Create(ctx context.Context) (*model.Draft, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Draft, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, upd model.PatientUpdate) (*model.Draft, error)
	SelectReport(ctx context.Context, id uuid.UUID, reportType string) (*model.Draft, error)
	AddManualRow(ctx context.Context, id uuid.UUID) (*model.Draft, int, error)
	EditManualRow(ctx context.Context, id uuid.UUID, index int, row model.ManualRowRequest) (*model.Draft, error)
	SetResult(ctx context.Context, id uuid.UUID, index int, result string) (*model.Draft, error)
	SaveTests(ctx context.Context, id uuid.UUID) (*model.Draft, error)
	SetOptions(ctx context.Context, id uuid.UUID, upd model.OptionsUpdate) (*model.Draft, error)
	Preview(ctx context.Context, id uuid.UUID) (render.Layout, error)
	Export(ctx context.Context, id uuid.UUID, format string) (*render.Document, error)
	EmailReport(ctx context.Context, id uuid.UUID, req model.EmailRequest) error
	Discard(ctx context.Context, id uuid.UUID) error
	Generate(ctx context.Context, input model.ReportInput, format string) (*render.Document, *model.Draft, error)
}

type Dependencies struct {
	Drafts    repository.DraftRepository
	Sequence  sequence.SequenceService
	Catalog   *catalog.Catalog
	Renderer  *render.Renderer
	Validator validator.Validator
	Doctors   []string
	// Mailer and Events are optional.
	Mailer       email.Service
	Events       EventSink
	EventChannel string
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
	Now          func() time.Time
}

// Service owns report drafts. Changes to drafts are applied one at a time;
// exports render from a copy and never block edits.
type Service struct {
	deps Dependencies
	mu   sync.Mutex
}

func NewService(deps Dependencies) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}
	if deps.EventChannel == "" {
		deps.EventChannel = "labreport.events"
	}
	return &Service{deps: deps}
}

// Create opens a draft for a new visit. The patient identifier is issued
// here, the moment the form is opened.
func (s *Service) Create(ctx context.Context) (*model.Draft, error) {
	patientID, issuedAt, err := s.deps.Sequence.Issue(ctx)
	if err != nil {
		return nil, apperrors.NewUnavailable("could not issue patient identifier", err)
	}

	draft := model.NewDraft(s.deps.Now(), model.NewPatientForm(issuedAt, patientID))
	if err := s.deps.Drafts.Create(ctx, draft); err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to store draft: %w", err))
	}
	s.deps.Metrics.DraftsActive.Set(float64(s.deps.Drafts.Count()))

	s.deps.Logger.Info().Str("draft_id", draft.ID.String()).Str("patient_id", patientID).Msg("draft created")
	return draft, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Draft, error) {
	return s.load(ctx, id)
}

// UpdatePatient applies the changed fields and validates the whole form.
// The typed values are kept even when validation fails; the patient record
// is only replaced when every field passes.
func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, upd model.PatientUpdate) (*model.Draft, error) {
	var verr error
	draft, err := s.mutate(ctx, id, func(d *model.Draft) error {
		if err := applyPatientUpdate(&d.Form, upd, s.deps.Doctors); err != nil {
			return err
		}
		rec, err := d.Form.Validate(s.deps.Validator)
		if err != nil {
			verr = err
			return nil
		}
		d.Patient = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	if verr != nil {
		return draft, validationError(verr)
	}
	return draft, nil
}

func (s *Service) SelectReport(ctx context.Context, id uuid.UUID, reportType string) (*model.Draft, error) {
	rows, err := s.deps.Catalog.Rows(reportType)
	if err != nil {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown report type %q", reportType), err)
	}
	return s.mutate(ctx, id, func(d *model.Draft) error {
		d.Entry.Select(reportType, rows)
		return nil
	})
}

func (s *Service) AddManualRow(ctx context.Context, id uuid.UUID) (*model.Draft, int, error) {
	var index int
	draft, err := s.mutate(ctx, id, func(d *model.Draft) error {
		i, err := d.Entry.AddManualRow()
		index = i
		return err
	})
	return draft, index, err
}

func (s *Service) EditManualRow(ctx context.Context, id uuid.UUID, index int, row model.ManualRowRequest) (*model.Draft, error) {
	return s.mutate(ctx, id, func(d *model.Draft) error {
		return d.Entry.EditManualRow(index, row.Name, row.Range, row.Unit)
	})
}

func (s *Service) SetResult(ctx context.Context, id uuid.UUID, index int, result string) (*model.Draft, error) {
	return s.mutate(ctx, id, func(d *model.Draft) error {
		return d.Entry.SetResult(index, result)
	})
}

// SaveTests commits the working table; previews and exports show the last
// saved table, not work in progress.
func (s *Service) SaveTests(ctx context.Context, id uuid.UUID) (*model.Draft, error) {
	return s.mutate(ctx, id, func(d *model.Draft) error {
		return d.SaveTests()
	})
}

func (s *Service) SetOptions(ctx context.Context, id uuid.UUID, upd model.OptionsUpdate) (*model.Draft, error) {
	return s.mutate(ctx, id, func(d *model.Draft) error {
		if upd.IncludeHeader != nil {
			d.Options.IncludeHeader = *upd.IncludeHeader
		}
		if upd.IncludeFooter != nil {
			d.Options.IncludeFooter = *upd.IncludeFooter
		}
		if upd.Description != nil {
			d.Options.Description = *upd.Description
		}
		return nil
	})
}

func (s *Service) Preview(ctx context.Context, id uuid.UUID) (render.Layout, error) {
	draft, err := s.load(ctx, id)
	if err != nil {
		return render.Layout{}, err
	}
	return s.deps.Renderer.Compose(draft.Content()), nil
}

// Export renders the draft. A failed export changes nothing and may simply
// be retried.
func (s *Service) Export(ctx context.Context, id uuid.UUID, format string) (*render.Document, error) {
	draft, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.export(draft, format)
}

func (s *Service) export(draft *model.Draft, format string) (*render.Document, error) {
	if format == "" {
		format = "pdf"
	}

	start := time.Now()
	doc, err := s.deps.Renderer.Export(draft.Content(), format)
	s.deps.Metrics.ExportLatency.WithLabelValues(format).Observe(time.Since(start).Seconds())

	if errors.Is(err, render.ErrUnknownFormat) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown export format %q", format), err)
	}
	if err != nil {
		s.deps.Metrics.ExportsTotal.WithLabelValues(format, "error").Inc()
		s.deps.Logger.Error().Err(err).Str("draft_id", draft.ID.String()).Str("format", format).Msg("export failed")
		return nil, apperrors.NewInternal(err)
	}

	s.deps.Metrics.ExportsTotal.WithLabelValues(format, "success").Inc()
	if format == "pdf" {
		s.deps.Metrics.ExportPages.Observe(float64(doc.Pages))
	}
	s.publishExported(draft, format, doc)

	s.deps.Logger.Info().
		Str("draft_id", draft.ID.String()).
		Str("format", format).
		Str("filename", doc.Filename).
		Int("pages", doc.Pages).
		Msg("report exported")
	return doc, nil
}

func (s *Service) EmailReport(ctx context.Context, id uuid.UUID, req model.EmailRequest) error {
	if s.deps.Mailer == nil {
		return apperrors.NewUnavailable("email is not configured", nil)
	}

	draft, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	doc, err := s.export(draft, req.Format)
	if err != nil {
		return err
	}

	subject := "Lab Report"
	if draft.ReportName != "" {
		subject = render.ReportTitle(draft.ReportName)
	}
	if draft.Patient != nil {
		subject += " - " + draft.Patient.Name
	}

	err = s.deps.Mailer.SendReport(ctx, req.To, subject, "Please find the laboratory report attached.", email.Attachment{
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		Data:        doc.Data,
	})
	if err != nil {
		s.deps.Metrics.EmailsSent.WithLabelValues("error").Inc()
		return apperrors.NewUnavailable("failed to send email", err)
	}
	s.deps.Metrics.EmailsSent.WithLabelValues("success").Inc()
	return nil
}

// Discard drops the draft, like starting a new report.
func (s *Service) Discard(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deps.Drafts.Delete(ctx, id); err != nil {
		return draftError(err)
	}
	s.deps.Metrics.DraftsActive.Set(float64(s.deps.Drafts.Count()))
	return nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*model.Draft, error) {
	draft, err := s.deps.Drafts.Get(ctx, id)
	if err != nil {
		return nil, draftError(err)
	}
	return draft, nil
}

// mutate applies fn to the stored draft under the service lock. If fn fails
// nothing is written back.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(*model.Draft) error) (*model.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(draft); err != nil {
		return nil, entryError(err)
	}
	draft.UpdatedAt = s.deps.Now()
	if err := s.deps.Drafts.Update(ctx, draft); err != nil {
		return nil, draftError(err)
	}
	return draft, nil
}

func (s *Service) publishExported(draft *model.Draft, format string, doc *render.Document) {
	if s.deps.Events == nil {
		return
	}
	payload := map[string]interface{}{
		"draft_id":    draft.ID.String(),
		"format":      format,
		"filename":    doc.Filename,
		"pages":       doc.Pages,
		"report_name": draft.ReportName,
	}
	if draft.Patient != nil {
		payload["patient_id"] = draft.Patient.PatientID
	}
	s.deps.Events.Enqueue(s.deps.EventChannel, messaging.Message{
		Type:       EventExported,
		OccurredAt: s.deps.Now(),
		Payload:    payload,
	})
}

func applyPatientUpdate(f *model.PatientForm, upd model.PatientUpdate, doctors []string) error {
	if upd.Name != nil {
		f.SetName(*upd.Name)
	}
	if upd.Age != nil {
		f.SetAge(*upd.Age)
	}
	if upd.Gender != nil {
		f.SetGender(*upd.Gender)
	}
	if upd.Contact != nil {
		f.SetContact(*upd.Contact)
	}
	if upd.Doctor != nil {
		if err := f.SelectDoctor(*upd.Doctor, doctors); err != nil {
			return err
		}
	}
	if upd.ManualDoctor != nil {
		f.SetManualDoctor(*upd.ManualDoctor)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.NewValidation(verrs.First().Message, verrs)
	}
	return apperrors.NewBadRequest("invalid patient details", err)
}

func draftError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("report", err)
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.NewInternal(err)
}

func entryError(err error) error {
	switch {
	case errors.Is(err, model.ErrRowIndex),
		errors.Is(err, model.ErrRowNotEditable),
		errors.Is(err, model.ErrNoReportSelected),
		errors.Is(err, model.ErrUnknownDoctor):
		return apperrors.NewBadRequest(err.Error(), err)
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.NewInternal(err)
}
