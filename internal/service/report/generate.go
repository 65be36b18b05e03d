package report

import (
	"context"
	"strings"

	"github.com/jwalitptl/labreport/internal/model"
	"github.com/jwalitptl/labreport/internal/render"
	apperrors "github.com/jwalitptl/labreport/pkg/errors"
)

// Generate runs a whole report through a temporary draft: it issues an
// identifier, fills the form and the table from input, saves and exports.
// Tests whose name matches a catalog row fill that row; others are added
// as manual rows. The draft is discarded afterwards and returned for
// reference.
func (s *Service) Generate(ctx context.Context, input model.ReportInput, format string) (*render.Document, *model.Draft, error) {
	if input.ReportType == "" && len(input.Tests) > 0 {
		return nil, nil, apperrors.NewBadRequest("report_type is required when tests are given", nil)
	}

	draft, err := s.Create(ctx)
	if err != nil {
		return nil, nil, err
	}
	id := draft.ID
	defer func() {
		_ = s.Discard(context.WithoutCancel(ctx), id)
	}()

	if draft, err = s.UpdatePatient(ctx, id, input.Patient); err != nil {
		return nil, draft, err
	}

	if input.ReportType != "" {
		if draft, err = s.SelectReport(ctx, id, input.ReportType); err != nil {
			return nil, nil, err
		}
		if draft, err = s.fillTests(ctx, draft, input.Tests); err != nil {
			return nil, nil, err
		}
		if draft, err = s.SaveTests(ctx, id); err != nil {
			return nil, nil, err
		}
	}

	if input.Options != nil {
		opts := *input.Options
		upd := model.OptionsUpdate{
			IncludeHeader: &opts.IncludeHeader,
			IncludeFooter: &opts.IncludeFooter,
			Description:   &opts.Description,
		}
		if draft, err = s.SetOptions(ctx, id, upd); err != nil {
			return nil, nil, err
		}
	}

	doc, err := s.export(draft, format)
	if err != nil {
		return nil, draft, err
	}
	return doc, draft, nil
}

func (s *Service) fillTests(ctx context.Context, draft *model.Draft, tests []model.TestResultRow) (*model.Draft, error) {
	used := make(map[int]bool, len(tests))
	var err error

	for _, t := range tests {
		index := -1
		for i, row := range draft.Entry.Rows {
			if !used[i] && !row.Row.Manual() && strings.EqualFold(row.Row.Name(), t.Name) {
				index = i
				break
			}
		}

		if index < 0 {
			if draft, index, err = s.AddManualRow(ctx, draft.ID); err != nil {
				return nil, err
			}
			row := model.ManualRowRequest{Name: t.Name, Range: t.Range, Unit: t.Unit}
			if draft, err = s.EditManualRow(ctx, draft.ID, index, row); err != nil {
				return nil, err
			}
		}

		used[index] = true
		if draft, err = s.SetResult(ctx, draft.ID, index, t.Result); err != nil {
			return nil, err
		}
	}
	return draft, nil
}
