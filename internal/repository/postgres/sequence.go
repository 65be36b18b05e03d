package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/labreport/internal/model"
	"github.com/jwalitptl/labreport/internal/repository"
)

type seriesRow struct {
	Date   string `db:"series_date"`
	Series int    `db:"series"`
}

type sequenceRepository struct {
	BaseRepository
	name string
}

// NewSequenceRepository stores the sequencer state as one row of
// patient_series. The row is locked with SELECT ... FOR UPDATE while it is
// advanced, so concurrent instances never hand out the same identifier.
func NewSequenceRepository(db *sqlx.DB) repository.SequenceRepository {
	return &sequenceRepository{BaseRepository: NewBaseRepository(db), name: repository.SequenceKey}
}

func (r *sequenceRepository) Backend() string { return "postgres" }

func (r *sequenceRepository) Get(ctx context.Context) (*model.SequencerState, error) {
	query := `SELECT series_date, series FROM patient_series WHERE name = $1`
	var row seriesRow
	err := r.db.GetContext(ctx, &row, query, r.name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sequence: %w", err)
	}
	return row.state(), nil
}

func (r *sequenceRepository) Advance(ctx context.Context, next func(prior *model.SequencerState) model.SequencerState) (model.SequencerState, error) {
	var out model.SequencerState
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		// Make sure there is a row to lock.
		seed := `INSERT INTO patient_series (name, series_date, series) VALUES ($1, '', 0) ON CONFLICT (name) DO NOTHING`
		if _, err := tx.ExecContext(ctx, seed, r.name); err != nil {
			return fmt.Errorf("failed to seed sequence: %w", err)
		}

		var row seriesRow
		lock := `SELECT series_date, series FROM patient_series WHERE name = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &row, lock, r.name); err != nil {
			return fmt.Errorf("failed to lock sequence: %w", err)
		}

		out = next(row.state())

		update := `UPDATE patient_series SET series_date = $2, series = $3, updated_at = NOW() WHERE name = $1`
		if _, err := tx.ExecContext(ctx, update, r.name, out.Date, out.Series); err != nil {
			return fmt.Errorf("failed to update sequence: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.SequencerState{}, err
	}
	return out, nil
}

// state maps the seeded placeholder row to "nothing stored".
func (r seriesRow) state() *model.SequencerState {
	if r.Date == "" {
		return nil
	}
	return &model.SequencerState{Date: r.Date, Series: r.Series}
}
