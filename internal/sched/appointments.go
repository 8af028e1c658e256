// Package sched enforces the appointment state machine:
// booked → confirmed → (completed | cancelled), with booked → cancelled
// also legal. Completed and cancelled are terminal.
package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/hmscore/internal/model"
	embedsql "github.com/gyeh/hmscore/internal/sql"
)

// Service performs appointment transitions under row locks so a
// concurrent transition sees either the before or the after state,
// never a half-applied one.
type Service struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func New(pool *pgxpool.Pool, log zerolog.Logger) *Service {
	return &Service{pool: pool, log: log}
}

// Create books an appointment for the patient. Patient-initiated
// creation always enters at booked with no physician; any
// caller-supplied physician is rejected rather than ignored.
func (s *Service) Create(ctx context.Context, patientID int64, physicianID *int64, at time.Time, notes string) (int64, error) {
	if physicianID != nil {
		return 0, fmt.Errorf("%w: appointments are created unassigned; physicians are assigned at confirmation", model.ErrInvalidTransition)
	}

	var id int64
	err := s.pool.QueryRow(ctx, embedsql.InsertAppointment, patientID, at, notes).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return 0, fmt.Errorf("%w: patient %d", model.ErrConstraint, patientID)
		}
		return 0, fmt.Errorf("insert appointment: %w", err)
	}

	s.log.Info().Int64("appointment_id", id).Int64("patient_id", patientID).Msg("appointment booked")
	return id, nil
}

// AssignAndConfirm sets the physician and moves booked → confirmed in
// one transition; a confirmed appointment without a physician is an
// invalid state, so the two changes are inseparable. Only an
// administrative caller may perform it.
func (s *Service) AssignAndConfirm(ctx context.Context, appointmentID, physicianID int64, caller model.Role) error {
	if caller != model.RoleAdmin {
		return fmt.Errorf("%w: role %s cannot assign physicians", model.ErrUnauthorized, caller)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		status, _, err := lockAppointment(ctx, tx, appointmentID)
		if err != nil {
			return err
		}
		if !model.CanTransition(status, model.StatusConfirmed) {
			return fmt.Errorf("%w: %s → confirmed", model.ErrInvalidTransition, status)
		}

		if _, err := tx.Exec(ctx, embedsql.ConfirmAppointment, appointmentID, physicianID); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return fmt.Errorf("%w: physician %d", model.ErrConstraint, physicianID)
			}
			return fmt.Errorf("confirm appointment: %w", err)
		}

		s.log.Info().
			Int64("appointment_id", appointmentID).
			Int64("physician_id", physicianID).
			Msg("appointment confirmed")
		return nil
	})
}

// Complete moves confirmed → completed. Completion signals the clinical
// work happened; it does not itself bill anything.
func (s *Service) Complete(ctx context.Context, appointmentID int64, caller model.Role) error {
	if caller != model.RoleAdmin && caller != model.RolePhysician {
		return fmt.Errorf("%w: role %s cannot complete appointments", model.ErrUnauthorized, caller)
	}
	return s.transition(ctx, appointmentID, model.StatusCompleted)
}

// Cancel moves booked or confirmed → cancelled. A patient may cancel
// before confirmation; after confirmation cancellation is an
// administrative action.
func (s *Service) Cancel(ctx context.Context, appointmentID int64, caller model.Role) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		status, _, err := lockAppointment(ctx, tx, appointmentID)
		if err != nil {
			return err
		}
		if !model.CanTransition(status, model.StatusCancelled) {
			return fmt.Errorf("%w: %s → cancelled", model.ErrInvalidTransition, status)
		}
		if status == model.StatusConfirmed && caller != model.RoleAdmin {
			return fmt.Errorf("%w: role %s cannot cancel a confirmed appointment", model.ErrUnauthorized, caller)
		}

		if _, err := tx.Exec(ctx, embedsql.SetAppointmentStatus, appointmentID, model.StatusCancelled); err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}
		s.log.Info().Int64("appointment_id", appointmentID).Msg("appointment cancelled")
		return nil
	})
}

// Get returns the appointment by id.
func (s *Service) Get(ctx context.Context, appointmentID int64) (*model.Appointment, error) {
	var a model.Appointment
	err := s.pool.QueryRow(ctx,
		`SELECT id, patient_id, physician_id, scheduled_at, status, notes, fee_cents
		 FROM appointments WHERE id = $1`, appointmentID).
		Scan(&a.ID, &a.PatientID, &a.PhysicianID, &a.ScheduledAt, &a.Status, &a.Notes, &a.FeeCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: appointment %d", model.ErrNotFound, appointmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return &a, nil
}

func (s *Service) transition(ctx context.Context, appointmentID int64, to model.AppointmentStatus) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		status, _, err := lockAppointment(ctx, tx, appointmentID)
		if err != nil {
			return err
		}
		if !model.CanTransition(status, to) {
			return fmt.Errorf("%w: %s → %s", model.ErrInvalidTransition, status, to)
		}

		if _, err := tx.Exec(ctx, embedsql.SetAppointmentStatus, appointmentID, to); err != nil {
			return fmt.Errorf("set status: %w", err)
		}
		s.log.Info().Int64("appointment_id", appointmentID).Str("status", string(to)).Msg("appointment transitioned")
		return nil
	})
}

func lockAppointment(ctx context.Context, tx pgx.Tx, appointmentID int64) (model.AppointmentStatus, *int64, error) {
	var status string
	var physicianID *int64
	err := tx.QueryRow(ctx, embedsql.LockAppointment, appointmentID).Scan(&status, &physicianID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, fmt.Errorf("%w: appointment %d", model.ErrNotFound, appointmentID)
	}
	if err != nil {
		return "", nil, fmt.Errorf("lock appointment: %w", err)
	}
	return model.AppointmentStatus(status), physicianID, nil
}
