// Package registry creates and looks up the identity rows everything
// else references. Patients are never deleted while referencing rows
// exist; the schema's foreign keys enforce that.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/hmscore/internal/model"
	embedsql "github.com/gyeh/hmscore/internal/sql"
)

type Service struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func New(pool *pgxpool.Pool, log zerolog.Logger) *Service {
	return &Service{pool: pool, log: log}
}

// NewPatient carries the demographic fields for patient creation.
type NewPatient struct {
	FirstName   string
	LastName    string
	DOB         *time.Time
	Phone       string
	Address     string
	PhysicianID *int64
	Department  string
}

func (s *Service) CreatePatient(ctx context.Context, np NewPatient) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, embedsql.InsertPatient,
		np.FirstName, np.LastName, np.DOB, np.Phone, np.Address, np.PhysicianID, np.Department,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert patient: %w", err)
	}
	s.log.Info().Int64("patient_id", id).Msg("patient registered")
	return id, nil
}

// NewPhysician carries the credential fields for physician creation.
type NewPhysician struct {
	FirstName      string
	LastName       string
	Specialization string
	Contact        string
	Department     string
	Availability   string
}

func (s *Service) CreatePhysician(ctx context.Context, np NewPhysician) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, embedsql.InsertPhysician,
		np.FirstName, np.LastName, np.Specialization, np.Contact, np.Department, np.Availability,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert physician: %w", err)
	}
	s.log.Info().Int64("physician_id", id).Msg("physician registered")
	return id, nil
}

// GetPatient returns the patient by id.
func (s *Service) GetPatient(ctx context.Context, id int64) (*model.Patient, error) {
	var p model.Patient
	err := s.pool.QueryRow(ctx,
		`SELECT id, first_name, last_name, dob, phone, address, physician_id, department, created_at
		 FROM patients WHERE id = $1`, id).
		Scan(&p.ID, &p.FirstName, &p.LastName, &p.DOB, &p.Phone, &p.Address,
			&p.PhysicianID, &p.Department, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: patient %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return &p, nil
}
