package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// ErrNotFound is returned when a clinic scoped lookup, update or delete
// matches no row.
var ErrNotFound = errors.New("record not found")

// All repository interfaces in one file. Every tenant owned operation takes
// the clinic id and filters on it.
type (
	ClinicRepository interface {
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.SessionClinic, error)
	}

	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	}

	DoctorRepository interface {
		Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Doctor, error)
		List(ctx context.Context, clinicID uuid.UUID) ([]*model.Doctor, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, clinicID, id uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		// Delete removes the patient and its appointments atomically.
		Delete(ctx context.Context, clinicID, id uuid.UUID) error
		List(ctx context.Context, clinicID uuid.UUID) ([]*model.Patient, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Update(ctx context.Context, appointment *model.Appointment) error
		Delete(ctx context.Context, clinicID, id uuid.UUID) error
		ListWithRelations(ctx context.Context, clinicID uuid.UUID) ([]*model.AppointmentDetails, error)
		// ExistsAt reports whether the doctor already has an appointment at the
		// exact instant, ignoring excludeID.
		ExistsAt(ctx context.Context, clinicID, doctorID uuid.UUID, at time.Time, excludeID *uuid.UUID) (bool, error)
	}
)
