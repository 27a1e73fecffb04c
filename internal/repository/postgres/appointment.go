package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, clinic_id, patient_id, doctor_id, date,
			appointment_price_in_cents, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	now := time.Now()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.ClinicID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.Date,
		appointment.AppointmentPriceInCents,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("failed to create appointment: %w", repository.ErrNotFound)
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

// Update rewrites every mutable column of an appointment owned by
// appointment.ClinicID.
func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET patient_id = $1, doctor_id = $2, date = $3,
			appointment_price_in_cents = $4, clinic_id = $5, updated_at = $6
		WHERE id = $7 AND clinic_id = $5
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.Date,
		appointment.AppointmentPriceInCents,
		appointment.ClinicID,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("failed to update appointment: %w", repository.ErrNotFound)
		}
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	if err := checkRowsAffected(result); err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM appointments WHERE id = $1 AND clinic_id = $2`,
		id, clinicID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	if err := checkRowsAffected(result); err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) ListWithRelations(ctx context.Context, clinicID uuid.UUID) ([]*model.AppointmentDetails, error) {
	query := `
		SELECT
			a.id, a.clinic_id, a.patient_id, a.doctor_id, a.date,
			a.appointment_price_in_cents, a.created_at, a.updated_at,
			p.id AS "patient.id", p.name AS "patient.name", p.email AS "patient.email",
			p.phone_number AS "patient.phone_number", p.sex AS "patient.sex",
			d.id AS "doctor.id", d.name AS "doctor.name", d.specialty AS "doctor.specialty"
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.clinic_id = $1
		ORDER BY a.date DESC
	`
	var appointments []*model.AppointmentDetails
	if err := r.db.SelectContext(ctx, &appointments, query, clinicID); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ExistsAt(ctx context.Context, clinicID, doctorID uuid.UUID, at time.Time, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE clinic_id = $1 AND doctor_id = $2 AND date = $3
			AND ($4::uuid IS NULL OR id <> $4::uuid)
		)
	`
	var exclude interface{}
	if excludeID != nil {
		exclude = *excludeID
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, clinicID, doctorID, at, exclude); err != nil {
		return false, fmt.Errorf("failed to check appointment slot: %w", err)
	}
	return exists, nil
}
