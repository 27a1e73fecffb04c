package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/scheduling"
)

type Appointment struct {
	Base
	ClinicID                uuid.UUID        `db:"clinic_id" json:"clinic_id"`
	PatientID               uuid.UUID        `db:"patient_id" json:"patient_id"`
	DoctorID                uuid.UUID        `db:"doctor_id" json:"doctor_id"`
	Date                    time.Time        `db:"date" json:"date"`
	AppointmentPriceInCents scheduling.Cents `db:"appointment_price_in_cents" json:"appointment_price_in_cents"`
}

// AppointmentDetails is an appointment with its patient and doctor loaded,
// as shown in the appointments table.
type AppointmentDetails struct {
	Appointment
	Patient AppointmentPatient `db:"patient" json:"patient"`
	Doctor  AppointmentDoctor  `db:"doctor" json:"doctor"`
}

type AppointmentPatient struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Email       string    `db:"email" json:"email"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	Sex         Sex       `db:"sex" json:"sex"`
}

type AppointmentDoctor struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Specialty string    `db:"specialty" json:"specialty"`
}

// CreateAppointmentRequest books a new appointment; time is mandatory.
type CreateAppointmentRequest struct {
	PatientID               string  `json:"patient_id" validate:"required,uuid"`
	DoctorID                string  `json:"doctor_id" validate:"required,uuid"`
	AppointmentPriceInCents *int64  `json:"appointment_price_in_cents,omitempty" validate:"omitempty,min=1"`
	AppointmentPrice        *string `json:"appointment_price,omitempty"`
	Date                    string  `json:"date" validate:"required"`
	Time                    string  `json:"time" validate:"required,hhmm"`
}

// UpsertAppointmentRequest updates when ID is present and inserts otherwise.
// Time is optional: without it the date is stored as given.
type UpsertAppointmentRequest struct {
	ID                      *uuid.UUID `json:"id,omitempty"`
	PatientID               string     `json:"patient_id" validate:"required,uuid"`
	DoctorID                string     `json:"doctor_id" validate:"required,uuid"`
	AppointmentPriceInCents *int64     `json:"appointment_price_in_cents,omitempty" validate:"omitempty,min=1"`
	AppointmentPrice        *string    `json:"appointment_price,omitempty"`
	Date                    string     `json:"date" validate:"required"`
	Time                    string     `json:"time,omitempty" validate:"omitempty,hhmm"`
}

// ActionResult is returned by every mutating command.
type ActionResult struct {
	Message string     `json:"message"`
	ID      *uuid.UUID `json:"id,omitempty"`
}
