package model

import "github.com/google/uuid"

// User is the authenticated operator of a clinic.
type User struct {
	Base
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
}

// Session is the resolved identity of a request. Clinic is nil when the user
// has not been attached to a clinic yet.
type Session struct {
	User   SessionUser    `json:"user"`
	Clinic *SessionClinic `json:"clinic,omitempty"`
}

type SessionUser struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name,omitempty"`
	Email string    `json:"email,omitempty"`
}

type SessionClinic struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Name string    `json:"name" db:"name"`
}

// ClinicID returns the tenant of the session, if any.
func (s *Session) ClinicID() (uuid.UUID, bool) {
	if s == nil || s.Clinic == nil || s.Clinic.ID == uuid.Nil {
		return uuid.Nil, false
	}
	return s.Clinic.ID, true
}
