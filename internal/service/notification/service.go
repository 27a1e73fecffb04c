package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

const (
	maxRetries = 3
	retryDelay = 5 * time.Second
	sendBudget = time.Minute
)

const confirmationSubject = "Confirmação de agendamento"

var confirmationTemplate = template.Must(template.New("confirmation").Parse(
	`<p>Olá, {{.Patient}}!</p>
<p>Seu agendamento com {{.Doctor}} ({{.Specialty}}) foi confirmado para {{.When}}.</p>
<p>Valor da consulta: R$ {{.Price}}</p>`))

// Service notifies patients about their bookings.
type Service interface {
	AppointmentBooked(ctx context.Context, patient *model.Patient, doctor *model.Doctor, apt *model.Appointment)
}

type service struct {
	emailSvc   email.Service
	loc        *time.Location
	retryDelay time.Duration
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

func NewService(emailSvc email.Service, loc *time.Location, m *metrics.Metrics, logger zerolog.Logger) Service {
	if loc == nil {
		loc = time.Local
	}
	return &service{
		emailSvc:   emailSvc,
		loc:        loc,
		retryDelay: retryDelay,
		metrics:    m,
		logger:     logger.With().Str("component", "notification").Logger(),
	}
}

// AppointmentBooked sends the confirmation asynchronously. Delivery failures
// are logged and never reach the caller.
func (s *service) AppointmentBooked(_ context.Context, patient *model.Patient, doctor *model.Doctor, apt *model.Appointment) {
	if patient == nil || doctor == nil || apt == nil || patient.Email == "" {
		return
	}

	body, err := s.render(patient, doctor, apt)
	if err != nil {
		s.logger.Error().Err(err).Str("appointment_id", apt.ID.String()).Msg("failed to render confirmation")
		return
	}

	go s.deliver(patient.Email, apt.ID.String(), body)
}

func (s *service) render(patient *model.Patient, doctor *model.Doctor, apt *model.Appointment) (string, error) {
	var buf bytes.Buffer
	err := confirmationTemplate.Execute(&buf, map[string]string{
		"Patient":   patient.Name,
		"Doctor":    doctor.Name,
		"Specialty": doctor.Specialty,
		"When":      apt.Date.In(s.loc).Format("02/01/2006 15:04"),
		"Price":     apt.AppointmentPriceInCents.String(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render confirmation: %w", err)
	}
	return buf.String(), nil
}

func (s *service) deliver(to, appointmentID, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), sendBudget)
	defer cancel()

	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = s.emailSvc.SendCustom(ctx, to, confirmationSubject, body); err == nil {
			s.metrics.ObserveEmail("sent")
			return
		}
		s.logger.Warn().Err(err).Int("attempt", attempt).Str("appointment_id", appointmentID).Msg("confirmation e-mail failed")

		select {
		case <-time.After(s.retryDelay * time.Duration(attempt)):
		case <-ctx.Done():
			s.metrics.ObserveEmail("failed")
			return
		}
	}
	s.metrics.ObserveEmail("failed")
	s.logger.Error().Err(err).Str("appointment_id", appointmentID).Msg("giving up on confirmation e-mail")
}

type noop struct{}

// NewNoop returns a Service that drops every notification.
func NewNoop() Service { return noop{} }

func (noop) AppointmentBooked(context.Context, *model.Patient, *model.Doctor, *model.Appointment) {}
