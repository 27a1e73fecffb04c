package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/scheduling"
	"github.com/jwalitptl/clinic-api/internal/service/notification"
	"github.com/jwalitptl/clinic-api/internal/service/revalidate"
	"github.com/jwalitptl/clinic-api/internal/service/session"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

const (
	MsgCreated = "Agendamento criado com sucesso!"
	MsgUpdated = "Agendamento atualizado com sucesso!"
	MsgDeleted = "Agendamento deletado com sucesso!"

	MsgNotFound        = "Agendamento não encontrado."
	MsgPatientNotFound = "Paciente não encontrado."
	MsgDoctorNotFound  = "Médico não encontrado."
	MsgDoubleBooked    = "Médico já possui um agendamento neste horário."
)

var errInvalidRequest = apperrors.NewBadRequest("Requisição inválida.", nil)

var fieldMessages = map[string]string{
	"patient_id.required":            scheduling.MsgPatientRequired,
	"patient_id.uuid":                scheduling.MsgPatientRequired,
	"doctor_id.required":             scheduling.MsgDoctorRequired,
	"doctor_id.uuid":                 scheduling.MsgDoctorRequired,
	"appointment_price_in_cents.min": scheduling.MsgPriceRequired,
	"date.required":                  scheduling.MsgDateRequired,
	"time.required":                  scheduling.MsgTimeRequired,
	"time.hhmm":                      scheduling.MsgTimeInvalid,
}

// Values are the validated fields shared by both commands.
type Values struct {
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	Date         time.Time
	PriceInCents scheduling.Cents
}

// Command is either InsertAppointment or UpdateAppointment. Each maps to
// exactly one write.
type Command interface {
	isCommand()
}

type InsertAppointment struct {
	Values
}

type UpdateAppointment struct {
	ID uuid.UUID
	Values
}

func (InsertAppointment) isCommand() {}
func (UpdateAppointment) isCommand() {}

type Config struct {
	Location            *time.Location
	RejectDoubleBooking bool
}

type Service struct {
	appointments repository.AppointmentRepository
	patients     repository.PatientRepository
	doctors      repository.DoctorRepository
	views        revalidate.Views
	notifier     notification.Service
	validator    validator.Validator
	cfg          Config
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

func NewService(
	appointments repository.AppointmentRepository,
	patients repository.PatientRepository,
	doctors repository.DoctorRepository,
	views revalidate.Views,
	notifier notification.Service,
	cfg Config,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if notifier == nil {
		notifier = notification.NewNoop()
	}
	return &Service{
		appointments: appointments,
		patients:     patients,
		doctors:      doctors,
		views:        views,
		notifier:     notifier,
		validator:    validator.New(fieldMessages),
		cfg:          cfg,
		metrics:      m,
		logger:       logger.With().Str("component", "appointment").Logger(),
	}
}

// Create books a new appointment for the caller's clinic. Time is required.
func (s *Service) Create(ctx context.Context, sess *model.Session, req *model.CreateAppointmentRequest) (result *model.ActionResult, err error) {
	defer s.observe("create", time.Now(), &err)

	clinicID, err := session.RequireClinic(sess)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errInvalidRequest
	}

	values, err := s.values(req, req.PatientID, req.DoctorID, req.AppointmentPriceInCents, req.AppointmentPrice, req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	return s.execute(ctx, clinicID, InsertAppointment{Values: values})
}

// Upsert updates the appointment when req.ID is set and inserts otherwise.
// Without a time the parsed date is stored as given.
func (s *Service) Upsert(ctx context.Context, sess *model.Session, req *model.UpsertAppointmentRequest) (result *model.ActionResult, err error) {
	op := "insert"
	if req != nil && req.ID != nil {
		op = "update"
	}
	defer s.observe(op, time.Now(), &err)

	clinicID, err := session.RequireClinic(sess)
	if err != nil {
		return nil, err
	}

	cmd, err := s.command(req)
	if err != nil {
		return nil, err
	}

	return s.execute(ctx, clinicID, cmd)
}

// command builds the tagged command from an upsert request.
func (s *Service) command(req *model.UpsertAppointmentRequest) (Command, error) {
	if req == nil {
		return nil, errInvalidRequest
	}
	values, err := s.values(req, req.PatientID, req.DoctorID, req.AppointmentPriceInCents, req.AppointmentPrice, req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	if req.ID != nil {
		return UpdateAppointment{ID: *req.ID, Values: values}, nil
	}
	return InsertAppointment{Values: values}, nil
}

// values validates the request and collects every failing field before
// returning.
func (s *Service) values(req interface{}, patientID, doctorID string, cents *int64, display *string, date, hhmm string) (Values, error) {
	fields := s.validator.Fields(req)
	failed := make(map[string]bool, len(fields))
	for _, f := range fields {
		failed[f.Field] = true
	}
	add := func(more []apperrors.FieldError) {
		for _, f := range more {
			if !failed[f.Field] {
				failed[f.Field] = true
				fields = append(fields, f)
			}
		}
	}

	var v Values
	v.PatientID, _ = uuid.Parse(patientID)
	v.DoctorID, _ = uuid.Parse(doctorID)

	price, err := resolvePrice(cents, display)
	if err != nil && !failed["appointment_price_in_cents"] {
		add(apperrors.FieldsOf(err))
	}
	v.PriceInCents = price

	if !failed["date"] {
		d, err := scheduling.ParseDate(date, s.cfg.Location)
		if err != nil {
			add(apperrors.FieldsOf(err))
		} else {
			v.Date = d
		}
	}

	if hhmm != "" && !failed["time"] && !failed["date"] {
		at, err := scheduling.CombineDateAndTime(v.Date, hhmm, s.cfg.Location)
		if err != nil {
			add(apperrors.FieldsOf(err))
		} else {
			v.Date = at
		}
	}

	if len(fields) > 0 {
		return Values{}, apperrors.NewValidation(fields...)
	}
	return v, nil
}

// resolvePrice prefers integer cents and falls back to a decimal amount.
func resolvePrice(cents *int64, display *string) (scheduling.Cents, error) {
	if cents != nil {
		return scheduling.Cents(*cents), nil
	}
	if display != nil && *display != "" {
		c, err := scheduling.ParsePrice(*display)
		if err != nil {
			return 0, err
		}
		if c < 1 {
			return 0, apperrors.NewFieldValidation("appointment_price", scheduling.MsgPriceRequired)
		}
		return c, nil
	}
	return 0, apperrors.NewFieldValidation("appointment_price_in_cents", scheduling.MsgPriceRequired)
}

func (s *Service) execute(ctx context.Context, clinicID uuid.UUID, cmd Command) (*model.ActionResult, error) {
	switch c := cmd.(type) {
	case InsertAppointment:
		return s.insert(ctx, clinicID, c)
	case UpdateAppointment:
		return s.update(ctx, clinicID, c)
	default:
		return nil, fmt.Errorf("unknown appointment command %T", cmd)
	}
}

func (s *Service) insert(ctx context.Context, clinicID uuid.UUID, cmd InsertAppointment) (*model.ActionResult, error) {
	patient, doctor, err := s.references(ctx, clinicID, cmd.Values)
	if err != nil {
		return nil, err
	}
	if err := s.checkSlot(ctx, clinicID, cmd.Values, nil); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	apt := &model.Appointment{
		Base:                    model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		ClinicID:                clinicID,
		PatientID:               cmd.PatientID,
		DoctorID:                cmd.DoctorID,
		Date:                    cmd.Date,
		AppointmentPriceInCents: cmd.PriceInCents,
	}
	if err := s.appointments.Create(ctx, apt); err != nil {
		return nil, s.storeError(err, "create", apt.ID)
	}

	s.views.Revalidate(ctx, clinicID, revalidate.PathAppointments)
	s.notifier.AppointmentBooked(ctx, patient, doctor, apt)

	s.logger.Info().
		Str("appointment_id", apt.ID.String()).
		Str("clinic_id", clinicID.String()).
		Time("date", apt.Date).
		Msg("appointment created")

	return &model.ActionResult{Message: MsgCreated, ID: &apt.ID}, nil
}

func (s *Service) update(ctx context.Context, clinicID uuid.UUID, cmd UpdateAppointment) (*model.ActionResult, error) {
	if _, _, err := s.references(ctx, clinicID, cmd.Values); err != nil {
		return nil, err
	}
	if err := s.checkSlot(ctx, clinicID, cmd.Values, &cmd.ID); err != nil {
		return nil, err
	}

	apt := &model.Appointment{
		Base:                    model.Base{ID: cmd.ID, UpdatedAt: time.Now().UTC()},
		ClinicID:                clinicID,
		PatientID:               cmd.PatientID,
		DoctorID:                cmd.DoctorID,
		Date:                    cmd.Date,
		AppointmentPriceInCents: cmd.PriceInCents,
	}
	if err := s.appointments.Update(ctx, apt); err != nil {
		return nil, s.storeError(err, "update", cmd.ID)
	}

	s.views.Revalidate(ctx, clinicID, revalidate.PathAppointments)

	id := cmd.ID
	return &model.ActionResult{Message: MsgUpdated, ID: &id}, nil
}

// Delete removes the appointment if it belongs to the caller's clinic.
func (s *Service) Delete(ctx context.Context, sess *model.Session, id uuid.UUID) (result *model.ActionResult, err error) {
	defer s.observe("delete", time.Now(), &err)

	clinicID, err := session.RequireClinic(sess)
	if err != nil {
		return nil, err
	}

	if err := s.appointments.Delete(ctx, clinicID, id); err != nil {
		return nil, s.storeError(err, "delete", id)
	}

	s.views.Revalidate(ctx, clinicID, revalidate.PathAppointments)
	return &model.ActionResult{Message: MsgDeleted}, nil
}

// List returns the clinic's appointments with patient and doctor, newest
// first. The result is served from the view cache until revalidated.
func (s *Service) List(ctx context.Context, sess *model.Session) (result []*model.AppointmentDetails, err error) {
	defer s.observe("list", time.Now(), &err)

	clinicID, err := session.RequireClinic(sess)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.views.Get(clinicID, revalidate.PathAppointments); ok {
		if list, ok := cached.([]*model.AppointmentDetails); ok {
			return list, nil
		}
	}

	gen := s.views.Generation(clinicID, revalidate.PathAppointments)
	list, err := s.appointments.ListWithRelations(ctx, clinicID)
	if err != nil {
		return nil, apperrors.Store(fmt.Errorf("failed to list appointments: %w", err))
	}
	if list == nil {
		list = []*model.AppointmentDetails{}
	}
	s.views.Set(clinicID, revalidate.PathAppointments, gen, list)
	return list, nil
}

// references loads the patient and doctor from the caller's clinic. Ids from
// another clinic are reported as missing.
func (s *Service) references(ctx context.Context, clinicID uuid.UUID, v Values) (*model.Patient, *model.Doctor, error) {
	var fields []apperrors.FieldError

	patient, err := s.patients.Get(ctx, clinicID, v.PatientID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		fields = append(fields, apperrors.FieldError{Field: "patient_id", Message: MsgPatientNotFound})
	case err != nil:
		return nil, nil, apperrors.Store(fmt.Errorf("failed to get patient: %w", err))
	}

	doctor, err := s.doctors.Get(ctx, clinicID, v.DoctorID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		fields = append(fields, apperrors.FieldError{Field: "doctor_id", Message: MsgDoctorNotFound})
	case err != nil:
		return nil, nil, apperrors.Store(fmt.Errorf("failed to get doctor: %w", err))
	}

	if len(fields) > 0 {
		return nil, nil, apperrors.NewValidation(fields...)
	}
	return patient, doctor, nil
}

func (s *Service) checkSlot(ctx context.Context, clinicID uuid.UUID, v Values, exclude *uuid.UUID) error {
	if !s.cfg.RejectDoubleBooking {
		return nil
	}
	taken, err := s.appointments.ExistsAt(ctx, clinicID, v.DoctorID, v.Date, exclude)
	if err != nil {
		return apperrors.Store(fmt.Errorf("failed to check slot: %w", err))
	}
	if taken {
		return apperrors.NewConflict(MsgDoubleBooked)
	}
	return nil
}

func (s *Service) storeError(err error, op string, id uuid.UUID) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(MsgNotFound, err)
	}
	return apperrors.Store(fmt.Errorf("failed to %s appointment %s: %w", op, id, err))
}

func (s *Service) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveCommand("appointment."+op, apperrors.Label(*err), start)
}
