package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/revalidate"
	"github.com/jwalitptl/clinic-api/internal/service/session"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

const (
	MsgCreated  = "Paciente criado com sucesso!"
	MsgUpdated  = "Paciente atualizado com sucesso!"
	MsgDeleted  = "Paciente excluído com sucesso!"
	MsgNotFound = "Paciente não encontrado."
)

var fieldMessages = map[string]string{
	"name.required":         "Nome é obrigatório.",
	"email.required":        "Email é obrigatório.",
	"email.email":           "Email inválido.",
	"phone_number.required": "Telefone é obrigatório.",
	"sex.required":          "Selecione o sexo.",
	"sex.oneof":             "Sexo inválido.",
}

type PatientService interface {
	Upsert(ctx context.Context, sess *model.Session, req *model.UpsertPatientRequest) (*model.ActionResult, error)
	Delete(ctx context.Context, sess *model.Session, id uuid.UUID) (*model.ActionResult, error)
	List(ctx context.Context, sess *model.Session) ([]*model.Patient, error)
}

// Command is either InsertPatient or UpdatePatient.
type Command interface {
	isCommand()
}

type InsertPatient struct {
	Fields model.UpsertPatientRequest
}

type UpdatePatient struct {
	ID     uuid.UUID
	Fields model.UpsertPatientRequest
}

func (InsertPatient) isCommand() {}
func (UpdatePatient) isCommand() {}

type Service struct {
	repo      repository.PatientRepository
	views     revalidate.Views
	validator validator.Validator
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func NewService(repo repository.PatientRepository, views revalidate.Views, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		views:     views,
		validator: validator.New(fieldMessages),
		metrics:   m,
		logger:    logger.With().Str("component", "patient").Logger(),
	}
}

// Upsert inserts a patient into the caller's clinic, or updates it when the
// request carries an id.
func (s *Service) Upsert(ctx context.Context, sess *model.Session, req *model.UpsertPatientRequest) (result *model.ActionResult, err error) {
	op := "insert"
	if req != nil && req.ID != nil {
		op = "update"
	}
	defer func(start time.Time) { s.metrics.ObserveCommand("patient."+op, apperrors.Label(err), start) }(time.Now())

	clinicID, err := session.RequireClinic(sess)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperrors.NewBadRequest("Requisição inválida.", nil)
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var cmd Command = InsertPatient{Fields: *req}
	if req.ID != nil {
		cmd = UpdatePatient{ID: *req.ID, Fields: *req}
	}

	switch c := cmd.(type) {
	case InsertPatient:
		return s.insert(ctx, clinicID, c)
	case UpdatePatient:
		return s.update(ctx, clinicID, c)
	default:
		return nil, fmt.Errorf("unknown patient command %T", cmd)
	}
}

func (s *Service) insert(ctx context.Context, clinicID uuid.UUID, cmd InsertPatient) (*model.ActionResult, error) {
	patient := &model.Patient{
		Base:        model.Base{ID: uuid.New()},
		ClinicID:    clinicID,
		Name:        cmd.Fields.Name,
		Email:       cmd.Fields.Email,
		PhoneNumber: cmd.Fields.PhoneNumber,
		Sex:         model.Sex(cmd.Fields.Sex),
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, apperrors.Store(fmt.Errorf("failed to create patient: %w", err))
	}

	s.views.Revalidate(ctx, clinicID, revalidate.PathPatients)
	s.logger.Info().Str("patient_id", patient.ID.String()).Str("clinic_id", clinicID.String()).Msg("patient created")
	return &model.ActionResult{Message: MsgCreated, ID: &patient.ID}, nil
}

func (s *Service) update(ctx context.Context, clinicID uuid.UUID, cmd UpdatePatient) (*model.ActionResult, error) {
	patient := &model.Patient{
		Base:        model.Base{ID: cmd.ID, UpdatedAt: time.Now().UTC()},
		ClinicID:    clinicID,
		Name:        cmd.Fields.Name,
		Email:       cmd.Fields.Email,
		PhoneNumber: cmd.Fields.PhoneNumber,
		Sex:         model.Sex(cmd.Fields.Sex),
	}
	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, storeError(err)
	}

	// Patient names are shown in the appointments table too.
	s.views.Revalidate(ctx, clinicID, revalidate.PathPatients)
	s.views.Revalidate(ctx, clinicID, revalidate.PathAppointments)

	id := cmd.ID
	return &model.ActionResult{Message: MsgUpdated, ID: &id}, nil
}

// Delete removes the patient and every appointment referencing it.
func (s *Service) Delete(ctx context.Context, sess *model.Session, id uuid.UUID) (result *model.ActionResult, err error) {
	defer func(start time.Time) { s.metrics.ObserveCommand("patient.delete", apperrors.Label(err), start) }(time.Now())

	clinicID, err := session.RequireClinic(sess)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Delete(ctx, clinicID, id); err != nil {
		return nil, storeError(err)
	}

	s.views.Revalidate(ctx, clinicID, revalidate.PathPatients)
	s.views.Revalidate(ctx, clinicID, revalidate.PathAppointments)
	s.logger.Info().Str("patient_id", id.String()).Str("clinic_id", clinicID.String()).Msg("patient deleted")
	return &model.ActionResult{Message: MsgDeleted}, nil
}

func (s *Service) List(ctx context.Context, sess *model.Session) (result []*model.Patient, err error) {
	defer func(start time.Time) { s.metrics.ObserveCommand("patient.list", apperrors.Label(err), start) }(time.Now())

	clinicID, err := session.RequireClinic(sess)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.views.Get(clinicID, revalidate.PathPatients); ok {
		if list, ok := cached.([]*model.Patient); ok {
			return list, nil
		}
	}

	gen := s.views.Generation(clinicID, revalidate.PathPatients)
	list, err := s.repo.List(ctx, clinicID)
	if err != nil {
		return nil, apperrors.Store(fmt.Errorf("failed to list patients: %w", err))
	}
	if list == nil {
		list = []*model.Patient{}
	}
	s.views.Set(clinicID, revalidate.PathPatients, gen, list)
	return list, nil
}

func storeError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(MsgNotFound, err)
	}
	return apperrors.Store(err)
}
