package doctor

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
	"github.com/jwalitptl/clinic-api/internal/service/revalidate"
	"github.com/jwalitptl/clinic-api/internal/service/session"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const MsgNotFound = "Médico não encontrado."

// SlotConfig is the default working day offered by the booking form.
type SlotConfig struct {
	Start string
	End   string
	Step  time.Duration
}

type Service struct {
	repo   repository.DoctorRepository
	views  revalidate.Views
	slots  SlotConfig
	logger zerolog.Logger
}

func NewService(repo repository.DoctorRepository, views revalidate.Views, slots SlotConfig, logger zerolog.Logger) *Service {
	if slots.Start == "" {
		slots.Start = scheduling.DefaultSlotStart
	}
	if slots.End == "" {
		slots.End = scheduling.DefaultSlotEnd
	}
	if slots.Step <= 0 {
		slots.Step = scheduling.DefaultSlotStep
	}
	return &Service{
		repo:   repo,
		views:  views,
		slots:  slots,
		logger: logger.With().Str("component", "doctor").Logger(),
	}
}

func (s *Service) List(ctx context.Context, sess *model.Session) ([]*model.Doctor, error) {
	clinicID, err := session.RequireClinic(sess)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.views.Get(clinicID, revalidate.PathDoctors); ok {
		if list, ok := cached.([]*model.Doctor); ok {
			return list, nil
		}
	}

	gen := s.views.Generation(clinicID, revalidate.PathDoctors)
	list, err := s.repo.List(ctx, clinicID)
	if err != nil {
		return nil, apperrors.Store(fmt.Errorf("failed to list doctors: %w", err))
	}
	if list == nil {
		list = []*model.Doctor{}
	}
	s.views.Set(clinicID, revalidate.PathDoctors, gen, list)
	return list, nil
}

// Price is the doctor's rate, prefilled in the booking form.
func (s *Service) Price(ctx context.Context, sess *model.Session, id uuid.UUID) (scheduling.Price, error) {
	doctor, err := s.get(ctx, sess, id)
	if err != nil {
		return scheduling.Price{}, err
	}
	return doctor.DefaultPrice(), nil
}

// Slots lists the times offered for the doctor on any day. The doctor's own
// hours win when they are set; otherwise the configured day is used.
func (s *Service) Slots(ctx context.Context, sess *model.Session, id uuid.UUID) ([]string, error) {
	doctor, err := s.get(ctx, sess, id)
	if err != nil {
		return nil, err
	}

	if doctor.AvailableFromTime != "" && doctor.AvailableToTime != "" {
		slots, err := scheduling.DaySlots(doctor.AvailableFromTime, doctor.AvailableToTime, s.slots.Step)
		if err == nil {
			return slots, nil
		}
		s.logger.Warn().Err(err).Str("doctor_id", id.String()).Msg("ignoring doctor hours")
	}

	slots, err := scheduling.DaySlots(s.slots.Start, s.slots.End, s.slots.Step)
	if err != nil {
		return nil, fmt.Errorf("invalid slot configuration: %w", err)
	}
	return slots, nil
}

func (s *Service) get(ctx context.Context, sess *model.Session, id uuid.UUID) (*model.Doctor, error) {
	clinicID, err := session.RequireClinic(sess)
	if err != nil {
		return nil, err
	}
	doctor, err := s.repo.Get(ctx, clinicID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound(MsgNotFound, err)
	}
	if err != nil {
		return nil, apperrors.Store(fmt.Errorf("failed to get doctor: %w", err))
	}
	return doctor, nil
}
