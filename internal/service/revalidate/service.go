package revalidate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Paths whose cached views are refreshed after a mutation.
const (
	PathAppointments = "/appointments"
	PathPatients     = "/patients"
	PathDoctors      = "/doctors"
)

const messageType = "revalidate"

// Revalidator is signalled after every successful mutation. It never fails
// the command that triggered it.
type Revalidator interface {
	Revalidate(ctx context.Context, clinicID uuid.UUID, path string)
}

// Views is the listing cache read by the query side and evicted by
// Revalidate. A reader takes the Generation before loading from the store
// and passes it to Set; the view is dropped if a Revalidate happened since.
type Views interface {
	Revalidator
	Get(clinicID uuid.UUID, path string) (interface{}, bool)
	Generation(clinicID uuid.UUID, path string) uint64
	Set(clinicID uuid.UUID, path string, gen uint64, view interface{}) bool
}

// Event is broadcast to the other instances sharing the broker.
type Event struct {
	ClinicID uuid.UUID `json:"clinic_id"`
	Path     string    `json:"path"`
	Origin   string    `json:"origin"`
}

type Config struct {
	TTL             time.Duration
	CleanupInterval time.Duration
	Channel         string
	PublishTimeout  time.Duration
}

// Service caches rendered listings per clinic and path and evicts them on
// Revalidate, locally and on every peer subscribed to the broker.
type Service struct {
	mu      sync.Mutex
	gens    map[string]uint64
	views   *cache.Cache
	broker  messaging.Broker
	cfg     Config
	origin  string
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewService creates the view cache. broker may be nil for a single instance.
func NewService(cfg Config, broker messaging.Broker, m *metrics.Metrics, logger zerolog.Logger) *Service {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	return &Service{
		gens:    make(map[string]uint64),
		views:   cache.New(cfg.TTL, cfg.CleanupInterval),
		broker:  broker,
		cfg:     cfg,
		origin:  uuid.NewString(),
		metrics: m,
		logger:  logger.With().Str("component", "revalidate").Logger(),
	}
}

func key(clinicID uuid.UUID, path string) string {
	return clinicID.String() + ":" + path
}

// Get returns the cached view of path for the clinic.
func (s *Service) Get(clinicID uuid.UUID, path string) (interface{}, bool) {
	v, ok := s.views.Get(key(clinicID, path))
	s.metrics.ObserveListingCache(path, ok)
	return v, ok
}

// Generation changes on every eviction of the clinic's path.
func (s *Service) Generation(clinicID uuid.UUID, path string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[key(clinicID, path)]
}

// Set stores view unless the path was evicted after gen was taken, in which
// case the view may predate the mutation and is discarded.
func (s *Service) Set(clinicID uuid.UUID, path string, gen uint64, view interface{}) bool {
	k := key(clinicID, path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[k] != gen {
		return false
	}
	s.views.SetDefault(k, view)
	return true
}

func (s *Service) evict(clinicID uuid.UUID, path string) {
	k := key(clinicID, path)
	s.mu.Lock()
	s.gens[k]++
	s.views.Delete(k)
	s.mu.Unlock()
}

func (s *Service) Revalidate(ctx context.Context, clinicID uuid.UUID, path string) {
	s.evict(clinicID, path)
	s.metrics.ObserveRevalidation(path, "local")

	if s.broker == nil {
		return
	}

	msg := messaging.Message{
		Type:    messageType,
		Payload: Event{ClinicID: clinicID, Path: path, Origin: s.origin},
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), s.cfg.PublishTimeout)
		defer cancel()
		if err := s.broker.Publish(pubCtx, s.cfg.Channel, msg); err != nil {
			s.metrics.ObservePublishFailure()
			s.logger.Warn().Err(err).
				Str("clinic_id", clinicID.String()).
				Str("path", path).
				Msg("failed to broadcast revalidation")
		}
	}()
}

// Listen evicts views revalidated by peers until ctx is done.
func (s *Service) Listen(ctx context.Context) error {
	if s.broker == nil {
		return nil
	}
	return messaging.Consume(ctx, s.broker, s.cfg.Channel, s.handle, s.logger)
}

func (s *Service) handle(raw []byte) error {
	var msg struct {
		Type    string `json:"type"`
		Payload Event  `json:"payload"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("invalid revalidation message: %w", err)
	}
	if msg.Type != messageType || msg.Payload.Origin == s.origin {
		return nil
	}
	s.evict(msg.Payload.ClinicID, msg.Payload.Path)
	s.metrics.ObserveRevalidation(msg.Payload.Path, "peer")
	return nil
}
