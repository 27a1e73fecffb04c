package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// Claims carried by the bearer token. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Resolver turns request credentials into a Session.
type Resolver interface {
	GetSession(ctx context.Context, header http.Header) (*model.Session, error)
}

type Config struct {
	Secret        string
	Issuer        string
	MembershipTTL time.Duration
	CleanupPeriod time.Duration
}

type Service struct {
	secret  []byte
	issuer  string
	clinics repository.ClinicRepository
	cache   *cache.Cache
	logger  zerolog.Logger
}

func NewService(cfg Config, clinics repository.ClinicRepository, logger zerolog.Logger) *Service {
	return &Service{
		secret:  []byte(cfg.Secret),
		issuer:  cfg.Issuer,
		clinics: clinics,
		cache:   cache.New(cfg.MembershipTTL, cfg.CleanupPeriod),
		logger:  logger.With().Str("component", "session").Logger(),
	}
}

// GetSession returns nil without error when the request carries no valid
// credentials. A user without a clinic gets a session with a nil Clinic.
func (s *Service) GetSession(ctx context.Context, header http.Header) (*model.Session, error) {
	token := bearerToken(header)
	if token == "" {
		return nil, nil
	}

	claims, err := s.parse(token)
	if err != nil {
		s.logger.Debug().Err(err).Msg("rejected bearer token")
		return nil, nil
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		s.logger.Debug().Str("subject", claims.Subject).Msg("token subject is not a user id")
		return nil, nil
	}

	sess := &model.Session{
		User: model.SessionUser{ID: userID, Name: claims.Name, Email: claims.Email},
	}

	clinic, err := s.clinicFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	sess.Clinic = clinic
	return sess, nil
}

// clinicFor caches the membership for MembershipTTL; a user moved to another
// clinic keeps the old one until the entry expires.
func (s *Service) clinicFor(ctx context.Context, userID uuid.UUID) (*model.SessionClinic, error) {
	key := userID.String()
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.SessionClinic), nil
	}

	clinic, err := s.clinics.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve clinic: %w", err)
	}

	s.cache.SetDefault(key, clinic)
	return clinic, nil
}

func (s *Service) parse(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Issue signs a token for the user. Used by the CLI and tests; the sign-in
// flow itself lives outside this service.
func (s *Service) Issue(user model.SessionUser, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:  user.Name,
		Email: user.Email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func bearerToken(header http.Header) string {
	auth := header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireClinic checks the session before any store access: no session is
// Unauthorized and a session without a clinic is TenantNotFound.
func RequireClinic(sess *model.Session) (uuid.UUID, error) {
	if sess == nil {
		return uuid.Nil, apperrors.Unauthorized(nil)
	}
	clinicID, ok := sess.ClinicID()
	if !ok {
		return uuid.Nil, apperrors.TenantNotFound()
	}
	return clinicID, nil
}
