package session

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type fakeClinics struct {
	getByUserIDFn func(ctx context.Context, userID uuid.UUID) (*model.SessionClinic, error)
	calls         atomic.Int32
}

func (f *fakeClinics) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.SessionClinic, error) {
	f.calls.Add(1)
	return f.getByUserIDFn(ctx, userID)
}

func newTestService(clinics repository.ClinicRepository) *Service {
	return NewService(Config{
		Secret:        "test-secret",
		Issuer:        "clinic-api",
		MembershipTTL: time.Minute,
		CleanupPeriod: time.Minute,
	}, clinics, zerolog.Nop())
}

func headerWith(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func TestGetSessionWithoutCredentials(t *testing.T) {
	clinics := &fakeClinics{}
	svc := newTestService(clinics)

	sess, err := svc.GetSession(context.Background(), http.Header{})
	require.NoError(t, err)
	assert.Nil(t, sess)

	sess, err = svc.GetSession(context.Background(), headerWith("not-a-jwt"))
	require.NoError(t, err)
	assert.Nil(t, sess)

	assert.Equal(t, int32(0), clinics.calls.Load())
}

func TestGetSessionResolvesClinic(t *testing.T) {
	userID, clinicID := uuid.New(), uuid.New()
	clinics := &fakeClinics{
		getByUserIDFn: func(ctx context.Context, id uuid.UUID) (*model.SessionClinic, error) {
			assert.Equal(t, userID, id)
			return &model.SessionClinic{ID: clinicID, Name: "Clínica Central"}, nil
		},
	}
	svc := newTestService(clinics)

	token, err := svc.Issue(model.SessionUser{ID: userID, Email: "ana@example.com"}, time.Hour)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		sess, err := svc.GetSession(context.Background(), headerWith(token))
		require.NoError(t, err)
		require.NotNil(t, sess)
		id, ok := sess.ClinicID()
		assert.True(t, ok)
		assert.Equal(t, clinicID, id)
		assert.Equal(t, "ana@example.com", sess.User.Email)
	}

	assert.Equal(t, int32(1), clinics.calls.Load(), "membership should be cached")
}

func TestGetSessionReloadsMembershipAfterTTL(t *testing.T) {
	userID := uuid.New()
	clinics := &fakeClinics{
		getByUserIDFn: func(ctx context.Context, id uuid.UUID) (*model.SessionClinic, error) {
			return &model.SessionClinic{ID: uuid.New()}, nil
		},
	}
	svc := NewService(Config{Secret: "test-secret", Issuer: "clinic-api", MembershipTTL: 20 * time.Millisecond, CleanupPeriod: time.Minute}, clinics, zerolog.Nop())
	token, err := svc.Issue(model.SessionUser{ID: userID}, time.Hour)
	require.NoError(t, err)

	_, err = svc.GetSession(context.Background(), headerWith(token))
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)
	_, err = svc.GetSession(context.Background(), headerWith(token))
	require.NoError(t, err)

	assert.Equal(t, int32(2), clinics.calls.Load())
}

func TestGetSessionUserWithoutClinic(t *testing.T) {
	clinics := &fakeClinics{
		getByUserIDFn: func(ctx context.Context, id uuid.UUID) (*model.SessionClinic, error) {
			return nil, repository.ErrNotFound
		},
	}
	svc := newTestService(clinics)
	token, err := svc.Issue(model.SessionUser{ID: uuid.New()}, time.Hour)
	require.NoError(t, err)

	sess, err := svc.GetSession(context.Background(), headerWith(token))
	require.NoError(t, err)
	require.NotNil(t, sess)
	_, ok := sess.ClinicID()
	assert.False(t, ok)
}

func TestGetSessionStoreFailure(t *testing.T) {
	clinics := &fakeClinics{
		getByUserIDFn: func(ctx context.Context, id uuid.UUID) (*model.SessionClinic, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newTestService(clinics)
	token, err := svc.Issue(model.SessionUser{ID: uuid.New()}, time.Hour)
	require.NoError(t, err)

	_, err = svc.GetSession(context.Background(), headerWith(token))
	assert.Error(t, err)
}

func TestGetSessionRejectsExpiredAndForeignTokens(t *testing.T) {
	clinics := &fakeClinics{}
	svc := newTestService(clinics)

	expired, err := svc.Issue(model.SessionUser{ID: uuid.New()}, -time.Minute)
	require.NoError(t, err)
	sess, err := svc.GetSession(context.Background(), headerWith(expired))
	require.NoError(t, err)
	assert.Nil(t, sess)

	other := NewService(Config{Secret: "other-secret", Issuer: "clinic-api", MembershipTTL: time.Minute, CleanupPeriod: time.Minute}, clinics, zerolog.Nop())
	foreign, err := other.Issue(model.SessionUser{ID: uuid.New()}, time.Hour)
	require.NoError(t, err)
	sess, err = svc.GetSession(context.Background(), headerWith(foreign))
	require.NoError(t, err)
	assert.Nil(t, sess)

	assert.Equal(t, int32(0), clinics.calls.Load())
}

func TestRequireClinic(t *testing.T) {
	_, err := RequireClinic(nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	_, err = RequireClinic(&model.Session{User: model.SessionUser{ID: uuid.New()}})
	assert.True(t, apperrors.Is(err, apperrors.ErrTenantNotFound))

	clinicID := uuid.New()
	got, err := RequireClinic(&model.Session{
		User:   model.SessionUser{ID: uuid.New()},
		Clinic: &model.SessionClinic{ID: clinicID},
	})
	require.NoError(t, err)
	assert.Equal(t, clinicID, got)
}
