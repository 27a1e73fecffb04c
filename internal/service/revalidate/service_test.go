package revalidate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisbroker "github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

func testConfig() Config {
	return Config{TTL: time.Minute, CleanupInterval: time.Minute, Channel: "clinic:revalidate"}
}

func TestRevalidateEvictsOnlyThatClinicAndPath(t *testing.T) {
	svc := NewService(testConfig(), nil, metrics.NewMetrics("test", prometheus.NewRegistry()), zerolog.Nop())
	c1, c2 := uuid.New(), uuid.New()

	svc.Set(c1, PathAppointments, 0, "c1-appointments")
	svc.Set(c1, PathPatients, 0, "c1-patients")
	svc.Set(c2, PathAppointments, 0, "c2-appointments")

	svc.Revalidate(context.Background(), c1, PathAppointments)

	_, ok := svc.Get(c1, PathAppointments)
	assert.False(t, ok)
	v, ok := svc.Get(c1, PathPatients)
	assert.True(t, ok)
	assert.Equal(t, "c1-patients", v)
	_, ok = svc.Get(c2, PathAppointments)
	assert.True(t, ok)
}

func TestRevalidateBroadcastsToPeers(t *testing.T) {
	mr := miniredis.RunT(t)
	newBroker := func() *redisbroker.RedisBroker {
		b, err := redisbroker.NewRedisBroker(context.Background(), redisbroker.Config{URL: "redis://" + mr.Addr()}, zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { b.Close() })
		return b
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewService(testConfig(), newBroker(), nil, zerolog.Nop())
	b := NewService(testConfig(), newBroker(), nil, zerolog.Nop())
	require.NoError(t, a.Listen(ctx))
	require.NoError(t, b.Listen(ctx))

	clinicID := uuid.New()
	a.Set(clinicID, PathAppointments, 0, "a-view")
	b.Set(clinicID, PathAppointments, 0, "b-view")

	a.Revalidate(context.Background(), clinicID, PathAppointments)

	_, ok := a.Get(clinicID, PathAppointments)
	assert.False(t, ok)
	assert.Eventually(t, func() bool {
		_, ok := b.Get(clinicID, PathAppointments)
		return !ok
	}, 2*time.Second, 20*time.Millisecond)
}

func TestHandleIgnoresOwnAndForeignMessages(t *testing.T) {
	svc := NewService(testConfig(), nil, nil, zerolog.Nop())
	clinicID := uuid.New()
	svc.Set(clinicID, PathPatients, 0, "view")

	own := []byte(`{"type":"revalidate","payload":{"clinic_id":"` + clinicID.String() + `","path":"/patients","origin":"` + svc.origin + `"}}`)
	require.NoError(t, svc.handle(own))
	_, ok := svc.Get(clinicID, PathPatients)
	assert.True(t, ok)

	require.NoError(t, svc.handle([]byte(`{"type":"other","payload":{}}`)))
	assert.Error(t, svc.handle([]byte(`not json`)))

	peer := []byte(`{"type":"revalidate","payload":{"clinic_id":"` + clinicID.String() + `","path":"/patients","origin":"peer"}}`)
	require.NoError(t, svc.handle(peer))
	_, ok = svc.Get(clinicID, PathPatients)
	assert.False(t, ok)
}

func TestSetDiscardsViewLoadedBeforeRevalidate(t *testing.T) {
	svc := NewService(testConfig(), nil, nil, zerolog.Nop())
	clinicID := uuid.New()

	gen := svc.Generation(clinicID, PathAppointments)
	svc.Revalidate(context.Background(), clinicID, PathAppointments)

	assert.False(t, svc.Set(clinicID, PathAppointments, gen, "stale"))
	_, ok := svc.Get(clinicID, PathAppointments)
	assert.False(t, ok)

	gen = svc.Generation(clinicID, PathAppointments)
	assert.True(t, svc.Set(clinicID, PathAppointments, gen, "fresh"))
	v, ok := svc.Get(clinicID, PathAppointments)
	assert.True(t, ok)
	assert.Equal(t, "fresh", v)

	other := uuid.New()
	assert.True(t, svc.Set(other, PathAppointments, svc.Generation(other, PathAppointments), "other"))
}

func TestPeerEvictionBumpsGeneration(t *testing.T) {
	svc := NewService(testConfig(), nil, nil, zerolog.Nop())
	clinicID := uuid.New()
	gen := svc.Generation(clinicID, PathPatients)

	peer := []byte(`{"type":"revalidate","payload":{"clinic_id":"` + clinicID.String() + `","path":"/patients","origin":"peer"}}`)
	require.NoError(t, svc.handle(peer))

	assert.False(t, svc.Set(clinicID, PathPatients, gen, "stale"))
}
