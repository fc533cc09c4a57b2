package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"skim/backend/internal/repository"
	"skim/backend/internal/repository/testutil"
	"skim/backend/internal/service"
)

func newRateLimitService(t *testing.T) service.DomainRateLimitService {
	t.Helper()
	database := testutil.NewTestDB(t)
	return service.NewDomainRateLimitService(repository.NewDomainRateLimitRepository(database))
}

func TestDomainRateLimit_SetAndGet(t *testing.T) {
	svc := newRateLimitService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetInterval(ctx, "example.com", 10))
	require.Equal(t, 10, svc.IntervalSeconds(ctx, "example.com"))

	// Update in place.
	require.NoError(t, svc.SetInterval(ctx, "example.com", 30))
	require.Equal(t, 30, svc.IntervalSeconds(ctx, "example.com"))

	limits, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, limits, 1)
	require.Equal(t, "example.com", limits[0].Host)
	require.Equal(t, 30, limits[0].IntervalSeconds)
}

func TestDomainRateLimit_UnknownHostDefaults(t *testing.T) {
	svc := newRateLimitService(t)
	require.Zero(t, svc.IntervalSeconds(context.Background(), "unknown.example.com"))
}

func TestDomainRateLimit_HostValidation(t *testing.T) {
	svc := newRateLimitService(t)
	ctx := context.Background()

	for _, host := range []string{"localhost", "example.com", "sub.example.co.uk", "192.168.1.1", "::1"} {
		require.NoErrorf(t, svc.SetInterval(ctx, host, 5), "host %q should be accepted", host)
	}
	for _, host := range []string{"", "   ", "nodot", "-bad.example.com", "exa mple.com"} {
		require.ErrorIsf(t, svc.SetInterval(ctx, host, 5), service.ErrInvalid, "host %q should be rejected", host)
	}
}

func TestDomainRateLimit_Delete(t *testing.T) {
	svc := newRateLimitService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetInterval(ctx, "example.com", 10))
	require.NoError(t, svc.DeleteInterval(ctx, "example.com"))
	require.Zero(t, svc.IntervalSeconds(ctx, "example.com"))
}
