package app

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRateLimitKeyPrefersInstitution(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/accounts", nil)
	r.RemoteAddr = "10.0.0.7:5123"
	byIP, err := keyByInstitution(r)
	require.NoError(t, err)
	require.NotContains(t, byIP, "inst:")

	r.Header.Set("X-Institution-ID", "4b7c0d3e-8f1a-4d2b-9c6e-1a2b3c4d5e6f")
	byInst, err := keyByInstitution(r)
	require.NoError(t, err)
	require.Equal(t, "inst:4b7c0d3e-8f1a-4d2b-9c6e-1a2b3c4d5e6f", byInst)
}
