package sequence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCounterFormat(t *testing.T) {
	c := Counter{Prefix: "JV-", Padding: 6}
	require.Equal(t, "JV-000042", c.Format(42))
	require.Equal(t, "JV-1234567", c.Format(1234567))
	require.Equal(t, "7", Counter{}.Format(7))
}

func TestCounterValidate(t *testing.T) {
	ok := Counter{InstitutionID: uuid.New(), DocumentType: "JOURNAL", NextNumber: 1, Padding: 6}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.Padding = 19
	require.Error(t, bad.Validate())

	bad = ok
	bad.DocumentType = "journal"
	require.Error(t, bad.Validate())

	bad = ok
	bad.NextNumber = 0
	require.Error(t, bad.Validate())
}
