package notify

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/money"
)

func newTestPublisher(t *testing.T) *Publisher {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPublisher(client, nil)
}

func TestPublishPostedBumpsVersionAndDelivers(t *testing.T) {
	pub := newTestPublisher(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Event, 1)
	require.NoError(t, pub.Subscribe(ctx, func(_ context.Context, evt Event) { received <- evt }))

	entry := accounting.JournalEntry{
		ID:            uuid.New(),
		InstitutionID: uuid.New(),
		Reference:     "JV-000001",
		SourceModule:  "AP",
		PostedBy:      7,
		PostedAt:      time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
		Lines: []accounting.JournalLine{
			{AccountID: uuid.New(), Amount: money.MustParse("12.50"), Side: accounting.SideDebit},
			{AccountID: uuid.New(), Amount: money.MustParse("12.50"), Side: accounting.SideCredit},
		},
	}
	require.NoError(t, pub.PublishPosted(ctx, entry))

	select {
	case evt := <-received:
		require.Equal(t, int64(1), evt.Version)
		require.Equal(t, entry.ID, evt.EntryID)
		require.Equal(t, "JV-000001", evt.Reference)
		require.Equal(t, "12.50", evt.Debit)
		require.Nil(t, evt.ReversalOf)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	ver, err := pub.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)
}

func TestNilPublisherIsNoop(t *testing.T) {
	pub := NewPublisher(nil, nil)
	require.NoError(t, pub.PublishPosted(context.Background(), accounting.JournalEntry{}))
	ver, err := pub.Version(context.Background())
	require.NoError(t, err)
	require.Zero(t, ver)
}
