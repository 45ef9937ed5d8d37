// Package notify fans committed journal entries out over Redis pub/sub.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
)

const (
	// PostedChannel carries one Event per committed journal entry.
	PostedChannel = "ledger.journal.posted"
	versionKey    = "ledger:version"
)

// Event is the wire form of a posted entry.
type Event struct {
	Version       int64      `json:"version"`
	EntryID       uuid.UUID  `json:"entry_id"`
	InstitutionID uuid.UUID  `json:"institution_id"`
	Reference     string     `json:"reference"`
	SourceModule  string     `json:"source_module"`
	SourceID      uuid.UUID  `json:"source_id"`
	ReversalOf    *uuid.UUID `json:"reversal_of,omitempty"`
	Debit         string     `json:"debit"`
	PostedBy      int64      `json:"posted_by"`
	PostedAt      time.Time  `json:"posted_at"`
}

// Publisher bumps the ledger version and publishes posting events.
type Publisher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewPublisher wraps a Redis client. A nil client makes every call a no-op.
func NewPublisher(client *redis.Client, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, logger: logger}
}

// PublishPosted implements accounting.Notifier.
func (p *Publisher) PublishPosted(ctx context.Context, entry accounting.JournalEntry) error {
	if p == nil || p.client == nil {
		return nil
	}
	ver, err := p.client.Incr(ctx, versionKey).Result()
	if err != nil {
		return err
	}
	debit, _ := entry.Totals()
	payload, err := json.Marshal(Event{
		Version:       ver,
		EntryID:       entry.ID,
		InstitutionID: entry.InstitutionID,
		Reference:     entry.Reference,
		SourceModule:  entry.SourceModule,
		SourceID:      entry.SourceID,
		ReversalOf:    entry.ReversalOf,
		Debit:         debit.String(),
		PostedBy:      entry.PostedBy,
		PostedAt:      entry.PostedAt,
	})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, PostedChannel, payload).Err()
}

// Version returns the number of entries published so far.
func (p *Publisher) Version(ctx context.Context) (int64, error) {
	if p == nil || p.client == nil {
		return 0, nil
	}
	ver, err := p.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

// Subscribe delivers events to handler until ctx is cancelled. It returns once
// the subscription is confirmed by the server.
func (p *Publisher) Subscribe(ctx context.Context, handler func(context.Context, Event)) error {
	if p == nil || p.client == nil {
		return nil
	}
	pubsub := p.client.Subscribe(ctx, PostedChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					p.logger.Warn("discarding malformed ledger event", slog.Any("error", err))
					continue
				}
				handler(ctx, evt)
			}
		}
	}()
	return nil
}
