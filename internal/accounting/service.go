package accounting

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgercore/internal/accounting/periods"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// TxRepository exposes ledger persistence inside a transaction.
type TxRepository interface {
	sequence.TxRepository
	LedgerTx

	GetPeriod(ctx context.Context, institutionID, periodID uuid.UUID) (periods.Period, error)
	GetAccount(ctx context.Context, institutionID, accountID uuid.UUID) (Account, error)
	InsertAccount(ctx context.Context, acct Account) error
	UpdateAccountActive(ctx context.Context, institutionID, accountID uuid.UUID, active bool, at time.Time) error
	ListAccounts(ctx context.Context, institutionID uuid.UUID) ([]Account, error)
	InsertJournalEntry(ctx context.Context, entry JournalEntry) error
	GetJournalEntry(ctx context.Context, institutionID, entryID uuid.UUID) (JournalEntry, error)
	// FindReversal reports the id of the entry reversing entryID, if any.
	FindReversal(ctx context.Context, institutionID, entryID uuid.UUID) (uuid.UUID, bool, error)
	ListJournalEntries(ctx context.Context, institutionID uuid.UUID) ([]JournalEntry, error)
}

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Notifier fans out committed postings to subscribers.
type Notifier interface {
	PublishPosted(ctx context.Context, entry JournalEntry) error
}

// Observer receives posting counts for metrics.
type Observer interface {
	ObservePosting(sourceModule string, lines int)
}

// Engine posts balanced journal entries and keeps account balances in step.
type Engine struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier Notifier
	observer Observer
	logger   *slog.Logger
	seqType  string
	now      func() time.Time
}

// NewEngine constructs the journal engine. audit and notifier may be nil.
func NewEngine(repo RepositoryPort, audit AuditPort, notifier Notifier) *Engine {
	return &Engine{
		repo:     repo,
		audit:    audit,
		notifier: notifier,
		logger:   slog.Default(),
		seqType:  sequence.TypeJournal,
		now:      time.Now,
	}
}

// WithNow overrides the clock for testing.
func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// WithLogger sets the logger used for post-commit failures.
func (e *Engine) WithLogger(logger *slog.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// WithSequenceType changes the counter journal references are drawn from.
func (e *Engine) WithSequenceType(docType string) {
	if docType != "" {
		e.seqType = docType
	}
}

// WithObserver attaches a metrics observer.
func (e *Engine) WithObserver(o Observer) {
	e.observer = o
}

// Post validates and commits a journal entry in its own transaction.
func (e *Engine) Post(ctx context.Context, input PostingInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = e.post(ctx, tx, input, nil)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	e.Published(ctx, entry)
	return entry, nil
}

// PostTx posts inside a transaction owned by the caller. The caller must call
// Published with the entry once its transaction has committed.
func (e *Engine) PostTx(ctx context.Context, tx TxRepository, input PostingInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	return e.post(ctx, tx, input, nil)
}

func (e *Engine) post(ctx context.Context, tx TxRepository, input PostingInput, reversalOf *uuid.UUID) (JournalEntry, error) {
	period, err := tx.GetPeriod(ctx, input.InstitutionID, input.PeriodID)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := period.EnsurePostable(input.Date); err != nil {
		return JournalEntry{}, err
	}
	ref, err := sequence.AllocateTx(ctx, tx, input.InstitutionID, e.seqType)
	if err != nil {
		return JournalEntry{}, err
	}
	now := e.now().UTC()
	// Lock accounts in a stable order so concurrent postings touching the
	// same accounts queue instead of deadlocking.
	order := make([]int, len(input.Lines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return input.Lines[order[a]].AccountID.String() < input.Lines[order[b]].AccountID.String()
	})
	for _, idx := range order {
		line := input.Lines[idx]
		if _, err := ApplyPosting(ctx, tx, input.InstitutionID, line.AccountID, line.Amount, line.Side, now); err != nil {
			return JournalEntry{}, err
		}
	}
	entry := JournalEntry{
		ID:            uuid.New(),
		InstitutionID: input.InstitutionID,
		PeriodID:      period.ID,
		Date:          input.Date,
		Reference:     ref,
		Description:   input.Description,
		SourceModule:  input.SourceModule,
		SourceID:      input.SourceID,
		Lines:         append([]JournalLine(nil), input.Lines...),
		PostedBy:      input.ActorID,
		PostedAt:      now,
		ReversalOf:    reversalOf,
	}
	if err := tx.InsertJournalEntry(ctx, entry); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// Published runs the post-commit side effects for entries. Failures are
// logged and never surfaced to the caller.
func (e *Engine) Published(ctx context.Context, entries ...JournalEntry) {
	for _, entry := range entries {
		if e.observer != nil {
			e.observer.ObservePosting(entry.SourceModule, len(entry.Lines))
		}
		if e.audit != nil {
			action := "journal.post"
			meta := map[string]any{
				"reference":     entry.Reference,
				"source_module": entry.SourceModule,
				"source_id":     entry.SourceID.String(),
			}
			if entry.ReversalOf != nil {
				action = "journal.reverse"
				meta["reversal_of"] = entry.ReversalOf.String()
			}
			if err := e.audit.Record(ctx, shared.AuditLog{
				InstitutionID: entry.InstitutionID,
				ActorID:       entry.PostedBy,
				Action:        action,
				Entity:        "journal_entry",
				EntityID:      entry.ID.String(),
				Meta:          meta,
				At:            entry.PostedAt,
			}); err != nil {
				e.logger.Warn("journal audit failed", slog.String("entry_id", entry.ID.String()), slog.Any("error", err))
			}
		}
		if e.notifier != nil {
			if err := e.notifier.PublishPosted(ctx, entry); err != nil {
				e.logger.Warn("journal notification failed", slog.String("entry_id", entry.ID.String()), slog.Any("error", err))
			}
		}
	}
}

// Reverse posts a mirror of an existing entry with every side swapped.
func (e *Engine) Reverse(ctx context.Context, input ReverseInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var reversal JournalEntry
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetJournalEntry(ctx, input.InstitutionID, input.EntryID)
		if err != nil {
			return err
		}
		if _, found, err := tx.FindReversal(ctx, input.InstitutionID, original.ID); err != nil {
			return err
		} else if found {
			return ErrAlreadyReversed.With("", original.ID.String())
		}
		lines := make([]JournalLine, 0, len(original.Lines))
		for _, line := range original.Lines {
			line.Side = line.Side.Opposite()
			lines = append(lines, line)
		}
		desc := input.Description
		if desc == "" {
			desc = "Reversal of " + original.Reference
		}
		posting := PostingInput{
			InstitutionID: input.InstitutionID,
			ActorID:       input.ActorID,
			PeriodID:      input.PeriodID,
			Date:          input.Date,
			Description:   desc,
			SourceModule:  original.SourceModule + ":REVERSAL",
			SourceID:      original.ID,
			Lines:         lines,
		}
		if err := posting.Validate(); err != nil {
			return err
		}
		id := original.ID
		reversal, err = e.post(ctx, tx, posting, &id)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	e.Published(ctx, reversal)
	return reversal, nil
}

// Reconcile replays every posted line and returns the accounts whose stored
// balance disagrees with the replay. An empty result means the ledger is consistent.
func (e *Engine) Reconcile(ctx context.Context, institutionID uuid.UUID) ([]Discrepancy, error) {
	if institutionID == uuid.Nil {
		return nil, shared.Validation("INSTITUTION_REQUIRED", "institution_id", "institution required")
	}
	var out []Discrepancy
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		out = nil
		accounts, err := tx.ListAccounts(ctx, institutionID)
		if err != nil {
			return err
		}
		entries, err := tx.ListJournalEntries(ctx, institutionID)
		if err != nil {
			return err
		}
		types := make(map[uuid.UUID]AccountType, len(accounts))
		for _, acct := range accounts {
			types[acct.ID] = acct.Type
		}
		replayed := Replay(types, entries)
		for _, acct := range accounts {
			if got := replayed[acct.ID]; got != acct.Balance {
				out = append(out, Discrepancy{AccountID: acct.ID, Code: acct.Code, Stored: acct.Balance, Replayed: got})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAccount adds an account to the chart with a zero balance.
func (e *Engine) CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error) {
	if err := input.Validate(); err != nil {
		return Account{}, err
	}
	now := e.now().UTC()
	acct := Account{
		ID:                 uuid.New(),
		InstitutionID:      input.InstitutionID,
		Code:               input.Code,
		Name:               input.Name,
		Type:               input.Type,
		Subtype:            input.Subtype,
		IsActive:           true,
		IsTrackedForBudget: input.IsTrackedForBudget,
		MonthlyLimit:       input.MonthlyLimit,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertAccount(ctx, acct)
	})
	if err != nil {
		return Account{}, err
	}
	if e.audit != nil {
		if err := e.audit.Record(ctx, shared.AuditLog{
			InstitutionID: acct.InstitutionID,
			ActorID:       input.ActorID,
			Action:        "account.create",
			Entity:        "account",
			EntityID:      acct.ID.String(),
			Meta:          map[string]any{"code": acct.Code, "type": string(acct.Type)},
			At:            now,
		}); err != nil {
			e.logger.Warn("account audit failed", slog.String("account_id", acct.ID.String()), slog.Any("error", err))
		}
	}
	return acct, nil
}

// SetAccountActive activates or deactivates an account. Inactive accounts
// reject new postings but keep their balance.
func (e *Engine) SetAccountActive(ctx context.Context, institutionID, accountID uuid.UUID, active bool, actorID int64) (Account, error) {
	if err := requireHeader(institutionID, actorID); err != nil {
		return Account{}, err
	}
	now := e.now().UTC()
	var acct Account
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		acct, err = tx.GetAccountForUpdate(ctx, institutionID, accountID)
		if err != nil {
			return err
		}
		if acct.IsActive == active {
			return nil
		}
		acct.IsActive = active
		acct.UpdatedAt = now
		return tx.UpdateAccountActive(ctx, institutionID, accountID, active, now)
	})
	if err != nil {
		return Account{}, err
	}
	if e.audit != nil {
		if err := e.audit.Record(ctx, shared.AuditLog{
			InstitutionID: institutionID,
			ActorID:       actorID,
			Action:        "account.set_active",
			Entity:        "account",
			EntityID:      accountID.String(),
			Meta:          map[string]any{"active": active},
			At:            now,
		}); err != nil {
			e.logger.Warn("account audit failed", slog.String("account_id", accountID.String()), slog.Any("error", err))
		}
	}
	return acct, nil
}

// GetAccount returns a single account.
func (e *Engine) GetAccount(ctx context.Context, institutionID, accountID uuid.UUID) (Account, error) {
	var acct Account
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		acct, err = tx.GetAccount(ctx, institutionID, accountID)
		return err
	})
	return acct, err
}

// ListAccounts returns the institution's chart ordered by code.
func (e *Engine) ListAccounts(ctx context.Context, institutionID uuid.UUID) ([]Account, error) {
	var accounts []Account
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccounts(ctx, institutionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, nil
}

// GetJournalEntry loads a posted entry with its lines.
func (e *Engine) GetJournalEntry(ctx context.Context, institutionID, entryID uuid.UUID) (JournalEntry, error) {
	var entry JournalEntry
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetJournalEntry(ctx, institutionID, entryID)
		return err
	})
	return entry, err
}
