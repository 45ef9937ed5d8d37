package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/accounting/periods"
	"github.com/odyssey-erp/ledgercore/internal/budget"
	"github.com/odyssey-erp/ledgercore/internal/money"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
)

func (t *memTx) IncrementCounter(_ context.Context, institutionID uuid.UUID, documentType string) (sequence.Counter, error) {
	k := key("seq", institutionID, documentType)
	if err := t.lock(k); err != nil {
		return sequence.Counter{}, err
	}
	v, ok := t.get(k)
	if !ok {
		return sequence.Counter{}, sequence.ErrNotConfigured
	}
	before := v.(sequence.Counter)
	next := before
	next.NextNumber++
	next.UpdatedAt = time.Now().UTC()
	t.put(k, next)
	return before, nil
}

func (t *memTx) InsertCounter(_ context.Context, c sequence.Counter) error {
	k := key("seq", c.InstitutionID, c.DocumentType)
	if _, exists := t.get(k); exists {
		return sequence.ErrAlreadyConfigured.With("document_type", c.DocumentType)
	}
	t.put(k, c)
	return nil
}

func (t *memTx) GetAccount(_ context.Context, institutionID, accountID uuid.UUID) (accounting.Account, error) {
	v, ok := t.get(key("acct", institutionID, accountID))
	if !ok {
		return accounting.Account{}, accounting.ErrAccountNotFound.With("", accountID.String())
	}
	return v.(accounting.Account), nil
}

func (t *memTx) GetAccountForUpdate(ctx context.Context, institutionID, accountID uuid.UUID) (accounting.Account, error) {
	if err := t.lock(key("acct", institutionID, accountID)); err != nil {
		return accounting.Account{}, err
	}
	return t.GetAccount(ctx, institutionID, accountID)
}

func (t *memTx) UpdateAccountBalance(ctx context.Context, institutionID, accountID uuid.UUID, balance money.Amount, at time.Time) error {
	acct, err := t.GetAccount(ctx, institutionID, accountID)
	if err != nil {
		return err
	}
	acct.Balance = balance
	acct.UpdatedAt = at
	t.put(key("acct", institutionID, accountID), acct)
	return nil
}

func (t *memTx) UpdateAccountActive(ctx context.Context, institutionID, accountID uuid.UUID, active bool, at time.Time) error {
	acct, err := t.GetAccount(ctx, institutionID, accountID)
	if err != nil {
		return err
	}
	acct.IsActive = active
	acct.UpdatedAt = at
	t.put(key("acct", institutionID, accountID), acct)
	return nil
}

func (t *memTx) InsertAccount(_ context.Context, acct accounting.Account) error {
	codeKey := key("acctcode", acct.InstitutionID, acct.Code)
	if _, exists := t.get(codeKey); exists {
		return accounting.ErrDuplicateAccountCode.With("code", acct.Code)
	}
	t.put(codeKey, acct.ID)
	t.put(key("acct", acct.InstitutionID, acct.ID), acct)
	t.addToIndex(key("accts", acct.InstitutionID), acct.ID)
	instKey := key("inst", acct.InstitutionID)
	if _, known := t.get(instKey); !known {
		t.put(instKey, true)
		t.addToIndex(key("institutions"), acct.InstitutionID)
	}
	return nil
}

func (t *memTx) ListAccounts(ctx context.Context, institutionID uuid.UUID) ([]accounting.Account, error) {
	ids := t.index(key("accts", institutionID))
	out := make([]accounting.Account, 0, len(ids))
	for _, id := range ids {
		acct, err := t.GetAccount(ctx, institutionID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, nil
}

func (t *memTx) GetPeriod(_ context.Context, institutionID, periodID uuid.UUID) (periods.Period, error) {
	v, ok := t.get(key("period", institutionID, periodID))
	if !ok {
		return periods.Period{}, periods.ErrPeriodNotFound.With("", periodID.String())
	}
	return v.(periods.Period), nil
}

func (t *memTx) InsertJournalEntry(_ context.Context, entry accounting.JournalEntry) error {
	if entry.ReversalOf != nil {
		rk := key("reversal", entry.InstitutionID, *entry.ReversalOf)
		if _, exists := t.get(rk); exists {
			return accounting.ErrAlreadyReversed.With("", entry.ReversalOf.String())
		}
		t.put(rk, entry.ID)
	}
	entry.Lines = append([]accounting.JournalLine(nil), entry.Lines...)
	t.put(key("entry", entry.InstitutionID, entry.ID), entry)
	t.addToIndex(key("entries", entry.InstitutionID), entry.ID)
	return nil
}

func (t *memTx) GetJournalEntry(_ context.Context, institutionID, entryID uuid.UUID) (accounting.JournalEntry, error) {
	v, ok := t.get(key("entry", institutionID, entryID))
	if !ok {
		return accounting.JournalEntry{}, accounting.ErrJournalNotFound.With("", entryID.String())
	}
	entry := v.(accounting.JournalEntry)
	entry.Lines = append([]accounting.JournalLine(nil), entry.Lines...)
	return entry, nil
}

func (t *memTx) FindReversal(_ context.Context, institutionID, entryID uuid.UUID) (uuid.UUID, bool, error) {
	v, ok := t.get(key("reversal", institutionID, entryID))
	if !ok {
		return uuid.Nil, false, nil
	}
	return v.(uuid.UUID), true, nil
}

func (t *memTx) ListJournalEntries(ctx context.Context, institutionID uuid.UUID) ([]accounting.JournalEntry, error) {
	ids := t.index(key("entries", institutionID))
	out := make([]accounting.JournalEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := t.GetJournalEntry(ctx, institutionID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func (t *memTx) GetPolicy(_ context.Context, institutionID uuid.UUID) (budget.Policy, error) {
	v, ok := t.get(key("policy", institutionID))
	if !ok {
		return budget.Policy{InstitutionID: institutionID, VarianceTolerance: decimal.Zero}, nil
	}
	return v.(budget.Policy), nil
}

func (t *memTx) UpsertPolicy(_ context.Context, p budget.Policy) error {
	t.put(key("policy", p.InstitutionID), p)
	return nil
}

func (t *memTx) AccountMovement(ctx context.Context, institutionID, accountID uuid.UUID, from, to time.Time) (money.Amount, error) {
	acct, err := t.GetAccount(ctx, institutionID, accountID)
	if err != nil {
		return 0, err
	}
	entries, err := t.ListJournalEntries(ctx, institutionID)
	if err != nil {
		return 0, err
	}
	var total money.Amount
	for _, entry := range entries {
		if entry.Date.Before(from) || !entry.Date.Before(to) {
			continue
		}
		for _, line := range entry.Lines {
			if line.AccountID == accountID {
				total += accounting.SignedAmount(acct.Type, line.Side, line.Amount)
			}
		}
	}
	return total, nil
}
