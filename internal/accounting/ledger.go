package accounting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgercore/internal/money"
)

// LedgerTx is the slice of a transaction the ledger needs to move balances.
type LedgerTx interface {
	// GetAccountForUpdate loads and locks an account. Missing accounts yield ErrAccountNotFound.
	GetAccountForUpdate(ctx context.Context, institutionID, accountID uuid.UUID) (Account, error)
	UpdateAccountBalance(ctx context.Context, institutionID, accountID uuid.UUID, balance money.Amount, at time.Time) error
}

// SignedAmount returns the balance effect of a line: positive on the account's
// normal side, negative on the other.
func SignedAmount(t AccountType, side Side, amount money.Amount) money.Amount {
	if side == t.NormalSide() {
		return amount
	}
	return -amount
}

// ApplyPosting moves one account balance. It is only called by the journal
// engine from inside its transaction.
func ApplyPosting(ctx context.Context, tx LedgerTx, institutionID, accountID uuid.UUID, amount money.Amount, side Side, at time.Time) (Account, error) {
	if !side.Valid() {
		return Account{}, ErrInvalidSide
	}
	if !amount.IsPositive() {
		return Account{}, ErrInvalidLineAmount
	}
	acct, err := tx.GetAccountForUpdate(ctx, institutionID, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ErrAccountNotFound.With("account_id", accountID.String())
		}
		return Account{}, err
	}
	if !acct.IsActive {
		return Account{}, ErrAccountInactive.With("account_id", accountID.String())
	}
	acct.Balance += SignedAmount(acct.Type, side, amount)
	acct.UpdatedAt = at
	if err := tx.UpdateAccountBalance(ctx, institutionID, accountID, acct.Balance, at); err != nil {
		return Account{}, err
	}
	return acct, nil
}

// Replay folds entries into per-account balances using the sign convention.
func Replay(types map[uuid.UUID]AccountType, entries []JournalEntry) map[uuid.UUID]money.Amount {
	out := make(map[uuid.UUID]money.Amount, len(types))
	for _, entry := range entries {
		for _, line := range entry.Lines {
			out[line.AccountID] += SignedAmount(types[line.AccountID], line.Side, line.Amount)
		}
	}
	return out
}
