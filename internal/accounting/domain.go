package accounting

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgercore/internal/money"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// NormalSide is the side that increases the balance of an account of type t.
func (t AccountType) NormalSide() Side {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return SideDebit
	}
	return SideCredit
}

// Side enumerates the two columns of a journal line.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// Valid reports whether s is DEBIT or CREDIT.
func (s Side) Valid() bool {
	return s == SideDebit || s == SideCredit
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// Account models a chart of accounts node together with its running balance.
type Account struct {
	ID                 uuid.UUID
	InstitutionID      uuid.UUID
	Code               string
	Name               string
	Type               AccountType
	Subtype            string
	Balance            money.Amount
	IsActive           bool
	IsTrackedForBudget bool
	MonthlyLimit       *money.Amount
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// JournalLine stores one debit or credit against an account.
type JournalLine struct {
	AccountID uuid.UUID
	Amount    money.Amount
	Side      Side
	Memo      string
}

// JournalEntry is an immutable, balanced posting.
type JournalEntry struct {
	ID            uuid.UUID
	InstitutionID uuid.UUID
	PeriodID      uuid.UUID
	Date          time.Time
	Reference     string
	Description   string
	SourceModule  string
	SourceID      uuid.UUID
	Lines         []JournalLine
	PostedBy      int64
	PostedAt      time.Time
	ReversalOf    *uuid.UUID
}

// Totals sums both sides of the entry.
func (e JournalEntry) Totals() (debit, credit money.Amount) {
	for _, line := range e.Lines {
		if line.Side == SideDebit {
			debit += line.Amount
		} else {
			credit += line.Amount
		}
	}
	return debit, credit
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	InstitutionID uuid.UUID
	ActorID       int64
	PeriodID      uuid.UUID
	Date          time.Time
	Description   string
	SourceModule  string
	SourceID      uuid.UUID
	Lines         []JournalLine
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	InstitutionID uuid.UUID
	ActorID       int64
	EntryID       uuid.UUID
	PeriodID      uuid.UUID
	Date          time.Time
	Description   string
}

// CreateAccountInput describes a new ledger account.
type CreateAccountInput struct {
	InstitutionID      uuid.UUID
	ActorID            int64
	Code               string
	Name               string
	Type               AccountType
	Subtype            string
	IsTrackedForBudget bool
	MonthlyLimit       *money.Amount
}

// Discrepancy reports an account whose stored balance disagrees with its postings.
type Discrepancy struct {
	AccountID uuid.UUID
	Code      string
	Stored    money.Amount
	Replayed  money.Amount
}

var (
	// ErrEmptyEntry indicates a posting without lines.
	ErrEmptyEntry = shared.Validation("EMPTY_ENTRY", "lines", "journal entry requires at least one line")
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = shared.Validation("UNBALANCED_ENTRY", "lines", "journal lines must balance")
	// ErrInvalidLineAmount indicates a non-positive line amount.
	ErrInvalidLineAmount = shared.Validation("INVALID_AMOUNT", "amount", "line amount must be positive")
	// ErrInvalidSide indicates a side outside DEBIT/CREDIT.
	ErrInvalidSide = shared.Validation("INVALID_SIDE", "side", "line side must be DEBIT or CREDIT")
	// ErrAccountNotFound indicates a line references an unknown account.
	ErrAccountNotFound = shared.NotFound("ACCOUNT_NOT_FOUND", "", "account not found")
	// ErrAccountInactive indicates a line references a deactivated account.
	ErrAccountInactive = shared.Validation("ACCOUNT_INACTIVE", "account_id", "account is inactive")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = shared.NotFound("JOURNAL_NOT_FOUND", "", "journal entry not found")
	// ErrAlreadyReversed indicates the entry already has a reversal.
	ErrAlreadyReversed = shared.Validation("ALREADY_REVERSED", "entry_id", "journal entry already reversed")
	// ErrDuplicateAccountCode indicates the code is taken within the institution.
	ErrDuplicateAccountCode = &shared.Error{Kind: shared.KindConflict, Code: "DUPLICATE_ACCOUNT_CODE", Field: "code", Message: "account code already exists"}
	// ErrInvalidAccount indicates malformed account definition.
	ErrInvalidAccount = shared.Validation("INVALID_ACCOUNT", "", "invalid account definition")
)

func requireHeader(institutionID uuid.UUID, actorID int64) error {
	if institutionID == uuid.Nil {
		return shared.Validation("INSTITUTION_REQUIRED", "institution_id", "institution required")
	}
	if actorID <= 0 {
		return shared.Validation("ACTOR_REQUIRED", "actor_id", "actor required")
	}
	return nil
}

// Validate ensures posting input is well formed and balanced. It runs before
// any transaction is opened.
func (in PostingInput) Validate() error {
	if err := requireHeader(in.InstitutionID, in.ActorID); err != nil {
		return err
	}
	if in.PeriodID == uuid.Nil {
		return shared.Validation("PERIOD_REQUIRED", "period_id", "fiscal period required")
	}
	if in.Date.IsZero() {
		return shared.Validation("DATE_REQUIRED", "date", "entry date required")
	}
	if in.SourceModule == "" {
		return shared.Validation("SOURCE_REQUIRED", "source_module", "source module required")
	}
	if len(in.Lines) == 0 {
		return ErrEmptyEntry
	}
	var debit, credit money.Amount
	for idx, line := range in.Lines {
		field := fmt.Sprintf("lines[%d]", idx)
		if line.AccountID == uuid.Nil {
			return shared.Validation("ACCOUNT_REQUIRED", field+".account_id", "line account required")
		}
		if !line.Amount.IsPositive() {
			return ErrInvalidLineAmount.With(field+".amount", "")
		}
		if !line.Side.Valid() {
			return ErrInvalidSide.With(field+".side", "")
		}
		if line.Side == SideDebit {
			if debit > debit+line.Amount {
				return ErrInvalidLineAmount.Withf("debit total overflows").With(field+".amount", "")
			}
			debit += line.Amount
		} else {
			if credit > credit+line.Amount {
				return ErrInvalidLineAmount.Withf("credit total overflows").With(field+".amount", "")
			}
			credit += line.Amount
		}
	}
	if debit != credit {
		return ErrUnbalanced.Withf("debits %s != credits %s", debit, credit)
	}
	return nil
}

// Validate ensures reversal input is complete.
func (in ReverseInput) Validate() error {
	if err := requireHeader(in.InstitutionID, in.ActorID); err != nil {
		return err
	}
	if in.EntryID == uuid.Nil {
		return shared.Validation("ENTRY_REQUIRED", "entry_id", "entry id required")
	}
	if in.PeriodID == uuid.Nil {
		return shared.Validation("PERIOD_REQUIRED", "period_id", "fiscal period required")
	}
	if in.Date.IsZero() {
		return shared.Validation("DATE_REQUIRED", "date", "reversal date required")
	}
	return nil
}

// Validate ensures the account definition is usable.
func (in CreateAccountInput) Validate() error {
	if err := requireHeader(in.InstitutionID, in.ActorID); err != nil {
		return err
	}
	if in.Code == "" {
		return ErrInvalidAccount.With("code", "").Withf("account code required")
	}
	if in.Name == "" {
		return ErrInvalidAccount.With("name", "").Withf("account name required")
	}
	if !in.Type.Valid() {
		return ErrInvalidAccount.With("type", "").Withf("unknown account type %q", in.Type)
	}
	if in.MonthlyLimit != nil && *in.MonthlyLimit < 0 {
		return ErrInvalidAccount.With("monthly_limit", "").Withf("monthly limit cannot be negative")
	}
	if in.IsTrackedForBudget && in.MonthlyLimit == nil {
		return ErrInvalidAccount.With("monthly_limit", "").Withf("budget-tracked accounts need a monthly limit")
	}
	return nil
}
