package subledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/budget"
	"github.com/odyssey-erp/ledgercore/internal/money"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// Kind enumerates the document families kept beside the general ledger.
type Kind string

const (
	KindPayable    Kind = "PAYABLE"
	KindReceivable Kind = "RECEIVABLE"
	KindExpense    Kind = "EXPENSE"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPayable, KindReceivable, KindExpense:
		return true
	}
	return false
}

// Status enumerates document settlement states.
type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
	// StatusOverdue is reported, never stored: an unpaid document past its due date.
	StatusOverdue Status = "OVERDUE"
)

// StatusFor derives the settlement status from the outstanding balance.
func StatusFor(amount, balance money.Amount) Status {
	switch {
	case balance == 0:
		return StatusPaid
	case balance < amount:
		return StatusPartiallyPaid
	default:
		return StatusOpen
	}
}

// Document is a bill, invoice or expense requisition.
type Document struct {
	ID               uuid.UUID
	InstitutionID    uuid.UUID
	Kind             Kind
	Number           string
	CounterpartyName string
	Description      string
	Date             time.Time
	DueDate          time.Time
	Amount           money.Amount
	Balance          money.Amount
	Status           Status
	ControlAccountID uuid.UUID
	OffsetAccountID  uuid.UUID
	IssueReference   string
	CreatedBy        int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Overdue reports whether money is still owed after the due date.
func (d Document) Overdue(now time.Time) bool {
	return d.Balance > 0 && now.After(d.DueDate)
}

// ReportedStatus is the stored settlement status, or StatusOverdue while
// money is owed after the due date.
func (d Document) ReportedStatus(now time.Time) Status {
	if d.Overdue(now) {
		return StatusOverdue
	}
	return d.Status
}

// Applied returns the total settled so far.
func (d Document) Applied() money.Amount {
	return d.Amount - d.Balance
}

// Payment records one settlement applied to a document.
type Payment struct {
	ID            uuid.UUID
	InstitutionID uuid.UUID
	DocumentID    uuid.UUID
	Amount        money.Amount
	CashAccountID uuid.UUID
	Reference     string
	EntryID       uuid.UUID
	AppliedBy     int64
	AppliedAt     time.Time
}

// IssueInput creates a new document.
type IssueInput struct {
	InstitutionID     uuid.UUID
	ActorID           int64
	PeriodID          uuid.UUID
	CounterpartyName  string
	Description       string
	Date              time.Time
	DueDate           time.Time
	Amount            money.Amount
	ControlAccountID  uuid.UUID
	OffsetAccountID   uuid.UUID
	FromPurchaseOrder bool
}

// Validate ensures the document can be issued.
func (in IssueInput) Validate() error {
	if in.InstitutionID == uuid.Nil {
		return shared.Validation("INSTITUTION_REQUIRED", "institution_id", "institution required")
	}
	if in.ActorID <= 0 {
		return shared.Validation("ACTOR_REQUIRED", "actor_id", "actor required")
	}
	if in.PeriodID == uuid.Nil {
		return shared.Validation("PERIOD_REQUIRED", "period_id", "fiscal period required")
	}
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount.With("amount", "")
	}
	if in.ControlAccountID == uuid.Nil {
		return shared.Validation("ACCOUNT_REQUIRED", "control_account_id", "control account required")
	}
	if in.OffsetAccountID == uuid.Nil {
		return shared.Validation("ACCOUNT_REQUIRED", "offset_account_id", "offset account required")
	}
	if in.ControlAccountID == in.OffsetAccountID {
		return shared.Validation("SAME_ACCOUNT", "offset_account_id", "control and offset accounts must differ")
	}
	if in.Date.IsZero() {
		return shared.Validation("DATE_REQUIRED", "date", "document date required")
	}
	if in.DueDate.IsZero() {
		return shared.Validation("DATE_REQUIRED", "due_date", "due date required")
	}
	if in.DueDate.Before(in.Date) {
		return shared.Validation("INVALID_DUE_DATE", "due_date", "due date precedes document date")
	}
	return nil
}

// PaymentInput settles part or all of a document.
type PaymentInput struct {
	InstitutionID uuid.UUID
	ActorID       int64
	PeriodID      uuid.UUID
	DocumentID    uuid.UUID
	Amount        money.Amount
	CashAccountID uuid.UUID
	Date          time.Time
}

// Validate ensures the payment is well formed. Overpayment is checked
// against the stored balance inside the transaction.
func (in PaymentInput) Validate() error {
	if in.InstitutionID == uuid.Nil {
		return shared.Validation("INSTITUTION_REQUIRED", "institution_id", "institution required")
	}
	if in.ActorID <= 0 {
		return shared.Validation("ACTOR_REQUIRED", "actor_id", "actor required")
	}
	if in.PeriodID == uuid.Nil {
		return shared.Validation("PERIOD_REQUIRED", "period_id", "fiscal period required")
	}
	if in.DocumentID == uuid.Nil {
		return shared.Validation("DOCUMENT_REQUIRED", "document_id", "document required")
	}
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount.With("amount", "")
	}
	if in.CashAccountID == uuid.Nil {
		return shared.Validation("ACCOUNT_REQUIRED", "cash_account_id", "cash account required")
	}
	if in.Date.IsZero() {
		return shared.Validation("DATE_REQUIRED", "date", "payment date required")
	}
	return nil
}

// Result is returned by Issue and ApplyPayment after commit.
type Result struct {
	Document Document
	Entry    accounting.JournalEntry
	Payment  *Payment
	Budget   *budget.Result
}

// AgingBucket summarises open balances by days past due.
type AgingBucket struct {
	Current  money.Amount
	Bucket30 money.Amount
	Bucket60 money.Amount
	Bucket90 money.Amount
	Over90   money.Amount
}

// Total sums every bucket.
func (b AgingBucket) Total() money.Amount {
	return b.Current + b.Bucket30 + b.Bucket60 + b.Bucket90 + b.Over90
}

// AgingDetail is the per-counterparty breakdown.
type AgingDetail struct {
	CounterpartyName string
	AgingBucket
}

// AgingReport is the aging summary with counterparty detail.
type AgingReport struct {
	AsOf    time.Time
	Summary AgingBucket
	Details []AgingDetail
}

var (
	// ErrInvalidAmount rejects non-positive amounts.
	ErrInvalidAmount = shared.Validation("INVALID_AMOUNT", "amount", "amount must be positive")
	// ErrOverpayment rejects payments larger than the outstanding balance.
	ErrOverpayment = shared.Validation("OVERPAYMENT", "amount", "payment exceeds outstanding balance")
	// ErrDocumentNotFound indicates the document id does not resolve for this kind.
	ErrDocumentNotFound = shared.NotFound("DOCUMENT_NOT_FOUND", "", "document not found")
)
