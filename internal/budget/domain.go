package budget

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgercore/internal/accounting/periods"
	"github.com/odyssey-erp/ledgercore/internal/money"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// Source identifies what kind of commitment is being checked.
type Source string

const (
	SourceExpense       Source = "EXPENSE"
	SourcePurchaseOrder Source = "PURCHASE_ORDER"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceExpense || s == SourcePurchaseOrder
}

// Policy holds the institution's budget enforcement flags.
type Policy struct {
	InstitutionID       uuid.UUID
	StrictBudgetControl bool
	StrictPOEnforcement bool
	VarianceTolerance   decimal.Decimal
	UpdatedAt           time.Time
}

// Strict reports whether commitments from src are blocked when over budget.
func (p Policy) Strict(src Source) bool {
	switch src {
	case SourceExpense:
		return p.StrictBudgetControl
	case SourcePurchaseOrder:
		return p.StrictPOEnforcement
	}
	return false
}

// Validate ensures the policy is usable.
func (p Policy) Validate() error {
	if p.InstitutionID == uuid.Nil {
		return shared.Validation("INSTITUTION_REQUIRED", "institution_id", "institution required")
	}
	if p.VarianceTolerance.IsNegative() {
		return shared.Validation("INVALID_TOLERANCE", "variance_tolerance", "variance tolerance cannot be negative")
	}
	return nil
}

// CommitmentInput describes a prospective spend against an account.
type CommitmentInput struct {
	InstitutionID uuid.UUID
	AccountID     uuid.UUID
	Amount        money.Amount
	Period        periods.Period
	Source        Source
}

// Validate ensures the commitment can be evaluated.
func (in CommitmentInput) Validate() error {
	if in.InstitutionID == uuid.Nil {
		return shared.Validation("INSTITUTION_REQUIRED", "institution_id", "institution required")
	}
	if in.AccountID == uuid.Nil {
		return shared.Validation("ACCOUNT_REQUIRED", "account_id", "account required")
	}
	if !in.Amount.IsPositive() {
		return shared.Validation("INVALID_AMOUNT", "amount", "amount must be positive")
	}
	if !in.Source.Valid() {
		return shared.Validation("INVALID_SOURCE", "source", "unknown commitment source")
	}
	if in.Period.StartDate.IsZero() || in.Period.EndDate.IsZero() {
		return shared.Validation("PERIOD_REQUIRED", "period", "budget period required")
	}
	return nil
}

// Result is the outcome of a budget check.
type Result struct {
	Allowed   bool
	Advisory  bool
	Reason    string
	Limit     money.Amount
	Actual    money.Amount
	Projected money.Amount
	Threshold decimal.Decimal
}

// Exceeded reports whether the commitment went over the threshold.
func (r Result) Exceeded() bool {
	return !r.Allowed || r.Advisory
}

// ErrBudgetExceeded rejects a commitment under strict budget control.
var ErrBudgetExceeded = shared.Policy("BUDGET_EXCEEDED", "commitment exceeds budget")
