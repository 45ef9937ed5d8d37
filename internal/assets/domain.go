package assets

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/money"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// Method enumerates depreciation methods.
type Method string

const (
	MethodStraightLine    Method = "STRAIGHT_LINE"
	MethodReducingBalance Method = "REDUCING_BALANCE"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	return m == MethodStraightLine || m == MethodReducingBalance
}

// Status enumerates asset lifecycle states.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusDisposed Status = "DISPOSED"
)

// Asset is a depreciable fixed asset.
type Asset struct {
	ID                      uuid.UUID
	InstitutionID           uuid.UUID
	Code                    string
	Name                    string
	PurchasePrice           money.Amount
	SalvageValue            money.Amount
	UsefulLifeYears         int
	Method                  Method
	DeclineRate             *decimal.Decimal
	AccumulatedDepreciation money.Amount
	CurrentValue            money.Amount
	Status                  Status
	ExpenseAccountID        uuid.UUID
	AccumulatedAccountID    uuid.UUID
	AcquiredOn              time.Time
	DepreciatedThrough      *time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// AtSalvage reports whether the asset has nothing left to depreciate.
func (a Asset) AtSalvage() bool {
	return a.CurrentValue <= a.SalvageValue
}

// RegisterInput creates a new asset.
type RegisterInput struct {
	InstitutionID        uuid.UUID
	ActorID              int64
	Code                 string
	Name                 string
	PurchasePrice        money.Amount
	SalvageValue         money.Amount
	UsefulLifeYears      int
	Method               Method
	DeclineRate          *decimal.Decimal
	ExpenseAccountID     uuid.UUID
	AccumulatedAccountID uuid.UUID
	AcquiredOn           time.Time
}

// Validate ensures the asset definition is usable.
func (in RegisterInput) Validate() error {
	if in.InstitutionID == uuid.Nil {
		return shared.Validation("INSTITUTION_REQUIRED", "institution_id", "institution required")
	}
	if in.ActorID <= 0 {
		return shared.Validation("ACTOR_REQUIRED", "actor_id", "actor required")
	}
	if in.Code == "" {
		return shared.Validation("CODE_REQUIRED", "code", "asset code required")
	}
	if !in.PurchasePrice.IsPositive() {
		return shared.Validation("INVALID_AMOUNT", "purchase_price", "purchase price must be positive")
	}
	if in.SalvageValue < 0 || in.SalvageValue > in.PurchasePrice {
		return shared.Validation("INVALID_SALVAGE", "salvage_value", "salvage value must lie between zero and the purchase price")
	}
	if in.UsefulLifeYears <= 0 {
		return shared.Validation("INVALID_LIFE", "useful_life_years", "useful life must be positive")
	}
	if !in.Method.Valid() {
		return shared.Validation("INVALID_METHOD", "method", "unknown depreciation method")
	}
	if in.DeclineRate != nil && (!in.DeclineRate.IsPositive() || in.DeclineRate.GreaterThan(decimal.NewFromInt(1))) {
		return shared.Validation("INVALID_RATE", "decline_rate", "decline rate must be in (0, 1]")
	}
	if in.ExpenseAccountID == uuid.Nil || in.AccumulatedAccountID == uuid.Nil {
		return shared.Validation("ACCOUNT_REQUIRED", "expense_account_id", "expense and accumulated depreciation accounts required")
	}
	return nil
}

// RunInput requests one depreciation run.
type RunInput struct {
	InstitutionID uuid.UUID
	ActorID       int64
	AssetID       uuid.UUID
	PeriodID      uuid.UUID
	AsOf          time.Time
	PeriodMonths  int
}

// Validate ensures the run request is complete and applies defaults.
func (in *RunInput) Validate() error {
	if in.InstitutionID == uuid.Nil {
		return shared.Validation("INSTITUTION_REQUIRED", "institution_id", "institution required")
	}
	if in.ActorID <= 0 {
		return shared.Validation("ACTOR_REQUIRED", "actor_id", "actor required")
	}
	if in.AssetID == uuid.Nil {
		return shared.Validation("ASSET_REQUIRED", "asset_id", "asset required")
	}
	if in.PeriodID == uuid.Nil {
		return shared.Validation("PERIOD_REQUIRED", "period_id", "fiscal period required")
	}
	if in.AsOf.IsZero() {
		return shared.Validation("DATE_REQUIRED", "as_of", "as-of date required")
	}
	if in.PeriodMonths == 0 {
		in.PeriodMonths = 1
	}
	if in.PeriodMonths < 0 {
		return shared.Validation("INVALID_PERIOD_MONTHS", "period_months", "period months must be positive")
	}
	return nil
}

// SkipReason explains a run that posted nothing.
type SkipReason string

const (
	SkipAtSalvage      SkipReason = "AT_SALVAGE"
	SkipDisposed       SkipReason = "DISPOSED"
	SkipAlreadyCovered SkipReason = "ALREADY_DEPRECIATED"
	// SkipBelowMinorUnit: value remains above salvage but the charge rounds to zero cents.
	SkipBelowMinorUnit SkipReason = "CHARGE_BELOW_MINOR_UNIT"
)

// RunResult reports the outcome of a run.
type RunResult struct {
	Asset   Asset
	Charge  money.Amount
	Entry   *accounting.JournalEntry
	Skipped SkipReason
}

// ErrAssetNotFound indicates the asset id does not resolve.
var ErrAssetNotFound = shared.NotFound("ASSET_NOT_FOUND", "", "asset not found")

// ErrDuplicateAssetCode indicates the code is taken within the institution.
var ErrDuplicateAssetCode = &shared.Error{Kind: shared.KindConflict, Code: "DUPLICATE_ASSET_CODE", Field: "code", Message: "asset code already exists"}
