package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/accounting/periods"
	"github.com/odyssey-erp/ledgercore/internal/assets"
	"github.com/odyssey-erp/ledgercore/internal/budget"
	"github.com/odyssey-erp/ledgercore/internal/money"
	"github.com/odyssey-erp/ledgercore/internal/subledger"
)

const dateLayout = time.DateOnly

type lineRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid"`
	Amount    string `json:"amount" validate:"required"`
	Side      string `json:"side" validate:"required,oneof=DEBIT CREDIT"`
	Memo      string `json:"memo" validate:"max=255"`
}

type postJournalRequest struct {
	PeriodID     string        `json:"period_id" validate:"required,uuid"`
	Date         string        `json:"date" validate:"required,datetime=2006-01-02"`
	Description  string        `json:"description" validate:"max=500"`
	SourceModule string        `json:"source_module" validate:"omitempty,max=64"`
	SourceID     string        `json:"source_id" validate:"omitempty,uuid"`
	Lines        []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type reverseRequest struct {
	PeriodID    string `json:"period_id" validate:"required,uuid"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Description string `json:"description" validate:"max=500"`
}

type createAccountRequest struct {
	Code               string `json:"code" validate:"required,max=32"`
	Name               string `json:"name" validate:"required,max=200"`
	Type               string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE"`
	Subtype            string `json:"subtype" validate:"max=64"`
	IsTrackedForBudget bool   `json:"is_tracked_for_budget"`
	MonthlyLimit       string `json:"monthly_limit"`
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type configureSequenceRequest struct {
	Prefix     string `json:"prefix" validate:"max=16"`
	NextNumber int64  `json:"next_number" validate:"omitempty,min=1"`
	Padding    int    `json:"padding" validate:"min=0,max=18"`
}

type issueRequest struct {
	PeriodID          string `json:"period_id" validate:"required,uuid"`
	CounterpartyName  string `json:"counterparty_name" validate:"required,max=200"`
	Description       string `json:"description" validate:"max=500"`
	Date              string `json:"date" validate:"required,datetime=2006-01-02"`
	DueDate           string `json:"due_date" validate:"required,datetime=2006-01-02"`
	Amount            string `json:"amount" validate:"required"`
	ControlAccountID  string `json:"control_account_id" validate:"required,uuid"`
	OffsetAccountID   string `json:"offset_account_id" validate:"required,uuid"`
	FromPurchaseOrder bool   `json:"from_purchase_order"`
}

type paymentRequest struct {
	PeriodID      string `json:"period_id" validate:"required,uuid"`
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	Amount        string `json:"amount" validate:"required"`
	CashAccountID string `json:"cash_account_id" validate:"required,uuid"`
}

type registerAssetRequest struct {
	Code                 string `json:"code" validate:"required,max=32"`
	Name                 string `json:"name" validate:"max=200"`
	PurchasePrice        string `json:"purchase_price" validate:"required"`
	SalvageValue         string `json:"salvage_value"`
	UsefulLifeYears      int    `json:"useful_life_years" validate:"required,min=1,max=100"`
	Method               string `json:"method" validate:"required,oneof=STRAIGHT_LINE REDUCING_BALANCE"`
	DeclineRate          string `json:"decline_rate"`
	ExpenseAccountID     string `json:"expense_account_id" validate:"required,uuid"`
	AccumulatedAccountID string `json:"accumulated_account_id" validate:"required,uuid"`
	AcquiredOn           string `json:"acquired_on" validate:"required,datetime=2006-01-02"`
}

type depreciationRequest struct {
	PeriodID     string `json:"period_id" validate:"required,uuid"`
	AsOf         string `json:"as_of" validate:"required,datetime=2006-01-02"`
	PeriodMonths int    `json:"period_months" validate:"omitempty,min=1,max=12"`
}

type budgetCheckRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid"`
	Amount    string `json:"amount" validate:"required"`
	PeriodID  string `json:"period_id" validate:"required,uuid"`
	Source    string `json:"source" validate:"required,oneof=EXPENSE PURCHASE_ORDER"`
}

type policyRequest struct {
	StrictBudgetControl bool   `json:"strict_budget_control"`
	StrictPOEnforcement bool   `json:"strict_po_enforcement"`
	VarianceTolerance   string `json:"variance_tolerance"`
}

type createPeriodRequest struct {
	Code      string `json:"code" validate:"required,max=32"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type transitionPeriodRequest struct {
	Status   string `json:"status" validate:"required,oneof=OPEN CLOSED LOCKED"`
	Override bool   `json:"override"`
}

type accountResponse struct {
	ID                 uuid.UUID `json:"id"`
	Code               string    `json:"code"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	Subtype            string    `json:"subtype,omitempty"`
	Balance            string    `json:"balance"`
	IsActive           bool      `json:"is_active"`
	IsTrackedForBudget bool      `json:"is_tracked_for_budget"`
	MonthlyLimit       *string   `json:"monthly_limit,omitempty"`
}

func newAccountResponse(a accounting.Account) accountResponse {
	out := accountResponse{
		ID:                 a.ID,
		Code:               a.Code,
		Name:               a.Name,
		Type:               string(a.Type),
		Subtype:            a.Subtype,
		Balance:            a.Balance.String(),
		IsActive:           a.IsActive,
		IsTrackedForBudget: a.IsTrackedForBudget,
	}
	if a.MonthlyLimit != nil {
		s := a.MonthlyLimit.String()
		out.MonthlyLimit = &s
	}
	return out
}

type lineResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Amount    string    `json:"amount"`
	Side      string    `json:"side"`
	Memo      string    `json:"memo,omitempty"`
}

type journalResponse struct {
	ID           uuid.UUID      `json:"id"`
	Reference    string         `json:"reference"`
	PeriodID     uuid.UUID      `json:"period_id"`
	Date         string         `json:"date"`
	Description  string         `json:"description,omitempty"`
	SourceModule string         `json:"source_module"`
	SourceID     uuid.UUID      `json:"source_id"`
	Lines        []lineResponse `json:"lines"`
	PostedBy     int64          `json:"posted_by"`
	PostedAt     time.Time      `json:"posted_at"`
	ReversalOf   *uuid.UUID     `json:"reversal_of,omitempty"`
}

func newJournalResponse(e accounting.JournalEntry) journalResponse {
	lines := make([]lineResponse, 0, len(e.Lines))
	for _, l := range e.Lines {
		lines = append(lines, lineResponse{AccountID: l.AccountID, Amount: l.Amount.String(), Side: string(l.Side), Memo: l.Memo})
	}
	return journalResponse{
		ID:           e.ID,
		Reference:    e.Reference,
		PeriodID:     e.PeriodID,
		Date:         e.Date.Format(dateLayout),
		Description:  e.Description,
		SourceModule: e.SourceModule,
		SourceID:     e.SourceID,
		Lines:        lines,
		PostedBy:     e.PostedBy,
		PostedAt:     e.PostedAt,
		ReversalOf:   e.ReversalOf,
	}
}

type documentResponse struct {
	ID               uuid.UUID `json:"id"`
	Kind             string    `json:"kind"`
	Number           string    `json:"number"`
	CounterpartyName string    `json:"counterparty_name"`
	Description      string    `json:"description,omitempty"`
	Date             string    `json:"date"`
	DueDate          string    `json:"due_date"`
	Amount           string    `json:"amount"`
	Balance          string    `json:"balance"`
	Status           string    `json:"status"`
	Overdue          bool      `json:"overdue"`
	ControlAccountID uuid.UUID `json:"control_account_id"`
	OffsetAccountID  uuid.UUID `json:"offset_account_id"`
	IssueReference   string    `json:"issue_reference"`
}

func newDocumentResponse(d subledger.Document, now time.Time) documentResponse {
	return documentResponse{
		ID:               d.ID,
		Kind:             string(d.Kind),
		Number:           d.Number,
		CounterpartyName: d.CounterpartyName,
		Description:      d.Description,
		Date:             d.Date.Format(dateLayout),
		DueDate:          d.DueDate.Format(dateLayout),
		Amount:           d.Amount.String(),
		Balance:          d.Balance.String(),
		Status:           string(d.ReportedStatus(now)),
		Overdue:          d.Overdue(now),
		ControlAccountID: d.ControlAccountID,
		OffsetAccountID:  d.OffsetAccountID,
		IssueReference:   d.IssueReference,
	}
}

type paymentResponse struct {
	ID            uuid.UUID `json:"id"`
	DocumentID    uuid.UUID `json:"document_id"`
	Amount        string    `json:"amount"`
	CashAccountID uuid.UUID `json:"cash_account_id"`
	Reference     string    `json:"reference"`
	EntryID       uuid.UUID `json:"entry_id"`
	AppliedBy     int64     `json:"applied_by"`
	AppliedAt     time.Time `json:"applied_at"`
}

func newPaymentResponse(p subledger.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		DocumentID:    p.DocumentID,
		Amount:        p.Amount.String(),
		CashAccountID: p.CashAccountID,
		Reference:     p.Reference,
		EntryID:       p.EntryID,
		AppliedBy:     p.AppliedBy,
		AppliedAt:     p.AppliedAt,
	}
}

type budgetResponse struct {
	Allowed   bool   `json:"allowed"`
	Advisory  bool   `json:"advisory"`
	Reason    string `json:"reason,omitempty"`
	Limit     string `json:"limit"`
	Actual    string `json:"actual"`
	Projected string `json:"projected"`
	Threshold string `json:"threshold"`
}

func newBudgetResponse(r budget.Result) budgetResponse {
	return budgetResponse{
		Allowed:   r.Allowed,
		Advisory:  r.Advisory,
		Reason:    r.Reason,
		Limit:     r.Limit.String(),
		Actual:    r.Actual.String(),
		Projected: r.Projected.String(),
		Threshold: r.Threshold.StringFixed(money.MinorDigits),
	}
}

type documentResultResponse struct {
	Document documentResponse `json:"document"`
	Entry    journalResponse  `json:"entry"`
	Payment  *paymentResponse `json:"payment,omitempty"`
	Budget   *budgetResponse  `json:"budget,omitempty"`
}

func newDocumentResultResponse(r subledger.Result, now time.Time) documentResultResponse {
	out := documentResultResponse{
		Document: newDocumentResponse(r.Document, now),
		Entry:    newJournalResponse(r.Entry),
	}
	if r.Payment != nil {
		p := newPaymentResponse(*r.Payment)
		out.Payment = &p
	}
	if r.Budget != nil {
		b := newBudgetResponse(*r.Budget)
		out.Budget = &b
	}
	return out
}

type agingBucketResponse struct {
	Current  string `json:"current"`
	Bucket30 string `json:"bucket_30"`
	Bucket60 string `json:"bucket_60"`
	Bucket90 string `json:"bucket_90"`
	Over90   string `json:"over_90"`
	Total    string `json:"total"`
}

func newAgingBucketResponse(b subledger.AgingBucket) agingBucketResponse {
	return agingBucketResponse{
		Current:  b.Current.String(),
		Bucket30: b.Bucket30.String(),
		Bucket60: b.Bucket60.String(),
		Bucket90: b.Bucket90.String(),
		Over90:   b.Over90.String(),
		Total:    b.Total().String(),
	}
}

type agingDetailResponse struct {
	CounterpartyName string `json:"counterparty_name"`
	agingBucketResponse
}

type agingResponse struct {
	AsOf    string                `json:"as_of"`
	Summary agingBucketResponse   `json:"summary"`
	Details []agingDetailResponse `json:"details"`
}

func newAgingResponse(r subledger.AgingReport) agingResponse {
	details := make([]agingDetailResponse, 0, len(r.Details))
	for _, d := range r.Details {
		details = append(details, agingDetailResponse{CounterpartyName: d.CounterpartyName, agingBucketResponse: newAgingBucketResponse(d.AgingBucket)})
	}
	return agingResponse{AsOf: r.AsOf.Format(dateLayout), Summary: newAgingBucketResponse(r.Summary), Details: details}
}

type assetResponse struct {
	ID                      uuid.UUID `json:"id"`
	Code                    string    `json:"code"`
	Name                    string    `json:"name,omitempty"`
	PurchasePrice           string    `json:"purchase_price"`
	SalvageValue            string    `json:"salvage_value"`
	UsefulLifeYears         int       `json:"useful_life_years"`
	Method                  string    `json:"method"`
	DeclineRate             *string   `json:"decline_rate,omitempty"`
	AccumulatedDepreciation string    `json:"accumulated_depreciation"`
	CurrentValue            string    `json:"current_value"`
	Status                  string    `json:"status"`
	AcquiredOn              string    `json:"acquired_on"`
	DepreciatedThrough      *string   `json:"depreciated_through,omitempty"`
}

func newAssetResponse(a assets.Asset) assetResponse {
	out := assetResponse{
		ID:                      a.ID,
		Code:                    a.Code,
		Name:                    a.Name,
		PurchasePrice:           a.PurchasePrice.String(),
		SalvageValue:            a.SalvageValue.String(),
		UsefulLifeYears:         a.UsefulLifeYears,
		Method:                  string(a.Method),
		AccumulatedDepreciation: a.AccumulatedDepreciation.String(),
		CurrentValue:            a.CurrentValue.String(),
		Status:                  string(a.Status),
		AcquiredOn:              a.AcquiredOn.Format(dateLayout),
	}
	if a.DeclineRate != nil {
		s := a.DeclineRate.String()
		out.DeclineRate = &s
	}
	if a.DepreciatedThrough != nil {
		s := a.DepreciatedThrough.Format(dateLayout)
		out.DepreciatedThrough = &s
	}
	return out
}

type runResponse struct {
	Asset   assetResponse    `json:"asset"`
	Charge  string           `json:"charge"`
	Entry   *journalResponse `json:"entry,omitempty"`
	Skipped string           `json:"skipped,omitempty"`
}

func newRunResponse(r assets.RunResult) runResponse {
	out := runResponse{Asset: newAssetResponse(r.Asset), Charge: r.Charge.String(), Skipped: string(r.Skipped)}
	if r.Entry != nil {
		e := newJournalResponse(*r.Entry)
		out.Entry = &e
	}
	return out
}

type policyResponse struct {
	StrictBudgetControl bool   `json:"strict_budget_control"`
	StrictPOEnforcement bool   `json:"strict_po_enforcement"`
	VarianceTolerance   string `json:"variance_tolerance"`
}

func newPolicyResponse(p budget.Policy) policyResponse {
	return policyResponse{
		StrictBudgetControl: p.StrictBudgetControl,
		StrictPOEnforcement: p.StrictPOEnforcement,
		VarianceTolerance:   p.VarianceTolerance.String(),
	}
}

type periodResponse struct {
	ID        uuid.UUID  `json:"id"`
	Code      string     `json:"code"`
	StartDate string     `json:"start_date"`
	EndDate   string     `json:"end_date"`
	Status    string     `json:"status"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

func newPeriodResponse(p periods.Period) periodResponse {
	return periodResponse{
		ID:        p.ID,
		Code:      p.Code,
		StartDate: p.StartDate.Format(dateLayout),
		EndDate:   p.EndDate.Format(dateLayout),
		Status:    string(p.Status),
		ClosedAt:  p.ClosedAt,
	}
}
