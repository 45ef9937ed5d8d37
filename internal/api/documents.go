package api

import (
	"net/http"

	"github.com/odyssey-erp/ledgercore/internal/assets"
	"github.com/odyssey-erp/ledgercore/internal/budget"
	"github.com/odyssey-erp/ledgercore/internal/platform/httpx"
	"github.com/odyssey-erp/ledgercore/internal/shared"
	"github.com/odyssey-erp/ledgercore/internal/subledger"
)

func (h *Handler) issueDocument(w http.ResponseWriter, r *http.Request) {
	l, err := h.ledgerFor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	var req issueRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		h.fail(w, err)
		return
	}
	p := principalFrom(r.Context())
	res, err := l.Issue(r.Context(), subledger.IssueInput{
		InstitutionID:     p.InstitutionID,
		ActorID:           p.ActorID,
		PeriodID:          parseUUID(req.PeriodID),
		CounterpartyName:  req.CounterpartyName,
		Description:       req.Description,
		Date:              parseDate(req.Date),
		DueDate:           parseDate(req.DueDate),
		Amount:            amount,
		ControlAccountID:  parseUUID(req.ControlAccountID),
		OffsetAccountID:   parseUUID(req.OffsetAccountID),
		FromPurchaseOrder: req.FromPurchaseOrder,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newDocumentResultResponse(res, h.now()))
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	l, err := h.ledgerFor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	doc, err := l.Get(r.Context(), principalFrom(r.Context()).InstitutionID, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newDocumentResponse(doc, h.now()))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	l, err := h.ledgerFor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	payments, err := l.Payments(r.Context(), principalFrom(r.Context()).InstitutionID, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, newPaymentResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	l, err := h.ledgerFor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req paymentRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		h.fail(w, err)
		return
	}
	p := principalFrom(r.Context())
	res, err := l.ApplyPayment(r.Context(), subledger.PaymentInput{
		InstitutionID: p.InstitutionID,
		ActorID:       p.ActorID,
		PeriodID:      parseUUID(req.PeriodID),
		DocumentID:    id,
		Amount:        amount,
		CashAccountID: parseUUID(req.CashAccountID),
		Date:          parseDate(req.Date),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newDocumentResultResponse(res, h.now()))
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	l, err := h.ledgerFor(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	asOf := h.now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		asOf = parseDate(raw)
		if asOf.IsZero() {
			h.fail(w, shared.Validation("INVALID_DATE", "as_of", "as_of must be YYYY-MM-DD"))
			return
		}
	}
	report, err := l.Aging(r.Context(), principalFrom(r.Context()).InstitutionID, asOf)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newAgingResponse(report))
}

func (h *Handler) listAssets(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Assets.ListActive(r.Context(), principalFrom(r.Context()).InstitutionID)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]assetResponse, 0, len(list))
	for _, a := range list {
		out = append(out, newAssetResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) registerAsset(w http.ResponseWriter, r *http.Request) {
	var req registerAssetRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	price, err := parseAmount("purchase_price", req.PurchasePrice)
	if err != nil {
		h.fail(w, err)
		return
	}
	salvage, err := parseOptionalAmount("salvage_value", req.SalvageValue)
	if err != nil {
		h.fail(w, err)
		return
	}
	rate, err := parseOptionalDecimal("decline_rate", req.DeclineRate)
	if err != nil {
		h.fail(w, err)
		return
	}
	in := assets.RegisterInput{
		Code:                 req.Code,
		Name:                 req.Name,
		PurchasePrice:        price,
		UsefulLifeYears:      req.UsefulLifeYears,
		Method:               assets.Method(req.Method),
		DeclineRate:          rate,
		ExpenseAccountID:     parseUUID(req.ExpenseAccountID),
		AccumulatedAccountID: parseUUID(req.AccumulatedAccountID),
		AcquiredOn:           parseDate(req.AcquiredOn),
	}
	if salvage != nil {
		in.SalvageValue = *salvage
	}
	p := principalFrom(r.Context())
	in.InstitutionID, in.ActorID = p.InstitutionID, p.ActorID
	a, err := h.deps.Assets.Register(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newAssetResponse(a))
}

func (h *Handler) getAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	a, err := h.deps.Assets.Get(r.Context(), principalFrom(r.Context()).InstitutionID, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newAssetResponse(a))
}

func (h *Handler) runDepreciation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req depreciationRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	p := principalFrom(r.Context())
	res, err := h.deps.Assets.RunDepreciation(r.Context(), assets.RunInput{
		InstitutionID: p.InstitutionID,
		ActorID:       p.ActorID,
		AssetID:       id,
		PeriodID:      parseUUID(req.PeriodID),
		AsOf:          parseDate(req.AsOf),
		PeriodMonths:  req.PeriodMonths,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	status := http.StatusCreated
	if res.Entry == nil {
		status = http.StatusOK
	}
	httpx.JSON(w, status, newRunResponse(res))
}

func (h *Handler) disposeAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	p := principalFrom(r.Context())
	a, err := h.deps.Assets.Dispose(r.Context(), p.InstitutionID, id, p.ActorID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newAssetResponse(a))
}

func (h *Handler) checkBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetCheckRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		h.fail(w, err)
		return
	}
	p := principalFrom(r.Context())
	period, err := h.deps.Periods.Get(r.Context(), p.InstitutionID, parseUUID(req.PeriodID))
	if err != nil {
		h.fail(w, err)
		return
	}
	res, err := h.deps.Guard.CheckCommitment(r.Context(), budget.CommitmentInput{
		InstitutionID: p.InstitutionID,
		AccountID:     parseUUID(req.AccountID),
		Amount:        amount,
		Period:        period,
		Source:        budget.Source(req.Source),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newBudgetResponse(res))
}

func (h *Handler) getPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.deps.Guard.Policy(r.Context(), principalFrom(r.Context()).InstitutionID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newPolicyResponse(policy))
}

func (h *Handler) setPolicy(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	tolerance, err := parseOptionalDecimal("variance_tolerance", req.VarianceTolerance)
	if err != nil {
		h.fail(w, err)
		return
	}
	policy := budget.Policy{
		InstitutionID:       principalFrom(r.Context()).InstitutionID,
		StrictBudgetControl: req.StrictBudgetControl,
		StrictPOEnforcement: req.StrictPOEnforcement,
	}
	if tolerance != nil {
		policy.VarianceTolerance = *tolerance
	}
	saved, err := h.deps.Guard.SetPolicy(r.Context(), policy)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newPolicyResponse(saved))
}
