package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/accounting/periods"
	"github.com/odyssey-erp/ledgercore/internal/platform/httpx"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
)

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	accounts, err := h.deps.Engine.ListAccounts(r.Context(), p.InstitutionID)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, newAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	limit, err := parseOptionalAmount("monthly_limit", req.MonthlyLimit)
	if err != nil {
		h.fail(w, err)
		return
	}
	p := principalFrom(r.Context())
	acct, err := h.deps.Engine.CreateAccount(r.Context(), accounting.CreateAccountInput{
		InstitutionID:      p.InstitutionID,
		ActorID:            p.ActorID,
		Code:               req.Code,
		Name:               req.Name,
		Type:               accounting.AccountType(req.Type),
		Subtype:            req.Subtype,
		IsTrackedForBudget: req.IsTrackedForBudget,
		MonthlyLimit:       limit,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newAccountResponse(acct))
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	acct, err := h.deps.Engine.GetAccount(r.Context(), principalFrom(r.Context()).InstitutionID, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newAccountResponse(acct))
}

func (h *Handler) setAccountActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req setActiveRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	p := principalFrom(r.Context())
	acct, err := h.deps.Engine.SetAccountActive(r.Context(), p.InstitutionID, id, *req.Active, p.ActorID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newAccountResponse(acct))
}

func (h *Handler) postJournal(w http.ResponseWriter, r *http.Request) {
	var req postJournalRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	lines := make([]accounting.JournalLine, 0, len(req.Lines))
	for i, l := range req.Lines {
		amt, err := parseAmount(fmt.Sprintf("lines[%d].amount", i), l.Amount)
		if err != nil {
			h.fail(w, err)
			return
		}
		lines = append(lines, accounting.JournalLine{
			AccountID: parseUUID(l.AccountID),
			Amount:    amt,
			Side:      accounting.Side(l.Side),
			Memo:      l.Memo,
		})
	}
	source := req.SourceModule
	if source == "" {
		source = "MANUAL"
	}
	p := principalFrom(r.Context())
	entry, err := h.deps.Engine.Post(r.Context(), accounting.PostingInput{
		InstitutionID: p.InstitutionID,
		ActorID:       p.ActorID,
		PeriodID:      parseUUID(req.PeriodID),
		Date:          parseDate(req.Date),
		Description:   req.Description,
		SourceModule:  source,
		SourceID:      parseUUID(req.SourceID),
		Lines:         lines,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newJournalResponse(entry))
}

func (h *Handler) getJournal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	entry, err := h.deps.Engine.GetJournalEntry(r.Context(), principalFrom(r.Context()).InstitutionID, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newJournalResponse(entry))
}

func (h *Handler) reverseJournal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req reverseRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	p := principalFrom(r.Context())
	entry, err := h.deps.Engine.Reverse(r.Context(), accounting.ReverseInput{
		InstitutionID: p.InstitutionID,
		ActorID:       p.ActorID,
		EntryID:       id,
		PeriodID:      parseUUID(req.PeriodID),
		Date:          parseDate(req.Date),
		Description:   req.Description,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newJournalResponse(entry))
}

type discrepancyResponse struct {
	AccountID string `json:"account_id"`
	Code      string `json:"code"`
	Stored    string `json:"stored"`
	Replayed  string `json:"replayed"`
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	found, err := h.deps.Engine.Reconcile(r.Context(), principalFrom(r.Context()).InstitutionID)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]discrepancyResponse, 0, len(found))
	for _, d := range found {
		out = append(out, discrepancyResponse{AccountID: d.AccountID.String(), Code: d.Code, Stored: d.Stored.String(), Replayed: d.Replayed.String()})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"consistent": len(out) == 0, "discrepancies": out})
}

func (h *Handler) configureSequence(w http.ResponseWriter, r *http.Request) {
	var req configureSequenceRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	c, err := h.deps.Sequences.Configure(r.Context(), sequence.Counter{
		InstitutionID: principalFrom(r.Context()).InstitutionID,
		DocumentType:  chi.URLParam(r, "type"),
		Prefix:        req.Prefix,
		NextNumber:    req.NextNumber,
		Padding:       req.Padding,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"document_type": c.DocumentType,
		"prefix":        c.Prefix,
		"next_number":   c.NextNumber,
		"padding":       c.Padding,
	})
}

func (h *Handler) allocateReference(w http.ResponseWriter, r *http.Request) {
	docType := chi.URLParam(r, "type")
	pr := principalFrom(r.Context())
	ref, err := h.deps.Sequences.AllocateReference(r.Context(), pr.InstitutionID, docType, pr.ActorID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"document_type": docType, "reference": ref})
}

func (h *Handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	var req createPeriodRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	p, err := h.deps.Periods.Create(r.Context(), periods.CreateInput{
		InstitutionID: principalFrom(r.Context()).InstitutionID,
		Code:          req.Code,
		StartDate:     parseDate(req.StartDate),
		EndDate:       parseDate(req.EndDate),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newPeriodResponse(p))
}

func (h *Handler) getPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	p, err := h.deps.Periods.Get(r.Context(), principalFrom(r.Context()).InstitutionID, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newPeriodResponse(p))
}

func (h *Handler) transitionPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req transitionPeriodRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	pr := principalFrom(r.Context())
	p, err := h.deps.Periods.Transition(r.Context(), pr.InstitutionID, id, periods.PeriodStatus(req.Status), req.Override, pr.ActorID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newPeriodResponse(p))
}
