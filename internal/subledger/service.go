package subledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/budget"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// TxRepository exposes document persistence plus the ledger and budget reads
// a sub-ledger needs inside its transaction.
type TxRepository interface {
	accounting.TxRepository
	budget.TxRepository

	InsertDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, institutionID, documentID uuid.UUID) (Document, error)
	// GetDocumentForUpdate loads and locks a document for a balance change.
	GetDocumentForUpdate(ctx context.Context, institutionID, documentID uuid.UUID) (Document, error)
	UpdateDocument(ctx context.Context, doc Document) error
	InsertPayment(ctx context.Context, p Payment) error
	ListPayments(ctx context.Context, institutionID, documentID uuid.UUID) ([]Payment, error)
	ListOpenDocuments(ctx context.Context, institutionID uuid.UUID, kind Kind) ([]Document, error)
}

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records document events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Rules describe how one document family posts into the ledger.
type Rules struct {
	Kind         Kind
	SequenceType string
	SourceModule string
	// ControlSideOnIssue is the side the control account takes when a
	// document is issued. Payments post the opposite side.
	ControlSideOnIssue accounting.Side
	// BudgetSource reports which commitment source, if any, an issue is
	// checked against.
	BudgetSource func(in IssueInput) (budget.Source, bool)
}

// Ledger runs the document state machine for one family.
type Ledger struct {
	repo   RepositoryPort
	engine *accounting.Engine
	rules  Rules
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a sub-ledger service. audit may be nil.
func New(repo RepositoryPort, engine *accounting.Engine, audit AuditPort, rules Rules) *Ledger {
	return &Ledger{repo: repo, engine: engine, rules: rules, audit: audit, logger: slog.Default(), now: time.Now}
}

// WithNow overrides the clock for testing.
func (l *Ledger) WithNow(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// WithLogger sets the logger.
func (l *Ledger) WithLogger(logger *slog.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// Kind returns the document family served.
func (l *Ledger) Kind() Kind {
	return l.rules.Kind
}

// Issue creates a document and posts its issuing entry in one transaction.
func (l *Ledger) Issue(ctx context.Context, in IssueInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	var res Result
	err := l.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		res = Result{}
		if l.rules.BudgetSource != nil {
			if src, ok := l.rules.BudgetSource(in); ok {
				check, err := l.checkBudget(ctx, tx, in, src)
				if err != nil {
					return err
				}
				res.Budget = &check
			}
		}
		number, err := sequence.AllocateTx(ctx, tx, in.InstitutionID, l.rules.SequenceType)
		if err != nil {
			return err
		}
		now := l.now().UTC()
		doc := Document{
			ID:               uuid.New(),
			InstitutionID:    in.InstitutionID,
			Kind:             l.rules.Kind,
			Number:           number,
			CounterpartyName: in.CounterpartyName,
			Description:      in.Description,
			Date:             in.Date,
			DueDate:          in.DueDate,
			Amount:           in.Amount,
			Balance:          in.Amount,
			Status:           StatusOpen,
			ControlAccountID: in.ControlAccountID,
			OffsetAccountID:  in.OffsetAccountID,
			CreatedBy:        in.ActorID,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		controlSide := l.rules.ControlSideOnIssue
		entry, err := l.engine.PostTx(ctx, tx, accounting.PostingInput{
			InstitutionID: in.InstitutionID,
			ActorID:       in.ActorID,
			PeriodID:      in.PeriodID,
			Date:          in.Date,
			Description:   fmt.Sprintf("Issue %s %s", l.rules.Kind, number),
			SourceModule:  l.rules.SourceModule,
			SourceID:      doc.ID,
			Lines: []accounting.JournalLine{
				{AccountID: doc.OffsetAccountID, Amount: doc.Amount, Side: controlSide.Opposite()},
				{AccountID: doc.ControlAccountID, Amount: doc.Amount, Side: controlSide},
			},
		})
		if err != nil {
			return err
		}
		doc.IssueReference = entry.Reference
		if err := tx.InsertDocument(ctx, doc); err != nil {
			return err
		}
		res.Document = doc
		res.Entry = entry
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	l.engine.Published(ctx, res.Entry)
	l.record(ctx, in.ActorID, "document.issue", res.Document, map[string]any{
		"number": res.Document.Number,
		"amount": res.Document.Amount.String(),
	})
	return res, nil
}

func (l *Ledger) checkBudget(ctx context.Context, tx TxRepository, in IssueInput, src budget.Source) (budget.Result, error) {
	period, err := tx.GetPeriod(ctx, in.InstitutionID, in.PeriodID)
	if err != nil {
		return budget.Result{}, err
	}
	check, err := budget.CheckTx(ctx, tx, budget.CommitmentInput{
		InstitutionID: in.InstitutionID,
		AccountID:     in.OffsetAccountID,
		Amount:        in.Amount,
		Period:        period,
		Source:        src,
	})
	if err != nil {
		return budget.Result{}, err
	}
	if !check.Allowed {
		return budget.Result{}, budget.ErrBudgetExceeded.Withf("%s", check.Reason).With("offset_account_id", in.OffsetAccountID.String())
	}
	if check.Advisory {
		l.logger.Info("budget advisory",
			slog.String("kind", string(l.rules.Kind)),
			slog.String("account_id", in.OffsetAccountID.String()),
			slog.String("reason", check.Reason))
	}
	return check, nil
}

// ApplyPayment settles part or all of a document's balance.
func (l *Ledger) ApplyPayment(ctx context.Context, in PaymentInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	var res Result
	err := l.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		res = Result{}
		doc, err := tx.GetDocumentForUpdate(ctx, in.InstitutionID, in.DocumentID)
		if err != nil {
			return err
		}
		if doc.Kind != l.rules.Kind {
			return ErrDocumentNotFound.With("", in.DocumentID.String())
		}
		if in.Amount > doc.Balance {
			return ErrOverpayment.Withf("payment %s exceeds outstanding balance %s", in.Amount, doc.Balance).With("amount", doc.ID.String())
		}
		now := l.now().UTC()
		doc.Balance -= in.Amount
		doc.Status = StatusFor(doc.Amount, doc.Balance)
		doc.UpdatedAt = now

		controlSide := l.rules.ControlSideOnIssue.Opposite()
		entry, err := l.engine.PostTx(ctx, tx, accounting.PostingInput{
			InstitutionID: in.InstitutionID,
			ActorID:       in.ActorID,
			PeriodID:      in.PeriodID,
			Date:          in.Date,
			Description:   fmt.Sprintf("Payment %s %s", l.rules.Kind, doc.Number),
			SourceModule:  l.rules.SourceModule + ":PAYMENT",
			SourceID:      doc.ID,
			Lines: []accounting.JournalLine{
				{AccountID: doc.ControlAccountID, Amount: in.Amount, Side: controlSide},
				{AccountID: in.CashAccountID, Amount: in.Amount, Side: controlSide.Opposite()},
			},
		})
		if err != nil {
			return err
		}
		payment := Payment{
			ID:            uuid.New(),
			InstitutionID: in.InstitutionID,
			DocumentID:    doc.ID,
			Amount:        in.Amount,
			CashAccountID: in.CashAccountID,
			Reference:     entry.Reference,
			EntryID:       entry.ID,
			AppliedBy:     in.ActorID,
			AppliedAt:     now,
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		res.Document = doc
		res.Entry = entry
		res.Payment = &payment
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	l.engine.Published(ctx, res.Entry)
	l.record(ctx, in.ActorID, "document.payment", res.Document, map[string]any{
		"payment_id": res.Payment.ID.String(),
		"amount":     res.Payment.Amount.String(),
		"balance":    res.Document.Balance.String(),
		"status":     string(res.Document.Status),
	})
	return res, nil
}

// Get returns a document of this family.
func (l *Ledger) Get(ctx context.Context, institutionID, documentID uuid.UUID) (Document, error) {
	var doc Document
	err := l.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		doc, err = tx.GetDocument(ctx, institutionID, documentID)
		return err
	})
	if err != nil {
		return Document{}, err
	}
	if doc.Kind != l.rules.Kind {
		return Document{}, ErrDocumentNotFound.With("", documentID.String())
	}
	return doc, nil
}

// Payments returns the applications recorded against a document, oldest first.
func (l *Ledger) Payments(ctx context.Context, institutionID, documentID uuid.UUID) ([]Payment, error) {
	var out []Payment
	err := l.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListPayments(ctx, institutionID, documentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AppliedAt.Before(out[j].AppliedAt) })
	return out, nil
}

// Aging buckets open balances by days past due as of asOf.
func (l *Ledger) Aging(ctx context.Context, institutionID uuid.UUID, asOf time.Time) (AgingReport, error) {
	var docs []Document
	err := l.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		docs, err = tx.ListOpenDocuments(ctx, institutionID, l.rules.Kind)
		return err
	})
	if err != nil {
		return AgingReport{}, err
	}
	return BuildAging(docs, asOf), nil
}

// BuildAging folds documents into an aging report.
func BuildAging(docs []Document, asOf time.Time) AgingReport {
	report := AgingReport{AsOf: asOf}
	byParty := make(map[string]*AgingDetail)
	for _, doc := range docs {
		if doc.Balance <= 0 {
			continue
		}
		detail, ok := byParty[doc.CounterpartyName]
		if !ok {
			detail = &AgingDetail{CounterpartyName: doc.CounterpartyName}
			byParty[doc.CounterpartyName] = detail
		}
		daysOverdue := int(asOf.Sub(doc.DueDate).Hours() / 24)
		switch {
		case daysOverdue <= 0:
			report.Summary.Current += doc.Balance
			detail.Current += doc.Balance
		case daysOverdue <= 30:
			report.Summary.Bucket30 += doc.Balance
			detail.Bucket30 += doc.Balance
		case daysOverdue <= 60:
			report.Summary.Bucket60 += doc.Balance
			detail.Bucket60 += doc.Balance
		case daysOverdue <= 90:
			report.Summary.Bucket90 += doc.Balance
			detail.Bucket90 += doc.Balance
		default:
			report.Summary.Over90 += doc.Balance
			detail.Over90 += doc.Balance
		}
	}
	for _, detail := range byParty {
		report.Details = append(report.Details, *detail)
	}
	sort.Slice(report.Details, func(i, j int) bool {
		return report.Details[i].CounterpartyName < report.Details[j].CounterpartyName
	})
	return report
}

func (l *Ledger) record(ctx context.Context, actorID int64, action string, doc Document, meta map[string]any) {
	if l.audit == nil {
		return
	}
	meta["kind"] = string(doc.Kind)
	if err := l.audit.Record(ctx, shared.AuditLog{
		InstitutionID: doc.InstitutionID,
		ActorID:       actorID,
		Action:        action,
		Entity:        "document",
		EntityID:      doc.ID.String(),
		Meta:          meta,
		At:            l.now(),
	}); err != nil {
		l.logger.Warn("document audit failed", slog.String("document_id", doc.ID.String()), slog.Any("error", err))
	}
}
