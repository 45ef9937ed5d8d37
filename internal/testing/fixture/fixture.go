// Package fixture builds a seeded in-memory ledger for tests.
package fixture

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/accounting/periods"
	"github.com/odyssey-erp/ledgercore/internal/budget"
	"github.com/odyssey-erp/ledgercore/internal/money"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/shared"
	"github.com/odyssey-erp/ledgercore/internal/store/memory"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("LEDGER_TEST_MODE") == "" {
			_ = os.Setenv("LEDGER_TEST_MODE", "1")
		}
	})
}

// Account codes seeded by New.
const (
	Cash                    = "1000"
	Receivables             = "1100"
	Equipment               = "1500"
	AccumulatedDepreciation = "1590"
	Payables                = "2000"
	ClaimsPayable           = "2100"
	Revenue                 = "4000"
	OfficeSupplies          = "6000"
	Depreciation            = "6100"
	Travel                  = "6200"
)

// OfficeSuppliesLimit is the monthly budget on OfficeSupplies.
var OfficeSuppliesLimit = money.Major(1000)

// Now is the fixed clock every seeded service uses.
var Now = time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

// Ledger is a seeded institution on a fresh memory store.
type Ledger struct {
	Store       *memory.Store
	Engine      *accounting.Engine
	Sequences   *sequence.Generator
	Periods     *periods.Service
	Guard       *budget.Guard
	Audit       *AuditRecorder
	Notifier    *Notifier
	Institution uuid.UUID
	Actor       int64
	Period      periods.Period
	accounts    map[string]accounting.Account
}

// New seeds one institution with counters, an open January 2025 period and
// a small chart of accounts.
func New(t testing.TB, opts ...memory.Option) *Ledger {
	t.Helper()
	ctx := context.Background()
	store := memory.New(opts...)
	audit := &AuditRecorder{}
	notifier := &Notifier{}

	engine := accounting.NewEngine(store.Ledger(), audit, notifier)
	engine.WithNow(func() time.Time { return Now })
	l := &Ledger{
		Store:       store,
		Engine:      engine,
		Sequences:   sequence.NewGenerator(store.Sequences(), audit),
		Periods:     periods.NewService(store.Periods(), audit),
		Guard:       budget.NewGuard(store.Budget()),
		Audit:       audit,
		Notifier:    notifier,
		Institution: uuid.New(),
		Actor:       7,
		accounts:    make(map[string]accounting.Account),
	}

	for docType, prefix := range map[string]string{
		sequence.TypeJournal: "JV-",
		sequence.TypeBill:    "BILL-",
		sequence.TypeInvoice: "INV-",
		sequence.TypeExpense: "EXP-",
	} {
		_, err := l.Sequences.Configure(ctx, sequence.Counter{
			InstitutionID: l.Institution,
			DocumentType:  docType,
			Prefix:        prefix,
			Padding:       6,
		})
		require.NoError(t, err)
	}

	period, err := l.Periods.Create(ctx, periods.CreateInput{
		InstitutionID: l.Institution,
		Code:          "2025-01",
		StartDate:     time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	l.Period = period

	limit := OfficeSuppliesLimit
	seed := []accounting.CreateAccountInput{
		{Code: Cash, Name: "Cash", Type: accounting.AccountTypeAsset},
		{Code: Receivables, Name: "Accounts Receivable", Type: accounting.AccountTypeAsset},
		{Code: Equipment, Name: "Equipment", Type: accounting.AccountTypeAsset},
		{Code: AccumulatedDepreciation, Name: "Accumulated Depreciation", Type: accounting.AccountTypeAsset, Subtype: "CONTRA"},
		{Code: Payables, Name: "Accounts Payable", Type: accounting.AccountTypeLiability},
		{Code: ClaimsPayable, Name: "Claims Payable", Type: accounting.AccountTypeLiability},
		{Code: Revenue, Name: "Revenue", Type: accounting.AccountTypeIncome},
		{Code: OfficeSupplies, Name: "Office Supplies", Type: accounting.AccountTypeExpense, IsTrackedForBudget: true, MonthlyLimit: &limit},
		{Code: Depreciation, Name: "Depreciation Expense", Type: accounting.AccountTypeExpense},
		{Code: Travel, Name: "Travel", Type: accounting.AccountTypeExpense},
	}
	for _, in := range seed {
		in.InstitutionID = l.Institution
		in.ActorID = l.Actor
		acct, err := engine.CreateAccount(ctx, in)
		require.NoError(t, err)
		l.accounts[in.Code] = acct
	}
	audit.Reset()
	return l
}

// Account returns the id of a seeded account.
func (l *Ledger) Account(code string) uuid.UUID {
	acct, ok := l.accounts[code]
	if !ok {
		panic("fixture: unknown account code " + code)
	}
	return acct.ID
}

// Balance reads the committed balance of a seeded account.
func (l *Ledger) Balance(t testing.TB, code string) money.Amount {
	t.Helper()
	acct, err := l.Engine.GetAccount(context.Background(), l.Institution, l.Account(code))
	require.NoError(t, err)
	return acct.Balance
}

// Posting builds a two-line entry debiting debit and crediting credit.
func (l *Ledger) Posting(debit, credit string, amount money.Amount) accounting.PostingInput {
	return accounting.PostingInput{
		InstitutionID: l.Institution,
		ActorID:       l.Actor,
		PeriodID:      l.Period.ID,
		Date:          Now,
		Description:   "test posting",
		SourceModule:  "GL",
		Lines: []accounting.JournalLine{
			{AccountID: l.Account(debit), Amount: amount, Side: accounting.SideDebit},
			{AccountID: l.Account(credit), Amount: amount, Side: accounting.SideCredit},
		},
	}
}

// RequireReconciled fails the test when any stored balance disagrees with
// a replay of the journal.
func (l *Ledger) RequireReconciled(t testing.TB) {
	t.Helper()
	diffs, err := l.Engine.Reconcile(context.Background(), l.Institution)
	require.NoError(t, err)
	require.Empty(t, diffs)
}

// AuditRecorder collects audit records in memory.
type AuditRecorder struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

// Record implements the audit ports.
func (r *AuditRecorder) Record(_ context.Context, log shared.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

// Actions lists recorded actions in order.
func (r *AuditRecorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for _, log := range r.logs {
		out = append(out, log.Action)
	}
	return out
}

// Logs returns a copy of the recorded logs.
func (r *AuditRecorder) Logs() []shared.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]shared.AuditLog(nil), r.logs...)
}

// Reset drops every recorded log.
func (r *AuditRecorder) Reset() {
	r.mu.Lock()
	r.logs = nil
	r.mu.Unlock()
}

// Notifier collects published entries.
type Notifier struct {
	mu      sync.Mutex
	entries []accounting.JournalEntry
}

// PublishPosted implements accounting.Notifier.
func (n *Notifier) PublishPosted(_ context.Context, entry accounting.JournalEntry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, entry)
	return nil
}

// Entries returns the published entries.
func (n *Notifier) Entries() []accounting.JournalEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]accounting.JournalEntry(nil), n.entries...)
}
