// Package ap keeps vendor bills. Issuing a bill debits the expense or asset
// account and credits accounts payable; paying it debits payable and credits cash.
package ap

import (
	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/budget"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/subledger"
)

// SourceModule tags journal entries posted by this package.
const SourceModule = "AP"

// Rules returns the payable posting rules. Bills raised from a purchase
// order are checked against the offset account's budget.
func Rules() subledger.Rules {
	return subledger.Rules{
		Kind:               subledger.KindPayable,
		SequenceType:       sequence.TypeBill,
		SourceModule:       SourceModule,
		ControlSideOnIssue: accounting.SideCredit,
		BudgetSource: func(in subledger.IssueInput) (budget.Source, bool) {
			return budget.SourcePurchaseOrder, in.FromPurchaseOrder
		},
	}
}

// Service manages vendor bills.
type Service struct {
	*subledger.Ledger
}

// NewService constructs the payable sub-ledger.
func NewService(repo subledger.RepositoryPort, engine *accounting.Engine, audit subledger.AuditPort) *Service {
	return &Service{Ledger: subledger.New(repo, engine, audit, Rules())}
}
