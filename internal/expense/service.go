// Package expense keeps staff expense requisitions. Every requisition is
// checked against the budget of the account it is charged to.
package expense

import (
	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/budget"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/subledger"
)

// SourceModule tags journal entries posted by this package.
const SourceModule = "EXPENSE"

// Rules returns the requisition posting rules.
func Rules() subledger.Rules {
	return subledger.Rules{
		Kind:               subledger.KindExpense,
		SequenceType:       sequence.TypeExpense,
		SourceModule:       SourceModule,
		ControlSideOnIssue: accounting.SideCredit,
		BudgetSource: func(subledger.IssueInput) (budget.Source, bool) {
			return budget.SourceExpense, true
		},
	}
}

// Service manages expense requisitions.
type Service struct {
	*subledger.Ledger
}

// NewService constructs the expense sub-ledger.
func NewService(repo subledger.RepositoryPort, engine *accounting.Engine, audit subledger.AuditPort) *Service {
	return &Service{Ledger: subledger.New(repo, engine, audit, Rules())}
}
