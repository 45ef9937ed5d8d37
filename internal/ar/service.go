// Package ar keeps customer invoices.
package ar

import (
	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
	"github.com/odyssey-erp/ledgercore/internal/subledger"
)

// SourceModule tags journal entries posted by this package.
const SourceModule = "AR"

// Rules returns the receivable posting rules: issue debits receivables and
// credits income, collection debits cash and credits receivables.
func Rules() subledger.Rules {
	return subledger.Rules{
		Kind:               subledger.KindReceivable,
		SequenceType:       sequence.TypeInvoice,
		SourceModule:       SourceModule,
		ControlSideOnIssue: accounting.SideDebit,
	}
}

// Service manages customer invoices.
type Service struct {
	*subledger.Ledger
}

// NewService constructs the receivable sub-ledger.
func NewService(repo subledger.RepositoryPort, engine *accounting.Engine, audit subledger.AuditPort) *Service {
	return &Service{Ledger: subledger.New(repo, engine, audit, Rules())}
}
