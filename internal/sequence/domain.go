// Package sequence issues gap-free document references per institution and document type.
package sequence

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// Well-known document types.
const (
	TypeJournal = "JOURNAL"
	TypeBill    = "BILL"
	TypeInvoice = "INVOICE"
	TypeExpense = "EXPENSE"
)

const maxPadding = 18

var documentTypePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,31}$`)

// Counter is the persisted state of one sequence.
type Counter struct {
	InstitutionID uuid.UUID
	DocumentType  string
	Prefix        string
	NextNumber    int64
	Padding       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Format renders number with the counter's prefix and padding.
func (c Counter) Format(number int64) string {
	return fmt.Sprintf("%s%0*d", c.Prefix, c.Padding, number)
}

var (
	// ErrNotConfigured indicates no counter exists for the document type.
	ErrNotConfigured = shared.NotFound("SEQUENCE_NOT_CONFIGURED", "", "document sequence not configured")
	// ErrAlreadyConfigured indicates Configure was called twice for one type.
	ErrAlreadyConfigured = &shared.Error{Kind: shared.KindConflict, Code: "SEQUENCE_EXISTS", Message: "document sequence already configured"}
)

// Validate checks a counter definition before it is stored.
func (c Counter) Validate() error {
	if c.InstitutionID == uuid.Nil {
		return shared.Validation("INSTITUTION_REQUIRED", "institution_id", "institution required")
	}
	if !documentTypePattern.MatchString(c.DocumentType) {
		return shared.Validation("INVALID_DOCUMENT_TYPE", "document_type", "document type must be upper-case alphanumeric")
	}
	if c.NextNumber < 1 {
		return shared.Validation("INVALID_NEXT_NUMBER", "next_number", "next number must be at least 1")
	}
	if c.Padding < 0 || c.Padding > maxPadding {
		return shared.Validation("INVALID_PADDING", "padding", fmt.Sprintf("padding must be between 0 and %d", maxPadding))
	}
	return nil
}
