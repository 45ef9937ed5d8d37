package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/accounting/periods"
	"github.com/odyssey-erp/ledgercore/internal/budget"
	"github.com/odyssey-erp/ledgercore/internal/money"
	"github.com/odyssey-erp/ledgercore/internal/platform/db"
	"github.com/odyssey-erp/ledgercore/internal/sequence"
)

const counterColumns = `institution_id, document_type, prefix, next_number, padding, created_at, updated_at`

func (t *pgTx) IncrementCounter(ctx context.Context, institutionID uuid.UUID, documentType string) (sequence.Counter, error) {
	var c sequence.Counter
	err := t.tx.QueryRow(ctx, `UPDATE document_sequences SET next_number = next_number + 1, updated_at = NOW()
WHERE institution_id=$1 AND document_type=$2
RETURNING institution_id, document_type, prefix, next_number - 1, padding, created_at, updated_at`, institutionID, documentType).
		Scan(&c.InstitutionID, &c.DocumentType, &c.Prefix, &c.NextNumber, &c.Padding, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return sequence.Counter{}, sequence.ErrNotConfigured
	}
	return c, err
}

func (t *pgTx) InsertCounter(ctx context.Context, c sequence.Counter) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO document_sequences (`+counterColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.InstitutionID, c.DocumentType, c.Prefix, c.NextNumber, c.Padding, c.CreatedAt, c.UpdatedAt)
	if db.IsUniqueViolation(err, "") {
		return sequence.ErrAlreadyConfigured.With("document_type", c.DocumentType)
	}
	return err
}

const accountColumns = `id, institution_id, code, name, type, subtype, balance, is_active, is_tracked_for_budget, monthly_limit, created_at, updated_at`

func scanAccount(row pgx.Row) (accounting.Account, error) {
	var (
		a       accounting.Account
		balance int64
		limit   *int64
	)
	err := row.Scan(&a.ID, &a.InstitutionID, &a.Code, &a.Name, &a.Type, &a.Subtype, &balance,
		&a.IsActive, &a.IsTrackedForBudget, &limit, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return accounting.Account{}, err
	}
	a.Balance = money.Amount(balance)
	if limit != nil {
		l := money.Amount(*limit)
		a.MonthlyLimit = &l
	}
	return a, nil
}

func (t *pgTx) getAccount(ctx context.Context, institutionID, accountID uuid.UUID, lock string) (accounting.Account, error) {
	a, err := scanAccount(t.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE institution_id=$1 AND id=$2`+lock,
		institutionID, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return accounting.Account{}, accounting.ErrAccountNotFound.With("", accountID.String())
	}
	return a, err
}

func (t *pgTx) GetAccount(ctx context.Context, institutionID, accountID uuid.UUID) (accounting.Account, error) {
	return t.getAccount(ctx, institutionID, accountID, "")
}

func (t *pgTx) GetAccountForUpdate(ctx context.Context, institutionID, accountID uuid.UUID) (accounting.Account, error) {
	return t.getAccount(ctx, institutionID, accountID, " FOR UPDATE")
}

func (t *pgTx) UpdateAccountBalance(ctx context.Context, institutionID, accountID uuid.UUID, balance money.Amount, at time.Time) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE accounts SET balance=$3, updated_at=$4 WHERE institution_id=$1 AND id=$2`,
		institutionID, accountID, int64(balance), at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return accounting.ErrAccountNotFound.With("", accountID.String())
	}
	return nil
}

func (t *pgTx) UpdateAccountActive(ctx context.Context, institutionID, accountID uuid.UUID, active bool, at time.Time) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE accounts SET is_active=$3, updated_at=$4 WHERE institution_id=$1 AND id=$2`,
		institutionID, accountID, active, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return accounting.ErrAccountNotFound.With("", accountID.String())
	}
	return nil
}

func (t *pgTx) InsertAccount(ctx context.Context, a accounting.Account) error {
	var limit *int64
	if a.MonthlyLimit != nil {
		l := int64(*a.MonthlyLimit)
		limit = &l
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO accounts (`+accountColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		a.ID, a.InstitutionID, a.Code, a.Name, a.Type, a.Subtype, int64(a.Balance),
		a.IsActive, a.IsTrackedForBudget, limit, a.CreatedAt, a.UpdatedAt)
	if db.IsUniqueViolation(err, "accounts_institution_code_key") {
		return accounting.ErrDuplicateAccountCode.With("code", a.Code)
	}
	return err
}

func (t *pgTx) ListAccounts(ctx context.Context, institutionID uuid.UUID) ([]accounting.Account, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE institution_id=$1 ORDER BY code`, institutionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounting.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *pgTx) GetPeriod(ctx context.Context, institutionID, periodID uuid.UUID) (periods.Period, error) {
	var p periods.Period
	err := t.tx.QueryRow(ctx, `SELECT id, institution_id, code, start_date, end_date, status, closed_at, created_at, updated_at
FROM periods WHERE institution_id=$1 AND id=$2 FOR SHARE`, institutionID, periodID).
		Scan(&p.ID, &p.InstitutionID, &p.Code, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return periods.Period{}, periods.ErrPeriodNotFound.With("", periodID.String())
	}
	return p, err
}

const entryColumns = `id, institution_id, period_id, entry_date, reference, description, source_module, source_id, posted_by, posted_at, reversal_of`

func (t *pgTx) InsertJournalEntry(ctx context.Context, entry accounting.JournalEntry) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO journal_entries (`+entryColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		entry.ID, entry.InstitutionID, entry.PeriodID, entry.Date, entry.Reference, entry.Description,
		entry.SourceModule, entry.SourceID, entry.PostedBy, entry.PostedAt, entry.ReversalOf)
	if err != nil {
		if db.IsUniqueViolation(err, "journal_entries_reversal_of_key") && entry.ReversalOf != nil {
			return accounting.ErrAlreadyReversed.With("", entry.ReversalOf.String())
		}
		return err
	}
	rows := make([][]any, 0, len(entry.Lines))
	for idx, line := range entry.Lines {
		rows = append(rows, []any{entry.ID, idx + 1, line.AccountID, int64(line.Amount), string(line.Side), line.Memo})
	}
	_, err = t.tx.CopyFrom(ctx, pgx.Identifier{"journal_lines"},
		[]string{"entry_id", "line_no", "account_id", "amount", "side", "memo"}, pgx.CopyFromRows(rows))
	return err
}

func scanEntry(row pgx.Row) (accounting.JournalEntry, error) {
	var e accounting.JournalEntry
	err := row.Scan(&e.ID, &e.InstitutionID, &e.PeriodID, &e.Date, &e.Reference, &e.Description,
		&e.SourceModule, &e.SourceID, &e.PostedBy, &e.PostedAt, &e.ReversalOf)
	return e, err
}

func (t *pgTx) GetJournalEntry(ctx context.Context, institutionID, entryID uuid.UUID) (accounting.JournalEntry, error) {
	entry, err := scanEntry(t.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE institution_id=$1 AND id=$2`,
		institutionID, entryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return accounting.JournalEntry{}, accounting.ErrJournalNotFound.With("", entryID.String())
	}
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	lines, err := t.lines(ctx, `WHERE l.entry_id=$1`, entryID)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	entry.Lines = lines[entryID]
	return entry, nil
}

func (t *pgTx) lines(ctx context.Context, where string, arg any) (map[uuid.UUID][]accounting.JournalLine, error) {
	rows, err := t.tx.Query(ctx, `SELECT l.entry_id, l.account_id, l.amount, l.side, l.memo
FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id `+where+` ORDER BY l.entry_id, l.line_no`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID][]accounting.JournalLine)
	for rows.Next() {
		var (
			entryID uuid.UUID
			line    accounting.JournalLine
			amount  int64
		)
		if err := rows.Scan(&entryID, &line.AccountID, &amount, &line.Side, &line.Memo); err != nil {
			return nil, err
		}
		line.Amount = money.Amount(amount)
		out[entryID] = append(out[entryID], line)
	}
	return out, rows.Err()
}

func (t *pgTx) FindReversal(ctx context.Context, institutionID, entryID uuid.UUID) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := t.tx.QueryRow(ctx, `SELECT id FROM journal_entries WHERE institution_id=$1 AND reversal_of=$2`, institutionID, entryID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

func (t *pgTx) ListJournalEntries(ctx context.Context, institutionID uuid.UUID) ([]accounting.JournalEntry, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE institution_id=$1 ORDER BY posted_at, reference`, institutionID)
	if err != nil {
		return nil, err
	}
	var out []accounting.JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	lines, err := t.lines(ctx, `WHERE e.institution_id=$1`, institutionID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}

func (t *pgTx) GetPolicy(ctx context.Context, institutionID uuid.UUID) (budget.Policy, error) {
	p := budget.Policy{InstitutionID: institutionID, VarianceTolerance: decimal.Zero}
	err := t.tx.QueryRow(ctx, `SELECT strict_budget_control, strict_po_enforcement, variance_tolerance, updated_at
FROM institution_policies WHERE institution_id=$1`, institutionID).
		Scan(&p.StrictBudgetControl, &p.StrictPOEnforcement, &p.VarianceTolerance, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, nil
	}
	return p, err
}

func (t *pgTx) UpsertPolicy(ctx context.Context, p budget.Policy) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO institution_policies (institution_id, strict_budget_control, strict_po_enforcement, variance_tolerance, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (institution_id) DO UPDATE SET
    strict_budget_control = EXCLUDED.strict_budget_control,
    strict_po_enforcement = EXCLUDED.strict_po_enforcement,
    variance_tolerance = EXCLUDED.variance_tolerance,
    updated_at = EXCLUDED.updated_at`,
		p.InstitutionID, p.StrictBudgetControl, p.StrictPOEnforcement, p.VarianceTolerance, p.UpdatedAt)
	return err
}

func (t *pgTx) AccountMovement(ctx context.Context, institutionID, accountID uuid.UUID, from, to time.Time) (money.Amount, error) {
	acct, err := t.GetAccount(ctx, institutionID, accountID)
	if err != nil {
		return 0, err
	}
	var total int64
	err = t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(CASE WHEN l.side = $3 THEN l.amount ELSE -l.amount END), 0)::bigint
FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE e.institution_id=$1 AND l.account_id=$2 AND e.entry_date >= $4 AND e.entry_date < $5`,
		institutionID, accountID, string(acct.Type.NormalSide()), from, to).Scan(&total)
	if err != nil {
		return 0, err
	}
	return money.Amount(total), nil
}
