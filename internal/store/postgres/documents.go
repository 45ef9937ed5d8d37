package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/ledgercore/internal/assets"
	"github.com/odyssey-erp/ledgercore/internal/money"
	"github.com/odyssey-erp/ledgercore/internal/platform/db"
	"github.com/odyssey-erp/ledgercore/internal/subledger"
)

const documentColumns = `id, institution_id, kind, number, counterparty_name, description, doc_date, due_date, amount, balance, status,
control_account_id, offset_account_id, issue_reference, created_by, created_at, updated_at`

func scanDocument(row pgx.Row) (subledger.Document, error) {
	var (
		d               subledger.Document
		amount, balance int64
	)
	err := row.Scan(&d.ID, &d.InstitutionID, &d.Kind, &d.Number, &d.CounterpartyName, &d.Description, &d.Date, &d.DueDate,
		&amount, &balance, &d.Status, &d.ControlAccountID, &d.OffsetAccountID, &d.IssueReference, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	d.Amount, d.Balance = money.Amount(amount), money.Amount(balance)
	return d, err
}

func (t *pgTx) InsertDocument(ctx context.Context, d subledger.Document) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO documents (`+documentColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		d.ID, d.InstitutionID, d.Kind, d.Number, d.CounterpartyName, d.Description, d.Date, d.DueDate,
		int64(d.Amount), int64(d.Balance), d.Status, d.ControlAccountID, d.OffsetAccountID, d.IssueReference, d.CreatedBy, d.CreatedAt, d.UpdatedAt)
	return err
}

func (t *pgTx) getDocument(ctx context.Context, institutionID, documentID uuid.UUID, lock string) (subledger.Document, error) {
	d, err := scanDocument(t.tx.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE institution_id=$1 AND id=$2`+lock,
		institutionID, documentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return subledger.Document{}, subledger.ErrDocumentNotFound.With("", documentID.String())
	}
	return d, err
}

func (t *pgTx) GetDocument(ctx context.Context, institutionID, documentID uuid.UUID) (subledger.Document, error) {
	return t.getDocument(ctx, institutionID, documentID, "")
}

func (t *pgTx) GetDocumentForUpdate(ctx context.Context, institutionID, documentID uuid.UUID) (subledger.Document, error) {
	return t.getDocument(ctx, institutionID, documentID, " FOR UPDATE")
}

func (t *pgTx) UpdateDocument(ctx context.Context, d subledger.Document) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE documents SET balance=$3, status=$4, updated_at=$5 WHERE institution_id=$1 AND id=$2`,
		d.InstitutionID, d.ID, int64(d.Balance), d.Status, d.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return subledger.ErrDocumentNotFound.With("", d.ID.String())
	}
	return nil
}

func (t *pgTx) InsertPayment(ctx context.Context, p subledger.Payment) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO payment_applications (id, institution_id, document_id, amount, cash_account_id, reference, entry_id, applied_by, applied_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.InstitutionID, p.DocumentID, int64(p.Amount), p.CashAccountID, p.Reference, p.EntryID, p.AppliedBy, p.AppliedAt)
	return err
}

func (t *pgTx) ListPayments(ctx context.Context, institutionID, documentID uuid.UUID) ([]subledger.Payment, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, institution_id, document_id, amount, cash_account_id, reference, entry_id, applied_by, applied_at
FROM payment_applications WHERE institution_id=$1 AND document_id=$2 ORDER BY applied_at, id`, institutionID, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []subledger.Payment
	for rows.Next() {
		var (
			p      subledger.Payment
			amount int64
		)
		if err := rows.Scan(&p.ID, &p.InstitutionID, &p.DocumentID, &amount, &p.CashAccountID, &p.Reference, &p.EntryID, &p.AppliedBy, &p.AppliedAt); err != nil {
			return nil, err
		}
		p.Amount = money.Amount(amount)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) ListOpenDocuments(ctx context.Context, institutionID uuid.UUID, kind subledger.Kind) ([]subledger.Document, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+documentColumns+` FROM documents
WHERE institution_id=$1 AND kind=$2 AND balance > 0 ORDER BY due_date, number`, institutionID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []subledger.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const assetColumns = `id, institution_id, code, name, purchase_price, salvage_value, useful_life_years, method, decline_rate,
accumulated_depreciation, current_value, status, expense_account_id, accumulated_account_id, acquired_on, depreciated_through, created_at, updated_at`

func scanAsset(row pgx.Row) (assets.Asset, error) {
	var (
		a                                    assets.Asset
		price, salvage, accumulated, current int64
	)
	err := row.Scan(&a.ID, &a.InstitutionID, &a.Code, &a.Name, &price, &salvage, &a.UsefulLifeYears, &a.Method, &a.DeclineRate,
		&accumulated, &current, &a.Status, &a.ExpenseAccountID, &a.AccumulatedAccountID, &a.AcquiredOn, &a.DepreciatedThrough,
		&a.CreatedAt, &a.UpdatedAt)
	a.PurchasePrice, a.SalvageValue = money.Amount(price), money.Amount(salvage)
	a.AccumulatedDepreciation, a.CurrentValue = money.Amount(accumulated), money.Amount(current)
	return a, err
}

func (t *pgTx) InsertAsset(ctx context.Context, a assets.Asset) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO assets (`+assetColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		a.ID, a.InstitutionID, a.Code, a.Name, int64(a.PurchasePrice), int64(a.SalvageValue), a.UsefulLifeYears, a.Method, a.DeclineRate,
		int64(a.AccumulatedDepreciation), int64(a.CurrentValue), a.Status, a.ExpenseAccountID, a.AccumulatedAccountID,
		a.AcquiredOn, a.DepreciatedThrough, a.CreatedAt, a.UpdatedAt)
	if db.IsUniqueViolation(err, "assets_institution_code_key") {
		return assets.ErrDuplicateAssetCode.With("code", a.Code)
	}
	return err
}

func (t *pgTx) getAsset(ctx context.Context, institutionID, assetID uuid.UUID, lock string) (assets.Asset, error) {
	a, err := scanAsset(t.tx.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE institution_id=$1 AND id=$2`+lock,
		institutionID, assetID))
	if errors.Is(err, pgx.ErrNoRows) {
		return assets.Asset{}, assets.ErrAssetNotFound.With("", assetID.String())
	}
	return a, err
}

func (t *pgTx) GetAsset(ctx context.Context, institutionID, assetID uuid.UUID) (assets.Asset, error) {
	return t.getAsset(ctx, institutionID, assetID, "")
}

func (t *pgTx) GetAssetForUpdate(ctx context.Context, institutionID, assetID uuid.UUID) (assets.Asset, error) {
	return t.getAsset(ctx, institutionID, assetID, " FOR UPDATE")
}

func (t *pgTx) UpdateAsset(ctx context.Context, a assets.Asset) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE assets SET accumulated_depreciation=$3, current_value=$4, status=$5, depreciated_through=$6, updated_at=$7
WHERE institution_id=$1 AND id=$2`,
		a.InstitutionID, a.ID, int64(a.AccumulatedDepreciation), int64(a.CurrentValue), a.Status, a.DepreciatedThrough, a.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return assets.ErrAssetNotFound.With("", a.ID.String())
	}
	return nil
}

func (t *pgTx) ListActiveAssets(ctx context.Context, institutionID uuid.UUID) ([]assets.Asset, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+assetColumns+` FROM assets WHERE institution_id=$1 AND status=$2 ORDER BY code`,
		institutionID, assets.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []assets.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
