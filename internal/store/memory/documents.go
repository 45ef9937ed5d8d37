package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgercore/internal/assets"
	"github.com/odyssey-erp/ledgercore/internal/subledger"
)

func (t *memTx) InsertDocument(_ context.Context, doc subledger.Document) error {
	t.put(key("doc", doc.InstitutionID, doc.ID), doc)
	t.addToIndex(key("docs", doc.InstitutionID), doc.ID)
	return nil
}

func (t *memTx) GetDocument(_ context.Context, institutionID, documentID uuid.UUID) (subledger.Document, error) {
	v, ok := t.get(key("doc", institutionID, documentID))
	if !ok {
		return subledger.Document{}, subledger.ErrDocumentNotFound.With("", documentID.String())
	}
	return v.(subledger.Document), nil
}

func (t *memTx) GetDocumentForUpdate(ctx context.Context, institutionID, documentID uuid.UUID) (subledger.Document, error) {
	if err := t.lock(key("doc", institutionID, documentID)); err != nil {
		return subledger.Document{}, err
	}
	return t.GetDocument(ctx, institutionID, documentID)
}

func (t *memTx) UpdateDocument(ctx context.Context, doc subledger.Document) error {
	if _, err := t.GetDocument(ctx, doc.InstitutionID, doc.ID); err != nil {
		return err
	}
	t.put(key("doc", doc.InstitutionID, doc.ID), doc)
	return nil
}

func (t *memTx) InsertPayment(ctx context.Context, p subledger.Payment) error {
	existing, err := t.ListPayments(ctx, p.InstitutionID, p.DocumentID)
	if err != nil {
		return err
	}
	t.put(key("payments", p.InstitutionID, p.DocumentID), append(existing, p))
	return nil
}

func (t *memTx) ListPayments(_ context.Context, institutionID, documentID uuid.UUID) ([]subledger.Payment, error) {
	v, ok := t.get(key("payments", institutionID, documentID))
	if !ok {
		return nil, nil
	}
	return append([]subledger.Payment(nil), v.([]subledger.Payment)...), nil
}

func (t *memTx) ListOpenDocuments(ctx context.Context, institutionID uuid.UUID, kind subledger.Kind) ([]subledger.Document, error) {
	var out []subledger.Document
	for _, id := range t.index(key("docs", institutionID)) {
		doc, err := t.GetDocument(ctx, institutionID, id)
		if err != nil {
			return nil, err
		}
		if doc.Kind == kind && doc.Balance > 0 {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (t *memTx) InsertAsset(_ context.Context, a assets.Asset) error {
	codeKey := key("assetcode", a.InstitutionID, a.Code)
	if _, exists := t.get(codeKey); exists {
		return assets.ErrDuplicateAssetCode.With("code", a.Code)
	}
	t.put(codeKey, a.ID)
	t.put(key("asset", a.InstitutionID, a.ID), a)
	t.addToIndex(key("assets", a.InstitutionID), a.ID)
	return nil
}

func (t *memTx) GetAsset(_ context.Context, institutionID, assetID uuid.UUID) (assets.Asset, error) {
	v, ok := t.get(key("asset", institutionID, assetID))
	if !ok {
		return assets.Asset{}, assets.ErrAssetNotFound.With("", assetID.String())
	}
	return v.(assets.Asset), nil
}

func (t *memTx) GetAssetForUpdate(ctx context.Context, institutionID, assetID uuid.UUID) (assets.Asset, error) {
	if err := t.lock(key("asset", institutionID, assetID)); err != nil {
		return assets.Asset{}, err
	}
	return t.GetAsset(ctx, institutionID, assetID)
}

func (t *memTx) UpdateAsset(ctx context.Context, a assets.Asset) error {
	if _, err := t.GetAsset(ctx, a.InstitutionID, a.ID); err != nil {
		return err
	}
	t.put(key("asset", a.InstitutionID, a.ID), a)
	return nil
}

func (t *memTx) ListActiveAssets(ctx context.Context, institutionID uuid.UUID) ([]assets.Asset, error) {
	var out []assets.Asset
	for _, id := range t.index(key("assets", institutionID)) {
		a, err := t.GetAsset(ctx, institutionID, id)
		if err != nil {
			return nil, err
		}
		if a.Status == assets.StatusActive {
			out = append(out, a)
		}
	}
	return out, nil
}
