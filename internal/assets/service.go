package assets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// SourceModule tags journal entries posted by the depreciation engine.
const SourceModule = "ASSETS"

// TxRepository exposes asset persistence plus the ledger inside a transaction.
type TxRepository interface {
	accounting.TxRepository

	InsertAsset(ctx context.Context, a Asset) error
	GetAsset(ctx context.Context, institutionID, assetID uuid.UUID) (Asset, error)
	// GetAssetForUpdate loads and locks an asset for a depreciation run.
	GetAssetForUpdate(ctx context.Context, institutionID, assetID uuid.UUID) (Asset, error)
	UpdateAsset(ctx context.Context, a Asset) error
	ListActiveAssets(ctx context.Context, institutionID uuid.UUID) ([]Asset, error)
}

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records asset events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service registers assets and runs depreciation.
type Service struct {
	repo    RepositoryPort
	journal *accounting.Engine
	audit   AuditPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs the depreciation engine. audit may be nil.
func NewService(repo RepositoryPort, journal *accounting.Engine, audit AuditPort) *Service {
	return &Service{repo: repo, journal: journal, audit: audit, logger: slog.Default(), now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithLogger sets the logger.
func (s *Service) WithLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Register creates an asset with no accumulated depreciation.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Asset, error) {
	if err := in.Validate(); err != nil {
		return Asset{}, err
	}
	now := s.now().UTC()
	acquired := in.AcquiredOn
	if acquired.IsZero() {
		acquired = now
	}
	asset := Asset{
		ID:                   uuid.New(),
		InstitutionID:        in.InstitutionID,
		Code:                 in.Code,
		Name:                 in.Name,
		PurchasePrice:        in.PurchasePrice,
		SalvageValue:         in.SalvageValue,
		UsefulLifeYears:      in.UsefulLifeYears,
		Method:               in.Method,
		DeclineRate:          in.DeclineRate,
		CurrentValue:         in.PurchasePrice,
		Status:               StatusActive,
		ExpenseAccountID:     in.ExpenseAccountID,
		AccumulatedAccountID: in.AccumulatedAccountID,
		AcquiredOn:           acquired,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, id := range []uuid.UUID{asset.ExpenseAccountID, asset.AccumulatedAccountID} {
			if _, err := tx.GetAccount(ctx, asset.InstitutionID, id); err != nil {
				return err
			}
		}
		return tx.InsertAsset(ctx, asset)
	})
	if err != nil {
		return Asset{}, err
	}
	s.record(ctx, in.ActorID, "asset.register", asset, map[string]any{
		"code":           asset.Code,
		"purchase_price": asset.PurchasePrice.String(),
		"method":         string(asset.Method),
	})
	return asset, nil
}

// RunDepreciation charges depreciation for in.PeriodMonths ending at in.AsOf.
// Runs against an asset at salvage, a disposed asset, a date already covered,
// or a charge that rounds to zero cents succeed without posting.
func (s *Service) RunDepreciation(ctx context.Context, in RunInput) (RunResult, error) {
	if err := in.Validate(); err != nil {
		return RunResult{}, err
	}
	var res RunResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		res = RunResult{}
		asset, err := tx.GetAssetForUpdate(ctx, in.InstitutionID, in.AssetID)
		if err != nil {
			return err
		}
		res.Asset = asset
		switch {
		case asset.Status == StatusDisposed:
			res.Skipped = SkipDisposed
			return nil
		case asset.AtSalvage():
			res.Skipped = SkipAtSalvage
			return nil
		case asset.DepreciatedThrough != nil && !in.AsOf.After(*asset.DepreciatedThrough):
			res.Skipped = SkipAlreadyCovered
			return nil
		}
		charge := Charge(asset, in.PeriodMonths)
		if !charge.IsPositive() {
			res.Skipped = SkipBelowMinorUnit
			return nil
		}
		entry, err := s.journal.PostTx(ctx, tx, accounting.PostingInput{
			InstitutionID: in.InstitutionID,
			ActorID:       in.ActorID,
			PeriodID:      in.PeriodID,
			Date:          in.AsOf,
			Description:   fmt.Sprintf("Depreciation %s through %s", asset.Code, in.AsOf.Format(time.DateOnly)),
			SourceModule:  SourceModule,
			SourceID:      asset.ID,
			Lines: []accounting.JournalLine{
				{AccountID: asset.ExpenseAccountID, Amount: charge, Side: accounting.SideDebit},
				{AccountID: asset.AccumulatedAccountID, Amount: charge, Side: accounting.SideCredit},
			},
		})
		if err != nil {
			return err
		}
		asOf := in.AsOf
		asset.AccumulatedDepreciation += charge
		asset.CurrentValue -= charge
		asset.DepreciatedThrough = &asOf
		asset.UpdatedAt = s.now().UTC()
		if err := tx.UpdateAsset(ctx, asset); err != nil {
			return err
		}
		res.Asset = asset
		res.Charge = charge
		res.Entry = &entry
		return nil
	})
	if err != nil {
		return RunResult{}, err
	}
	if res.Entry == nil {
		s.logger.Debug("depreciation skipped",
			slog.String("asset_id", in.AssetID.String()),
			slog.String("reason", string(res.Skipped)))
		return res, nil
	}
	s.journal.Published(ctx, *res.Entry)
	s.record(ctx, in.ActorID, "asset.depreciate", res.Asset, map[string]any{
		"charge":        res.Charge.String(),
		"current_value": res.Asset.CurrentValue.String(),
		"reference":     res.Entry.Reference,
	})
	return res, nil
}

// Dispose retires an asset so later runs skip it.
func (s *Service) Dispose(ctx context.Context, institutionID, assetID uuid.UUID, actorID int64) (Asset, error) {
	var asset Asset
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		asset, err = tx.GetAssetForUpdate(ctx, institutionID, assetID)
		if err != nil {
			return err
		}
		if asset.Status == StatusDisposed {
			return nil
		}
		asset.Status = StatusDisposed
		asset.UpdatedAt = s.now().UTC()
		return tx.UpdateAsset(ctx, asset)
	})
	if err != nil {
		return Asset{}, err
	}
	s.record(ctx, actorID, "asset.dispose", asset, map[string]any{"code": asset.Code})
	return asset, nil
}

// Get returns one asset.
func (s *Service) Get(ctx context.Context, institutionID, assetID uuid.UUID) (Asset, error) {
	var asset Asset
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		asset, err = tx.GetAsset(ctx, institutionID, assetID)
		return err
	})
	return asset, err
}

// ListActive returns the assets a scheduled run should visit.
func (s *Service) ListActive(ctx context.Context, institutionID uuid.UUID) ([]Asset, error) {
	var out []Asset
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListActiveAssets(ctx, institutionID)
		return err
	})
	return out, err
}

func (s *Service) record(ctx context.Context, actorID int64, action string, a Asset, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		InstitutionID: a.InstitutionID,
		ActorID:       actorID,
		Action:        action,
		Entity:        "asset",
		EntityID:      a.ID.String(),
		Meta:          meta,
		At:            s.now(),
	}); err != nil {
		s.logger.Warn("asset audit failed", slog.String("asset_id", a.ID.String()), slog.Any("error", err))
	}
}
