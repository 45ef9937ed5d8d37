package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledgercore/internal/accounting"
	"github.com/odyssey-erp/ledgercore/internal/money"
)

// TxRepository exposes the reads the guard needs inside a transaction.
type TxRepository interface {
	GetAccount(ctx context.Context, institutionID, accountID uuid.UUID) (accounting.Account, error)
	// GetPolicy returns the institution policy, or a zero policy when none is stored.
	GetPolicy(ctx context.Context, institutionID uuid.UUID) (Policy, error)
	UpsertPolicy(ctx context.Context, p Policy) error
	// AccountMovement returns the signed movement of an account for entries
	// dated in [from, to).
	AccountMovement(ctx context.Context, institutionID, accountID uuid.UUID, from, to time.Time) (money.Amount, error)
}

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Guard evaluates prospective spend against account limits.
type Guard struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewGuard constructs the budget guard.
func NewGuard(repo RepositoryPort) *Guard {
	return &Guard{repo: repo, now: time.Now}
}

// CheckCommitment evaluates in without writing anything.
func (g *Guard) CheckCommitment(ctx context.Context, in CommitmentInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	var res Result
	err := g.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		res, err = CheckTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// CheckTx evaluates in using the caller's transaction.
func CheckTx(ctx context.Context, tx TxRepository, in CommitmentInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	acct, err := tx.GetAccount(ctx, in.InstitutionID, in.AccountID)
	if err != nil {
		return Result{}, err
	}
	if !acct.IsTrackedForBudget || acct.MonthlyLimit == nil {
		return Result{Allowed: true}, nil
	}
	policy, err := tx.GetPolicy(ctx, in.InstitutionID)
	if err != nil {
		return Result{}, err
	}
	actual, err := tx.AccountMovement(ctx, in.InstitutionID, in.AccountID, in.Period.Start(), in.Period.End())
	if err != nil {
		return Result{}, err
	}
	// the limit is monthly; a longer period gets one limit per month it spans
	limit := *acct.MonthlyLimit * money.Amount(in.Period.Months())
	return evaluate(limit, actual, in.Amount, policy.VarianceTolerance, policy.Strict(in.Source)), nil
}

func evaluate(limit, actual, amount money.Amount, tolerance decimal.Decimal, strict bool) Result {
	threshold := limit.Decimal().Mul(decimal.NewFromInt(1).Add(tolerance))
	projected := actual + amount
	res := Result{
		Allowed:   true,
		Limit:     limit,
		Actual:    actual,
		Projected: projected,
		Threshold: threshold,
	}
	if projected.Decimal().LessThanOrEqual(threshold) {
		return res
	}
	res.Reason = fmt.Sprintf("projected spend %s exceeds limit %s (threshold %s)",
		projected, limit, threshold.StringFixed(money.MinorDigits))
	if strict {
		res.Allowed = false
		return res
	}
	res.Advisory = true
	return res
}

// Policy returns the institution's enforcement flags.
func (g *Guard) Policy(ctx context.Context, institutionID uuid.UUID) (Policy, error) {
	var p Policy
	err := g.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		p, err = tx.GetPolicy(ctx, institutionID)
		return err
	})
	return p, err
}

// SetPolicy stores the institution's enforcement flags.
func (g *Guard) SetPolicy(ctx context.Context, p Policy) (Policy, error) {
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	p.UpdatedAt = g.now().UTC()
	err := g.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpsertPolicy(ctx, p)
	})
	if err != nil {
		return Policy{}, err
	}
	return p, nil
}
