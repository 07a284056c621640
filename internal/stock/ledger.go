// Package stock owns the per-seller voucher quantities. Every mutation runs in
// a caller-supplied transaction so stock moves commit together with the write
// that caused them.
package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/pkg/db"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vouchernet-backend/pkg/errors"
)

// Ledger applies stock moves. Quantity never drops below zero: deductions lock
// the row and the decrement itself re-checks the balance.
type Ledger struct {
	repo *Repository
}

func NewLedger(repo *Repository) (*Ledger, error) {
	if repo == nil {
		return nil, errors.New("stock repository required")
	}
	return &Ledger{repo: repo}, nil
}

// Available reports the current quantity, zero when no entry exists.
func (l *Ledger) Available(ctx context.Context, tx *gorm.DB, sellerID uuid.UUID, voucherType enums.VoucherType) (int, error) {
	row, err := l.repo.WithTx(tx).Get(ctx, sellerID, voucherType)
	if err != nil {
		if db.IsNotFound(err) {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load stock")
	}
	return row.Quantity, nil
}

// AddStock creates or increments the entry and returns the new quantity.
func (l *Ledger) AddStock(ctx context.Context, tx *gorm.DB, sellerID uuid.UUID, voucherType enums.VoucherType, amount int) (int, error) {
	if err := validateMove(sellerID, voucherType, amount); err != nil {
		return 0, err
	}
	repo := l.repo.WithTx(tx)
	if err := repo.Increment(ctx, sellerID, voucherType, amount); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment stock")
	}
	row, err := repo.Get(ctx, sellerID, voucherType)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload stock")
	}
	return row.Quantity, nil
}

// DeductStock removes amount and returns the remaining quantity, or
// INSUFFICIENT_STOCK when the entry is missing or too small.
func (l *Ledger) DeductStock(ctx context.Context, tx *gorm.DB, sellerID uuid.UUID, voucherType enums.VoucherType, amount int) (int, error) {
	if err := validateMove(sellerID, voucherType, amount); err != nil {
		return 0, err
	}
	repo := l.repo.WithTx(tx)
	row, err := repo.LockForUpdate(ctx, sellerID, voucherType)
	if err != nil {
		if db.IsNotFound(err) {
			return 0, insufficient(voucherType, 0, amount)
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock stock")
	}
	if row.Quantity < amount {
		return 0, insufficient(voucherType, row.Quantity, amount)
	}

	affected, err := repo.Decrement(ctx, sellerID, voucherType, amount)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
	}
	if affected == 0 {
		current, err := repo.Get(ctx, sellerID, voucherType)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload stock")
		}
		return 0, insufficient(voucherType, current.Quantity, amount)
	}
	return row.Quantity - amount, nil
}

func validateMove(sellerID uuid.UUID, voucherType enums.VoucherType, amount int) error {
	if sellerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if !voucherType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown voucher type %q", voucherType))
	}
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return nil
}

func insufficient(voucherType enums.VoucherType, available, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient %s stock", voucherType)).
		WithDetails(map[string]any{
			"voucherType": voucherType,
			"available":   available,
			"requested":   requested,
		})
}
