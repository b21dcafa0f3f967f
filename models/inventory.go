package models

import (
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryBatch is a cost-lot row in the owned ledger. Opening balances are
// unique per (product, location, source).
type InventoryBatch struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"uniqueIndex:idx_inventory_source,priority:1;not null" json:"business_id"`
	ProductId  int             `gorm:"uniqueIndex:idx_inventory_source,priority:2;not null" json:"product_id"`
	LocationId int             `gorm:"uniqueIndex:idx_inventory_source,priority:3;not null" json:"location_id"`
	Source     InventorySource `gorm:"uniqueIndex:idx_inventory_source,priority:4;size:20;not null" json:"source"`
	Qty        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	UnitCost   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	StockDate  time.Time       `gorm:"not null" json:"stock_date"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// ClampOpeningQty clamps a negative inbound quantity to zero. The bool is
// true when clamping happened so callers can record a warning; negative stock
// is never persisted.
func ClampOpeningQty(qty decimal.Decimal) (decimal.Decimal, bool) {
	if qty.IsNegative() {
		return decimal.Zero, true
	}
	return qty, false
}

// EnsureOpeningBalance creates the OPENING_BALANCE row for (product,
// location), or returns the existing one. Check-then-create with a fallback
// re-read on duplicate key makes batch replay idempotent under retry.
func EnsureOpeningBalance(tx *gorm.DB, businessId string, productId, locationId int, qty, unitCost decimal.Decimal, stockDate time.Time) (*InventoryBatch, bool, error) {
	var existing InventoryBatch
	err := tx.Where("business_id = ? AND product_id = ? AND location_id = ? AND source = ?",
		businessId, productId, locationId, InventorySourceOpeningBalance).
		First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, NewStorageError(err)
	}

	row := InventoryBatch{
		BusinessId: businessId,
		ProductId:  productId,
		LocationId: locationId,
		Source:     InventorySourceOpeningBalance,
		Qty:        qty,
		UnitCost:   unitCost,
		StockDate:  stockDate,
	}
	if cerr := tx.Create(&row).Error; cerr != nil {
		if !isDuplicateKeyErr(cerr) {
			return nil, false, NewStorageError(cerr)
		}
		if rerr := tx.Where("business_id = ? AND product_id = ? AND location_id = ? AND source = ?",
			businessId, productId, locationId, InventorySourceOpeningBalance).
			First(&row).Error; rerr != nil {
			return nil, false, NewStorageError(rerr)
		}
		return &row, false, nil
	}
	return &row, true, nil
}
