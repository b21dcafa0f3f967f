package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CostApproval is the single source of truth for "what cost to use" during
// migration. Exactly one row per (cutover_id, product_id).
type CostApproval struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"uniqueIndex:idx_cost_approval,priority:1;not null" json:"business_id"`
	CutoverId       string          `gorm:"uniqueIndex:idx_cost_approval,priority:2;size:36;not null" json:"cutover_id"`
	ProductId       int             `gorm:"uniqueIndex:idx_cost_approval,priority:3;not null" json:"product_id"`
	ApprovedCost    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"approved_cost"`
	Source          ApprovalSource  `gorm:"size:20;not null" json:"source"`
	MigrationStatus MigrationStatus `gorm:"size:20;not null;default:PENDING" json:"migration_status"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// UpsertCostApproval writes the approval for (cutover, product), updating the
// existing row when one exists. Re-running the same approval is a no-op
// beyond refreshing the row.
func UpsertCostApproval(tx *gorm.DB, businessId, cutoverId string, productId int, cost decimal.Decimal, source ApprovalSource, status MigrationStatus, notes string) (*CostApproval, error) {
	var existing CostApproval
	err := tx.Where("business_id = ? AND cutover_id = ? AND product_id = ?", businessId, cutoverId, productId).
		First(&existing).Error
	if err == nil {
		updates := map[string]interface{}{
			"approved_cost":    cost,
			"source":           source,
			"migration_status": status,
		}
		if notes != "" {
			updates["notes"] = notes
		}
		if uerr := tx.Model(&existing).Updates(updates).Error; uerr != nil {
			return nil, NewStorageError(uerr)
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewStorageError(err)
	}

	approval := CostApproval{
		BusinessId:      businessId,
		CutoverId:       cutoverId,
		ProductId:       productId,
		ApprovedCost:    cost,
		Source:          source,
		MigrationStatus: status,
		Notes:           notes,
	}
	if cerr := tx.Create(&approval).Error; cerr != nil {
		// Lost a race on the unique key; re-read the winner.
		if rerr := tx.Where("business_id = ? AND cutover_id = ? AND product_id = ?", businessId, cutoverId, productId).
			First(&approval).Error; rerr != nil {
			return nil, NewStorageError(cerr)
		}
	}
	return &approval, nil
}

// DiscardItem marks a product SKIPPED for the cutover. Skipped products are
// excluded from extraction windows and from migration.
func DiscardItem(tx *gorm.DB, businessId, cutoverId string, productId int, notes string) (*CostApproval, error) {
	return UpsertCostApproval(tx, businessId, cutoverId, productId, decimal.Zero, ApprovalSourceManual, MigrationStatusSkipped, notes)
}

// RestoreItem returns a previously discarded product to PENDING.
func RestoreItem(tx *gorm.DB, businessId, cutoverId string, productId int) (*CostApproval, error) {
	var existing CostApproval
	err := tx.Where("business_id = ? AND cutover_id = ? AND product_id = ?", businessId, cutoverId, productId).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError("no approval exists for this product; nothing to restore")
		}
		return nil, NewStorageError(err)
	}
	if uerr := tx.Model(&existing).Update("migration_status", MigrationStatusPending).Error; uerr != nil {
		return nil, NewStorageError(uerr)
	}
	existing.MigrationStatus = MigrationStatusPending
	return &existing, nil
}

func GetApprovalsForCutover(tx *gorm.DB, businessId, cutoverId string) (map[int]CostApproval, error) {
	var approvals []CostApproval
	err := tx.Where("business_id = ? AND cutover_id = ?", businessId, cutoverId).
		Find(&approvals).Error
	if err != nil {
		return nil, NewStorageError(err)
	}
	byProduct := make(map[int]CostApproval, len(approvals))
	for _, a := range approvals {
		byProduct[a.ProductId] = a
	}
	return byProduct, nil
}

func GetSkippedProductIds(tx *gorm.DB, businessId, cutoverId string) (map[int]bool, error) {
	var ids []int
	err := tx.Model(&CostApproval{}).
		Where("business_id = ? AND cutover_id = ? AND migration_status = ?", businessId, cutoverId, MigrationStatusSkipped).
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, NewStorageError(err)
	}
	skipped := make(map[int]bool, len(ids))
	for _, id := range ids {
		skipped[id] = true
	}
	return skipped, nil
}
