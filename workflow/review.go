package workflow

import (
	"context"
	"fmt"

	"github.com/frh3ddy/farmacia-ops-sub000/config"
	"github.com/frh3ddy/farmacia-ops-sub000/models"
	"github.com/frh3ddy/farmacia-ops-sub000/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemApproval is one operator decision inside a batch approval.
type ItemApproval struct {
	ProductId int                   `json:"product_id"`
	Cost      decimal.Decimal       `json:"cost"`
	Source    models.ApprovalSource `json:"source"`
	Notes     string                `json:"notes"`
}

// validateBatchMembership rejects approvals for products that are not part of
// the batch being approved.
func validateBatchMembership(batch *models.ExtractionBatch, approvals []ItemApproval) error {
	allowed := make(map[int]bool)
	for _, id := range batch.ProductIds() {
		allowed[id] = true
	}
	for _, a := range approvals {
		if !allowed[a.ProductId] {
			return models.NewValidationError(fmt.Sprintf("product %d is not part of batch %d", a.ProductId, batch.BatchNumber))
		}
	}
	return nil
}

// uniqueApprovalCount counts distinct products in an approval list.
func uniqueApprovalCount(approvals []ItemApproval) int {
	seen := make(map[int]bool, len(approvals))
	for _, a := range approvals {
		seen[a.ProductId] = true
	}
	return len(seen)
}

// ApproveBatch records the operator's costs for a reviewed batch and advances
// the session past it. All approvals and the advancement commit together.
func ApproveBatch(ctx context.Context, batchId int, approvals []ItemApproval) (*BatchResult, error) {
	logger := config.GetLogger()
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.NewValidationError("business id is required")
	}
	if len(approvals) == 0 {
		return nil, models.NewValidationError("a batch approval needs at least one item")
	}
	for _, a := range approvals {
		if a.Cost.IsNegative() {
			return nil, models.NewValidationError("approved cost cannot be negative")
		}
		if a.Source == "" {
			return nil, models.NewValidationError("approval source is required")
		}
	}
	db := config.GetDB().WithContext(ctx)

	batch, err := models.GetExtractionBatch(db, businessId, batchId)
	if err != nil {
		return nil, err
	}
	var session models.ExtractionSession
	if err := db.Where("business_id = ? AND id = ?", businessId, batch.SessionId).First(&session).Error; err != nil {
		return nil, models.NewStorageError(err)
	}
	if session.Status.Terminal() {
		return nil, models.NewValidationError("session is no longer in progress")
	}
	if merr := validateBatchMembership(batch, approvals); merr != nil {
		return nil, merr
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for _, a := range approvals {
			source := a.Source
			if source == "" {
				source = models.ApprovalSourceManual
			}
			if _, uerr := models.UpsertCostApproval(tx, businessId, session.CutoverId, a.ProductId, a.Cost, source, models.MigrationStatusApproved, a.Notes); uerr != nil {
				return uerr
			}
		}
		approved := uniqueApprovalCount(approvals)
		if merr := batch.MarkReviewed(tx, models.ExtractionBatchStatusApproved, approved); merr != nil {
			return models.NewStorageError(merr)
		}
		// Only items the operator actually approved count as progress. The
		// session completes on the next extraction call, which re-checks the
		// live snapshot for outstanding work.
		if batch.BatchNumber == session.BatchOffset+session.CurrentBatch {
			session.CurrentBatch++
			session.ProcessedItems += approved
		}
		return saveSession(tx, &session)
	})
	if err != nil {
		config.LogError(logger, "review.go", "ApproveBatch", "transaction", batchId, err)
		return nil, err
	}
	return sessionSummary(&session), nil
}

// RejectBatch sends a batch back for re-review. The session does not advance;
// the same window is served again on the next call.
func RejectBatch(ctx context.Context, batchId int) (*BatchResult, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.NewValidationError("business id is required")
	}
	db := config.GetDB().WithContext(ctx)

	batch, err := models.GetExtractionBatch(db, businessId, batchId)
	if err != nil {
		return nil, err
	}
	var session models.ExtractionSession
	if err := db.Where("business_id = ? AND id = ?", businessId, batch.SessionId).First(&session).Error; err != nil {
		return nil, models.NewStorageError(err)
	}
	if session.Status.Terminal() {
		return nil, models.NewValidationError("session is no longer in progress")
	}
	if merr := batch.MarkReviewed(db, models.ExtractionBatchStatusRejected, 0); merr != nil {
		return nil, models.NewStorageError(merr)
	}
	return sessionSummary(&session), nil
}

// ResolveItemProduct strictly resolves an external catalog id for the
// single-item operations. Unlike bulk extraction, a catalog gap here is an
// error the operator must see.
func ResolveItemProduct(ctx context.Context, externalId string, locationId int) (int, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return 0, models.NewValidationError("business id is required")
	}
	if externalId == "" || locationId <= 0 {
		return 0, models.NewValidationError("an external id and location id are required")
	}
	db := config.GetDB().WithContext(ctx)
	return models.ResolveProduct(db, businessId, externalId, locationId)
}

// ApproveItem records one product's cost outside the batch flow (e.g. a
// late correction before the cutover runs).
func ApproveItem(ctx context.Context, cutoverId string, productId int, cost decimal.Decimal, source models.ApprovalSource, notes string) (*models.CostApproval, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.NewValidationError("business id is required")
	}
	if cost.IsNegative() {
		return nil, models.NewValidationError("approved cost cannot be negative")
	}
	if source == "" {
		source = models.ApprovalSourceManual
	}
	db := config.GetDB().WithContext(ctx)
	if err := ensureCutoverOpen(db, businessId, cutoverId); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[models.Product](ctx, businessId, productId); err != nil {
		return nil, models.NewValidationError("product not found")
	}
	return models.UpsertCostApproval(db, businessId, cutoverId, productId, cost, source, models.MigrationStatusApproved, notes)
}

// DiscardItem excludes a product from review and migration for this cutover.
func DiscardItem(ctx context.Context, cutoverId string, productId int, notes string) (*models.CostApproval, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.NewValidationError("business id is required")
	}
	db := config.GetDB().WithContext(ctx)
	if err := ensureCutoverOpen(db, businessId, cutoverId); err != nil {
		return nil, err
	}
	return models.DiscardItem(db, businessId, cutoverId, productId, notes)
}

// RestoreItem brings a discarded product back into scope.
func RestoreItem(ctx context.Context, cutoverId string, productId int) (*models.CostApproval, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.NewValidationError("business id is required")
	}
	db := config.GetDB().WithContext(ctx)
	if err := ensureCutoverOpen(db, businessId, cutoverId); err != nil {
		return nil, err
	}
	return models.RestoreItem(db, businessId, cutoverId, productId)
}

// ensureCutoverOpen rejects approval changes once a cutover has completed.
func ensureCutoverOpen(db *gorm.DB, businessId, cutoverId string) error {
	var cutover models.Cutover
	err := db.Where("business_id = ? AND id = ?", businessId, cutoverId).First(&cutover).Error
	if err != nil {
		return models.NewValidationError("cutover not found")
	}
	if cutover.Status == models.CutoverStatusCompleted {
		return models.NewMigrationBlockedError("cutover has already completed; approvals are frozen")
	}
	return nil
}
