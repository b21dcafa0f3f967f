package workflow

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/frh3ddy/farmacia-ops-sub000/config"
	"github.com/frh3ddy/farmacia-ops-sub000/extraction"
	"github.com/frh3ddy/farmacia-ops-sub000/models"
	"github.com/frh3ddy/farmacia-ops-sub000/possync"
	"github.com/frh3ddy/farmacia-ops-sub000/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("farmacia-migration")

type CutoverInput struct {
	// CutoverId, when set, names an existing cutover: the stored resume state
	// supplies the rest of the input and the next batch is executed.
	CutoverId     string                  `json:"cutover_id"`
	CutoverDate   time.Time               `json:"cutover_date" validate:"required_without=CutoverId"`
	LocationIds   []int                   `json:"location_ids" validate:"required_without=CutoverId,omitempty,min=1"`
	CostBasis     models.CostBasis        `json:"cost_basis" validate:"required_without=CutoverId"`
	OwnerApproved bool                    `json:"owner_approved"`
	BatchSize     int                     `json:"batch_size"`
	ManualCosts   map[int]decimal.Decimal `json:"manual_costs,omitempty"`
}

// MigrationResult reports one batch execution (or the current standing of a
// cutover for status reads).
type MigrationResult struct {
	CutoverId      string               `json:"cutover_id"`
	Status         models.CutoverStatus `json:"status"`
	CurrentBatch   int                  `json:"current_batch"`
	TotalBatches   int                  `json:"total_batches"`
	BatchSize      int                  `json:"batch_size"`
	TotalItems     int                  `json:"total_items"`
	ProcessedItems int                  `json:"processed_items"`
	CreatedRows    int                  `json:"created_rows"`
	ReusedRows     int                  `json:"reused_rows"`
	SkippedItems   int                  `json:"skipped_items"`
	Warnings       []string             `json:"warnings,omitempty"`
	Errors         []models.ItemError   `json:"errors,omitempty"`
	IsComplete     bool                 `json:"is_complete"`
	CanContinue    bool                 `json:"can_continue"`
}

// InitiateCutover validates the request as a whole, creates the cutover
// record, and executes its first batch. Validation is aggregate: every
// failing rule is reported in one pass, not just the first.
func InitiateCutover(ctx context.Context, client possync.Client, input CutoverInput) (*MigrationResult, error) {
	logger := config.GetLogger()
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.NewValidationError("business id is required")
	}
	db := config.GetDB().WithContext(ctx)

	// An existing id means "run the next batch of that cutover". A COMPLETED
	// cutover is immutable and is rejected inside ContinueCutover.
	if input.CutoverId != "" {
		return ContinueCutover(ctx, client, input.CutoverId)
	}

	var problems []string
	if input.CutoverDate.IsZero() {
		problems = append(problems, "a cutover date is required")
	} else if input.CutoverDate.After(time.Now()) {
		problems = append(problems, "the cutover date cannot be in the future")
	}
	if len(input.LocationIds) == 0 {
		problems = append(problems, "at least one location is required")
	}
	if !input.CostBasis.Valid() {
		problems = append(problems, fmt.Sprintf("unrecognized cost basis %q", input.CostBasis))
	}
	if !input.OwnerApproved {
		problems = append(problems, "owner approval is required before migrating")
	}
	for productId, cost := range input.ManualCosts {
		if cost.IsNegative() {
			problems = append(problems, fmt.Sprintf("manual cost for product %d is negative", productId))
		}
	}
	if len(problems) > 0 {
		return nil, models.NewValidationError(strings.Join(problems, "; "))
	}

	// The cutover date is a calendar date; keep only the day.
	cutoverDate, _ := utils.ConvertToDate(input.CutoverDate, os.Getenv("DEFAULT_TIMEZONE"))

	locations, err := fetchLocations(db, businessId, input.LocationIds)
	if err != nil {
		return nil, err
	}
	for _, location := range locations {
		if berr := models.CheckBackdatedWrite(db, businessId, location.ID, cutoverDate); berr != nil {
			return nil, berr
		}
	}

	snapshot, err := fetchSnapshot(ctx, client, locations)
	if err != nil {
		config.LogError(logger, "cutover.go", "InitiateCutover", "fetchSnapshot", businessId, err)
		return nil, models.NewExternalSourceError(err)
	}
	totalItems := len(snapshot)
	batchSize := input.BatchSize
	if batchSize <= 0 {
		batchSize = totalItems
	}

	state := models.ResumeState{
		CutoverDate:   cutoverDate,
		LocationIds:   input.LocationIds,
		CostBasis:     input.CostBasis,
		OwnerApproved: input.OwnerApproved,
		ManualCosts:   input.ManualCosts,
	}
	cutover := models.Cutover{
		BusinessId:      businessId,
		CutoverDate:     cutoverDate,
		CostBasis:       input.CostBasis,
		OwnerApproved:   utils.NewTrue(),
		Status:          models.CutoverStatusInProgress,
		BatchSize:       batchSize,
		CurrentBatch:    1,
		TotalBatches:    totalBatchCount(totalItems, batchSize),
		TotalItems:      totalItems,
		ResumeStateJSON: models.EncodeResumeState(state),
	}
	if cerr := db.Create(&cutover).Error; cerr != nil {
		return nil, models.NewStorageError(cerr)
	}

	return executeBatch(ctx, db, client, &cutover, state)
}

// ContinueCutover executes the next batch of an in-progress or failed
// cutover, rebuilding the input from the persisted resume state.
func ContinueCutover(ctx context.Context, client possync.Client, cutoverId string) (*MigrationResult, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.NewValidationError("business id is required")
	}
	db := config.GetDB().WithContext(ctx)

	cutover, err := loadCutover(db, businessId, cutoverId)
	if err != nil {
		return nil, err
	}
	if err := ensureResumable(cutover.Status); err != nil {
		return nil, err
	}

	state, err := models.DecodeResumeState(cutover.ResumeStateJSON)
	if err != nil {
		return nil, err
	}
	if cutover.Status != models.CutoverStatusInProgress {
		if uerr := db.Model(cutover).Updates(map[string]interface{}{
			"status":     models.CutoverStatusInProgress,
			"last_error": "",
		}).Error; uerr != nil {
			return nil, models.NewStorageError(uerr)
		}
		cutover.Status = models.CutoverStatusInProgress
		cutover.LastError = ""
	}
	return executeBatch(ctx, db, client, cutover, state)
}

// ensureResumable rejects statuses a cutover cannot be continued from. A
// COMPLETED cutover is immutable.
func ensureResumable(status models.CutoverStatus) error {
	switch status {
	case models.CutoverStatusCompleted:
		return models.NewValidationError("cutover has already completed")
	case models.CutoverStatusInProgress, models.CutoverStatusFailed, models.CutoverStatusPending:
		return nil
	}
	return models.NewValidationError("cutover cannot be continued from its current status")
}

// ResetCutover clears a failed cutover's error state so it can be continued.
// Rows already written stay; replay will find and reuse them.
func ResetCutover(ctx context.Context, cutoverId string) (*MigrationResult, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.NewValidationError("business id is required")
	}
	db := config.GetDB().WithContext(ctx)

	cutover, err := loadCutover(db, businessId, cutoverId)
	if err != nil {
		return nil, err
	}
	if cutover.Status != models.CutoverStatusFailed {
		return nil, models.NewValidationError("only a failed cutover can be reset")
	}
	if uerr := db.Model(cutover).Updates(map[string]interface{}{
		"status":     models.CutoverStatusInProgress,
		"last_error": "",
	}).Error; uerr != nil {
		return nil, models.NewStorageError(uerr)
	}
	cutover.Status = models.CutoverStatusInProgress
	cutover.LastError = ""
	return cutoverSummary(cutover), nil
}

func GetCutoverStatus(ctx context.Context, cutoverId string) (*MigrationResult, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.NewValidationError("business id is required")
	}
	db := config.GetDB().WithContext(ctx)
	cutover, err := loadCutover(db, businessId, cutoverId)
	if err != nil {
		return nil, err
	}
	return cutoverSummary(cutover), nil
}

func loadCutover(db *gorm.DB, businessId, cutoverId string) (*models.Cutover, error) {
	var cutover models.Cutover
	err := db.Where("business_id = ? AND id = ?", businessId, cutoverId).First(&cutover).Error
	if err != nil {
		return nil, models.NewValidationError("cutover not found")
	}
	return &cutover, nil
}

// migrationItem is one (product, location) aggregate within a batch window.
type migrationItem struct {
	ProductId  int
	LocationId int
	ExternalId string
	Qty        decimal.Decimal
}

type costedItem struct {
	migrationItem
	Cost decimal.Decimal
	Err  error
}

// executeBatch runs exactly one batch of the cutover: resolve the window,
// derive every cost up front, then write all rows in a single transaction.
// Replaying a batch reuses existing rows instead of duplicating them.
func executeBatch(ctx context.Context, db *gorm.DB, client possync.Client, cutover *models.Cutover, state models.ResumeState) (*MigrationResult, error) {
	ctx, span := tracer.Start(ctx, "cutover.executeBatch")
	defer span.End()

	logger := config.GetLogger()
	businessId := cutover.BusinessId

	lock, err := acquireCutoverLock(ctx, cutover.ID)
	if err != nil {
		return nil, err
	}
	defer releaseCutoverLock(ctx, lock)

	if cutover.CurrentBatch > cutover.TotalBatches {
		return completeCutover(db, cutover, state)
	}

	skipped, err := models.GetSkippedProductIds(db, businessId, cutover.ID)
	if err != nil {
		return nil, err
	}
	approvals, err := models.GetApprovalsForCutover(db, businessId, cutover.ID)
	if err != nil {
		return nil, err
	}
	locations, err := fetchLocations(db, businessId, state.LocationIds)
	if err != nil {
		return nil, err
	}
	snapshot, err := fetchSnapshot(ctx, client, locations)
	if err != nil {
		config.LogError(logger, "cutover.go", "executeBatch", "fetchSnapshot", cutover.ID, err)
		return nil, models.NewExternalSourceError(err)
	}

	result := cutoverSummary(cutover)

	working, err := resolveWorking(db, businessId, snapshot, nil)
	if err != nil {
		return nil, err
	}
	start, end := batchWindow(len(working), cutover.CurrentBatch, cutover.BatchSize)
	window := working[start:end]

	items, skippedCount := aggregateWindow(window, skipped)
	result.SkippedItems = skippedCount

	catalog, err := fetchWindowCatalog(ctx, client, items)
	if err != nil {
		config.LogError(logger, "cutover.go", "executeBatch", "fetchWindowCatalog", cutover.ID, err)
		return nil, models.NewExternalSourceError(err)
	}

	costed := deriveCosts(db, businessId, cutover, state, items, approvals, catalog)

	txErr := db.Transaction(func(tx *gorm.DB) error {
		for _, item := range costed {
			if item.Err != nil {
				result.Errors = append(result.Errors, models.NewItemError(item.ProductId, item.ExternalId, item.Err))
				continue
			}
			qty, clamped := models.ClampOpeningQty(item.Qty)
			if clamped {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("product %d at location %d had negative on-hand %s; clamped to zero", item.ProductId, item.LocationId, item.Qty))
			}
			_, created, berr := models.EnsureOpeningBalance(tx, businessId, item.ProductId, item.LocationId, qty, item.Cost, cutover.CutoverDate)
			if berr != nil {
				return berr
			}
			if created {
				result.CreatedRows++
			} else {
				result.ReusedRows++
			}
			if meta, ok := catalog[item.ExternalId]; ok {
				if merr := models.RefreshProductMetadata(tx, businessId, item.ProductId, meta.Name, meta.Description, meta.ImageUrl, meta.SyncedAt); merr != nil {
					return models.NewStorageError(merr)
				}
			}
		}

		cutover.ProcessedItems += len(items) + skippedCount
		cutover.CurrentBatch++
		if cutover.CurrentBatch > cutover.TotalBatches {
			cutover.Status = models.CutoverStatusCompleted
			cutover.CurrentBatch = cutover.TotalBatches
			if lerr := models.EnsureCutoverLocks(tx, businessId, state.LocationIds, state.CutoverDate); lerr != nil {
				return lerr
			}
		}
		return saveCutover(tx, cutover)
	})
	if txErr != nil {
		config.LogError(logger, "cutover.go", "executeBatch", "transaction", cutover.ID, txErr)
		markCutoverFailed(db, cutover, txErr)
		if _, ok := models.AsAppError(txErr); ok {
			return nil, txErr
		}
		return nil, models.NewStorageError(txErr)
	}

	summary := cutoverSummary(cutover)
	summary.CreatedRows = result.CreatedRows
	summary.ReusedRows = result.ReusedRows
	summary.SkippedItems = result.SkippedItems
	summary.Warnings = result.Warnings
	summary.Errors = result.Errors
	return summary, nil
}

// aggregateWindow sums quantities per (product, location) and drops skipped
// products, reporting how many aggregates were skipped.
func aggregateWindow(window []workItem, skipped map[int]bool) ([]migrationItem, int) {
	type key struct{ productId, locationId int }
	index := make(map[key]int)
	var items []migrationItem
	skippedSeen := make(map[key]bool)
	for _, w := range window {
		k := key{w.ProductId, w.LocationId}
		if skipped[w.ProductId] {
			skippedSeen[k] = true
			continue
		}
		if i, ok := index[k]; ok {
			items[i].Qty = items[i].Qty.Add(w.Qty)
			continue
		}
		index[k] = len(items)
		items = append(items, migrationItem{
			ProductId:  w.ProductId,
			LocationId: w.LocationId,
			ExternalId: w.ExternalId,
			Qty:        w.Qty,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].LocationId != items[j].LocationId {
			return items[i].LocationId < items[j].LocationId
		}
		return items[i].ProductId < items[j].ProductId
	})
	return items, len(skippedSeen)
}

func fetchWindowCatalog(ctx context.Context, client possync.Client, items []migrationItem) (map[string]possync.CatalogItem, error) {
	externalIds := make([]string, 0, len(items))
	for _, item := range items {
		externalIds = append(externalIds, item.ExternalId)
	}
	return client.FetchCatalogItems(ctx, utils.UniqueSlice(externalIds))
}

// deriveCosts resolves every item's unit cost concurrently before the write
// transaction opens, so cost lookups never hold it open.
func deriveCosts(db *gorm.DB, businessId string, cutover *models.Cutover, state models.ResumeState, items []migrationItem, approvals map[int]models.CostApproval, catalog map[string]possync.CatalogItem) []costedItem {
	costed := make([]costedItem, len(items))
	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			item := items[i]
			cost, err := costForItem(db, businessId, cutover, state, item, approvals, catalog)
			costed[i] = costedItem{migrationItem: item, Cost: cost, Err: err}
		}(i)
	}
	wg.Wait()
	return costed
}

// costForItem derives one product's unit cost. An APPROVED operator decision
// always wins; otherwise the cutover's cost basis decides.
func costForItem(db *gorm.DB, businessId string, cutover *models.Cutover, state models.ResumeState, item migrationItem, approvals map[int]models.CostApproval, catalog map[string]possync.CatalogItem) (decimal.Decimal, error) {
	if approval, ok := approvals[item.ProductId]; ok && approval.MigrationStatus == models.MigrationStatusApproved {
		return approval.ApprovedCost, nil
	}

	switch cutover.CostBasis {
	case models.CostBasisManualInput:
		cost, ok := state.ManualCosts[item.ProductId]
		if !ok || cost.IsNegative() {
			return decimal.Zero, models.NewMissingCostError(item.ProductId)
		}
		return cost, nil

	case models.CostBasisDescription:
		name, description := item.ExternalId, ""
		if meta, ok := catalog[item.ExternalId]; ok {
			name, description = meta.Name, meta.Description
		}
		result := extraction.Extract(extraction.DefaultConfig(), name, description)
		if result.SelectedCost == nil {
			return decimal.Zero, models.NewMissingCostError(item.ProductId)
		}
		return *result.SelectedCost, nil

	case models.CostBasisSourceSystem:
		if meta, ok := catalog[item.ExternalId]; ok && meta.Price != nil {
			return *meta.Price, nil
		}
		price, err := models.GetMappingPrice(db, businessId, item.ExternalId, item.LocationId)
		if err != nil {
			return decimal.Zero, err
		}
		if price != nil {
			return *price, nil
		}
		return decimal.Zero, models.NewMissingCostError(item.ProductId)

	case models.CostBasisAverageCost:
		costs, err := models.GetSupplierCosts(db, businessId, item.ProductId)
		if err != nil {
			return decimal.Zero, models.NewStorageError(err)
		}
		if avg, ok := models.AverageSupplierCost(costs); ok {
			return avg, nil
		}
		return decimal.Zero, models.NewMissingCostError(item.ProductId)
	}
	return decimal.Zero, models.NewValidationError(fmt.Sprintf("unrecognized cost basis %q", cutover.CostBasis))
}

// completeCutover closes out a cutover whose windows are exhausted, making
// sure the location locks are installed even on a replayed final call.
func completeCutover(db *gorm.DB, cutover *models.Cutover, state models.ResumeState) (*MigrationResult, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		if lerr := models.EnsureCutoverLocks(tx, cutover.BusinessId, state.LocationIds, state.CutoverDate); lerr != nil {
			return lerr
		}
		cutover.Status = models.CutoverStatusCompleted
		return saveCutover(tx, cutover)
	})
	if err != nil {
		return nil, err
	}
	return cutoverSummary(cutover), nil
}

func saveCutover(tx *gorm.DB, cutover *models.Cutover) error {
	err := tx.Model(&models.Cutover{}).
		Where("business_id = ? AND id = ?", cutover.BusinessId, cutover.ID).
		Updates(map[string]interface{}{
			"status":          cutover.Status,
			"current_batch":   cutover.CurrentBatch,
			"processed_items": cutover.ProcessedItems,
			"last_error":      cutover.LastError,
		}).Error
	if err != nil {
		return models.NewStorageError(err)
	}
	return nil
}

// markCutoverFailed records the failure after the batch transaction rolled
// back. The resume state stays intact so the cutover can be continued.
func markCutoverFailed(db *gorm.DB, cutover *models.Cutover, cause error) {
	cutover.Status = models.CutoverStatusFailed
	cutover.LastError = cause.Error()
	if err := db.Model(&models.Cutover{}).
		Where("business_id = ? AND id = ?", cutover.BusinessId, cutover.ID).
		Updates(map[string]interface{}{
			"status":     models.CutoverStatusFailed,
			"last_error": cutover.LastError,
		}).Error; err != nil {
		config.LogError(config.GetLogger(), "cutover.go", "markCutoverFailed", "update", cutover.ID, err)
	}
}

func cutoverSummary(cutover *models.Cutover) *MigrationResult {
	return &MigrationResult{
		CutoverId:      cutover.ID,
		Status:         cutover.Status,
		CurrentBatch:   cutover.CurrentBatch,
		TotalBatches:   cutover.TotalBatches,
		BatchSize:      cutover.BatchSize,
		TotalItems:     cutover.TotalItems,
		ProcessedItems: cutover.ProcessedItems,
		IsComplete:     cutover.Status == models.CutoverStatusCompleted,
		CanContinue:    cutover.Status == models.CutoverStatusInProgress || cutover.Status == models.CutoverStatusFailed,
	}
}
