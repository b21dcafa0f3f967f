package workflow

import (
	"context"
	"sort"
	"strings"

	"github.com/frh3ddy/farmacia-ops-sub000/config"
	"github.com/frh3ddy/farmacia-ops-sub000/extraction"
	"github.com/frh3ddy/farmacia-ops-sub000/models"
	"github.com/frh3ddy/farmacia-ops-sub000/possync"
	"github.com/frh3ddy/farmacia-ops-sub000/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxAutoAdvance bounds the auto-advance loop within a single call. A
// session whose remaining windows are all resolved completes instead of
// hopping forever.
const maxAutoAdvance = 50

type ExtractionInput struct {
	SessionId   string `json:"session_id"`
	CutoverId   string `json:"cutover_id"`
	LocationIds []int  `json:"location_ids"`
	BatchSize   int    `json:"batch_size"`
}

type SupplierSuggestion struct {
	SupplierName string          `json:"supplier_name"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
}

// ExtractionItem is one reviewable item in a batch window.
type ExtractionItem struct {
	ProductId        int                    `json:"product_id"`
	ExternalId       string                 `json:"external_id"`
	LocationId       int                    `json:"location_id"`
	Quantity         decimal.Decimal        `json:"quantity"`
	ProductName      string                 `json:"product_name"`
	Description      string                 `json:"description"`
	Status           models.MigrationStatus `json:"status"`
	ApprovedCost     *decimal.Decimal       `json:"approved_cost,omitempty"`
	Extraction       *extraction.Result     `json:"extraction,omitempty"`
	Suggestions      []SupplierSuggestion   `json:"suggestions,omitempty"`
	InferredSupplier string                 `json:"inferred_supplier,omitempty"`
	// PriceGuard is raised when the selected cost meets or exceeds the known
	// selling price (a margin-safety flag, not a hard stop).
	PriceGuard bool `json:"price_guard"`
}

type BatchResult struct {
	SessionId      string                         `json:"session_id"`
	BatchId        int                            `json:"batch_id,omitempty"`
	BatchNumber    int                            `json:"batch_number"`
	TotalBatches   int                            `json:"total_batches"`
	TotalItems     int                            `json:"total_items"`
	ProcessedItems int                            `json:"processed_items"`
	BatchSize      int                            `json:"batch_size"`
	Status         models.ExtractionSessionStatus `json:"status"`
	IsComplete     bool                           `json:"is_complete"`
	CanContinue    bool                           `json:"can_continue"`
	Items          []ExtractionItem               `json:"items"`
	Errors         []models.ItemError             `json:"errors,omitempty"`
}

// snapshotRow is one live inventory row, tagged with the internal location.
type snapshotRow struct {
	LocationId int
	ExternalId string
	Qty        decimal.Decimal
}

// workItem is a snapshot row resolved to a product.
type workItem struct {
	ProductId  int
	LocationId int
	ExternalId string
	Qty        decimal.Decimal
}

// StartOrResumeExtraction drives the batched cost-review state machine. The
// live snapshot is re-fetched on every call and never persisted; only the
// session's counters and learned state survive between calls.
func StartOrResumeExtraction(ctx context.Context, client possync.Client, input ExtractionInput) (*BatchResult, error) {
	logger := config.GetLogger()
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.NewValidationError("business id is required")
	}
	db := config.GetDB().WithContext(ctx)

	session, err := loadOrCreateSession(ctx, db, client, businessId, input)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return sessionSummary(session), nil
	}

	locations, err := fetchLocations(db, businessId, session.LocationIds())
	if err != nil {
		return nil, err
	}
	snapshot, err := fetchSnapshot(ctx, client, locations)
	if err != nil {
		config.LogError(logger, "extractionSession.go", "StartOrResumeExtraction", "fetchSnapshot", session.ID, err)
		return nil, models.NewExternalSourceError(err)
	}

	skipped, err := models.GetSkippedProductIds(db, businessId, session.CutoverId)
	if err != nil {
		return nil, err
	}
	working, err := resolveWorking(db, businessId, snapshot, skipped)
	if err != nil {
		return nil, err
	}
	approvals, err := models.GetApprovalsForCutover(db, businessId, session.CutoverId)
	if err != nil {
		return nil, err
	}

	// Progress is re-derived from live state on every call so batch-size
	// changes and individually approved items keep the counters honest.
	session.ProcessedItems = resolvedProgress(working, skipped, approvals)

	// Auto-advance: operators are never shown a fully-resolved batch.
	window, batchNumber, complete := advancePastResolved(working, approvals, session.CurrentBatch, session.BatchSize)
	session.CurrentBatch = batchNumber
	if complete {
		return completeSession(db, session)
	}
	if window == nil {
		// Hop budget exhausted; persist progress and report where we stopped.
		if err := saveSession(db, session); err != nil {
			return nil, err
		}
		return sessionSummary(session), nil
	}

	batch, err := materializeBatch(db, session, window)
	if err != nil {
		return nil, err
	}

	result := sessionSummary(session)
	result.BatchId = batch.ID
	result.Items, result.Errors, err = buildItems(ctx, db, client, businessId, session, window, approvals)
	if err != nil {
		return nil, err
	}

	if err := saveSession(db, session); err != nil {
		return nil, err
	}
	return result, nil
}

func loadOrCreateSession(ctx context.Context, db *gorm.DB, client possync.Client, businessId string, input ExtractionInput) (*models.ExtractionSession, error) {
	if input.SessionId != "" {
		var session models.ExtractionSession
		err := db.Where("business_id = ? AND id = ?", businessId, input.SessionId).First(&session).Error
		if err != nil {
			return nil, models.NewValidationError("extraction session not found")
		}
		return &session, nil
	}

	if len(input.LocationIds) == 0 {
		return nil, models.NewValidationError("at least one location is required")
	}
	if input.CutoverId == "" {
		return nil, models.NewValidationError("a cutover id is required to scope approvals")
	}
	locations, err := fetchLocations(db, businessId, input.LocationIds)
	if err != nil {
		return nil, err
	}
	snapshot, err := fetchSnapshot(ctx, client, locations)
	if err != nil {
		return nil, models.NewExternalSourceError(err)
	}

	totalItems := len(snapshot)
	batchSize := input.BatchSize
	if batchSize <= 0 {
		// Default: all items in one batch.
		batchSize = totalItems
	}
	session := models.ExtractionSession{
		BusinessId:   businessId,
		CutoverId:    input.CutoverId,
		CurrentBatch: 1,
		TotalItems:   totalItems,
		BatchSize:    batchSize,
		TotalBatches: totalBatchCount(totalItems, batchSize),
		Status:       models.ExtractionSessionStatusInProgress,
	}
	session.SetLocationIds(input.LocationIds)
	if err := db.Create(&session).Error; err != nil {
		return nil, models.NewStorageError(err)
	}
	return &session, nil
}

func fetchLocations(db *gorm.DB, businessId string, locationIds []int) ([]models.Location, error) {
	var locations []models.Location
	err := db.Where("business_id = ? AND id IN ?", businessId, locationIds).
		Order("id").
		Find(&locations).Error
	if err != nil {
		return nil, models.NewStorageError(err)
	}
	if len(locations) != len(utils.UniqueSlice(locationIds)) {
		return nil, models.NewValidationError("one or more locations do not exist")
	}
	return locations, nil
}

// fetchSnapshot pulls the live on-hand rows for every location, ordered by
// location then external id so batch windows are stable within a call.
func fetchSnapshot(ctx context.Context, client possync.Client, locations []models.Location) ([]snapshotRow, error) {
	var snapshot []snapshotRow
	for _, location := range locations {
		items, err := client.ListInventory(ctx, location.ExternalId)
		if err != nil {
			return nil, err
		}
		sort.Slice(items, func(i, j int) bool { return items[i].ExternalId < items[j].ExternalId })
		for _, item := range items {
			snapshot = append(snapshot, snapshotRow{
				LocationId: location.ID,
				ExternalId: item.ExternalId,
				Qty:        item.Quantity,
			})
		}
	}
	return snapshot, nil
}

// resolveWorking maps the snapshot to products and drops rows that are
// unmapped (lenient batch resolution) or whose product is SKIPPED.
func resolveWorking(db *gorm.DB, businessId string, snapshot []snapshotRow, skipped map[int]bool) ([]workItem, error) {
	byLocation := make(map[int][]string)
	for _, row := range snapshot {
		byLocation[row.LocationId] = append(byLocation[row.LocationId], row.ExternalId)
	}
	resolved := make(map[int]map[string]int, len(byLocation))
	for locationId, externalIds := range byLocation {
		m, err := models.BatchResolveProducts(db, businessId, utils.UniqueSlice(externalIds), locationId)
		if err != nil {
			return nil, err
		}
		resolved[locationId] = m
	}

	var working []workItem
	for _, row := range snapshot {
		productId, ok := resolved[row.LocationId][row.ExternalId]
		if !ok || skipped[productId] {
			continue
		}
		working = append(working, workItem{
			ProductId:  productId,
			LocationId: row.LocationId,
			ExternalId: row.ExternalId,
			Qty:        row.Qty,
		})
	}
	return working, nil
}

// dedupeByProduct keeps one representative row per product for external
// metadata, summing quantities across duplicate inventory rows.
func dedupeByProduct(window []workItem) []workItem {
	var deduped []workItem
	index := make(map[int]int)
	for _, item := range window {
		if i, ok := index[item.ProductId]; ok {
			deduped[i].Qty = deduped[i].Qty.Add(item.Qty)
			continue
		}
		index[item.ProductId] = len(deduped)
		deduped = append(deduped, item)
	}
	return deduped
}

// advancePastResolved walks batch windows from currentBatch until one still
// holds outstanding work, returning the deduped window to serve and the batch
// it belongs to. complete is true when the walk ran past the working set; a
// nil window with complete=false means the hop budget ran out.
func advancePastResolved(working []workItem, approvals map[int]models.CostApproval, currentBatch, batchSize int) ([]workItem, int, bool) {
	for hop := 0; hop < maxAutoAdvance; hop++ {
		start, end := batchWindow(len(working), currentBatch, batchSize)
		window := dedupeByProduct(working[start:end])
		if len(window) == 0 {
			return nil, currentBatch, true
		}
		if windowHasOutstanding(window, approvals) {
			return window, currentBatch, false
		}
		currentBatch++
	}
	return nil, currentBatch, false
}

// resolvedProgress counts the distinct working products already approved for
// the cutover, plus the products skipped outright.
func resolvedProgress(working []workItem, skipped map[int]bool, approvals map[int]models.CostApproval) int {
	resolved := len(skipped)
	seen := make(map[int]bool, len(working))
	for _, item := range working {
		if seen[item.ProductId] {
			continue
		}
		seen[item.ProductId] = true
		if approval, ok := approvals[item.ProductId]; ok && approval.MigrationStatus == models.MigrationStatusApproved {
			resolved++
		}
	}
	return resolved
}

func windowHasOutstanding(window []workItem, approvals map[int]models.CostApproval) bool {
	for _, item := range window {
		approval, ok := approvals[item.ProductId]
		if !ok {
			return true
		}
		if approval.MigrationStatus != models.MigrationStatusApproved && approval.MigrationStatus != models.MigrationStatusSkipped {
			return true
		}
	}
	return false
}

func materializeBatch(db *gorm.DB, session *models.ExtractionSession, window []workItem) (*models.ExtractionBatch, error) {
	productIds := make([]int, 0, len(window))
	for _, item := range window {
		productIds = append(productIds, item.ProductId)
	}
	return models.EnsureExtractionBatch(db, session.BusinessId, session.ID, session.BatchOffset+session.CurrentBatch, productIds)
}

// fetchSuggestions is swappable in tests to model a failing lookup.
var fetchSuggestions = supplierSuggestions

// buildItems assembles the reviewable items for a window. Per-item lookup
// failures are accumulated, never fatal: the rest of the batch still reaches
// the operator.
func buildItems(ctx context.Context, db *gorm.DB, client possync.Client, businessId string, session *models.ExtractionSession, window []workItem, approvals map[int]models.CostApproval) ([]ExtractionItem, []models.ItemError, error) {
	logger := config.GetLogger()
	externalIds := make([]string, 0, len(window))
	for _, item := range window {
		externalIds = append(externalIds, item.ExternalId)
	}
	catalog, err := client.FetchCatalogItems(ctx, externalIds)
	if err != nil {
		return nil, nil, models.NewExternalSourceError(err)
	}

	initials := session.LearnedInitials()
	cfg := extraction.DefaultConfig()
	items := make([]ExtractionItem, 0, len(window))
	var itemErrors []models.ItemError
	for _, w := range window {
		item := ExtractionItem{
			ProductId:  w.ProductId,
			ExternalId: w.ExternalId,
			LocationId: w.LocationId,
			Quantity:   w.Qty,
			Status:     models.MigrationStatusPending,
		}
		if meta, ok := catalog[w.ExternalId]; ok {
			item.ProductName = meta.Name
			item.Description = meta.Description
		}

		if approval, ok := approvals[w.ProductId]; ok && approval.MigrationStatus == models.MigrationStatusApproved {
			cost := approval.ApprovedCost
			item.ApprovedCost = &cost
			item.Status = models.MigrationStatusApproved
		} else {
			result := extraction.Extract(cfg, item.ProductName, item.Description)
			item.Extraction = &result

			suggestions, serr := fetchSuggestions(db, businessId, w.ProductId)
			if serr != nil {
				config.LogError(logger, "extractionSession.go", "buildItems", "supplierSuggestions", w.ProductId, serr)
				itemErrors = append(itemErrors, models.NewItemError(w.ProductId, w.ExternalId, serr))
			} else {
				item.Suggestions = suggestions
				enrichSupplier(&item, initials, suggestions)
			}
		}

		guard, gerr := priceGuard(db, businessId, &item, catalog[w.ExternalId])
		if gerr != nil {
			config.LogError(logger, "extractionSession.go", "buildItems", "priceGuard", w.ProductId, gerr)
			itemErrors = append(itemErrors, models.NewItemError(w.ProductId, w.ExternalId, gerr))
		} else {
			item.PriceGuard = guard
		}
		items = append(items, item)
	}
	session.SetLearnedInitials(initials)
	return items, itemErrors, nil
}

func supplierSuggestions(db *gorm.DB, businessId string, productId int) ([]SupplierSuggestion, error) {
	costs, err := models.GetSupplierCosts(db, businessId, productId)
	if err != nil {
		return nil, models.NewStorageError(err)
	}
	suggestions := make([]SupplierSuggestion, 0, len(costs))
	for _, c := range costs {
		suggestions = append(suggestions, SupplierSuggestion{SupplierName: c.SupplierName, UnitCost: c.UnitCost})
	}
	return suggestions, nil
}

// enrichSupplier infers full supplier names from the session's learned
// initials and learns new initials when an extracted short label matches a
// suggested supplier.
func enrichSupplier(item *ExtractionItem, initials map[string]string, suggestions []SupplierSuggestion) {
	if item.Extraction == nil {
		return
	}
	for _, entry := range item.Extraction.Entries {
		label := entry.Supplier
		if label == extraction.DefaultSupplier {
			continue
		}
		key := strings.ToUpper(label)
		if full, ok := initials[key]; ok {
			item.InferredSupplier = full
			continue
		}
		if len(label) <= 3 {
			for _, s := range suggestions {
				if matchesInitials(label, s.SupplierName) {
					initials[key] = s.SupplierName
					item.InferredSupplier = s.SupplierName
					break
				}
			}
		}
	}
}

// matchesInitials reports whether short is a prefix of full or matches the
// first letters of full's words, case-insensitively.
func matchesInitials(short, full string) bool {
	s := strings.ToUpper(short)
	f := strings.ToUpper(full)
	if strings.HasPrefix(f, s) {
		return true
	}
	words := strings.Fields(f)
	if len(words) < len(s) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if words[i][0] != s[i] {
			return false
		}
	}
	return true
}

// priceGuard flags a selected cost that meets or exceeds the known selling
// price, preferring the mapping's cached price over the live catalog price.
func priceGuard(db *gorm.DB, businessId string, item *ExtractionItem, meta possync.CatalogItem) (bool, error) {
	var cost *decimal.Decimal
	if item.ApprovedCost != nil {
		cost = item.ApprovedCost
	} else if item.Extraction != nil {
		cost = item.Extraction.SelectedCost
	}
	if cost == nil {
		return false, nil
	}

	price, err := models.GetMappingPrice(db, businessId, item.ExternalId, item.LocationId)
	if err != nil {
		return false, err
	}
	if price == nil {
		price = meta.Price
	}
	if price == nil {
		return false, nil
	}
	return cost.GreaterThanOrEqual(*price), nil
}

func completeSession(db *gorm.DB, session *models.ExtractionSession) (*BatchResult, error) {
	session.Status = models.ExtractionSessionStatusCompleted
	if session.CurrentBatch > session.TotalBatches {
		session.CurrentBatch = session.TotalBatches
	}
	if err := saveSession(db, session); err != nil {
		return nil, err
	}
	return sessionSummary(session), nil
}

func saveSession(db *gorm.DB, session *models.ExtractionSession) error {
	err := db.Model(&models.ExtractionSession{}).
		Where("business_id = ? AND id = ?", session.BusinessId, session.ID).
		Updates(map[string]interface{}{
			"current_batch":         session.CurrentBatch,
			"total_batches":         session.TotalBatches,
			"batch_offset":          session.BatchOffset,
			"total_items":           session.TotalItems,
			"processed_items":       session.ProcessedItems,
			"batch_size":            session.BatchSize,
			"status":                session.Status,
			"learned_initials_json": session.LearnedInitialsJSON,
		}).Error
	if err != nil {
		return models.NewStorageError(err)
	}
	return nil
}

func sessionSummary(session *models.ExtractionSession) *BatchResult {
	return &BatchResult{
		SessionId:      session.ID,
		BatchNumber:    session.CurrentBatch,
		TotalBatches:   session.TotalBatches,
		TotalItems:     session.TotalItems,
		ProcessedItems: session.ProcessedItems,
		BatchSize:      session.BatchSize,
		Status:         session.Status,
		IsComplete:     session.Status == models.ExtractionSessionStatusCompleted,
		CanContinue:    session.Status == models.ExtractionSessionStatusInProgress,
	}
}

// rebalanceSession repartitions the remaining unresolved work into windows of
// the new size. resolvedCount items already carry an approval or a skip; they
// stay resolved, so the new totals cover only what is left to review. Batch
// numbers up to maxBatchNumber stay reserved so re-served windows materialize
// under fresh identities.
func rebalanceSession(session *models.ExtractionSession, resolvedCount, maxBatchNumber, newSize int) {
	remaining := session.TotalItems - resolvedCount
	if remaining < 0 {
		remaining = 0
	}
	session.BatchSize = newSize
	session.TotalBatches = totalBatchCount(remaining, newSize)
	session.CurrentBatch = 1
	session.ProcessedItems = resolvedCount
	session.BatchOffset = maxBatchNumber
}

// ChangeBatchSize rebalances the remaining (non-approved, non-skipped) review
// work into windows of the new size. Prior approvals and skips are preserved;
// auto-advance moves the operator past any window that is already resolved.
func ChangeBatchSize(ctx context.Context, sessionId string, newSize int) (*BatchResult, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.NewValidationError("business id is required")
	}
	if newSize <= 0 {
		return nil, models.NewValidationError("batch size must be positive")
	}
	db := config.GetDB().WithContext(ctx)

	var session models.ExtractionSession
	if err := db.Where("business_id = ? AND id = ?", businessId, sessionId).First(&session).Error; err != nil {
		return nil, models.NewValidationError("extraction session not found")
	}
	if session.Status.Terminal() {
		return nil, models.NewValidationError("session is no longer in progress")
	}

	var resolvedCount int64
	err := db.Model(&models.CostApproval{}).
		Where("business_id = ? AND cutover_id = ? AND migration_status IN ?",
			businessId, session.CutoverId, []models.MigrationStatus{models.MigrationStatusApproved, models.MigrationStatusSkipped}).
		Count(&resolvedCount).Error
	if err != nil {
		return nil, models.NewStorageError(err)
	}
	maxBatchNumber, err := models.MaxExtractionBatchNumber(db, businessId, session.ID)
	if err != nil {
		return nil, err
	}

	rebalanceSession(&session, int(resolvedCount), maxBatchNumber, newSize)

	if err := saveSession(db, &session); err != nil {
		return nil, err
	}
	return sessionSummary(&session), nil
}

// CancelSession is the external terminal trigger for a session.
func CancelSession(ctx context.Context, sessionId string) error {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return models.NewValidationError("business id is required")
	}
	db := config.GetDB().WithContext(ctx)
	result := db.Model(&models.ExtractionSession{}).
		Where("business_id = ? AND id = ? AND status = ?", businessId, sessionId, models.ExtractionSessionStatusInProgress).
		Update("status", models.ExtractionSessionStatusCancelled)
	if result.Error != nil {
		return models.NewStorageError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewValidationError("session is not in progress")
	}
	return nil
}
