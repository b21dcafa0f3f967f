package models

type CutoverStatus string

const (
	CutoverStatusPending    CutoverStatus = "PENDING"
	CutoverStatusInProgress CutoverStatus = "IN_PROGRESS"
	CutoverStatusCompleted  CutoverStatus = "COMPLETED"
	CutoverStatusFailed     CutoverStatus = "FAILED"
)

func (s CutoverStatus) Valid() bool {
	switch s {
	case CutoverStatusPending, CutoverStatusInProgress, CutoverStatusCompleted, CutoverStatusFailed:
		return true
	}
	return false
}

type ExtractionSessionStatus string

const (
	ExtractionSessionStatusInProgress ExtractionSessionStatus = "IN_PROGRESS"
	ExtractionSessionStatusCompleted  ExtractionSessionStatus = "COMPLETED"
	ExtractionSessionStatusCancelled  ExtractionSessionStatus = "CANCELLED"
)

func (s ExtractionSessionStatus) Terminal() bool {
	return s == ExtractionSessionStatusCompleted || s == ExtractionSessionStatusCancelled
}

type ExtractionBatchStatus string

const (
	ExtractionBatchStatusExtracted ExtractionBatchStatus = "EXTRACTED"
	ExtractionBatchStatusApproved  ExtractionBatchStatus = "APPROVED"
	ExtractionBatchStatusRejected  ExtractionBatchStatus = "REJECTED"
)

// CostBasis selects how the opening-balance unit cost is derived.
type CostBasis string

const (
	CostBasisManualInput  CostBasis = "MANUAL_INPUT"
	CostBasisDescription  CostBasis = "DESCRIPTION"
	CostBasisSourceSystem CostBasis = "SOURCE_SYSTEM"
	CostBasisAverageCost  CostBasis = "AVERAGE_COST"
)

func (b CostBasis) Valid() bool {
	switch b {
	case CostBasisManualInput, CostBasisDescription, CostBasisSourceSystem, CostBasisAverageCost:
		return true
	}
	return false
}

// MigrationStatus tracks a per-product approval through the migration.
type MigrationStatus string

const (
	MigrationStatusPending  MigrationStatus = "PENDING"
	MigrationStatusApproved MigrationStatus = "APPROVED"
	MigrationStatusSkipped  MigrationStatus = "SKIPPED"
)

type ApprovalSource string

const (
	ApprovalSourceExtraction ApprovalSource = "EXTRACTION"
	ApprovalSourceManual     ApprovalSource = "MANUAL"
	ApprovalSourceAverage    ApprovalSource = "AVERAGE"
	ApprovalSourceSource     ApprovalSource = "SOURCE_SYSTEM"
)

// InventorySource tags the origin of a cost-lot row.
type InventorySource string

const (
	InventorySourceOpeningBalance InventorySource = "OPENING_BALANCE"
	InventorySourcePurchase       InventorySource = "PURCHASE"
	InventorySourceAdjustment     InventorySource = "ADJUSTMENT"
)
