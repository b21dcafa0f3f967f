package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cutover is one migration attempt. Mutated only by the migration executor;
// immutable once COMPLETED.
type Cutover struct {
	ID             string        `gorm:"primary_key;size:36" json:"id"`
	BusinessId     string        `gorm:"index;not null" json:"business_id"`
	CutoverDate    time.Time     `gorm:"not null" json:"cutover_date"`
	CostBasis      CostBasis     `gorm:"size:20;not null" json:"cost_basis"`
	OwnerApproved  *bool         `gorm:"not null;default:false" json:"owner_approved"`
	Status         CutoverStatus `gorm:"size:20;not null;default:PENDING" json:"status"`
	BatchSize      int           `gorm:"not null;default:0" json:"batch_size"`
	CurrentBatch   int           `gorm:"not null;default:1" json:"current_batch"`
	TotalBatches   int           `gorm:"not null;default:0" json:"total_batches"`
	ProcessedItems int           `gorm:"not null;default:0" json:"processed_items"`
	TotalItems     int           `gorm:"not null;default:0" json:"total_items"`
	// ResumeStateJSON persists the original input so continueCutover can
	// rebuild it without guessing. Validated on load, never partially
	// defaulted.
	ResumeStateJSON []byte    `gorm:"type:json" json:"resume_state"`
	LastError       string    `gorm:"type:text" json:"last_error"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Cutover) BeforeCreate(tx *gorm.DB) error {
	_ = tx
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ResumeState is the typed resumption snapshot stored on a Cutover row.
type ResumeState struct {
	CutoverDate   time.Time               `json:"cutover_date"`
	LocationIds   []int                   `json:"location_ids"`
	CostBasis     CostBasis               `json:"cost_basis"`
	OwnerApproved bool                    `json:"owner_approved"`
	ManualCosts   map[int]decimal.Decimal `json:"manual_costs,omitempty"`
}

func EncodeResumeState(state ResumeState) []byte {
	b, _ := json.Marshal(state)
	return b
}

// DecodeResumeState validates the persisted snapshot. A snapshot missing
// required fields fails explicitly instead of guessing.
func DecodeResumeState(raw []byte) (ResumeState, error) {
	var state ResumeState
	if len(raw) == 0 {
		return state, NewValidationError("cutover has no persisted resume state; it cannot be continued")
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return state, NewValidationError("cutover resume state is corrupt: " + err.Error())
	}
	if state.CutoverDate.IsZero() {
		return state, NewValidationError("cutover resume state is missing the cutover date")
	}
	if len(state.LocationIds) == 0 {
		return state, NewValidationError("cutover resume state has no locations")
	}
	if !state.CostBasis.Valid() {
		return state, NewValidationError("cutover resume state has an unrecognized cost basis")
	}
	return state, nil
}

// CutoverLock freezes a location's history at the cutover date. Created only
// on successful full completion of a cutover; never deleted by this core.
type CutoverLock struct {
	ID          int       `gorm:"primary_key" json:"id"`
	BusinessId  string    `gorm:"uniqueIndex:idx_cutover_lock,priority:1;not null" json:"business_id"`
	LocationId  int       `gorm:"uniqueIndex:idx_cutover_lock,priority:2;not null" json:"location_id"`
	CutoverDate time.Time `gorm:"not null" json:"cutover_date"`
	IsLocked    *bool     `gorm:"not null;default:true" json:"is_locked"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// LockBlocks reports whether an operation dated effectiveDate would backdate
// history behind this lock.
func (l *CutoverLock) LockBlocks(effectiveDate time.Time) bool {
	if l == nil || l.IsLocked == nil || !*l.IsLocked {
		return false
	}
	return effectiveDate.Before(l.CutoverDate)
}

// CheckBackdatedWrite rejects mutations dated before an installed lock.
func CheckBackdatedWrite(tx *gorm.DB, businessId string, locationId int, effectiveDate time.Time) error {
	var lock CutoverLock
	err := tx.Where("business_id = ? AND location_id = ?", businessId, locationId).
		First(&lock).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return NewStorageError(err)
	}
	if lock.LockBlocks(effectiveDate) {
		return NewMigrationBlockedError("location history is locked at the cutover date; backdated writes are rejected")
	}
	return nil
}

// EnsureCutoverLocks installs a lock per location, idempotently.
func EnsureCutoverLocks(tx *gorm.DB, businessId string, locationIds []int, cutoverDate time.Time) error {
	for _, locationId := range locationIds {
		var existing CutoverLock
		err := tx.Where("business_id = ? AND location_id = ?", businessId, locationId).
			First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return NewStorageError(err)
		}
		lock := CutoverLock{
			BusinessId:  businessId,
			LocationId:  locationId,
			CutoverDate: cutoverDate,
			IsLocked:    newTrue(),
		}
		if cerr := tx.Create(&lock).Error; cerr != nil {
			return NewStorageError(cerr)
		}
	}
	return nil
}

// GetCutoverLocks returns lock state, optionally for a single location.
func GetCutoverLocks(tx *gorm.DB, businessId string, locationId *int) ([]CutoverLock, error) {
	query := tx.Where("business_id = ?", businessId)
	if locationId != nil {
		query = query.Where("location_id = ?", *locationId)
	}
	var locks []CutoverLock
	if err := query.Order("location_id").Find(&locks).Error; err != nil {
		return nil, NewStorageError(err)
	}
	return locks, nil
}

func newTrue() *bool {
	b := true
	return &b
}
