package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExtractionSession is the resumable, batched cost-review workflow state for
// a set of locations. One per extraction attempt.
type ExtractionSession struct {
	ID              string `gorm:"primary_key;size:36" json:"id"`
	BusinessId      string `gorm:"index;not null" json:"business_id"`
	CutoverId       string `gorm:"index;size:36;not null" json:"cutover_id"`
	LocationIdsJSON []byte `gorm:"type:json" json:"location_ids"`
	CurrentBatch    int    `gorm:"not null;default:1" json:"current_batch"`
	TotalBatches    int    `gorm:"not null;default:0" json:"total_batches"`
	// BatchOffset shifts materialized batch numbers. Changing the batch size
	// mid-session starts a fresh partition; the offset keeps the numbers of
	// already-materialized batches reserved.
	BatchOffset    int                     `gorm:"not null;default:0" json:"batch_offset"`
	TotalItems     int                     `gorm:"not null;default:0" json:"total_items"`
	ProcessedItems int                     `gorm:"not null;default:0" json:"processed_items"`
	BatchSize      int                     `gorm:"not null;default:0" json:"batch_size"`
	Status         ExtractionSessionStatus `gorm:"size:20;not null;default:IN_PROGRESS" json:"status"`
	// LearnedInitialsJSON maps short supplier initials seen during review to
	// full supplier names. Grows over the session's life.
	LearnedInitialsJSON []byte    `gorm:"type:json" json:"learned_initials"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *ExtractionSession) BeforeCreate(tx *gorm.DB) error {
	_ = tx
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (s *ExtractionSession) LocationIds() []int {
	if len(s.LocationIdsJSON) == 0 {
		return nil
	}
	var ids []int
	if err := json.Unmarshal(s.LocationIdsJSON, &ids); err != nil {
		return nil
	}
	return ids
}

func (s *ExtractionSession) SetLocationIds(ids []int) {
	b, _ := json.Marshal(ids)
	s.LocationIdsJSON = b
}

// LearnedInitials decodes tolerantly: a corrupt column yields an empty map,
// never an error.
func (s *ExtractionSession) LearnedInitials() map[string]string {
	initials := make(map[string]string)
	if len(s.LearnedInitialsJSON) == 0 {
		return initials
	}
	if err := json.Unmarshal(s.LearnedInitialsJSON, &initials); err != nil {
		return map[string]string{}
	}
	return initials
}

func (s *ExtractionSession) SetLearnedInitials(initials map[string]string) {
	b, _ := json.Marshal(initials)
	s.LearnedInitialsJSON = b
}

// ExtractionBatch materializes one reviewable window of a session. Created at
// most once per (session, batch_number); it is the unit an operator approves
// or rejects as a whole.
type ExtractionBatch struct {
	ID             int                   `gorm:"primary_key" json:"id"`
	BusinessId     string                `gorm:"index;not null" json:"business_id"`
	SessionId      string                `gorm:"uniqueIndex:idx_extraction_batch,priority:1;size:36;not null" json:"session_id"`
	BatchNumber    int                   `gorm:"uniqueIndex:idx_extraction_batch,priority:2;not null" json:"batch_number"`
	ProductIdsJSON []byte                `gorm:"type:json" json:"product_ids"`
	ItemCount      int                   `gorm:"not null;default:0" json:"item_count"`
	ApprovedCount  int                   `gorm:"not null;default:0" json:"approved_count"`
	Status         ExtractionBatchStatus `gorm:"size:20;not null;default:EXTRACTED" json:"status"`
	CreatedAt      time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

func (b *ExtractionBatch) ProductIds() []int {
	if len(b.ProductIdsJSON) == 0 {
		return nil
	}
	var ids []int
	if err := json.Unmarshal(b.ProductIdsJSON, &ids); err != nil {
		return nil
	}
	return ids
}

// EnsureExtractionBatch creates the batch row the first time its number is
// produced; replays return the existing row untouched.
func EnsureExtractionBatch(tx *gorm.DB, businessId, sessionId string, batchNumber int, productIds []int) (*ExtractionBatch, error) {
	var existing ExtractionBatch
	err := tx.Where("business_id = ? AND session_id = ? AND batch_number = ?", businessId, sessionId, batchNumber).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewStorageError(err)
	}

	idsJSON, _ := json.Marshal(productIds)
	batch := ExtractionBatch{
		BusinessId:     businessId,
		SessionId:      sessionId,
		BatchNumber:    batchNumber,
		ProductIdsJSON: idsJSON,
		ItemCount:      len(productIds),
		Status:         ExtractionBatchStatusExtracted,
	}
	if cerr := tx.Create(&batch).Error; cerr != nil {
		// Concurrent replay created it first; re-read.
		if rerr := tx.Where("business_id = ? AND session_id = ? AND batch_number = ?", businessId, sessionId, batchNumber).
			First(&batch).Error; rerr != nil {
			return nil, NewStorageError(cerr)
		}
	}
	return &batch, nil
}

// MaxExtractionBatchNumber returns the highest batch number materialized for
// a session, zero when none exist.
func MaxExtractionBatchNumber(tx *gorm.DB, businessId, sessionId string) (int, error) {
	var maxNumber int
	err := tx.Model(&ExtractionBatch{}).
		Where("business_id = ? AND session_id = ?", businessId, sessionId).
		Select("COALESCE(MAX(batch_number), 0)").
		Scan(&maxNumber).Error
	if err != nil {
		return 0, NewStorageError(err)
	}
	return maxNumber, nil
}

func GetExtractionBatch(tx *gorm.DB, businessId string, batchId int) (*ExtractionBatch, error) {
	var batch ExtractionBatch
	err := tx.Where("business_id = ? AND id = ?", businessId, batchId).First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError("extraction batch not found")
		}
		return nil, NewStorageError(err)
	}
	return &batch, nil
}

func (b *ExtractionBatch) MarkReviewed(tx *gorm.DB, status ExtractionBatchStatus, approvedCount int) error {
	return tx.Model(b).Updates(map[string]interface{}{
		"status":         status,
		"approved_count": approvedCount,
	}).Error
}
