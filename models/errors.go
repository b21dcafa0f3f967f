package models

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrCodeValidation       ErrorCode = "VALIDATION"
	ErrCodeUnmappedProduct  ErrorCode = "UNMAPPED_PRODUCT"
	ErrCodeMissingCost      ErrorCode = "MISSING_COST"
	ErrCodeExternalSource   ErrorCode = "EXTERNAL_SOURCE"
	ErrCodeStorage          ErrorCode = "STORAGE"
	ErrCodeMigrationBlocked ErrorCode = "MIGRATION_BLOCKED"
	ErrCodeDataIntegrity    ErrorCode = "DATA_INTEGRITY"
)

// AppError is the surfaced error shape for every failure this core reports.
// Callers branch on Code / Retryable / Resumable rather than message text.
type AppError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Recovery  string    `json:"recovery"`
	Retryable bool      `json:"retryable"`
	Resumable bool      `json:"resumable"`
	Err       error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:     ErrCodeValidation,
		Message:  msg,
		Recovery: "fix the request input and retry",
	}
}

func NewUnmappedProductError(externalId string) *AppError {
	return &AppError{
		Code:      ErrCodeUnmappedProduct,
		Message:   fmt.Sprintf("no catalog mapping for external id %q", externalId),
		Recovery:  "run a catalog sync, then retry",
		Retryable: true,
	}
}

func NewMissingCostError(productId int) *AppError {
	return &AppError{
		Code:      ErrCodeMissingCost,
		Message:   fmt.Sprintf("no cost could be derived for product %d", productId),
		Recovery:  "approve a cost for the product or skip it",
		Retryable: true,
		Resumable: true,
	}
}

func NewExternalSourceError(err error) *AppError {
	return &AppError{
		Code:      ErrCodeExternalSource,
		Message:   "external inventory source call failed",
		Recovery:  "retry the same call",
		Retryable: true,
		Resumable: true,
		Err:       err,
	}
}

func NewStorageError(err error) *AppError {
	return &AppError{
		Code:      ErrCodeStorage,
		Message:   "storage operation failed",
		Recovery:  "retry the same call",
		Retryable: true,
		Resumable: true,
		Err:       err,
	}
}

func NewMigrationBlockedError(msg string) *AppError {
	return &AppError{
		Code:     ErrCodeMigrationBlocked,
		Message:  msg,
		Recovery: "a policy override is required; this is not retryable",
	}
}

func NewDataIntegrityError(msg string) *AppError {
	return &AppError{
		Code:     ErrCodeDataIntegrity,
		Message:  msg,
		Recovery: "inspect the mapping and product tables; manual repair required",
	}
}

// ItemError is a per-item failure accumulated into a batch result.
// Per-item failures never abort the surrounding batch.
type ItemError struct {
	ProductId  int       `json:"product_id,omitempty"`
	ExternalId string    `json:"external_id,omitempty"`
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
}

func NewItemError(productId int, externalId string, err error) ItemError {
	if appErr, ok := AsAppError(err); ok {
		return ItemError{ProductId: productId, ExternalId: externalId, Code: appErr.Code, Message: appErr.Message}
	}
	return ItemError{ProductId: productId, ExternalId: externalId, Code: ErrCodeStorage, Message: err.Error()}
}
