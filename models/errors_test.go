package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppErrorTaxonomyFlags(t *testing.T) {
	cases := []struct {
		err       *AppError
		code      ErrorCode
		retryable bool
		resumable bool
	}{
		{NewValidationError("x"), ErrCodeValidation, false, false},
		{NewUnmappedProductError("ext"), ErrCodeUnmappedProduct, true, false},
		{NewMissingCostError(1), ErrCodeMissingCost, true, true},
		{NewExternalSourceError(errors.New("down")), ErrCodeExternalSource, true, true},
		{NewStorageError(errors.New("down")), ErrCodeStorage, true, true},
		{NewMigrationBlockedError("x"), ErrCodeMigrationBlocked, false, false},
		{NewDataIntegrityError("x"), ErrCodeDataIntegrity, false, false},
	}
	for _, c := range cases {
		if c.err.Code != c.code {
			t.Fatalf("code = %s, want %s", c.err.Code, c.code)
		}
		if c.err.Retryable != c.retryable || c.err.Resumable != c.resumable {
			t.Fatalf("%s: retryable=%v resumable=%v", c.code, c.err.Retryable, c.err.Resumable)
		}
		if c.err.Recovery == "" {
			t.Fatalf("%s: recovery guidance is required", c.code)
		}
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewStorageError(cause)
	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause must survive errors.Is")
	}

	wrapped := fmt.Errorf("while writing: %w", err)
	appErr, ok := AsAppError(wrapped)
	if !ok || appErr.Code != ErrCodeStorage {
		t.Fatalf("AsAppError through wrapping: %v, %v", appErr, ok)
	}
}

func TestNewItemErrorPreservesCode(t *testing.T) {
	item := NewItemError(7, "ext-7", NewMissingCostError(7))
	if item.Code != ErrCodeMissingCost || item.ProductId != 7 || item.ExternalId != "ext-7" {
		t.Fatalf("item = %+v", item)
	}

	plain := NewItemError(8, "", errors.New("boom"))
	if plain.Code != ErrCodeStorage {
		t.Fatalf("plain error code = %s", plain.Code)
	}
}
