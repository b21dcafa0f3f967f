package workflow

import (
	"testing"

	"github.com/frh3ddy/farmacia-ops-sub000/models"
	"github.com/shopspring/decimal"
)

func TestValidateBatchMembership(t *testing.T) {
	batch := &models.ExtractionBatch{BatchNumber: 2, ProductIdsJSON: []byte(`[1,2,3]`)}

	ok := []ItemApproval{
		{ProductId: 1, Cost: decimal.NewFromInt(5), Source: models.ApprovalSourceManual},
		{ProductId: 3, Cost: decimal.NewFromInt(7), Source: models.ApprovalSourceManual},
	}
	if err := validateBatchMembership(batch, ok); err != nil {
		t.Fatalf("approvals within the batch must pass: %v", err)
	}

	outsider := append(ok, ItemApproval{ProductId: 4, Cost: decimal.NewFromInt(1)})
	err := validateBatchMembership(batch, outsider)
	if err == nil {
		t.Fatal("product 4 is not in the batch; the approval must be rejected")
	}
	appErr, isApp := models.AsAppError(err)
	if !isApp || appErr.Code != models.ErrCodeValidation {
		t.Fatalf("err = %v, want a validation error", err)
	}
}

func TestUniqueApprovalCount(t *testing.T) {
	approvals := []ItemApproval{
		{ProductId: 1}, {ProductId: 2}, {ProductId: 1},
	}
	if got := uniqueApprovalCount(approvals); got != 2 {
		t.Fatalf("uniqueApprovalCount = %d, want 2", got)
	}
}
