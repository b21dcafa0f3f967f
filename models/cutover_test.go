package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLockBlocks(t *testing.T) {
	cutoverDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	lock := &CutoverLock{CutoverDate: cutoverDate, IsLocked: newTrue()}

	if !lock.LockBlocks(cutoverDate.AddDate(0, 0, -1)) {
		t.Fatal("a write dated before the cutover must be blocked")
	}
	if lock.LockBlocks(cutoverDate) {
		t.Fatal("a write dated exactly at the cutover is allowed")
	}
	if lock.LockBlocks(cutoverDate.AddDate(0, 0, 1)) {
		t.Fatal("a write dated after the cutover is allowed")
	}

	unlocked := false
	lock.IsLocked = &unlocked
	if lock.LockBlocks(cutoverDate.AddDate(0, 0, -1)) {
		t.Fatal("an unlocked lock blocks nothing")
	}

	var nilLock *CutoverLock
	if nilLock.LockBlocks(cutoverDate) {
		t.Fatal("a missing lock blocks nothing")
	}
}

func TestResumeStateRoundTrip(t *testing.T) {
	state := ResumeState{
		CutoverDate:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		LocationIds:   []int{1, 2},
		CostBasis:     CostBasisDescription,
		OwnerApproved: true,
		ManualCosts:   map[int]decimal.Decimal{7: decimal.RequireFromString("1.25")},
	}
	decoded, err := DecodeResumeState(EncodeResumeState(state))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !decoded.CutoverDate.Equal(state.CutoverDate) {
		t.Fatalf("date = %v", decoded.CutoverDate)
	}
	if len(decoded.LocationIds) != 2 || decoded.CostBasis != CostBasisDescription {
		t.Fatalf("decoded = %+v", decoded)
	}
	if !decoded.ManualCosts[7].Equal(state.ManualCosts[7]) {
		t.Fatalf("manual cost = %s", decoded.ManualCosts[7])
	}
}

func TestDecodeResumeStateRejectsIncompleteSnapshots(t *testing.T) {
	cases := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"corrupt", []byte("{not json")},
		{"missing date", []byte(`{"location_ids":[1],"cost_basis":"DESCRIPTION"}`)},
		{"missing locations", []byte(`{"cutover_date":"2025-06-01T00:00:00Z","cost_basis":"DESCRIPTION"}`)},
		{"bad basis", []byte(`{"cutover_date":"2025-06-01T00:00:00Z","location_ids":[1],"cost_basis":"GUESS"}`)},
	}
	for _, c := range cases {
		if _, err := DecodeResumeState(c.raw); err == nil {
			t.Fatalf("%s: expected an error", c.name)
		} else if appErr, ok := AsAppError(err); !ok || appErr.Code != ErrCodeValidation {
			t.Fatalf("%s: err = %v", c.name, err)
		}
	}
}
