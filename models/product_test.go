package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAverageSupplierCost(t *testing.T) {
	costs := []SupplierCost{
		{SupplierName: "A", UnitCost: decimal.NewFromInt(10)},
		{SupplierName: "B", UnitCost: decimal.NewFromInt(20)},
		{SupplierName: "C", UnitCost: decimal.NewFromInt(40)},
	}
	avg, ok := AverageSupplierCost(costs)
	if !ok {
		t.Fatal("expected an average")
	}
	want := decimal.NewFromInt(70).Div(decimal.NewFromInt(3))
	if !avg.Equal(want) {
		t.Fatalf("avg = %s, want %s", avg, want)
	}
}

func TestAverageSupplierCostEmpty(t *testing.T) {
	if _, ok := AverageSupplierCost(nil); ok {
		t.Fatal("no costs must yield ok=false, never zero-as-a-cost")
	}
}
