// Package extraction recovers supplier/amount/date cost entries from free
// text on product records. Extract is a pure function: identical input always
// yields identical output, which the session manager relies on for safe
// re-extraction.
package extraction

import (
	"time"

	"github.com/shopspring/decimal"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// DefaultSupplier is the placeholder label when no supplier token is found.
const DefaultSupplier = "?"

// Config holds the tuned thresholds of the extraction heuristics. They are
// adjustable policy, not fixed law; DefaultConfig pins the production values.
type Config struct {
	// Amounts outside [MinAmount, MaxAmount] are rejected.
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	// A supplier label is a token run immediately preceding the currency
	// marker, at most MaxSupplierChars characters and MaxSupplierWords words.
	MaxSupplierChars int
	MaxSupplierWords int
	// MonthAliases maps lowercase month names, abbreviations, and common
	// typos to months. Matched longest-alias-first.
	MonthAliases map[string]time.Month
	// SkipPrefixes are lowercase line prefixes that never carry costs.
	SkipPrefixes []string
}

func DefaultConfig() Config {
	return Config{
		MinAmount:        decimal.Zero,
		MaxAmount:        decimal.NewFromInt(10000),
		MaxSupplierChars: 15,
		MaxSupplierWords: 3,
		MonthAliases:     defaultMonthAliases(),
		SkipPrefixes: []string{
			"formula", "fórmula", "form.",
			"descripcion", "descripción", "desc",
			"laboratorio", "lab.",
		},
	}
}

// Entry is one candidate cost recovered from a line of text.
type Entry struct {
	Supplier   string          `json:"supplier"`
	Amount     decimal.Decimal `json:"amount"`
	Day        int             `json:"day,omitempty"`
	Month      time.Month      `json:"month,omitempty"`
	HasMonth   bool            `json:"has_month"`
	Year       int             `json:"year,omitempty"`
	Confidence Confidence      `json:"confidence"`
	Line       string          `json:"line"`
}

type Result struct {
	Entries              []Entry          `json:"entries"`
	SelectedCost         *decimal.Decimal `json:"selected_cost"`
	RequiresManualReview bool             `json:"requires_manual_review"`
	Errors               []string         `json:"errors"`
}
