package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// Amount anchored at the currency marker; "." or "," both accepted as
	// the decimal separator.
	amountRe = regexp.MustCompile(`\$\s*([0-9]+(?:[.,][0-9]{1,2})?)`)
	// Leading numeric date as day/month[/year].
	numericDateRe = regexp.MustCompile(`([0-9]{1,2})[/-]([0-9]{1,2})(?:[/-]([0-9]{2,4}))?`)
	numericLineRe = regexp.MustCompile(`^[0-9\s.,/-]+$`)
	dayTokenRe    = regexp.MustCompile(`^[0-9]{1,2}$`)
)

// Extract recovers candidate cost entries from a product's name and
// description. Deterministic: no clocks, no randomness, no map-order
// dependence.
func Extract(cfg Config, productName, description string) Result {
	result := Result{}

	lines := mergeLines(cfg, productName+"\n"+description)
	for _, line := range lines {
		if skipLine(cfg, line) {
			continue
		}
		entry, note, ok := parseLine(cfg, line)
		if note != "" {
			result.Errors = append(result.Errors, note)
		}
		if !ok {
			continue
		}
		result.Entries = append(result.Entries, entry)
	}

	switch len(result.Entries) {
	case 0:
		result.RequiresManualReview = true
	case 1:
		amount := result.Entries[0].Amount
		result.SelectedCost = &amount
		if result.Entries[0].Confidence == ConfidenceLow {
			result.RequiresManualReview = true
		}
	default:
		// Multiple entries: the last one is assumed most recent, but the
		// choice still needs an operator's eye.
		amount := result.Entries[len(result.Entries)-1].Amount
		result.SelectedCost = &amount
		result.RequiresManualReview = true
	}
	return result
}

// mergeLines splits the text into trimmed lines and folds any line holding
// only a month token (optionally with a day) into the previous
// currency-bearing line. Handles cost notes wrapped across lines.
func mergeLines(cfg Config, text string) []string {
	var merged []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if isMonthFragment(cfg, line) && len(merged) > 0 && strings.Contains(merged[len(merged)-1], "$") {
			merged[len(merged)-1] = merged[len(merged)-1] + " " + line
			continue
		}
		merged = append(merged, line)
	}
	return merged
}

func isMonthFragment(cfg Config, line string) bool {
	if strings.Contains(line, "$") {
		return false
	}
	tokens := normalizeTokens(line)
	if len(tokens) == 0 || len(tokens) > 2 {
		return false
	}
	sawMonth := false
	for _, tok := range tokens {
		if _, ok := cfg.MonthAliases[tok]; ok {
			sawMonth = true
			continue
		}
		if !isDayToken(tok) {
			return false
		}
	}
	return sawMonth
}

func skipLine(cfg Config, line string) bool {
	lower := strings.ToLower(line)
	for _, prefix := range cfg.SkipPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	if numericLineRe.MatchString(line) {
		return true
	}
	return !strings.Contains(line, "$")
}

func parseLine(cfg Config, line string) (Entry, string, bool) {
	loc := amountRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return Entry{}, fmt.Sprintf("line %q: currency marker without a readable amount", line), false
	}
	amountStr := strings.ReplaceAll(line[loc[2]:loc[3]], ",", ".")
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return Entry{}, fmt.Sprintf("line %q: unreadable amount %q", line, amountStr), false
	}
	if amount.LessThan(cfg.MinAmount) || amount.GreaterThan(cfg.MaxAmount) {
		return Entry{}, fmt.Sprintf("line %q: amount %s outside accepted range", line, amount), false
	}

	entry := Entry{Amount: amount, Line: line}

	prefix := line[:loc[0]]
	if day, month, year, ok := parseNumericDate(prefix); ok {
		entry.Day, entry.Month, entry.Year, entry.HasMonth = day, month, year, true
	} else if month, day, ok := findMonthToken(cfg, line); ok {
		entry.Month, entry.Day, entry.HasMonth = month, day, true
	}

	entry.Supplier = parseSupplier(cfg, prefix)

	switch {
	case entry.HasMonth && entry.Supplier != DefaultSupplier:
		entry.Confidence = ConfidenceHigh
	case entry.HasMonth || entry.Supplier != DefaultSupplier:
		entry.Confidence = ConfidenceMedium
	default:
		entry.Confidence = ConfidenceLow
	}
	return entry, "", true
}

// parseNumericDate reads a day/month[/year] date token from the text before
// the amount.
func parseNumericDate(prefix string) (int, time.Month, int, bool) {
	m := numericDateRe.FindStringSubmatch(prefix)
	if m == nil {
		return 0, 0, 0, false
	}
	day, _ := strconv.Atoi(m[1])
	monthNum, _ := strconv.Atoi(m[2])
	if day < 1 || day > 31 || monthNum < 1 || monthNum > 12 {
		return 0, 0, 0, false
	}
	year := 0
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
	}
	return day, time.Month(monthNum), year, true
}

// findMonthToken searches the whole line for a month alias, longest alias
// first, with a 1-2 digit day token immediately before or after it.
func findMonthToken(cfg Config, line string) (time.Month, int, bool) {
	tokens := normalizeTokens(line)
	for _, alias := range sortedAliases(cfg.MonthAliases) {
		for i, tok := range tokens {
			if tok != alias {
				continue
			}
			month := cfg.MonthAliases[alias]
			day := 0
			if i > 0 && isDayToken(tokens[i-1]) {
				day, _ = strconv.Atoi(tokens[i-1])
			} else if i+1 < len(tokens) && isDayToken(tokens[i+1]) {
				day, _ = strconv.Atoi(tokens[i+1])
			}
			return month, day, true
		}
	}
	return 0, 0, false
}

// parseSupplier takes the short token run immediately preceding the currency
// marker: at most MaxSupplierWords words and MaxSupplierChars characters.
func parseSupplier(cfg Config, prefix string) string {
	words := strings.Fields(strings.TrimSpace(prefix))
	var run []string
	length := 0
	for i := len(words) - 1; i >= 0; i-- {
		w := words[i]
		if len(run) >= cfg.MaxSupplierWords {
			break
		}
		candidate := length + len(w)
		if len(run) > 0 {
			candidate++ // joining space
		}
		if candidate > cfg.MaxSupplierChars {
			break
		}
		run = append([]string{w}, run...)
		length = candidate
	}
	label := strings.Join(run, " ")
	if label == "" || numericLineRe.MatchString(label) {
		return DefaultSupplier
	}
	return label
}

func normalizeTokens(line string) []string {
	fields := strings.Fields(strings.ToLower(line))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, strings.Trim(f, ".,;:()"))
	}
	return tokens
}

func isDayToken(tok string) bool {
	if !dayTokenRe.MatchString(tok) {
		return false
	}
	n, _ := strconv.Atoi(tok)
	return n >= 1 && n <= 31
}
