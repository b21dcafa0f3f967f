package extraction

import (
	"sort"
	"time"
)

// defaultMonthAliases covers Spanish and English month names, their usual
// abbreviations, and typos seen in real product descriptions.
func defaultMonthAliases() map[string]time.Month {
	return map[string]time.Month{
		"enero": time.January, "ene": time.January, "january": time.January, "jan": time.January,
		"febrero": time.February, "feb": time.February, "february": time.February, "febrary": time.February, "feberero": time.February,
		"marzo": time.March, "mar": time.March, "march": time.March, "marso": time.March,
		"abril": time.April, "abr": time.April, "april": time.April, "aprl": time.April, "avril": time.April,
		"mayo": time.May, "may": time.May, "maio": time.May,
		"junio": time.June, "jun": time.June, "june": time.June, "juno": time.June,
		"julio": time.July, "jul": time.July, "july": time.July, "jullio": time.July,
		"agosto": time.August, "ago": time.August, "august": time.August, "aug": time.August, "agost": time.August,
		"septiembre": time.September, "setiembre": time.September, "sep": time.September, "sept": time.September,
		"september": time.September, "septembre": time.September,
		"octubre": time.October, "oct": time.October, "october": time.October, "octubr": time.October,
		"noviembre": time.November, "nov": time.November, "november": time.November, "novembre": time.November,
		"diciembre": time.December, "dic": time.December, "dec": time.December, "december": time.December, "desiembre": time.December,
	}
}

// sortedAliases returns alias keys longest-first so "mayo" wins over "may"
// and "abril" over "abr". Ties break lexicographically for determinism.
func sortedAliases(aliases map[string]time.Month) []string {
	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}
