// internal/agent/shipping.go
package agent

// OptionIndex resolves a shipping preference to an index into the options
// as presented by the page (0-based, page order):
//
//   - fastest picks the last option,
//   - cheapest picks the first,
//   - best_value picks the second when one exists, else the only option.
//
// Returns -1 when no options are presented.
func OptionIndex(pref Preference, count int) int {
	if count <= 0 {
		return -1
	}
	switch pref {
	case PreferFastest:
		return count - 1
	case PreferCheapest:
		return 0
	case PreferBestValue:
		return min(1, count-1)
	}
	return 0
}
