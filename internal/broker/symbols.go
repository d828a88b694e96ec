package broker

import "strings"

// ResolveSymbols maps configured instrument names (e.g. "EURUSD_o") to
// broker-recognized symbols by substring matching against the broker's
// symbol list. Names with no match pass through unchanged so the failure
// surfaces at metadata lookup, not silently here.
func ResolveSymbols(brokerSymbols, configured []string) []string {
	resolved := make([]string, 0, len(configured))
	for _, cs := range configured {
		// Strip broker-specific suffixes like "EURUSD_o" down to the
		// core instrument name before matching.
		needle, _, _ := strings.Cut(cs, "_")
		match := cs
		for _, name := range brokerSymbols {
			if strings.Contains(name, needle) {
				match = name
				break
			}
		}
		resolved = append(resolved, match)
	}
	return resolved
}
