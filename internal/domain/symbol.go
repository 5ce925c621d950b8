package domain

import "strings"

// SymbolSeparator separates base and quote assets in a canonical symbol.
const SymbolSeparator = "/"

// NormalizeSymbol maps a user-supplied ticker into the canonical
// BASE/QUOTE form. Tickers that already contain the separator are
// returned unchanged; otherwise underscores become the separator and
// the result is uppercased.
func NormalizeSymbol(raw string) string {
	if strings.Contains(raw, SymbolSeparator) {
		return raw
	}
	return strings.ToUpper(strings.ReplaceAll(raw, "_", SymbolSeparator))
}
