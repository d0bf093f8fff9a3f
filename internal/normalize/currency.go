package normalize

import (
	"regexp"
	"strings"
)

type currencyMarker struct {
	pattern *regexp.Regexp
	code    string
}

// currencyMarkers are tried in order; the first hit wins.
var currencyMarkers = []currencyMarker{
	{regexp.MustCompile(`₹`), "INR"},
	{regexp.MustCompile(`(?i)\brs\b`), "INR"},
	{regexp.MustCompile(`(?i)\binr(\b|\d)`), "INR"},
	{regexp.MustCompile(`\$`), "USD"},
	{regexp.MustCompile(`(?i)\busd(\b|\d)`), "USD"},
	{regexp.MustCompile(`€`), "EUR"},
	{regexp.MustCompile(`(?i)\beur(\b|\d)`), "EUR"},
	{regexp.MustCompile(`£`), "GBP"},
	{regexp.MustCompile(`(?i)\bgbp(\b|\d)`), "GBP"},
}

// detectCurrency returns the currency code and the rule that produced it.
func detectCurrency(hint, text, fallback string) (string, string) {
	if h := strings.ToUpper(strings.TrimSpace(hint)); h != "" {
		return h, "currency:hint"
	}
	for _, m := range currencyMarkers {
		if m.pattern.MatchString(text) {
			return m.code, "currency:marker"
		}
	}
	return fallback, "currency:default"
}
