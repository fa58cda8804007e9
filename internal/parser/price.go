package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// priceNoiseRe strips everything that is not a digit or a separator:
// currency symbols, regular and non-breaking spaces, stray letters.
var priceNoiseRe = regexp.MustCompile(`[^\d,.]`)

// ParsePrice normalizes locale-formatted price text where the comma is the
// decimal separator ("€ 12,90" → 12.90). The second return value is false
// when the text carries no parseable number; that is an expected outcome
// for out-of-stock or malformed listings, never an error.
func ParsePrice(text string) (float64, bool) {
	clean := priceNoiseRe.ReplaceAllString(text, "")
	clean = strings.ReplaceAll(clean, ",", ".")
	if clean == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
