package receipt

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// itemCodeRe strips a leading numeric product code.
	itemCodeRe = regexp.MustCompile(`^\d+\s+`)

	// boilerplateRe strips scan markers and register prefixes commonly
	// printed before item names on Japanese receipts; "light" and 軽 are
	// the reduced-tax-rate markers.
	boilerplateRe = regexp.MustCompile(`(?i)^(light|scan|register|no\.|軽|レジ|№)\s*`)

	spacesRe = regexp.MustCompile(`\s+`)

	percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

	discountWordRe = regexp.MustCompile(`(?i)discount`)
)

// resolveName recovers the raw name for the line at idx given the byte
// offset where the price token starts. When the price opens the line,
// the name usually sits on the line above (price-on-its-own-line
// layouts), so the previous line is taken whole.
func resolveName(lines []string, idx int, priceStart int) string {
	if priceStart > 0 {
		return cleanupName(lines[idx][:priceStart])
	}
	if idx > 0 {
		return cleanupName(lines[idx-1])
	}
	return ""
}

// cleanupName runs the name cleanup pipeline: drop a leading item code,
// drop receipt boilerplate prefixes, collapse whitespace, trim.
func cleanupName(name string) string {
	cleaned := strings.TrimSpace(name)
	cleaned = itemCodeRe.ReplaceAllString(cleaned, "")
	cleaned = boilerplateRe.ReplaceAllString(cleaned, "")
	cleaned = spacesRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// discountLabel is the canonical name for discount pseudo-items,
// suffixed with the percentage when the source line carries one.
func discountLabel(line string) string {
	if m := percentRe.FindStringSubmatch(line); m != nil {
		return fmt.Sprintf("Discount (%s%%)", m[1])
	}
	return "Discount"
}
