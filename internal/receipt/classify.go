package receipt

import "regexp"

// lineClass is the classifier's verdict on a raw receipt line. The
// item-versus-discount distinction is deferred to the price extractor,
// which knows whether the matched price pattern was a negative form.
type lineClass int

const (
	classNoise lineClass = iota
	classCandidate
)

var (
	// summaryRe matches the vocabulary of totals, subtotals and other
	// register noise that never represents a purchasable item.
	summaryRe = regexp.MustCompile(`(?i)total|subtotal|tax|sum|credit|register`)

	// discountPercentRe spots discount lines carrying a percentage,
	// which must survive classification even when they also mention
	// summary words.
	discountPercentRe = regexp.MustCompile(`(?i)discount.*\d+\s*%`)
)

// classifyLine decides whether a trimmed line can plausibly carry an
// item. Lines shorter than three characters are OCR debris.
func classifyLine(line string) lineClass {
	if len([]rune(line)) < 3 {
		return classNoise
	}
	if summaryRe.MatchString(line) && !discountPercentRe.MatchString(line) {
		return classNoise
	}
	return classCandidate
}
