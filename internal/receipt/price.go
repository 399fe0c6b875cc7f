package receipt

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ayumu/warikan/internal/money"
)

// priceMatch locates a price token within a line.
type priceMatch struct {
	value  money.Money // signed; negative for discount forms
	start  int         // byte offset of the matched token
	length int
}

// pricePattern is one tier of the extraction cascade. The negative
// forms are how discounts surface: any price they match comes out
// negative.
type pricePattern struct {
	re       *regexp.Regexp
	negative bool
}

// pricePatterns is the ordered cascade, highest priority first. The
// first pattern that matches wins; currency-marked tokens are trusted
// over bare numbers so item codes are not misread as prices. The order
// encodes real precedence and must not be collapsed into one pattern.
var pricePatterns = []pricePattern{
	{re: regexp.MustCompile(`[¥￥](\d[\d,]*)`)},           // ¥ directly followed by digits
	{re: regexp.MustCompile(`(\d+)\s*[¥￥]`)},             // digits followed by ¥
	{re: regexp.MustCompile(`[¥￥]\s*([\d,]+\.\d{2})`)},   // ¥ and a decimal amount (rare in JPY)
	{re: regexp.MustCompile(`-\s*[¥￥]\s*(\d[\d,]*)`), negative: true}, // negative currency amount
	{re: regexp.MustCompile(`-\s*(\d[\d,]*)`), negative: true},        // bare negative number
}

// extractPrice finds the most plausible currency-marked price token in
// a candidate line. A positive pattern whose match is immediately
// preceded by a minus sign is skipped so a lower-priority negative form
// can claim the whole token instead of yielding a bogus positive price.
func extractPrice(line string) (priceMatch, bool) {
	for _, p := range pricePatterns {
		loc := p.re.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		if !p.negative && precededByMinus(line, loc[0]) {
			continue
		}

		raw := strings.ReplaceAll(line[loc[2]:loc[3]], ",", "")
		value, err := money.Parse(raw)
		if err != nil {
			continue
		}
		if p.negative && !value.IsNegative() {
			value = value.Neg()
		}
		return priceMatch{
			value:  value,
			start:  loc[0],
			length: loc[1] - loc[0],
		}, true
	}
	return priceMatch{}, false
}

func precededByMinus(line string, start int) bool {
	for i := start - 1; i >= 0; i-- {
		switch line[i] {
		case ' ', '\t':
			continue
		case '-':
			return true
		default:
			return false
		}
	}
	return false
}

// bareTrailingRe finds an unmarked multi-digit number anchored at the
// end of a line, the usual layout when OCR drops the currency symbol.
var bareTrailingRe = regexp.MustCompile(`(\d[\d,]+)\s*$`)

// extractBarePrice accepts a trailing bare number as a probable price
// only when its value falls in (0, maxBare); anything outside that
// range is more likely a phone number, barcode or item code.
func extractBarePrice(line string, maxBare int64) (priceMatch, bool) {
	loc := bareTrailingRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return priceMatch{}, false
	}
	raw := strings.ReplaceAll(line[loc[2]:loc[3]], ",", "")
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 || value >= maxBare {
		return priceMatch{}, false
	}
	return priceMatch{
		value:  money.FromInt(value),
		start:  loc[2],
		length: loc[3] - loc[2],
	}, true
}
