package receipt

import (
	"regexp"
	"strings"

	"github.com/ayumu/warikan/internal/money"
	"github.com/ayumu/warikan/internal/scanning"
)

// DefaultMaxBarePrice bounds the value an unmarked trailing number may
// take and still be accepted as a price. The right bound depends on the
// currency and locale, so it is configurable.
const DefaultMaxBarePrice = 100000

// ParserConfig tunes the receipt parser.
type ParserConfig struct {
	MaxBarePrice int64

	// IDs stamps new items; defaults to random UUIDs.
	IDs IDGenerator
}

// Parser turns raw extracted receipt text, or a backend's pre-structured
// candidate list, into an ordered item list.
type Parser struct {
	maxBarePrice int64
	ids          IDGenerator
}

// NewParser creates a Parser.
func NewParser(cfg ParserConfig) *Parser {
	maxBare := cfg.MaxBarePrice
	if maxBare <= 0 {
		maxBare = DefaultMaxBarePrice
	}
	ids := cfg.IDs
	if ids == nil {
		ids = &defaultIDGenerator{}
	}
	return &Parser{maxBarePrice: maxBare, ids: ids}
}

var (
	digitRe = regexp.MustCompile(`\d`)

	// priceOnlyRe matches a line that is nothing but a price token,
	// used by the adjacency fallback.
	priceOnlyRe = regexp.MustCompile(`^[¥￥]?\s*\d+(\.\d{2})?$`)

	// discountLineRe is the bilingual discount vocabulary used by the
	// reconciliation pass.
	discountLineRe = regexp.MustCompile(`(?i)discount|\boff\b|割引|値引`)

	// bareMinusLineRe matches a line that is nothing but a negative
	// amount, the other shape deduction lines take. It must not match
	// hyphenated product names or dates.
	bareMinusLineRe = regexp.MustCompile(`^-\s*[¥￥]?\s*\d[\d,]*$`)
)

// Parse recovers items from raw receipt text. Per line: classify, then
// run the price pattern cascade, then resolve the name. Lines with no
// currency-marked price get one more chance via the trailing bare
// number heuristic. If the whole pass finds nothing, adjacent
// name-above-price line pairs are tried. Zero recovered items is a
// normal outcome, not an error.
func (p *Parser) Parse(text string) *ParseResult {
	lines := splitLines(text)

	items := make([]*Item, 0, len(lines))
	for i, line := range lines {
		if classifyLine(line) != classCandidate {
			continue
		}

		if m, ok := extractPrice(line); ok {
			name := resolveName(lines, i, m.start)
			if m.value.IsNegative() || discountWordRe.MatchString(name) {
				name = discountLabel(line)
			}
			if name == "" {
				continue
			}
			items = append(items, p.newItem(name, m.value))
			continue
		}

		if m, ok := extractBarePrice(line, p.maxBarePrice); ok {
			name := cleanupName(line[:m.start])
			if name == "" {
				continue
			}
			if discountWordRe.MatchString(name) {
				name = discountLabel(line)
			}
			items = append(items, p.newItem(name, m.value))
		}
	}

	if len(items) == 0 {
		items = p.pairAdjacent(lines)
	}

	return &ParseResult{Items: items, Text: text}
}

// ParseScan handles both shapes of the extraction contract: raw text
// only, or a best-effort structured candidate list plus raw text. The
// candidates are validated rather than trusted, and the raw text is
// re-scanned for discount lines the backend missed.
func (p *Parser) ParseScan(scan *scanning.ScanResult) *ParseResult {
	if scan == nil {
		return &ParseResult{}
	}
	if len(scan.Items) == 0 {
		return p.Parse(scan.Text)
	}

	items := make([]*Item, 0, len(scan.Items))
	for _, c := range scan.Items {
		name := cleanupName(c.Name)
		price := money.FromFloat(c.Price)
		if price.IsNegative() || discountWordRe.MatchString(name) {
			name = discountLabel(c.Name)
		}
		if name == "" {
			continue
		}
		items = append(items, p.newItem(name, price))
	}

	items = append(items, p.reconcileDiscounts(items, scan.Text)...)

	return &ParseResult{Items: items, Text: scan.Text}
}

// pairAdjacent scans adjacent line pairs for the layout where the item
// name sits alone on one line and its price alone on the next.
func (p *Parser) pairAdjacent(lines []string) []*Item {
	var items []*Item
	for i := 0; i+1 < len(lines); i++ {
		cur, next := lines[i], lines[i+1]
		if classifyLine(cur) != classCandidate || classifyLine(next) != classCandidate {
			continue
		}
		if digitRe.MatchString(cur) || !priceOnlyRe.MatchString(next) {
			continue
		}

		raw := strings.NewReplacer("¥", "", "￥", "", " ", "", "\t", "").Replace(next)
		value, err := money.Parse(raw)
		if err != nil || value.IsNegative() || value.IsZero() {
			continue
		}

		name := cleanupName(cur)
		if name == "" {
			continue
		}
		items = append(items, p.newItem(name, value))
	}
	return items
}

// reconcileDiscounts re-scans the raw text for discount lines when the
// structured candidate list carried none; vision backends routinely
// drop deduction lines. Recovered discounts are appended after all
// primary items, never interleaved, and existing items are untouched.
func (p *Parser) reconcileDiscounts(items []*Item, text string) []*Item {
	for _, item := range items {
		if item.IsDiscount {
			return nil
		}
	}

	var discounts []*Item
	for _, line := range splitLines(text) {
		if !discountLineRe.MatchString(line) && !bareMinusLineRe.MatchString(line) {
			continue
		}

		amount, ok := discountAmount(line, p.maxBarePrice)
		if !ok {
			continue
		}
		discounts = append(discounts, p.newItem(discountLabel(line), amount))
	}
	return discounts
}

// discountAmount extracts a deduction amount from a discount line,
// always returning it negative.
func discountAmount(line string, maxBare int64) (money.Money, bool) {
	if m, ok := extractPrice(line); ok {
		return m.value.Abs().Neg(), true
	}
	if m, ok := extractBarePrice(line, maxBare); ok {
		return m.value.Abs().Neg(), true
	}
	return money.Zero, false
}

func (p *Parser) newItem(name string, price money.Money) *Item {
	item := &Item{
		ID:    p.ids.Generate(),
		Name:  name,
		Price: price,
	}
	item.Refresh()
	return item
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
