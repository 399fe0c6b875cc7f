package receipt

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayumu/warikan/internal/money"
	"github.com/ayumu/warikan/internal/scanning"
)

var (
	// ErrScanInProgress is returned when a process-image request
	// arrives while another extraction is still pending.
	ErrScanInProgress = errors.New("a scan is already in progress")

	// ErrNotConfigured is returned when no extraction backend has been
	// configured yet.
	ErrNotConfigured = errors.New("no scanning backend is configured")

	ErrInvalidTaxRate = errors.New("tax rate must be a non-negative number")
	ErrInvalidItem    = errors.New("item needs a name and a price")
	ErrItemNotFound   = errors.New("item not found")
	ErrNoItems        = errors.New("there are no items")
)

// IDGenerator generates unique IDs for items and receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Session owns one working item list plus its tax rate and currency,
// and mediates every user-facing operation on it. All state lives here
// rather than in package globals so multiple sessions and tests can run
// independently.
type Session struct {
	mu          sync.Mutex
	db          DB
	scanner     scanning.Scanner
	parser      *Parser
	idGenerator IDGenerator
	timeSource  TimeSource

	items    []*Item
	taxRate  float64
	currency money.Currency
	editMode bool
	scanning bool
}

// NewSession creates a Session with default ID generator and time
// source. The tax rate starts at 10% (Japanese consumption tax) and the
// currency at JPY.
func NewSession(db DB, scanner scanning.Scanner, parser *Parser) *Session {
	return NewSessionWithDeps(db, scanner, parser, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewSessionWithDeps creates a Session with custom dependencies for testing.
func NewSessionWithDeps(db DB, scanner scanning.Scanner, parser *Parser, idGen IDGenerator, timeSrc TimeSource) *Session {
	return &Session{
		db:          db,
		scanner:     scanner,
		parser:      parser,
		idGenerator: idGen,
		timeSource:  timeSrc,
		taxRate:     10,
		currency:    money.JPY,
	}
}

// SetScanner swaps the extraction backend, e.g. after new credentials
// are saved. The previous backend, if any, is returned so the caller
// can close it.
func (s *Session) SetScanner(scanner scanning.Scanner) scanning.Scanner {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.scanner
	s.scanner = scanner
	return old
}

// ProcessImage runs one extract-and-parse cycle: the image goes to the
// extraction backend, the result through the parser, and the parsed
// items replace the working set. At most one extraction may be in
// flight; concurrent requests fail fast with ErrScanInProgress. A
// failed extraction leaves the working set untouched.
func (s *Session) ProcessImage(imageData []byte, contentType string, language string) (*ParseResult, error) {
	s.mu.Lock()
	if s.scanner == nil {
		s.mu.Unlock()
		return nil, ErrNotConfigured
	}
	if s.scanning {
		s.mu.Unlock()
		return nil, ErrScanInProgress
	}
	s.scanning = true
	s.mu.Unlock()

	// The extraction call runs outside the lock; it can take a while.
	scan, err := s.scanner.ScanReceipt(imageData, contentType, language)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanning = false

	if err != nil {
		slog.Error("Failed to scan receipt",
			"content_type", contentType,
			"image_size", len(imageData),
			"error", err,
		)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	result := s.parser.ParseScan(scan)
	s.items = result.Items

	return &ParseResult{Items: cloneItems(s.items), Text: result.Text}, nil
}

// Items returns a snapshot of the working item list in receipt order.
func (s *Session) Items() []*Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// AddItem appends a manually entered item.
func (s *Session) AddItem(name string, price money.Money) (*Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidItem
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := &Item{
		ID:    s.idGenerator.Generate(),
		Name:  name,
		Price: price,
	}
	item.Refresh()
	s.items = append(s.items, item)
	return item.Clone(), nil
}

// ItemUpdate carries the fields an edit may change; nil fields are left
// alone.
type ItemUpdate struct {
	Name       *string
	Price      *money.Money
	Assignment *Assignment
}

// UpdateItem edits one item. The discount flag is recomputed after any
// name or price change.
func (s *Session) UpdateItem(id string, update ItemUpdate) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findItem(id)
	if item == nil {
		return nil, ErrItemNotFound
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, ErrInvalidItem
		}
		item.Name = name
	}
	if update.Price != nil {
		item.Price = *update.Price
	}
	if update.Assignment != nil {
		item.Assignment = *update.Assignment
	}
	item.Refresh()
	return item.Clone(), nil
}

// ClearItems discards the working item list and reports how many items
// were dropped.
func (s *Session) ClearItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	s.items = nil
	return n
}

// ApplyTaxRate sets the tax rate percentage used by the totals engine.
func (s *Session) ApplyTaxRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return ErrInvalidTaxRate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taxRate = rate
	return nil
}

// TaxRate returns the current tax rate percentage.
func (s *Session) TaxRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taxRate
}

// SetCurrency sets the display currency.
func (s *Session) SetCurrency(c money.Currency) error {
	if strings.TrimSpace(string(c)) == "" {
		return errors.New("currency is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currency = c
	return nil
}

// Currency returns the display currency.
func (s *Session) Currency() money.Currency {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currency
}

// ToggleEditMode flips the edit-mode flag and returns the new state.
func (s *Session) ToggleEditMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editMode = !s.editMode
	return s.editMode
}

// Totals recomputes the per-party breakdown from the current working
// set. Recomputation is always full; nothing is cached.
func (s *Session) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeTotals(s.items, s.taxRate)
}

// SaveReceipt snapshots the working set into a named Receipt, persists
// it, and clears the working set.
func (s *Session) SaveReceipt(name string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return nil, ErrNoItems
	}

	now := s.timeSource.Now()
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Shopping " + now.Format("2006-01-02")
	}

	totals := ComputeTotals(s.items, s.taxRate)
	receipt := &Receipt{
		ID:             s.idGenerator.Generate(),
		Name:           name,
		Date:           now,
		Items:          cloneItems(s.items),
		TaxRate:        s.taxRate,
		Currency:       s.currency,
		MySubtotal:     totals.MySubtotal,
		FriendSubtotal: totals.FriendSubtotal,
		MyTax:          totals.MyTax,
		FriendTax:      totals.FriendTax,
		MyTotal:        totals.MyTotal,
		FriendTotal:    totals.FriendTotal,
		ReceiptTotal:   totals.ReceiptTotal,
	}

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}

	s.items = nil
	return receipt, nil
}

// GetReceipt fetches a saved receipt without touching the working set.
func (s *Session) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// LoadReceipt replaces the working set with a saved receipt's items and
// restores its tax rate and currency.
func (s *Session) LoadReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = cloneItems(receipt.Items)
	s.taxRate = receipt.TaxRate
	if receipt.Currency != "" {
		s.currency = receipt.Currency
	}
	return receipt, nil
}

// History returns all saved receipts, newest first.
func (s *Session) History() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].Date.After(receipts[j].Date)
	})
	return receipts, nil
}

// Settings loads the persisted scanner settings.
func (s *Session) Settings() (*Settings, error) {
	settings, err := s.db.GetSettings()
	if err != nil {
		return nil, fmt.Errorf("getting settings: %w", err)
	}
	return settings, nil
}

// SaveSettings persists scanner settings.
func (s *Session) SaveSettings(settings *Settings) error {
	if err := s.db.SaveSettings(settings); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

func (s *Session) findItem(id string) *Item {
	for _, item := range s.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

func cloneItems(items []*Item) []*Item {
	cloned := make([]*Item, len(items))
	for i, item := range items {
		cloned[i] = item.Clone()
	}
	return cloned
}
