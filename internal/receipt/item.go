package receipt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ayumu/warikan/internal/money"
)

// Assignment says whose bill an item lands on. Exactly one value holds
// at a time; shared items are split evenly between the two parties.
type Assignment int

const (
	Unassigned Assignment = iota
	Mine
	Friend
	Shared
)

// ParseAssignment parses the wire names used by the API.
func ParseAssignment(s string) (Assignment, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unassigned", "none":
		return Unassigned, true
	case "mine", "me", "my":
		return Mine, true
	case "friend":
		return Friend, true
	case "shared":
		return Shared, true
	}
	return Unassigned, false
}

func (a Assignment) String() string {
	switch a {
	case Mine:
		return "mine"
	case Friend:
		return "friend"
	case Shared:
		return "shared"
	default:
		return "unassigned"
	}
}

// Item is one line of a receipt: a purchase, or a discount represented
// as a negative-priced pseudo-item.
type Item struct {
	ID         string
	Name       string
	Price      money.Money
	IsDiscount bool
	Assignment Assignment
}

// Refresh recomputes the discount flag. Must be called after any name
// or price change to keep the invariant
// IsDiscount == (price < 0 || name contains "discount").
func (i *Item) Refresh() {
	i.IsDiscount = i.Price.IsNegative() ||
		strings.Contains(strings.ToLower(i.Name), "discount")
}

// Clone returns an independent copy of the item.
func (i *Item) Clone() *Item {
	c := *i
	return &c
}

// itemJSON is the persisted wire form. The assignment travels as the
// original boolean triplet so saved receipts stay readable by older
// snapshots.
type itemJSON struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Price      money.Money `json:"price"`
	IsDiscount bool        `json:"isDiscount"`
	IsMine     bool        `json:"isMine"`
	IsFriend   bool        `json:"isFriend"`
	IsShared   bool        `json:"isShared"`
}

func (i *Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemJSON{
		ID:         i.ID,
		Name:       i.Name,
		Price:      i.Price,
		IsDiscount: i.IsDiscount,
		IsMine:     i.Assignment == Mine,
		IsFriend:   i.Assignment == Friend,
		IsShared:   i.Assignment == Shared,
	})
}

func (i *Item) UnmarshalJSON(data []byte) error {
	var w itemJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	i.ID = w.ID
	i.Name = w.Name
	i.Price = w.Price
	// Collapse the triplet; a corrupt multi-assigned snapshot resolves
	// in mine > friend > shared order.
	switch {
	case w.IsMine:
		i.Assignment = Mine
	case w.IsFriend:
		i.Assignment = Friend
	case w.IsShared:
		i.Assignment = Shared
	default:
		i.Assignment = Unassigned
	}
	i.Refresh()
	return nil
}

// Receipt is an immutable saved snapshot of a working item list together
// with the totals computed at save time.
type Receipt struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Date           time.Time      `json:"date"`
	Items          []*Item        `json:"items"`
	TaxRate        float64        `json:"taxRate"`
	Currency       money.Currency `json:"currency"`
	MySubtotal     money.Money    `json:"mySubtotal"`
	FriendSubtotal money.Money    `json:"friendSubtotal"`
	MyTax          money.Money    `json:"myTax"`
	FriendTax      money.Money    `json:"friendTax"`
	MyTotal        money.Money    `json:"myTotal"`
	FriendTotal    money.Money    `json:"friendTotal"`
	ReceiptTotal   money.Money    `json:"receiptTotal"`
}

// ParseResult is what the receipt parser produces: the recovered items
// in receipt order, plus the raw extracted text kept for diagnostics.
type ParseResult struct {
	Items []*Item `json:"items"`
	Text  string  `json:"text"`
}
