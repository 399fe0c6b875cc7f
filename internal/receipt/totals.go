package receipt

import "github.com/ayumu/warikan/internal/money"

// Totals is the per-party breakdown for a working item list. Amounts
// carry full precision; display rounding is the caller's business.
type Totals struct {
	MySubtotal     money.Money `json:"mySubtotal"`
	FriendSubtotal money.Money `json:"friendSubtotal"`
	MyTax          money.Money `json:"myTax"`
	FriendTax      money.Money `json:"friendTax"`
	MyTotal        money.Money `json:"myTotal"`
	FriendTotal    money.Money `json:"friendTotal"`
	ReceiptTotal   money.Money `json:"receiptTotal"`
}

// ComputeTotals recomputes the full breakdown from scratch. Shared
// items contribute exactly half their price to each party, so the two
// contributions always sum back to the item price. Unassigned items
// count toward neither party: totals are only meaningful once the user
// has assigned everything.
func ComputeTotals(items []*Item, taxRatePercent float64) Totals {
	var t Totals
	for _, item := range items {
		switch item.Assignment {
		case Mine:
			t.MySubtotal = t.MySubtotal.Add(item.Price)
		case Friend:
			t.FriendSubtotal = t.FriendSubtotal.Add(item.Price)
		case Shared:
			half := item.Price.Half()
			t.MySubtotal = t.MySubtotal.Add(half)
			t.FriendSubtotal = t.FriendSubtotal.Add(half)
		}
	}

	t.MyTax = t.MySubtotal.Percent(taxRatePercent)
	t.FriendTax = t.FriendSubtotal.Percent(taxRatePercent)
	t.MyTotal = t.MySubtotal.Add(t.MyTax)
	t.FriendTotal = t.FriendSubtotal.Add(t.FriendTax)
	t.ReceiptTotal = t.MyTotal.Add(t.FriendTotal)
	return t
}
