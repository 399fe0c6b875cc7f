package receipt

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ayumu/warikan/internal/money"
)

func testItem(name string, price int64, a Assignment) *Item {
	item := &Item{
		ID:         name,
		Name:       name,
		Price:      money.FromInt(price),
		Assignment: a,
	}
	item.Refresh()
	return item
}

var _ = Describe("ComputeTotals", func() {
	It("splits a mixed receipt at 10% tax", func() {
		items := []*Item{
			testItem("Groceries", 1000, Mine),
			testItem("Snacks", 500, Shared),
			testItem("Discount", -100, Mine),
		}

		t := ComputeTotals(items, 10)
		Expect(t.MySubtotal.Equal(money.FromInt(1150))).To(BeTrue())
		Expect(t.FriendSubtotal.Equal(money.FromInt(250))).To(BeTrue())
		Expect(t.MyTax.Equal(money.FromInt(115))).To(BeTrue())
		Expect(t.FriendTax.Equal(money.FromInt(25))).To(BeTrue())
		Expect(t.MyTotal.Equal(money.FromInt(1265))).To(BeTrue())
		Expect(t.FriendTotal.Equal(money.FromInt(275))).To(BeTrue())
		Expect(t.ReceiptTotal.Equal(money.FromInt(1540))).To(BeTrue())
	})

	It("keeps the two party totals summing to the receipt total", func() {
		items := []*Item{
			testItem("A", 333, Mine),
			testItem("B", 777, Friend),
			testItem("C", 501, Shared),
			testItem("Discount", -49, Shared),
		}

		t := ComputeTotals(items, 8)
		Expect(t.MyTotal.Add(t.FriendTotal).Equal(t.ReceiptTotal)).To(BeTrue())
	})

	It("splits shared items exactly, even at odd prices", func() {
		items := []*Item{testItem("Dinner", 501, Shared)}

		t := ComputeTotals(items, 0)
		Expect(t.MySubtotal.Add(t.FriendSubtotal).Equal(money.FromInt(501))).To(BeTrue())
		Expect(t.MySubtotal.Equal(t.FriendSubtotal)).To(BeTrue())
	})

	It("excludes unassigned items from every figure", func() {
		items := []*Item{
			testItem("Mine", 100, Mine),
			testItem("Pending", 9999, Unassigned),
		}

		t := ComputeTotals(items, 10)
		Expect(t.MySubtotal.Equal(money.FromInt(100))).To(BeTrue())
		Expect(t.FriendSubtotal.IsZero()).To(BeTrue())
		Expect(t.ReceiptTotal.Equal(money.FromInt(110))).To(BeTrue())
	})

	It("lets discounts push a subtotal negative", func() {
		items := []*Item{
			testItem("Coupon", -300, Friend),
			testItem("Tea", 100, Friend),
		}

		t := ComputeTotals(items, 10)
		Expect(t.FriendSubtotal.Equal(money.FromInt(-200))).To(BeTrue())
		Expect(t.FriendTotal.Equal(money.FromInt(-220))).To(BeTrue())
	})

	It("returns all zeros for an empty item list", func() {
		t := ComputeTotals(nil, 10)
		Expect(t.ReceiptTotal.IsZero()).To(BeTrue())
		Expect(t.MySubtotal.IsZero()).To(BeTrue())
		Expect(t.FriendSubtotal.IsZero()).To(BeTrue())
	})

	It("applies a zero tax rate", func() {
		items := []*Item{testItem("Book", 1200, Mine)}

		t := ComputeTotals(items, 0)
		Expect(t.MyTax.IsZero()).To(BeTrue())
		Expect(t.MyTotal.Equal(money.FromInt(1200))).To(BeTrue())
	})
})
