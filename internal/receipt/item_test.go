package receipt

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ayumu/warikan/internal/money"
)

var _ = Describe("Item", func() {
	Describe("Refresh", func() {
		It("flags negative-priced items as discounts", func() {
			item := &Item{Name: "Coupon", Price: money.FromInt(-50)}
			item.Refresh()
			Expect(item.IsDiscount).To(BeTrue())
		})

		It("flags discount-named items regardless of price", func() {
			item := &Item{Name: "Member Discount", Price: money.FromInt(100)}
			item.Refresh()
			Expect(item.IsDiscount).To(BeTrue())
		})

		It("clears the flag when neither condition holds anymore", func() {
			item := &Item{Name: "Discount", Price: money.FromInt(-50)}
			item.Refresh()
			Expect(item.IsDiscount).To(BeTrue())

			item.Name = "Milk"
			item.Price = money.FromInt(250)
			item.Refresh()
			Expect(item.IsDiscount).To(BeFalse())
		})
	})

	Describe("Clone", func() {
		It("returns an independent copy", func() {
			item := &Item{ID: "a", Name: "Milk", Price: money.FromInt(250), Assignment: Mine}
			clone := item.Clone()
			clone.Name = "Eggs"
			clone.Assignment = Shared
			Expect(item.Name).To(Equal("Milk"))
			Expect(item.Assignment).To(Equal(Mine))
		})
	})

	Describe("JSON", func() {
		It("encodes the assignment as the boolean triplet", func() {
			item := &Item{ID: "a", Name: "Milk", Price: money.FromInt(250), Assignment: Shared}
			data, err := json.Marshal(item)
			Expect(err).NotTo(HaveOccurred())

			var raw map[string]any
			Expect(json.Unmarshal(data, &raw)).To(Succeed())
			Expect(raw["isMine"]).To(BeFalse())
			Expect(raw["isFriend"]).To(BeFalse())
			Expect(raw["isShared"]).To(BeTrue())
		})

		It("round-trips every assignment", func() {
			for _, a := range []Assignment{Unassigned, Mine, Friend, Shared} {
				item := &Item{ID: "a", Name: "Milk", Price: money.FromInt(250), Assignment: a}
				data, err := json.Marshal(item)
				Expect(err).NotTo(HaveOccurred())

				var back Item
				Expect(json.Unmarshal(data, &back)).To(Succeed())
				Expect(back.Assignment).To(Equal(a))
			}
		})

		It("collapses a corrupt multi-assigned snapshot to a single owner", func() {
			var item Item
			data := []byte(`{"id":"a","name":"Milk","price":250,"isMine":true,"isShared":true}`)
			Expect(json.Unmarshal(data, &item)).To(Succeed())
			Expect(item.Assignment).To(Equal(Mine))
		})

		It("restores the discount flag on decode", func() {
			var item Item
			data := []byte(`{"id":"a","name":"Coupon","price":-50,"isDiscount":false}`)
			Expect(json.Unmarshal(data, &item)).To(Succeed())
			Expect(item.IsDiscount).To(BeTrue())
		})

		It("keeps full price precision through a round trip", func() {
			item := &Item{ID: "a", Name: "Cheese", Price: money.FromFloat(12.95)}
			data, err := json.Marshal(item)
			Expect(err).NotTo(HaveOccurred())

			var back Item
			Expect(json.Unmarshal(data, &back)).To(Succeed())
			Expect(back.Price.Equal(item.Price)).To(BeTrue())
		})
	})
})

var _ = Describe("ParseAssignment", func() {
	It("parses the wire names", func() {
		for input, want := range map[string]Assignment{
			"mine":       Mine,
			"me":         Mine,
			"Friend":     Friend,
			"SHARED":     Shared,
			"unassigned": Unassigned,
			"none":       Unassigned,
			"":           Unassigned,
		} {
			got, ok := ParseAssignment(input)
			Expect(ok).To(BeTrue(), "input %q", input)
			Expect(got).To(Equal(want), "input %q", input)
		}
	})

	It("rejects unknown names", func() {
		_, ok := ParseAssignment("everyone")
		Expect(ok).To(BeFalse())
	})
})
