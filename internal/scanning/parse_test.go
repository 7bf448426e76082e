package scanning

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func TestScanning(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Scanning Suite")
}

var _ = Describe("decodeDraft", func() {
	var (
		jsonInput string
		draft     *Draft
		err       error
	)

	JustBeforeEach(func() {
		draft, err = decodeDraft(jsonInput, "USD")
	})

	When("parsing a complete bill", func() {
		BeforeEach(func() {
			jsonInput = `{
				"shop_name": "Starbucks",
				"shop_type": "restaurant",
				"location": "5th Avenue, New York",
				"total_price": 15.50,
				"currency": "usd",
				"tax_amount": 1.25,
				"menu": [
					{"item": "Latte", "quantity": 2, "price": 5.50},
					{"item": "Croissant", "quantity": 1, "price": 4.50}
				]
			}`
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should parse the shop fields", func() {
			Expect(draft.ShopName).To(Equal("Starbucks"))
			Expect(draft.ShopCategory).To(Equal("restaurant"))
			Expect(draft.Location).To(Equal("5th Avenue, New York"))
		})

		It("should parse the amounts", func() {
			Expect(draft.Total.Equal(decimal.RequireFromString("15.50"))).To(BeTrue())
			Expect(draft.Tax.Equal(decimal.RequireFromString("1.25"))).To(BeTrue())
		})

		It("should upper-case the currency", func() {
			Expect(draft.Currency).To(Equal("USD"))
		})

		It("should parse the line items", func() {
			Expect(draft.Items).To(HaveLen(2))
			Expect(draft.Items[0].Name).To(Equal("Latte"))
			Expect(draft.Items[0].Quantity.Equal(decimal.NewFromInt(2))).To(BeTrue())
			Expect(draft.Items[1].UnitPrice.Equal(decimal.RequireFromString("4.50"))).To(BeTrue())
		})
	})

	When("the currency is omitted", func() {
		BeforeEach(func() {
			jsonInput = `{"shop_name": "BigBazaar", "total_price": 450.50}`
		})

		It("should fall back to the configured default", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(draft.Currency).To(Equal("USD"))
		})
	})

	When("the response is wrapped in markdown code blocks", func() {
		BeforeEach(func() {
			jsonInput = "```json\n{\"shop_name\": \"Walmart\", \"total_price\": 42.75}\n```"
		})

		It("should still decode the draft", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(draft.ShopName).To(Equal("Walmart"))
		})
	})

	When("prices arrive as quoted numbers", func() {
		BeforeEach(func() {
			jsonInput = `{"shop_name": "Pharmacy", "total_price": "99.90"}`
		})

		It("should decode them anyway", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(draft.Total.Equal(decimal.RequireFromString("99.90"))).To(BeTrue())
		})
	})

	When("a line item has no name", func() {
		BeforeEach(func() {
			jsonInput = `{"shop_name": "Cafe", "total_price": 10, "menu": [{"item": "", "price": 10}]}`
		})

		It("should drop the item", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(draft.Items).To(BeEmpty())
		})
	})

	When("a line item has no quantity", func() {
		BeforeEach(func() {
			jsonInput = `{"shop_name": "Cafe", "total_price": 10, "menu": [{"item": "Tea", "price": 10}]}`
		})

		It("should default the quantity to one", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(draft.Items[0].Quantity.Equal(decimal.NewFromInt(1))).To(BeTrue())
		})
	})

	When("the model reports the bill as unreadable", func() {
		BeforeEach(func() {
			jsonInput = `{"unreadable": true}`
		})

		It("should return an unreadable parse error", func() {
			Expect(draft).To(BeNil())
			kind, ok := KindOf(err)
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(ErrUnreadable))
		})
	})

	When("neither shop name nor total is present", func() {
		BeforeEach(func() {
			jsonInput = `{"location": "somewhere"}`
		})

		It("should return an unreadable parse error", func() {
			kind, ok := KindOf(err)
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(ErrUnreadable))
		})
	})

	When("the response contains no JSON object", func() {
		BeforeEach(func() {
			jsonInput = "I could not process this image"
		})

		It("should return an invalid-response parse error", func() {
			kind, ok := KindOf(err)
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(ErrInvalidResponse))
		})
	})

	When("the JSON shape does not match", func() {
		BeforeEach(func() {
			jsonInput = `{"shop_name": ["not", "a", "string"], "total_price": 10}`
		})

		It("should return an invalid-response parse error", func() {
			kind, ok := KindOf(err)
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(ErrInvalidResponse))
		})
	})

	When("the total is negative", func() {
		BeforeEach(func() {
			jsonInput = `{"shop_name": "Shop", "total_price": -5.00}`
		})

		It("should return an invalid-response parse error", func() {
			kind, ok := KindOf(err)
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(ErrInvalidResponse))
		})
	})
})
