package export

import (
	"bytes"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"billbot/internal/bill"
)

func TestExport(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Export Suite")
}

var _ = Describe("BuildWorkbook", func() {
	var (
		records []*bill.Record
		data    []byte
		summary *Summary
		err     error
	)

	dec := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	BeforeEach(func() {
		records = []*bill.Record{
			{
				ID:           "bill-1",
				Owner:        "owner-1",
				ShopName:     "Corner Market",
				ShopCategory: "grocery",
				Total:        dec("42.50"),
				Currency:     "USD",
				Tax:          dec("3.40"),
				Description:  "weekly shop",
				Status:       bill.StatusProcessed,
				CreatedAt:    time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
				Items: []bill.LineItem{
					{Name: "Milk", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("1.20")},
					{Name: "Bread", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("2.10")},
				},
			},
			{
				ID:           "bill-2",
				Owner:        "owner-1",
				ShopName:     "Gas Station",
				ShopCategory: "fuel",
				Total:        dec("60.00"),
				Currency:     "USD",
				Status:       bill.StatusProcessed,
				CreatedAt:    time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
			},
		}
	})

	JustBeforeEach(func() {
		data, summary, err = BuildWorkbook(records)
	})

	open := func() *excelize.File {
		f, openErr := excelize.OpenReader(bytes.NewReader(data))
		Expect(openErr).NotTo(HaveOccurred())
		return f
	}

	When("bills are present", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("creates the three sheets", func() {
			f := open()
			defer f.Close()
			Expect(f.GetSheetList()).To(ConsistOf("Bills", "Line Items", "Summary"))
		})

		It("writes one row per bill in input order", func() {
			f := open()
			defer f.Close()
			rows, rowsErr := f.GetRows("Bills")
			Expect(rowsErr).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[1][1]).To(Equal("Corner Market"))
			Expect(rows[2][1]).To(Equal("Gas Station"))
		})

		It("writes one row per line item", func() {
			f := open()
			defer f.Close()
			rows, rowsErr := f.GetRows("Line Items")
			Expect(rowsErr).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[1][2]).To(Equal("Milk"))
			Expect(rows[2][2]).To(Equal("Bread"))
		})

		It("repeats the parent shop on item rows", func() {
			f := open()
			defer f.Close()
			rows, _ := f.GetRows("Line Items")
			Expect(rows[1][1]).To(Equal("Corner Market"))
			Expect(rows[2][1]).To(Equal("Corner Market"))
		})

		It("sums totals into the summary", func() {
			Expect(summary.BillCount).To(Equal(2))
			Expect(summary.TotalAmount.String()).To(Equal("102.5"))
			Expect(summary.TotalTax.String()).To(Equal("3.4"))
		})

		It("counts bills per category", func() {
			Expect(summary.ByCategory).To(HaveKeyWithValue("grocery", 1))
			Expect(summary.ByCategory).To(HaveKeyWithValue("fuel", 1))
		})

		It("is deterministic for the same input", func() {
			again, _, againErr := BuildWorkbook(records)
			Expect(againErr).NotTo(HaveOccurred())
			Expect(again).To(Equal(data))
		})
	})

	When("a bill has no parsed amounts", func() {
		BeforeEach(func() {
			records = []*bill.Record{{
				ID:        "bill-1",
				Owner:     "owner-1",
				Status:    bill.StatusProcessed,
				CreatedAt: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			}}
		})

		It("fills missing text fields with N/A", func() {
			f := open()
			defer f.Close()
			rows, _ := f.GetRows("Bills")
			Expect(rows[1][1]).To(Equal("N/A"))
		})

		It("counts it under the Unknown category", func() {
			Expect(summary.ByCategory).To(HaveKeyWithValue("Unknown", 1))
		})
	})

	When("no bills exist", func() {
		BeforeEach(func() {
			records = nil
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("still writes the headers", func() {
			f := open()
			defer f.Close()
			rows, rowsErr := f.GetRows("Bills")
			Expect(rowsErr).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0][0]).To(Equal("Date"))
		})

		It("zeroes the summary", func() {
			Expect(summary.BillCount).To(BeZero())
			Expect(summary.TotalAmount.IsZero()).To(BeTrue())
		})
	})
})
