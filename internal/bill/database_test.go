package bill

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	newRecord := func(id, owner string, createdAt time.Time) *Record {
		total := decimal.RequireFromString("12.34")
		return &Record{
			ID:           id,
			Owner:        owner,
			ShopName:     "Corner Market",
			ShopCategory: "grocery",
			Total:        &total,
			Currency:     "USD",
			Status:       StatusProcessed,
			CreatedAt:    createdAt,
		}
	}

	Describe("CreateBill", func() {
		var (
			record *Record
			err    error
		)

		BeforeEach(func() {
			record = newRecord("bill-1", "owner-1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
		})

		JustBeforeEach(func() {
			err = db.CreateBill(record)
		})

		When("the id is new", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should persist every field", func() {
				saved, getErr := db.GetBill("owner-1", "bill-1")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.ShopName).To(Equal("Corner Market"))
				Expect(saved.Total.String()).To(Equal("12.34"))
				Expect(saved.Status).To(Equal(StatusProcessed))
				Expect(saved.CreatedAt.Equal(record.CreatedAt)).To(BeTrue())
			})
		})

		When("the id already exists", func() {
			BeforeEach(func() {
				existing := newRecord("bill-1", "owner-1", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
				Expect(db.CreateBill(existing)).NotTo(HaveOccurred())
			})

			It("returns a conflict", func() {
				Expect(IsConflict(err)).To(BeTrue())
			})
		})
	})

	Describe("GetBill", func() {
		BeforeEach(func() {
			Expect(db.CreateBill(newRecord("bill-1", "owner-1", time.Now().UTC()))).NotTo(HaveOccurred())
		})

		When("the bill belongs to the owner", func() {
			It("returns it", func() {
				saved, err := db.GetBill("owner-1", "bill-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(saved.ID).To(Equal("bill-1"))
			})
		})

		When("another owner asks for the same id", func() {
			It("returns not found", func() {
				_, err := db.GetBill("owner-2", "bill-1")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})

		When("the bill does not exist", func() {
			It("returns not found", func() {
				_, err := db.GetBill("owner-1", "nonexistent")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})

	Describe("ListByOwnerAndRange", func() {
		var (
			start, end *time.Time
			records    []*Record
			err        error
		)

		day := func(d int) time.Time {
			return time.Date(2026, 3, d, 12, 0, 0, 0, time.UTC)
		}

		BeforeEach(func() {
			start, end = nil, nil
			Expect(db.CreateBill(newRecord("bill-a", "owner-1", day(1)))).NotTo(HaveOccurred())
			Expect(db.CreateBill(newRecord("bill-b", "owner-1", day(10)))).NotTo(HaveOccurred())
			Expect(db.CreateBill(newRecord("bill-c", "owner-1", day(20)))).NotTo(HaveOccurred())
			Expect(db.CreateBill(newRecord("bill-x", "owner-2", day(10)))).NotTo(HaveOccurred())
		})

		JustBeforeEach(func() {
			records, err = db.ListByOwnerAndRange("owner-1", start, end)
		})

		When("no bounds are given", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("returns only the owner's bills", func() {
				Expect(records).To(HaveLen(3))
			})

			It("orders newest first", func() {
				Expect(records[0].ID).To(Equal("bill-c"))
				Expect(records[1].ID).To(Equal("bill-b"))
				Expect(records[2].ID).To(Equal("bill-a"))
			})
		})

		When("a range is given", func() {
			BeforeEach(func() {
				s := day(5)
				e := day(15)
				start, end = &s, &e
			})

			It("returns only bills inside the range", func() {
				Expect(records).To(HaveLen(1))
				Expect(records[0].ID).To(Equal("bill-b"))
			})
		})

		When("the range is inclusive at both ends", func() {
			BeforeEach(func() {
				s := day(1)
				e := day(20)
				start, end = &s, &e
			})

			It("includes bills on the boundary", func() {
				Expect(records).To(HaveLen(3))
			})
		})

		When("the owner has no bills", func() {
			It("returns an empty list", func() {
				other, listErr := db.ListByOwnerAndRange("owner-3", nil, nil)
				Expect(listErr).NotTo(HaveOccurred())
				Expect(other).To(BeEmpty())
			})
		})
	})

	Describe("DeleteBill", func() {
		BeforeEach(func() {
			Expect(db.CreateBill(newRecord("bill-1", "owner-1", time.Now().UTC()))).NotTo(HaveOccurred())
		})

		When("the bill exists", func() {
			It("removes it", func() {
				Expect(db.DeleteBill("owner-1", "bill-1")).NotTo(HaveOccurred())
				_, err := db.GetBill("owner-1", "bill-1")
				Expect(err).To(MatchError(ErrNotFound))
			})

			It("frees the id for reuse", func() {
				Expect(db.DeleteBill("owner-1", "bill-1")).NotTo(HaveOccurred())
				Expect(db.CreateBill(newRecord("bill-1", "owner-1", time.Now().UTC()))).NotTo(HaveOccurred())
			})
		})

		When("another owner tries to delete it", func() {
			It("returns not found and keeps the bill", func() {
				Expect(db.DeleteBill("owner-2", "bill-1")).To(MatchError(ErrNotFound))
				_, err := db.GetBill("owner-1", "bill-1")
				Expect(err).NotTo(HaveOccurred())
			})
		})

		When("the bill does not exist", func() {
			It("returns not found", func() {
				Expect(db.DeleteBill("owner-1", "nonexistent")).To(MatchError(ErrNotFound))
			})
		})
	})

	Describe("Ping", func() {
		It("should not return an error", func() {
			Expect(db.Ping()).NotTo(HaveOccurred())
		})
	})
})
