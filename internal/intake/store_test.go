package intake_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"billbot/internal/intake"
	"billbot/internal/scanning"
)

var _ = Describe("Store", func() {
	var (
		clock time.Time
		store *intake.Store
	)

	const owner = "owner-1"

	BeforeEach(func() {
		clock = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
		store = intake.NewStoreWithClock(15*time.Minute, func() time.Time { return clock })
	})

	Describe("Create and Get", func() {
		It("registers the intake in the parsing state", func() {
			store.Create(owner, "id-1", "owner-1/bill.jpg")
			p, ok := store.Get(owner, "id-1")
			Expect(ok).To(BeTrue())
			Expect(p.State).To(Equal(intake.StateParsing))
			Expect(p.ImagePath).To(Equal("owner-1/bill.jpg"))
		})

		It("scopes intakes per owner", func() {
			store.Create(owner, "id-1", "a.jpg")
			_, ok := store.Get("owner-2", "id-1")
			Expect(ok).To(BeFalse())
		})

		It("hands out copies, not the stored entry", func() {
			store.Create(owner, "id-1", "a.jpg")
			p, _ := store.Get(owner, "id-1")
			p.State = intake.StateFinalizing
			again, _ := store.Get(owner, "id-1")
			Expect(again.State).To(Equal(intake.StateParsing))
		})
	})

	Describe("Present", func() {
		BeforeEach(func() {
			store.Create(owner, "id-1", "a.jpg")
		})

		It("attaches the draft and moves to awaiting choice", func() {
			ok := store.Present(owner, "id-1", &scanning.Draft{ShopName: "Corner Market"})
			Expect(ok).To(BeTrue())
			p, _ := store.Get(owner, "id-1")
			Expect(p.State).To(Equal(intake.StateAwaitingChoice))
			Expect(p.Draft.ShopName).To(Equal("Corner Market"))
		})

		It("fails once the intake expired", func() {
			clock = clock.Add(time.Hour)
			Expect(store.Present(owner, "id-1", &scanning.Draft{})).To(BeFalse())
		})
	})

	Describe("Claim", func() {
		BeforeEach(func() {
			store.Create(owner, "id-1", "a.jpg")
			store.Present(owner, "id-1", &scanning.Draft{})
		})

		It("transitions the intake and returns the pre-claim state", func() {
			claimed, ok := store.Claim(owner, []intake.State{intake.StateAwaitingChoice}, intake.StateFinalizing)
			Expect(ok).To(BeTrue())
			Expect(claimed.State).To(Equal(intake.StateAwaitingChoice))

			p, _ := store.Get(owner, "id-1")
			Expect(p.State).To(Equal(intake.StateFinalizing))
		})

		It("refuses states outside the from set", func() {
			_, ok := store.Claim(owner, []intake.State{intake.StateAwaitingText}, intake.StateFinalizing)
			Expect(ok).To(BeFalse())
		})

		It("is exclusive: a second claim finds nothing", func() {
			_, ok := store.Claim(owner, []intake.State{intake.StateAwaitingChoice}, intake.StateFinalizing)
			Expect(ok).To(BeTrue())
			_, ok = store.Claim(owner, []intake.State{intake.StateAwaitingChoice}, intake.StateFinalizing)
			Expect(ok).To(BeFalse())
		})

		It("picks the most recently created matching intake", func() {
			clock = clock.Add(time.Minute)
			store.Create(owner, "id-2", "b.jpg")
			store.Present(owner, "id-2", &scanning.Draft{})

			claimed, ok := store.Claim(owner, []intake.State{intake.StateAwaitingChoice}, intake.StateFinalizing)
			Expect(ok).To(BeTrue())
			Expect(claimed.CorrelationID).To(Equal("id-2"))
		})

		It("skips expired intakes", func() {
			clock = clock.Add(time.Hour)
			_, ok := store.Claim(owner, []intake.State{intake.StateAwaitingChoice}, intake.StateFinalizing)
			Expect(ok).To(BeFalse())
		})

		It("never crosses owners", func() {
			_, ok := store.Claim("owner-2", []intake.State{intake.StateAwaitingChoice}, intake.StateFinalizing)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Sweep", func() {
		It("removes only expired intakes", func() {
			store.Create(owner, "old", "a.jpg")
			clock = clock.Add(10 * time.Minute)
			store.Create(owner, "new", "b.jpg")
			clock = clock.Add(10 * time.Minute)

			Expect(store.Sweep()).To(Equal(1))
			_, ok := store.Get(owner, "old")
			Expect(ok).To(BeFalse())
			_, ok = store.Get(owner, "new")
			Expect(ok).To(BeTrue())
		})

		It("hands discarded intakes to the registered callback", func() {
			var discarded []*intake.Pending
			store.OnDiscard(func(p *intake.Pending) { discarded = append(discarded, p) })

			store.Create(owner, "id-1", "a.jpg")
			clock = clock.Add(time.Hour)

			store.Sweep()
			Expect(discarded).To(HaveLen(1))
			Expect(discarded[0].ImagePath).To(Equal("a.jpg"))
		})

		It("treats expired entries as absent even before sweeping", func() {
			store.Create(owner, "id-1", "a.jpg")
			clock = clock.Add(time.Hour)
			_, ok := store.Get(owner, "id-1")
			Expect(ok).To(BeFalse())
			Expect(store.Len()).To(BeZero())
		})
	})
})
