package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/flowcanvas/flowcanvas/pkg/storage"
)

func entryAt(id, identityKey string, success bool, at time.Time) *storage.Entry {
	return &storage.Entry{
		ID:          id,
		IdentityKey: identityKey,
		Type:        "diagram_turn",
		Success:     success,
		CreatedAt:   at,
	}
}

var _ = Describe("In-Memory Ledger", func() {
	var (
		driver *Driver
		ctx    context.Context
		now    time.Time
	)

	BeforeEach(func() {
		driver = NewDriver()
		ctx = context.Background()
		now = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	})

	Describe("Append and CountSuccessful", func() {
		It("counts only successful entries for the given identity", func() {
			Expect(driver.Append(ctx, entryAt("e1", "anon:a", true, now))).To(Succeed())
			Expect(driver.Append(ctx, entryAt("e2", "anon:a", false, now))).To(Succeed())
			Expect(driver.Append(ctx, entryAt("e3", "anon:b", true, now))).To(Succeed())

			count, err := driver.CountSuccessful(ctx, "anon:a", time.Time{})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		It("excludes entries before the window start", func() {
			Expect(driver.Append(ctx, entryAt("old", "acct:u", true, now.AddDate(0, -2, 0)))).To(Succeed())
			Expect(driver.Append(ctx, entryAt("new", "acct:u", true, now))).To(Succeed())

			monthStart := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
			count, err := driver.CountSuccessful(ctx, "acct:u", monthStart)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		It("rejects a nil entry", func() {
			Expect(driver.Append(ctx, nil)).NotTo(Succeed())
		})
	})

	Describe("AppendIfUnder", func() {
		It("inserts while the count is under the limit", func() {
			ok, err := driver.AppendIfUnder(ctx, entryAt("e1", "anon:a", true, now), time.Time{}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("refuses the insert at the limit", func() {
			ok, err := driver.AppendIfUnder(ctx, entryAt("e1", "anon:a", true, now), time.Time{}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = driver.AppendIfUnder(ctx, entryAt("e2", "anon:a", true, now), time.Time{}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			count, err := driver.CountSuccessful(ctx, "anon:a", time.Time{})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		It("never exceeds the limit under concurrent appends", func() {
			const attempts = 50
			const limit = 5

			var wg sync.WaitGroup
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := driver.AppendIfUnder(ctx,
						entryAt(fmt.Sprintf("e%d", i), "acct:u", true, now),
						time.Time{}, limit)
					Expect(err).NotTo(HaveOccurred())
				}(i)
			}
			wg.Wait()

			count, err := driver.CountSuccessful(ctx, "acct:u", time.Time{})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(limit))
		})

		It("ignores failed entries when counting toward the limit", func() {
			Expect(driver.Append(ctx, entryAt("f1", "anon:a", false, now))).To(Succeed())

			ok, err := driver.AppendIfUnder(ctx, entryAt("e1", "anon:a", true, now), time.Time{}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})
	})

	Describe("StatsFor", func() {
		It("buckets successful entries by UTC day, month, and all time", func() {
			Expect(driver.Append(ctx, entryAt("today", "acct:u", true, now))).To(Succeed())
			Expect(driver.Append(ctx, entryAt("this-month", "acct:u", true, now.AddDate(0, 0, -10)))).To(Succeed())
			Expect(driver.Append(ctx, entryAt("last-year", "acct:u", true, now.AddDate(-1, 0, 0)))).To(Succeed())
			Expect(driver.Append(ctx, entryAt("failed", "acct:u", false, now))).To(Succeed())

			stats, err := driver.StatsFor(ctx, "acct:u", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Today).To(Equal(1))
			Expect(stats.ThisMonth).To(Equal(2))
			Expect(stats.Total).To(Equal(3))
		})

		It("returns zeroes for an unknown identity", func() {
			stats, err := driver.StatsFor(ctx, "acct:nobody", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(*stats).To(Equal(storage.Stats{}))
		})
	})
})
