package cache_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reqvibe/reqvibe/pkg/cache"
)

var _ = Describe("Cache", func() {
	var (
		clock time.Time
		c     *cache.Cache
	)

	BeforeEach(func() {
		clock = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
		c = cache.New(cache.WithClock(func() time.Time { return clock }))
	})

	It("computes on first access and serves from cache within the TTL", func() {
		calls := 0
		compute := func() (any, error) {
			calls++
			return "models", nil
		}

		v, err := c.GetOrCompute("models", time.Minute, compute)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("models"))

		clock = clock.Add(30 * time.Second)
		_, err = c.GetOrCompute("models", time.Minute, compute)
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(1))
	})

	It("recomputes after the TTL expires", func() {
		calls := 0
		compute := func() (any, error) {
			calls++
			return calls, nil
		}

		_, err := c.GetOrCompute("k", time.Minute, compute)
		Expect(err).NotTo(HaveOccurred())

		clock = clock.Add(time.Minute)
		v, err := c.GetOrCompute("k", time.Minute, compute)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(2))
	})

	It("does not cache compute errors", func() {
		boom := errors.New("upstream down")
		_, err := c.GetOrCompute("k", time.Minute, func() (any, error) {
			return nil, boom
		})
		Expect(err).To(MatchError(boom))
		Expect(c.Len()).To(BeZero())

		v, err := c.GetOrCompute("k", time.Minute, func() (any, error) {
			return "recovered", nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("recovered"))
	})

	It("invalidates entries on demand", func() {
		calls := 0
		compute := func() (any, error) {
			calls++
			return calls, nil
		}

		_, err := c.GetOrCompute("k", time.Hour, compute)
		Expect(err).NotTo(HaveOccurred())

		c.Invalidate("k")

		v, err := c.GetOrCompute("k", time.Hour, compute)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(2))
	})

	It("keeps keys independent", func() {
		_, err := c.GetOrCompute("a", time.Hour, func() (any, error) { return 1, nil })
		Expect(err).NotTo(HaveOccurred())
		_, err = c.GetOrCompute("b", time.Hour, func() (any, error) { return 2, nil })
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Len()).To(Equal(2))
	})
})
