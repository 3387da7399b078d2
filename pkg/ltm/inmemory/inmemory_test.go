package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reqvibe/reqvibe/pkg/ltm"
	"github.com/reqvibe/reqvibe/pkg/ltm/inmemory"
)

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		ctx = context.Background()
	})

	save := func(id, text string, created time.Time, embedding ...float32) {
		GinkgoHelper()
		Expect(driver.Save(ctx, ltm.Record{
			ID:        id,
			Text:      text,
			Embedding: embedding,
			CreatedAt: created,
		})).To(Succeed())
	}

	Describe("Save and Get", func() {
		It("round-trips a record", func() {
			rec := ltm.Record{
				ID:      "REQ-001",
				Text:    "The system shall persist sessions",
				Project: "reqvibe",
				Volere:  map[string]string{"rationale": "users expect continuity"},
			}
			Expect(driver.Save(ctx, rec)).To(Succeed())

			got, err := driver.Get(ctx, "REQ-001")
			Expect(err).NotTo(HaveOccurred())
			Expect(*got).To(Equal(rec))
		})

		It("upserts by ID", func() {
			save("REQ-001", "first wording", time.Now())
			save("REQ-001", "revised wording", time.Now())

			got, err := driver.Get(ctx, "REQ-001")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Text).To(Equal("revised wording"))

			all, err := driver.All(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})

		It("returns ErrNotFound for unknown IDs", func() {
			_, err := driver.Get(ctx, "REQ-404")
			Expect(err).To(MatchError(ltm.ErrNotFound{ID: "REQ-404"}))
		})
	})

	Describe("Search", func() {
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		BeforeEach(func() {
			save("REQ-001", "The exporter shall emit CSV files", base)
			save("REQ-002", "Login must require two factors", base.Add(time.Hour))
			save("REQ-003", "CSV import validates headers", base.Add(2*time.Hour))
		})

		It("matches text case-insensitively", func() {
			results, err := driver.Search(ctx, "csv", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
		})

		It("returns newest matches first", func() {
			results, err := driver.Search(ctx, "csv", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].ID).To(Equal("REQ-003"))
			Expect(results[1].ID).To(Equal("REQ-001"))
		})

		It("matches against the ID", func() {
			results, err := driver.Search(ctx, "req-002", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("REQ-002"))
		})

		It("honors the limit", func() {
			results, err := driver.Search(ctx, "REQ", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
		})

		It("returns nothing for no matches", func() {
			results, err := driver.Search(ctx, "blockchain", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})
	})

	Describe("SearchByVector", func() {
		BeforeEach(func() {
			save("REQ-001", "close match", time.Now(), 1, 0, 0)
			save("REQ-002", "far match", time.Now(), 0, 1, 0)
			save("REQ-003", "middling match", time.Now(), 0.7, 0.7, 0)
			save("REQ-004", "no embedding", time.Now())
		})

		It("ranks best match first", func() {
			results, err := driver.SearchByVector(ctx, []float32{1, 0, 0}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(results[0].ID).To(Equal("REQ-001"))
			Expect(results[0].Score).To(BeNumerically(">", results[1].Score))
			Expect(results[1].Score).To(BeNumerically(">=", results[2].Score))
		})

		It("skips records without embeddings", func() {
			results, err := driver.SearchByVector(ctx, []float32{1, 0, 0}, 10)
			Expect(err).NotTo(HaveOccurred())
			for _, r := range results {
				Expect(r.ID).NotTo(Equal("REQ-004"))
			}
		})

		It("honors topK", func() {
			results, err := driver.SearchByVector(ctx, []float32{1, 0, 0}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
		})
	})

	Describe("All", func() {
		It("returns records newest first", func() {
			base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			save("REQ-001", "oldest", base)
			save("REQ-003", "newest", base.Add(2*time.Hour))
			save("REQ-002", "middle", base.Add(time.Hour))

			all, err := driver.All(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))
			Expect(all[0].ID).To(Equal("REQ-003"))
			Expect(all[1].ID).To(Equal("REQ-002"))
			Expect(all[2].ID).To(Equal("REQ-001"))
		})

		It("returns an empty slice for an empty store", func() {
			all, err := driver.All(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
		})
	})

	Describe("Delete", func() {
		It("removes a record", func() {
			save("REQ-001", "to be removed", time.Now())
			Expect(driver.Delete(ctx, "REQ-001")).To(Succeed())

			_, err := driver.Get(ctx, "REQ-001")
			Expect(err).To(MatchError(ltm.ErrNotFound{ID: "REQ-001"}))
		})

		It("is a no-op for unknown IDs", func() {
			Expect(driver.Delete(ctx, "REQ-404")).To(Succeed())
		})
	})
})
