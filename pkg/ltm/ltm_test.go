package ltm_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reqvibe/reqvibe/pkg/ltm"
)

var _ = Describe("CosineSimilarity", func() {
	It("returns 1 for identical vectors", func() {
		v := []float32{1, 2, 3}
		Expect(ltm.CosineSimilarity(v, v)).To(BeNumerically("~", 1.0, 1e-6))
	})

	It("returns 0 for orthogonal vectors", func() {
		a := []float32{1, 0}
		b := []float32{0, 1}
		Expect(ltm.CosineSimilarity(a, b)).To(BeNumerically("~", 0.0, 1e-6))
	})

	It("returns -1 for opposite vectors", func() {
		a := []float32{1, 2}
		b := []float32{-1, -2}
		Expect(ltm.CosineSimilarity(a, b)).To(BeNumerically("~", -1.0, 1e-6))
	})

	It("is invariant to scaling", func() {
		a := []float32{1, 2, 3}
		b := []float32{10, 20, 30}
		Expect(ltm.CosineSimilarity(a, b)).To(BeNumerically("~", 1.0, 1e-6))
	})

	It("returns 0 for mismatched lengths", func() {
		Expect(ltm.CosineSimilarity([]float32{1, 2}, []float32{1})).To(BeZero())
	})

	It("returns 0 for empty vectors", func() {
		Expect(ltm.CosineSimilarity(nil, nil)).To(BeZero())
	})

	It("returns 0 for zero-magnitude vectors", func() {
		a := []float32{0, 0}
		b := []float32{1, 1}
		Expect(ltm.CosineSimilarity(a, b)).To(BeZero())
	})
})

var _ = Describe("ErrNotFound", func() {
	It("includes the requirement ID", func() {
		err := ltm.ErrNotFound{ID: "REQ-042"}
		Expect(err.Error()).To(ContainSubstring("REQ-042"))
	})

	It("has a generic message without an ID", func() {
		err := ltm.ErrNotFound{}
		Expect(err.Error()).To(Equal("requirement not found"))
	})

	It("matches with errors.As through wrapping", func() {
		wrapped := errors.Join(errors.New("lookup failed"), ltm.ErrNotFound{ID: "REQ-001"})

		var notFound ltm.ErrNotFound
		Expect(errors.As(wrapped, &notFound)).To(BeTrue())
		Expect(notFound.ID).To(Equal("REQ-001"))
	})
})
