package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reqvibe/reqvibe/pkg/cliui"
)

var _ = Describe("Step", func() {
	It("reports success with the message and elapsed time", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "connecting", func() error { return nil })
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring("connecting"))
	})

	It("returns the function's error", func() {
		var buf bytes.Buffer
		wantErr := errors.New("boom")
		err := cliui.Step(&buf, "failing", func() error { return wantErr })
		Expect(err).To(MatchError(wantErr))
	})
})

var _ = Describe("Mark", func() {
	It("marks nil errors as success", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
	})

	It("marks errors as failure", func() {
		Expect(cliui.Mark(errors.New("x"))).To(Equal(cliui.FailMark))
	})
})

var _ = Describe("FormatDuration", func() {
	It("formats sub-second durations as milliseconds", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("formats second-scale durations with one decimal", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("RenderMarkdown", func() {
	It("renders markdown content", func() {
		out, err := cliui.RenderMarkdown("# Title\n\nSome *text*.")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Title"))
	})
})
