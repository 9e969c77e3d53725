package cliui_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/davidhonghikim/griot-sub000/pkg/cliui"
)

func TestCliui(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "CLI UI Suite")
}

var _ = Describe("Step", func() {
	It("reports success and returns nil", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "loading personas", func() error { return nil })
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring("loading personas"))
		Expect(buf.String()).To(ContainSubstring(cliui.SuccessMark))
	})

	It("passes the error through", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")
		err := cliui.Step(&buf, "vectorizing", func() error { return boom })
		Expect(err).To(MatchError(boom))
		Expect(buf.String()).To(ContainSubstring(cliui.FailMark))
	})
})

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below one second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("uses seconds with one decimal above", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("KeyValue", func() {
	It("marks empty values as not set", func() {
		Expect(cliui.KeyValue("vector_store.target", 20, "")).To(ContainSubstring("<not set>"))
	})

	It("includes the value", func() {
		Expect(cliui.KeyValue("generation.model", 20, "llama3.2")).To(ContainSubstring("llama3.2"))
	})
})
