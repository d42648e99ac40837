package sse

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Writer", func() {
	It("writes one data event per WriteJSON call", func() {
		var buf bytes.Buffer
		w := NewWriter(&buf)

		Expect(w.WriteJSON(map[string]string{"type": "text", "content": "hi"})).To(Succeed())

		Expect(buf.String()).To(Equal(`data: {"content":"hi","type":"text"}` + "\n\n"))
	})

	It("terminates the stream with the literal DONE sentinel", func() {
		var buf bytes.Buffer
		w := NewWriter(&buf)

		Expect(w.WriteDone()).To(Succeed())
		Expect(buf.String()).To(Equal("data: [DONE]\n\n"))
	})

	It("round-trips through the Reader", func() {
		var buf bytes.Buffer
		w := NewWriter(&buf)

		Expect(w.WriteJSON(map[string]string{"type": "finish"})).To(Succeed())
		Expect(w.WriteDone()).To(Succeed())

		r := NewReader(&buf)

		ev, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Data).To(Equal(`{"type":"finish"}`))

		ev, err = r.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Data).To(Equal("[DONE]"))
	})
})
