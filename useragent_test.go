package proxyscraperchecker

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("userAgentPool", func() {
	Describe("pick()", func() {
		It("returns a non-empty user agent string", func() {
			Expect(defaultUserAgents.pick("")).To(Not(BeEmpty()))
		})

		It("returns a string from the predefined list", func() {
			Expect(defaultUserAgents.agents).To(ContainElement(defaultUserAgents.pick("")))
		})

		It("returns different user agents on multiple calls", func() {
			first := defaultUserAgents.pick("")
			second := defaultUserAgents.pick("")
			third := defaultUserAgents.pick("")

			Expect(first == second && second == third && first == third).To(BeFalse())
		})

		It("falls back when the pool is empty", func() {
			empty := userAgentPool{}
			Expect(empty.pick("fallback-agent")).To(Equal("fallback-agent"))
		})
	})
})
