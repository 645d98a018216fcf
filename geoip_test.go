package proxyscraperchecker

import (
	"net"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("IPDatabases", func() {
	It("returns nil lookups when neither database was opened", func() {
		dbs := &IPDatabases{}
		Expect(dbs.LookupASN(net.ParseIP("8.8.8.8"))).To(BeNil())
		Expect(dbs.LookupGeolocation(net.ParseIP("8.8.8.8"))).To(BeNil())
	})

	It("returns nil for a nil IP", func() {
		dbs := &IPDatabases{}
		Expect(dbs.LookupASN(nil)).To(BeNil())
		Expect(dbs.LookupGeolocation(nil)).To(BeNil())
	})
})
