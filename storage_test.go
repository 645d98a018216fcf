package proxyscraperchecker

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ProxyStorage", func() {
	It("accepts an unseen identity and reports it as newly inserted", func() {
		s := NewProxyStorage()
		inserted := s.Insert(NewProxy(Http, "1.1.1.1", 80, "", ""))
		Expect(inserted).To(BeTrue())
		Expect(s.Len()).To(Equal(1))
	})

	It("drops a re-insert of the same identity, keeping the original pointer", func() {
		s := NewProxyStorage()
		first := NewProxy(Http, "1.1.1.1", 80, "", "")
		firstTimeout := 250 * time.Millisecond
		first.Timeout = &firstTimeout
		s.Insert(first)

		dup := NewProxy(Http, "1.1.1.1", 80, "", "")
		inserted := s.Insert(dup)

		Expect(inserted).To(BeFalse())
		Expect(s.Len()).To(Equal(1))
		Expect(s.All()[0].Timeout).To(Equal(first.Timeout))
	})

	It("treats differing credentials as a distinct identity", func() {
		s := NewProxyStorage()
		s.Insert(NewProxy(Http, "1.1.1.1", 80, "alice", "pw"))
		s.Insert(NewProxy(Http, "1.1.1.1", 80, "bob", "pw"))
		Expect(s.Len()).To(Equal(2))
	})

	It("silently drops a protocol outside the enabled set", func() {
		s := NewProxyStorage(Http, Socks5)
		inserted := s.Insert(NewProxy(Socks4, "1.1.1.1", 1080, "", ""))
		Expect(inserted).To(BeFalse())
		Expect(s.Len()).To(Equal(0))
	})

	It("accepts every protocol when constructed with none", func() {
		s := NewProxyStorage()
		s.Insert(NewProxy(Http, "1.1.1.1", 80, "", ""))
		s.Insert(NewProxy(Socks4, "2.2.2.2", 1080, "", ""))
		s.Insert(NewProxy(Socks5, "3.3.3.3", 1081, "", ""))
		Expect(s.Len()).To(Equal(3))
	})

	It("groups stored proxies by protocol", func() {
		s := NewProxyStorage()
		s.Insert(NewProxy(Http, "1.1.1.1", 80, "", ""))
		s.Insert(NewProxy(Http, "1.1.1.2", 80, "", ""))
		s.Insert(NewProxy(Socks5, "2.2.2.2", 1080, "", ""))

		grouped := s.GroupedByProtocol()
		Expect(grouped[Http]).To(HaveLen(2))
		Expect(grouped[Socks5]).To(HaveLen(1))
	})
})
