package proxyscraperchecker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("sharedHTTPClient.FetchText", func() {
	var client *sharedHTTPClient

	BeforeEach(func() {
		c, err := newSharedHTTPClient(5*time.Second, 2*time.Second, "")
		Expect(err).NotTo(HaveOccurred())
		client = c
	})

	It("retries once on 503 with Retry-After then succeeds", func() {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("x"))
		}))
		defer srv.Close()

		body, err := client.FetchText(context.Background(), srv.URL, FetchOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(body).To(Equal("x"))
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(2)))
	})

	It("gives up after three total attempts on repeated 502", func() {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := client.FetchText(context.Background(), srv.URL, FetchOptions{})
		Expect(err).To(HaveOccurred())
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(3)))
	})

	It("does not retry a non-retriable status", func() {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := client.FetchText(context.Background(), srv.URL, FetchOptions{})
		Expect(err).To(HaveOccurred())
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(1)))
	})
})

var _ = Describe("parseRetryAfter", func() {
	It("prefers Retry-After-Ms", func() {
		h := http.Header{}
		h.Set("Retry-After-Ms", "250")
		h.Set("Retry-After", "10")

		d, ok := parseRetryAfter(h)
		Expect(ok).To(BeTrue())
		Expect(d).To(Equal(250 * time.Millisecond))
	})

	It("falls back to Retry-After seconds", func() {
		h := http.Header{}
		h.Set("Retry-After", "3")

		d, ok := parseRetryAfter(h)
		Expect(ok).To(BeTrue())
		Expect(d).To(Equal(3 * time.Second))
	})

	It("returns false when no header is present", func() {
		_, ok := parseRetryAfter(http.Header{})
		Expect(ok).To(BeFalse())
	})
})
