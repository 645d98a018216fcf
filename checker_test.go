package proxyscraperchecker

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Checker", func() {
	var log *Logger

	BeforeEach(func() {
		log = NewLogger(false)
	})

	It("keeps only proxies that pass the probe", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"origin": "203.0.113.9"}`)
		}))
		defer srv.Close()

		host, portStr, _ := strings.Cut(strings.TrimPrefix(srv.URL, "http://"), ":")
		port, _ := strconv.Atoi(portStr)

		storage := NewProxyStorage(Http)
		good := NewProxy(Http, host, port, "", "")
		storage.Insert(good)

		cfg := &Config{
			CheckURL:            srv.URL,
			CheckWebsiteType:    CheckWebsiteHTTPBinIP,
			MaxConcurrentChecks: 4,
			CheckTimeout:        2 * time.Second,
			CheckConnectTimeout: 2 * time.Second,
		}
		checker := NewChecker(cfg, log, nil, 0)

		// good is an HTTP-proxy entry pointed at a plain test server; the
		// transport sends it an absolute-form GET for CheckURL, which the
		// server answers with 200, so the probe passes and good is kept.
		out, err := checker.CheckAll(context.Background(), storage)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Len()).To(Equal(1))
	})

	It("returns an empty storage immediately when given no proxies", func() {
		cfg := &Config{MaxConcurrentChecks: 4}
		checker := NewChecker(cfg, log, nil, 0)
		out, err := checker.CheckAll(context.Background(), NewProxyStorage())
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Len()).To(Equal(0))
	})

	It("stops dispatching further probes once the context is cancelled", func() {
		storage := NewProxyStorage(Http)
		for i := 0; i < 5; i++ {
			storage.Insert(NewProxy(Http, "203.0.113.1", 8080+i, "", ""))
		}

		cfg := &Config{
			CheckURL:            "http://203.0.113.1/unused",
			MaxConcurrentChecks: 2,
			CheckTimeout:        2 * time.Second,
			CheckConnectTimeout: 2 * time.Second,
		}
		checker := NewChecker(cfg, log, nil, 0)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		out, err := checker.CheckAll(ctx, storage)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Len()).To(Equal(0))
	})
})
