package proxyscraperchecker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Scraper", func() {
	var (
		httpClient *sharedHTTPClient
		log        *Logger
	)

	BeforeEach(func() {
		var err error
		httpClient, err = newSharedHTTPClient(5*time.Second, 3*time.Second, "")
		Expect(err).NotTo(HaveOccurred())
		log = NewLogger(false)
	})

	It("extracts one proxy per line and tags it with the source's default protocol", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("1.2.3.4:8080\n5.6.7.8:1080\n"))
		}))
		defer srv.Close()

		cfg := &Config{
			Sources: map[ProxyType][]Source{
				Http: {{Location: srv.URL, DefaultProtocol: Http}},
			},
		}
		scraper := NewScraper(cfg, httpClient, log, nil)
		storage, err := scraper.ScrapeAll(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(storage.Len()).To(Equal(2))
	})

	It("honors an explicit scheme over the source's default protocol", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("socks5://9.9.9.9:1080\n"))
		}))
		defer srv.Close()

		cfg := &Config{
			Sources: map[ProxyType][]Source{
				Http:   {{Location: srv.URL, DefaultProtocol: Http}},
				Socks5: {},
			},
		}
		scraper := NewScraper(cfg, httpClient, log, nil)
		storage, err := scraper.ScrapeAll(context.Background())
		Expect(err).NotTo(HaveOccurred())

		grouped := storage.GroupedByProtocol()
		Expect(grouped[Socks5]).To(HaveLen(1))
		Expect(grouped[Http]).To(BeEmpty())
	})

	It("skips a source entirely when it exceeds max_proxies_per_source", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("1.1.1.1:80\n2.2.2.2:80\n3.3.3.3:80\n"))
		}))
		defer srv.Close()

		cfg := &Config{
			MaxProxiesPerSource: 2,
			Sources: map[ProxyType][]Source{
				Http: {{Location: srv.URL, DefaultProtocol: Http}},
			},
		}
		scraper := NewScraper(cfg, httpClient, log, nil)
		storage, err := scraper.ScrapeAll(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(storage.Len()).To(Equal(0))
	})

	It("ignores an unreachable source instead of failing the whole run", func() {
		cfg := &Config{
			Sources: map[ProxyType][]Source{
				Http: {{Location: "http://127.0.0.1:1", DefaultProtocol: Http}},
			},
		}
		scraper := NewScraper(cfg, httpClient, log, nil)
		storage, err := scraper.ScrapeAll(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(storage.Len()).To(Equal(0))
	})
})
