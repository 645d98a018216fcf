package proxyscraperchecker

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Exporter", func() {
	var (
		dir     string
		cfg     *Config
		storage *ProxyStorage
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		cfg = &Config{
			OutputPath: dir,
			OutputTxt:  true,
			OutputJSON: true,
		}
		storage = NewProxyStorage(Http, Socks5)

		fast := NewProxy(Http, "1.1.1.1", 80, "", "")
		fastTimeout := 50 * time.Millisecond
		fast.Timeout = &fastTimeout
		fastIP := net.ParseIP("9.9.9.9")
		fast.ExitIP = &fastIP

		slow := NewProxy(Socks5, "2.2.2.2", 1080, "u", "p")
		slowTimeout := 500 * time.Millisecond
		slow.Timeout = &slowTimeout
		slowIP := net.ParseIP("2.2.2.2") // echoes its own host: not anonymous
		slow.ExitIP = &slowIP

		storage.Insert(fast)
		storage.Insert(slow)
	})

	It("writes proxies.json and proxies_pretty.json with rounded timeouts", func() {
		Expect(NewExporter(cfg, NewLogger(false), nil).Export(storage)).To(Succeed())

		data, err := os.ReadFile(filepath.Join(dir, "proxies.json"))
		Expect(err).NotTo(HaveOccurred())

		var records []map[string]any
		Expect(json.Unmarshal(data, &records)).To(Succeed())
		Expect(records).To(HaveLen(2))
		Expect(records[0]["timeout"]).To(Equal(0.05))

		_, err = os.Stat(filepath.Join(dir, "proxies_pretty.json"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("writes per-protocol txt files sorted by speed", func() {
		cfg.SortBySpeed = true
		Expect(NewExporter(cfg, NewLogger(false), nil).Export(storage)).To(Succeed())

		all, err := os.ReadFile(filepath.Join(dir, "proxies", "all.txt"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(all)).To(Equal("http://1.1.1.1:80\nsocks5://u:p@2.2.2.2:1080"))

		httpOnly, err := os.ReadFile(filepath.Join(dir, "proxies", "http.txt"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(httpOnly)).To(Equal("1.1.1.1:80"))
	})

	It("writes only anonymous proxies under proxies_anonymous", func() {
		Expect(NewExporter(cfg, NewLogger(false), nil).Export(storage)).To(Succeed())

		anon, err := os.ReadFile(filepath.Join(dir, "proxies_anonymous", "all.txt"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(anon)).To(Equal("http://1.1.1.1:80"))
	})

	It("is idempotent across repeated exports", func() {
		exporter := NewExporter(cfg, NewLogger(false), nil)
		Expect(exporter.Export(storage)).To(Succeed())
		Expect(exporter.Export(storage)).To(Succeed())

		all, err := os.ReadFile(filepath.Join(dir, "proxies", "all.txt"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(all)).To(ContainSubstring("1.1.1.1:80"))
	})
})
