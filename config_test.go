package proxyscraperchecker

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const sampleConfigTOML = `
debug = false

[scraping]
max_proxies_per_source = 1000
timeout = 5
connect_timeout = 3
user_agent = "test-agent"

[scraping.http]
enabled = true
urls = ["https://example.com/http.txt", { url = "https://example.com/auth.txt", basic_auth = { username = "u", password = "p" } }]

[scraping.socks4]
enabled = false
urls = []

[scraping.socks5]
enabled = true
urls = ["https://example.com/socks5.txt"]

[checking]
check_url = "https://example.com/ip"
max_concurrent_checks = 50
timeout = 5
connect_timeout = 3
user_agent = "test-agent"

[output]
path = "/tmp/proxy-scraper-checker-out"
sort_by_speed = true

[output.txt]
enabled = true

[output.json]
enabled = true
include_asn = true
include_geolocation = true
`

var _ = Describe("ReadRawConfig", func() {
	It("parses every documented section", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "config.toml")
		Expect(os.WriteFile(path, []byte(sampleConfigTOML), 0o644)).To(Succeed())

		raw, err := ReadRawConfig(path)
		Expect(err).NotTo(HaveOccurred())

		Expect(raw.Scraping.MaxProxiesPerSource).To(Equal(1000))
		Expect(raw.Scraping.HTTP.Enabled).To(BeTrue())
		Expect(raw.Scraping.HTTP.URLs).To(HaveLen(2))
		Expect(raw.Scraping.HTTP.URLs[1].BasicAuth.Username).To(Equal("u"))
		Expect(raw.Scraping.Socks4.Enabled).To(BeFalse())
		Expect(raw.Checking.CheckURL).To(Equal("https://example.com/ip"))
		Expect(raw.Output.JSON.IncludeASN).To(BeTrue())

		Expect(raw.Validate()).To(Succeed())
	})
})

var _ = Describe("RawConfig.Validate", func() {
	var raw RawConfig

	BeforeEach(func() {
		raw = RawConfig{
			Scraping: RawScraping{Timeout: 5, ConnectTimeout: 3},
			Checking: RawChecking{MaxConcurrentChecks: 1, Timeout: 5, ConnectTimeout: 3},
			Output:   RawOutput{Txt: RawOutputTxt{Enabled: true}},
		}
	})

	It("accepts a minimal valid config", func() {
		Expect(raw.Validate()).To(Succeed())
	})

	It("rejects a non-positive scraping timeout", func() {
		raw.Scraping.Timeout = 0
		Expect(raw.Validate()).To(HaveOccurred())
	})

	It("rejects an invalid check_url scheme", func() {
		raw.Checking.CheckURL = "ftp://example.com"
		Expect(raw.Validate()).To(HaveOccurred())
	})

	It("rejects when neither output format is enabled", func() {
		raw.Output.Txt.Enabled = false
		raw.Output.JSON.Enabled = false
		Expect(raw.Validate()).To(HaveOccurred())
	})

	It("rejects max_concurrent_checks below 1", func() {
		raw.Checking.MaxConcurrentChecks = 0
		Expect(raw.Validate()).To(HaveOccurred())
	})
})
