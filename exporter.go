package proxyscraperchecker

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// proxyJSON is the exported JSON shape of one proxy. Grounded on
// original_source/src/output.rs's ProxyJson.
type proxyJSON struct {
	Protocol     string             `json:"protocol"`
	Username     *string            `json:"username,omitempty"`
	Password     *string            `json:"password,omitempty"`
	Host         string             `json:"host"`
	Port         int                `json:"port"`
	TimeoutSecs  *float64           `json:"timeout,omitempty"`
	ExitIP       *string            `json:"exit_ip,omitempty"`
	ASN          *ASNRecord         `json:"asn,omitempty"`
	Geolocation  *GeolocationRecord `json:"geolocation,omitempty"`
}

// Exporter sorts, groups, enriches, and writes out the checked proxy set as
// JSON and/or text artifacts, per cfg's output settings. Grounded on
// original_source/src/output.rs::save_proxies.
type Exporter struct {
	cfg *Config
	log *Logger
	dbs *IPDatabases
}

// NewExporter builds an Exporter. dbs may be nil if neither include_asn nor
// include_geolocation is enabled.
func NewExporter(cfg *Config, log *Logger, dbs *IPDatabases) *Exporter {
	return &Exporter{cfg: cfg, log: log, dbs: dbs}
}

// Export writes every enabled output format for storage's proxies into
// cfg.OutputPath.
func (e *Exporter) Export(storage *ProxyStorage) error {
	all := storage.All()

	if e.cfg.OutputJSON {
		if err := e.exportJSON(sortedCopy(all, true)); err != nil {
			return fmt.Errorf("export json: %w", err)
		}
	}

	if e.cfg.OutputTxt {
		if err := e.exportText(all); err != nil {
			return fmt.Errorf("export text: %w", err)
		}
	}

	path := e.cfg.OutputPath
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if IsDocker() {
		e.log.Info("proxies have been saved to ./out (%s in container)", path)
	} else {
		e.log.Info("proxies have been saved to %s", path)
	}
	return nil
}

func (e *Exporter) exportJSON(sorted []*Proxy) error {
	records := make([]proxyJSON, 0, len(sorted))
	for _, p := range sorted {
		records = append(records, e.toJSON(p))
	}

	compact, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal proxies to json: %w", err)
	}
	pretty, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal proxies to pretty json: %w", err)
	}

	if err := atomicWriteFile(filepath.Join(e.cfg.OutputPath, "proxies.json"), compact); err != nil {
		return err
	}
	return atomicWriteFile(filepath.Join(e.cfg.OutputPath, "proxies_pretty.json"), pretty)
}

func (e *Exporter) toJSON(p *Proxy) proxyJSON {
	rec := proxyJSON{
		Protocol: p.Protocol().String(),
		Host:     p.Host(),
		Port:     p.Port(),
	}
	if p.Username() != "" {
		u := p.Username()
		rec.Username = &u
	}
	if p.Password() != "" {
		pw := p.Password()
		rec.Password = &pw
	}
	if p.Timeout != nil {
		secs := roundTo2(p.Timeout.Seconds())
		rec.TimeoutSecs = &secs
	}
	if p.ExitIP != nil {
		ip := p.ExitIP.String()
		rec.ExitIP = &ip

		if e.dbs != nil {
			rec.ASN = e.dbs.LookupASN(*p.ExitIP)
			rec.Geolocation = e.dbs.LookupGeolocation(*p.ExitIP)
		}
	}
	return rec
}

func roundTo2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

// exportText writes proxies/{all,<protocol>}.txt and then the same files
// for the anonymous-only subset under proxies_anonymous/. Grounded on
// output.rs::save_proxies's txt branch + create_proxy_list_str.
func (e *Exporter) exportText(all []*Proxy) error {
	grouped := groupByProtocol(all)

	for _, variant := range []struct {
		anonymousOnly bool
		folder        string
	}{
		{false, "proxies"},
		{true, "proxies_anonymous"},
	} {
		folderPath := filepath.Join(e.cfg.OutputPath, variant.folder)
		if err := os.RemoveAll(folderPath); err != nil {
			return fmt.Errorf("remove directory %s: %w", folderPath, err)
		}
		if err := os.MkdirAll(folderPath, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", folderPath, err)
		}

		allSorted := sortedCopy(all, e.cfg.SortBySpeed)
		allText := proxyListText(allSorted, variant.anonymousOnly, true)
		if err := os.WriteFile(filepath.Join(folderPath, "all.txt"), []byte(allText), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", filepath.Join(folderPath, "all.txt"), err)
		}

		for protocol, proxies := range grouped {
			sorted := sortedCopy(proxies, e.cfg.SortBySpeed)
			text := proxyListText(sorted, variant.anonymousOnly, false)
			name := protocol.String() + ".txt"
			if err := os.WriteFile(filepath.Join(folderPath, name), []byte(text), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", filepath.Join(folderPath, name), err)
			}
		}
	}
	return nil
}

func proxyListText(proxies []*Proxy, anonymousOnly, includeProtocol bool) string {
	lines := make([]string, 0, len(proxies))
	for _, p := range proxies {
		if anonymousOnly && !p.Anonymous() {
			continue
		}
		lines = append(lines, p.String(includeProtocol))
	}
	return strings.Join(lines, "\n")
}

func groupByProtocol(proxies []*Proxy) map[ProxyType][]*Proxy {
	out := make(map[ProxyType][]*Proxy)
	for _, p := range proxies {
		out[p.Protocol()] = append(out[p.Protocol()], p)
	}
	return out
}

// sortedCopy returns a new slice of proxies ordered by measured timeout
// (bySpeed) or "naturally" by (protocol, IPv4-then-hostname, port), mirroring
// output.rs's sort_by_timeout / sort_naturally.
func sortedCopy(proxies []*Proxy, bySpeed bool) []*Proxy {
	out := make([]*Proxy, len(proxies))
	copy(out, proxies)

	if bySpeed {
		sort.SliceStable(out, func(i, j int) bool {
			return timeoutOrMax(out[i]) < timeoutOrMax(out[j])
		})
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		return lessNatural(out[i], out[j])
	})
	return out
}

func timeoutOrMax(p *Proxy) time.Duration {
	if p.Timeout == nil {
		return time.Duration(1<<63 - 1)
	}
	return *p.Timeout
}

// lessNatural orders by protocol, then host (IPv4 addresses sort before
// hostnames, each compared byte-wise), then port.
func lessNatural(a, b *Proxy) bool {
	if a.Protocol() != b.Protocol() {
		return a.Protocol() < b.Protocol()
	}
	ak, bk := hostSortKey(a.Host()), hostSortKey(b.Host())
	if c := strings.Compare(ak, bk); c != 0 {
		return c < 0
	}
	return a.Port() < b.Port()
}

// hostSortKey makes IPv4 dotted-quads sort before hostnames: IPv4 octets
// are encoded as single raw bytes (0x00-0xff), hostnames are prefixed with
// 0xff four times so they always compare greater than any IPv4 key.
func hostSortKey(host string) string {
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return string(ip4)
		}
	}
	return "\xff\xff\xff\xff" + host
}

// atomicWriteFile writes data to a temp file in path's directory, then
// renames it over path, so a concurrent reader never observes a partial
// write and a crash mid-write never leaves path truncated.
func atomicWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmp, path, err)
	}
	return nil
}
