package proxyscraperchecker

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// proxyRegex extracts (protocol?, username?, password?, host, port) tuples
// from arbitrary text. Grounded on original_source/src/parsers.rs's
// PROXY_REGEX. The original uses fancy_regex lookahead "(?=[^0-9A-Za-z]|$)"
// to require a boundary after the match without consuming it. Go's
// RE2-based regexp has no lookaround; appending a *consumed* boundary group
// instead would eat the single separator byte between two back-to-back
// proxies (e.g. the lone newline between two lines of a scraped list),
// leaving the next match with no boundary byte of its own to anchor on and
// silently dropping it — worse than the bug it would fix. Since nothing in
// the pattern follows the port group, RE2's leftmost-first alternation
// priority accepts whichever port branch is tried first as soon as it
// completes the whole match, even a single-digit branch that only consumed
// the port's first digit. So instead of a boundary, the port alternatives
// are ordered longest-pattern-first: the 5-digit forms before the 2-4-digit
// form before the bare single digit, forcing RE2 to prefer the longest
// branch that has enough digits available and fall back only when it
// doesn't. That still leaves one gap a boundary would normally close: an
// out-of-range value like "70000" has a valid 4-digit port as its prefix
// ("7000"), so the regex alone would happily match that prefix and leave
// the final "0" dangling. scanText closes it by rejecting any match whose
// next byte is itself a digit, which a boundary-free regex can't express.
var proxyRegex = regexp.MustCompile(
	`(?i)(?:^|[^0-9A-Za-z])(?:(?P<protocol>https?|socks[45])://)?` +
		`(?:(?P<username>[0-9A-Za-z]{1,64}):(?P<password>[0-9A-Za-z]{1,64})@)?` +
		`(?P<host>[A-Za-z][-.A-Za-z]{0,251}[A-Za-z]|[A-Za-z]|` +
		`(?:[0-9]|[1-9][0-9]|1[0-9]{2}|2[0-4][0-9]|25[0-5])(?:\.(?:[0-9]|[1-9][0-9]|1[0-9]{2}|2[0-4][0-9]|25[0-5])){3}):` +
		`(?P<port>[1-5][0-9]{4}|6[0-4][0-9]{3}|65[0-4][0-9]{2}|655[0-2][0-9]|6553[0-5]|[1-9][0-9]{1,3}|[0-9])`,
)

// ipv4Regex recognizes a reference-service response: an optional IPv6
// prefix such as "v6,v4", optional whitespace, a plain IPv4, and an
// optional ":port" suffix. Grounded on parsers.rs's IPV4_REGEX.
var ipv4Regex = regexp.MustCompile(
	`^\s*(?:[0-9a-fA-F:]+,\s*)?` +
		`(?P<host>(?:[0-9]|[1-9][0-9]|1[0-9]{2}|2[0-4][0-9]|25[0-5])(?:\.(?:[0-9]|[1-9][0-9]|1[0-9]{2}|2[0-4][0-9]|25[0-5])){3})` +
		`(?::(?:[0-9]|[1-9][0-9]{1,3}|[1-5][0-9]{4}|6[0-4][0-9]{3}|65[0-4][0-9]{2}|655[0-2][0-9]|6553[0-5]))?\s*$`,
)

// cidrRegex recognizes "network/prefix:port" lines for expandCIDRRanges.
// Grounded on parsers.rs's CIDR_REGEX.
var cidrRegex = regexp.MustCompile(
	`^\s*(?P<network>(?:[0-9]|[1-9][0-9]|1[0-9]{2}|2[0-4][0-9]|25[0-5])(?:\.(?:[0-9]|[1-9][0-9]|1[0-9]{2}|2[0-4][0-9]|25[0-5])){3})` +
		`/(?P<prefix>[0-9]|[12][0-9]|3[0-2]):` +
		`(?P<port>[0-9]|[1-9][0-9]{1,3}|[1-5][0-9]{4}|6[0-4][0-9]{3}|65[0-4][0-9]{2}|655[0-2][0-9]|6553[0-5])\s*$`,
)

// ProxyMatch is one regex hit from scanText: the resolved fields before
// protocol defaulting and enabled-set filtering are applied by the caller.
type ProxyMatch struct {
	Protocol string // empty when the match had no explicit scheme
	Username string
	Password string
	Host     string
	Port     int
}

// scanText returns every proxy candidate found in text, in order of
// appearance. A match that fails is silently skipped rather than erroring,
// matching spec.md 4.1's "parsing returns absent rather than erroring".
//
// It inspects match indices rather than calling FindAllStringSubmatch
// directly so it can peek at the byte right after each match: since
// proxyRegex's port alternatives aren't followed by a consumed boundary (see
// proxyRegex's doc comment), a genuinely out-of-range port like "70000"
// would otherwise be silently reinterpreted as the in-range "7000" with a
// stray trailing "0". A match immediately followed by another digit means
// more of the number was left uncaptured, so it's rejected outright instead
// of truncated.
func scanText(text string) []ProxyMatch {
	names := proxyRegex.SubexpNames()
	var out []ProxyMatch

	for _, idx := range proxyRegex.FindAllStringSubmatchIndex(text, -1) {
		if idx[1] < len(text) && text[idx[1]] >= '0' && text[idx[1]] <= '9' {
			continue
		}

		group := func(name string) string {
			for i, n := range names {
				if n != name {
					continue
				}
				start, end := idx[2*i], idx[2*i+1]
				if start < 0 {
					return ""
				}
				return text[start:end]
			}
			return ""
		}

		portStr := group("port")
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			continue
		}

		out = append(out, ProxyMatch{
			Protocol: strings.ToLower(group("protocol")),
			Username: group("username"),
			Password: group("password"),
			Host:     group("host"),
			Port:     port,
		})
	}
	return out
}

// parseIPv4 extracts the IPv4 host substring from a reference-service plain
// text response, or "" if it doesn't match.
func parseIPv4(s string) string {
	m := ipv4Regex.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	for i, n := range ipv4Regex.SubexpNames() {
		if n == "host" && i < len(m) {
			return m[i]
		}
	}
	return ""
}

// expandCIDRRanges rewrites any "network/prefix:port" line in text into one
// "ip:port" line per address in the network; lines that don't match are
// passed through unchanged. A supplemental feature carried forward from
// original_source/src/parsers.rs::expand_cidr_ranges, dropped by the
// distilled spec but not excluded by its Non-goals.
func expandCIDRRanges(text string) string {
	var out strings.Builder

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		m := cidrRegex.FindStringSubmatch(trimmed)
		if m == nil {
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}

		var network, prefix, port string
		for i, n := range cidrRegex.SubexpNames() {
			switch n {
			case "network":
				network = m[i]
			case "prefix":
				prefix = m[i]
			case "port":
				port = m[i]
			}
		}

		ips, err := expandIPv4Network(network, prefix)
		if err != nil {
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}
		for _, ip := range ips {
			fmt.Fprintf(&out, "%s:%s\n", ip, port)
		}
	}
	return out.String()
}

// expandIPv4Network returns every address within network/prefix, the
// network and broadcast addresses included, matching ipnetwork's iter()
// behavior.
func expandIPv4Network(network, prefix string) ([]string, error) {
	_, ipnet, err := net.ParseCIDR(network + "/" + prefix)
	if err != nil {
		return nil, fmt.Errorf("parse cidr %s/%s: %w", network, prefix, err)
	}

	base := ipnet.IP.To4()
	if base == nil {
		return nil, fmt.Errorf("cidr %s/%s is not IPv4", network, prefix)
	}
	ones, bits := ipnet.Mask.Size()
	count := uint32(1) << uint(bits-ones)

	baseInt := uint32(base[0])<<24 | uint32(base[1])<<16 | uint32(base[2])<<8 | uint32(base[3])

	ips := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		v := baseInt + i
		ip := net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
		ips = append(ips, ip.String())
	}
	return ips, nil
}
