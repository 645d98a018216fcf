package proxyscraperchecker

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// socks4DialContext returns a DialContext that proxies the connection
// through a SOCKS4 CONNECT handshake at proxyAddr. golang.org/x/net/proxy
// only implements SOCKS5, so this is a minimal hand-rolled client for the
// parts of the protocol this system needs: CONNECT to an IPv4 destination,
// no identd negotiation (user id left empty).
func socks4DialContext(dialer *net.Dialer, proxyAddr string) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, "tcp", proxyAddr)
		if err != nil {
			return nil, fmt.Errorf("dial socks4 proxy: %w", err)
		}

		if err := socks4Connect(conn, addr); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func socks4Connect(conn net.Conn, addr string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("split socks4 target %q: %w", addr, err)
	}

	var port uint16
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return fmt.Errorf("parse socks4 target port %q: %w", portStr, err)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.DefaultResolver.LookupIP(context.Background(), "ip4", host)
		if err != nil || len(ips) == 0 {
			return fmt.Errorf("resolve socks4 target %q: %w", host, err)
		}
		ip = ips[0]
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return fmt.Errorf("socks4 requires an IPv4 destination, got %q", host)
	}

	req := make([]byte, 0, 9)
	req = append(req, 0x04, 0x01) // version 4, CONNECT
	req = binary.BigEndian.AppendUint16(req, port)
	req = append(req, ip4...)
	req = append(req, 0x00) // empty user id

	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("write socks4 request: %w", err)
	}

	resp := make([]byte, 8)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return fmt.Errorf("read socks4 reply: %w", err)
	}
	if resp[0] != 0x00 {
		return fmt.Errorf("malformed socks4 reply version byte %#x", resp[0])
	}
	if resp[1] != 0x5a {
		return fmt.Errorf("socks4 proxy rejected connect, code %#x", resp[1])
	}
	return nil
}
