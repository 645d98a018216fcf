package proxyscraperchecker

import "sync"

// ProxyStorage is a deduplicating set of proxies keyed on identity.
// Re-inserting a proxy with the same identity is a no-op: the existing
// entry (which may already carry measurement data from a prior check) is
// kept. Insertion of a protocol outside enabledProtocols is silently
// dropped, matching spec.md 3's "ProxyStorage / dedup set" contract.
type ProxyStorage struct {
	mu                sync.Mutex
	byID              map[proxyID]*Proxy
	enabledProtocols  map[ProxyType]bool
}

// NewProxyStorage creates an empty storage. If protocols is empty, every
// protocol is accepted.
func NewProxyStorage(protocols ...ProxyType) *ProxyStorage {
	s := &ProxyStorage{byID: make(map[proxyID]*Proxy)}
	if len(protocols) > 0 {
		s.enabledProtocols = make(map[ProxyType]bool, len(protocols))
		for _, p := range protocols {
			s.enabledProtocols[p] = true
		}
	}
	return s
}

// Insert adds p if its protocol is enabled and no proxy with the same
// identity is already present. Returns true if p was newly inserted.
func (s *ProxyStorage) Insert(p *Proxy) bool {
	if s.enabledProtocols != nil && !s.enabledProtocols[p.id.Protocol] {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[p.id]; exists {
		return false
	}
	s.byID[p.id] = p
	return true
}

// Len returns the number of distinct proxies currently stored.
func (s *ProxyStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// All returns a snapshot slice of every stored proxy. The slice is safe to
// use without further locking; the underlying Proxy pointers are still
// mutated in place by the checker.
func (s *ProxyStorage) All() []*Proxy {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Proxy, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p)
	}
	return out
}

// GroupedByProtocol returns every stored proxy bucketed by protocol.
func (s *ProxyStorage) GroupedByProtocol() map[ProxyType][]*Proxy {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[ProxyType][]*Proxy)
	for _, p := range s.byID {
		out[p.id.Protocol] = append(out[p.id.Protocol], p)
	}
	return out
}
