package proxyscraperchecker

import (
	"encoding/json"
	"sync"
)

// AppEvent is one progress notification raised by a stage of the pipeline.
// Kind identifies the event; the remaining fields are populated per-kind.
// Grounded on original_source/src/event.rs's AppEvent enum, flattened into
// a single tagged struct (Go has no closed sum type) the way the teacher's
// Payload{Kind, Body} shape tags its own websocket messages (web.go).
type AppEvent struct {
	Kind     string    `json:"kind"`
	Protocol ProxyType `json:"protocol,omitempty"`
	Count    int       `json:"count,omitempty"`
}

const (
	EventGeoDBTotal      = "geodb_total"
	EventGeoDBDownloaded = "geodb_downloaded"
	EventSourcesTotal    = "sources_total"
	EventSourceScraped   = "source_scraped"
	EventTotalProxies    = "total_proxies"
	EventProxyChecked    = "proxy_checked"
	EventProxyWorking    = "proxy_working"
	EventDone            = "done"
)

// Broadcaster receives AppEvents as the pipeline runs. Implementations must
// be safe for concurrent use: every stage publishes from its own
// goroutines. NopBroadcaster and the websocket broadcaster in pkg/ui both
// satisfy it.
type Broadcaster interface {
	Publish(AppEvent)
}

// NopBroadcaster discards every event; used when the UI is disabled
// (--no-ui) or in tests.
type NopBroadcaster struct{}

func (NopBroadcaster) Publish(AppEvent) {}

// AppState is a thread-safe aggregate of every event seen so far, the
// snapshot the UI renders. Grounded on event.rs's AppState, translated from
// per-protocol HashMaps to a mutex-guarded struct of maps (Go idiom: no
// async-aware locks needed, as spec.md 9 notes, since critical sections
// never suspend).
type AppState struct {
	mu sync.Mutex

	GeoDBTotal      int                 `json:"geodb_total"`
	GeoDBDownloaded int                 `json:"geodb_downloaded"`
	SourcesTotal    map[ProxyType]int   `json:"sources_total"`
	SourcesScraped  map[ProxyType]int   `json:"sources_scraped"`
	ProxiesTotal    map[ProxyType]int   `json:"proxies_total"`
	ProxiesChecked  map[ProxyType]int   `json:"proxies_checked"`
	ProxiesWorking  map[ProxyType]int   `json:"proxies_working"`
	Done            bool                `json:"done"`
}

// NewAppState returns a freshly initialized, empty AppState.
func NewAppState() *AppState {
	return &AppState{
		SourcesTotal:   make(map[ProxyType]int),
		SourcesScraped: make(map[ProxyType]int),
		ProxiesTotal:   make(map[ProxyType]int),
		ProxiesChecked: make(map[ProxyType]int),
		ProxiesWorking: make(map[ProxyType]int),
	}
}

// Apply folds one event into the state. Safe for concurrent callers.
func (s *AppState) Apply(e AppEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Kind {
	case EventGeoDBTotal:
		s.GeoDBTotal = e.Count
	case EventGeoDBDownloaded:
		s.GeoDBDownloaded += e.Count
	case EventSourcesTotal:
		s.SourcesTotal[e.Protocol] = e.Count
	case EventSourceScraped:
		s.SourcesScraped[e.Protocol]++
	case EventTotalProxies:
		s.ProxiesTotal[e.Protocol] = e.Count
	case EventProxyChecked:
		s.ProxiesChecked[e.Protocol]++
	case EventProxyWorking:
		s.ProxiesWorking[e.Protocol]++
	case EventDone:
		s.Done = true
	}
}

// Snapshot marshals the current state to JSON under lock, for the UI's
// per-event broadcast.
func (s *AppState) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(s)
}

// StateTrackingBroadcaster folds every event into an AppState and forwards
// it to an underlying Broadcaster (typically the websocket one in pkg/ui).
type StateTrackingBroadcaster struct {
	State *AppState
	Next  Broadcaster
}

// NewStateTrackingBroadcaster wires state accumulation in front of next.
func NewStateTrackingBroadcaster(next Broadcaster) *StateTrackingBroadcaster {
	return &StateTrackingBroadcaster{State: NewAppState(), Next: next}
}

func (b *StateTrackingBroadcaster) Publish(e AppEvent) {
	b.State.Apply(e)
	if b.Next != nil {
		b.Next.Publish(e)
	}
}
