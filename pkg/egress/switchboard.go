package egress

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"igmirror/pkg/config"
	"igmirror/pkg/errors"
)

// maxEscalation caps the cooldown doubling applied on consecutive blocks.
const maxEscalation = 4

// Path is one network route for upstream calls. The zero-proxy path is
// direct egress; anonymized paths dial through a SOCKS5 proxy.
type Path struct {
	Name       string
	Anonymized bool
	Client     *http.Client
}

type pathState struct {
	blockedUntil time.Time
	consecutive  int
	disabled     bool
}

// Switchboard maintains the ranked set of egress paths and their block
// state. It makes routing decisions only; it performs no network I/O.
type Switchboard struct {
	cooldown time.Duration

	mu    sync.Mutex
	paths []*Path
	state map[string]*pathState

	now func() time.Time
}

// NewSwitchboard builds the path set from configuration, in preference
// order. timeout bounds every request made through any path's client.
func NewSwitchboard(cfg *config.EgressConfig, timeout time.Duration) (*Switchboard, error) {
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("no egress paths configured")
	}

	s := &Switchboard{
		cooldown: cfg.Cooldown,
		state:    make(map[string]*pathState),
		now:      time.Now,
	}

	for _, pc := range cfg.Paths {
		client, err := buildClient(pc, timeout)
		if err != nil {
			return nil, fmt.Errorf("egress path %q: %w", pc.Name, err)
		}
		s.paths = append(s.paths, &Path{
			Name:       pc.Name,
			Anonymized: pc.Anonymized,
			Client:     client,
		})
		s.state[pc.Name] = &pathState{}
	}

	return s, nil
}

func buildClient(pc config.PathConfig, timeout time.Duration) (*http.Client, error) {
	if pc.ProxyURL == "" {
		return &http.Client{Timeout: timeout}, nil
	}

	u, err := url.Parse(pc.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}
	if u.Scheme != "socks5" {
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}

	dialer, err := proxy.SOCKS5("tcp", u.Host, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("building socks5 dialer: %w", err)
	}
	transport := &http.Transport{}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
	} else {
		transport.Dial = dialer.Dial
	}

	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

// Select returns the first usable path in preference order. When
// forceAnonymized is set, only anonymized paths are considered. With no
// usable path the call fails NoPathAvailable.
func (s *Switchboard) Select(forceAnonymized bool) (*Path, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.paths {
		if forceAnonymized && !p.Anonymized {
			continue
		}
		if s.usable(p) {
			return p, nil
		}
	}

	if forceAnonymized {
		return nil, errors.New(errors.KindNoPathAvailable, "no anonymized egress path available")
	}
	return nil, errors.New(errors.KindNoPathAvailable, "all egress paths blocked")
}

// ReportOutcome records the result of a call made through path. A blocked
// outcome marks the path unusable until a cooldown elapses; consecutive
// blocks double the cooldown up to a cap. A success clears the escalation.
func (s *Switchboard) ReportOutcome(path *Path, blocked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state[path.Name]
	if !ok {
		return
	}

	if !blocked {
		st.consecutive = 0
		st.blockedUntil = time.Time{}
		return
	}

	escalation := st.consecutive
	if escalation > maxEscalation {
		escalation = maxEscalation
	}
	st.blockedUntil = s.now().Add(s.cooldown << escalation)
	st.consecutive++
}

// Reset clears the block state of the named path (administrative).
func (s *Switchboard) Reset(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.state[name]; ok {
		st.blockedUntil = time.Time{}
		st.consecutive = 0
	}
}

// SetEnabled flips the manual-enable flag for the named path. A disabled
// path is never selected regardless of block state.
func (s *Switchboard) SetEnabled(name string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.state[name]; ok {
		st.disabled = !enabled
	}
}

// AnonymizedAvailable reports whether any anonymized path is usable now.
func (s *Switchboard) AnonymizedAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.paths {
		if p.Anonymized && s.usable(p) {
			return true
		}
	}
	return false
}

// AnyAvailable reports whether any path at all is usable now.
func (s *Switchboard) AnyAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.paths {
		if s.usable(p) {
			return true
		}
	}
	return false
}

// PathStatus is a point-in-time view of one path's state.
type PathStatus struct {
	Name         string    `json:"name"`
	Anonymized   bool      `json:"anonymized"`
	Blocked      bool      `json:"blocked"`
	BlockedUntil time.Time `json:"blocked_until,omitempty"`
}

// Status returns a snapshot of every path in preference order.
func (s *Switchboard) Status() []PathStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PathStatus, 0, len(s.paths))
	for _, p := range s.paths {
		st := s.state[p.Name]
		blocked := st.disabled || s.now().Before(st.blockedUntil)
		ps := PathStatus{Name: p.Name, Anonymized: p.Anonymized, Blocked: blocked}
		if s.now().Before(st.blockedUntil) {
			ps.BlockedUntil = st.blockedUntil
		}
		out = append(out, ps)
	}
	return out
}

// usable reports whether a path may serve a call right now. Caller holds s.mu.
func (s *Switchboard) usable(p *Path) bool {
	st := s.state[p.Name]
	if st.disabled {
		return false
	}
	return !s.now().Before(st.blockedUntil)
}
