package decoder

import (
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// WarnLimiter bounds how many decryption warnings a single network may
// produce per window. Captures of a network with the wrong key fail on
// every frame, and one line per frame would bury everything else.
//
// Each BSSID gets its own window, opened by its first warning. A nil
// *WarnLimiter is valid and suppresses nothing.
type WarnLimiter struct {
	limit  int
	window time.Duration

	mu        sync.Mutex
	networks  map[[6]byte]*networkWindow
	lastSweep time.Time

	suppressed atomic.Int64
}

type networkWindow struct {
	opened  time.Time
	emitted int
}

// WarnLimiterConfig configures per-network warning limits.
type WarnLimiterConfig struct {
	MaxPerNetwork int           // warnings per BSSID per window (0 = disabled)
	Window        time.Duration // default 10s
}

// NewWarnLimiter creates a limiter. Returns nil if disabled.
func NewWarnLimiter(cfg WarnLimiterConfig) *WarnLimiter {
	if cfg.MaxPerNetwork <= 0 {
		return nil
	}
	if cfg.Window <= 0 {
		cfg.Window = 10 * time.Second
	}
	return &WarnLimiter{
		limit:    cfg.MaxPerNetwork,
		window:   cfg.Window,
		networks: make(map[[6]byte]*networkWindow),
	}
}

func networkKey(bssid net.HardwareAddr) (k [6]byte) {
	copy(k[:], bssid)
	return k
}

// Allow reports whether a warning for bssid may be emitted at now.
func (l *WarnLimiter) Allow(bssid net.HardwareAddr, now time.Time) bool {
	if l == nil {
		return true
	}
	k := networkKey(bssid)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	w, ok := l.networks[k]
	if !ok || now.Sub(w.opened) >= l.window {
		w = &networkWindow{opened: now}
		l.networks[k] = w
	}
	if w.emitted < l.limit {
		w.emitted++
		return true
	}
	l.suppressed.Add(1)
	return false
}

// sweep drops networks whose window has closed, at most once per window.
// Caller holds l.mu.
func (l *WarnLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for k, w := range l.networks {
		if now.Sub(w.opened) >= l.window {
			delete(l.networks, k)
		}
	}
}

// Suppressed returns the total number of warnings dropped.
func (l *WarnLimiter) Suppressed() int64 {
	if l == nil {
		return 0
	}
	return l.suppressed.Load()
}

// Networks returns the number of BSSIDs with a tracked window.
func (l *WarnLimiter) Networks() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.networks)
}
