package middleware

import (
	"log/slog"
	"net/netip"
	"sync"
	"time"
)

// LoginGuardConfig configures progressive blocking of clients that keep
// failing token authentication.
type LoginGuardConfig struct {
	// MaxFailures within Window before a client is blocked.
	MaxFailures int
	// Window is the sliding window in which failures are counted.
	Window time.Duration
	// BlockFor is the first block's length. Each repeat offence doubles it,
	// up to MaxBlockFor.
	BlockFor    time.Duration
	MaxBlockFor time.Duration
	// CleanupInterval is how often expired records are dropped.
	CleanupInterval time.Duration
}

// DefaultLoginGuardConfig blocks a client for 5 minutes after 10 failures in
// 10 minutes, doubling up to 24 hours.
func DefaultLoginGuardConfig() LoginGuardConfig {
	return LoginGuardConfig{
		MaxFailures:     10,
		Window:          10 * time.Minute,
		BlockFor:        5 * time.Minute,
		MaxBlockFor:     24 * time.Hour,
		CleanupInterval: 5 * time.Minute,
	}
}

type loginRecord struct {
	failures     []time.Time
	blockedUntil time.Time     // end of the most recent block
	nextBlock    time.Duration // length of the next block
}

func (r *loginRecord) isBlocked(now time.Time) bool {
	return now.Before(r.blockedUntil)
}

// LoginGuard tracks failed token requests per client address.
type LoginGuard struct {
	mu      sync.Mutex
	records map[netip.Addr]*loginRecord
	cfg     LoginGuardConfig
	now     func() time.Time
	stopCh  chan struct{}
	stop    sync.Once
}

// NewLoginGuard creates a guard and starts background cleanup.
func NewLoginGuard(cfg LoginGuardConfig) *LoginGuard {
	g := &LoginGuard{
		records: make(map[netip.Addr]*loginRecord),
		cfg:     cfg,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go g.cleanupLoop()
	return g
}

// Blocked reports whether source ("ip" or "ip:port") is blocked and, if so,
// for how much longer.
func (g *LoginGuard) Blocked(source string) (bool, time.Duration) {
	addr, ok := parseSource(source)
	if !ok {
		return false, 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[addr]
	if !ok {
		return false, 0
	}
	now := g.now()
	if !rec.isBlocked(now) {
		return false, 0
	}
	return true, rec.blockedUntil.Sub(now)
}

// RecordFailure notes a failed attempt and blocks source once the threshold
// is reached.
func (g *LoginGuard) RecordFailure(source string) {
	addr, ok := parseSource(source)
	if !ok {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	rec, ok := g.records[addr]
	if !ok {
		rec = &loginRecord{nextBlock: g.cfg.BlockFor}
		g.records[addr] = rec
	}
	if rec.isBlocked(now) {
		return
	}

	cutoff := now.Add(-g.cfg.Window)
	kept := rec.failures[:0]
	for _, t := range rec.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	rec.failures = append(kept, now)

	if len(rec.failures) < g.cfg.MaxFailures {
		return
	}

	rec.blockedUntil = now.Add(rec.nextBlock)
	rec.failures = nil

	slog.Warn("client blocked after repeated token authentication failures",
		"ip", addr.String(),
		"block_duration", rec.nextBlock.String(),
	)

	rec.nextBlock = min(rec.nextBlock*2, g.cfg.MaxBlockFor)
}

// RecordSuccess forgets source's recent failures. The escalated block length
// is kept for repeat offenders.
func (g *LoginGuard) RecordSuccess(source string) {
	addr, ok := parseSource(source)
	if !ok {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if rec, ok := g.records[addr]; ok {
		rec.failures = nil
	}
}

// BlockedCount returns the number of clients currently blocked.
func (g *LoginGuard) BlockedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	n := 0
	for _, rec := range g.records {
		if rec.isBlocked(now) {
			n++
		}
	}
	return n
}

// Stop terminates the background cleanup goroutine. Safe to call twice.
func (g *LoginGuard) Stop() {
	g.stop.Do(func() { close(g.stopCh) })
}

func (g *LoginGuard) cleanupLoop() {
	ticker := time.NewTicker(g.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.cleanup()
		case <-g.stopCh:
			return
		}
	}
}

// cleanup drops records that are neither blocked nor holding recent failures.
func (g *LoginGuard) cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-g.cfg.Window)
	for addr, rec := range g.records {
		if rec.isBlocked(now) {
			continue
		}
		if len(rec.failures) == 0 || !rec.failures[len(rec.failures)-1].After(cutoff) {
			delete(g.records, addr)
		}
	}
}

func parseSource(source string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(source); err == nil {
		return ap.Addr().Unmap(), true
	}
	if a, err := netip.ParseAddr(source); err == nil {
		return a.Unmap(), true
	}
	return netip.Addr{}, false
}
