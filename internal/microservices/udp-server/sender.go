package udp

import (
	"net"
	"sync"
	"time"
)

// Sender represents an OSC source seen on the listener
type Sender struct {
	Addr         string
	FirstSeen    time.Time
	LastSeen     time.Time
	Datagrams    uint64
	bundleWarned bool
}

// SenderTracker keeps track of the OSC sources that recently sent datagrams.
// It is only used for reporting; delivery never depends on it.
type SenderTracker struct {
	mu      sync.RWMutex
	senders map[string]*Sender // "ip:port" -> Sender
	timeout time.Duration
}

// NewSenderTracker creates a new sender tracker
func NewSenderTracker(timeout time.Duration) *SenderTracker {
	return &SenderTracker{
		senders: make(map[string]*Sender),
		timeout: timeout,
	}
}

// Touch records a datagram from addr and reports whether the sender is new
func (st *SenderTracker) Touch(addr net.Addr) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	key := addr.String()
	now := time.Now()
	if sender, exists := st.senders[key]; exists {
		sender.LastSeen = now
		sender.Datagrams++
		return false
	}

	st.senders[key] = &Sender{
		Addr:      key,
		FirstSeen: now,
		LastSeen:  now,
		Datagrams: 1,
	}
	return true
}

// WarnBundleOnce returns true the first time a sender is caught sending a bundle
func (st *SenderTracker) WarnBundleOnce(addr net.Addr) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	sender, exists := st.senders[addr.String()]
	if !exists || sender.bundleWarned {
		return false
	}
	sender.bundleWarned = true
	return true
}

// Get returns a copy of the sender recorded for addr
func (st *SenderTracker) Get(addr string) (Sender, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sender, exists := st.senders[addr]
	if !exists {
		return Sender{}, false
	}
	return *sender, true
}

// GetAll returns copies of all tracked senders
func (st *SenderTracker) GetAll() []Sender {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]Sender, 0, len(st.senders))
	for _, sender := range st.senders {
		out = append(out, *sender)
	}
	return out
}

// CleanupInactive forgets senders idle for longer than the timeout
func (st *SenderTracker) CleanupInactive() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	now := time.Now()
	for key, sender := range st.senders {
		if now.Sub(sender.LastSeen) > st.timeout {
			delete(st.senders, key)
			removed++
		}
	}
	return removed
}

// Count returns the number of tracked senders
func (st *SenderTracker) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return len(st.senders)
}

// StartCleanupRoutine periodically forgets idle senders until done is closed
func (st *SenderTracker) StartCleanupRoutine(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st.CleanupInactive()
		case <-done:
			return
		}
	}
}
