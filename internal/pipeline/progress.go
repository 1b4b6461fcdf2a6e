package pipeline

import (
	"sync"
	"sync/atomic"
)

// State of one run.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Progress tracks counters for one run. Counter fields are updated
// atomically by concurrent workers; the current-tile indicator and last
// error are guarded by a mutex. Readers poll Snapshot.
type Progress struct {
	state      atomic.Int32
	total      atomic.Int64
	downloaded atomic.Int64
	skipped    atomic.Int64
	converted  atomic.Int64
	failed     atomic.Int64

	mu       sync.Mutex
	current  string
	lastErr  string
	watchers []chan Event
}

// Event is one per-tile completion notice.
type Event struct {
	Tile   string `json:"tile"`
	Failed bool   `json:"failed"`
	Error  string `json:"error,omitempty"`
	Done   int64  `json:"done"`
	Total  int64  `json:"total"`
}

// Snapshot is a point-in-time copy of the counters, safe to hand to
// callers.
type Snapshot struct {
	State      string `json:"state"`
	Total      int64  `json:"total"`
	Downloaded int64  `json:"downloaded"`
	Skipped    int64  `json:"skipped"`
	Converted  int64  `json:"converted"`
	Failed     int64  `json:"failed"`
	Current    string `json:"current,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

func (p *Progress) reset(total int64) {
	p.total.Store(total)
	p.downloaded.Store(0)
	p.skipped.Store(0)
	p.converted.Store(0)
	p.failed.Store(0)
	p.mu.Lock()
	p.current = ""
	p.lastErr = ""
	p.mu.Unlock()
}

func (p *Progress) setState(s State) {
	p.state.Store(int32(s))
}

// State returns the current run state.
func (p *Progress) State() State {
	return State(p.state.Load())
}

func (p *Progress) setCurrent(tile string) {
	p.mu.Lock()
	p.current = tile
	p.mu.Unlock()
}

func (p *Progress) fail(tile string, err error) {
	p.failed.Add(1)
	p.mu.Lock()
	p.lastErr = tile + ": " + err.Error()
	p.mu.Unlock()
}

// Snapshot copies the counters.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	current, lastErr := p.current, p.lastErr
	p.mu.Unlock()

	return Snapshot{
		State:      p.State().String(),
		Total:      p.total.Load(),
		Downloaded: p.downloaded.Load(),
		Skipped:    p.skipped.Load(),
		Converted:  p.converted.Load(),
		Failed:     p.failed.Load(),
		Current:    current,
		LastError:  lastErr,
	}
}

// done is the number of tiles accounted for: converted this run, failed,
// or already satisfied on disk.
func (p *Progress) done() int64 {
	return p.converted.Load() + p.failed.Load() + p.skipped.Load()
}

// Subscribe returns a channel of per-tile events. The channel is buffered;
// events are dropped rather than blocking workers when a subscriber falls
// behind, so Snapshot remains the authoritative view.
func (p *Progress) Subscribe() <-chan Event {
	ch := make(chan Event, 64)
	p.mu.Lock()
	p.watchers = append(p.watchers, ch)
	p.mu.Unlock()
	return ch
}

func (p *Progress) publish(ev Event) {
	p.mu.Lock()
	watchers := p.watchers
	p.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (p *Progress) closeWatchers() {
	p.mu.Lock()
	watchers := p.watchers
	p.watchers = nil
	p.mu.Unlock()

	for _, ch := range watchers {
		close(ch)
	}
}
