package watch

import (
	"log"
	"sort"
	"sync"
	"time"

	"QuantSentinel/internal/model"
)

// Tracker remembers the last signal per symbol so only changes raise alerts.
type Tracker struct {
	mu       sync.Mutex
	state    *model.WatchState
	filePath string // empty keeps state in memory only
	now      func() time.Time
}

// NewTracker creates a Tracker, loading state from disk when filePath is set.
func NewTracker(filePath string) (*Tracker, error) {
	state := &model.WatchState{Signals: map[string]model.SignalMark{}}
	if filePath != "" {
		var err error
		if state, err = LoadState(filePath); err != nil {
			return nil, err
		}
		log.Printf("[INFO] loaded %d tracked signals from %s", len(state.Signals), filePath)
	}
	return &Tracker{state: state, filePath: filePath, now: time.Now}, nil
}

// Observe records the current signal and reports the previous one. changed is
// false on the first observation of a symbol.
func (t *Tracker) Observe(symbol string, signal model.Signal, trend model.Trend) (prev model.Signal, changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old, seen := t.state.Signals[symbol]
	t.state.Signals[symbol] = model.SignalMark{Signal: signal, Trend: trend, At: t.now()}
	if seen && old.Signal == signal && old.Trend == trend {
		return old.Signal, false
	}
	t.save()
	return old.Signal, seen && old.Signal != signal
}

// Get returns the last signal recorded for symbol.
func (t *Tracker) Get(symbol string) (model.SignalMark, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.state.Signals[symbol]
	return m, ok
}

// Symbols returns every tracked symbol, sorted.
func (t *Tracker) Symbols() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.state.Signals))
	for s := range t.state.Signals {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// save must be called with mu held.
func (t *Tracker) save() {
	if t.filePath == "" {
		return
	}
	if err := SaveState(t.filePath, t.state); err != nil {
		log.Printf("[ERROR] save watch state: %v", err)
	}
}
