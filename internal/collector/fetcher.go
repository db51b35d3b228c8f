package collector

import (
	"context"
	"sync"
	"time"

	"QuantSentinel/internal/model"
)

// Source is a provider of price history and latest quotes.
// FetchSeries returns bars in chronological order.
type Source interface {
	Name() string
	FetchSeries(ctx context.Context, symbol string, count int) ([]model.PriceBar, error)
	FetchLatest(ctx context.Context, symbol string) (*model.Quote, error)
	IsConnected() bool
}

// Connector is implemented by sources that hold a connection which can be
// (re)established on demand.
type Connector interface {
	Connect(ctx context.Context) error
	Status() Status
}

// Status describes a live provider connection.
type Status struct {
	Source      string    `json:"source"`
	Connected   bool      `json:"connected"`
	Endpoint    string    `json:"endpoint,omitempty"`
	LastAttempt time.Time `json:"lastAttempt,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
}

// link tracks a provider connection. While down, IsConnected probes again at
// most once per retryEvery.
type link struct {
	mu          sync.Mutex
	up          bool
	lastAttempt time.Time
	lastErr     error
	retryEvery  time.Duration
	now         func() time.Time
}

func newLink(retryEvery time.Duration) *link {
	return &link{retryEvery: retryEvery, now: time.Now}
}

func (l *link) set(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastAttempt = l.now()
	l.lastErr = err
	l.up = err == nil
}

// check reports the link state, running probe first if the link is down and
// the retry interval has passed.
func (l *link) check(probe func() error) bool {
	l.mu.Lock()
	if l.up {
		l.mu.Unlock()
		return true
	}
	due := l.lastAttempt.IsZero() || l.now().Sub(l.lastAttempt) >= l.retryEvery
	l.mu.Unlock()
	if !due {
		return false
	}
	err := probe()
	l.set(err)
	return err == nil
}

func (l *link) status(source, endpoint string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := Status{Source: source, Connected: l.up, Endpoint: endpoint, LastAttempt: l.lastAttempt}
	if l.lastErr != nil {
		st.LastError = l.lastErr.Error()
	}
	return st
}
