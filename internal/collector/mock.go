package collector

import (
	"context"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"QuantSentinel/internal/model"
)

// SimulatedSource stands in for a live feed. Bars are pseudo-random around
// BasePrice but deterministic for a given symbol and end date.
type SimulatedSource struct {
	BasePrice float64
	Now       func() time.Time
	connected atomic.Bool
}

// NewSimulatedSource returns a connected simulated source.
func NewSimulatedSource(basePrice float64) *SimulatedSource {
	if basePrice <= 0 {
		basePrice = 150
	}
	s := &SimulatedSource{BasePrice: basePrice, Now: time.Now}
	s.connected.Store(true)
	return s
}

func (s *SimulatedSource) Name() string      { return "simulated" }
func (s *SimulatedSource) IsConnected() bool { return s.connected.Load() }

func (s *SimulatedSource) Connect(_ context.Context) error {
	s.connected.Store(true)
	return nil
}

// Disconnect drops the simulated connection so callers fall back to local data.
func (s *SimulatedSource) Disconnect() { s.connected.Store(false) }

func (s *SimulatedSource) Status() Status {
	return Status{Source: s.Name(), Connected: s.IsConnected(), Endpoint: "simulated"}
}

func (s *SimulatedSource) rng(symbol string, day time.Time) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(symbol)))
	h.Write([]byte(day.Format("2006-01-02")))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func (s *SimulatedSource) FetchSeries(_ context.Context, symbol string, count int) ([]model.PriceBar, error) {
	if count <= 0 {
		return nil, nil
	}
	today := s.Now().UTC().Truncate(24 * time.Hour)
	r := s.rng(symbol, today)
	bars := make([]model.PriceBar, count)
	for i := 0; i < count; i++ {
		p := s.BasePrice * (1 + r.Float64()*0.05 - 0.025)
		bars[i] = model.PriceBar{
			Time:   today.AddDate(0, 0, -(count - 1 - i)),
			Open:   p * (0.995 + r.Float64()*0.01),
			High:   p * 1.01,
			Low:    p * 0.99,
			Close:  p,
			Volume: float64(500000 + r.Intn(5000000)),
		}
	}
	return bars, nil
}

func (s *SimulatedSource) FetchLatest(ctx context.Context, symbol string) (*model.Quote, error) {
	bars, err := s.FetchSeries(ctx, symbol, 2)
	if err != nil {
		return nil, err
	}
	q := QuoteFromSeries(model.NewSeries(symbol, bars))
	q.Name = companyName(symbol)
	return q, nil
}

func companyName(symbol string) string {
	sym := strings.ToUpper(symbol)
	if i := strings.LastIndexByte(sym, '.'); i >= 0 {
		sym = sym[i+1:]
	}
	switch sym {
	case "AAPL":
		return "Apple Inc."
	case "GOOGL":
		return "Alphabet Inc."
	case "MSFT":
		return "Microsoft Corporation"
	case "AMZN":
		return "Amazon.com Inc."
	case "TSLA":
		return "Tesla Inc."
	case "META":
		return "Meta Platforms Inc."
	case "NVDA":
		return "NVIDIA Corporation"
	default:
		return sym + " Corporation"
	}
}
