package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"QuantSentinel/internal/apperrors"
	"QuantSentinel/internal/model"
)

// GatewaySource reads bars and quotes from a brokerage market-data gateway
// over its REST API. Symbols are passed through as given (e.g. "US.AAPL").
type GatewaySource struct {
	BaseURL        string
	APIKey         string
	Client         *http.Client
	ConnectTimeout time.Duration
	link           *link
}

// NewGatewaySource creates a gateway client with optional proxy support.
func NewGatewaySource(baseURL, apiKey, proxyURL string, connectTimeout, reconnectInterval time.Duration) *GatewaySource {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if connectTimeout <= 0 {
		connectTimeout = 3 * time.Second
	}
	return &GatewaySource{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		ConnectTimeout: connectTimeout,
		link:           newLink(reconnectInterval),
	}
}

func (g *GatewaySource) Name() string { return "gateway" }

// gwBar is the JSON shape of one daily bar.
type gwBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type gwQuote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previousClose"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        float64 `json:"volume"`
	High52w       float64 `json:"high52w"`
	Low52w        float64 `json:"low52w"`
	Timestamp     int64   `json:"timestamp"`
}

// Connect pings the gateway within ConnectTimeout and records the outcome.
func (g *GatewaySource) Connect(ctx context.Context) error {
	err := g.ping(ctx)
	g.link.set(err)
	return err
}

// IsConnected reports the connection state, re-pinging a down gateway at most
// once per reconnect interval.
func (g *GatewaySource) IsConnected() bool {
	return g.link.check(func() error { return g.ping(context.Background()) })
}

func (g *GatewaySource) Status() Status {
	return g.link.status(g.Name(), g.BaseURL)
}

func (g *GatewaySource) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.ConnectTimeout)
	defer cancel()
	resp, err := g.get(ctx, g.BaseURL+"/api/v1/ping")
	if err != nil {
		return fmt.Errorf("gateway ping: %w: %w", apperrors.ErrNotConnected, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway ping: status %d: %w", resp.StatusCode, apperrors.ErrNotConnected)
	}
	return nil
}

func (g *GatewaySource) FetchSeries(ctx context.Context, symbol string, count int) ([]model.PriceBar, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?symbol=%s&limit=%d", g.BaseURL, url.QueryEscape(symbol), count)
	resp, err := g.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch bars: status %d, body: %s", resp.StatusCode, string(body))
	}
	var raw []gwBar
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	bars := make([]model.PriceBar, len(raw))
	for i, b := range raw {
		bars[i] = model.PriceBar{
			Time:   time.Unix(b.Timestamp, 0).UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if count > 0 && len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	return bars, nil
}

func (g *GatewaySource) FetchLatest(ctx context.Context, symbol string) (*model.Quote, error) {
	endpoint := fmt.Sprintf("%s/api/v1/quote?symbol=%s", g.BaseURL, url.QueryEscape(symbol))
	resp, err := g.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch quote: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch quote: status %d", resp.StatusCode)
	}
	var q gwQuote
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	if q.Price == 0 {
		return nil, nil
	}
	out := &model.Quote{
		Symbol:        q.Symbol,
		Name:          q.Name,
		CurrentPrice:  q.Price,
		PreviousClose: q.PreviousClose,
		Open:          q.Open,
		High:          q.High,
		Low:           q.Low,
		Volume:        q.Volume,
		High52w:       q.High52w,
		Low52w:        q.Low52w,
		Time:          time.Unix(q.Timestamp, 0).UTC(),
	}
	if q.PreviousClose != 0 {
		out.ChangePercent = (q.Price - q.PreviousClose) / q.PreviousClose * 100
	}
	return out, nil
}

// get issues an authenticated GET. Transport failures mark the link down.
func (g *GatewaySource) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if g.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.APIKey)
	}
	resp, err := g.Client.Do(req)
	if err != nil && ctx.Err() == nil {
		g.link.set(err)
	}
	return resp, err
}
