package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"QuantSentinel/internal/calculator"
	"QuantSentinel/internal/model"
)

// YahooSource implements Source using the Yahoo Finance chart API.
type YahooSource struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
	link      *link
}

// NewYahooSource creates a new Yahoo Finance source.
func NewYahooSource(proxyURL string, reconnectInterval time.Duration) *YahooSource {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	l := newLink(reconnectInterval)
	l.up = true
	return &YahooSource{
		BaseURL: "https://query1.finance.yahoo.com",
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
		link: l,
	}
}

func (f *YahooSource) Name() string { return "yahoo" }

// IsConnected is optimistic: after a transport failure the source reports
// down until the reconnect interval passes.
func (f *YahooSource) IsConnected() bool {
	return f.link.check(func() error { return nil })
}

// Connect probes the chart endpoint with a one-day request.
func (f *YahooSource) Connect(ctx context.Context) error {
	_, _, err := f.fetchChart(ctx, "^GSPC", "1d", "1d")
	f.link.set(err)
	return err
}

func (f *YahooSource) Status() Status {
	return f.link.status(f.Name(), f.BaseURL)
}

var marketPrefixes = []string{"US.", "HK.", "SH.", "SZ."}

// yahooSymbol strips a market prefix such as "US." and applies SymbolMap.
func (f *YahooSource) yahooSymbol(symbol string) string {
	for _, p := range marketPrefixes {
		if strings.HasPrefix(symbol, p) {
			symbol = symbol[len(p):]
			break
		}
	}
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				LongName           string  `json:"longName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"chartPreviousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func at(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

type chartMeta struct {
	Symbol string
	Name   string
	Price  float64
}

func (f *YahooSource) fetchChart(ctx context.Context, symbol, interval, rng string) ([]model.PriceBar, chartMeta, error) {
	var meta chartMeta
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, meta, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			f.link.set(err)
		}
		return nil, meta, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, meta, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, meta, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, meta, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, meta, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, meta, nil
	}

	result := chart.Chart.Result[0]
	meta = chartMeta{Symbol: result.Meta.Symbol, Name: result.Meta.LongName, Price: result.Meta.RegularMarketPrice}
	quote := result.Indicators.Quote[0]
	bars := make([]model.PriceBar, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		c := at(quote.Close, i)
		if c == 0 {
			continue // null bars (holidays, halts)
		}
		bars = append(bars, model.PriceBar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   at(quote.Open, i),
			High:   at(quote.High, i),
			Low:    at(quote.Low, i),
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, meta, nil
}

// dailyRange picks the smallest chart range covering days trading days.
func dailyRange(days int) string {
	switch {
	case days <= 20:
		return "1mo"
	case days <= 60:
		return "3mo"
	case days <= 120:
		return "6mo"
	case days <= 250:
		return "1y"
	default:
		return "2y"
	}
}

func (f *YahooSource) FetchSeries(ctx context.Context, symbol string, count int) ([]model.PriceBar, error) {
	bars, _, err := f.fetchChart(ctx, symbol, "1d", dailyRange(count))
	if err != nil {
		return nil, err
	}
	if count > 0 && len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	return bars, nil
}

// FetchLatest derives a quote from one year of daily bars.
func (f *YahooSource) FetchLatest(ctx context.Context, symbol string) (*model.Quote, error) {
	bars, meta, err := f.fetchChart(ctx, symbol, "1d", "1y")
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, nil
	}
	q := QuoteFromSeries(model.NewSeries(symbol, bars))
	q.Name = meta.Name
	if meta.Price > 0 {
		q.CurrentPrice = meta.Price
		if q.PreviousClose != 0 {
			q.ChangePercent = (q.CurrentPrice - q.PreviousClose) / q.PreviousClose * 100
		}
	}
	return q, nil
}

// QuoteFromSeries builds the aggregate quote for the most recent bar.
// Returns nil for an empty series.
func QuoteFromSeries(s model.Series) *model.Quote {
	last, ok := s.Latest()
	if !ok {
		return nil
	}
	q := &model.Quote{
		Symbol:       s.Symbol(),
		CurrentPrice: last.Close,
		Open:         last.Open,
		High:         last.High,
		Low:          last.Low,
		Volume:       last.Volume,
		Time:         last.Time,
	}
	if s.Len() > 1 {
		q.PreviousClose = s.Bar(1).Close
		if q.PreviousClose != 0 {
			q.ChangePercent = (q.CurrentPrice - q.PreviousClose) / q.PreviousClose * 100
		}
	}
	if h, l, err := calculator.WindowRange(s, calculator.Days52Week); err == nil {
		q.High52w, q.Low52w = h, l
		if pos, err := calculator.RangePosition(q.CurrentPrice, h, l); err == nil {
			q.Position52w = pos
		}
	}
	return q
}
