package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"QuantSentinel/internal/collector"
	"QuantSentinel/internal/model"

	"github.com/shopspring/decimal"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []string
	failures int
	updates  [][]map[string]any
	onEmpty  func()
}

func (f *fakeBot) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if f.failures > 0 {
				f.failures--
				http.Error(w, "flood", http.StatusTooManyRequests)
				return
			}
			var p map[string]string
			if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
				t.Errorf("decode payload: %v", err)
			}
			if p["parse_mode"] != "HTML" || p["chat_id"] != "42" {
				t.Errorf("unexpected payload %v", p)
			}
			f.sent = append(f.sent, p["text"])
			w.Write([]byte(`{"ok":true}`))
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			var batch []map[string]any
			if len(f.updates) > 0 {
				batch, f.updates = f.updates[0], f.updates[1:]
			} else if f.onEmpty != nil {
				f.onEmpty()
			}
			json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": batch})
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestNotifier(t *testing.T, bot *fakeBot) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(bot.handler(t))
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("token", "42", "")
	n.BaseURL = srv.URL
	n.Backoff = time.Millisecond
	return n
}

func TestSendWithRetry(t *testing.T) {
	bot := &fakeBot{failures: 2}
	n := newTestNotifier(t, bot)

	if err := n.SendWithRetry(context.Background(), "hello", 3); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(bot.sent) != 1 || bot.sent[0] != "hello" {
		t.Errorf("unexpected sent %v", bot.sent)
	}

	bot.failures = 10
	if err := n.SendWithRetry(context.Background(), "again", 1); err == nil {
		t.Error("expected error once retries are exhausted")
	}
}

func TestStartPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := func(id int, chat int64, text string) map[string]any {
		return map[string]any{"update_id": id, "message": map[string]any{"text": text, "chat": map[string]any{"id": chat}}}
	}
	bot := &fakeBot{
		updates: [][]map[string]any{{msg(1, 42, " /status "), msg(2, 7, "/status"), {"update_id": 3}}},
		onEmpty: cancel,
	}
	n := newTestNotifier(t, bot)

	var got []string
	n.StartPolling(ctx, func(_ context.Context, cmd string) string {
		got = append(got, cmd)
		return "ok: " + cmd
	})

	if len(got) != 1 || got[0] != "/status" {
		t.Errorf("expected one handled command, got %v", got)
	}
	if len(bot.sent) != 1 || bot.sent[0] != "ok: /status" {
		t.Errorf("unexpected replies %v", bot.sent)
	}
}

func TestFormatReport(t *testing.T) {
	r := model.NewAnalysisReport("AAPL", time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC))
	r.Indicators[model.IndicatorSMA20] = decimal.NewNullDecimal(decimal.RequireFromString("149.5"))
	r.Indicators[model.IndicatorRSI14] = decimal.NewNullDecimal(decimal.NewFromInt(100))
	r.Trend, r.Signal, r.SignalReason = model.TrendUp, model.SignalSell, "RSI overbought"
	r.Source = "gateway"
	r.Error = "SMA_50: <bad>"

	out := FormatReport(r)
	for _, want := range []string{"<b>AAPL</b>", "SELL", "UPTREND", "SMA20: 149.5", "SMA50: n/a", "RSI14: 100", "source: gateway", "&lt;bad&gt;"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	alert := FormatSignalChange(model.SignalHold, r)
	if !strings.Contains(alert, "HOLD → 🔴 SELL") {
		t.Errorf("unexpected alert:\n%s", alert)
	}
}

func TestFormatStatus(t *testing.T) {
	st := collector.Status{Source: "gateway", LastError: "dial tcp: refused"}
	out := FormatStatus(st, []string{"AAPL", "MSFT"}, model.BatchResult{})
	if !strings.Contains(out, "disconnected") || !strings.Contains(out, "No batch refresh yet") {
		t.Errorf("unexpected status:\n%s", out)
	}

	last := model.BatchResult{RunID: "r1", Symbols: 2, Failed: []string{"MSFT"}, Duration: 1500 * time.Millisecond, At: time.Now()}
	out = FormatStatus(collector.Status{Source: "gateway", Connected: true}, []string{"AAPL", "MSFT"}, last)
	if !strings.Contains(out, "connected") || !strings.Contains(out, "Failed: MSFT") || !strings.Contains(out, "1.5s") {
		t.Errorf("unexpected status:\n%s", out)
	}
}
