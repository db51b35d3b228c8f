package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"QuantSentinel/internal/collector"
	"QuantSentinel/internal/model"

	"github.com/shopspring/decimal"
)

var signalIcon = map[model.Signal]string{
	model.SignalBuy:  "🟢",
	model.SignalSell: "🔴",
	model.SignalHold: "⚪",
}

func val(d decimal.NullDecimal) string {
	if !d.Valid {
		return "n/a"
	}
	return d.Decimal.String()
}

// FormatReport formats an analysis report into a Telegram message.
func FormatReport(r *model.AnalysisReport) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s\n\n", html.EscapeString(r.Symbol), r.ComputedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("%s <b>%s</b> | %s\n", signalIcon[r.Signal], r.Signal, r.Trend))
	if r.SignalReason != "" {
		b.WriteString(fmt.Sprintf("   %s\n", html.EscapeString(r.SignalReason)))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("SMA20: %s | SMA50: %s\n", val(r.Value(model.IndicatorSMA20)), val(r.Value(model.IndicatorSMA50))))
	b.WriteString(fmt.Sprintf("EMA12: %s | EMA26: %s\n", val(r.Value(model.IndicatorEMA12)), val(r.Value(model.IndicatorEMA26))))
	b.WriteString(fmt.Sprintf("RSI14: %s\n", val(r.Value(model.IndicatorRSI14))))
	b.WriteString(fmt.Sprintf("MACD: %s / %s / %s\n",
		val(r.Value(model.IndicatorMACD)), val(r.Value(model.IndicatorMACDSignal)), val(r.Value(model.IndicatorMACDHistogram))))
	b.WriteString(fmt.Sprintf("BB: %s / %s / %s\n",
		val(r.Value(model.IndicatorBBUpper)), val(r.Value(model.IndicatorBBMiddle)), val(r.Value(model.IndicatorBBLower))))

	if r.Source != "" {
		b.WriteString(fmt.Sprintf("\nsource: %s", r.Source))
		if !r.DataAsOf.IsZero() {
			b.WriteString(fmt.Sprintf(" (as of %s)", r.DataAsOf.Format("2006-01-02")))
		}
		b.WriteString("\n")
	}
	if r.Error != "" {
		b.WriteString(fmt.Sprintf("\n⚠️ %s\n", html.EscapeString(r.Error)))
	}
	return b.String()
}

// FormatSignalChange formats an alert for a signal that moved since the last run.
func FormatSignalChange(prev model.Signal, r *model.AnalysisReport) string {
	return fmt.Sprintf("🔔 <b>Signal change</b> | %s: %s → %s %s\n\n%s",
		html.EscapeString(r.Symbol), prev, signalIcon[r.Signal], r.Signal, FormatReport(r))
}

// FormatStatus formats the live source state and the last batch run.
func FormatStatus(st collector.Status, watched []string, last model.BatchResult) string {
	var b strings.Builder
	b.WriteString("📡 <b>Status</b>\n\n")

	conn := "❌ disconnected"
	if st.Connected {
		conn = "✅ connected"
	}
	b.WriteString(fmt.Sprintf("Live source: %s (%s)\n", st.Source, conn))
	if st.LastError != "" {
		b.WriteString(fmt.Sprintf("Last error: %s\n", html.EscapeString(st.LastError)))
	}
	b.WriteString(fmt.Sprintf("Watching %d symbols: %s\n", len(watched), strings.Join(watched, ", ")))

	if last.RunID == "" {
		b.WriteString("No batch refresh yet\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("\nLast refresh: %s (%s, %d symbols)\n",
		last.At.Format("2006-01-02 15:04:05"), last.Duration.Round(time.Millisecond), last.Symbols))
	if len(last.Failed) > 0 {
		b.WriteString(fmt.Sprintf("Failed: %s\n", strings.Join(last.Failed, ", ")))
	}
	return b.String()
}

// FormatSignals lists the last signal of every tracked symbol.
func FormatSignals(marks map[string]model.SignalMark) string {
	if len(marks) == 0 {
		return "No signals recorded yet"
	}
	syms := make([]string, 0, len(marks))
	for s := range marks {
		syms = append(syms, s)
	}
	sort.Strings(syms)

	var b strings.Builder
	b.WriteString("🧭 <b>Signals</b>\n\n")
	for _, s := range syms {
		m := marks[s]
		b.WriteString(fmt.Sprintf("%s %s: %s (%s, %s)\n", signalIcon[m.Signal], s, m.Signal, m.Trend, m.At.Format("01-02 15:04")))
	}
	return b.String()
}

// Help lists the supported commands.
const Help = "Commands:\n• /analyze SYMBOL\n• /signals\n• /status"
