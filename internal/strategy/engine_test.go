package strategy

import (
	"testing"

	"QuantSentinel/internal/model"

	"github.com/shopspring/decimal"
)

func num(v string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(v), Valid: true}
}

var none = decimal.NullDecimal{}

func TestEvaluate_UptrendBuy(t *testing.T) {
	d := Evaluate(num("110"), num("100"), num("55"))
	if d.Trend != model.TrendUp {
		t.Errorf("expected UPTREND, got %s", d.Trend)
	}
	if d.Signal != model.SignalBuy {
		t.Errorf("expected BUY, got %s", d.Signal)
	}
	if d.Reason != "uptrend momentum" {
		t.Errorf("expected rule 'uptrend momentum', got %q", d.Reason)
	}
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		sma20, sma50 decimal.NullDecimal
		want         model.Trend
	}{
		{num("110"), num("100"), model.TrendUp},
		{num("90"), num("100"), model.TrendDown},
		{num("100.0000"), num("100"), model.TrendSideways},
		{none, num("100"), model.TrendUnknown},
		{num("100"), none, model.TrendUnknown},
		{none, none, model.TrendUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyTrend(tt.sma20, tt.sma50); got != tt.want {
			t.Errorf("ClassifyTrend(%v, %v) = %s, want %s", tt.sma20, tt.sma50, got, tt.want)
		}
	}
}

func TestGenerateSignal_DecisionList(t *testing.T) {
	tests := []struct {
		name  string
		rsi   decimal.NullDecimal
		trend model.Trend
		want  model.Signal
	}{
		{"null rsi", none, model.TrendUp, model.SignalHold},
		{"unknown trend beats overbought", num("90"), model.TrendUnknown, model.SignalHold},
		{"overbought in uptrend", num("75"), model.TrendUp, model.SignalSell},
		{"overbought boundary", num("70"), model.TrendSideways, model.SignalHold},
		{"oversold in downtrend", num("25"), model.TrendDown, model.SignalBuy},
		{"oversold boundary", num("30"), model.TrendSideways, model.SignalHold},
		{"uptrend above 50", num("50.01"), model.TrendUp, model.SignalBuy},
		{"uptrend at 50", num("50"), model.TrendUp, model.SignalHold},
		{"uptrend below 50", num("45"), model.TrendUp, model.SignalHold},
		{"downtrend below 50", num("49.99"), model.TrendDown, model.SignalSell},
		{"downtrend at 50", num("50"), model.TrendDown, model.SignalHold},
		{"downtrend above 50", num("60"), model.TrendDown, model.SignalHold},
		{"sideways", num("55"), model.TrendSideways, model.SignalHold},
		{"rsi 100", num("100"), model.TrendUp, model.SignalSell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := GenerateSignal(tt.rsi, tt.trend)
			if got != tt.want {
				t.Errorf("expected %s, got %s (%s)", tt.want, got, reason)
			}
			if reason == "" {
				t.Error("expected a reason")
			}
		})
	}
}

func TestRules_Order(t *testing.T) {
	want := []string{"overbought", "oversold", "uptrend momentum", "downtrend momentum"}
	if len(Rules) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(Rules))
	}
	for i, r := range Rules {
		if r.Name != want[i] {
			t.Errorf("rule %d: expected %q, got %q", i, want[i], r.Name)
		}
	}
}
