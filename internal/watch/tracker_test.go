package watch

import (
	"os"
	"path/filepath"
	"testing"

	"QuantSentinel/internal/model"
)

func TestTracker_Observe(t *testing.T) {
	tr, err := NewTracker("")
	if err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		signal      model.Signal
		trend       model.Trend
		wantPrev    model.Signal
		wantChanged bool
	}{
		{model.SignalHold, model.TrendSideways, "", false},
		{model.SignalHold, model.TrendSideways, model.SignalHold, false},
		{model.SignalHold, model.TrendUp, model.SignalHold, false},
		{model.SignalBuy, model.TrendUp, model.SignalHold, true},
		{model.SignalSell, model.TrendUp, model.SignalBuy, true},
	}
	for i, s := range steps {
		prev, changed := tr.Observe("AAPL", s.signal, s.trend)
		if prev != s.wantPrev || changed != s.wantChanged {
			t.Errorf("step %d: got (%q, %v), want (%q, %v)", i, prev, changed, s.wantPrev, s.wantChanged)
		}
	}
	if m, ok := tr.Get("AAPL"); !ok || m.Signal != model.SignalSell {
		t.Errorf("unexpected mark %+v", m)
	}
}

func TestTracker_PersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "signals.json")

	tr, err := NewTracker(path)
	if err != nil {
		t.Fatal(err)
	}
	tr.Observe("MSFT", model.SignalBuy, model.TrendUp)
	tr.Observe("AAPL", model.SignalHold, model.TrendSideways)

	reopened, err := NewTracker(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := reopened.Symbols(); len(got) != 2 || got[0] != "AAPL" {
		t.Errorf("unexpected symbols %v", got)
	}
	if _, changed := reopened.Observe("MSFT", model.SignalSell, model.TrendUp); !changed {
		t.Error("expected a change against the persisted signal")
	}
}

func TestLoadState(t *testing.T) {
	dir := t.TempDir()

	st, err := LoadState(filepath.Join(dir, "missing.json"))
	if err != nil || st.Signals == nil || len(st.Signals) != 0 {
		t.Errorf("expected empty state, got %+v %v", st, err)
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{"), 0o644)
	if _, err := LoadState(bad); err == nil {
		t.Error("expected decode error")
	}
	if _, err := NewTracker(bad); err == nil {
		t.Error("expected tracker to surface decode error")
	}
}
