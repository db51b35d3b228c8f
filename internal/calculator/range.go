package calculator

import (
	"errors"
	"math"

	"QuantSentinel/internal/model"
)

// Trading-day windows.
const (
	Days52Week = 252
	Days30Day  = 22
)

// WindowRange scans the days most recent bars and returns the highest high and
// lowest low. A non-positive days scans the whole series.
func WindowRange(s model.Series, days int) (high, low float64, err error) {
	if s.Empty() {
		return 0, 0, errors.New("no bars provided")
	}
	n := s.Len()
	if days > 0 && days < n {
		n = days
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := 0; i < n; i++ {
		b := s.Bar(i)
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low, nil
}

// RangePosition returns where current sits within [low, high], clamped to 0..1.
func RangePosition(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	return math.Min(1, math.Max(0, (current-low)/(high-low))), nil
}
