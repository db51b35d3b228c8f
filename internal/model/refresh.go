package model

import "time"

// RefreshEvent records one upstream refresh attempt.
type RefreshEvent struct {
	RunID    string        `json:"runId,omitempty"`
	Symbol   string        `json:"symbol"`
	Kind     Kind          `json:"kind"`
	Source   string        `json:"source"`
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Bars     int           `json:"bars"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

// BatchResult summarizes one batch refresh run.
type BatchResult struct {
	RunID    string        `json:"runId"`
	Symbols  int           `json:"symbols"`
	Failed   []string      `json:"failed,omitempty"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}
