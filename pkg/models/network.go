package models

import "time"

// ProbeResult is the outcome of one reachability check against a
// candidate base URL.
type ProbeResult struct {
	CandidateURL string    `json:"candidate_url"`
	Reachable    bool      `json:"reachable"`
	StatusCode   int       `json:"status_code,omitempty"`
	LatencyMs    float64   `json:"latency_ms"`
	Error        string    `json:"error,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// ScanSession is the persisted record of one discovery attempt.
type ScanSession struct {
	ID        string `json:"id"`
	Mode      string `json:"mode"`
	Status    string `json:"status"`
	FoundURL  string `json:"found_url,omitempty"`
	Total     int    `json:"total"`
	Probed    int    `json:"probed"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
	Error     string `json:"error,omitempty"`
}
