package recon

import "time"

// Event topics published by the scanner.
const (
	TopicScanStarted   = "recon.scan.started"
	TopicScanProgress  = "recon.scan.progress"
	TopicScanCompleted = "recon.scan.completed"
)

// ScanStartedEvent is the payload for TopicScanStarted events.
type ScanStartedEvent struct {
	SessionID string    `json:"session_id"`
	Mode      Mode      `json:"mode"`
	Total     int       `json:"total"`
	StartedAt time.Time `json:"started_at"`
}

// Progress is the payload for TopicScanProgress events. Current is the
// first candidate of the batch just finished (fast) or the candidate
// about to be probed (deep).
type Progress struct {
	SessionID string `json:"session_id"`
	Mode      Mode   `json:"mode"`
	Current   string `json:"current"`
	Done      int    `json:"done"`
	Total     int    `json:"total"`
}
