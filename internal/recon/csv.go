package recon

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/delvicier/fixagent/pkg/models"
)

// csvHeaders returns the CSV column headers.
func csvHeaders() []string {
	return []string{
		"id", "mode", "status", "found_url", "probed", "total",
		"started_at", "ended_at", "error",
	}
}

// scanToCSVRow converts a session to a CSV row (matching csvHeaders order).
func scanToCSVRow(s models.ScanSession) []string {
	return []string{
		s.ID,
		s.Mode,
		s.Status,
		s.FoundURL,
		strconv.Itoa(s.Probed),
		strconv.Itoa(s.Total),
		s.StartedAt,
		s.EndedAt,
		s.Error,
	}
}

// WriteHistoryCSV writes scan sessions as CSV with a header row.
func WriteHistoryCSV(w io.Writer, scans []models.ScanSession) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeaders()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range scans {
		if err := cw.Write(scanToCSVRow(s)); err != nil {
			return fmt.Errorf("write csv row %s: %w", s.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
