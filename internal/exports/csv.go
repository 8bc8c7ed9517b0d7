package exports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"
)

// Row is one attendee line in the CSV export.
type Row struct {
	FullName string
	Email    string
	JoinedAt time.Time
	LeftAt   *time.Time
}

var csvHeader = []string{"Name", "Email", "Joined At", "Left At", "Duration Seconds"}

// BuildCSV renders attendee rows as CSV. Open intervals leave the "Left At"
// and duration columns empty.
func BuildCSV(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		leftAt, duration := "", ""
		if r.LeftAt != nil {
			leftAt = r.LeftAt.Format(time.RFC3339)
			secs := int64(r.LeftAt.Sub(r.JoinedAt) / time.Second)
			if secs < 0 {
				secs = 0
			}
			duration = strconv.FormatInt(secs, 10)
		}
		record := []string{r.FullName, r.Email, r.JoinedAt.Format(time.RFC3339), leftAt, duration}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
