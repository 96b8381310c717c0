package epidata

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// ExportFileName returns the download name for a metric's export.
func ExportFileName(m Metric) string {
	return fmt.Sprintf("covid_data_%s.csv", m)
}

// ExportCSV writes the frame as location,date,<metric> with a header row,
// preserving row order.
func ExportCSV(frame Frame) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"location", "date", string(frame.Metric)}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range frame.Rows {
		record := []string{
			r.Location,
			r.Date.Format(DateLayout),
			strconv.FormatFloat(r.Value, 'f', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
