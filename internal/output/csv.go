package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/anstrom/portscout/internal/scan"
)

var csvHeader = []string{"host", "port", "state", "service", "banner", "response_time_ms"}

// WriteCSV exports every result as one CSV row. Quoting and escaping
// follow RFC 4180 via the standard encoder.
func WriteCSV(w io.Writer, report *scan.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for i := range report.Results {
		result := &report.Results[i]
		ms := roundTo(float64(result.Duration)/float64(time.Millisecond), 2)
		row := []string{
			result.Host,
			strconv.Itoa(result.Port),
			string(result.State),
			ServiceName(result.Port),
			result.Banner,
			strconv.FormatFloat(ms, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
