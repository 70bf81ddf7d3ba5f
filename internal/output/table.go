// Package output renders completed scan reports for terminals and
// exports them as JSON or CSV documents. Renderers consume reports
// produced by the scan engine and hold no scanning logic of their own.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/anstrom/portscout/internal/probe"
	"github.com/anstrom/portscout/internal/scan"
)

const (
	bannerDisplayMax = 48
	summaryRuleWidth = 60
)

// Options control how the terminal renderers present a report.
type Options struct {
	// ShowClosed includes closed ports in the results table. Filtered
	// ports are always shown.
	ShowClosed bool
	// Color enables per-state cell coloring. Escape codes degrade to
	// plain text automatically when stdout is not a terminal.
	Color bool
}

var (
	openColor     = color.New(color.FgGreen, color.Bold)
	closedColor   = color.New(color.FgRed)
	filteredColor = color.New(color.FgYellow)
	boldColor     = color.New(color.Bold)
)

// WriteTable renders the results table followed by the summary block.
func WriteTable(w io.Writer, report *scan.Report, opts Options) {
	table := tablewriter.NewWriter(w)
	table.Header("Host", "Port", "State", "Service", "Time", "Banner")

	for i := range report.Results {
		result := &report.Results[i]
		if result.State == probe.StateClosed && !opts.ShowClosed {
			continue
		}
		_ = table.Append([]string{
			result.Host,
			fmt.Sprintf("%d/tcp", result.Port),
			stateCell(result.State, opts.Color),
			serviceCell(result.Port),
			FormatDuration(result.Duration),
			infoCell(result),
		})
	}

	_ = table.Render()
	writeSummary(w, report, opts)
}

func stateCell(state probe.State, colored bool) string {
	text := strings.ToUpper(string(state))
	if !colored {
		return text
	}
	switch state {
	case probe.StateOpen:
		return openColor.Sprint(text)
	case probe.StateClosed:
		return closedColor.Sprint(text)
	default:
		return filteredColor.Sprint(text)
	}
}

func serviceCell(port int) string {
	if name := ServiceName(port); name != "" {
		return name
	}
	return "-"
}

// infoCell picks the banner for open ports and the diagnostic detail
// for filtered ones, truncated to keep rows on one line.
func infoCell(result *probe.Result) string {
	text := result.Banner
	if text == "" && result.State == probe.StateFiltered {
		text = result.Detail
	}
	if len(text) > bannerDisplayMax {
		text = text[:bannerDisplayMax-3] + "..."
	}
	return text
}

// writeSummary prints the closing block with per-state counts, the
// per-host open ports, and the run duration.
func writeSummary(w io.Writer, report *scan.Report, opts Options) {
	sprint := func(c *color.Color, s string) string {
		if opts.Color {
			return c.Sprint(s)
		}
		return s
	}

	rule := strings.Repeat("=", summaryRuleWidth)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	heading := "SCAN COMPLETE"
	if report.Canceled {
		heading = "SCAN INTERRUPTED (partial results)"
	}
	fmt.Fprintln(w, sprint(boldColor, heading))
	fmt.Fprintln(w, strings.Repeat("-", summaryRuleWidth))

	if len(report.Hosts) > 1 {
		fmt.Fprintf(w, "  Hosts scanned:    %d\n", len(report.Hosts))
	}
	fmt.Fprintf(w, "  Ports probed:     %d\n", report.Summary.TotalProbes)
	fmt.Fprintf(w, "  %s       %d\n", sprint(openColor, "Open ports:"), report.Summary.Open)
	if report.Summary.Filtered > 0 {
		fmt.Fprintf(w, "  %s   %d\n", sprint(filteredColor, "Filtered ports:"), report.Summary.Filtered)
	}
	if opts.ShowClosed {
		fmt.Fprintf(w, "  Closed ports:     %d\n", report.Summary.Closed)
	}
	for _, finding := range report.Summary.Findings {
		fmt.Fprintf(w, "  %s: %s\n", finding.Host, joinPorts(finding.OpenPorts))
	}
	fmt.Fprintf(w, "  Scan duration:    %s\n", FormatDuration(report.Duration))
	fmt.Fprintln(w, rule)
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ", ")
}

// FormatDuration renders a duration the way scan output expects it:
// sub-second values in milliseconds, then seconds, minutes and hours.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d < time.Hour:
		minutes := int(d.Minutes())
		seconds := d.Seconds() - float64(minutes)*60
		return fmt.Sprintf("%dm %.1fs", minutes, seconds)
	default:
		hours := int(d.Hours())
		minutes := int(d.Minutes()) - hours*60
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
}
