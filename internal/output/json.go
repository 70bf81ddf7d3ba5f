package output

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/anstrom/portscout/internal/scan"
)

// The JSON document shape is part of the tool's output contract;
// renaming fields breaks downstream consumers.

type jsonReport struct {
	RunID           string       `json:"run_id"`
	Targets         []string     `json:"targets"`
	Hosts           []string     `json:"hosts"`
	StartedAt       time.Time    `json:"started_at"`
	DurationSeconds float64      `json:"duration_seconds"`
	Canceled        bool         `json:"canceled,omitempty"`
	Summary         jsonSummary  `json:"summary"`
	Results         []jsonResult `json:"results"`
}

type jsonSummary struct {
	TotalPorts int `json:"total_ports"`
	Open       int `json:"open"`
	Closed     int `json:"closed"`
	Filtered   int `json:"filtered"`
}

type jsonResult struct {
	Host           string  `json:"host"`
	Port           int     `json:"port"`
	State          string  `json:"state"`
	Service        string  `json:"service,omitempty"`
	Banner         string  `json:"banner,omitempty"`
	Detail         string  `json:"detail,omitempty"`
	ResponseTimeMs float64 `json:"response_time_ms"`
}

// WriteJSON exports the full report as an indented JSON document.
func WriteJSON(w io.Writer, report *scan.Report) error {
	doc := jsonReport{
		RunID:           report.RunID,
		Targets:         report.Targets,
		Hosts:           report.Hosts,
		StartedAt:       report.StartedAt.UTC(),
		DurationSeconds: roundTo(report.Duration.Seconds(), 3),
		Canceled:        report.Canceled,
		Summary: jsonSummary{
			TotalPorts: report.Summary.TotalProbes,
			Open:       report.Summary.Open,
			Closed:     report.Summary.Closed,
			Filtered:   report.Summary.Filtered,
		},
		Results: make([]jsonResult, 0, len(report.Results)),
	}

	for i := range report.Results {
		result := &report.Results[i]
		doc.Results = append(doc.Results, jsonResult{
			Host:           result.Host,
			Port:           result.Port,
			State:          string(result.State),
			Service:        ServiceName(result.Port),
			Banner:         result.Banner,
			Detail:         result.Detail,
			ResponseTimeMs: roundTo(float64(result.Duration)/float64(time.Millisecond), 2),
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func roundTo(v float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(v*shift) / shift
}
