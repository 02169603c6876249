package loadtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"cloudpose/internal/services/posesvc"
)

// Report summarizes one run.
type Report struct {
	Users      int
	SpawnRate  int
	Spawned    int
	Duration   time.Duration
	StartedAt  time.Time
	FinishedAt time.Time
	Endpoints  map[posesvc.Operation]EndpointStats
	Total      EndpointStats
}

// Row is one formatted line of a report table.
type Row struct {
	Name           string
	Requests       string
	Failures       string
	SuccessPercent string
	AvgResponseMS  string
	MinResponseMS  string
	MaxResponseMS  string
}

var printer = message.NewPrinter(language.English)

// Rows renders per-endpoint lines followed by the aggregate.
func (r Report) Rows() []Row {
	title := cases.Title(language.Und)
	rows := make([]Row, 0, len(r.Endpoints)+1)
	for _, op := range posesvc.Operations() {
		stats, ok := r.Endpoints[op]
		if !ok {
			continue
		}
		rows = append(rows, formatRow(title.String(string(op))+" "+op.Path(), stats))
	}
	rows = append(rows, formatRow("Aggregated", r.Total))
	return rows
}

func formatRow(name string, s EndpointStats) Row {
	return Row{
		Name:           name,
		Requests:       FormatCount(s.Requests),
		Failures:       FormatCount(s.Failures),
		SuccessPercent: printer.Sprintf("%.2f%%", s.SuccessPercent()),
		AvgResponseMS:  FormatMillis(s.AvgResponseMS()),
		MinResponseMS:  FormatMillis(durationMS(s.MinDuration)),
		MaxResponseMS:  FormatMillis(durationMS(s.MaxDuration)),
	}
}

// FormatCount renders an integer with locale grouping (12,345).
func FormatCount(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatMillis renders milliseconds with one decimal and grouping.
func FormatMillis(ms float64) string {
	return printer.Sprintf("%.1f", ms)
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// WriteCSV writes the report in the column layout of locust's stats export.
func (r Report) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	header := []string{"Name", "Request Count", "Failure Count", "Success %", "Average Response Time", "Min Response Time", "Max Response Time"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	write := func(name string, s EndpointStats) error {
		return writer.Write([]string{
			name,
			strconv.FormatInt(s.Requests, 10),
			strconv.FormatInt(s.Failures, 10),
			strconv.FormatFloat(s.SuccessPercent(), 'f', 2, 64),
			strconv.FormatFloat(s.AvgResponseMS(), 'f', 2, 64),
			strconv.FormatFloat(durationMS(s.MinDuration), 'f', 2, 64),
			strconv.FormatFloat(durationMS(s.MaxDuration), 'f', 2, 64),
		})
	}
	for _, op := range posesvc.Operations() {
		if stats, ok := r.Endpoints[op]; ok {
			if err := write(op.Path(), stats); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	if err := write("Aggregated", r.Total); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	writer.Flush()
	return writer.Error()
}
