// Package telemetry appends planning events to a CSV file for offline
// analysis. The logger is safe for concurrent append and creates its
// directory and header on first use.
package telemetry

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// DefaultEventFields is the column set every event row carries, in order.
var DefaultEventFields = []string{
	"timestamp",
	"event",
	"region",
	"cluster_id",
	"scheduled_jobs",
	"flex_offers",
	"carbon_penalty_weight",
	"sla_penalty_weight",
	"max_power_kw",
	"detail",
}

// Event is one planning-cycle telemetry record.
type Event struct {
	Name                string
	Region              string
	ClusterID           string
	ScheduledJobs       int
	FlexOffers          int
	CarbonPenaltyWeight float64
	SLAPenaltyWeight    float64
	MaxPowerKW          float64
	Detail              string
}

// CsvEventLogger appends events to a CSV file, writing the header when the
// file is created.
type CsvEventLogger struct {
	path string
	mu   sync.Mutex
}

// NewCsvEventLogger returns a logger for path. Nothing is touched on disk
// until the first event.
func NewCsvEventLogger(path string) *CsvEventLogger {
	return &CsvEventLogger{path: path}
}

// Log appends one event row. Failures are logged and swallowed; telemetry
// never fails a planning cycle.
func (l *CsvEventLogger) Log(event Event) {
	if l == nil || l.path == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.append(event); err != nil {
		klog.ErrorS(err, "Failed to write telemetry event", "path", l.path, "event", event.Name)
	}
}

func (l *CsvEventLogger) append(event Event) error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create telemetry directory: %v", err)
		}
	}

	needHeader := false
	if info, err := os.Stat(l.path); os.IsNotExist(err) || (err == nil && info.Size() == 0) {
		needHeader = true
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open telemetry file: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(DefaultEventFields); err != nil {
			return err
		}
	}
	if err := w.Write([]string{
		nowISO(),
		event.Name,
		event.Region,
		event.ClusterID,
		fmt.Sprintf("%d", event.ScheduledJobs),
		fmt.Sprintf("%d", event.FlexOffers),
		fmt.Sprintf("%g", event.CarbonPenaltyWeight),
		fmt.Sprintf("%g", event.SLAPenaltyWeight),
		fmt.Sprintf("%g", event.MaxPowerKW),
		event.Detail,
	}); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
