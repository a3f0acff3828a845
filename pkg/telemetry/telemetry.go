// Package telemetry records local, anonymous feature-usage events. Nothing
// it writes ever leaves the host: events carry a feature name, an action,
// and a handful of non-identifying boolean context flags, nothing else.
//
// Recording is gated by config.Enabled("telemetry"); callers are expected
// to check that themselves before calling Record so a disabled recorder
// never even opens a file.
package telemetry

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RetentionDays is how long daily event files are kept before Prune removes
// them.
const RetentionDays = 30

// maxDailyFileMB caps an individual day's event file via lumberjack before
// it rolls a backup; event volume from a single-node CLI is small, this is
// a safety net rather than an expected steady state.
const maxDailyFileMB = 10

// Event is one recorded occurrence, appended as a single line of JSON to
// the current day's file.
type Event struct {
	Timestamp    time.Time       `json:"ts"`
	Feature      string          `json:"feature"`
	Action       string          `json:"action"`
	ContextFlags map[string]bool `json:"context_flags,omitempty"`
}

// Recorder appends events to <stateDir>/telemetry/<YYYY-MM-DD>.json, one
// JSON object per line. A new lumberjack.Logger is opened per distinct date
// so each day gets its own file and its own size cap; lumberjack itself
// only knows how to rotate one fixed filename, so Recorder swaps the
// underlying logger when the date rolls over.
type Recorder struct {
	mu     sync.Mutex
	dir    string
	now    func() time.Time
	date   string
	logger *lumberjack.Logger
}

// New creates a Recorder writing under stateDir/telemetry.
func New(stateDir string) *Recorder {
	return &Recorder{
		dir: filepath.Join(stateDir, "telemetry"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Record appends one event to today's file, creating the telemetry
// directory and rolling to a new day's file as needed.
func (r *Recorder) Record(feature, action string, flags map[string]bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	date := now.Format("2006-01-02")
	if r.logger == nil || r.date != date {
		if err := os.MkdirAll(r.dir, 0o755); err != nil {
			return err
		}
		r.logger = &lumberjack.Logger{
			Filename: filepath.Join(r.dir, date+".json"),
			MaxSize:  maxDailyFileMB,
			MaxAge:   RetentionDays,
			Compress: false,
		}
		r.date = date
	}

	ev := Event{Timestamp: now, Feature: feature, Action: action, ContextFlags: flags}
	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = r.logger.Write(line)
	return err
}

// Close flushes and releases the current day's file handle.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.logger == nil {
		return nil
	}
	return r.logger.Close()
}

// ReadDay returns every event recorded on the given YYYY-MM-DD date, or nil
// if no file exists for that day.
func ReadDay(stateDir, date string) ([]Event, error) {
	path := filepath.Join(stateDir, "telemetry", date+".json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var events []Event
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// Prune removes daily event files older than RetentionDays, judged by the
// date encoded in the filename rather than filesystem mtime so a restored
// backup with a stale mtime is still pruned correctly.
func Prune(stateDir string, now time.Time) error {
	dir := filepath.Join(stateDir, "telemetry")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	cutoff := now.UTC().AddDate(0, 0, -RetentionDays)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		dateStr := strings.TrimSuffix(name, ".json")
		// lumberjack backup files look like 2024-01-02-2024-01-02T15-04-05.000.json
		dateStr = dateStr[:min(len(dateStr), 10)]
		day, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Dates returns every date (YYYY-MM-DD) with a recorded event file, sorted
// ascending.
func Dates(stateDir string) ([]string, error) {
	dir := filepath.Join(stateDir, "telemetry")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var dates []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		dates = append(dates, strings.TrimSuffix(name, ".json")[:10])
	}
	sort.Strings(dates)
	return dates, nil
}
