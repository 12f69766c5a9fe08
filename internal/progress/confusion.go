// File: internal/progress/confusion.go
package progress

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// Severity grades a confusion report.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityBlocking Severity = "blocking"
)

// Valid reports whether s is one of the known grades.
func (s Severity) Valid() bool {
	switch s {
	case SeverityMinor, SeverityModerate, SeverityBlocking:
		return true
	}
	return false
}

// ConfusionRecord captures one confusing or broken spot on the platform.
type ConfusionRecord struct {
	Timestamp   string   `json:"timestamp"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Severity    Severity `json:"severity"`
}

// ConfusionLog accumulates reports in memory for the run and is flushed to
// disk once at shutdown. Unlike the progress store this data is diagnostic,
// not resumption-critical, so it does not pay the per-mutation write cost.
type ConfusionLog struct {
	logger  *zap.Logger
	entries []ConfusionRecord
	now     func() time.Time
}

// NewConfusionLog creates an empty log.
func NewConfusionLog(logger *zap.Logger) *ConfusionLog {
	return &ConfusionLog{
		logger: logger.Named("confusion"),
		now:    time.Now,
	}
}

// Note records a confusion report. An unknown severity falls back to
// moderate rather than rejecting the report; a lost report helps nobody.
func (c *ConfusionLog) Note(description, location string, severity Severity) ConfusionRecord {
	if !severity.Valid() {
		severity = SeverityModerate
	}
	if location == "" {
		location = "unknown location"
	}
	record := ConfusionRecord{
		Timestamp:   c.now().Format(time.RFC3339),
		Description: description,
		Location:    location,
		Severity:    severity,
	}
	c.entries = append(c.entries, record)
	c.logger.Warn("Confusion logged",
		zap.String("severity", string(severity)),
		zap.String("description", description),
		zap.String("location", location),
	)
	return record
}

// Len reports the number of accumulated records.
func (c *ConfusionLog) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the accumulated records.
func (c *ConfusionLog) Entries() []ConfusionRecord {
	out := make([]ConfusionRecord, len(c.entries))
	copy(out, c.entries)
	return out
}

// Flush writes all records to path. A run with nothing to report leaves no
// file behind.
func (c *ConfusionLog) Flush(path string) error {
	if len(c.entries) == 0 {
		return nil
	}
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal confusion log: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write confusion log: %w", err)
	}
	c.logger.Info("Confusion log flushed", zap.String("path", path), zap.Int("entries", len(c.entries)))
	return nil
}
