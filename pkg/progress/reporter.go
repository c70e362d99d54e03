// Package progress carries run status out of the engine. The engine never
// mutates account state itself; it hands RunStatus values to a Reporter.
package progress

import (
	"time"

	log "github.com/sirupsen/logrus"

	"partnermetrics/pkg/models"
)

// Reporter receives a status update after each ingestion chunk and each
// computed date, plus the terminal "Complete"/"Failed" updates.
type Reporter interface {
	Update(status models.RunStatus)
}

// Nop discards updates.
type Nop struct{}

func (Nop) Update(models.RunStatus) {}

// Log writes every update through logrus with the run's fields attached.
type Log struct {
	Entry *log.Entry
}

func NewLog(entry *log.Entry) *Log {
	return &Log{Entry: entry}
}

func (l *Log) Update(status models.RunStatus) {
	l.Entry.WithFields(log.Fields{
		"status":  status.Status,
		"percent": status.Percent,
	}).Info("progress")
}

// Status builds a RunStatus stamped with the current time.
func Status(text string, percent int) models.RunStatus {
	return models.RunStatus{Status: text, Percent: percent, UpdatedAt: time.Now().UTC()}
}

// Multi fans one update out to several reporters.
type Multi []Reporter

func (m Multi) Update(status models.RunStatus) {
	for _, r := range m {
		r.Update(status)
	}
}
