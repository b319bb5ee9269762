// Package audit records key lifecycle events. The library packages never
// log on their own; callers install a Sink to observe generation, rotation,
// deletion, protection changes, and restores.
package audit

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Outcome is the result of an audited operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event describes one key lifecycle operation.
type Event struct {
	Time       time.Time
	Operation  string
	KeyType    string
	Identifier string
	Outcome    Outcome
	Detail     string
}

// Sink receives audit events. Implementations must be safe for concurrent
// use.
type Sink interface {
	Record(event Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(Event) {}

type logrusSink struct {
	log *logrus.Logger
}

// NewLogrusSink returns a Sink that writes one structured JSON line per
// event to out.
func NewLogrusSink(out io.Writer) Sink {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.JSONFormatter{})
	return &logrusSink{log: log}
}

func (s *logrusSink) Record(event Event) {
	entry := s.log.WithFields(logrus.Fields{
		"operation":  event.Operation,
		"key_type":   event.KeyType,
		"identifier": event.Identifier,
		"outcome":    event.Outcome,
	})
	if !event.Time.IsZero() {
		entry = entry.WithField("at", event.Time.UTC().Format(time.RFC3339Nano))
	}
	if event.Detail != "" {
		entry = entry.WithField("detail", event.Detail)
	}
	if event.Outcome == OutcomeFailure {
		entry.Warn("key lifecycle event")
		return
	}
	entry.Info("key lifecycle event")
}
