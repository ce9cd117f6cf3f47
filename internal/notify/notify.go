// Package notify fans alert events out to the configured sinks. Delivery
// is best effort: a sink failure is logged and never blocks or fails the
// detection cycle that produced the alert.
package notify

import (
	"log"

	"github.com/openlews/openlews/internal/database"
)

// Event distinguishes the two moments a sink hears about an alert
type Event string

const (
	EventCreated   Event = "created"
	EventEscalated Event = "escalated"
)

// Notifier delivers one alert event to a sink
type Notifier interface {
	Notify(event Event, alert *database.Alert)
}

// LogNotifier writes alert events to the application log. Always wired,
// so every alert leaves a trace even with no external sinks configured.
type LogNotifier struct{}

// Notify implements Notifier
func (LogNotifier) Notify(event Event, alert *database.Alert) {
	log.Printf("ALERT %s: %s level=%s confidence=%.2f identity=%s location=%.4f,%.4f",
		event, alert.UID, alert.RiskLevel, alert.Confidence,
		alert.Identity, alert.Latitude, alert.Longitude)
}

// Multi fans one event out to several sinks in order
type Multi []Notifier

// Notify implements Notifier
func (m Multi) Notify(event Event, alert *database.Alert) {
	for _, n := range m {
		n.Notify(event, alert)
	}
}
