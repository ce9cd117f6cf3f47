package jobs

import (
	"log"
	"time"

	"github.com/openlews/openlews/internal/database"
)

// ExpiryCheckInterval is how often the expiry sweep runs.
const ExpiryCheckInterval = 10 * time.Minute

// ExpiryMonitor sweeps active alerts whose TTL has passed. Expiry is the
// only way an alert's warning winds down; levels never move back down in
// place.
type ExpiryMonitor struct {
	alerts *database.AlertStore
}

// NewExpiryMonitor creates an expiry monitor
func NewExpiryMonitor(alerts *database.AlertStore) *ExpiryMonitor {
	return &ExpiryMonitor{alerts: alerts}
}

// CheckAndExpire flips stale active alerts to expired
func (m *ExpiryMonitor) CheckAndExpire() (int64, error) {
	expired, err := m.alerts.ExpireStale(time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return expired, nil
}

// Start begins the periodic sweep
func (m *ExpiryMonitor) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			expired, err := m.CheckAndExpire()
			if err != nil {
				log.Printf("Expiry monitor error: %v", err)
			} else if expired > 0 {
				log.Printf("Expiry monitor: expired %d alerts", expired)
			}
		case <-stop:
			log.Println("Expiry monitor stopped")
			return
		}
	}
}
