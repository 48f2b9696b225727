package pipeline

import "flametrace/pkg/models"

// AlertWriter writes degenerate-frame alerts.
type AlertWriter interface {
	WriteAlerts(alerts []*models.Alert) error
	Close() error
}
