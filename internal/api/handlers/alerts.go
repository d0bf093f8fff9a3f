package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

// DefaultAlertCapacity bounds how many external-edit alerts are retained.
const DefaultAlertCapacity = 100

// Alert reports a record that appeared in the store file without going
// through the pipeline.
type Alert struct {
	DetectedAt  time.Time           `json:"detected_at"`
	Transaction *domain.Transaction `json:"transaction"`
}

// Alerts is a bounded, newest-last buffer fed by the store change monitor.
type Alerts struct {
	mu       sync.Mutex
	items    []Alert
	capacity int
	now      func() time.Time
}

// NewAlerts creates an alert buffer holding at most capacity entries.
func NewAlerts(capacity int) *Alerts {
	if capacity <= 0 {
		capacity = DefaultAlertCapacity
	}
	return &Alerts{capacity: capacity, now: time.Now}
}

// Record matches monitor.Callback.
func (a *Alerts) Record(ctx context.Context, txs []*domain.Transaction) {
	if len(txs) == 0 {
		return
	}
	log := logger.FromContext(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	at := a.now()
	for _, tx := range txs {
		log.Warn().Str("transaction_id", tx.ID).Msg("Store row added outside the pipeline")
		a.items = append(a.items, Alert{DetectedAt: at, Transaction: tx})
	}
	if over := len(a.items) - a.capacity; over > 0 {
		a.items = append([]Alert(nil), a.items[over:]...)
	}
}

// List returns a copy of the retained alerts.
func (a *Alerts) List() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Alert{}, a.items...)
}

// AlertsHandler serves monitor alerts.
type AlertsHandler struct {
	alerts *Alerts
}

// NewAlertsHandler creates a new alerts handler.
func NewAlertsHandler(alerts *Alerts) *AlertsHandler {
	return &AlertsHandler{alerts: alerts}
}

// ListAlerts handles GET /api/alerts
func (h *AlertsHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	items := h.alerts.List()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": items,
		"count":  len(items),
	})
}
