package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/api/handlers"
	"github.com/dvloznov/finance-assistant/internal/api/middleware"
)

// Handlers groups the endpoint handlers served by the API.
type Handlers struct {
	Transactions *handlers.TransactionsHandler
	Duplicates   *handlers.DuplicatesHandler
	SMS          *handlers.SMSHandler
	Jobs         *handlers.JobsHandler
	Alerts       *handlers.AlertsHandler
}

func method(m string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		fn(w, r)
	}
}

// NewRouter registers the ledger endpoints and wraps them in the standard
// middleware chain. A nil handler leaves its endpoint unregistered.
func NewRouter(h Handlers, log zerolog.Logger, apiToken string) http.Handler {
	mux := http.NewServeMux()

	if h.Transactions != nil {
		mux.HandleFunc("/api/transactions", method(http.MethodPost, h.Transactions.CreateTransaction))
	}
	if h.Duplicates != nil {
		mux.HandleFunc("/api/duplicates", method(http.MethodGet, h.Duplicates.ListDuplicates))
		mux.HandleFunc("/api/duplicates/resolve", method(http.MethodPost, h.Duplicates.ResolveDuplicate))
	}
	if h.SMS != nil {
		mux.HandleFunc("/api/sms", method(http.MethodPost, h.SMS.EnqueueSMS))
	}
	if h.Jobs != nil {
		mux.HandleFunc("/api/jobs", method(http.MethodGet, h.Jobs.GetJobs))
	}
	if h.Alerts != nil {
		mux.HandleFunc("/api/alerts", method(http.MethodGet, h.Alerts.ListAlerts))
	}

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.RequestID(log)(
			middleware.Logger(
				middleware.CORS(
					middleware.Auth(apiToken)(mux),
				),
			),
		),
	)
}
