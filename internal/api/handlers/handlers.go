package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/normalize"
	"github.com/dvloznov/finance-assistant/internal/pipeline"
	"github.com/dvloznov/finance-assistant/internal/resolver"
)

const maxBodyBytes = 1 << 20

// Ledger is the subset of *pipeline.Pipeline the HTTP layer needs.
type Ledger interface {
	Ingest(ctx context.Context, payload normalize.Payload, cat normalize.Categorization, opts normalize.Options) (*domain.Transaction, error)
	ResolveDuplicate(ctx context.Context, pendingID string, action resolver.Action) (pipeline.Resolution, error)
	ListPendingDuplicates() []resolver.Entry
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// TransactionsHandler handles transaction submissions.
type TransactionsHandler struct {
	ledger     Ledger
	ownerPhone string
	log        zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(ledger Ledger, ownerPhone string, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		ledger:     ledger,
		ownerPhone: ownerPhone,
		log:        log,
	}
}

type transactionRequest struct {
	Amount       normalize.Amount `json:"amount"`
	Description  string           `json:"description"`
	Direction    string           `json:"direction"`
	RawText      string           `json:"raw_text"`
	Currency     string           `json:"currency"`
	Counterparty string           `json:"counterparty"`
	Medium       string           `json:"medium"`
	EventDate    string           `json:"event_date"`
	EventTime    string           `json:"event_time"`
	Category     string           `json:"category"`
	Flavor       string           `json:"flavor"`
	Tags         []string         `json:"tags"`
	IsFinancial  *bool            `json:"is_financial"`
	Source       string           `json:"source"`
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	source := req.Source
	if source == "" {
		source = "api"
	}

	tx, err := h.ledger.Ingest(r.Context(),
		normalize.Payload{
			Amount:       req.Amount,
			Description:  req.Description,
			Direction:    req.Direction,
			RawText:      req.RawText,
			Currency:     req.Currency,
			Counterparty: req.Counterparty,
			Medium:       req.Medium,
			OwnerPhone:   h.ownerPhone,
			EventDate:    req.EventDate,
			EventTime:    req.EventTime,
		},
		normalize.Categorization{
			Category:    req.Category,
			Flavor:      req.Flavor,
			Tags:        req.Tags,
			IsFinancial: req.IsFinancial,
		},
		normalize.Options{Source: source},
	)

	var (
		suppressed *pipeline.SuppressedDuplicateError
		duplicate  *pipeline.DuplicateTransactionError
		invalid    *pipeline.InvalidPayloadError
	)
	switch {
	case err == nil:
		middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
			"status":      pipeline.StatusLogged,
			"transaction": tx,
		})
	case errors.As(err, &suppressed):
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":      pipeline.StatusSuppressed,
			"reason":      suppressed.Reason,
			"existing_id": suppressed.Existing.ID,
		})
	case errors.As(err, &duplicate):
		middleware.WriteJSON(w, http.StatusConflict, map[string]interface{}{
			"status":     pipeline.StatusDuplicate,
			"pending_id": duplicate.PendingID,
			"reason":     duplicate.Reason,
			"existing":   duplicate.Existing,
			"candidate":  duplicate.Candidate,
		})
	case errors.As(err, &invalid):
		middleware.WriteError(w, http.StatusBadRequest, invalid.Error())
	default:
		h.log.Error().Err(err).Msg("Failed to ingest transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to record transaction")
	}
}

// DuplicatesHandler lists and resolves pending duplicates.
type DuplicatesHandler struct {
	ledger Ledger
	log    zerolog.Logger
}

// NewDuplicatesHandler creates a new duplicates handler.
func NewDuplicatesHandler(ledger Ledger, log zerolog.Logger) *DuplicatesHandler {
	return &DuplicatesHandler{
		ledger: ledger,
		log:    log,
	}
}

// ListDuplicates handles GET /api/duplicates
func (h *DuplicatesHandler) ListDuplicates(w http.ResponseWriter, r *http.Request) {
	pending := h.ledger.ListPendingDuplicates()
	if pending == nil {
		pending = []resolver.Entry{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"duplicates": pending,
		"count":      len(pending),
	})
}

// ResolveDuplicate handles POST /api/duplicates/resolve
func (h *DuplicatesHandler) ResolveDuplicate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PendingID string `json:"pending_id"`
		Action    string `json:"action"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PendingID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "pending_id is required")
		return
	}
	action, err := resolver.ParseAction(req.Action)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "action must be record or ignore")
		return
	}

	result, err := h.ledger.ResolveDuplicate(r.Context(), req.PendingID, action)
	if err != nil {
		h.log.Error().Err(err).Str("pending_id", req.PendingID).Msg("Failed to resolve duplicate")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to resolve duplicate")
		return
	}

	status := http.StatusOK
	if result == pipeline.ResolutionNotFound {
		status = http.StatusNotFound
	}
	middleware.WriteJSON(w, status, map[string]string{
		"pending_id": req.PendingID,
		"result":     string(result),
	})
}

// SMSHandler enqueues raw bank SMS for asynchronous extraction.
type SMSHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewSMSHandler creates a new SMS handler.
func NewSMSHandler(publisher jobs.Publisher, log zerolog.Logger) *SMSHandler {
	return &SMSHandler{
		publisher: publisher,
		log:       log,
	}
}

// EnqueueSMS handles POST /api/sms
func (h *SMSHandler) EnqueueSMS(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
		Sender  string `json:"sender"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "message is required")
		return
	}

	job := &jobs.IngestSMSJob{
		Message: req.Message,
		Sender:  req.Sender,
	}
	if err := h.publisher.PublishIngestSMS(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue SMS job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue SMS")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Msg("SMS job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJobs handles GET /api/jobs. With ?id= it returns one job, otherwise a
// filtered list.
func (h *JobsHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	if jobID := query.Get("id"); jobID != "" {
		job, err := h.store.GetJob(ctx, jobID)
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		if err != nil {
			h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, job)
		return
	}

	filter := jobs.JobFilter{
		Status:  jobs.JobStatus(query.Get("status")),
		Outcome: query.Get("outcome"),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.IngestSMSJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
