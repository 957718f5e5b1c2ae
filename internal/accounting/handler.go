package accounting

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ErrorRules maps posting failures to problem responses. Handlers that post
// through the ledger append these to their own rules.
var ErrorRules = []httpx.ErrorRule{
	{Target: ErrUnbalancedPosting, Status: http.StatusUnprocessableEntity, Title: "Unbalanced Posting"},
	{Target: ErrTooFewLines, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: ErrInvalidLine, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: ErrUnknownAccount, Status: http.StatusUnprocessableEntity, Title: "Unknown Account"},
	{Target: ErrInactiveAccount, Status: http.StatusUnprocessableEntity, Title: "Inactive Account"},
	{Target: ErrInsufficientBalance, Status: http.StatusUnprocessableEntity, Title: "Insufficient Balance"},
	{Target: ErrBatchNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Target: ErrBatchAlreadyPosted, Status: http.StatusConflict, Title: "Already Posted"},
	{Target: ErrAlreadyReversed, Status: http.StatusConflict, Title: "Already Reversed"},
}

// Handler wires ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/batches", h.handlePost)
	r.Get("/batches/{id}", h.handleGet)
	r.Post("/batches/{id}/reverse", h.handleReverse)
}

type lineRequest struct {
	AccountID   int64           `json:"account_id" validate:"gt=0"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

type postRequest struct {
	BatchID   *uuid.UUID    `json:"batch_id"`
	Date      httpx.Date    `json:"date" validate:"required"`
	Reference string        `json:"reference"`
	Memo      string        `json:"memo"`
	Lines     []lineRequest `json:"lines" validate:"min=2,dive"`
	Guards    []int64       `json:"guards"`
}

type reverseRequest struct {
	Date *httpx.Date `json:"date"`
	Memo string      `json:"memo"`
}

// EntryView is the wire form of a ledger entry.
type EntryView struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"account_id"`
	BranchID    *int64          `json:"branch_id,omitempty"`
	Date        string          `json:"date"`
	Description string          `json:"description,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// BatchView is the wire form of a committed batch.
type BatchView struct {
	ID           uuid.UUID       `json:"id"`
	BusinessID   int64           `json:"business_id"`
	Date         string          `json:"date"`
	DocumentType DocumentType    `json:"document_type,omitempty"`
	DocumentID   int64           `json:"document_id,omitempty"`
	Reference    string          `json:"reference,omitempty"`
	TotalDebit   decimal.Decimal `json:"total_debit"`
	TotalCredit  decimal.Decimal `json:"total_credit"`
	Entries      []EntryView     `json:"entries"`
}

// NewBatchView renders a batch for JSON responses.
func NewBatchView(b Batch) BatchView {
	view := BatchView{
		ID:           b.ID,
		BusinessID:   b.Scope.BusinessID,
		Date:         b.Date.Format(httpx.DateLayout),
		DocumentType: b.Document.Type,
		DocumentID:   b.Document.ID,
		Reference:    b.Document.Reference,
		TotalDebit:   b.TotalDebit,
		TotalCredit:  b.TotalCredit,
		Entries:      make([]EntryView, 0, len(b.Entries)),
	}
	for _, e := range b.Entries {
		view.Entries = append(view.Entries, EntryView{
			ID:          e.ID,
			AccountID:   e.AccountID,
			BranchID:    e.BranchID,
			Date:        e.Date.Format(httpx.DateLayout),
			Description: e.Description,
			Reference:   e.Reference,
			Debit:       e.Debit,
			Credit:      e.Credit,
		})
	}
	return view
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req postRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := PostingInput{
		Scope:     scope,
		Date:      req.Date.Time,
		Reference: req.Reference,
		Memo:      req.Memo,
		PostedBy:  shared.ActorFromContext(r.Context()),
		Guards:    req.Guards,
		Lines:     make([]PostingLine, 0, len(req.Lines)),
	}
	if req.BatchID != nil {
		input.BatchID = *req.BatchID
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, PostingLine{
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	batch, err := h.service.Post(r.Context(), input)
	if err != nil {
		h.logger.Warn("ledger post rejected", slog.String("scope", scope.String()), slog.Any("error", err))
		httpx.RespondError(w, err, ErrorRules...)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewBatchView(batch))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, ErrBatchNotFound, ErrorRules...)
		return
	}
	batch, err := h.service.Batch(r.Context(), scope, id)
	if err != nil {
		httpx.RespondError(w, err, ErrorRules...)
		return
	}
	httpx.JSON(w, http.StatusOK, NewBatchView(batch))
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, ErrBatchNotFound, ErrorRules...)
		return
	}
	var req reverseRequest
	if r.ContentLength > 0 {
		if err := httpx.Bind(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	input := ReverseInput{Scope: scope, BatchID: id, Memo: req.Memo, ActorID: shared.ActorFromContext(r.Context())}
	if req.Date != nil {
		date := req.Date.Time
		input.Date = &date
	}
	reversal, err := h.service.Reverse(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err, ErrorRules...)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewBatchView(reversal))
}
