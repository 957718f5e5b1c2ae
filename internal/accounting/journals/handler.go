package journals

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var errorRules = append([]httpx.ErrorRule{
	{Target: ErrVoucherNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Target: ErrInvalidStatus, Status: http.StatusConflict, Title: "Invalid Status"},
}, accounting.ErrorRules...)

// Handler exposes journal vouchers over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers voucher routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/post", h.handlePost)
}

type lineRequest struct {
	AccountID   int64           `json:"account_id" validate:"gt=0"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

type createRequest struct {
	Date        httpx.Date    `json:"date" validate:"required"`
	Description string        `json:"description" validate:"max=255"`
	Reference   string        `json:"reference" validate:"max=64"`
	Lines       []lineRequest `json:"lines" validate:"min=2,dive"`
}

type voucherView struct {
	ID          int64      `json:"id"`
	Number      string     `json:"number"`
	Date        string     `json:"date"`
	Description string     `json:"description,omitempty"`
	Reference   string     `json:"reference,omitempty"`
	Status      Status     `json:"status"`
	Lines       []Line     `json:"lines"`
	BatchID     *uuid.UUID `json:"batch_id,omitempty"`
}

func newVoucherView(v Voucher) voucherView {
	return voucherView{
		ID:          v.ID,
		Number:      v.Number,
		Date:        v.Date.Format(httpx.DateLayout),
		Description: v.Description,
		Reference:   v.Reference,
		Status:      v.Status,
		Lines:       v.Lines,
		BatchID:     v.BatchID,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := httpx.QueryInt(r, "page")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	perPage, err := httpx.QueryInt(r, "per_page")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.List(r.Context(), scope, shared.NewPagination(int(page), int(perPage), 0))
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]voucherView, 0, len(list))
	for _, v := range list {
		out = append(out, newVoucherView(v))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := CreateInput{
		Scope:       scope,
		Date:        req.Date.Time,
		Description: req.Description,
		Reference:   req.Reference,
		ActorID:     shared.ActorFromContext(r.Context()),
		Lines:       make([]Line, 0, len(req.Lines)),
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, Line(line))
	}
	v, err := h.service.CreateDraft(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newVoucherView(v))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, ErrVoucherNotFound, errorRules...)
		return
	}
	v, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newVoucherView(v))
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, ErrVoucherNotFound, errorRules...)
		return
	}
	v, err := h.service.Post(r.Context(), scope, id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newVoucherView(v))
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.logger.Warn("journal request failed", slog.Any("error", err))
	httpx.RespondError(w, err, errorRules...)
}
