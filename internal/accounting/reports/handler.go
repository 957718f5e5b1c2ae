package reports

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var errorRules = []httpx.ErrorRule{
	{Target: ErrInvalidWindow, Status: http.StatusBadRequest, Title: "Invalid Window"},
}

// Handler serves financial statements as JSON. Every date parameter is
// optional and defaults to today.
type Handler struct {
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.handleTrialBalance)
	r.Get("/balance-sheet", h.handleBalanceSheet)
	r.Get("/income-statement", h.handleIncomeStatement)
	r.Get("/general-ledger", h.handleGeneralLedger)
}

func (h *Handler) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), scope, httpx.Deref(asOf))
	respond(w, tb, err)
}

func (h *Handler) handleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bs, err := h.service.BalanceSheet(r.Context(), scope, httpx.Deref(asOf))
	respond(w, bs, err)
}

func (h *Handler) handleIncomeStatement(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, err := httpx.QueryDate(r, "start")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	end, err := httpx.QueryDate(r, "end")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	is, err := h.service.IncomeStatement(r.Context(), scope, httpx.Deref(start), httpx.Deref(end))
	respond(w, is, err)
}

func (h *Handler) handleGeneralLedger(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := GeneralLedgerQuery{Scope: scope}
	if q.AccountID, err = httpx.QueryInt(r, "account_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if q.From, err = httpx.QueryDate(r, "from"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q.To = httpx.Deref(to)
	gl, err := h.service.GeneralLedger(r.Context(), q)
	respond(w, gl, err)
}

func respond(w http.ResponseWriter, body any, err error) {
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	httpx.JSON(w, http.StatusOK, body)
}
