package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var errorRules = []httpx.ErrorRule{
	{Target: ErrProductNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Target: ErrLineNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Target: ErrInvalidMethod, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: ErrInvalidQuantity, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: ErrInvalidUnitCost, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: ErrReturnExceedsQuantity, Status: http.StatusUnprocessableEntity, Title: "Return Exceeds Quantity"},
	{Target: ErrStaleLayers, Status: http.StatusServiceUnavailable, Title: "Cache Unavailable"},
}

// Handler wires HTTP endpoints for inventory valuation.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/valuation", h.handleReport)
	r.Route("/products/{id}", func(r chi.Router) {
		r.Get("/valuation", h.handleValuation)
		r.Get("/cogs", h.handleCOGS)
		r.Get("/movements", h.handleMovements)
		r.Get("/sale-costs", h.handleSaleCosts)
		r.Post("/invalidate", h.handleInvalidate)
	})
	r.Post("/purchases", h.handlePurchase)
	r.Post("/purchases/{id}/returns", h.handlePurchaseReturn)
	r.Post("/sales", h.handleSale)
	r.Post("/sales/{id}/returns", h.handleSaleReturn)
}

type purchaseRequest struct {
	ProductID int64           `json:"product_id" validate:"gt=0"`
	Date      httpx.Date      `json:"date"`
	Reference string          `json:"reference" validate:"max=64"`
	Line      int             `json:"line" validate:"gte=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type saleRequest struct {
	ProductID int64           `json:"product_id" validate:"gt=0"`
	Date      httpx.Date      `json:"date"`
	Reference string          `json:"reference" validate:"max=64"`
	Line      int             `json:"line" validate:"gte=0"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type returnRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

// queryMethod reads the optional method parameter. Empty leaves the service default.
func queryMethod(r *http.Request) (Method, error) {
	raw := r.URL.Query().Get("method")
	if raw == "" {
		return "", nil
	}
	return ParseMethod(raw)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := queryMethod(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ReportFilter{Method: m, AsOf: httpx.Deref(asOf)}
	category, err := httpx.QueryInt(r, "category_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if category > 0 {
		filter.CategoryID = &category
	}
	report, err := h.service.ValuationReport(r.Context(), scope, filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleValuation(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.product(w, r)
	if !ok {
		return
	}
	m, err := queryMethod(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.CalculateInventoryValue(r.Context(), scope, id, m, httpx.Deref(asOf))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) handleCOGS(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.product(w, r)
	if !ok {
		return
	}
	m, err := queryMethod(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	qty, err := httpx.QueryDecimal(r, "quantity")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	cogs, err := h.service.CalculateCOGS(r.Context(), scope, id, qty, m)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_id": id, "quantity": qty, "cogs": cogs})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.product(w, r)
	if !ok {
		return
	}
	m, err := queryMethod(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.StockMovements(r.Context(), scope, id, m, httpx.Deref(from), httpx.Deref(to))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) handleSaleCosts(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.product(w, r)
	if !ok {
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	costs, err := h.service.SaleCosts(r.Context(), scope, id, httpx.Deref(asOf))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, costs)
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.product(w, r)
	if !ok {
		return
	}
	if err := h.service.Invalidate(r.Context(), scope, id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req purchaseRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	line, err := h.service.RecordPurchase(r.Context(), scope, PurchaseInput{
		ProductID: req.ProductID,
		Date:      req.Date.Time,
		Reference: req.Reference,
		Line:      req.Line,
		Quantity:  req.Quantity,
		UnitCost:  req.UnitCost,
		ActorID:   shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, line)
}

func (h *Handler) handleSale(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req saleRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	line, err := h.service.RecordSale(r.Context(), scope, SaleInput{
		ProductID: req.ProductID,
		Date:      req.Date.Time,
		Reference: req.Reference,
		Line:      req.Line,
		Quantity:  req.Quantity,
		ActorID:   shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, line)
}

func (h *Handler) handlePurchaseReturn(w http.ResponseWriter, r *http.Request) {
	scope, in, ok := h.returned(w, r)
	if !ok {
		return
	}
	line, err := h.service.RecordPurchaseReturn(r.Context(), scope, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

func (h *Handler) handleSaleReturn(w http.ResponseWriter, r *http.Request) {
	scope, in, ok := h.returned(w, r)
	if !ok {
		return
	}
	line, err := h.service.RecordSaleReturn(r.Context(), scope, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

func (h *Handler) returned(w http.ResponseWriter, r *http.Request) (shared.Scope, ReturnInput, bool) {
	scope, id, ok := h.target(w, r, ErrLineNotFound)
	if !ok {
		return shared.Scope{}, ReturnInput{}, false
	}
	var req returnRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return shared.Scope{}, ReturnInput{}, false
	}
	return scope, ReturnInput{LineID: id, Quantity: req.Quantity, ActorID: shared.ActorFromContext(r.Context())}, true
}

func (h *Handler) product(w http.ResponseWriter, r *http.Request) (shared.Scope, int64, bool) {
	return h.target(w, r, ErrProductNotFound)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request, missing error) (shared.Scope, int64, bool) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Scope{}, 0, false
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, missing, errorRules...)
		return shared.Scope{}, 0, false
	}
	return scope, id, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.logger.Warn("inventory request failed", slog.Any("error", err))
	httpx.RespondError(w, err, errorRules...)
}
