package inventory

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func inventoryRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(shared.ContextWithScope(r.Context(), scope)))
		})
	})
	r.Route("/inventory", NewHandler(nil, svc).MountRoutes)
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHandlerRecordsAndValues(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := inventoryRouter(svc)

	rec := do(h, http.MethodPost, "/inventory/purchases", `{"product_id":10,"date":"2024-01-01","reference":"PB-1","quantity":"10","unit_cost":"2"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(h, http.MethodPost, "/inventory/purchases", `{"product_id":10,"date":"2024-01-02","reference":"PB-2","quantity":"5","unit_cost":"3"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(h, http.MethodPost, "/inventory/sales", `{"product_id":10,"date":"2024-01-03","reference":"SI-1","quantity":"12"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(h, http.MethodGet, "/inventory/products/10/valuation?method=fifo", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v Valuation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.True(t, v.Quantity.Equal(d("3")))
	assert.True(t, v.TotalValue.Equal(d("9")))
	assert.Equal(t, MethodFIFO, v.Method)

	rec = do(h, http.MethodGet, "/inventory/products/10/sale-costs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var costs []SaleCost
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &costs))
	require.Len(t, costs, 1)
	assert.True(t, costs[0].Cost.Equal(d("26")))

	rec = do(h, http.MethodGet, "/inventory/valuation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hardware")

	rec = do(h, http.MethodGet, "/inventory/products/10/movements", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []Movement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Len(t, rows, 3)
}

func TestHandlerCOGSAndErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedWidget(t, svc)
	h := inventoryRouter(svc)

	rec := do(h, http.MethodGet, "/inventory/products/10/cogs?quantity=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"cogs":"6"`)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/inventory/products/13/valuation", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/inventory/products/10/valuation?method=lifo", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/inventory/products/10/cogs", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/inventory/sales", `{"product_id":10,"quantity":"0"}`).Code)
	assert.Equal(t, http.StatusNoContent, do(h, http.MethodPost, "/inventory/products/10/invalidate", "").Code)
}

func TestHandlerReturns(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedWidget(t, svc)
	h := inventoryRouter(svc)
	saleID := repo.sales[0].ID

	rec := do(h, http.MethodPost, "/inventory/sales/"+itoa(saleID)+"/returns", `{"quantity":"2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(h, http.MethodPost, "/inventory/sales/"+itoa(saleID)+"/returns", `{"quantity":"20"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(h, http.MethodPost, "/inventory/purchases/999/returns", `{"quantity":"1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerSaleLinesAndCacheOutage(t *testing.T) {
	svc, repo, mr := newTestService(t)
	svc.WithIdempotency(&memoryIdempotency{keys: map[string]struct{}{}})
	seedWidget(t, svc)
	h := inventoryRouter(svc)

	rec := do(h, http.MethodPost, "/inventory/sales", `{"product_id":10,"date":"2024-01-04","reference":"SI-2","line":1,"quantity":"1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(h, http.MethodPost, "/inventory/sales", `{"product_id":10,"date":"2024-01-04","reference":"SI-2","line":2,"quantity":"1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, repo.sales, 3)

	mr.SetError("ERR cache down")
	rec = do(h, http.MethodPost, "/inventory/purchases", `{"product_id":10,"date":"2024-01-05","reference":"PB-3","line":1,"quantity":"1","unit_cost":"4"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	assert.Len(t, repo.purchases, 2)
}

func itoa(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
