package integration_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func postingsRouter(rules *integration.Rules) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.ContextWithScope(r.Context(), scope)
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(ctx, 7)))
		})
	})
	r.Route("/postings", integration.NewHandler(nil, rules).MountRoutes)
	return r
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerPostsSale(t *testing.T) {
	f := newFixture(t)
	h := postingsRouter(f.rules)

	rec := post(h, "/postings/sales", `{
		"id": 7,
		"number": "INV-7",
		"date": "2024-01-10",
		"subtotal": "100",
		"vat": "15",
		"items": [{"product_id": 10, "quantity": "10", "stocked": true}]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var view accounting.BatchView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "INV-7", view.Reference)
	assert.Equal(t, "2024-01-10", view.Date)
	assert.True(t, view.TotalDebit.Equal(view.TotalCredit))
	assert.True(t, f.balance(cogs).Equal(d("26")))
}

func TestHandlerMapsPostingErrors(t *testing.T) {
	f := newFixture(t)
	h := postingsRouter(f.rules)

	rec := post(h, "/postings/payments/made", `{"id": 1, "number": "PAY-1", "date": "2024-01-10", "amount": "50"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = post(h, "/postings/payments/received", `{"id": 2, "number": "RCV-1", "date": "2024-01-10", "amount": "0"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid Document")

	rec = post(h, "/postings/sales", `{"id": 3, "number": "INV-3", "date": "2024-01-10", "subtotal": "10",
		"items": [{"product_id": 404, "quantity": "1", "stocked": true}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unknown Product")

	f.store.SetActive(vatPayable, false)
	rec = post(h, "/postings/sales", `{"id": 4, "number": "INV-4", "date": "2024-01-10", "subtotal": "10", "vat": "1.5"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Account Not Mapped")
	assert.Empty(t, f.store.Entries())
}

func TestHandlerValidatesDocuments(t *testing.T) {
	f := newFixture(t)
	h := postingsRouter(f.rules)

	rec := post(h, "/postings/fund-transfers", `{"id": 1, "date": "2024-01-10", "from_account_id": 1, "to_account_id": 1, "amount": "5"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "to_account_id")

	rec = post(h, "/postings/payroll", `{"id": 1, "date": "2024-01-10", "gross": "10", "net": "10", "channel": "CHEQUE"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "channel")

	rec = post(h, "/postings/depreciation", `{"asset_id": 1, "date": "2024-01-10", "amount": "5"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "asset_code")
}

func TestHandlerYearEndClose(t *testing.T) {
	f := newFixture(t)
	h := postingsRouter(f.rules)
	body := `{"fiscal_year_id": 2024, "start": "2024-01-01", "end": "2024-12-31"}`

	rec := post(h, "/postings/year-end-close", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"posted": false}`, rec.Body.String())

	rec = post(h, "/postings/opening-balances", `{"account_id": 1, "date": "2024-01-02", "amount": "500"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = post(h, "/postings/sales", `{"id": 1, "number": "INV-1", "date": "2024-03-01", "subtotal": "80"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = post(h, "/postings/year-end-close", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Posted bool                 `json:"posted"`
		Batch  accounting.BatchView `json:"batch"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Posted)
	assert.Equal(t, "CLOSE-2024", out.Batch.Reference)
	assert.True(t, f.balance(retained).Equal(d("-80")))
}
