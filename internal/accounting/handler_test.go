package accounting_test

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
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func ledgerRouter(svc *accounting.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.ContextWithScope(r.Context(), shared.NewScope(1, 0))
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(ctx, 42)))
		})
	})
	r.Route("/ledger", accounting.NewHandler(nil, svc).MountRoutes)
	return r
}

func send(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerPostAndFetchBatch(t *testing.T) {
	svc, _ := newLedger(t)
	h := ledgerRouter(svc)

	rec := send(h, http.MethodPost, "/ledger/batches", `{
		"date": "2024-03-15",
		"reference": "OB-1",
		"lines": [
			{"account_id": 1, "debit": "100.00"},
			{"account_id": 2, "credit": "100.00"}
		]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created accounting.BatchView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Len(t, created.Entries, 2)
	assert.True(t, created.TotalDebit.Equal(d("100")))
	assert.Equal(t, "2024-03-15", created.Date)

	rec = send(h, http.MethodGet, "/ledger/batches/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(h, http.MethodPost, "/ledger/batches/"+created.ID.String()+"/reverse", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(h, http.MethodPost, "/ledger/batches/"+created.ID.String()+"/reverse", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerRejectsUnbalancedPosting(t *testing.T) {
	svc, store := newLedger(t)
	h := ledgerRouter(svc)

	rec := send(h, http.MethodPost, "/ledger/batches", `{
		"date": "2024-03-15",
		"lines": [
			{"account_id": 1, "debit": "100.00"},
			{"account_id": 2, "credit": "99.99"}
		]
	}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unbalanced Posting")
	assert.Empty(t, store.Entries())
}

func TestHandlerValidatesBody(t *testing.T) {
	svc, _ := newLedger(t)
	h := ledgerRouter(svc)

	rec := send(h, http.MethodPost, "/ledger/batches", `{"lines": [{"account_id": 1, "debit": "1"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"date"`)

	rec = send(h, http.MethodGet, "/ledger/batches/not-a-uuid", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
