package journals

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func journalsRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.ContextWithActor(shared.ContextWithScope(r.Context(), scope), 3)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Route("/journals", NewHandler(nil, svc).MountRoutes)
	return r
}

func request(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHandlerDraftThenPost(t *testing.T) {
	store, ledger := fixture(t)
	h := journalsRouter(NewService(newMemoryRepo(), ledger, nil, nil))

	rec := request(h, http.MethodPost, "/journals", `{
		"date": "2024-05-01",
		"description": "office supplies",
		"lines": [
			{"account_id": 2, "debit": "12.50"},
			{"account_id": 1, "credit": "12.50"}
		]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var draft voucherView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &draft))
	assert.Equal(t, "JV-00001", draft.Number)
	assert.Equal(t, StatusDraft, draft.Status)
	assert.Empty(t, store.Entries())

	path := "/journals/" + strconv.FormatInt(draft.ID, 10) + "/post"
	rec = request(h, http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"POSTED"`)
	assert.Len(t, store.Entries(), 2)

	rec = request(h, http.MethodPost, path, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = request(h, http.MethodGet, "/journals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "JV-00001")
}

func TestHandlerRejectsUnbalancedDraft(t *testing.T) {
	_, ledger := fixture(t)
	repo := newMemoryRepo()
	h := journalsRouter(NewService(repo, ledger, nil, nil))

	rec := request(h, http.MethodPost, "/journals", `{
		"date": "2024-05-01",
		"lines": [
			{"account_id": 2, "debit": "10"},
			{"account_id": 1, "credit": "9"}
		]
	}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, repo.vouchers)

	rec = request(h, http.MethodGet, "/journals/77", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
