package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var errDomain = errors.New("domain: boom")

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) ProblemDetail {
	t.Helper()
	var p ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestRespondErrorUsesRulesFirst(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("wrap: %w", errDomain), ErrorRule{Target: errDomain, Status: http.StatusUnprocessableEntity, Title: "Boom"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	p := decodeProblem(t, rec)
	assert.Equal(t, "Boom", p.Title)
	assert.Contains(t, p.Detail, "domain: boom")
}

func TestRespondErrorBaseRules(t *testing.T) {
	cases := map[error]int{
		shared.ErrScopeRequired:       http.StatusBadRequest,
		shared.ErrNotFound:            http.StatusNotFound,
		shared.ErrIdempotencyConflict: http.StatusConflict,
		ErrDuplicate:                  http.StatusConflict,
		errors.New("db down"):         http.StatusInternalServerError,
	}
	for err, status := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, err)
		assert.Equal(t, status, rec.Code, err.Error())
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pq: password authentication failed"))
	assert.Empty(t, decodeProblem(t, rec).Detail)
}

type createRequest struct {
	Name   string `json:"name" validate:"required"`
	Amount int64  `json:"amount" validate:"gt=0"`
	Type   string `json:"type" validate:"omitempty,oneof=ASSET LIABILITY"`
}

func TestBindValidatesByJSONName(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":0,"type":"OTHER"}`))
	var body createRequest
	err := Bind(req, &body)
	require.ErrorIs(t, err, ErrValidation)

	rec := httptest.NewRecorder()
	RespondError(rec, err)
	p := decodeProblem(t, rec)
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "is required", p.Fields["name"])
	assert.Contains(t, p.Fields, "amount")
	assert.Contains(t, p.Fields, "type")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))
	var body createRequest
	require.ErrorIs(t, DecodeJSON(req, &body), ErrValidation)

	empty := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	require.ErrorIs(t, DecodeJSON(empty, &body), ErrValidation)
}

func TestDateAcceptsBothLayouts(t *testing.T) {
	var v struct {
		A Date `json:"a"`
		B Date `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"2024-03-31","b":"2024-03-31T10:00:00Z"}`), &v))
	assert.Equal(t, 31, v.A.Day())
	assert.Equal(t, 10, v.B.Hour())

	out, err := json.Marshal(v.A)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-31"`, string(out))

	require.Error(t, json.Unmarshal([]byte(`{"a":"31/03/2024"}`), &v))
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?as_of=2024-01-31&account_id=7&qty=2.5&bad=x", nil)
	asOf, err := QueryDate(req, "as_of")
	require.NoError(t, err)
	require.NotNil(t, asOf)
	assert.Equal(t, 31, asOf.Day())

	missing, err := QueryDate(req, "from")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.True(t, Deref(missing).IsZero())

	id, err := QueryInt(req, "account_id")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	qty, err := QueryDecimal(req, "qty")
	require.NoError(t, err)
	assert.Equal(t, "2.5", qty.String())

	_, err = QueryInt(req, "bad")
	require.ErrorIs(t, err, ErrValidation)
}
