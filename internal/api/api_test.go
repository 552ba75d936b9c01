package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/apperr"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/db"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/directory"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/ledger"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/metrics"
)

type testServer struct {
	*httptest.Server
	cashbook string
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	root := t.TempDir()

	cashbook := filepath.Join(root, "cashbook.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Bill"))
	require.NoError(t, f.SaveAs(cashbook))
	require.NoError(t, f.Close())

	conn, err := db.Open(filepath.Join(root, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	history := db.NewHistory(conn)

	store, err := directory.Open(filepath.Join(root, "directory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m := metrics.New()
	svc := ledger.NewService(ledger.Settings{CashbookPath: cashbook, CashbookSheet: "Sheet1"},
		ledger.WithRecorder(history), ledger.WithObserver(m))

	srv := httptest.NewServer(NewRouter(Deps{
		Ledger:    svc,
		Directory: store,
		History:   history,
		Metrics:   m.Handler(),
		Legacy:    true,
	}))
	t.Cleanup(srv.Close)
	return testServer{Server: srv, cashbook: cashbook}
}

func (s testServer) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out), buf.String())
	} else {
		out["body"] = buf.String()
	}
	return resp.StatusCode, out
}

func cell(t *testing.T, path, ref string) string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Sheet1", ref)
	require.NoError(t, err)
	return v
}

const paymentBody = `{
	"institute": "Acme",
	"employee": {"name": "J.Silva", "accountNo": "123"},
	"capitalAmount": "500",
	"interestAmount": 25,
	"cheqNo": "CH1",
	"accNo": "123",
	"bankName": "HNB",
	"firstEntry": 5,
	"date": "2024-03-01"
}`

func TestSubmitPayment(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/v1/payments", paymentBody)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(5), body["row_updated"])

	assert.Equal(t, "Acme", cell(t, s.cashbook, "E4"))
	assert.Equal(t, "J.Silva", cell(t, s.cashbook, "E5"))
	assert.Equal(t, "500", cell(t, s.cashbook, "I5"))
	assert.Equal(t, "25", cell(t, s.cashbook, "I6"))

	id := body["details"].(map[string]any)["id"].(string)
	status, body = s.do(t, http.MethodGet, "/api/v1/history/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["submission"].(map[string]any)["success"])

	status, body = s.do(t, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["stats"].(map[string]any)["total_submissions"])

	status, body = s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["body"], `ledger_transactions_total{kind="cashbook",outcome="success"} 1`)
}

func TestSubmitPaymentErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"malformed", `{`, http.StatusBadRequest, "invalid_request"},
		{"missing cheque", strings.Replace(paymentBody, `"CH1"`, `""`, 1), http.StatusBadRequest, string(apperr.InvalidInput)},
		{"unknown bank", strings.Replace(paymentBody, `"HNB"`, `"Moon Bank"`, 1), http.StatusBadRequest, string(apperr.InvalidInput)},
		{"non-numeric capital", strings.Replace(paymentBody, `"500"`, `"abc"`, 1), http.StatusBadRequest, string(apperr.InvalidInput)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, http.MethodPost, "/api/v1/payments", tt.body)
			assert.Equal(t, tt.status, status)
			if tt.kind == "invalid_request" {
				assert.Equal(t, tt.kind, body["error"])
			} else {
				assert.Equal(t, tt.kind, body["kind"])
			}
		})
	}
	assert.Empty(t, cell(t, s.cashbook, "E5"))
}

func TestCORSPreflight(t *testing.T) {
	preflight := func(t *testing.T, url, origin string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(http.MethodOptions, url+"/submitPayment", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	t.Run("any origin by default", func(t *testing.T) {
		s := newTestServer(t)
		resp := preflight(t, s.URL, "http://localhost:3000")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
	})

	t.Run("configured origins", func(t *testing.T) {
		srv := httptest.NewServer(NewRouter(Deps{Legacy: true, AllowedOrigins: []string{"https://books.example.com"}}))
		t.Cleanup(srv.Close)

		resp := preflight(t, srv.URL, "https://books.example.com")
		assert.Equal(t, "https://books.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

		resp = preflight(t, srv.URL, "https://elsewhere.example.com")
		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})
}

func TestUpdateCell(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/v1/cells", `{"cell":"C7","value":42.5}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "42.5", cell(t, s.cashbook, "C7"))

	status, _ = s.do(t, http.MethodPost, "/update-cell", `{"cell":"D7","value":"note"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "note", cell(t, s.cashbook, "D7"))

	status, _ = s.do(t, http.MethodPost, "/api/v1/cells", `{"cell":"D7","value":true}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodPost, "/api/v1/cells", `{"sheet":"Nope","cell":"D7","value":"x"}`)
	assert.Equal(t, http.StatusNotFound, status, body)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind     apperr.Kind
		expected int
	}{
		{apperr.NotFound, http.StatusNotFound},
		{apperr.NoCapacity, http.StatusConflict},
		{apperr.InsufficientCapacity, http.StatusConflict},
		{apperr.LimitExceeded, http.StatusConflict},
		{apperr.InvalidInput, http.StatusBadRequest},
		{apperr.Unsupported, http.StatusUnsupportedMediaType},
		{apperr.IOFailure, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.expected, statusFor(tt.kind))
		})
	}
}

func TestDirectoryRoutes(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodPost, "/api/v1/institutions", `{"institution_name":"Acme"}`)
	require.Equal(t, http.StatusCreated, status)
	status, _ = s.do(t, http.MethodPost, "/addInstitution", `{"institution_name":"Beta"}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := s.do(t, http.MethodPut, "/editInstitution", `{"old_institution_name":"Acme","new_institution_name":"Beta"}`)
	assert.Equal(t, http.StatusConflict, status, body)

	status, _ = s.do(t, http.MethodPost, "/api/v1/institutions/Acme/employees",
		`{"employees":{"901V":{"name":"J.Silva","accountNo":"123","capital":"1000","interest":null}}}`)
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPut, "/api/v1/institutions/Acme/employees/901V", `{"accountNo":"124"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "124", body["employee"].(map[string]any)["accountNo"])

	status, body = s.do(t, http.MethodGet, "/getInstitutions", "")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["institutions"], 2)

	status, _ = s.do(t, http.MethodDelete, "/deleteEmployee", `{"institution_name":"Acme","employee_id":"901V"}`)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodDelete, "/api/v1/institutions/Acme/employees/901V", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodDelete, "/api/v1/institutions/Acme", "")
	require.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, "/api/v1/institutions/Acme", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthAndBanks(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body["body"])

	status, body = s.do(t, http.MethodGet, "/api/v1/cashbook/next-row?hint=3&count=2", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(3), body["row"])

	status, _ = s.do(t, http.MethodGet, "/api/v1/cashbook/next-row?hint=x", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodGet, "/api/v1/banks", "")
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["banks"])
}
