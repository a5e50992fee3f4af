package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"notakasir/backend/internal/catalog"
	"notakasir/backend/internal/service"
	"notakasir/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, catalog.Default(), nil, 0, zerolog.Nop())
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*", zerolog.Nop())
}

// loginToken logs in as the seeded admin and returns a bearer token.
func loginToken(t *testing.T, handler http.Handler) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode login body: %v", err)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatalf("no access_token in login response: %v", body)
	}
	return token
}

func authedRequest(t *testing.T, method, path, token string, payload any) *http.Request {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func saveBillPayload(billNo string) map[string]any {
	return map[string]any{
		"bill_no":        billNo,
		"customer_name":  "Alice",
		"customer_phone": "555-0100",
		"items": []map[string]any{
			{"code": "S01", "qty": 2},
			{"code": "H01", "qty": 1},
		},
	}
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLoginInvalidCredentials(t *testing.T) {
	handler := newTestAPI(t).Handler()

	payload, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleLoginRateLimit(t *testing.T) {
	handler := newTestAPI(t).Handler()

	// The login limiter allows 5 attempts per minute per client IP.
	var last int
	for i := 0; i < 6; i++ {
		payload, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on sixth attempt, got %d", last)
	}
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	handler := newTestAPI(t).Handler()

	for _, path := range []string{"/api/v1/catalog", "/api/v1/bills/recent", "/api/v1/bills/100001"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestRequireAuthRejectsGarbageToken(t *testing.T) {
	handler := newTestAPI(t).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleCatalog(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/v1/catalog", token, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Items) != 11 {
		t.Fatalf("expected 11 catalog items, got %d", len(body.Items))
	}
}

func TestHandleNewBillNumber(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/v1/bills/number", token, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body["bill_no"]) != 6 {
		t.Fatalf("expected 6-digit bill_no, got %q", body["bill_no"])
	}
}

func TestHandleQuote(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	payload := map[string]any{"items": []map[string]any{{"code": "S02", "qty": 2}}}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/bills/quote", token, payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Subtotal   string `json:"subtotal"`
		TotalTax   string `json:"total_tax"`
		GrandTotal string `json:"grand_total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Subtotal != "300" || body.TotalTax != "15" || body.GrandTotal != "315" {
		t.Fatalf("unexpected totals: %+v", body)
	}
}

func TestHandleQuoteUnknownCode(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	payload := map[string]any{"items": []map[string]any{{"code": "Z99", "qty": 1}}}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/bills/quote", token, payload))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleSaveAndGetBill(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/bills", token, saveBillPayload("100001")))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/v1/bills/100001", token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var view struct {
		BillNo   string `json:"bill_no"`
		Customer struct {
			Name string `json:"name"`
		} `json:"customer"`
		GrandTotal string `json:"grand_total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if view.BillNo != "100001" || view.Customer.Name != "Alice" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.GrandTotal != "130" {
		t.Fatalf("expected grand total 130, got %s", view.GrandTotal)
	}
}

func TestHandleSaveBillDuplicate(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/bills", token, saveBillPayload("100001")))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first save: expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/bills", token, saveBillPayload("100001")))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleSaveBillValidation(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	cases := []struct {
		name   string
		mutate func(payload map[string]any)
	}{
		{"blank name", func(p map[string]any) { p["customer_name"] = " " }},
		{"blank phone", func(p map[string]any) { p["customer_phone"] = "" }},
		{"no items", func(p map[string]any) { p["items"] = []map[string]any{} }},
		{"zero qty", func(p map[string]any) { p["items"] = []map[string]any{{"code": "S01", "qty": 0}} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := saveBillPayload("100009")
			tc.mutate(payload)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/bills", token, payload))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleSaveBillRejectsUnknownFields(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	payload := saveBillPayload("100001")
	payload["discount"] = "10%"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/bills", token, payload))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestHandleGetBillNotFound(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/v1/bills/999999", token, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleInvoice(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/bills", token, saveBillPayload("100001")))
	if rec.Code != http.StatusCreated {
		t.Fatalf("save: expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/v1/bills/100001/invoice", token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text/plain, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "invoice_100001.txt") {
		t.Fatalf("unexpected content disposition: %q", cd)
	}
	for _, want := range []string{"RESTAURANT INVOICE", "Alice", "100001", "Grand Total: 130.00"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Fatalf("invoice missing %q:\n%s", want, rec.Body.String())
		}
	}
}

func TestHandleRecentBills(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := loginToken(t, handler)

	for i := 0; i < 3; i++ {
		billNo := fmt.Sprintf("%06d", 100001+i)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/api/v1/bills", token, saveBillPayload(billNo)))
		if rec.Code != http.StatusCreated {
			t.Fatalf("save %s: expected 201, got %d", billNo, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, http.MethodGet, "/api/v1/bills/recent?limit=2", token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Bills []struct {
			BillNo string `json:"bill_no"`
		} `json:"bills"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Bills) != 2 {
		t.Fatalf("expected 2 bills, got %d", len(body.Bills))
	}
	if body.Bills[0].BillNo != "100003" || body.Bills[1].BillNo != "100002" {
		t.Fatalf("unexpected order: %+v", body.Bills)
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := newTestAPI(t).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("unexpected CORS origin: %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestOptionsPreflight(t *testing.T) {
	handler := newTestAPI(t).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/bills", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
}
