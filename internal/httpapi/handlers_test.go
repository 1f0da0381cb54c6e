package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sanse/backend/internal/cache"
	"sanse/backend/internal/domain"
	"sanse/backend/internal/service"
	"sanse/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopConfigCache{}, time.Minute)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func loginAs(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d (body: %s)", username, rec.Code, rec.Body.String())
	}

	var body domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode login body: %v", err)
	}
	return body.AccessToken
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
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
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

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

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleLogin_RateLimit(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	// The loginLimiter allows 5 attempts per minute; httptest requests all
	// share RemoteAddr "192.0.2.1:1234".
	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "badpass",
	})

	var last int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exhausting attempts, got %d", last)
	}
}

func TestInventoryRequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/inventario", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestInventoryCreateForbiddenForVendedor(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "vendedor", "vendedor123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/inventario", token, domain.InventoryCreateRequest{
		Nombre: "Esencia Rosa", Tipo: domain.TipoEsencia, Cantidad: 50,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for vendedor create, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestSaleEndToEndReturnsDeductionTranscript(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "vendedor", "vendedor123")

	// Seeded rule: botella=30ml and devolvio_envase=No deducts one bot-30-01.
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/ventas", token, domain.SaleCreateRequest{
		TotalCents:    180000,
		PaymentMethod: "efectivo",
		Items: []domain.SaleLineItem{
			{PerfumeName: "Oud Intenso", Gender: "masculino", Quantity: 2, BottleType: "30ml"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.SaleResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode sale response: %v", err)
	}
	if resp.Sale.ID == "" {
		t.Fatalf("expected sale id in response")
	}
	if !resp.Deduction.Success {
		t.Fatalf("expected deduction success, got %+v", resp.Deduction)
	}
	if len(resp.Deduction.Logs) == 0 {
		t.Fatalf("expected a deduction transcript, got none")
	}

	listRec := doJSON(t, handler, http.MethodGet, "/api/v1/ventas?limit=10", token, nil)
	if listRec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing sales, got %d", listRec.Code)
	}
	var list domain.SaleListResponse
	if err := json.NewDecoder(listRec.Body).Decode(&list); err != nil {
		t.Fatalf("decode sale list: %v", err)
	}
	if len(list.Sales) != 1 {
		t.Fatalf("expected 1 sale, got %d", len(list.Sales))
	}
}

func TestDeductionRulesAdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	vendedorToken := loginAs(t, handler, "vendedor", "vendedor123")
	rec := doJSON(t, handler, http.MethodGet, "/api/v1/config/reglas-descuento", vendedorToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for vendedor, got %d", rec.Code)
	}

	adminToken := loginAs(t, handler, "admin", "admin123")
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/config/reglas-descuento", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var current domain.RulesConfigResponse
	if err := json.NewDecoder(rec.Body).Decode(&current); err != nil {
		t.Fatalf("decode rules response: %v", err)
	}
	if current.Raw == "" {
		t.Fatalf("expected seeded rules blob")
	}
}

func TestDeductionRulesUpdateReportsWarnings(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	adminToken := loginAs(t, handler, "admin", "admin123")

	raw := `[{"id":"r1","conditions":[{"field":"color_tapa","operator":"eq","value":"dorado"}],"deductions":[{"type":"fixed","inventario_id":"bot-30-01","quantity":1}]}]`
	rec := doJSON(t, handler, http.MethodPut, "/api/v1/config/reglas-descuento", adminToken, domain.RulesConfigUpdateRequest{Raw: raw})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.RulesConfigResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode rules response: %v", err)
	}
	if len(resp.Warnings) == 0 {
		t.Fatalf("expected lint warnings for the unknown field")
	}

	badRec := doJSON(t, handler, http.MethodPut, "/api/v1/config/reglas-descuento", adminToken, domain.RulesConfigUpdateRequest{Raw: "no es json"})
	if badRec.Code == http.StatusOK {
		t.Fatalf("expected malformed blob to be rejected")
	}
}

func TestDebtSettleConflictOnSecondAttempt(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "vendedor", "vendedor123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/deudas", token, domain.DebtCreateRequest{
		Cliente: "Cliente Habitual", MontoCents: 95000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Deuda domain.Debt `json:"deuda"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode debt: %v", err)
	}

	settleRec := doJSON(t, handler, http.MethodPost, "/api/v1/deudas/"+created.Deuda.ID+"/pagar", token, nil)
	if settleRec.Code != http.StatusOK {
		t.Fatalf("expected 200 settling, got %d (body: %s)", settleRec.Code, settleRec.Body.String())
	}

	againRec := doJSON(t, handler, http.MethodPost, "/api/v1/deudas/"+created.Deuda.ID+"/pagar", token, nil)
	if againRec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second settle, got %d", againRec.Code)
	}
}

func TestVendedorManagementAdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	vendedorToken := loginAs(t, handler, "vendedor", "vendedor123")
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/usuarios/vendedores", vendedorToken, domain.VendedorCreateRequest{
		Username: "nuevo", Password: "clave123",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for vendedor, got %d", rec.Code)
	}

	adminToken := loginAs(t, handler, "admin", "admin123")
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/usuarios/vendedores", adminToken, domain.VendedorCreateRequest{
		Username: "nuevo", Password: "clave123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	listRec := doJSON(t, handler, http.MethodGet, "/api/v1/usuarios/vendedores", adminToken, nil)
	if listRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", listRec.Code)
	}
	var list struct {
		Vendedores []domain.VendedorUser `json:"vendedores"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&list); err != nil {
		t.Fatalf("decode vendedores: %v", err)
	}
	if len(list.Vendedores) < 2 {
		t.Fatalf("expected seeded plus created vendedor, got %d", len(list.Vendedores))
	}
}
