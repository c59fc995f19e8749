package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/paytrace/installments/internal/auth"
	"github.com/paytrace/installments/internal/db"
	"github.com/paytrace/installments/internal/models"
	"github.com/paytrace/installments/internal/services"
)

func setupInstallmentTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func seedUser(t *testing.T, conn *gorm.DB, username string) models.User {
	t.Helper()
	u := models.User{Username: username, Password: "x"}
	if err := conn.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func asUser(req *http.Request, uid uint) *http.Request {
	return req.WithContext(auth.WithUserID(req.Context(), uid))
}

const laptopBody = `{
	"title": "Laptop",
	"amount": 1200.00,
	"monthCount": 3,
	"startDate": "2024-01-01",
	"monthlyPayments": [
		{"date": "2024-01-01", "amount": 400},
		{"date": "2024-02-01", "amount": 400},
		{"date": "2024-03-01", "amount": 400}
	]
}`

func createInstallment(t *testing.T, h *InstallmentHandler, uid uint, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/installments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Create(w, asUser(req, uid))
	return w
}

func TestInstallmentCreate(t *testing.T) {
	conn := setupInstallmentTestDB(t)
	user := seedUser(t, conn, "alice_1")
	h := NewInstallmentHandler(services.NewInstallmentService(conn))

	w := createInstallment(t, h, user.ID, laptopBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var created struct {
		ID              uint    `json:"id"`
		Title           string  `json:"title"`
		Amount          float64 `json:"amount"`
		MonthCount      int     `json:"monthCount"`
		MonthlyPayments []struct {
			ID       string  `json:"id"`
			Amount   float64 `json:"amount"`
			Paid     bool    `json:"paid"`
			PaidDate any     `json:"paidDate"`
		} `json:"monthlyPayments"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == 0 || created.Title != "Laptop" || created.Amount != 1200 || created.MonthCount != 3 {
		t.Fatalf("unexpected installment: %+v", created)
	}
	if len(created.MonthlyPayments) != 3 {
		t.Fatalf("payments = %d, want 3", len(created.MonthlyPayments))
	}
	ids := map[string]bool{}
	for _, p := range created.MonthlyPayments {
		if p.ID == "" || p.Paid || p.PaidDate != nil {
			t.Fatalf("payment not initialized: %+v", p)
		}
		ids[p.ID] = true
	}
	if len(ids) != 3 {
		t.Fatalf("payment ids not unique: %v", ids)
	}
}

func TestInstallmentCreateRejectsMismatch(t *testing.T) {
	conn := setupInstallmentTestDB(t)
	user := seedUser(t, conn, "alice_1")
	h := NewInstallmentHandler(services.NewInstallmentService(conn))

	body := strings.Replace(laptopBody, `{"date": "2024-03-01", "amount": 400}`, `{"date": "2024-03-01", "amount": 399.99}`, 1)
	w := createInstallment(t, h, user.ID, body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Error   string         `json:"error"`
		Details map[string]any `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "monthly_payments_total_mismatch" {
		t.Fatalf("error = %s", resp.Error)
	}
	if resp.Details["paymentsTotal"] != 1199.99 || resp.Details["amount"] != 1200.00 {
		t.Fatalf("details = %v", resp.Details)
	}

	// Nothing may be persisted on a rejected request.
	var count int64
	conn.Model(&models.Installment{}).Count(&count)
	if count != 0 {
		t.Fatalf("rejected request was persisted")
	}
}

func TestInstallmentCreateRejectsCountMismatch(t *testing.T) {
	conn := setupInstallmentTestDB(t)
	user := seedUser(t, conn, "alice_1")
	h := NewInstallmentHandler(services.NewInstallmentService(conn))

	body := `{
		"title": "Laptop",
		"amount": 1200.00,
		"monthCount": 3,
		"startDate": "2024-01-01",
		"monthlyPayments": [
			{"date": "2024-01-01", "amount": 600},
			{"date": "2024-02-01", "amount": 600}
		]
	}`
	w := createInstallment(t, h, user.ID, body)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "monthly_payments_count_mismatch") {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}

func TestInstallmentListNewestFirst(t *testing.T) {
	conn := setupInstallmentTestDB(t)
	user := seedUser(t, conn, "alice_1")
	h := NewInstallmentHandler(services.NewInstallmentService(conn))

	if w := createInstallment(t, h, user.ID, laptopBody); w.Code != http.StatusCreated {
		t.Fatalf("create 1: %d", w.Code)
	}
	second := strings.Replace(laptopBody, `"Laptop"`, `"Phone"`, 1)
	if w := createInstallment(t, h, user.ID, second); w.Code != http.StatusCreated {
		t.Fatalf("create 2: %d", w.Code)
	}

	req := asUser(httptest.NewRequest(http.MethodGet, "/installments", nil), user.ID)
	w := httptest.NewRecorder()
	h.List(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var list []struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 || list[0].Title != "Phone" || list[1].Title != "Laptop" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestInstallmentListEmptyIsArray(t *testing.T) {
	conn := setupInstallmentTestDB(t)
	user := seedUser(t, conn, "alice_1")
	h := NewInstallmentHandler(services.NewInstallmentService(conn))

	req := asUser(httptest.NewRequest(http.MethodGet, "/installments", nil), user.ID)
	w := httptest.NewRecorder()
	h.List(w, req)
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Fatalf("expected [] got %s", body)
	}
}

func TestInstallmentListScopedToOwner(t *testing.T) {
	conn := setupInstallmentTestDB(t)
	alice := seedUser(t, conn, "alice_1")
	bob := seedUser(t, conn, "bob_1")
	h := NewInstallmentHandler(services.NewInstallmentService(conn))

	if w := createInstallment(t, h, alice.ID, laptopBody); w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}

	req := asUser(httptest.NewRequest(http.MethodGet, "/installments", nil), bob.ID)
	w := httptest.NewRecorder()
	h.List(w, req)
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Fatalf("bob sees alice's plans: %s", body)
	}
}

func TestToggleBatch(t *testing.T) {
	conn := setupInstallmentTestDB(t)
	user := seedUser(t, conn, "alice_1")
	svc := services.NewInstallmentService(conn)
	h := NewInstallmentHandler(svc)

	if w := createInstallment(t, h, user.ID, laptopBody); w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}
	var inst models.Installment
	if err := conn.Preload("MonthlyPayments").First(&inst).Error; err != nil {
		t.Fatalf("load installment: %v", err)
	}

	body := fmt.Sprintf(`[
		{"installmentId": %d, "paymentId": %q},
		{"installmentId": %d, "paymentId": %q},
		{"installmentId": 999999, "paymentId": "no-such-payment"}
	]`, inst.ID, inst.MonthlyPayments[0].PublicID, inst.ID, inst.MonthlyPayments[1].PublicID)

	req := httptest.NewRequest(http.MethodPut, "/installments/pay", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ToggleBatch(w, asUser(req, user.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var out []models.Installment
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("affected installments = %d, want 1", len(out))
	}
	paid := 0
	for _, p := range out[0].MonthlyPayments {
		if p.Paid {
			if p.PaidDate == nil {
				t.Fatalf("paid payment without paidDate: %+v", p)
			}
			paid++
		}
	}
	if paid != 2 {
		t.Fatalf("paid payments = %d, want 2", paid)
	}
}

func TestToggleBatchRequiresArray(t *testing.T) {
	conn := setupInstallmentTestDB(t)
	user := seedUser(t, conn, "alice_1")
	h := NewInstallmentHandler(services.NewInstallmentService(conn))

	for _, body := range []string{`[]`, `{}`, `not json`} {
		req := httptest.NewRequest(http.MethodPut, "/installments/pay", strings.NewReader(body))
		w := httptest.NewRecorder()
		h.ToggleBatch(w, asUser(req, user.ID))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400 got %d", body, w.Code)
		}
	}
}
