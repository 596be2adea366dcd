package clinic

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicflow/clinicflow/internal/platform/auth"
)

func setupHandlerTest(t *testing.T) (*echo.Echo, Repository, *stubBookedTimes) {
	t.Helper()
	repo := NewRepoMem()
	booked := newStubBookedTimes()
	svc := NewService(repo, booked, 30)
	h := NewHandler(svc)

	e := echo.New()
	e.Use(auth.DevAuthMiddleware())
	h.RegisterRoutes(e.Group("/api"))
	return e, repo, booked
}

func TestHandler_Slots(t *testing.T) {
	e, repo, booked := setupHandlerTest(t)
	c := newTestClinic(t, repo)
	booked.set(c.ID, monday, []string{"09:00"})

	req := httptest.NewRequest(http.MethodGet, "/api/clinics/"+c.ID.String()+"/slots?date=2024-01-15", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Date  string     `json:"date"`
		Slots []TimeSlot `json:"slots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Date != "2024-01-15" {
		t.Errorf("unexpected date: %s", resp.Date)
	}
	if len(resp.Slots) != 14 {
		t.Fatalf("expected 14 slots, got %d", len(resp.Slots))
	}
	if resp.Slots[0].Time != "09:00" || resp.Slots[0].Available {
		t.Errorf("expected 09:00 unavailable, got %+v", resp.Slots[0])
	}
}

func TestHandler_Slots_MissingDate(t *testing.T) {
	e, repo, _ := setupHandlerTest(t)
	c := newTestClinic(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/clinics/"+c.ID.String()+"/slots", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_Slots_BadDate(t *testing.T) {
	e, repo, _ := setupHandlerTest(t)
	c := newTestClinic(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/clinics/"+c.ID.String()+"/slots?date=15-01-2024", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_Slots_UnknownClinic(t *testing.T) {
	e, _, _ := setupHandlerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/clinics/"+uuid.NewString()+"/slots?date=2024-01-15", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_Create(t *testing.T) {
	e, _, _ := setupHandlerTest(t)

	body := `{"name":"Riverside Clinic","timezone":"UTC","operating_hours":{"monday":{"open":"09:00","close":"17:00"}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/clinics", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Actor-Role", "clinic")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created Clinic
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Error("expected generated id")
	}
}

func TestHandler_Create_RequiresClinicRole(t *testing.T) {
	e, _, _ := setupHandlerTest(t)

	body := `{"name":"Riverside Clinic"}`
	req := httptest.NewRequest(http.MethodPost, "/api/clinics", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Actor-Role", "patient")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_Get(t *testing.T) {
	e, repo, _ := setupHandlerTest(t)
	c := newTestClinic(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/clinics/"+c.ID.String(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got Clinic
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != c.Name {
		t.Errorf("expected name %q, got %q", c.Name, got.Name)
	}
}
