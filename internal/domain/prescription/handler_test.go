package prescription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicflow/clinicflow/internal/platform/auth"
)

func setupHandlerTest(t *testing.T) (*echo.Echo, *Service) {
	t.Helper()
	svc := NewService(NewRepoMem())
	h := NewHandler(svc)

	e := echo.New()
	e.Use(auth.DevAuthMiddleware())
	h.RegisterRoutes(e.Group("/api"))
	return e, svc
}

func actorRequest(method, target string, actorID uuid.UUID, role string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("X-Actor-ID", actorID.String())
	req.Header.Set("X-Actor-Role", role)
	return req
}

func TestHandler_Get_AsPatient(t *testing.T) {
	e, svc := setupHandlerTest(t)
	p := validPrescription()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, actorRequest(http.MethodGet, "/api/prescriptions/"+p.ID.String(), p.PatientID, "patient"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got Prescription
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Diagnosis != p.Diagnosis {
		t.Errorf("expected diagnosis %q, got %q", p.Diagnosis, got.Diagnosis)
	}
	if len(got.Medications) != 1 {
		t.Errorf("expected 1 medication, got %d", len(got.Medications))
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	e, _ := setupHandlerTest(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, actorRequest(http.MethodGet, "/api/prescriptions/"+uuid.NewString(), uuid.New(), "patient"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_Get_ForbiddenForStranger(t *testing.T) {
	e, svc := setupHandlerTest(t)
	p := validPrescription()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, actorRequest(http.MethodGet, "/api/prescriptions/"+p.ID.String(), uuid.New(), "doctor"))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_Download(t *testing.T) {
	e, svc := setupHandlerTest(t)
	p := validPrescription()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, actorRequest(http.MethodPost, "/api/prescriptions/"+p.ID.String()+"/download", p.PatientID, "patient"))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_List_AsDoctor(t *testing.T) {
	e, svc := setupHandlerTest(t)
	doctorID := uuid.New()

	for i := 0; i < 2; i++ {
		p := validPrescription()
		p.DoctorID = doctorID
		if err := svc.Create(context.Background(), p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, actorRequest(http.MethodGet, "/api/prescriptions", doctorID, "doctor"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("expected total 2, got %d", resp.Total)
	}
}
