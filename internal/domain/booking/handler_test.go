package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/domain/notification"
	"github.com/clinicflow/clinicflow/internal/domain/prescription"
	"github.com/clinicflow/clinicflow/internal/platform/auth"
)

type handlerEnv struct {
	e       *echo.Echo
	svc     *Service
	patient uuid.UUID
	clinic  uuid.UUID
	doctor  uuid.UUID
}

func setupHandlerTest(t *testing.T) *handlerEnv {
	t.Helper()
	appts := NewAppointmentRepoMem()
	assigns := NewAssignmentRepoMem()
	notifier := notification.NewService(notification.NewRepoMem())
	rx := prescription.NewService(prescription.NewRepoMem())
	svc := NewService(appts, assigns, notifier, rx, PassthroughTx, Policy{ReassignDeclined: true}, zerolog.Nop())

	e := echo.New()
	e.Use(auth.DevAuthMiddleware())
	NewHandler(svc).RegisterRoutes(e.Group("/api"))
	return &handlerEnv{
		e:       e,
		svc:     svc,
		patient: uuid.New(),
		clinic:  uuid.New(),
		doctor:  uuid.New(),
	}
}

func (h *handlerEnv) request(method, target string, body interface{}, actorID uuid.UUID, role string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Actor-ID", actorID.String())
	req.Header.Set("X-Actor-Role", role)
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func (h *handlerEnv) bookOne(t *testing.T) *Appointment {
	t.Helper()
	a, err := h.svc.Book(context.Background(), auth.Actor{ID: h.patient, Role: auth.RolePatient}, BookRequest{
		ClinicID: h.clinic,
		Date:     "2024-01-15",
		Time:     "14:00",
		Type:     "consultation",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return a
}

func TestHandler_Book(t *testing.T) {
	env := setupHandlerTest(t)

	rec := env.request(http.MethodPost, "/api/appointments", map[string]interface{}{
		"clinic_id": env.clinic.String(),
		"date":      "2024-01-15",
		"time":      "14:00",
		"type":      "consultation",
	}, env.patient, "patient")

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var a Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusPending {
		t.Errorf("status = %s, want pending", a.Status)
	}
	if a.Version != 1 {
		t.Errorf("version = %d, want 1", a.Version)
	}
}

func TestHandler_Book_InvalidDate(t *testing.T) {
	env := setupHandlerTest(t)

	rec := env.request(http.MethodPost, "/api/appointments", map[string]interface{}{
		"clinic_id": env.clinic.String(),
		"date":      "15-01-2024",
		"time":      "14:00",
		"type":      "consultation",
	}, env.patient, "patient")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_Book_AsClinicForbidden(t *testing.T) {
	env := setupHandlerTest(t)

	rec := env.request(http.MethodPost, "/api/appointments", map[string]interface{}{
		"clinic_id": env.clinic.String(),
		"date":      "2024-01-15",
		"time":      "14:00",
		"type":      "consultation",
	}, env.clinic, "clinic")

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Assign(t *testing.T) {
	env := setupHandlerTest(t)
	a := env.bookOne(t)

	rec := env.request(http.MethodPost, "/api/appointments/"+a.ID.String()+"/assign", map[string]interface{}{
		"doctor_id": env.doctor.String(),
		"version":   a.Version,
	}, env.clinic, "clinic")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusAssigned {
		t.Errorf("status = %s, want assigned", got.Status)
	}
}

func TestHandler_Assign_StaleVersion(t *testing.T) {
	env := setupHandlerTest(t)
	a := env.bookOne(t)

	first := env.request(http.MethodPost, "/api/appointments/"+a.ID.String()+"/assign", map[string]interface{}{
		"doctor_id": env.doctor.String(),
		"version":   a.Version,
	}, env.clinic, "clinic")
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.Code)
	}

	rec := env.request(http.MethodPost, "/api/appointments/"+a.ID.String()+"/cancel", map[string]interface{}{
		"version": a.Version,
	}, env.patient, "patient")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Confirm_WrongState(t *testing.T) {
	env := setupHandlerTest(t)
	a := env.bookOne(t)

	rec := env.request(http.MethodPost, "/api/appointments/"+a.ID.String()+"/confirm", map[string]interface{}{
		"version": a.Version,
	}, env.doctor, "doctor")

	// Pending appointment has no doctor, so the actor check fires first.
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_InvalidTransition(t *testing.T) {
	env := setupHandlerTest(t)
	a := env.bookOne(t)

	ctx := context.Background()
	a, err := env.svc.Assign(ctx, auth.Actor{ID: env.clinic, Role: auth.RoleClinic}, a.ID, env.doctor, a.Version, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err = env.svc.Confirm(ctx, auth.Actor{ID: env.doctor, Role: auth.RoleDoctor}, a.ID, a.Version)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := env.request(http.MethodPost, "/api/appointments/"+a.ID.String()+"/complete", map[string]interface{}{
		"version": a.Version,
	}, env.doctor, "doctor")

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	env := setupHandlerTest(t)

	rec := env.request(http.MethodGet, "/api/appointments/"+uuid.NewString(), nil, env.patient, "patient")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_Get_BadID(t *testing.T) {
	env := setupHandlerTest(t)

	rec := env.request(http.MethodGet, "/api/appointments/not-a-uuid", nil, env.patient, "patient")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_List(t *testing.T) {
	env := setupHandlerTest(t)
	env.bookOne(t)

	rec := env.request(http.MethodGet, "/api/appointments?status=pending", nil, env.patient, "patient")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("total = %d, want 1", resp.Total)
	}
}

func TestHandler_History(t *testing.T) {
	env := setupHandlerTest(t)
	a := env.bookOne(t)

	rec := env.request(http.MethodGet, "/api/appointments/"+a.ID.String()+"/history", nil, env.patient, "patient")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var changes []StatusChange
	if err := json.Unmarshal(rec.Body.Bytes(), &changes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changes) != 1 || changes[0].Action != ActionBook {
		t.Errorf("history = %+v, want single book entry", changes)
	}
}
