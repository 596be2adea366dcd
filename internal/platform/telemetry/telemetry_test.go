package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHistogram_Observe(t *testing.T) {
	h := newHistogram([]float64{0.1, 0.5, 1.0})

	h.Observe(0.05)
	h.Observe(0.3)
	h.Observe(2.0)

	if got := h.Count(); got != 3 {
		t.Errorf("expected count 3, got %d", got)
	}
	if got := h.Sum(); got != 2.35 {
		t.Errorf("expected sum 2.35, got %g", got)
	}

	cum := h.cumulativeBuckets()
	if cum[0] != 1 || cum[1] != 2 || cum[2] != 2 {
		t.Errorf("unexpected cumulative buckets: %v", cum)
	}
}

func TestHistogram_ConcurrentObserve(t *testing.T) {
	h := newHistogram(defaultDurationBuckets)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Observe(0.05)
			}
		}()
	}
	wg.Wait()

	if got := h.Count(); got != 1000 {
		t.Errorf("expected count 1000, got %d", got)
	}
}

func TestProvider_TransitionCounter(t *testing.T) {
	p := NewProvider(Config{})

	p.TransitionCounter("confirm", "confirmed")
	p.TransitionCounter("confirm", "confirmed")
	p.TransitionCounter("decline", "declined")

	if got := p.GetTransitionCount("confirm", "confirmed"); got != 2 {
		t.Errorf("expected 2 confirm transitions, got %d", got)
	}
	if got := p.GetTransitionCount("decline", "declined"); got != 1 {
		t.Errorf("expected 1 decline transition, got %d", got)
	}
	if got := p.GetTransitionCount("cancel", "cancelled"); got != 0 {
		t.Errorf("expected 0 cancel transitions, got %d", got)
	}
}

func TestProvider_NotificationCounter(t *testing.T) {
	p := NewProvider(Config{})

	p.NotificationCounter(3)
	p.NotificationCounter(2)

	if got := p.GetNotificationCount(); got != 5 {
		t.Errorf("expected 5 notifications, got %d", got)
	}
}

func TestProvider_Resource(t *testing.T) {
	p := NewProvider(Config{ServiceName: "test-svc", Environment: "production"})

	res := p.Resource()
	if res["service.name"] != "test-svc" {
		t.Errorf("unexpected service name: %s", res["service.name"])
	}
	if res["deployment.environment"] != "production" {
		t.Errorf("unexpected environment: %s", res["deployment.environment"])
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	p := NewProvider(Config{})
	e := echo.New()
	e.Use(p.MetricsMiddleware())
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	h := p.GetHistogram("http.server.request.duration")
	if h == nil {
		t.Fatal("expected duration histogram to exist")
	}
	if h.Count() != 1 {
		t.Errorf("expected 1 observation, got %d", h.Count())
	}
	if p.GetGauge("http.server.active_requests") != 0 {
		t.Errorf("expected active requests back to 0, got %d", p.GetGauge("http.server.active_requests"))
	}
}

func TestMetricsMiddleware_Disabled(t *testing.T) {
	p := NewProvider(Config{Enabled: BoolPtr(false)})
	e := echo.New()
	e.Use(p.MetricsMiddleware())
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if h := p.GetHistogram("http.server.request.duration"); h != nil {
		t.Error("expected no histogram when disabled")
	}
}

func TestPrometheusHandler_Exposition(t *testing.T) {
	p := NewProvider(Config{})
	p.TransitionCounter("book", "pending")
	p.NotificationCounter(2)
	p.SetDBPoolActive(4)

	e := echo.New()
	e.GET("/metrics", p.PrometheusHandler())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`appointment_transition_count{action="book",to_status="pending"} 1`,
		"notification_sent_count 2",
		"db_pool_active_connections 4",
		"# TYPE http_server_request_duration_seconds histogram",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestProvider_Shutdown(t *testing.T) {
	p := NewProvider(Config{})
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Second shutdown must not panic.
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
