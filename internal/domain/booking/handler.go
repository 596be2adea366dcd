package booking

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicflow/clinicflow/internal/platform/auth"
	"github.com/clinicflow/clinicflow/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/appointments", auth.RequireRole(auth.RolePatient, auth.RoleClinic, auth.RoleDoctor))

	g.POST("", h.book)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/history", h.history)
	g.GET("/:id/assignments", h.assignments)

	g.POST("/:id/assign", h.assign)
	g.POST("/:id/confirm", h.confirm)
	g.POST("/:id/decline", h.decline)
	g.POST("/:id/start", h.start)
	g.POST("/:id/complete", h.complete)
	g.POST("/:id/prescription", h.submitPrescription)
	g.POST("/:id/rating", h.rate)
	g.POST("/:id/cancel", h.cancel)
}

func (h *Handler) book(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	a, err := h.svc.Book(c.Request().Context(), actor, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) list(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	p := pagination.FromContext(c)
	status := AppointmentStatus(c.QueryParam("status"))

	items, total, err := h.svc.ListForActor(c.Request().Context(), actor, status, p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) get(c echo.Context) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) history(c echo.Context) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	changes, err := h.svc.History(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, changes)
}

func (h *Handler) assignments(c echo.Context) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	rows, err := h.svc.Assignments(c.Request().Context(), actor, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rows)
}

type assignRequest struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Version  int       `json:"version"`
	Note     *string   `json:"note,omitempty"`
}

func (h *Handler) assign(c echo.Context) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Assign(c.Request().Context(), actor, id, req.DoctorID, req.Version, req.Note)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type versionRequest struct {
	Version int `json:"version"`
}

func (h *Handler) confirm(c echo.Context) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	var req versionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Confirm(c.Request().Context(), actor, id, req.Version)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type declineRequest struct {
	Version int    `json:"version"`
	Reason  string `json:"reason"`
}

func (h *Handler) decline(c echo.Context) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	var req declineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Decline(c.Request().Context(), actor, id, req.Version, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) start(c echo.Context) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	var req versionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Start(c.Request().Context(), actor, id, req.Version)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type completeRequest struct {
	Version int     `json:"version"`
	Notes   *string `json:"notes,omitempty"`
}

func (h *Handler) complete(c echo.Context) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Complete(c.Request().Context(), actor, id, req.Version, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type prescriptionRequest struct {
	Version int `json:"version"`
	PrescriptionInput
}

func (h *Handler) submitPrescription(c echo.Context) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	var req prescriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.SubmitPrescription(c.Request().Context(), actor, id, req.Version, req.PrescriptionInput)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type ratingRequest struct {
	Version      int     `json:"version"`
	ClinicRating int     `json:"clinic_rating"`
	DoctorRating int     `json:"doctor_rating"`
	Feedback     *string `json:"feedback,omitempty"`
}

func (h *Handler) rate(c echo.Context) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	var req ratingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Rate(c.Request().Context(), actor, id, req.Version, req.ClinicRating, req.DoctorRating, req.Feedback)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type cancelRequest struct {
	Version int    `json:"version"`
	Reason  string `json:"reason,omitempty"`
}

func (h *Handler) cancel(c echo.Context) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Cancel(c.Request().Context(), actor, id, req.Version, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func actorAndID(c echo.Context) (auth.Actor, uuid.UUID, error) {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return auth.Actor{}, uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return auth.Actor{}, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	return actor, id, nil
}

// httpError maps domain errors onto HTTP statuses.
func httpError(err error) error {
	var invalid *InvalidTransitionError
	var validation *ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, ErrConflict.Error())
	case errors.Is(err, ErrNotAuthorized):
		return echo.NewHTTPError(http.StatusForbidden, "not authorized for this appointment")
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, invalid.Error())
	case errors.As(err, &validation):
		return echo.NewHTTPError(http.StatusBadRequest, validation.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
