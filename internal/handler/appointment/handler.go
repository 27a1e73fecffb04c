package appointment

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type Service interface {
	Create(ctx context.Context, sess *model.Session, req *model.CreateAppointmentRequest) (*model.ActionResult, error)
	Upsert(ctx context.Context, sess *model.Session, req *model.UpsertAppointmentRequest) (*model.ActionResult, error)
	Delete(ctx context.Context, sess *model.Session, id uuid.UUID) (*model.ActionResult, error)
	List(ctx context.Context, sess *model.Session) ([]*model.AppointmentDetails, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.PUT("", h.UpsertAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.PUT("/:id", h.UpsertAppointment)
		appointments.DELETE("/:id", h.DeleteAppointment)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondError(c, apperrors.BadRequest("Requisição inválida.", err))
		return
	}

	result, err := h.service.Create(c.Request.Context(), handler.SessionFrom(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewActionResponse(result))
}

// UpsertAppointment serves both PUT /appointments (id optional in the body)
// and PUT /appointments/:id, where the path id wins.
func (h *Handler) UpsertAppointment(c *gin.Context) {
	var req model.UpsertAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondError(c, apperrors.BadRequest("Requisição inválida.", err))
		return
	}

	if raw := c.Param("id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			handler.RespondError(c, apperrors.BadRequest("invalid appointment ID", err))
			return
		}
		req.ID = &id
	}

	result, err := h.service.Upsert(c.Request.Context(), handler.SessionFrom(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	status := http.StatusOK
	if req.ID == nil {
		status = http.StatusCreated
	}
	c.JSON(status, handler.NewActionResponse(result))
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.BadRequest("invalid appointment ID", err))
		return
	}

	result, err := h.service.Delete(c.Request.Context(), handler.SessionFrom(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewActionResponse(result))
}

func (h *Handler) ListAppointments(c *gin.Context) {
	appointments, err := h.service.List(c.Request.Context(), handler.SessionFrom(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
}
