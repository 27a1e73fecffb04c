package doctor

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/scheduling"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type Service interface {
	List(ctx context.Context, sess *model.Session) ([]*model.Doctor, error)
	Price(ctx context.Context, sess *model.Session, id uuid.UUID) (scheduling.Price, error)
	Slots(ctx context.Context, sess *model.Session, id uuid.UUID) ([]string, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors")
	{
		doctors.GET("", h.ListDoctors)
		doctors.GET("/:id/price", h.GetPrice)
		doctors.GET("/:id/slots", h.GetSlots)
	}
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.service.List(c.Request.Context(), handler.SessionFrom(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctors))
}

func (h *Handler) GetPrice(c *gin.Context) {
	id, ok := doctorID(c)
	if !ok {
		return
	}
	price, err := h.service.Price(c.Request.Context(), handler.SessionFrom(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(price))
}

func (h *Handler) GetSlots(c *gin.Context) {
	id, ok := doctorID(c)
	if !ok {
		return
	}
	slots, err := h.service.Slots(c.Request.Context(), handler.SessionFrom(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(slots))
}

func doctorID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.BadRequest("invalid doctor ID", err))
		return uuid.Nil, false
	}
	return id, true
}
