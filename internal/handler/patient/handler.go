package patient

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
	Upsert(ctx context.Context, sess *model.Session, req *model.UpsertPatientRequest) (*model.ActionResult, error)
	Delete(ctx context.Context, sess *model.Session, id uuid.UUID) (*model.ActionResult, error)
	List(ctx context.Context, sess *model.Session) ([]*model.Patient, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.UpsertPatient)
		patients.PUT("", h.UpsertPatient)
		patients.GET("", h.ListPatients)
		patients.PUT("/:id", h.UpsertPatient)
		patients.DELETE("/:id", h.DeletePatient)
	}
}

func (h *Handler) UpsertPatient(c *gin.Context) {
	var req model.UpsertPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondError(c, apperrors.BadRequest("Requisição inválida.", err))
		return
	}

	if raw := c.Param("id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			handler.RespondError(c, apperrors.BadRequest("invalid patient ID", err))
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

func (h *Handler) DeletePatient(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.RespondError(c, apperrors.BadRequest("invalid patient ID", err))
		return
	}

	result, err := h.service.Delete(c.Request.Context(), handler.SessionFrom(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewActionResponse(result))
}

func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.service.List(c.Request.Context(), handler.SessionFrom(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(patients))
}
