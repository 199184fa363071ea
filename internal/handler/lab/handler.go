package lab

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/hms-api/internal/middleware"
	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/internal/service/lab"
	apperrors "github.com/jwalitptl/hms-api/pkg/errors"
)

type Handler struct {
	service *lab.Service
}

func NewHandler(service *lab.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Worklist(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
		return
	}

	reports, err := h.service.Worklist(c.Request.Context(), actor, model.LabReportStatus(c.Query("status")))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": reports})
}

func (h *Handler) StartProcessing(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
		return
	}

	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid lab report ID"})
		return
	}

	report, err := h.service.StartProcessing(c.Request.Context(), actor, reportID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": report})
}

func (h *Handler) Complete(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
		return
	}

	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid lab report ID"})
		return
	}

	var req model.CompleteLabTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	report, err := h.service.Complete(c.Request.Context(), actor, reportID, &req)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": report})
}

func (h *Handler) AppointmentReports(c *gin.Context) {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	reports, err := h.service.Reports(c.Request.Context(), appointmentID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": reports})
}

func (h *Handler) TestTypes(c *gin.Context) {
	types, err := h.service.TestTypes(c.Request.Context())
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": types})
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	labGroup := r.Group("/lab")
	{
		labGroup.GET("/worklist", h.Worklist)
		labGroup.GET("/test-types", h.TestTypes)
		labGroup.POST("/reports/:id/start", h.StartProcessing)
		labGroup.POST("/reports/:id/complete", h.Complete)
	}

	r.GET("/appointments/:id/lab-reports", h.AppointmentReports)
}
