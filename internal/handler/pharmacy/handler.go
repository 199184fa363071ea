package pharmacy

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/hms-api/internal/middleware"
	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/internal/service/appointment"
	"github.com/jwalitptl/hms-api/internal/service/dispensing"
	apperrors "github.com/jwalitptl/hms-api/pkg/errors"
)

type Handler struct {
	dispensing   *dispensing.Service
	appointments *appointment.Service
}

func NewHandler(dispensingSvc *dispensing.Service, appointmentSvc *appointment.Service) *Handler {
	return &Handler{dispensing: dispensingSvc, appointments: appointmentSvc}
}

func (h *Handler) Queue(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
		return
	}

	queue, err := h.appointments.PharmacyQueue(c.Request.Context(), actor)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": queue})
}

func (h *Handler) Dispense(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
		return
	}

	prescriptionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid prescription ID"})
		return
	}

	var req model.DispenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	d, err := h.dispensing.Dispense(c.Request.Context(), actor, prescriptionID, &req)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": d})
}

func (h *Handler) Inventory(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
		return
	}

	batches, err := h.dispensing.Inventory(c.Request.Context(), actor)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": batches})
}

func (h *Handler) SearchMedicines(c *gin.Context) {
	limit := 0
	if l := c.Query("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid limit"})
			return
		}
	}

	meds, err := h.dispensing.SearchMedicines(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": meds})
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	pharmacy := r.Group("/pharmacy")
	{
		pharmacy.GET("/queue", h.Queue)
		pharmacy.GET("/inventory", h.Inventory)
	}

	r.POST("/prescriptions/:id/dispense", h.Dispense)
	r.GET("/medicines", h.SearchMedicines)
}
