package healthrecord

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/implanttrace/healthbridge/internal/handler"
	"github.com/implanttrace/healthbridge/internal/model"
	"github.com/implanttrace/healthbridge/internal/service/healthrecord"
	"github.com/implanttrace/healthbridge/pkg/errors"
)

type Handler struct {
	service *healthrecord.Service
}

func NewHandler(service *healthrecord.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	authorization := r.Group("/authorization")
	{
		authorization.POST("/request", h.RequestAuthorization)
		authorization.GET("/status", h.GetStatus)
		authorization.POST("/deny", h.Deny)
		authorization.POST("/reset", h.Reset)
	}

	records := r.Group("/records")
	{
		records.POST("", h.SaveRecord)
		records.GET("", h.ListRecords)
		records.DELETE("/:id", h.DeleteRecord)
	}
}

func (h *Handler) RequestAuthorization(c *gin.Context) {
	status, err := h.service.RequestAuthorization(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": status}))
}

func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": h.service.Status()}))
}

func (h *Handler) Deny(c *gin.Context) {
	if err := h.service.Deny(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": h.service.Status()}))
}

func (h *Handler) Reset(c *gin.Context) {
	if err := h.service.Reset(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": h.service.Status()}))
}

func (h *Handler) SaveRecord(c *gin.Context) {
	var rec model.ImplantRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	saved, err := h.service.SaveRecord(c.Request.Context(), rec)
	if err != nil {
		h.writeError(c, err)
		return
	}

	// A permission gap is a resolved negative result, not an error, so the
	// client can distinguish it from a transient fault.
	resp := gin.H{"saved": saved}
	if !saved {
		resp["status"] = h.service.Status()
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) ListRecords(c *gin.Context) {
	records, err := h.service.ListRecords(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"records": records}))
}

func (h *Handler) DeleteRecord(c *gin.Context) {
	removed, err := h.service.DeleteRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"removed": removed}))
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch errors.CodeOf(err) {
	case errors.ErrValidation, errors.ErrBadRequest, errors.ErrDuplicate:
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
	case errors.ErrNotFound:
		c.JSON(http.StatusNotFound, handler.NewErrorResponse(err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
	}
}
