package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/posgrado-epg/pagos-api/internal/models"
	"github.com/posgrado-epg/pagos-api/internal/service"
	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
	"github.com/posgrado-epg/pagos-api/pkg/response"
)

// DiscountHandler exposes discount catalog endpoints.
type DiscountHandler struct {
	discounts *service.DiscountService
}

// NewDiscountHandler constructs DiscountHandler.
func NewDiscountHandler(discounts *service.DiscountService) *DiscountHandler {
	return &DiscountHandler{discounts: discounts}
}

// List godoc
// @Summary List discounts
// @Tags Discounts
// @Produce json
// @Param cursoId query string false "Filter by course"
// @Param activo query bool false "Filter by active flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /descuentos [get]
func (h *DiscountHandler) List(c *gin.Context) {
	var filter models.DiscountFilter
	filter.CursoID = c.Query("cursoId")
	if raw := c.Query("activo"); raw != "" {
		if activo, err := strconv.ParseBool(raw); err == nil {
			filter.Activo = &activo
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	discounts, pagination, err := h.discounts.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discounts, pagination)
}

// Get godoc
// @Summary Get discount
// @Tags Discounts
// @Produce json
// @Param id path string true "Discount ID"
// @Success 200 {object} response.Envelope
// @Router /descuentos/{id} [get]
func (h *DiscountHandler) Get(c *gin.Context) {
	discount, err := h.discounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discount, nil)
}

// Create godoc
// @Summary Create discount
// @Tags Discounts
// @Accept json
// @Produce json
// @Param payload body service.DiscountRequest true "Discount payload"
// @Success 201 {object} response.Envelope
// @Router /descuentos [post]
func (h *DiscountHandler) Create(c *gin.Context) {
	var req service.DiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	discount, err := h.discounts.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, discount)
}

// Update godoc
// @Summary Update discount
// @Tags Discounts
// @Accept json
// @Produce json
// @Param id path string true "Discount ID"
// @Param payload body service.DiscountRequest true "Discount payload"
// @Success 200 {object} response.Envelope
// @Router /descuentos/{id} [put]
func (h *DiscountHandler) Update(c *gin.Context) {
	var req service.DiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	discount, err := h.discounts.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discount, nil)
}
