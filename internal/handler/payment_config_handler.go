package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/posgrado-epg/pagos-api/internal/service"
	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
	"github.com/posgrado-epg/pagos-api/pkg/response"
)

// PaymentConfigHandler exposes the payment destination endpoints.
type PaymentConfigHandler struct {
	configs *service.PaymentConfigService
}

// NewPaymentConfigHandler constructs PaymentConfigHandler.
func NewPaymentConfigHandler(configs *service.PaymentConfigService) *PaymentConfigHandler {
	return &PaymentConfigHandler{configs: configs}
}

// GetActive godoc
// @Summary Get the active payment destination
// @Tags PaymentConfig
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /configuracion-pago [get]
func (h *PaymentConfigHandler) GetActive(c *gin.Context) {
	cfg, err := h.configs.GetActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// Activate godoc
// @Summary Activate a new payment destination
// @Tags PaymentConfig
// @Accept json
// @Produce json
// @Param payload body service.PaymentConfigRequest true "Destination payload"
// @Success 201 {object} response.Envelope
// @Router /configuracion-pago [post]
func (h *PaymentConfigHandler) Activate(c *gin.Context) {
	var req service.PaymentConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	cfg, err := h.configs.Activate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cfg)
}

// Update godoc
// @Summary Update a payment destination
// @Tags PaymentConfig
// @Accept json
// @Produce json
// @Param id path string true "Destination ID"
// @Param payload body service.PaymentConfigRequest true "Destination payload"
// @Success 200 {object} response.Envelope
// @Router /configuracion-pago/{id} [put]
func (h *PaymentConfigHandler) Update(c *gin.Context) {
	var req service.PaymentConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	cfg, err := h.configs.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// Deactivate godoc
// @Summary Deactivate a payment destination
// @Tags PaymentConfig
// @Produce json
// @Param id path string true "Destination ID"
// @Success 204
// @Router /configuracion-pago/{id} [delete]
func (h *PaymentConfigHandler) Deactivate(c *gin.Context) {
	if err := h.configs.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
