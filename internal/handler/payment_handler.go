package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/posgrado-epg/pagos-api/internal/models"
	"github.com/posgrado-epg/pagos-api/internal/service"
	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
	"github.com/posgrado-epg/pagos-api/pkg/response"
)

// PaymentHandler exposes voucher submission and review endpoints.
type PaymentHandler struct {
	ledger   *service.LedgerService
	vouchers *service.VoucherService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(ledger *service.LedgerService, vouchers *service.VoucherService) *PaymentHandler {
	return &PaymentHandler{ledger: ledger, vouchers: vouchers}
}

// rejectPaymentRequest is the review rejection payload.
type rejectPaymentRequest struct {
	Motivo string `json:"motivo" binding:"required"`
}

// List godoc
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param inscripcionId query string false "Filter by enrollment"
// @Param estudianteId query string false "Filter by student"
// @Param cursoId query string false "Filter by course"
// @Param estado query string false "Filter by review state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /pagos [get]
func (h *PaymentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.PaymentFilter
	filter.InscripcionID = c.Query("inscripcionId")
	filter.EstudianteID = c.Query("estudianteId")
	filter.CursoID = c.Query("cursoId")
	filter.Estado = models.PaymentStatus(strings.ToUpper(c.Query("estado")))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	payments, pagination, err := h.ledger.ListPayments(c.Request.Context(), filter, *claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, pagination)
}

// Pending godoc
// @Summary List payments awaiting review
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /pagos/pendientes [get]
func (h *PaymentHandler) Pending(c *gin.Context) {
	payments, err := h.ledger.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Get godoc
// @Summary Get payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /pagos/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	payment, err := h.ledger.GetPayment(c.Request.Context(), c.Param("id"), *claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Create godoc
// @Summary Submit a payment voucher
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.SubmitPaymentRequest true "Voucher payload"
// @Success 201 {object} response.Envelope
// @Router /inscripciones/{id}/pagos [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.ledger.CreatePayment(c.Request.Context(), c.Param("id"), *claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Approve godoc
// @Summary Approve a pending payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /pagos/{id}/aprobar [put]
func (h *PaymentHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollment, err := h.ledger.ApprovePayment(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Reject godoc
// @Summary Reject a pending payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body rejectPaymentRequest true "Rejection payload"
// @Success 200 {object} response.Envelope
// @Router /pagos/{id}/rechazar [put]
func (h *PaymentHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req rejectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.ledger.RejectPayment(c.Request.Context(), c.Param("id"), claims.UserID, req.Motivo)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// UploadVoucher godoc
// @Summary Upload a voucher image or PDF
// @Tags Payments
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Voucher file"
// @Success 201 {object} response.Envelope
// @Router /pagos/comprobantes [post]
func (h *PaymentHandler) UploadVoucher(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "voucher file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read voucher file"))
		return
	}
	defer file.Close() //nolint:errcheck
	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read voucher file"))
		return
	}

	stored, err := h.vouchers.Store(fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, stored)
}

// DownloadVoucher godoc
// @Summary Download a voucher through its signed token
// @Tags Payments
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Router /vouchers/{token} [get]
func (h *PaymentHandler) DownloadVoucher(c *gin.Context) {
	file, err := h.vouchers.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck
	c.File(file.Name())
}
