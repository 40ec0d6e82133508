package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/posgrado-epg/pagos-api/internal/models"
	"github.com/posgrado-epg/pagos-api/internal/service"
	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
	"github.com/posgrado-epg/pagos-api/pkg/response"
)

// ExportHandler exposes finance report and receipt endpoints.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// PaymentsReport godoc
// @Summary Generate a payments report
// @Tags Exports
// @Produce json
// @Param format query string true "csv or pdf"
// @Param cursoId query string false "Filter by course"
// @Param estudianteId query string false "Filter by student"
// @Param estado query string false "Filter by review state"
// @Success 201 {object} response.Envelope
// @Router /reportes/pagos [post]
func (h *ExportHandler) PaymentsReport(c *gin.Context) {
	req := service.PaymentsReportRequest{
		Format:       models.ReportFormat(strings.ToLower(c.DefaultQuery("format", "csv"))),
		CursoID:      c.Query("cursoId"),
		EstudianteID: c.Query("estudianteId"),
		Estado:       models.PaymentStatus(strings.ToUpper(c.Query("estado"))),
	}
	result, err := h.exports.GeneratePaymentsReport(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Receipt godoc
// @Summary Generate a receipt for an approved payment
// @Tags Exports
// @Produce json
// @Param id path string true "Payment ID"
// @Success 201 {object} response.Envelope
// @Router /pagos/{id}/recibo [post]
func (h *ExportHandler) Receipt(c *gin.Context) {
	result, err := h.exports.GenerateReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download a generated export through its signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	_, relPath, _, err := h.exports.ParseToken(c.Param("token"), false)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download link"))
		return
	}
	file, err := h.exports.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export file not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(relPath)))
	c.Status(http.StatusOK)
	c.File(file.Name())
}
