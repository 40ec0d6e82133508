package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posgrado-epg/pagos-api/internal/models"
	"github.com/posgrado-epg/pagos-api/internal/service"
	"github.com/posgrado-epg/pagos-api/pkg/storage"
)

type fakeReportPayments struct{}

func (fakeReportPayments) FindByID(context.Context, string) (*models.Payment, error) {
	return nil, nil
}

func (fakeReportPayments) ListForReport(context.Context, models.PaymentFilter) ([]models.Payment, error) {
	return []models.Payment{{
		ID:                "pay-1",
		InscripcionID:     "enr-1",
		Concepto:          "Matrícula",
		CantidadPago:      500,
		NumeroTransaccion: "TRX-001",
		Banco:             "BNB",
		EstadoPago:        models.PaymentStatusApproved,
		FechaSubida:       time.Now().UTC(),
	}}, nil
}

func newExportTestRouter(t *testing.T) (*gin.Engine, *service.ExportService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("handler-secret", time.Hour)
	exports := service.NewExportService(fakeReportPayments{}, files, signer, service.ExportConfig{APIPrefix: "/api/v1"}, nil, nil, nil)

	router := gin.New()
	handler := NewExportHandler(exports)
	router.GET("/api/v1/exports/:token", handler.Download)
	return router, exports
}

func TestExportHandlerDownloadServesSignedFile(t *testing.T) {
	router, exports := newExportTestRouter(t)

	result, err := exports.GeneratePaymentsReport(context.Background(), service.PaymentsReportRequest{Format: models.ReportFormatCSV})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/"+result.Token, nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Body.String(), "TRX-001")
}

func TestExportHandlerDownloadRejectsForgedToken(t *testing.T) {
	router, _ := newExportTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/not.a.valid.token", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
