package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posgrado-epg/pagos-api/internal/models"
	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
	"github.com/posgrado-epg/pagos-api/pkg/storage"
)

type mockReportPayments struct {
	payments map[string]*models.Payment
	listed   []models.PaymentFilter
}

func (m *mockReportPayments) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if p, ok := m.payments[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportPayments) ListForReport(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	m.listed = append(m.listed, filter)
	out := make([]models.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, *p)
	}
	return out, nil
}

func approvedPayment(id string) *models.Payment {
	verified := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	admin := "adm-1"
	return &models.Payment{
		ID:                id,
		InscripcionID:     "enr-1",
		EstudianteID:      "stu-1",
		CursoID:           "cur-1",
		Concepto:          "Cuota 1",
		NumeroCuota:       1,
		CantidadPago:      320.50,
		NumeroTransaccion: "TRX-001",
		Banco:             "BNB",
		EstadoPago:        models.PaymentStatusApproved,
		VerificadoPor:     &admin,
		FechaVerificacion: &verified,
		FechaSubida:       time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC),
	}
}

func newExportService(t *testing.T, payments *mockReportPayments) *ExportService {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("export-secret", time.Hour)
	return NewExportService(payments, files, signer, ExportConfig{APIPrefix: "/api/v1"}, nil, nil, nil)
}

func TestExportPaymentsReportCSV(t *testing.T) {
	payments := &mockReportPayments{payments: map[string]*models.Payment{
		"pay-1": approvedPayment("pay-1"),
	}}
	svc := newExportService(t, payments)

	result, err := svc.GeneratePaymentsReport(context.Background(), PaymentsReportRequest{
		Format:  models.ReportFormatCSV,
		CursoID: "cur-1",
		Estado:  models.PaymentStatusApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportFormatCSV, result.Format)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/"))
	require.Len(t, payments.listed, 1)
	assert.Equal(t, "cur-1", payments.listed[0].CursoID)

	// The signed token resolves back to the stored file.
	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)
	assert.Equal(t, result.RelativePath, relPath)

	file, err := svc.Open(relPath)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "TRX-001")
	assert.Contains(t, string(content), "320.50")
}

func TestExportPaymentsReportPDF(t *testing.T) {
	payments := &mockReportPayments{payments: map[string]*models.Payment{
		"pay-1": approvedPayment("pay-1"),
	}}
	svc := newExportService(t, payments)

	result, err := svc.GeneratePaymentsReport(context.Background(), PaymentsReportRequest{Format: models.ReportFormatPDF})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.RelativePath, ".pdf"))

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	header := make([]byte, 4)
	_, err = io.ReadFull(file, header)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(header))
}

func TestExportPaymentsReportInvalidFormat(t *testing.T) {
	svc := newExportService(t, &mockReportPayments{})

	_, err := svc.GeneratePaymentsReport(context.Background(), PaymentsReportRequest{Format: "xlsx"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportReceiptForApprovedPayment(t *testing.T) {
	payments := &mockReportPayments{payments: map[string]*models.Payment{
		"pay-1": approvedPayment("pay-1"),
	}}
	svc := newExportService(t, payments)

	result, err := svc.GenerateReceipt(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportFormatPDF, result.Format)

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "pay-1", jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportReceiptRequiresApprovedPayment(t *testing.T) {
	pending := approvedPayment("pay-2")
	pending.EstadoPago = models.PaymentStatusPending
	pending.VerificadoPor = nil
	pending.FechaVerificacion = nil
	payments := &mockReportPayments{payments: map[string]*models.Payment{"pay-2": pending}}
	svc := newExportService(t, payments)

	_, err := svc.GenerateReceipt(context.Background(), "pay-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.GenerateReceipt(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportCleanupRemovesExpiredFiles(t *testing.T) {
	payments := &mockReportPayments{payments: map[string]*models.Payment{
		"pay-1": approvedPayment("pay-1"),
	}}
	svc := newExportService(t, payments)

	result, err := svc.GeneratePaymentsReport(context.Background(), PaymentsReportRequest{Format: models.ReportFormatCSV})
	require.NoError(t, err)

	// Nothing is old enough yet.
	deleted, err := svc.Cleanup(time.Hour)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	// A near-zero TTL treats every file as expired.
	time.Sleep(10 * time.Millisecond)
	deleted, err = svc.Cleanup(time.Nanosecond)
	require.NoError(t, err)
	assert.Contains(t, deleted, result.RelativePath)

	_, err = svc.Open(result.RelativePath)
	require.Error(t, err)
}
