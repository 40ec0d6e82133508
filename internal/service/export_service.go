package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/posgrado-epg/pagos-api/internal/models"
	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
	"github.com/posgrado-epg/pagos-api/pkg/export"
	"github.com/posgrado-epg/pagos-api/pkg/storage"
)

type reportPaymentReader interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	ListForReport(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// PaymentsReportRequest filters the finance export.
type PaymentsReportRequest struct {
	Format       models.ReportFormat
	CursoID      string
	EstudianteID string
	Estado       models.PaymentStatus
}

// ExportService renders finance reports and payment receipts and persists
// them behind signed download URLs.
type ExportService struct {
	payments reportPaymentReader
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(payments reportPaymentReader, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		payments: payments,
		storage:  files,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// GeneratePaymentsReport renders the filtered payment list as CSV or PDF
// and stores it behind a signed URL.
func (s *ExportService) GeneratePaymentsReport(ctx context.Context, req PaymentsReportRequest) (*ExportResult, error) {
	if !req.Format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	payments, err := s.payments.ListForReport(ctx, models.PaymentFilter{
		CursoID:      req.CursoID,
		EstudianteID: req.EstudianteID,
		Estado:       req.Estado,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments for report")
	}

	dataset := paymentsDataset(payments)
	title := "Reporte de Pagos"

	var payload []byte
	switch req.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	jobID := uuid.NewString()
	filename := fmt.Sprintf("pagos_%s.%s", time.Now().UTC().Format("20060102_150405"), req.Format)
	return s.store(jobID, filename, payload, req.Format)
}

// GenerateReceipt renders a one-page PDF receipt for an approved payment.
func (s *ExportService) GenerateReceipt(ctx context.Context, paymentID string) (*ExportResult, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.EstadoPago != models.PaymentStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "receipts are only issued for approved payments")
	}

	dataset := receiptDataset(payment)
	payload, err := s.pdf.Render(dataset, "Recibo de Pago")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}

	filename := fmt.Sprintf("recibo_%s.pdf", payment.ID)
	return s.store(payment.ID, filename, payload, models.ReportFormatPDF)
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL
// when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) store(jobID, filename string, payload []byte, format models.ReportFormat) (*ExportResult, error) {
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist export")
	}

	token, expiresAt, err := s.signer.Generate(jobID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

func paymentsDataset(payments []models.Payment) export.Dataset {
	headers := []string{"ID", "Inscripción", "Concepto", "Cuota", "Monto", "Nro. Transacción", "Banco", "Estado", "Fecha Subida", "Fecha Verificación"}
	rows := make([]map[string]string, 0, len(payments))
	for _, p := range payments {
		rows = append(rows, map[string]string{
			"ID":                 p.ID,
			"Inscripción":        p.InscripcionID,
			"Concepto":           p.Concepto,
			"Cuota":              fmt.Sprintf("%d", p.NumeroCuota),
			"Monto":              fmt.Sprintf("%.2f", p.CantidadPago),
			"Nro. Transacción":   p.NumeroTransaccion,
			"Banco":              p.Banco,
			"Estado":             string(p.EstadoPago),
			"Fecha Subida":       p.FechaSubida.UTC().Format(time.RFC3339),
			"Fecha Verificación": formatReportTime(p.FechaVerificacion),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func receiptDataset(p *models.Payment) export.Dataset {
	rows := []map[string]string{
		{"Campo": "Recibo", "Valor": p.ID},
		{"Campo": "Inscripción", "Valor": p.InscripcionID},
		{"Campo": "Concepto", "Valor": p.Concepto},
		{"Campo": "Monto", "Valor": fmt.Sprintf("%.2f", p.CantidadPago)},
		{"Campo": "Nro. Transacción", "Valor": p.NumeroTransaccion},
		{"Campo": "Banco", "Valor": p.Banco},
		{"Campo": "Fecha de Pago", "Valor": p.FechaSubida.UTC().Format("2006-01-02")},
		{"Campo": "Fecha de Verificación", "Valor": formatReportTime(p.FechaVerificacion)},
	}
	return export.Dataset{Headers: []string{"Campo", "Valor"}, Rows: rows}
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
