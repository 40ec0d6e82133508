package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/posgrado-epg/pagos-api/internal/models"
	"github.com/posgrado-epg/pagos-api/internal/repository"
	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
)

type ledgerRepository interface {
	CreatePayment(ctx context.Context, enrollmentID string, build func(e *models.Enrollment) (*models.Payment, error)) (*models.Payment, error)
	ReviewPayment(ctx context.Context, paymentID string, apply func(p *models.Payment, e *models.Enrollment) error) (*models.Payment, *models.Enrollment, error)
}

type paymentReader interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error)
	ListPending(ctx context.Context) ([]models.Payment, error)
	Summary(ctx context.Context, enrollmentID string) (*models.PaymentSummary, error)
}

type enrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// SubmitPaymentRequest is the voucher as declared by the student. None of
// its amounts influence what the ledger charges; the suggested due is
// assigned server-side.
type SubmitPaymentRequest struct {
	NumeroTransaccion string     `json:"numero_transaccion" validate:"required"`
	Remitente         string     `json:"remitente" validate:"required"`
	FechaComprobante  *time.Time `json:"fecha_comprobante"`
	MontoComprobante  float64    `json:"monto_comprobante" validate:"gte=0"`
	Banco             string     `json:"banco" validate:"required"`
	Glosa             *string    `json:"glosa"`
	CuentaDestino     string     `json:"cuenta_destino"`
	DescuentoAplicado *float64   `json:"descuento_aplicado"`
	ComprobanteURL    string     `json:"comprobante_url" validate:"required"`
}

// LedgerService is the only component that writes payment reviews and
// enrollment totals. Every mutation goes through the transactional ledger
// repository so concurrent reviews serialize per enrollment.
type LedgerService struct {
	ledger      ledgerRepository
	payments    paymentReader
	enrollments enrollmentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewLedgerService constructs LedgerService.
func NewLedgerService(ledger ledgerRepository, payments paymentReader, enrollments enrollmentReader, validate *validator.Validate, logger *zap.Logger) *LedgerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{ledger: ledger, payments: payments, enrollments: enrollments, validator: validate, logger: logger}
}

// CreatePayment registers a voucher against an enrollment. The concept,
// installment number and charged amount come from the due calculator run
// against the row locked inside the transaction; whatever amount the caller
// declared is kept only as voucher metadata.
func (s *LedgerService) CreatePayment(ctx context.Context, enrollmentID string, requester models.JWTClaims, req SubmitPaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	payment, err := s.ledger.CreatePayment(ctx, enrollmentID, func(e *models.Enrollment) (*models.Payment, error) {
		if requester.Role == models.RoleStudent && requester.UserID != e.EstudianteID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
		}
		if e.Estado == models.EnrollmentStatusCancelled {
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is cancelled")
		}

		due, err := NextDue(SnapshotOf(e), e.TotalPagado)
		if err != nil {
			return nil, err
		}
		if due.MontoSugerido <= 0 {
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is already fully paid")
		}

		return &models.Payment{
			InscripcionID:     e.ID,
			EstudianteID:      e.EstudianteID,
			CursoID:           e.CursoID,
			Concepto:          due.Concepto,
			NumeroCuota:       due.NumeroCuota,
			CantidadPago:      due.MontoSugerido,
			NumeroTransaccion: strings.TrimSpace(req.NumeroTransaccion),
			Remitente:         req.Remitente,
			FechaComprobante:  req.FechaComprobante,
			MontoComprobante:  req.MontoComprobante,
			Banco:             req.Banco,
			Glosa:             req.Glosa,
			CuentaDestino:     req.CuentaDestino,
			DescuentoAplicado: req.DescuentoAplicado,
			ComprobanteURL:    req.ComprobanteURL,
		}, nil
	})
	if err != nil {
		return nil, s.mapLedgerError(err, "enrollment not found", "failed to create payment")
	}

	s.logger.Info("payment submitted",
		zap.String("payment_id", payment.ID),
		zap.String("enrollment_id", payment.InscripcionID),
		zap.String("concepto", payment.Concepto),
		zap.Float64("cantidad_pago", payment.CantidadPago))
	return payment, nil
}

// ApprovePayment reviews a pending voucher positively. The payment review
// fields, the enrollment total and any state transition are committed in
// one transaction; a failed invariant check aborts all of it.
func (s *LedgerService) ApprovePayment(ctx context.Context, paymentID, reviewerID string) (*models.Enrollment, error) {
	_, enrollment, err := s.ledger.ReviewPayment(ctx, paymentID, func(p *models.Payment, e *models.Enrollment) error {
		if p.EstadoPago.Reviewed() {
			return appErrors.Clone(appErrors.ErrConflict, "payment already reviewed")
		}
		if e.Estado == models.EnrollmentStatusCancelled {
			return appErrors.Clone(appErrors.ErrConflict, "enrollment is cancelled")
		}

		newTotal := round2(e.TotalPagado + p.CantidadPago)
		if newTotal < 0 || newTotal > e.TotalAPagar+Epsilon {
			return appErrors.Clone(appErrors.ErrInvariant, "approval would push total paid past the agreed total")
		}

		now := time.Now().UTC()
		p.EstadoPago = models.PaymentStatusApproved
		p.VerificadoPor = &reviewerID
		p.FechaVerificacion = &now

		e.TotalPagado = newTotal
		if e.Estado == models.EnrollmentStatusPendingPayment && e.TotalPagado >= e.CostoMatricula-Epsilon {
			e.Estado = models.EnrollmentStatusActive
		}
		if e.Estado == models.EnrollmentStatusActive && e.TotalAPagar-e.TotalPagado <= Epsilon {
			e.Estado = models.EnrollmentStatusCompleted
		}
		return nil
	})
	if err != nil {
		return nil, s.mapLedgerError(err, "payment not found", "failed to approve payment")
	}

	s.logger.Info("payment approved",
		zap.String("payment_id", paymentID),
		zap.String("enrollment_id", enrollment.ID),
		zap.String("reviewer_id", reviewerID),
		zap.Float64("total_pagado", enrollment.TotalPagado),
		zap.String("estado", string(enrollment.Estado)))
	return enrollment, nil
}

// RejectPayment reviews a pending voucher negatively. The enrollment's
// totals and state are never touched by a rejection.
func (s *LedgerService) RejectPayment(ctx context.Context, paymentID, reviewerID, reason string) (*models.Payment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}

	payment, _, err := s.ledger.ReviewPayment(ctx, paymentID, func(p *models.Payment, e *models.Enrollment) error {
		if p.EstadoPago.Reviewed() {
			return appErrors.Clone(appErrors.ErrConflict, "payment already reviewed")
		}
		now := time.Now().UTC()
		p.EstadoPago = models.PaymentStatusRejected
		p.VerificadoPor = &reviewerID
		p.FechaVerificacion = &now
		p.MotivoRechazo = &reason
		return nil
	})
	if err != nil {
		return nil, s.mapLedgerError(err, "payment not found", "failed to reject payment")
	}

	s.logger.Info("payment rejected",
		zap.String("payment_id", paymentID),
		zap.String("reviewer_id", reviewerID))
	return payment, nil
}

// GetDueInfo returns the single next obligation for an enrollment.
func (s *LedgerService) GetDueInfo(ctx context.Context, enrollmentID string, requester models.JWTClaims) (*models.DueInfo, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if requester.Role == models.RoleStudent && requester.UserID != enrollment.EstudianteID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}

	due, err := NextDue(SnapshotOf(enrollment), enrollment.TotalPagado)
	if err != nil {
		return nil, err
	}
	return &due, nil
}

// GetPayment returns one payment, enforcing ownership for students.
func (s *LedgerService) GetPayment(ctx context.Context, id string, requester models.JWTClaims) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if requester.Role == models.RoleStudent && requester.UserID != payment.EstudianteID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment belongs to another student")
	}
	return payment, nil
}

// ListPayments returns payments with pagination metadata. Students are
// scoped to their own vouchers regardless of the filter they send.
func (s *LedgerService) ListPayments(ctx context.Context, filter models.PaymentFilter, requester models.JWTClaims) ([]models.Payment, *models.Pagination, error) {
	if requester.Role == models.RoleStudent {
		filter.EstudianteID = requester.UserID
	}
	payments, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ListPending returns the admin review queue in upload order.
func (s *LedgerService) ListPending(ctx context.Context) ([]models.Payment, error) {
	payments, err := s.payments.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending payments")
	}
	return payments, nil
}

// ListByEnrollment returns an enrollment's payment history in upload order.
func (s *LedgerService) ListByEnrollment(ctx context.Context, enrollmentID string, requester models.JWTClaims) ([]models.Payment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if requester.Role == models.RoleStudent && requester.UserID != enrollment.EstudianteID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}
	payments, err := s.payments.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollment payments")
	}
	return payments, nil
}

// Summary aggregates voucher counts and the approved total for one
// enrollment.
func (s *LedgerService) Summary(ctx context.Context, enrollmentID string, requester models.JWTClaims) (*models.PaymentSummary, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if requester.Role == models.RoleStudent && requester.UserID != enrollment.EstudianteID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}
	summary, err := s.payments.Summary(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute payment summary")
	}
	return summary, nil
}

// mapLedgerError normalises errors surfaced by the transactional
// repository: typed domain errors pass through, row misses become 404s and
// a duplicate bank reference becomes a conflict.
func (s *LedgerService) mapLedgerError(err error, notFoundMsg, internalMsg string) error {
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFoundMsg)
	}
	if errors.Is(err, repository.ErrDuplicateTransactionRef) {
		return appErrors.Clone(appErrors.ErrConflict, "a voucher with this transaction reference already exists for the enrollment")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internalMsg)
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
