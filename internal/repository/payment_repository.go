package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/posgrado-epg/pagos-api/internal/models"
)

// PaymentRepository reads payment vouchers. All writes go through
// LedgerRepository so that totals and review transitions stay atomic.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// List returns payments filtered by the provided criteria.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	var conditions []string
	var args []interface{}

	if filter.InscripcionID != "" {
		conditions = append(conditions, fmt.Sprintf("inscripcion_id = $%d", len(args)+1))
		args = append(args, filter.InscripcionID)
	}
	if filter.EstudianteID != "" {
		conditions = append(conditions, fmt.Sprintf("estudiante_id = $%d", len(args)+1))
		args = append(args, filter.EstudianteID)
	}
	if filter.CursoID != "" {
		conditions = append(conditions, fmt.Sprintf("curso_id = $%d", len(args)+1))
		args = append(args, filter.CursoID)
	}
	if filter.Estado != "" {
		conditions = append(conditions, fmt.Sprintf("estado_pago = $%d", len(args)+1))
		args = append(args, filter.Estado)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"fecha_subida":       "fecha_subida",
		"fecha_verificacion": "fecha_verificacion",
		"cantidad_pago":      "cantidad_pago",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "fecha_subida"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "fecha_subida"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM payments%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		paymentColumns, clause, orderBy, order, size, offset)

	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM payments%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// ListByEnrollment returns the full voucher history of an enrollment,
// oldest first.
func (r *PaymentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE inscripcion_id = $1 ORDER BY fecha_subida ASC`, paymentColumns)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment payments: %w", err)
	}
	return payments, nil
}

// ListPending returns vouchers waiting for admin review, oldest first.
func (r *PaymentRepository) ListPending(ctx context.Context) ([]models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE estado_pago = $1 ORDER BY fecha_subida ASC`, paymentColumns)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, models.PaymentStatusPending); err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	return payments, nil
}

// ListForReport returns every payment matching the filter without
// pagination, for finance exports.
func (r *PaymentRepository) ListForReport(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	var conditions []string
	var args []interface{}

	if filter.CursoID != "" {
		conditions = append(conditions, fmt.Sprintf("curso_id = $%d", len(args)+1))
		args = append(args, filter.CursoID)
	}
	if filter.EstudianteID != "" {
		conditions = append(conditions, fmt.Sprintf("estudiante_id = $%d", len(args)+1))
		args = append(args, filter.EstudianteID)
	}
	if filter.Estado != "" {
		conditions = append(conditions, fmt.Sprintf("estado_pago = $%d", len(args)+1))
		args = append(args, filter.Estado)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM payments%s ORDER BY fecha_subida ASC`, paymentColumns, clause)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, fmt.Errorf("list payments for report: %w", err)
	}
	return payments, nil
}

// Summary aggregates voucher counts and the approved total for one
// enrollment.
func (r *PaymentRepository) Summary(ctx context.Context, enrollmentID string) (*models.PaymentSummary, error) {
	const query = `SELECT
	COUNT(*) AS total_pagos,
	COUNT(*) FILTER (WHERE estado_pago = 'PENDING') AS pendientes,
	COUNT(*) FILTER (WHERE estado_pago = 'APPROVED') AS aprobados,
	COUNT(*) FILTER (WHERE estado_pago = 'REJECTED') AS rechazados,
	COALESCE(SUM(cantidad_pago) FILTER (WHERE estado_pago = 'APPROVED'), 0) AS monto_total_aprobado
	FROM payments WHERE inscripcion_id = $1`
	var summary models.PaymentSummary
	if err := r.db.GetContext(ctx, &summary, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("payment summary: %w", err)
	}
	return &summary, nil
}
