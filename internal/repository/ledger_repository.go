package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/posgrado-epg/pagos-api/internal/models"
)

// ErrDuplicateTransactionRef is returned when a voucher with the same bank
// reference already exists for the enrollment.
var ErrDuplicateTransactionRef = errors.New("duplicate transaction reference")

const enrollmentColumns = `id, estudiante_id, curso_id, costo_total, costo_matricula, cantidad_cuotas,
	descuento_curso_id, descuento_curso_pct, descuento_estudiante_id, descuento_estudiante_pct,
	total_a_pagar, total_pagado, GREATEST(total_a_pagar - total_pagado, 0) AS saldo_pendiente,
	estado, fecha_inscripcion, created_at, updated_at`

const paymentColumns = `id, inscripcion_id, estudiante_id, curso_id, concepto, numero_cuota, cantidad_pago,
	numero_transaccion, remitente, fecha_comprobante, monto_comprobante, banco, glosa, cuenta_destino,
	descuento_aplicado, comprobante_url, estado_pago, verificado_por, fecha_verificacion, motivo_rechazo,
	fecha_subida, created_at, updated_at`

// LedgerRepository runs the ledger's read-modify-write cycles inside a
// single transaction with the affected rows locked. Two concurrent
// approvals against the same enrollment serialize on the enrollment row,
// so neither can add its amount onto a stale total. Any error rolls the
// whole transaction back; no partial writes survive.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// CreatePayment locks the enrollment, lets build derive the voucher from
// the locked row, and inserts it. The bank reference is checked inside the
// same transaction so a concurrent duplicate submission cannot slip in.
func (r *LedgerRepository) CreatePayment(ctx context.Context, enrollmentID string, build func(e *models.Enrollment) (*models.Payment, error)) (*models.Payment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create payment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	enrollment, err := lockEnrollment(ctx, tx, enrollmentID)
	if err != nil {
		return nil, err
	}

	payment, err := build(enrollment)
	if err != nil {
		return nil, err
	}

	var exists int
	dupQuery := `SELECT 1 FROM payments WHERE inscripcion_id = $1 AND numero_transaccion = $2 AND estado_pago <> $3 LIMIT 1`
	err = tx.GetContext(ctx, &exists, dupQuery, enrollmentID, payment.NumeroTransaccion, models.PaymentStatusRejected)
	if err == nil {
		return nil, ErrDuplicateTransactionRef
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check transaction reference: %w", err)
	}

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.FechaSubida.IsZero() {
		payment.FechaSubida = now
	}
	payment.EstadoPago = models.PaymentStatusPending
	payment.CreatedAt = now
	payment.UpdatedAt = now

	const insert = `INSERT INTO payments
	(id, inscripcion_id, estudiante_id, curso_id, concepto, numero_cuota, cantidad_pago,
	 numero_transaccion, remitente, fecha_comprobante, monto_comprobante, banco, glosa, cuenta_destino,
	 descuento_aplicado, comprobante_url, estado_pago, verificado_por, fecha_verificacion, motivo_rechazo,
	 fecha_subida, created_at, updated_at)
	VALUES (:id, :inscripcion_id, :estudiante_id, :curso_id, :concepto, :numero_cuota, :cantidad_pago,
	 :numero_transaccion, :remitente, :fecha_comprobante, :monto_comprobante, :banco, :glosa, :cuenta_destino,
	 :descuento_aplicado, :comprobante_url, :estado_pago, :verificado_por, :fecha_verificacion, :motivo_rechazo,
	 :fecha_subida, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, payment); err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create payment tx: %w", err)
	}
	return payment, nil
}

// ReviewPayment locks the payment and its enrollment, lets apply mutate
// both in memory, then persists the review fields and the enrollment
// totals/state atomically. Rejections leave the enrollment untouched in
// the database because apply never changes its figures.
func (r *LedgerRepository) ReviewPayment(ctx context.Context, paymentID string, apply func(p *models.Payment, e *models.Enrollment) error) (*models.Payment, *models.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin review payment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	payment, err := lockPayment(ctx, tx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	enrollment, err := lockEnrollment(ctx, tx, payment.InscripcionID)
	if err != nil {
		return nil, nil, err
	}

	if err := apply(payment, enrollment); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	payment.UpdatedAt = now
	const updatePayment = `UPDATE payments SET estado_pago = :estado_pago, verificado_por = :verificado_por,
	fecha_verificacion = :fecha_verificacion, motivo_rechazo = :motivo_rechazo, updated_at = :updated_at
	WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, updatePayment, payment); err != nil {
		return nil, nil, fmt.Errorf("update payment review: %w", err)
	}

	enrollment.UpdatedAt = now
	const updateEnrollment = `UPDATE enrollments SET total_pagado = :total_pagado, estado = :estado, updated_at = :updated_at
	WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, updateEnrollment, enrollment); err != nil {
		return nil, nil, fmt.Errorf("update enrollment totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit review payment tx: %w", err)
	}
	enrollment.SaldoPendiente = saldo(enrollment)
	return payment, enrollment, nil
}

func lockEnrollment(ctx context.Context, tx *sqlx.Tx, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1 FOR UPDATE`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := tx.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func lockPayment(ctx context.Context, tx *sqlx.Tx, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1 FOR UPDATE`, paymentColumns)
	var payment models.Payment
	if err := tx.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

func saldo(e *models.Enrollment) float64 {
	if s := e.TotalAPagar - e.TotalPagado; s > 0 {
		return s
	}
	return 0
}
