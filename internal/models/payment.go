package models

import "time"

// PaymentStatus represents the review state of a payment voucher.
type PaymentStatus string

// Possible payment statuses. APPROVED and REJECTED are terminal.
const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusApproved PaymentStatus = "APPROVED"
	PaymentStatusRejected PaymentStatus = "REJECTED"
)

// Reviewed reports whether the voucher already went through admin review.
func (s PaymentStatus) Reviewed() bool {
	return s == PaymentStatusApproved || s == PaymentStatusRejected
}

// Payment is one submitted voucher against an enrollment. Concepto,
// NumeroCuota and CantidadPago are assigned by the ledger from the due
// calculator; the declared voucher fields are what the student typed in and
// exist only for the reviewing admin. A rejected payment never contributes
// to the enrollment totals, and reviewed payments are immutable.
type Payment struct {
	ID            string `db:"id" json:"id"`
	InscripcionID string `db:"inscripcion_id" json:"inscripcion_id"`
	EstudianteID  string `db:"estudiante_id" json:"estudiante_id"`
	CursoID       string `db:"curso_id" json:"curso_id"`

	// System-assigned, never caller-controlled.
	Concepto     string  `db:"concepto" json:"concepto"`
	NumeroCuota  int     `db:"numero_cuota" json:"numero_cuota"`
	CantidadPago float64 `db:"cantidad_pago" json:"cantidad_pago"`

	// Declared voucher data as submitted by the student.
	NumeroTransaccion string     `db:"numero_transaccion" json:"numero_transaccion"`
	Remitente         string     `db:"remitente" json:"remitente"`
	FechaComprobante  *time.Time `db:"fecha_comprobante" json:"fecha_comprobante,omitempty"`
	MontoComprobante  float64    `db:"monto_comprobante" json:"monto_comprobante"`
	Banco             string     `db:"banco" json:"banco"`
	Glosa             *string    `db:"glosa" json:"glosa,omitempty"`
	CuentaDestino     string     `db:"cuenta_destino" json:"cuenta_destino"`
	DescuentoAplicado *float64   `db:"descuento_aplicado" json:"descuento_aplicado,omitempty"`
	ComprobanteURL    string     `db:"comprobante_url" json:"comprobante_url"`

	// Review fields, written once by the ledger on approval or rejection.
	EstadoPago        PaymentStatus `db:"estado_pago" json:"estado_pago"`
	VerificadoPor     *string       `db:"verificado_por" json:"verificado_por,omitempty"`
	FechaVerificacion *time.Time    `db:"fecha_verificacion" json:"fecha_verificacion,omitempty"`
	MotivoRechazo     *string       `db:"motivo_rechazo" json:"motivo_rechazo,omitempty"`

	FechaSubida time.Time `db:"fecha_subida" json:"fecha_subida"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// PaymentFilter provides filters for listing payments.
type PaymentFilter struct {
	InscripcionID string
	EstudianteID  string
	CursoID       string
	Estado        PaymentStatus
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// PaymentSummary aggregates voucher counts and the approved total for one
// enrollment.
type PaymentSummary struct {
	TotalPagos         int     `db:"total_pagos" json:"total_pagos"`
	Pendientes         int     `db:"pendientes" json:"pendientes"`
	Aprobados          int     `db:"aprobados" json:"aprobados"`
	Rechazados         int     `db:"rechazados" json:"rechazados"`
	MontoTotalAprobado float64 `db:"monto_total_aprobado" json:"monto_total_aprobado"`
}
