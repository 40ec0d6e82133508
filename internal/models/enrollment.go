package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPendingPayment EnrollmentStatus = "PENDING_PAYMENT"
	EnrollmentStatusActive         EnrollmentStatus = "ACTIVE"
	EnrollmentStatusSuspended      EnrollmentStatus = "SUSPENDED"
	EnrollmentStatusCompleted      EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled      EnrollmentStatus = "CANCELLED"
)

// Terminal reports whether no further transition may leave the status.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentStatusCompleted || s == EnrollmentStatusCancelled
}

// Enrollment is a student's priced agreement for one course. The pricing
// snapshot fields are frozen at inscription time: a later change to the
// course's live price never touches an existing enrollment.
type Enrollment struct {
	ID           string `db:"id" json:"id"`
	EstudianteID string `db:"estudiante_id" json:"estudiante_id"`
	CursoID      string `db:"curso_id" json:"curso_id"`

	// Pricing snapshot, write-once at creation.
	CostoTotal             float64 `db:"costo_total" json:"costo_total"`
	CostoMatricula         float64 `db:"costo_matricula" json:"costo_matricula"`
	CantidadCuotas         int     `db:"cantidad_cuotas" json:"cantidad_cuotas"`
	DescuentoCursoID       *string `db:"descuento_curso_id" json:"descuento_curso_id,omitempty"`
	DescuentoCursoPct      float64 `db:"descuento_curso_pct" json:"descuento_curso_pct"`
	DescuentoEstudianteID  *string `db:"descuento_estudiante_id" json:"descuento_estudiante_id,omitempty"`
	DescuentoEstudiantePct float64 `db:"descuento_estudiante_pct" json:"descuento_estudiante_pct"`
	TotalAPagar            float64 `db:"total_a_pagar" json:"total_a_pagar"`

	// Running totals, written only by the payment ledger.
	TotalPagado float64 `db:"total_pagado" json:"total_pagado"`
	// SaldoPendiente is derived in queries as total_a_pagar - total_pagado,
	// never stored as its own column.
	SaldoPendiente float64 `db:"saldo_pendiente" json:"saldo_pendiente"`

	Estado           EnrollmentStatus `db:"estado" json:"estado"`
	FechaInscripcion time.Time        `db:"fecha_inscripcion" json:"fecha_inscripcion"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	StudentCI   string `db:"student_ci" json:"student_ci"`
	CourseName  string `db:"course_name" json:"course_name"`
	CourseCode  string `db:"course_code" json:"course_code"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	EstudianteID string
	CursoID      string
	Estado       EnrollmentStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// DueInfo is the single system-computed obligation a student must pay next.
// NumeroCuota is 0 for the matrícula and for the fully-paid sentinel.
type DueInfo struct {
	Concepto      string  `json:"concepto"`
	NumeroCuota   int     `json:"numero_cuota"`
	MontoSugerido float64 `json:"monto_sugerido"`
}
