package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/posgrado-epg/pagos-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments. Running totals
// are only ever written through LedgerRepository; this repository covers
// creation, reads and administrative state changes.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.estudiante_id
LEFT JOIN courses c ON c.id = e.curso_id`
	var conditions []string
	var args []interface{}

	if filter.EstudianteID != "" {
		conditions = append(conditions, fmt.Sprintf("e.estudiante_id = $%d", len(args)+1))
		args = append(args, filter.EstudianteID)
	}
	if filter.CursoID != "" {
		conditions = append(conditions, fmt.Sprintf("e.curso_id = $%d", len(args)+1))
		args = append(args, filter.CursoID)
	}
	if filter.Estado != "" {
		conditions = append(conditions, fmt.Sprintf("e.estado = $%d", len(args)+1))
		args = append(args, filter.Estado)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"fecha_inscripcion": "e.fecha_inscripcion",
		"student_name":      "s.nombre_completo",
		"course_name":       "c.nombre_programa",
		"total_pagado":      "e.total_pagado",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "fecha_inscripcion"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.fecha_inscripcion"
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

	query := fmt.Sprintf(`SELECT e.id, e.estudiante_id, e.curso_id, e.costo_total, e.costo_matricula, e.cantidad_cuotas,
        e.descuento_curso_id, e.descuento_curso_pct, e.descuento_estudiante_id, e.descuento_estudiante_pct,
        e.total_a_pagar, e.total_pagado, GREATEST(e.total_a_pagar - e.total_pagado, 0) AS saldo_pendiente,
        e.estado, e.fecha_inscripcion, e.created_at, e.updated_at,
        s.nombre_completo AS student_name, s.ci AS student_ci, c.nombre_programa AS course_name, c.codigo AS course_code
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID with the derived balance.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsForStudentAndCourse reports whether the student already holds a
// non-cancelled enrollment for the course.
func (r *EnrollmentRepository) ExistsForStudentAndCourse(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE estudiante_id = $1 AND curso_id = $2 AND estado <> $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, models.EnrollmentStatusCancelled); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record with its frozen snapshot.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.FechaInscripcion.IsZero() {
		enrollment.FechaInscripcion = now
	}
	if enrollment.Estado == "" {
		enrollment.Estado = models.EnrollmentStatusPendingPayment
	}
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments
	(id, estudiante_id, curso_id, costo_total, costo_matricula, cantidad_cuotas,
	 descuento_curso_id, descuento_curso_pct, descuento_estudiante_id, descuento_estudiante_pct,
	 total_a_pagar, total_pagado, estado, fecha_inscripcion, created_at, updated_at)
	VALUES (:id, :estudiante_id, :curso_id, :costo_total, :costo_matricula, :cantidad_cuotas,
	 :descuento_curso_id, :descuento_curso_pct, :descuento_estudiante_id, :descuento_estudiante_pct,
	 :total_a_pagar, :total_pagado, :estado, :fecha_inscripcion, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateEstado applies an administrative state override. It never touches
// the financial columns.
func (r *EnrollmentRepository) UpdateEstado(ctx context.Context, id string, estado models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET estado = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, estado, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment estado: %w", err)
	}
	return nil
}

// ListByCourse returns non-cancelled enrollments for a course.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE curso_id = $1 AND estado <> $2`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, courseID, models.EnrollmentStatusCancelled); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return enrollments, nil
}
