package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/posgrado-epg/pagos-api/internal/models"
)

const courseColumns = `id, codigo, nombre_programa, tipo_curso, modalidad,
	costo_total_interno, matricula_interno, costo_total_externo, matricula_externo, cantidad_cuotas,
	descuento_curso_id, descuento_curso_pct, observacion, fecha_inicio, fecha_fin, activo, created_at, updated_at`

// CourseRepository persists course catalog entries.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching the filter.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var conditions []string
	var args []interface{}

	if filter.TipoCurso != "" {
		conditions = append(conditions, fmt.Sprintf("tipo_curso = $%d", len(args)+1))
		args = append(args, filter.TipoCurso)
	}
	if filter.Modalidad != "" {
		conditions = append(conditions, fmt.Sprintf("modalidad = $%d", len(args)+1))
		args = append(args, filter.Modalidad)
	}
	if filter.Activo != nil {
		conditions = append(conditions, fmt.Sprintf("activo = $%d", len(args)+1))
		args = append(args, *filter.Activo)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(nombre_programa ILIKE $%d OR codigo ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf(`SELECT %s FROM courses%s ORDER BY nombre_programa ASC LIMIT %d OFFSET %d`,
		courseColumns, clause, size, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM courses%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses
	(id, codigo, nombre_programa, tipo_curso, modalidad,
	 costo_total_interno, matricula_interno, costo_total_externo, matricula_externo, cantidad_cuotas,
	 descuento_curso_id, descuento_curso_pct, observacion, fecha_inicio, fecha_fin, activo, created_at, updated_at)
	VALUES (:id, :codigo, :nombre_programa, :tipo_curso, :modalidad,
	 :costo_total_interno, :matricula_interno, :costo_total_externo, :matricula_externo, :cantidad_cuotas,
	 :descuento_curso_id, :descuento_curso_pct, :observacion, :fecha_inicio, :fecha_fin, :activo, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update persists live price and catalog changes. Existing enrollments keep
// their frozen snapshots regardless.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET codigo = :codigo, nombre_programa = :nombre_programa,
	tipo_curso = :tipo_curso, modalidad = :modalidad,
	costo_total_interno = :costo_total_interno, matricula_interno = :matricula_interno,
	costo_total_externo = :costo_total_externo, matricula_externo = :matricula_externo,
	cantidad_cuotas = :cantidad_cuotas, descuento_curso_id = :descuento_curso_id,
	descuento_curso_pct = :descuento_curso_pct, observacion = :observacion,
	fecha_inicio = :fecha_inicio, fecha_fin = :fecha_fin, activo = :activo, updated_at = :updated_at
	WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}
