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

const discountColumns = `id, nombre, porcentaje, curso_id, fecha_inicio, fecha_fin, activo, created_at, updated_at`

// DiscountRepository persists discount definitions.
type DiscountRepository struct {
	db *sqlx.DB
}

// NewDiscountRepository constructs the repository.
func NewDiscountRepository(db *sqlx.DB) *DiscountRepository {
	return &DiscountRepository{db: db}
}

// List returns discounts matching the filter.
func (r *DiscountRepository) List(ctx context.Context, filter models.DiscountFilter) ([]models.Discount, int, error) {
	var conditions []string
	var args []interface{}

	if filter.CursoID != "" {
		conditions = append(conditions, fmt.Sprintf("(curso_id = $%d OR curso_id IS NULL)", len(args)+1))
		args = append(args, filter.CursoID)
	}
	if filter.Activo != nil {
		conditions = append(conditions, fmt.Sprintf("activo = $%d", len(args)+1))
		args = append(args, *filter.Activo)
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

	query := fmt.Sprintf(`SELECT %s FROM discounts%s ORDER BY nombre ASC LIMIT %d OFFSET %d`,
		discountColumns, clause, size, offset)
	var discounts []models.Discount
	if err := r.db.SelectContext(ctx, &discounts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list discounts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM discounts%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count discounts: %w", err)
	}
	return discounts, total, nil
}

// FindByID returns a discount by its ID.
func (r *DiscountRepository) FindByID(ctx context.Context, id string) (*models.Discount, error) {
	query := fmt.Sprintf(`SELECT %s FROM discounts WHERE id = $1`, discountColumns)
	var discount models.Discount
	if err := r.db.GetContext(ctx, &discount, query, id); err != nil {
		return nil, err
	}
	return &discount, nil
}

// Create persists a new discount.
func (r *DiscountRepository) Create(ctx context.Context, discount *models.Discount) error {
	if discount.ID == "" {
		discount.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	discount.CreatedAt = now
	discount.UpdatedAt = now
	const query = `INSERT INTO discounts (id, nombre, porcentaje, curso_id, fecha_inicio, fecha_fin, activo, created_at, updated_at)
	VALUES (:id, :nombre, :porcentaje, :curso_id, :fecha_inicio, :fecha_fin, :activo, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, discount); err != nil {
		return fmt.Errorf("create discount: %w", err)
	}
	return nil
}

// Update persists discount changes. Enrollments that already snapshotted
// the percentage are unaffected.
func (r *DiscountRepository) Update(ctx context.Context, discount *models.Discount) error {
	discount.UpdatedAt = time.Now().UTC()
	const query = `UPDATE discounts SET nombre = :nombre, porcentaje = :porcentaje, curso_id = :curso_id,
	fecha_inicio = :fecha_inicio, fecha_fin = :fecha_fin, activo = :activo, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, discount); err != nil {
		return fmt.Errorf("update discount: %w", err)
	}
	return nil
}
