package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/posgrado-epg/pagos-api/internal/models"
)

const paymentConfigColumns = `id, numero_cuenta, banco, titular, tipo_cuenta, qr_url, notas, activo, created_at, updated_at`

// PaymentConfigRepository persists payment destination records. The
// "at most one active" invariant is enforced here: activation deactivates
// any previous record inside the same transaction.
type PaymentConfigRepository struct {
	db *sqlx.DB
}

// NewPaymentConfigRepository constructs the repository.
func NewPaymentConfigRepository(db *sqlx.DB) *PaymentConfigRepository {
	return &PaymentConfigRepository{db: db}
}

// FindActive returns the single active payment destination.
func (r *PaymentConfigRepository) FindActive(ctx context.Context) (*models.PaymentConfig, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_configs WHERE activo = TRUE LIMIT 1`, paymentConfigColumns)
	var cfg models.PaymentConfig
	if err := r.db.GetContext(ctx, &cfg, query); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindByID returns a payment destination by its ID.
func (r *PaymentConfigRepository) FindByID(ctx context.Context, id string) (*models.PaymentConfig, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_configs WHERE id = $1`, paymentConfigColumns)
	var cfg models.PaymentConfig
	if err := r.db.GetContext(ctx, &cfg, query, id); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreateActive inserts a new destination as the active one, deactivating
// any current record in the same transaction.
func (r *PaymentConfigRepository) CreateActive(ctx context.Context, cfg *models.PaymentConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	cfg.Activo = true
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payment config tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `UPDATE payment_configs SET activo = FALSE, updated_at = $1 WHERE activo = TRUE`, now); err != nil {
		return fmt.Errorf("deactivate payment configs: %w", err)
	}

	const insert = `INSERT INTO payment_configs (id, numero_cuenta, banco, titular, tipo_cuenta, qr_url, notas, activo, created_at, updated_at)
	VALUES (:id, :numero_cuenta, :banco, :titular, :tipo_cuenta, :qr_url, :notas, :activo, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, cfg); err != nil {
		return fmt.Errorf("create payment config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment config tx: %w", err)
	}
	return nil
}

// Update persists field changes on an existing destination.
func (r *PaymentConfigRepository) Update(ctx context.Context, cfg *models.PaymentConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	const query = `UPDATE payment_configs SET numero_cuenta = :numero_cuenta, banco = :banco, titular = :titular,
	tipo_cuenta = :tipo_cuenta, qr_url = :qr_url, notas = :notas, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, cfg); err != nil {
		return fmt.Errorf("update payment config: %w", err)
	}
	return nil
}

// Deactivate turns the record off without deleting its history.
func (r *PaymentConfigRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE payment_configs SET activo = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate payment config: %w", err)
	}
	return nil
}
