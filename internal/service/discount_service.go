package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/posgrado-epg/pagos-api/internal/models"
	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
)

type discountRepository interface {
	List(ctx context.Context, filter models.DiscountFilter) ([]models.Discount, int, error)
	FindByID(ctx context.Context, id string) (*models.Discount, error)
	Create(ctx context.Context, discount *models.Discount) error
	Update(ctx context.Context, discount *models.Discount) error
}

// DiscountRequest carries discount creation and update payloads.
type DiscountRequest struct {
	Nombre      string     `json:"nombre" validate:"required"`
	Porcentaje  float64    `json:"porcentaje" validate:"gte=0,lte=100"`
	CursoID     *string    `json:"curso_id"`
	FechaInicio *time.Time `json:"fecha_inicio"`
	FechaFin    *time.Time `json:"fecha_fin"`
	Activo      *bool      `json:"activo"`
}

// DiscountService manages the discount catalog. Changing or deactivating a
// discount here never alters percentages already snapshotted onto
// enrollments.
type DiscountService struct {
	repo      discountRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDiscountService constructs DiscountService.
func NewDiscountService(repo discountRepository, validate *validator.Validate, logger *zap.Logger) *DiscountService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscountService{repo: repo, validator: validate, logger: logger}
}

// List returns discounts with pagination metadata.
func (s *DiscountService) List(ctx context.Context, filter models.DiscountFilter) ([]models.Discount, *models.Pagination, error) {
	discounts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list discounts")
	}
	return discounts, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one discount by id.
func (s *DiscountService) Get(ctx context.Context, id string) (*models.Discount, error) {
	discount, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "discount not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discount")
	}
	return discount, nil
}

// Create registers a new discount.
func (s *DiscountService) Create(ctx context.Context, req DiscountRequest) (*models.Discount, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	discount := &models.Discount{
		Nombre:      req.Nombre,
		Porcentaje:  req.Porcentaje,
		CursoID:     req.CursoID,
		FechaInicio: req.FechaInicio,
		FechaFin:    req.FechaFin,
		Activo:      true,
	}
	if req.Activo != nil {
		discount.Activo = *req.Activo
	}
	if err := s.repo.Create(ctx, discount); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create discount")
	}

	s.logger.Info("discount created", zap.String("discount_id", discount.ID), zap.Float64("porcentaje", discount.Porcentaje))
	return discount, nil
}

// Update modifies a discount.
func (s *DiscountService) Update(ctx context.Context, id string, req DiscountRequest) (*models.Discount, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	discount, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "discount not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discount")
	}

	discount.Nombre = req.Nombre
	discount.Porcentaje = req.Porcentaje
	discount.CursoID = req.CursoID
	discount.FechaInicio = req.FechaInicio
	discount.FechaFin = req.FechaFin
	if req.Activo != nil {
		discount.Activo = *req.Activo
	}
	if err := s.repo.Update(ctx, discount); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update discount")
	}

	s.logger.Info("discount updated", zap.String("discount_id", id))
	return discount, nil
}

func (s *DiscountService) validateRequest(req DiscountRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid discount payload")
	}
	if req.FechaInicio != nil && req.FechaFin != nil && req.FechaFin.Before(*req.FechaInicio) {
		return appErrors.Clone(appErrors.ErrValidation, "fecha_fin cannot precede fecha_inicio")
	}
	return nil
}
