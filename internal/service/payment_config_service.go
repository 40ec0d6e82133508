package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/posgrado-epg/pagos-api/internal/models"
	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
)

const paymentConfigCacheKey = "payment_config:active"

type paymentConfigRepository interface {
	FindActive(ctx context.Context) (*models.PaymentConfig, error)
	FindByID(ctx context.Context, id string) (*models.PaymentConfig, error)
	CreateActive(ctx context.Context, cfg *models.PaymentConfig) error
	Update(ctx context.Context, cfg *models.PaymentConfig) error
	Deactivate(ctx context.Context, id string) error
}

// PaymentConfigRequest carries the bank destination payload shown to
// students before they transfer.
type PaymentConfigRequest struct {
	NumeroCuenta string  `json:"numero_cuenta" validate:"required"`
	Banco        string  `json:"banco" validate:"required"`
	Titular      string  `json:"titular" validate:"required"`
	TipoCuenta   string  `json:"tipo_cuenta"`
	QRURL        *string `json:"qr_url"`
	Notas        *string `json:"notas"`
}

// PaymentConfigService manages the active payment destination. There is at
// most one active record at any time; activating a new one retires the
// previous record in the same transaction.
type PaymentConfigService struct {
	repo      paymentConfigRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentConfigService constructs PaymentConfigService.
func NewPaymentConfigService(repo paymentConfigRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *PaymentConfigService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentConfigService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// GetActive returns the current payment destination, read through the
// cache when one is configured.
func (s *PaymentConfigService) GetActive(ctx context.Context) (*models.PaymentConfig, error) {
	var cached models.PaymentConfig
	if hit, _ := s.cache.Get(ctx, paymentConfigCacheKey, &cached); hit {
		return &cached, nil
	}

	cfg, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active payment destination configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment destination")
	}

	if err := s.cache.Set(ctx, paymentConfigCacheKey, cfg, 0); err != nil {
		s.logger.Warn("failed to cache payment destination", zap.Error(err))
	}
	return cfg, nil
}

// Activate stores a new destination as the active one.
func (s *PaymentConfigService) Activate(ctx context.Context, req PaymentConfigRequest) (*models.PaymentConfig, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment destination payload")
	}

	cfg := &models.PaymentConfig{
		NumeroCuenta: req.NumeroCuenta,
		Banco:        req.Banco,
		Titular:      req.Titular,
		TipoCuenta:   req.TipoCuenta,
		QRURL:        req.QRURL,
		Notas:        req.Notas,
	}
	if err := s.repo.CreateActive(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate payment destination")
	}

	s.invalidate(ctx)
	s.logger.Info("payment destination activated", zap.String("config_id", cfg.ID), zap.String("banco", cfg.Banco))
	return cfg, nil
}

// Update modifies the stored destination fields without changing which
// record is active.
func (s *PaymentConfigService) Update(ctx context.Context, id string, req PaymentConfigRequest) (*models.PaymentConfig, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment destination payload")
	}

	cfg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment destination not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment destination")
	}

	cfg.NumeroCuenta = req.NumeroCuenta
	cfg.Banco = req.Banco
	cfg.Titular = req.Titular
	cfg.TipoCuenta = req.TipoCuenta
	cfg.QRURL = req.QRURL
	cfg.Notas = req.Notas
	if err := s.repo.Update(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment destination")
	}

	s.invalidate(ctx)
	s.logger.Info("payment destination updated", zap.String("config_id", id))
	return cfg, nil
}

// Deactivate retires a destination, leaving no active one.
func (s *PaymentConfigService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment destination not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment destination")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate payment destination")
	}

	s.invalidate(ctx)
	s.logger.Info("payment destination deactivated", zap.String("config_id", id))
	return nil
}

func (s *PaymentConfigService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, paymentConfigCacheKey); err != nil {
		s.logger.Warn("failed to invalidate payment destination cache", zap.Error(err))
	}
}
