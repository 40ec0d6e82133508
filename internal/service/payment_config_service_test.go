package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posgrado-epg/pagos-api/internal/models"
	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
)

type mockPaymentConfigRepo struct {
	configs map[string]*models.PaymentConfig
	active  string
	finds   int
	seq     int
}

func (m *mockPaymentConfigRepo) FindActive(ctx context.Context) (*models.PaymentConfig, error) {
	m.finds++
	if cfg, ok := m.configs[m.active]; ok && cfg.Activo {
		return cfg, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentConfigRepo) FindByID(ctx context.Context, id string) (*models.PaymentConfig, error) {
	if cfg, ok := m.configs[id]; ok {
		return cfg, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentConfigRepo) CreateActive(ctx context.Context, cfg *models.PaymentConfig) error {
	if prev, ok := m.configs[m.active]; ok {
		prev.Activo = false
	}
	if cfg.ID == "" {
		m.seq++
		cfg.ID = fmt.Sprintf("cfg-%d", m.seq)
	}
	cfg.Activo = true
	if m.configs == nil {
		m.configs = make(map[string]*models.PaymentConfig)
	}
	m.configs[cfg.ID] = cfg
	m.active = cfg.ID
	return nil
}

func (m *mockPaymentConfigRepo) Update(ctx context.Context, cfg *models.PaymentConfig) error {
	m.configs[cfg.ID] = cfg
	return nil
}

func (m *mockPaymentConfigRepo) Deactivate(ctx context.Context, id string) error {
	if cfg, ok := m.configs[id]; ok {
		cfg.Activo = false
	}
	if m.active == id {
		m.active = ""
	}
	return nil
}

func validPaymentConfigRequest() PaymentConfigRequest {
	return PaymentConfigRequest{
		NumeroCuenta: "100-200-300",
		Banco:        "BNB",
		Titular:      "Escuela de Posgrado",
		TipoCuenta:   "Caja de ahorro",
	}
}

func TestPaymentConfigActivateRetiresPrevious(t *testing.T) {
	repo := &mockPaymentConfigRepo{}
	svc := NewPaymentConfigService(repo, nil, nil, nil)

	first, err := svc.Activate(context.Background(), validPaymentConfigRequest())
	require.NoError(t, err)
	assert.True(t, first.Activo)

	second := validPaymentConfigRequest()
	second.NumeroCuenta = "999-888-777"
	activated, err := svc.Activate(context.Background(), second)
	require.NoError(t, err)
	assert.True(t, activated.Activo)
	assert.NotEqual(t, first.ID, activated.ID)
	assert.False(t, repo.configs[first.ID].Activo)
}

func TestPaymentConfigGetActiveCaches(t *testing.T) {
	repo := &mockPaymentConfigRepo{
		configs: map[string]*models.PaymentConfig{
			"cfg-1": {ID: "cfg-1", NumeroCuenta: "100-200-300", Banco: "BNB", Titular: "EPG", Activo: true},
		},
		active: "cfg-1",
	}
	cacheSvc := NewCacheService(newMemCacheRepo(), nil, time.Minute, nil, true)
	svc := NewPaymentConfigService(repo, cacheSvc, nil, nil)

	cfg, err := svc.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cfg-1", cfg.ID)

	// Second read is served from cache.
	_, err = svc.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.finds)
}

func TestPaymentConfigGetActiveNone(t *testing.T) {
	svc := NewPaymentConfigService(&mockPaymentConfigRepo{}, nil, nil, nil)

	_, err := svc.GetActive(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPaymentConfigDeactivateInvalidatesCache(t *testing.T) {
	repo := &mockPaymentConfigRepo{
		configs: map[string]*models.PaymentConfig{
			"cfg-1": {ID: "cfg-1", NumeroCuenta: "100-200-300", Banco: "BNB", Titular: "EPG", Activo: true},
		},
		active: "cfg-1",
	}
	cacheSvc := NewCacheService(newMemCacheRepo(), nil, time.Minute, nil, true)
	svc := NewPaymentConfigService(repo, cacheSvc, nil, nil)

	_, err := svc.GetActive(context.Background())
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), "cfg-1"))

	// The cached copy is gone and no active record remains.
	_, err = svc.GetActive(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPaymentConfigValidation(t *testing.T) {
	svc := NewPaymentConfigService(&mockPaymentConfigRepo{}, nil, nil, nil)

	_, err := svc.Activate(context.Background(), PaymentConfigRequest{Banco: "BNB"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
