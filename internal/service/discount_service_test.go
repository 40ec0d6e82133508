package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posgrado-epg/pagos-api/internal/models"
	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
)

type mockDiscountRepo struct {
	discounts map[string]*models.Discount
	created   *models.Discount
}

func (m *mockDiscountRepo) List(ctx context.Context, filter models.DiscountFilter) ([]models.Discount, int, error) {
	var out []models.Discount
	for _, d := range m.discounts {
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (m *mockDiscountRepo) FindByID(ctx context.Context, id string) (*models.Discount, error) {
	if d, ok := m.discounts[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDiscountRepo) Create(ctx context.Context, discount *models.Discount) error {
	if discount.ID == "" {
		discount.ID = "disc-new"
	}
	if m.discounts == nil {
		m.discounts = make(map[string]*models.Discount)
	}
	m.discounts[discount.ID] = discount
	m.created = discount
	return nil
}

func (m *mockDiscountRepo) Update(ctx context.Context, discount *models.Discount) error {
	m.discounts[discount.ID] = discount
	return nil
}

func TestDiscountCreate(t *testing.T) {
	repo := &mockDiscountRepo{}
	svc := NewDiscountService(repo, nil, nil)

	discount, err := svc.Create(context.Background(), DiscountRequest{Nombre: "Convenio docente", Porcentaje: 15})
	require.NoError(t, err)
	assert.True(t, discount.Activo)
	assert.Equal(t, 15.0, discount.Porcentaje)
}

func TestDiscountValidation(t *testing.T) {
	svc := NewDiscountService(&mockDiscountRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), DiscountRequest{Nombre: "Demasiado", Porcentaje: 150})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	start := time.Now()
	end := start.Add(-time.Hour)
	_, err = svc.Create(context.Background(), DiscountRequest{Nombre: "Ventana invertida", Porcentaje: 10, FechaInicio: &start, FechaFin: &end})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDiscountUpdateNotFound(t *testing.T) {
	svc := NewDiscountService(&mockDiscountRepo{}, nil, nil)

	_, err := svc.Update(context.Background(), "missing", DiscountRequest{Nombre: "X", Porcentaje: 5})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDiscountDeactivationKeepsSnapshots(t *testing.T) {
	repo := &mockDiscountRepo{discounts: map[string]*models.Discount{
		"disc-1": {ID: "disc-1", Nombre: "Convenio", Porcentaje: 10, Activo: true},
	}}
	svc := NewDiscountService(repo, nil, nil)

	// A snapshot computed while the discount was active.
	snap, err := ComputeSnapshot(3000, 500, 12, 10, 0, nil, nil)
	require.NoError(t, err)

	inactive := false
	_, err = svc.Update(context.Background(), "disc-1", DiscountRequest{Nombre: "Convenio", Porcentaje: 0, Activo: &inactive})
	require.NoError(t, err)

	// The frozen total keeps the old percentage applied.
	assert.Equal(t, 2700.0, snap.TotalAPagar)
}
