package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posgrado-epg/pagos-api/internal/models"
	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
)

type mockCourseRepo struct {
	courses map[string]*models.Course
	created *models.Course
	updated *models.Course
	lists   int
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	m.lists++
	var out []models.Course
	for _, c := range m.courses {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = "cur-new"
	}
	if m.courses == nil {
		m.courses = make(map[string]*models.Course)
	}
	m.courses[course.ID] = course
	m.created = course
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	m.courses[course.ID] = course
	m.updated = course
	return nil
}

// memCacheRepo is an in-memory stand-in for the redis cache repository.
type memCacheRepo struct {
	entries map[string][]byte
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{entries: make(map[string][]byte)}
}

func (m *memCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	// The only patterns used end in a wildcard or are exact keys.
	prefix := pattern
	if n := len(pattern); n > 0 && pattern[n-1] == '*' {
		prefix = pattern[:n-1]
		for key := range m.entries {
			if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
				delete(m.entries, key)
			}
		}
		return nil
	}
	delete(m.entries, prefix)
	return nil
}

func validCourseRequest() CourseRequest {
	return CourseRequest{
		Codigo:            "MAE-101",
		NombrePrograma:    "Maestría en Finanzas",
		TipoCurso:         models.CourseTypeMaestria,
		Modalidad:         models.ModalityVirtual,
		CostoTotalInterno: 2400,
		MatriculaInterno:  400,
		CostoTotalExterno: 3000,
		MatriculaExterno:  500,
		CantidadCuotas:    12,
	}
}

func TestCourseCreateAndGet(t *testing.T) {
	repo := &mockCourseRepo{}
	svc := NewCourseService(repo, &mockDiscountReader{}, nil, nil, nil)

	course, err := svc.Create(context.Background(), validCourseRequest())
	require.NoError(t, err)
	assert.True(t, course.Activo)
	assert.Equal(t, "MAE-101", course.Codigo)

	got, err := svc.Get(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Equal(t, course.ID, got.ID)

	_, err = svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseCreateValidation(t *testing.T) {
	repo := &mockCourseRepo{}
	svc := NewCourseService(repo, &mockDiscountReader{}, nil, nil, nil)

	req := validCourseRequest()
	req.MatriculaExterno = 3500
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req = validCourseRequest()
	unknown := "disc-missing"
	req.DescuentoCursoID = &unknown
	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseListReadsThroughCache(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{
		"cur-1": {ID: "cur-1", Codigo: "MAE-101", Activo: true},
	}}
	cacheSvc := NewCacheService(newMemCacheRepo(), nil, time.Minute, nil, true)
	svc := NewCourseService(repo, &mockDiscountReader{}, cacheSvc, nil, nil)

	filter := models.CourseFilter{Page: 1, PageSize: 20}

	courses, _, hit, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, courses, 1)

	courses, _, hit, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.True(t, hit)
	require.Len(t, courses, 1)
	assert.Equal(t, 1, repo.lists)
}

func TestCourseWriteInvalidatesListings(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{
		"cur-1": {ID: "cur-1", Codigo: "MAE-101", Activo: true},
	}}
	cacheSvc := NewCacheService(newMemCacheRepo(), nil, time.Minute, nil, true)
	svc := NewCourseService(repo, &mockDiscountReader{}, cacheSvc, nil, nil)

	filter := models.CourseFilter{Page: 1, PageSize: 20}
	_, _, _, err := svc.List(context.Background(), filter)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), validCourseRequest())
	require.NoError(t, err)

	courses, _, hit, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, courses, 2)
}

func TestCourseUpdateDoesNotTouchEnrollmentSnapshots(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{
		"cur-1": {ID: "cur-1", Codigo: "MAE-101", CostoTotalExterno: 3000, MatriculaExterno: 500, CantidadCuotas: 12, Activo: true},
	}}
	svc := NewCourseService(repo, &mockDiscountReader{}, nil, nil, nil)

	// An enrollment froze its pricing before the update.
	snap, err := ComputeSnapshot(3000, 500, 12, 0, 0, nil, nil)
	require.NoError(t, err)

	req := validCourseRequest()
	req.CostoTotalExterno = 9000
	req.MatriculaExterno = 1000
	_, err = svc.Update(context.Background(), "cur-1", req)
	require.NoError(t, err)

	assert.Equal(t, 3000.0, snap.TotalAPagar)
	assert.Equal(t, 9000.0, repo.updated.CostoTotalExterno)
}
