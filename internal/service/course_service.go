package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/posgrado-epg/pagos-api/internal/models"
	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
)

const (
	courseCachePattern = "courses:*"
	courseCacheTTL     = 10 * time.Minute
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
}

// CourseRequest carries course creation and update payloads. Changing the
// live prices here never touches existing enrollments; their snapshots are
// frozen.
type CourseRequest struct {
	Codigo            string                `json:"codigo" validate:"required"`
	NombrePrograma    string                `json:"nombre_programa" validate:"required"`
	TipoCurso         models.CourseType     `json:"tipo_curso" validate:"required,oneof=CURSO TALLER DIPLOMADO MAESTRIA DOCTORADO OTRO"`
	Modalidad         models.CourseModality `json:"modalidad" validate:"required,oneof=PRESENCIAL VIRTUAL HIBRIDO"`
	CostoTotalInterno float64               `json:"costo_total_interno" validate:"gte=0"`
	MatriculaInterno  float64               `json:"matricula_interno" validate:"gte=0"`
	CostoTotalExterno float64               `json:"costo_total_externo" validate:"gte=0"`
	MatriculaExterno  float64               `json:"matricula_externo" validate:"gte=0"`
	CantidadCuotas    int                   `json:"cantidad_cuotas" validate:"required,min=1"`
	DescuentoCursoID  *string               `json:"descuento_curso_id"`
	Observacion       *string               `json:"observacion"`
	FechaInicio       *time.Time            `json:"fecha_inicio"`
	FechaFin          *time.Time            `json:"fecha_fin"`
	Activo            *bool                 `json:"activo"`
}

// CourseService manages the course catalog.
type CourseService struct {
	repo      courseRepository
	discounts discountReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, discounts discountReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, discounts: discounts, cache: cache, validator: validate, logger: logger}
}

type cachedCourseList struct {
	Courses []models.Course `json:"courses"`
	Total   int             `json:"total"`
}

// List returns courses with pagination metadata. Listings are served from
// cache when possible; any catalog write invalidates them. The boolean
// reports whether the cache was hit.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, bool, error) {
	key := courseListCacheKey(filter)

	var cached cachedCourseList
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached.Courses, paginationFor(filter.Page, filter.PageSize, cached.Total), true, nil
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	if err := s.cache.Set(ctx, key, cachedCourseList{Courses: courses, Total: total}, courseCacheTTL); err != nil {
		s.logger.Warn("failed to cache course listing", zap.Error(err))
	}
	return courses, paginationFor(filter.Page, filter.PageSize, total), false, nil
}

func courseListCacheKey(filter models.CourseFilter) string {
	activo := "any"
	if filter.Activo != nil {
		activo = fmt.Sprintf("%t", *filter.Activo)
	}
	return fmt.Sprintf("courses:list:%s:%s:%s:%s:%d:%d:%s:%s",
		filter.TipoCurso, filter.Modalidad, activo, filter.Search,
		filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

// Get returns one course by id.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create registers a new course.
func (s *CourseService) Create(ctx context.Context, req CourseRequest) (*models.Course, error) {
	if err := s.validateRequest(ctx, req); err != nil {
		return nil, err
	}

	course := &models.Course{
		Codigo:            req.Codigo,
		NombrePrograma:    req.NombrePrograma,
		TipoCurso:         req.TipoCurso,
		Modalidad:         req.Modalidad,
		CostoTotalInterno: req.CostoTotalInterno,
		MatriculaInterno:  req.MatriculaInterno,
		CostoTotalExterno: req.CostoTotalExterno,
		MatriculaExterno:  req.MatriculaExterno,
		CantidadCuotas:    req.CantidadCuotas,
		DescuentoCursoID:  req.DescuentoCursoID,
		Observacion:       req.Observacion,
		FechaInicio:       req.FechaInicio,
		FechaFin:          req.FechaFin,
		Activo:            true,
	}
	if req.Activo != nil {
		course.Activo = *req.Activo
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.invalidateCatalog(ctx)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("codigo", course.Codigo))
	return course, nil
}

// Update modifies a course's live attributes.
func (s *CourseService) Update(ctx context.Context, id string, req CourseRequest) (*models.Course, error) {
	if err := s.validateRequest(ctx, req); err != nil {
		return nil, err
	}

	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	course.Codigo = req.Codigo
	course.NombrePrograma = req.NombrePrograma
	course.TipoCurso = req.TipoCurso
	course.Modalidad = req.Modalidad
	course.CostoTotalInterno = req.CostoTotalInterno
	course.MatriculaInterno = req.MatriculaInterno
	course.CostoTotalExterno = req.CostoTotalExterno
	course.MatriculaExterno = req.MatriculaExterno
	course.CantidadCuotas = req.CantidadCuotas
	course.DescuentoCursoID = req.DescuentoCursoID
	course.Observacion = req.Observacion
	course.FechaInicio = req.FechaInicio
	course.FechaFin = req.FechaFin
	if req.Activo != nil {
		course.Activo = *req.Activo
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidateCatalog(ctx)
	s.logger.Info("course updated", zap.String("course_id", course.ID))
	return course, nil
}

func (s *CourseService) validateRequest(ctx context.Context, req CourseRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if req.MatriculaInterno > req.CostoTotalInterno || req.MatriculaExterno > req.CostoTotalExterno {
		return appErrors.Clone(appErrors.ErrValidation, "matrícula cannot exceed the course total")
	}
	if req.DescuentoCursoID != nil {
		if _, err := s.discounts.FindByID(ctx, *req.DescuentoCursoID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "discount not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discount")
		}
	}
	return nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, courseCachePattern); err != nil {
		s.logger.Warn("failed to invalidate course cache", zap.Error(err))
	}
}
