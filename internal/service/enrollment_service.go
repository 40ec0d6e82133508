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

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ExistsForStudentAndCourse(ctx context.Context, studentID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateEstado(ctx context.Context, id string, estado models.EnrollmentStatus) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type discountReader interface {
	FindByID(ctx context.Context, id string) (*models.Discount, error)
}

// CreateEnrollmentRequest describes enrollment creation. The price pair is
// resolved from the course by student type; only the optional student-level
// discount is caller-chosen.
type CreateEnrollmentRequest struct {
	EstudianteID          string  `json:"estudiante_id" validate:"required"`
	CursoID               string  `json:"curso_id" validate:"required"`
	DescuentoEstudianteID *string `json:"descuento_estudiante_id"`
}

// ChangeEnrollmentStateRequest is the admin state override payload.
type ChangeEnrollmentStateRequest struct {
	Estado models.EnrollmentStatus `json:"estado" validate:"required,oneof=ACTIVE SUSPENDED CANCELLED"`
}

// EnrollmentService orchestrates enrollment creation and lifecycle
// overrides. Payment-driven transitions live in the ledger, not here.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	courses   courseReader
	discounts discountReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, courses courseReader, discounts discountReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, courses: courses, discounts: discounts, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata. Students only ever see
// their own rows.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter, requester models.JWTClaims) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if requester.Role == models.RoleStudent {
		filter.EstudianteID = requester.UserID
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one enrollment, enforcing ownership for students.
func (s *EnrollmentService) Get(ctx context.Context, id string, requester models.JWTClaims) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if requester.Role == models.RoleStudent && requester.UserID != enrollment.EstudianteID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}
	return enrollment, nil
}

// Create registers a student on a course, freezing the pricing snapshot at
// this instant. Later course price or discount changes never reach the row
// created here.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.EstudianteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is inactive")
	}

	course, err := s.courses.FindByID(ctx, req.CursoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Activo {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is not open for enrollment")
	}

	exists, err := s.repo.ExistsForStudentAndCourse(ctx, req.EstudianteID, req.CursoID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this course")
	}

	now := time.Now().UTC()

	var descuentoCursoID *string
	var descuentoCursoPct float64
	if course.DescuentoCursoID != nil {
		courseDisc, err := s.discounts.FindByID(ctx, *course.DescuentoCursoID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course discount")
		}
		if err == nil && courseDisc.ValidFor(course.ID, now) {
			descuentoCursoID = &courseDisc.ID
			descuentoCursoPct = courseDisc.Porcentaje
		}
	}

	var descuentoEstudianteID *string
	var descuentoEstudiantePct float64
	if req.DescuentoEstudianteID != nil {
		studentDisc, err := s.discounts.FindByID(ctx, *req.DescuentoEstudianteID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "discount not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discount")
		}
		if !studentDisc.ValidFor(course.ID, now) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "discount is not applicable to this course")
		}
		descuentoEstudianteID = &studentDisc.ID
		descuentoEstudiantePct = studentDisc.Porcentaje
	}

	costoTotal, costoMatricula := course.PriceFor(student.Tipo)
	snap, err := ComputeSnapshot(costoTotal, costoMatricula, course.CantidadCuotas,
		descuentoCursoPct, descuentoEstudiantePct, descuentoCursoID, descuentoEstudianteID)
	if err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{
		EstudianteID:           req.EstudianteID,
		CursoID:                req.CursoID,
		CostoTotal:             snap.CostoTotal,
		CostoMatricula:         snap.CostoMatricula,
		CantidadCuotas:         snap.CantidadCuotas,
		DescuentoCursoID:       snap.DescuentoCursoID,
		DescuentoCursoPct:      snap.DescuentoCursoPct,
		DescuentoEstudianteID:  snap.DescuentoEstudianteID,
		DescuentoEstudiantePct: snap.DescuentoEstudiantePct,
		TotalAPagar:            snap.TotalAPagar,
		SaldoPendiente:         snap.TotalAPagar,
		Estado:                 models.EnrollmentStatusPendingPayment,
		FechaInscripcion:       now,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.EstudianteID),
		zap.String("course_id", enrollment.CursoID),
		zap.Float64("total_a_pagar", enrollment.TotalAPagar))
	return enrollment, nil
}

// ChangeState applies an administrative lifecycle override. Terminal states
// stay terminal; payment-driven transitions remain the ledger's job.
func (s *EnrollmentService) ChangeState(ctx context.Context, id string, req ChangeEnrollmentStateRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid state payload")
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Estado.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is in a terminal state")
	}
	if req.Estado == models.EnrollmentStatusActive && enrollment.Estado != models.EnrollmentStatusSuspended {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only suspended enrollments can be reactivated")
	}
	if req.Estado == models.EnrollmentStatusSuspended && enrollment.Estado != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only active enrollments can be suspended")
	}

	if err := s.repo.UpdateEstado(ctx, id, req.Estado); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment state")
	}
	enrollment.Estado = req.Estado

	s.logger.Info("enrollment state overridden",
		zap.String("enrollment_id", id),
		zap.String("estado", string(req.Estado)))
	return enrollment, nil
}
