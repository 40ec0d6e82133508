package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/posgrado-epg/pagos-api/internal/models"
	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
}

type accountWriter interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

// CreateStudentRequest registers a student together with their login
// account. When no password is given the CI is used as the initial one.
type CreateStudentRequest struct {
	CI             string             `json:"ci" validate:"required"`
	NombreCompleto string             `json:"nombre_completo" validate:"required"`
	Email          string             `json:"email" validate:"required,email"`
	Telefono       *string            `json:"telefono"`
	Tipo           models.StudentType `json:"tipo" validate:"required,oneof=INTERNO EXTERNO"`
	Password       string             `json:"password" validate:"omitempty,min=6"`
}

// UpdateStudentRequest modifies a student's profile.
type UpdateStudentRequest struct {
	NombreCompleto string             `json:"nombre_completo" validate:"required"`
	Telefono       *string            `json:"telefono"`
	Tipo           models.StudentType `json:"tipo" validate:"required,oneof=INTERNO EXTERNO"`
	Active         *bool              `json:"active"`
}

// StudentService manages student profiles. A student's profile row and
// their users row share the same id; creating one creates both.
type StudentService struct {
	repo      studentRepository
	accounts  accountWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, accounts accountWriter, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, accounts: accounts, validator: validate, logger: logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one student. Students may only read their own profile.
func (s *StudentService) Get(ctx context.Context, id string, requester models.JWTClaims) (*models.Student, error) {
	if requester.Role == models.RoleStudent && requester.UserID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "profile belongs to another student")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a student profile plus the matching login account.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	if _, err := s.accounts.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	password := req.Password
	if password == "" {
		password = req.CI
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	student := &models.Student{
		CI:             req.CI,
		NombreCompleto: req.NombreCompleto,
		Email:          req.Email,
		Telefono:       req.Telefono,
		Tipo:           req.Tipo,
		Active:         true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	account := &models.User{
		ID:           student.ID,
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.NombreCompleto,
		Role:         models.RoleStudent,
		Active:       true,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student account")
	}

	s.logger.Info("student created", zap.String("student_id", student.ID), zap.String("ci", student.CI))
	return student, nil
}

// Update modifies a student profile and mirrors the shared fields onto the
// login account.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	student.NombreCompleto = req.NombreCompleto
	student.Telefono = req.Telefono
	student.Tipo = req.Tipo
	if req.Active != nil {
		student.Active = *req.Active
	}
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	if account, err := s.accounts.FindByEmail(ctx, student.Email); err == nil {
		account.FullName = student.NombreCompleto
		account.Active = student.Active
		if err := s.accounts.Update(ctx, account); err != nil {
			s.logger.Warn("failed to mirror student update onto account", zap.String("student_id", id), zap.Error(err))
		}
	}

	s.logger.Info("student updated", zap.String("student_id", id))
	return student, nil
}
