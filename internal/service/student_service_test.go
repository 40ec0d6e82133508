package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/posgrado-epg/pagos-api/internal/models"
	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
)

type mockStudentRepo struct {
	students map[string]*models.Student
	created  *models.Student
	updated  *models.Student
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, s := range m.students {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = "stu-new"
	}
	if m.students == nil {
		m.students = make(map[string]*models.Student)
	}
	m.students[student.ID] = student
	m.created = student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = student
	m.updated = student
	return nil
}

type mockAccountWriter struct {
	users   map[string]*models.User
	created *models.User
	updated *models.User
}

func (m *mockAccountWriter) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAccountWriter) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	m.users[user.ID] = user
	m.created = user
	return nil
}

func (m *mockAccountWriter) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	m.updated = user
	return nil
}

func TestStudentCreateAlsoCreatesAccount(t *testing.T) {
	repo := &mockStudentRepo{}
	accounts := &mockAccountWriter{}
	svc := NewStudentService(repo, accounts, nil, nil)

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		CI:             "1234567",
		NombreCompleto: "Ana Quispe",
		Email:          "ana@example.com",
		Tipo:           models.StudentTypeExterno,
	})
	require.NoError(t, err)
	require.NotNil(t, accounts.created)

	// The account shares the student's id and carries the STUDENT role.
	assert.Equal(t, student.ID, accounts.created.ID)
	assert.Equal(t, models.RoleStudent, accounts.created.Role)
	assert.Equal(t, "ana@example.com", accounts.created.Email)

	// No password given: the CI is the initial one.
	err = bcrypt.CompareHashAndPassword([]byte(accounts.created.PasswordHash), []byte("1234567"))
	assert.NoError(t, err)
}

func TestStudentCreateDuplicateEmail(t *testing.T) {
	repo := &mockStudentRepo{}
	accounts := &mockAccountWriter{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "ana@example.com"},
	}}
	svc := NewStudentService(repo, accounts, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		CI:             "1234567",
		NombreCompleto: "Ana Quispe",
		Email:          "ana@example.com",
		Tipo:           models.StudentTypeExterno,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentCreateValidation(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, &mockAccountWriter{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		CI:             "1234567",
		NombreCompleto: "Ana Quispe",
		Email:          "not-an-email",
		Tipo:           models.StudentTypeExterno,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentGetSelfOnly(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", NombreCompleto: "Ana Quispe"},
	}}
	svc := NewStudentService(repo, &mockAccountWriter{}, nil, nil)

	student, err := svc.Get(context.Background(), "stu-1", studentClaims("stu-1"))
	require.NoError(t, err)
	assert.Equal(t, "stu-1", student.ID)

	_, err = svc.Get(context.Background(), "stu-1", studentClaims("stu-2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStudentUpdateMirrorsAccount(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", NombreCompleto: "Ana Quispe", Email: "ana@example.com", Active: true},
	}}
	accounts := &mockAccountWriter{users: map[string]*models.User{
		"stu-1": {ID: "stu-1", Email: "ana@example.com", FullName: "Ana Quispe", Active: true},
	}}
	svc := NewStudentService(repo, accounts, nil, nil)

	inactive := false
	_, err := svc.Update(context.Background(), "stu-1", UpdateStudentRequest{
		NombreCompleto: "Ana Quispe Mamani",
		Tipo:           models.StudentTypeInterno,
		Active:         &inactive,
	})
	require.NoError(t, err)
	require.NotNil(t, accounts.updated)
	assert.Equal(t, "Ana Quispe Mamani", accounts.updated.FullName)
	assert.False(t, accounts.updated.Active)
}
