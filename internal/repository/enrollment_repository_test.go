package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/posgrado-epg/pagos-api/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryFindByIDDerivesBalance(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM enrollments WHERE id = \$1`).
		WithArgs("enr-1").
		WillReturnRows(enrollmentRows(500))

	enrollment, err := repo.FindByID(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Equal(t, "enr-1", enrollment.ID)
	require.Equal(t, 500.0, enrollment.TotalPagado)
	require.Equal(t, 2500.0, enrollment.SaldoPendiente)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsForStudentAndCourse(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	query := regexp.QuoteMeta(`SELECT 1 FROM enrollments WHERE estudiante_id = $1 AND curso_id = $2 AND estado <> $3 LIMIT 1`)

	mock.ExpectQuery(query).
		WithArgs("stu-1", "cur-1", models.EnrollmentStatusCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	exists, err := repo.ExistsForStudentAndCourse(context.Background(), "stu-1", "cur-1")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(query).
		WithArgs("stu-2", "cur-1", models.EnrollmentStatusCancelled).
		WillReturnError(sql.ErrNoRows)
	exists, err = repo.ExistsForStudentAndCourse(context.Background(), "stu-2", "cur-1")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateAssignsDefaults(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(`INSERT INTO enrollments`).WillReturnResult(sqlmock.NewResult(0, 1))

	enrollment := &models.Enrollment{
		EstudianteID:   "stu-1",
		CursoID:        "cur-1",
		CostoTotal:     3000,
		CostoMatricula: 500,
		CantidadCuotas: 5,
		TotalAPagar:    3000,
	}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	require.NotEmpty(t, enrollment.ID)
	require.Equal(t, models.EnrollmentStatusPendingPayment, enrollment.Estado)
	require.False(t, enrollment.FechaInscripcion.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateEstado(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE enrollments SET estado = $2, updated_at = $3 WHERE id = $1`)).
		WithArgs("enr-1", models.EnrollmentStatusSuspended, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateEstado(context.Background(), "enr-1", models.EnrollmentStatusSuspended))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListFiltersByStudent(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "estudiante_id", "curso_id", "costo_total", "costo_matricula", "cantidad_cuotas",
		"descuento_curso_id", "descuento_curso_pct", "descuento_estudiante_id", "descuento_estudiante_pct",
		"total_a_pagar", "total_pagado", "saldo_pendiente",
		"estado", "fecha_inscripcion", "created_at", "updated_at",
		"student_name", "student_ci", "course_name", "course_code",
	}).AddRow(
		"enr-1", "stu-1", "cur-1", 3000.0, 500.0, 5,
		nil, 0.0, nil, 0.0,
		3000.0, 500.0, 2500.0,
		models.EnrollmentStatusActive, now, now, now,
		"Ana Quispe", "1234567", "Maestría en Finanzas", "MF-01",
	)
	mock.ExpectQuery(`SELECT (.+) FROM enrollments e(.+)WHERE e\.estudiante_id = \$1 ORDER BY e\.fecha_inscripcion DESC LIMIT 20 OFFSET 0`).
		WithArgs("stu-1").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollments e(.+)WHERE e\.estudiante_id = \$1`).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	enrollments, total, err := repo.List(context.Background(), models.EnrollmentFilter{EstudianteID: "stu-1"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, enrollments, 1)
	require.Equal(t, "Ana Quispe", enrollments[0].StudentName)
	require.Equal(t, "MF-01", enrollments[0].CourseCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListByCourseExcludesCancelled(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM enrollments WHERE curso_id = \$1 AND estado <> \$2`).
		WithArgs("cur-1", models.EnrollmentStatusCancelled).
		WillReturnRows(enrollmentRows(0))

	enrollments, err := repo.ListByCourse(context.Background(), "cur-1")
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
