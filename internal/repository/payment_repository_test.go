package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/posgrado-epg/pagos-api/internal/models"
)

func newPaymentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPaymentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM payments WHERE id = \$1`).
		WithArgs("pay-1").
		WillReturnRows(paymentRows(models.PaymentStatusPending))

	payment, err := repo.FindByID(context.Background(), "pay-1")
	require.NoError(t, err)
	require.Equal(t, "pay-1", payment.ID)
	require.Equal(t, "Matrícula", payment.Concepto)
	require.Equal(t, models.PaymentStatusPending, payment.EstadoPago)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListAppliesFiltersAndPagination(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM payments WHERE estudiante_id = \$1 AND estado_pago = \$2 ORDER BY fecha_subida DESC LIMIT 10 OFFSET 10`).
		WithArgs("stu-1", models.PaymentStatusApproved).
		WillReturnRows(paymentRows(models.PaymentStatusApproved))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM payments WHERE estudiante_id = \$1 AND estado_pago = \$2`).
		WithArgs("stu-1", models.PaymentStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	payments, total, err := repo.List(context.Background(), models.PaymentFilter{
		EstudianteID: "stu-1",
		Estado:       models.PaymentStatusApproved,
		Page:         2,
		PageSize:     10,
	})
	require.NoError(t, err)
	require.Equal(t, 11, total)
	require.Len(t, payments, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListPendingOldestFirst(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM payments WHERE estado_pago = \$1 ORDER BY fecha_subida ASC`).
		WithArgs(models.PaymentStatusPending).
		WillReturnRows(paymentRows(models.PaymentStatusPending))

	payments, err := repo.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListByEnrollment(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM payments WHERE inscripcion_id = \$1 ORDER BY fecha_subida ASC`).
		WithArgs("enr-1").
		WillReturnRows(paymentRows(models.PaymentStatusApproved))

	payments, err := repo.ListByEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, "enr-1", payments[0].InscripcionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListForReportSkipsPagination(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM payments WHERE curso_id = \$1 ORDER BY fecha_subida ASC`).
		WithArgs("cur-1").
		WillReturnRows(paymentRows(models.PaymentStatusApproved))

	payments, err := repo.ListForReport(context.Background(), models.PaymentFilter{CursoID: "cur-1"})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositorySummary(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows([]string{"total_pagos", "pendientes", "aprobados", "rechazados", "monto_total_aprobado"}).
		AddRow(4, 1, 2, 1, 1000.0)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM payments WHERE inscripcion_id = $1`)).
		WithArgs("enr-1").
		WillReturnRows(rows)

	summary, err := repo.Summary(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Equal(t, 4, summary.TotalPagos)
	require.Equal(t, 2, summary.Aprobados)
	require.Equal(t, 1000.0, summary.MontoTotalAprobado)
	require.NoError(t, mock.ExpectationsWereMet())
}
