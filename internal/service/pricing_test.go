package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
)

func TestComputeSnapshotCascadingDiscount(t *testing.T) {
	// 3000 base, 10% course discount then 5% student discount on the
	// discounted amount: 3000 * 0.90 * 0.95 = 2565, never 3000 * 0.85.
	snap, err := ComputeSnapshot(3000, 500, 12, 10, 5, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2565.0, snap.TotalAPagar)
	assert.Equal(t, 3000.0, snap.CostoTotal)
	assert.Equal(t, 500.0, snap.CostoMatricula)
}

func TestComputeSnapshotNoDiscounts(t *testing.T) {
	snap, err := ComputeSnapshot(1200, 200, 4, 0, 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, snap.TotalAPagar)
}

func TestComputeSnapshotIsPure(t *testing.T) {
	a, err := ComputeSnapshot(3000, 500, 12, 10, 5, nil, nil)
	require.NoError(t, err)
	b, err := ComputeSnapshot(3000, 500, 12, 10, 5, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestComputeSnapshotValidation(t *testing.T) {
	cases := []struct {
		name                     string
		total, matricula         float64
		cuotas                   int
		descCurso, descEstudiante float64
	}{
		{"negative total", -1, 0, 1, 0, 0},
		{"negative matricula", 100, -1, 1, 0, 0},
		{"matricula above total", 100, 200, 1, 0, 0},
		{"zero installments", 100, 0, 0, 0, 0},
		{"course discount above 100", 100, 0, 1, 101, 0},
		{"student discount below 0", 100, 0, 1, 0, -1},
		{"matricula above discounted total", 1000, 950, 4, 50, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeSnapshot(tc.total, tc.matricula, tc.cuotas, tc.descCurso, tc.descEstudiante, nil, nil)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
		})
	}
}

func TestNextDueMatriculaFirst(t *testing.T) {
	snap, err := ComputeSnapshot(3000, 500, 12, 10, 5, nil, nil)
	require.NoError(t, err)

	due, err := NextDue(snap, 0)
	require.NoError(t, err)
	assert.Equal(t, ConceptoMatricula, due.Concepto)
	assert.Equal(t, 0, due.NumeroCuota)
	assert.Equal(t, 500.0, due.MontoSugerido)
}

func TestNextDuePartialMatricula(t *testing.T) {
	snap, err := ComputeSnapshot(3000, 500, 12, 0, 0, nil, nil)
	require.NoError(t, err)

	due, err := NextDue(snap, 300)
	require.NoError(t, err)
	assert.Equal(t, ConceptoMatricula, due.Concepto)
	assert.Equal(t, 200.0, due.MontoSugerido)
}

func TestNextDueFirstInstallment(t *testing.T) {
	snap, err := ComputeSnapshot(3000, 500, 12, 10, 5, nil, nil)
	require.NoError(t, err)

	// Matrícula settled; (2565 - 500) / 12 = 172.08 per installment.
	due, err := NextDue(snap, 500)
	require.NoError(t, err)
	assert.Equal(t, "Cuota 1", due.Concepto)
	assert.Equal(t, 1, due.NumeroCuota)
	assert.InDelta(t, 172.08, due.MontoSugerido, 0.01)
}

func TestNextDueAdvancesWithPayments(t *testing.T) {
	snap, err := ComputeSnapshot(1700, 500, 4, 0, 0, nil, nil)
	require.NoError(t, err)

	// 300 per installment after matrícula.
	due, err := NextDue(snap, 500+300)
	require.NoError(t, err)
	assert.Equal(t, 2, due.NumeroCuota)
	assert.Equal(t, 300.0, due.MontoSugerido)

	due, err = NextDue(snap, 500+300*2)
	require.NoError(t, err)
	assert.Equal(t, 3, due.NumeroCuota)
}

func TestNextDueLastInstallmentChargesRemainder(t *testing.T) {
	// 1000 - 100 matrícula leaves 900 over 7 cuotas: 128.57 each after
	// rounding, so the charged amounts drift off the exact division.
	snap, err := ComputeSnapshot(1000, 100, 7, 0, 0, nil, nil)
	require.NoError(t, err)

	// Pay the suggested (rounded) amount six times, as a caller would.
	paid := 100.0
	for i := 0; i < 6; i++ {
		due, err := NextDue(snap, paid)
		require.NoError(t, err)
		require.Equal(t, i+1, due.NumeroCuota)
		paid += due.MontoSugerido
	}

	last, err := NextDue(snap, paid)
	require.NoError(t, err)
	assert.Equal(t, 7, last.NumeroCuota)
	// The final charge is the real remaining balance, not the flat amount,
	// so paying it lands exactly on the agreed total.
	assert.Equal(t, round2(snap.TotalAPagar-paid), last.MontoSugerido)

	done, err := NextDue(snap, paid+last.MontoSugerido)
	require.NoError(t, err)
	assert.Equal(t, ConceptoPagoCompletado, done.Concepto)
	assert.Equal(t, 0, done.NumeroCuota)
	assert.Equal(t, 0.0, done.MontoSugerido)
}

func TestNextDueRoundedInstallmentsAdvanceEveryCuota(t *testing.T) {
	// 2565 with a 500 matrícula over 12 cuotas gives 172.08 per cuota
	// after rounding. Each charged payment must advance the index by one;
	// the plan must close in exactly 12 cuotas with no residual voucher.
	snap, err := ComputeSnapshot(3000, 500, 12, 10, 5, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2565.0, snap.TotalAPagar)

	paid := 500.0
	for i := 1; i <= 12; i++ {
		due, err := NextDue(snap, paid)
		require.NoError(t, err)
		require.Equal(t, i, due.NumeroCuota, "after %d paid cuotas", i-1)
		paid += due.MontoSugerido
	}

	done, err := NextDue(snap, paid)
	require.NoError(t, err)
	assert.Equal(t, ConceptoPagoCompletado, done.Concepto)
	assert.InDelta(t, snap.TotalAPagar, paid, Epsilon)
}

func TestNextDueFullyPaidSentinel(t *testing.T) {
	snap, err := ComputeSnapshot(1000, 100, 4, 0, 0, nil, nil)
	require.NoError(t, err)

	due, err := NextDue(snap, 1000)
	require.NoError(t, err)
	assert.Equal(t, ConceptoPagoCompletado, due.Concepto)
	assert.Equal(t, 0.0, due.MontoSugerido)

	// Within epsilon of the total also counts as fully paid.
	due, err = NextDue(snap, 999.995)
	require.NoError(t, err)
	assert.Equal(t, ConceptoPagoCompletado, due.Concepto)
}

func TestNextDueMatriculaOnlyCourse(t *testing.T) {
	// Total equals matrícula: the fully-paid check must win before the
	// installment arithmetic ever divides.
	snap, err := ComputeSnapshot(500, 500, 6, 0, 0, nil, nil)
	require.NoError(t, err)

	due, err := NextDue(snap, 0)
	require.NoError(t, err)
	assert.Equal(t, ConceptoMatricula, due.Concepto)
	assert.Equal(t, 500.0, due.MontoSugerido)

	done, err := NextDue(snap, 500)
	require.NoError(t, err)
	assert.Equal(t, ConceptoPagoCompletado, done.Concepto)
}

func TestNextDueIsIdempotent(t *testing.T) {
	snap, err := ComputeSnapshot(3000, 500, 12, 10, 5, nil, nil)
	require.NoError(t, err)

	first, err := NextDue(snap, 750)
	require.NoError(t, err)
	second, err := NextDue(snap, 750)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNextDueZeroInstallmentInvariant(t *testing.T) {
	// A corrupted snapshot: positive balance left but installments carry no
	// amount. The calculator must refuse rather than divide by zero.
	snap := PricingSnapshot{
		CostoTotal:     500.05,
		CostoMatricula: 500,
		CantidadCuotas: 6,
		TotalAPagar:    500.05,
	}
	_, err := NextDue(snap, 500)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvariant.Code, appErr.Code)
}
