package service

import (
	"fmt"
	"math"

	"github.com/posgrado-epg/pagos-api/internal/models"
	appErrors "github.com/posgrado-epg/pagos-api/pkg/errors"
)

// Epsilon is the tolerance, in currency units, used when comparing paid and
// owed amounts. One centavo absorbs float rounding across installments.
const Epsilon = 0.01

// Payment concepts assigned by the due calculator.
const (
	ConceptoMatricula      = "Matrícula"
	ConceptoPagoCompletado = "Pago Completado"
)

// PricingSnapshot is the frozen pricing of one enrollment. Once computed it
// becomes a permanent record; nothing may recompute it even if the course's
// live price changes later.
type PricingSnapshot struct {
	CostoTotal             float64
	CostoMatricula         float64
	CantidadCuotas         int
	DescuentoCursoID       *string
	DescuentoCursoPct      float64
	DescuentoEstudianteID  *string
	DescuentoEstudiantePct float64
	TotalAPagar            float64
}

// ComputeSnapshot applies the cascading two-level discount and returns the
// frozen pricing for an enrollment. The course discount applies to the base
// cost and the student discount applies to the already-discounted amount;
// the two percentages are never summed. That ordering is the documented
// business rule.
//
// Pure: identical inputs always yield an identical snapshot.
func ComputeSnapshot(costoTotal, costoMatricula float64, cantidadCuotas int, descuentoCurso, descuentoEstudiante float64, descuentoCursoID, descuentoEstudianteID *string) (PricingSnapshot, error) {
	switch {
	case costoTotal < 0:
		return PricingSnapshot{}, appErrors.Clone(appErrors.ErrValidation, "costo total cannot be negative")
	case costoMatricula < 0:
		return PricingSnapshot{}, appErrors.Clone(appErrors.ErrValidation, "matrícula cannot be negative")
	case costoMatricula > costoTotal:
		return PricingSnapshot{}, appErrors.Clone(appErrors.ErrValidation, "matrícula cannot exceed the course total")
	case cantidadCuotas < 1:
		return PricingSnapshot{}, appErrors.Clone(appErrors.ErrValidation, "cantidad de cuotas must be at least 1")
	case descuentoCurso < 0 || descuentoCurso > 100:
		return PricingSnapshot{}, appErrors.Clone(appErrors.ErrValidation, "course discount must be between 0 and 100")
	case descuentoEstudiante < 0 || descuentoEstudiante > 100:
		return PricingSnapshot{}, appErrors.Clone(appErrors.ErrValidation, "student discount must be between 0 and 100")
	}

	afterCourse := costoTotal * (1 - descuentoCurso/100)
	totalAPagar := round2(afterCourse * (1 - descuentoEstudiante/100))

	if costoMatricula > totalAPagar+Epsilon {
		return PricingSnapshot{}, appErrors.Clone(appErrors.ErrValidation, "matrícula cannot exceed the discounted total")
	}

	return PricingSnapshot{
		CostoTotal:             costoTotal,
		CostoMatricula:         costoMatricula,
		CantidadCuotas:         cantidadCuotas,
		DescuentoCursoID:       descuentoCursoID,
		DescuentoCursoPct:      descuentoCurso,
		DescuentoEstudianteID:  descuentoEstudianteID,
		DescuentoEstudiantePct: descuentoEstudiante,
		TotalAPagar:            totalAPagar,
	}, nil
}

// SnapshotOf rebuilds the frozen pricing view from a persisted enrollment.
func SnapshotOf(e *models.Enrollment) PricingSnapshot {
	return PricingSnapshot{
		CostoTotal:             e.CostoTotal,
		CostoMatricula:         e.CostoMatricula,
		CantidadCuotas:         e.CantidadCuotas,
		DescuentoCursoID:       e.DescuentoCursoID,
		DescuentoCursoPct:      e.DescuentoCursoPct,
		DescuentoEstudianteID:  e.DescuentoEstudianteID,
		DescuentoEstudiantePct: e.DescuentoEstudiantePct,
		TotalAPagar:            e.TotalAPagar,
	}
}

// NextDue derives the single next obligation from a snapshot and the
// cumulative approved amount. It performs no I/O and no mutation; calling it
// twice with the same figures yields the same DueInfo.
//
// Order matters: the fully-paid check runs first so that a snapshot whose
// total equals its matrícula never reaches the installment arithmetic with
// a zero installment amount.
func NextDue(snap PricingSnapshot, totalPagado float64) (models.DueInfo, error) {
	saldo := snap.TotalAPagar - totalPagado
	if saldo <= Epsilon {
		return models.DueInfo{Concepto: ConceptoPagoCompletado, NumeroCuota: 0, MontoSugerido: 0}, nil
	}

	if pendiente := snap.CostoMatricula - totalPagado; pendiente > Epsilon {
		return models.DueInfo{
			Concepto:      ConceptoMatricula,
			NumeroCuota:   0,
			MontoSugerido: round2(math.Min(pendiente, saldo)),
		}, nil
	}

	if snap.CantidadCuotas < 1 {
		return models.DueInfo{}, appErrors.Clone(appErrors.ErrInvariant, "enrollment has no installment plan")
	}

	// The flat amount is rounded to centavos because that is what gets
	// charged; the index arithmetic must use the same figure or the floor
	// stalls one cuota behind the money actually collected.
	montoCuota := round2((snap.TotalAPagar - snap.CostoMatricula) / float64(snap.CantidadCuotas))
	if montoCuota <= Epsilon {
		// Only reachable when the snapshot is inconsistent: a positive
		// balance remains but installments carry no amount.
		return models.DueInfo{}, appErrors.Clone(appErrors.ErrInvariant, "installment amount is zero with a pending balance")
	}

	pagadoACuotas := math.Max(0, totalPagado-snap.CostoMatricula)
	siguiente := int((pagadoACuotas+Epsilon)/montoCuota) + 1

	monto := montoCuota
	if siguiente >= snap.CantidadCuotas {
		// The last installment absorbs rounding drift: charge the real
		// remaining balance instead of the flat amount.
		siguiente = snap.CantidadCuotas
		monto = saldo
	}

	return models.DueInfo{
		Concepto:      fmt.Sprintf("Cuota %d", siguiente),
		NumeroCuota:   siguiente,
		MontoSugerido: round2(monto),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
