package models

import "time"

// Discount is a named percentage reduction. When CursoID is set the
// discount only applies to that course; otherwise it is general.
type Discount struct {
	ID          string     `db:"id" json:"id"`
	Nombre      string     `db:"nombre" json:"nombre"`
	Porcentaje  float64    `db:"porcentaje" json:"porcentaje"`
	CursoID     *string    `db:"curso_id" json:"curso_id,omitempty"`
	FechaInicio *time.Time `db:"fecha_inicio" json:"fecha_inicio,omitempty"`
	FechaFin    *time.Time `db:"fecha_fin" json:"fecha_fin,omitempty"`
	Activo      bool       `db:"activo" json:"activo"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ValidFor reports whether the discount may be applied to the given course
// at the given instant.
func (d *Discount) ValidFor(cursoID string, at time.Time) bool {
	if !d.Activo {
		return false
	}
	if d.CursoID != nil && *d.CursoID != cursoID {
		return false
	}
	if d.FechaInicio != nil && at.Before(*d.FechaInicio) {
		return false
	}
	if d.FechaFin != nil && at.After(*d.FechaFin) {
		return false
	}
	return true
}

// DiscountFilter captures filtering criteria for listing discounts.
type DiscountFilter struct {
	CursoID   string
	Activo    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
