package models

import "time"

// CourseType classifies the academic program.
type CourseType string

const (
	CourseTypeCurso     CourseType = "CURSO"
	CourseTypeTaller    CourseType = "TALLER"
	CourseTypeDiplomado CourseType = "DIPLOMADO"
	CourseTypeMaestria  CourseType = "MAESTRIA"
	CourseTypeDoctorado CourseType = "DOCTORADO"
	CourseTypeOtro      CourseType = "OTRO"
)

// CourseModality is the teaching modality.
type CourseModality string

const (
	ModalityPresencial CourseModality = "PRESENCIAL"
	ModalityVirtual    CourseModality = "VIRTUAL"
	ModalityHibrido    CourseModality = "HIBRIDO"
)

// Course is an offered program with separate price pairs for internal and
// external students. These are the live prices; enrollments copy them into
// a frozen snapshot at inscription time.
type Course struct {
	ID             string         `db:"id" json:"id"`
	Codigo         string         `db:"codigo" json:"codigo"`
	NombrePrograma string         `db:"nombre_programa" json:"nombre_programa"`
	TipoCurso      CourseType     `db:"tipo_curso" json:"tipo_curso"`
	Modalidad      CourseModality `db:"modalidad" json:"modalidad"`

	CostoTotalInterno float64 `db:"costo_total_interno" json:"costo_total_interno"`
	MatriculaInterno  float64 `db:"matricula_interno" json:"matricula_interno"`
	CostoTotalExterno float64 `db:"costo_total_externo" json:"costo_total_externo"`
	MatriculaExterno  float64 `db:"matricula_externo" json:"matricula_externo"`
	CantidadCuotas    int     `db:"cantidad_cuotas" json:"cantidad_cuotas"`

	DescuentoCursoID  *string  `db:"descuento_curso_id" json:"descuento_curso_id,omitempty"`
	DescuentoCursoPct *float64 `db:"descuento_curso_pct" json:"descuento_curso_pct,omitempty"`

	Observacion *string    `db:"observacion" json:"observacion,omitempty"`
	FechaInicio *time.Time `db:"fecha_inicio" json:"fecha_inicio,omitempty"`
	FechaFin    *time.Time `db:"fecha_fin" json:"fecha_fin,omitempty"`
	Activo      bool       `db:"activo" json:"activo"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// PriceFor returns the total/matrícula pair applicable to a student type.
func (c *Course) PriceFor(tipo StudentType) (total, matricula float64) {
	if tipo == StudentTypeInterno {
		return c.CostoTotalInterno, c.MatriculaInterno
	}
	return c.CostoTotalExterno, c.MatriculaExterno
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	TipoCurso CourseType
	Modalidad CourseModality
	Activo    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
